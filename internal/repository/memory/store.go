// Package memory is an in-process implementation of repository.Store used
// for local development and tests. Transactions are serialized and run
// against a private copy of the data that replaces the committed copy only
// when the callback succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

type state struct {
	items         map[int32]domain.Item
	borrowings    map[int32]domain.Borrowing
	patrons       map[int32]domain.Patron
	plans         map[int32]domain.MembershipPlan
	rules         map[domain.Category]domain.CategoryRules
	holds         map[int32]domain.Hold
	submissions   map[int32]domain.Submission
	audit         []domain.AuditEntry
	notifications []domain.Notification
	seq           map[string]int32
}

func newState() *state {
	return &state{
		items:       map[int32]domain.Item{},
		borrowings:  map[int32]domain.Borrowing{},
		patrons:     map[int32]domain.Patron{},
		plans:       map[int32]domain.MembershipPlan{},
		rules:       map[domain.Category]domain.CategoryRules{},
		holds:       map[int32]domain.Hold{},
		submissions: map[int32]domain.Submission{},
		seq:         map[string]int32{},
	}
}

func (s *state) clone() *state {
	return &state{
		items:         maps.Clone(s.items),
		borrowings:    maps.Clone(s.borrowings),
		patrons:       maps.Clone(s.patrons),
		plans:         maps.Clone(s.plans),
		rules:         maps.Clone(s.rules),
		holds:         maps.Clone(s.holds),
		submissions:   maps.Clone(s.submissions),
		audit:         slices.Clone(s.audit),
		notifications: slices.Clone(s.notifications),
		seq:           maps.Clone(s.seq),
	}
}

func (s *state) next(table string) int32 {
	s.seq[table]++
	return s.seq[table]
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	st *state
	*repos
}

// New returns a store seeded with the same default policy rows as the
// postgres migrations.
func New() *Store {
	s := &Store{st: newState()}
	s.repos = newRepos(&view{store: s})
	seedPolicy(s.st)
	return s
}

func seedPolicy(st *state) {
	id := st.next("membership_plans")
	st.plans[id] = domain.MembershipPlan{
		ID:                 id,
		Name:               "Standard",
		MaxBooks:           5,
		LoanDuration:       14 * 24 * time.Hour,
		LateFeePerDayCents: 25,
		MaxRenewals:        2,
	}
	st.rules[domain.CategoryBlogPost] = domain.CategoryRules{Category: domain.CategoryBlogPost, PublishOnApprove: true, MaxBodyLength: 100000}
	st.rules[domain.CategoryBookSuggestion] = domain.CategoryRules{Category: domain.CategoryBookSuggestion, MaxBodyLength: 2000}
	st.rules[domain.CategoryTestimonial] = domain.CategoryRules{Category: domain.CategoryTestimonial, MaxBodyLength: 2000}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(newRepos(&view{tx: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}

// view resolves the state a repository call operates on: the transaction
// copy when inside WithinTx, otherwise the committed state under the lock.
type view struct {
	store *Store
	tx    *state
}

func (v *view) begin() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.mu.Lock()
	return v.store.st, v.store.mu.Unlock
}

type repos struct {
	items         *itemRepository
	borrowings    *borrowingRepository
	patrons       *patronRepository
	plans         *planRepository
	rules         *categoryRuleRepository
	holds         *holdRepository
	submissions   *submissionRepository
	audit         *auditRepository
	notifications *notificationRepository
}

func newRepos(v *view) *repos {
	return &repos{
		items:         &itemRepository{v},
		borrowings:    &borrowingRepository{v},
		patrons:       &patronRepository{v},
		plans:         &planRepository{v},
		rules:         &categoryRuleRepository{v},
		holds:         &holdRepository{v},
		submissions:   &submissionRepository{v},
		audit:         &auditRepository{v},
		notifications: &notificationRepository{v},
	}
}

func (r *repos) Items() repository.ItemRepository                 { return r.items }
func (r *repos) Borrowings() repository.BorrowingRepository       { return r.borrowings }
func (r *repos) Patrons() repository.PatronRepository             { return r.patrons }
func (r *repos) Plans() repository.PlanRepository                 { return r.plans }
func (r *repos) CategoryRules() repository.CategoryRuleRepository { return r.rules }
func (r *repos) Holds() repository.HoldRepository                 { return r.holds }
func (r *repos) Submissions() repository.SubmissionRepository     { return r.submissions }
func (r *repos) Audit() repository.AuditRepository                { return r.audit }
func (r *repos) Notifications() repository.NotificationRepository { return r.notifications }
