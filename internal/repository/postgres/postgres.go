package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

const uniqueViolation = pq.ErrorCode("23505")

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repos struct {
	items         repository.ItemRepository
	borrowings    repository.BorrowingRepository
	patrons       repository.PatronRepository
	plans         repository.PlanRepository
	categoryRules repository.CategoryRuleRepository
	holds         repository.HoldRepository
	submissions   repository.SubmissionRepository
	audit         repository.AuditRepository
	notifications repository.NotificationRepository
}

func newRepos(q Querier) *repos {
	return &repos{
		items:         NewItemRepository(q),
		borrowings:    NewBorrowingRepository(q),
		patrons:       NewPatronRepository(q),
		plans:         NewPlanRepository(q),
		categoryRules: NewCategoryRuleRepository(q),
		holds:         NewHoldRepository(q),
		submissions:   NewSubmissionRepository(q),
		audit:         NewAuditRepository(q),
		notifications: NewNotificationRepository(q),
	}
}

func (r *repos) Items() repository.ItemRepository                 { return r.items }
func (r *repos) Borrowings() repository.BorrowingRepository       { return r.borrowings }
func (r *repos) Patrons() repository.PatronRepository             { return r.patrons }
func (r *repos) Plans() repository.PlanRepository                 { return r.plans }
func (r *repos) CategoryRules() repository.CategoryRuleRepository { return r.categoryRules }
func (r *repos) Holds() repository.HoldRepository                 { return r.holds }
func (r *repos) Submissions() repository.SubmissionRepository     { return r.submissions }
func (r *repos) Audit() repository.AuditRepository                { return r.audit }
func (r *repos) Notifications() repository.NotificationRepository { return r.notifications }

// Store is the PostgreSQL implementation of repository.Store. Outside of
// WithinTx its repositories run in autocommit mode.
type Store struct {
	db *sql.DB
	*repos
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		repos: newRepos(db),
	}
}

// WithinTx runs fn in a READ COMMITTED transaction. Row-level single-writer
// guarantees come from the compare-and-swap updates and SELECT ... FOR UPDATE.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		logger.Error("Transaction commit failed", "error", err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
