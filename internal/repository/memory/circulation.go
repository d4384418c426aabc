package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"library-circulation-backend/internal/domain"
)

type itemRepository struct{ v *view }

func (r *itemRepository) Create(_ context.Context, item *domain.Item) error {
	st, done := r.v.begin()
	defer done()
	for _, existing := range st.items {
		if strings.EqualFold(existing.Barcode, item.Barcode) {
			return domain.Invalid("barcode %q already exists", item.Barcode)
		}
	}
	if item.StatusChangedAt.IsZero() {
		item.StatusChangedAt = time.Now().UTC()
	}
	item.ID = st.next("items")
	item.Version = 1
	st.items[item.ID] = *item
	return nil
}

func (r *itemRepository) GetByID(_ context.Context, id int32) (*domain.Item, error) {
	st, done := r.v.begin()
	defer done()
	item, ok := st.items[id]
	if !ok {
		return nil, domain.NotFound("item", id)
	}
	return &item, nil
}

func (r *itemRepository) GetByBarcode(_ context.Context, barcode string) (*domain.Item, error) {
	st, done := r.v.begin()
	defer done()
	for _, item := range st.items {
		if item.Barcode == barcode {
			return &item, nil
		}
	}
	return nil, domain.NotFound("item with barcode", barcode)
}

func (r *itemRepository) CompareAndSwapStatus(_ context.Context, id int32, from, to domain.ItemStatus, at time.Time) (bool, error) {
	st, done := r.v.begin()
	defer done()
	item, ok := st.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	item.StatusChangedAt = at
	item.Version++
	st.items[id] = item
	return true, nil
}

type borrowingRepository struct{ v *view }

func (r *borrowingRepository) Create(_ context.Context, b *domain.Borrowing) error {
	st, done := r.v.begin()
	defer done()
	if b.Status == domain.BorrowingStatusActive {
		for _, existing := range st.borrowings {
			if existing.ItemID == b.ItemID && existing.Status == domain.BorrowingStatusActive {
				return fmt.Errorf("item %d already has active borrowing %d", b.ItemID, existing.ID)
			}
		}
	}
	b.ID = st.next("borrowings")
	b.Version = 1
	st.borrowings[b.ID] = *b
	return nil
}

func (r *borrowingRepository) GetByID(_ context.Context, id int32) (*domain.Borrowing, error) {
	st, done := r.v.begin()
	defer done()
	b, ok := st.borrowings[id]
	if !ok {
		return nil, domain.NotFound("borrowing", id)
	}
	return &b, nil
}

func (r *borrowingRepository) Update(_ context.Context, b *domain.Borrowing) (bool, error) {
	st, done := r.v.begin()
	defer done()
	stored, ok := st.borrowings[b.ID]
	if !ok || stored.Version != b.Version {
		return false, nil
	}
	b.Version++
	st.borrowings[b.ID] = *b
	return true, nil
}

func (r *borrowingRepository) CountActiveByPatron(_ context.Context, patronID int32) (int32, error) {
	st, done := r.v.begin()
	defer done()
	var n int32
	for _, b := range st.borrowings {
		if b.PatronID == patronID && b.Status == domain.BorrowingStatusActive {
			n++
		}
	}
	return n, nil
}

func (r *borrowingRepository) CountActiveByItem(_ context.Context, itemID int32) (int32, error) {
	st, done := r.v.begin()
	defer done()
	var n int32
	for _, b := range st.borrowings {
		if b.ItemID == itemID && b.Status == domain.BorrowingStatusActive {
			n++
		}
	}
	return n, nil
}

func (r *borrowingRepository) List(_ context.Context, filter domain.BorrowingFilter) ([]domain.Borrowing, int32, error) {
	st, done := r.v.begin()
	defer done()

	var out []domain.Borrowing
	for _, b := range st.borrowings {
		if filter.PatronID != nil && b.PatronID != *filter.PatronID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Borrowing) int {
		if c := b.CheckoutAt.Compare(a.CheckoutAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})

	total := int32(len(out))
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	start := min((page-1)*size, total)
	end := min(start+size, total)
	return out[start:end], total, nil
}

func (r *borrowingRepository) ListActiveDueBefore(_ context.Context, t time.Time) ([]domain.Borrowing, error) {
	st, done := r.v.begin()
	defer done()
	var out []domain.Borrowing
	for _, b := range st.borrowings {
		if b.Status == domain.BorrowingStatusActive && b.DueAt.Before(t) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.Borrowing) int { return a.DueAt.Compare(b.DueAt) })
	return out, nil
}

type patronRepository struct{ v *view }

func (r *patronRepository) Create(_ context.Context, p *domain.Patron) error {
	st, done := r.v.begin()
	defer done()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.ID = st.next("patrons")
	st.patrons[p.ID] = *p
	return nil
}

func (r *patronRepository) GetByID(_ context.Context, id int32) (*domain.Patron, error) {
	st, done := r.v.begin()
	defer done()
	p, ok := st.patrons[id]
	if !ok {
		return nil, domain.NotFound("patron", id)
	}
	return &p, nil
}

// GetForUpdate needs no row lock here: transactions are already serialized.
func (r *patronRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Patron, error) {
	return r.GetByID(ctx, id)
}

func (r *patronRepository) UpdateStatus(_ context.Context, id int32, status domain.PatronStatus) error {
	st, done := r.v.begin()
	defer done()
	p, ok := st.patrons[id]
	if !ok {
		return fmt.Errorf("update patron status: %w", domain.NotFound("patron", id))
	}
	p.Status = status
	st.patrons[id] = p
	return nil
}

type planRepository struct{ v *view }

func (r *planRepository) Create(_ context.Context, plan *domain.MembershipPlan) error {
	st, done := r.v.begin()
	defer done()
	plan.ID = st.next("membership_plans")
	st.plans[plan.ID] = *plan
	return nil
}

func (r *planRepository) GetByID(_ context.Context, id int32) (*domain.MembershipPlan, error) {
	st, done := r.v.begin()
	defer done()
	plan, ok := st.plans[id]
	if !ok {
		return nil, domain.NotFound("membership plan", id)
	}
	return &plan, nil
}

func (r *planRepository) Update(_ context.Context, plan *domain.MembershipPlan) error {
	st, done := r.v.begin()
	defer done()
	if _, ok := st.plans[plan.ID]; !ok {
		return domain.NotFound("membership plan", plan.ID)
	}
	st.plans[plan.ID] = *plan
	return nil
}

func (r *planRepository) List(_ context.Context) ([]domain.MembershipPlan, error) {
	st, done := r.v.begin()
	defer done()
	plans := make([]domain.MembershipPlan, 0, len(st.plans))
	for _, p := range st.plans {
		plans = append(plans, p)
	}
	slices.SortFunc(plans, func(a, b domain.MembershipPlan) int { return int(a.ID - b.ID) })
	return plans, nil
}

type holdRepository struct{ v *view }

func (r *holdRepository) Create(_ context.Context, h *domain.Hold) error {
	st, done := r.v.begin()
	defer done()
	h.ID = st.next("holds")
	st.holds[h.ID] = *h
	return nil
}

func (r *holdRepository) GetByID(_ context.Context, id int32) (*domain.Hold, error) {
	st, done := r.v.begin()
	defer done()
	h, ok := st.holds[id]
	if !ok {
		return nil, domain.NotFound("hold", id)
	}
	return &h, nil
}

func (r *holdRepository) UpdateStatus(_ context.Context, id int32, status domain.HoldStatus) error {
	st, done := r.v.begin()
	defer done()
	h, ok := st.holds[id]
	if !ok {
		return nil
	}
	h.Status = status
	st.holds[id] = h
	return nil
}

func (r *holdRepository) HasPendingByOtherPatron(_ context.Context, itemID, patronID int32) (bool, error) {
	st, done := r.v.begin()
	defer done()
	for _, h := range st.holds {
		if h.ItemID == itemID && h.PatronID != patronID && h.Status == domain.HoldStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *holdRepository) GetPendingByPatronAndItem(_ context.Context, patronID, itemID int32) (*domain.Hold, error) {
	st, done := r.v.begin()
	defer done()
	var found *domain.Hold
	for _, h := range st.holds {
		if h.ItemID == itemID && h.PatronID == patronID && h.Status == domain.HoldStatusPending {
			if found == nil || h.CreatedAt.Before(found.CreatedAt) {
				found = &h
			}
		}
	}
	return found, nil
}
