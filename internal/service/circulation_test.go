package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
)

func TestCirculationService_CheckoutLimit(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	p := f.patron(t, "ada")
	item1, item2, item3 := f.item(t, "B-1"), f.item(t, "B-2"), f.item(t, "B-3")

	first, err := svc.Checkout(f.ctx, staffID, p.ID, item1.ID, day0)
	require.NoError(t, err)
	_, err = svc.Checkout(f.ctx, staffID, p.ID, item2.ID, day0)
	require.NoError(t, err)

	_, err = svc.Checkout(f.ctx, staffID, p.ID, item3.ID, day0)
	assert.ErrorIs(t, err, domain.ErrBorrowLimitReached)

	_, err = svc.Return(f.ctx, staffID, first.ID, day0.Add(day))
	require.NoError(t, err)

	now := day0.Add(2 * day)
	b, err := svc.Checkout(f.ctx, staffID, p.ID, item3.ID, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(14*day), b.DueAt)
	assert.Equal(t, domain.BorrowingStatusActive, b.Status)

	got, err := f.store.Items().GetByID(f.ctx, item3.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusCheckedOut, got.Status)
}

func TestCirculationService_CheckoutRejections(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	p := f.patron(t, "ada")
	other := f.patron(t, "bob")
	it := f.item(t, "B-1")

	t.Run("Item Already Out", func(t *testing.T) {
		_, err := svc.Checkout(f.ctx, staffID, other.ID, it.ID, day0)
		require.NoError(t, err)
		_, err = svc.Checkout(f.ctx, staffID, p.ID, it.ID, day0)
		assert.ErrorIs(t, err, domain.ErrItemUnavailable)
	})

	t.Run("Frozen Patron Leaves No Trace", func(t *testing.T) {
		fresh := f.item(t, "B-2")
		_, err := svc.SetPatronStatus(f.ctx, staffID, p.ID, "freeze", day0)
		require.NoError(t, err)
		before := len(f.outbox(t))

		_, err = svc.Checkout(f.ctx, staffID, p.ID, fresh.ID, day0)
		assert.ErrorIs(t, err, domain.ErrPatronNotActive)

		got, err := f.store.Items().GetByID(f.ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusAvailable, got.Status)
		assert.Empty(t, f.audit(t, domain.EntityItem, fresh.ID))
		assert.Len(t, f.outbox(t), before)
	})

	t.Run("Unknown Item", func(t *testing.T) {
		_, err := svc.SetPatronStatus(f.ctx, staffID, p.ID, "renew", day0)
		require.NoError(t, err)
		_, err = svc.Checkout(f.ctx, staffID, p.ID, 404, day0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCirculationService_ConcurrentCheckoutOneWinner(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	it := f.item(t, "B-1")
	patrons := make([]*domain.Patron, 8)
	for i := range patrons {
		patrons[i] = f.patron(t, string(rune('a'+i)))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for _, p := range patrons {
		wg.Add(1)
		go func(patronID int32) {
			defer wg.Done()
			_, err := svc.Checkout(f.ctx, staffID, patronID, it.ID, day0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, domain.ErrItemUnavailable) {
				conflicts++
			}
		}(p.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, len(patrons)-1, conflicts)
	active, err := f.store.Borrowings().CountActiveByItem(f.ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), active)
}

func TestCirculationService_Renew(t *testing.T) {
	t.Run("Overdue Renewal Extends From Now", func(t *testing.T) {
		f := newFixture(t, 2)
		svc := service.NewCirculationService(f.store, nil)
		b, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, f.item(t, "B-1").ID, day0)
		require.NoError(t, err)

		res, err := svc.Renew(f.ctx, staffID, b.ID, day0.Add(20*day))
		require.NoError(t, err)
		assert.Equal(t, day0.Add(34*day), res.Borrowing.DueAt)
		assert.Equal(t, int32(1), res.Borrowing.RenewalCount)
		require.NotNil(t, res.RenewalsRemaining)
		assert.Equal(t, int32(1), *res.RenewalsRemaining)
	})

	t.Run("Early Renewal Extends From Due", func(t *testing.T) {
		f := newFixture(t, 2)
		svc := service.NewCirculationService(f.store, nil)
		b, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, f.item(t, "B-1").ID, day0)
		require.NoError(t, err)

		res, err := svc.Renew(f.ctx, staffID, b.ID, day0.Add(3*day))
		require.NoError(t, err)
		assert.Equal(t, day0.Add(28*day), res.Borrowing.DueAt)
	})

	t.Run("Cap Reached", func(t *testing.T) {
		f := newFixture(t, 1)
		svc := service.NewCirculationService(f.store, nil)
		b, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, f.item(t, "B-1").ID, day0)
		require.NoError(t, err)

		_, err = svc.Renew(f.ctx, staffID, b.ID, day0.Add(day))
		require.NoError(t, err)
		_, err = svc.Renew(f.ctx, staffID, b.ID, day0.Add(2*day))
		assert.ErrorIs(t, err, domain.ErrRenewalLimitReached)
	})

	t.Run("Uncapped Plan", func(t *testing.T) {
		f := newFixture(t, 0)
		svc := service.NewCirculationService(f.store, nil)
		b, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, f.item(t, "B-1").ID, day0)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			res, err := svc.Renew(f.ctx, staffID, b.ID, day0)
			require.NoError(t, err)
			assert.Nil(t, res.RenewalsRemaining)
		}
	})

	t.Run("Blocked By Hold", func(t *testing.T) {
		f := newFixture(t, 2)
		svc := service.NewCirculationService(f.store, nil)
		it := f.item(t, "B-1")
		b, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, it.ID, day0)
		require.NoError(t, err)
		bob := f.patron(t, "bob")
		_, err = svc.PlaceHold(f.ctx, domain.Actor{ID: bob.ID}, bob.ID, it.ID, day0)
		require.NoError(t, err)

		_, err = svc.Renew(f.ctx, staffID, b.ID, day0.Add(day))
		assert.ErrorIs(t, err, domain.ErrRenewalBlocked)

		got, err := f.store.Borrowings().GetByID(f.ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.DueAt, got.DueAt)
		assert.Zero(t, got.RenewalCount)
	})

	t.Run("Returned Borrowing", func(t *testing.T) {
		f := newFixture(t, 2)
		svc := service.NewCirculationService(f.store, nil)
		b, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, f.item(t, "B-1").ID, day0)
		require.NoError(t, err)
		_, err = svc.Return(f.ctx, staffID, b.ID, day0)
		require.NoError(t, err)

		_, err = svc.Renew(f.ctx, staffID, b.ID, day0)
		assert.ErrorIs(t, err, domain.ErrBorrowingNotActive)
	})
}

func TestCirculationService_Return(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	p := f.patron(t, "ada")
	it := f.item(t, "B-1")

	b, err := svc.Checkout(f.ctx, staffID, p.ID, it.ID, day0)
	require.NoError(t, err)

	res, err := svc.Return(f.ctx, staffID, b.ID, day0.Add(17*day+time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(4), res.OverdueDays)
	assert.Equal(t, int64(100), res.LateFeeCents)
	assert.Equal(t, domain.BorrowingStatusReturned, res.Borrowing.Status)
	require.NotNil(t, res.Borrowing.ReturnedAt)

	got, err := f.store.Items().GetByID(f.ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusAvailable, got.Status)

	entries := f.audit(t, domain.EntityBorrowing, b.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "checkout", entries[0].Action)
	assert.Equal(t, "return", entries[1].Action)

	_, err = svc.Return(f.ctx, staffID, b.ID, day0.Add(18*day))
	assert.ErrorIs(t, err, domain.ErrBorrowingNotActive)

	t.Run("Before Checkout", func(t *testing.T) {
		b, err := svc.Checkout(f.ctx, staffID, p.ID, it.ID, day0.Add(10*day))
		require.NoError(t, err)

		_, err = svc.Return(f.ctx, staffID, b.ID, day0)
		assert.ErrorIs(t, err, domain.ErrValidation)

		stored, err := f.store.Borrowings().GetByID(f.ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BorrowingStatusActive, stored.Status)
		assert.Nil(t, stored.ReturnedAt)

		_, err = svc.Return(f.ctx, staffID, b.ID, b.CheckoutAt)
		require.NoError(t, err)
	})

	t.Run("On Time", func(t *testing.T) {
		b, err := svc.Checkout(f.ctx, staffID, p.ID, it.ID, day0)
		require.NoError(t, err)
		res, err := svc.Return(f.ctx, staffID, b.ID, b.DueAt)
		require.NoError(t, err)
		assert.Zero(t, res.OverdueDays)
		assert.Zero(t, res.LateFeeCents)
	})
}

func TestCirculationService_PlanChangeAppliesForward(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	p := f.patron(t, "ada")
	first, second := f.item(t, "B-1"), f.item(t, "B-2")

	b, err := svc.Checkout(f.ctx, staffID, p.ID, first.ID, day0)
	require.NoError(t, err)
	require.Equal(t, day0.Add(14*day), b.DueAt)

	f.plan.LoanDuration = 7 * day
	require.NoError(t, f.store.Plans().Update(f.ctx, f.plan))

	stored, err := f.store.Borrowings().GetByID(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, day0.Add(14*day), stored.DueAt)

	res, err := svc.Renew(f.ctx, staffID, b.ID, day0.Add(day))
	require.NoError(t, err)
	assert.Equal(t, day0.Add(21*day), res.Borrowing.DueAt)

	next, err := svc.Checkout(f.ctx, staffID, p.ID, second.ID, day0.Add(day))
	require.NoError(t, err)
	assert.Equal(t, day0.Add(8*day), next.DueAt)
}

func TestCirculationService_MarkLost(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	it := f.item(t, "B-1")
	b, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, it.ID, day0)
	require.NoError(t, err)

	lost, err := svc.MarkLost(f.ctx, staffID, b.ID, day0.Add(40*day))
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowingStatusLost, lost.Status)

	got, err := f.store.Items().GetByID(f.ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusLost, got.Status)

	_, err = svc.MarkLost(f.ctx, staffID, b.ID, day0.Add(41*day))
	assert.ErrorIs(t, err, domain.ErrBorrowingNotActive)
}

func TestCirculationService_ListOverdue(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	p := f.patron(t, "ada")
	late, err := svc.Checkout(f.ctx, staffID, p.ID, f.item(t, "B-1").ID, day0)
	require.NoError(t, err)
	_, err = svc.Checkout(f.ctx, staffID, p.ID, f.item(t, "B-2").ID, day0.Add(10*day))
	require.NoError(t, err)

	now := day0.Add(15 * day)
	overdue, err := svc.ListOverdue(f.ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.True(t, overdue[0].IsOverdue)

	views, total, err := svc.ListBorrowings(f.ctx, domain.BorrowingFilter{PatronID: &p.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, int32(2), total)
	flags := map[int32]bool{}
	for _, v := range views {
		flags[v.ID] = v.IsOverdue
	}
	assert.True(t, flags[late.ID])
	assert.Len(t, flags, 2)
}

func TestCirculationService_Holds(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	ada, bob := f.patron(t, "ada"), f.patron(t, "bob")
	it := f.item(t, "B-1")

	_, err := svc.PlaceHold(f.ctx, domain.Actor{ID: bob.ID}, ada.ID, it.ID, day0)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	hold, err := svc.PlaceHold(f.ctx, domain.Actor{ID: ada.ID}, ada.ID, it.ID, day0)
	require.NoError(t, err)
	again, err := svc.PlaceHold(f.ctx, domain.Actor{ID: ada.ID}, ada.ID, it.ID, day0)
	require.NoError(t, err)
	assert.Equal(t, hold.ID, again.ID)

	// Checking out the held item fulfils the patron's own hold.
	_, err = svc.Checkout(f.ctx, staffID, ada.ID, it.ID, day0)
	require.NoError(t, err)
	got, err := f.store.Holds().GetByID(f.ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusFulfilled, got.Status)

	assert.ErrorIs(t, svc.CancelHold(f.ctx, domain.Actor{ID: ada.ID}, hold.ID, day0), domain.ErrInvalidTransition)

	second, err := svc.PlaceHold(f.ctx, domain.Actor{ID: staffID, Staff: true}, bob.ID, it.ID, day0)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.CancelHold(f.ctx, domain.Actor{ID: ada.ID}, second.ID, day0), domain.ErrForbidden)
	require.NoError(t, svc.CancelHold(f.ctx, domain.Actor{ID: bob.ID}, second.ID, day0))
}

func TestCirculationService_SetItemStatus(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewCirculationService(f.store, nil)
	it := f.item(t, "B-1")

	updated, err := svc.SetItemStatus(f.ctx, staffID, it.ID, domain.ItemStatusUnderRepair, day0)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusUnderRepair, updated.Status)

	_, err = svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, it.ID, day0)
	assert.ErrorIs(t, err, domain.ErrItemUnavailable)

	_, err = svc.SetItemStatus(f.ctx, staffID, it.ID, domain.ItemStatusCheckedOut, day0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.SetItemStatus(f.ctx, staffID, it.ID, "MISSING", day0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	found, err := svc.GetItemByBarcode(f.ctx, " B-1 ")
	require.NoError(t, err)
	assert.Equal(t, it.ID, found.ID)
}

func TestCirculationService_RecordsMetrics(t *testing.T) {
	f := newFixture(t, 2)
	m := new(MockMetrics)
	m.On("RecordOperation", "checkout", nil, mock.AnythingOfType("time.Duration")).Return().Once()
	m.On("RecordOperation", "checkout", domain.ErrItemUnavailable, mock.AnythingOfType("time.Duration")).Return().Once()
	svc := service.NewCirculationService(f.store, m)
	it := f.item(t, "B-1")

	_, err := svc.Checkout(f.ctx, staffID, f.patron(t, "ada").ID, it.ID, day0)
	require.NoError(t, err)
	_, err = svc.Checkout(f.ctx, staffID, f.patron(t, "bob").ID, it.ID, day0)
	require.Error(t, err)
	m.AssertExpectations(t)
}
