package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

type circulationService struct {
	store   repository.Store
	metrics metrics.MetricsCollector
}

func NewCirculationService(store repository.Store, m metrics.MetricsCollector) CirculationService {
	if m == nil {
		m = metrics.Nop{}
	}
	return &circulationService{store: store, metrics: m}
}

func (s *circulationService) Checkout(ctx context.Context, actorID, patronID, itemID int32, now time.Time) (*domain.Borrowing, error) {
	const method = "circulationService.Checkout"
	logger.EnterMethod(method, "patronID", patronID, "itemID", itemID)
	start := time.Now()

	var borrowing *domain.Borrowing
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		// Locking the patron row serializes concurrent checkouts by the same patron.
		patron, err := tx.Patrons().GetForUpdate(ctx, patronID)
		if err != nil {
			return err
		}
		if patron.Status != domain.PatronStatusActive {
			return domain.ErrPatronNotActive
		}

		item, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status != domain.ItemStatusAvailable {
			return domain.ErrItemUnavailable
		}

		plan, err := tx.Plans().GetByID(ctx, patron.PlanID)
		if err != nil {
			return err
		}
		active, err := tx.Borrowings().CountActiveByPatron(ctx, patronID)
		if err != nil {
			return err
		}
		if active >= plan.MaxBooks {
			return domain.ErrBorrowLimitReached
		}

		swapped, err := tx.Items().CompareAndSwapStatus(ctx, itemID, domain.ItemStatusAvailable, domain.ItemStatusCheckedOut, now)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.ErrItemUnavailable
		}

		borrowing = &domain.Borrowing{
			ItemID:     itemID,
			PatronID:   patronID,
			CheckoutAt: now,
			DueAt:      now.Add(plan.LoanDuration),
			Status:     domain.BorrowingStatusActive,
		}
		if err := tx.Borrowings().Create(ctx, borrowing); err != nil {
			return err
		}

		hold, err := tx.Holds().GetPendingByPatronAndItem(ctx, patronID, itemID)
		if err != nil {
			return err
		}
		if hold != nil {
			if err := tx.Holds().UpdateStatus(ctx, hold.ID, domain.HoldStatusFulfilled); err != nil {
				return err
			}
			if err := recordAudit(ctx, tx, transition{domain.EntityHold, hold.ID, actorID, "fulfil", string(domain.HoldStatusPending), string(domain.HoldStatusFulfilled), ""}, now); err != nil {
				return err
			}
		}

		if err := recordAudit(ctx, tx, transition{domain.EntityBorrowing, borrowing.ID, actorID, "checkout", "", string(domain.BorrowingStatusActive), ""}, now); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, transition{domain.EntityItem, itemID, actorID, "checkout", string(domain.ItemStatusAvailable), string(domain.ItemStatusCheckedOut), ""}, now); err != nil {
			return err
		}
		return enqueueNotification(ctx, tx, patronID, domain.NotificationCheckout,
			"Item checked out",
			fmt.Sprintf("%s is due back on %s.", item.Title, formatDue(borrowing.DueAt)),
			map[string]string{"borrowing_id": itoa(borrowing.ID), "item_id": itoa(itemID), "due_date": formatDue(borrowing.DueAt)},
			now)
	})

	s.metrics.RecordOperation("checkout", err, time.Since(start))
	if err != nil {
		logger.ExitMethodWithError(method, err, "patronID", patronID, "itemID", itemID)
		return nil, err
	}
	logger.ExitMethod(method, "borrowingID", borrowing.ID, "dueAt", borrowing.DueAt)
	return borrowing, nil
}

func (s *circulationService) Renew(ctx context.Context, actorID, borrowingID int32, now time.Time) (*domain.RenewResult, error) {
	const method = "circulationService.Renew"
	logger.EnterMethod(method, "borrowingID", borrowingID)
	start := time.Now()

	var result *domain.RenewResult
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		b, err := tx.Borrowings().GetByID(ctx, borrowingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BorrowingStatusActive {
			return domain.ErrBorrowingNotActive
		}

		blocked, err := tx.Holds().HasPendingByOtherPatron(ctx, b.ItemID, b.PatronID)
		if err != nil {
			return err
		}
		if blocked {
			return domain.ErrRenewalBlocked
		}

		patron, err := tx.Patrons().GetByID(ctx, b.PatronID)
		if err != nil {
			return err
		}
		plan, err := tx.Plans().GetByID(ctx, patron.PlanID)
		if err != nil {
			return err
		}
		if plan.MaxRenewals > 0 && b.RenewalCount >= plan.MaxRenewals {
			return domain.ErrRenewalLimitReached
		}

		previousDue := b.DueAt
		b.DueAt = utils.RenewedDue(now, b.DueAt, plan.LoanDuration)
		b.RenewalCount++
		updated, err := tx.Borrowings().Update(ctx, b)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrConflict
		}

		notes := fmt.Sprintf("due %s -> %s", formatDue(previousDue), formatDue(b.DueAt))
		if err := recordAudit(ctx, tx, transition{domain.EntityBorrowing, b.ID, actorID, "renew", string(domain.BorrowingStatusActive), string(domain.BorrowingStatusActive), notes}, now); err != nil {
			return err
		}

		result = &domain.RenewResult{Borrowing: *b}
		if plan.MaxRenewals > 0 {
			remaining := plan.MaxRenewals - b.RenewalCount
			result.RenewalsRemaining = &remaining
		}
		return enqueueNotification(ctx, tx, b.PatronID, domain.NotificationRenewal,
			"Borrowing renewed",
			fmt.Sprintf("Your borrowing is now due on %s.", formatDue(b.DueAt)),
			map[string]string{"borrowing_id": itoa(b.ID), "due_date": formatDue(b.DueAt), "renewal_count": itoa(b.RenewalCount)},
			now)
	})

	s.metrics.RecordOperation("renew", err, time.Since(start))
	if err != nil {
		logger.ExitMethodWithError(method, err, "borrowingID", borrowingID)
		return nil, err
	}
	logger.ExitMethod(method, "borrowingID", borrowingID, "dueAt", result.Borrowing.DueAt, "renewalCount", result.Borrowing.RenewalCount)
	return result, nil
}

func (s *circulationService) Return(ctx context.Context, actorID, borrowingID int32, now time.Time) (*domain.ReturnResult, error) {
	const method = "circulationService.Return"
	logger.EnterMethod(method, "borrowingID", borrowingID)
	start := time.Now()

	var result *domain.ReturnResult
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		b, err := tx.Borrowings().GetByID(ctx, borrowingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BorrowingStatusActive {
			return domain.ErrBorrowingNotActive
		}
		if now.Before(b.CheckoutAt) {
			return domain.Invalid("return time %s is before checkout %s", now.UTC().Format(time.RFC3339), b.CheckoutAt.UTC().Format(time.RFC3339))
		}

		patron, err := tx.Patrons().GetByID(ctx, b.PatronID)
		if err != nil {
			return err
		}
		plan, err := tx.Plans().GetByID(ctx, patron.PlanID)
		if err != nil {
			return err
		}

		overdueDays := utils.OverdueDays(b.DueAt, now)
		fee := utils.LateFeeCents(overdueDays, plan.LateFeePerDayCents)

		returnedAt := now
		b.Status = domain.BorrowingStatusReturned
		b.ReturnedAt = &returnedAt
		b.LateFeeCents = fee
		updated, err := tx.Borrowings().Update(ctx, b)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrConflict
		}

		swapped, err := tx.Items().CompareAndSwapStatus(ctx, b.ItemID, domain.ItemStatusCheckedOut, domain.ItemStatusAvailable, now)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.ErrConflict
		}

		var notes string
		if overdueDays > 0 {
			notes = fmt.Sprintf("%d days overdue, late fee %d cents", overdueDays, fee)
		}
		if err := recordAudit(ctx, tx, transition{domain.EntityBorrowing, b.ID, actorID, "return", string(domain.BorrowingStatusActive), string(domain.BorrowingStatusReturned), notes}, now); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, transition{domain.EntityItem, b.ItemID, actorID, "return", string(domain.ItemStatusCheckedOut), string(domain.ItemStatusAvailable), ""}, now); err != nil {
			return err
		}

		result = &domain.ReturnResult{Borrowing: *b, OverdueDays: overdueDays, LateFeeCents: fee}
		message := "Thank you for returning your item."
		if fee > 0 {
			message = fmt.Sprintf("Your item was returned %d days late. A late fee of %.2f applies.", overdueDays, utils.CentsToAmount(fee))
		}
		return enqueueNotification(ctx, tx, b.PatronID, domain.NotificationReturn,
			"Item returned", message,
			map[string]string{"borrowing_id": itoa(b.ID), "late_fee_cents": fmt.Sprintf("%d", fee)},
			now)
	})

	s.metrics.RecordOperation("return", err, time.Since(start))
	if err != nil {
		logger.ExitMethodWithError(method, err, "borrowingID", borrowingID)
		return nil, err
	}
	logger.ExitMethod(method, "borrowingID", borrowingID, "overdueDays", result.OverdueDays, "lateFeeCents", result.LateFeeCents)
	return result, nil
}

func (s *circulationService) MarkLost(ctx context.Context, actorID, borrowingID int32, now time.Time) (*domain.Borrowing, error) {
	const method = "circulationService.MarkLost"
	logger.EnterMethod(method, "borrowingID", borrowingID)
	start := time.Now()

	var borrowing *domain.Borrowing
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		b, err := tx.Borrowings().GetByID(ctx, borrowingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BorrowingStatusActive {
			return domain.ErrBorrowingNotActive
		}

		b.Status = domain.BorrowingStatusLost
		updated, err := tx.Borrowings().Update(ctx, b)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrConflict
		}
		swapped, err := tx.Items().CompareAndSwapStatus(ctx, b.ItemID, domain.ItemStatusCheckedOut, domain.ItemStatusLost, now)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.ErrConflict
		}

		if err := recordAudit(ctx, tx, transition{domain.EntityBorrowing, b.ID, actorID, "lost", string(domain.BorrowingStatusActive), string(domain.BorrowingStatusLost), ""}, now); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, transition{domain.EntityItem, b.ItemID, actorID, "lost", string(domain.ItemStatusCheckedOut), string(domain.ItemStatusLost), ""}, now); err != nil {
			return err
		}
		borrowing = b
		return enqueueNotification(ctx, tx, b.PatronID, domain.NotificationLost,
			"Item marked lost",
			"An item on your account has been recorded as lost. Please contact the library.",
			map[string]string{"borrowing_id": itoa(b.ID), "item_id": itoa(b.ItemID)},
			now)
	})

	s.metrics.RecordOperation("mark_lost", err, time.Since(start))
	if err != nil {
		logger.ExitMethodWithError(method, err, "borrowingID", borrowingID)
		return nil, err
	}
	logger.ExitMethod(method, "borrowingID", borrowingID)
	return borrowing, nil
}

func (s *circulationService) ListBorrowings(ctx context.Context, filter domain.BorrowingFilter, now time.Time) ([]domain.BorrowingView, int32, error) {
	borrowings, total, err := s.store.Borrowings().List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return toViews(borrowings, now), total, nil
}

func (s *circulationService) ListOverdue(ctx context.Context, now time.Time) ([]domain.BorrowingView, error) {
	borrowings, err := s.store.Borrowings().ListActiveDueBefore(ctx, now)
	if err != nil {
		return nil, err
	}
	return toViews(borrowings, now), nil
}

// toViews applies the overdue predicate at read time.
func toViews(borrowings []domain.Borrowing, now time.Time) []domain.BorrowingView {
	views := make([]domain.BorrowingView, 0, len(borrowings))
	for i := range borrowings {
		views = append(views, domain.BorrowingView{
			Borrowing: borrowings[i],
			IsOverdue: borrowings[i].IsOverdue(now),
		})
	}
	return views
}

func (s *circulationService) PlaceHold(ctx context.Context, actor domain.Actor, patronID, itemID int32, now time.Time) (*domain.Hold, error) {
	const method = "circulationService.PlaceHold"
	logger.EnterMethod(method, "patronID", patronID, "itemID", itemID)

	if !actor.Staff && actor.ID != patronID {
		logger.ExitMethodWithError(method, domain.ErrForbidden, "actorID", actor.ID)
		return nil, domain.ErrForbidden
	}

	var hold *domain.Hold
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		patron, err := tx.Patrons().GetByID(ctx, patronID)
		if err != nil {
			return err
		}
		if patron.Status != domain.PatronStatusActive {
			return domain.ErrPatronNotActive
		}
		item, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status == domain.ItemStatusLost {
			return domain.ErrItemUnavailable
		}

		existing, err := tx.Holds().GetPendingByPatronAndItem(ctx, patronID, itemID)
		if err != nil {
			return err
		}
		if existing != nil {
			hold = existing
			return nil
		}

		hold = &domain.Hold{ItemID: itemID, PatronID: patronID, Status: domain.HoldStatusPending, CreatedAt: now}
		if err := tx.Holds().Create(ctx, hold); err != nil {
			return err
		}
		return recordAudit(ctx, tx, transition{domain.EntityHold, hold.ID, actor.ID, "place", "", string(domain.HoldStatusPending), ""}, now)
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "patronID", patronID, "itemID", itemID)
		return nil, err
	}
	logger.ExitMethod(method, "holdID", hold.ID)
	return hold, nil
}

func (s *circulationService) CancelHold(ctx context.Context, actor domain.Actor, holdID int32, now time.Time) error {
	const method = "circulationService.CancelHold"
	logger.EnterMethod(method, "holdID", holdID)

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		hold, err := tx.Holds().GetByID(ctx, holdID)
		if err != nil {
			return err
		}
		if !actor.Staff && hold.PatronID != actor.ID {
			return domain.ErrForbidden
		}
		if hold.Status != domain.HoldStatusPending {
			return domain.ErrInvalidTransition
		}
		if err := tx.Holds().UpdateStatus(ctx, holdID, domain.HoldStatusCancelled); err != nil {
			return err
		}
		return recordAudit(ctx, tx, transition{domain.EntityHold, holdID, actor.ID, "cancel", string(domain.HoldStatusPending), string(domain.HoldStatusCancelled), ""}, now)
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "holdID", holdID)
		return err
	}
	logger.ExitMethod(method, "holdID", holdID)
	return nil
}

func (s *circulationService) GetItemByBarcode(ctx context.Context, barcode string) (*domain.Item, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, domain.Invalid("barcode is required")
	}
	return s.store.Items().GetByBarcode(ctx, barcode)
}

// SetItemStatus is the administrative path for statuses outside circulation.
// CHECKED_OUT is written only by checkout and return.
func (s *circulationService) SetItemStatus(ctx context.Context, actorID, itemID int32, status domain.ItemStatus, now time.Time) (*domain.Item, error) {
	const method = "circulationService.SetItemStatus"
	logger.EnterMethod(method, "itemID", itemID, "status", status)

	if !status.Valid() {
		err := domain.Invalid("unknown item status %q", status)
		logger.ExitMethodWithError(method, err, "itemID", itemID)
		return nil, err
	}

	var item *domain.Item
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		current, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if current.Status == domain.ItemStatusCheckedOut || status == domain.ItemStatusCheckedOut {
			return domain.ErrInvalidTransition
		}
		if current.Status == status {
			item = current
			return nil
		}
		swapped, err := tx.Items().CompareAndSwapStatus(ctx, itemID, current.Status, status, now)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.ErrConflict
		}
		if err := recordAudit(ctx, tx, transition{domain.EntityItem, itemID, actorID, "set_status", string(current.Status), string(status), ""}, now); err != nil {
			return err
		}
		item, err = tx.Items().GetByID(ctx, itemID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "itemID", itemID)
		return nil, err
	}
	logger.ExitMethod(method, "itemID", itemID, "status", item.Status)
	return item, nil
}

var patronActions = map[string]domain.PatronStatus{
	"renew":  domain.PatronStatusActive,
	"freeze": domain.PatronStatusFrozen,
	"close":  domain.PatronStatusClosed,
}

// SetPatronStatus never touches the patron's existing borrowings.
func (s *circulationService) SetPatronStatus(ctx context.Context, actorID, patronID int32, action string, now time.Time) (*domain.Patron, error) {
	const method = "circulationService.SetPatronStatus"
	logger.EnterMethod(method, "patronID", patronID, "action", action)

	status, ok := patronActions[strings.ToLower(action)]
	if !ok {
		err := domain.Invalid("action must be renew, freeze or close")
		logger.ExitMethodWithError(method, err, "patronID", patronID)
		return nil, err
	}

	var patron *domain.Patron
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		current, err := tx.Patrons().GetForUpdate(ctx, patronID)
		if err != nil {
			return err
		}
		if current.Status == status {
			patron = current
			return nil
		}
		if err := tx.Patrons().UpdateStatus(ctx, patronID, status); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, transition{domain.EntityPatron, patronID, actorID, strings.ToLower(action), string(current.Status), string(status), ""}, now); err != nil {
			return err
		}
		current.Status = status
		patron = current
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "patronID", patronID)
		return nil, err
	}
	logger.ExitMethod(method, "patronID", patronID, "status", patron.Status)
	return patron, nil
}
