package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

const (
	DispatchSent    = "sent"
	DispatchFailed  = "failed"
	DispatchSkipped = "skipped"
)

type notificationService struct {
	store   repository.Store
	email   EmailService
	metrics metrics.MetricsCollector
}

func NewNotificationService(store repository.Store, email EmailService, m metrics.MetricsCollector) NotificationService {
	if m == nil {
		m = metrics.Nop{}
	}
	return &notificationService{store: store, email: email, metrics: m}
}

func (s *notificationService) DispatchPending(ctx context.Context, limit int32, now time.Time) (int, error) {
	const method = "notificationService.DispatchPending"
	logger.EnterMethod(method, "limit", limit)

	pending, err := s.store.Notifications().ListUndelivered(ctx, limit)
	if err != nil {
		logger.ExitMethodWithError(method, err)
		return 0, err
	}

	sent := 0
	for i := range pending {
		n := &pending[i]
		patron, err := s.store.Patrons().GetByID(ctx, n.RecipientID)
		if errors.Is(err, domain.ErrNotFound) {
			// Nobody to mail; mark it so the row stops coming back.
			logger.Warn("Notification recipient missing", "notificationID", n.ID, "recipientID", n.RecipientID)
			s.metrics.RecordDispatch(DispatchSkipped)
			if err := s.store.Notifications().MarkDelivered(ctx, n.ID, now); err != nil {
				logger.ExitMethodWithError(method, err, "notificationID", n.ID)
				return sent, err
			}
			continue
		}
		if err != nil {
			logger.ExitMethodWithError(method, err, "notificationID", n.ID)
			return sent, err
		}

		if err := s.email.SendNotification(ctx, patron.Email, patron.Name, n); err != nil {
			logger.Error("Failed to deliver notification", "notificationID", n.ID, "eventID", n.EventID, "error", err)
			s.metrics.RecordDispatch(DispatchFailed)
			continue
		}
		if err := s.store.Notifications().MarkDelivered(ctx, n.ID, now); err != nil {
			logger.ExitMethodWithError(method, err, "notificationID", n.ID)
			return sent, err
		}
		s.metrics.RecordDispatch(DispatchSent)
		sent++
	}

	logger.ExitMethod(method, "pending", len(pending), "sent", sent)
	return sent, nil
}

func (s *notificationService) EnqueueOverdueReminders(ctx context.Context, now time.Time) (int, error) {
	const method = "notificationService.EnqueueOverdueReminders"
	logger.EnterMethod(method, "now", now)

	count := 0
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		overdue, err := tx.Borrowings().ListActiveDueBefore(ctx, now)
		if err != nil {
			return err
		}
		for _, b := range overdue {
			days := utils.OverdueDays(b.DueAt, now)
			message := fmt.Sprintf("Your loan of item %d was due on %s and is %d day(s) overdue.", b.ItemID, formatDue(b.DueAt), days)
			attrs := map[string]string{
				"borrowing_id": itoa(b.ID),
				"item_id":      itoa(b.ItemID),
				"due_date":     formatDue(b.DueAt),
				"overdue_days": itoa(days),
			}
			if err := enqueueNotification(ctx, tx, b.PatronID, domain.NotificationOverdue, "Overdue reminder", message, attrs, now); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err)
		return 0, err
	}
	logger.ExitMethod(method, "enqueued", count)
	return count, nil
}

func (s *notificationService) List(ctx context.Context, recipientID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return s.store.Notifications().ListByRecipient(ctx, recipientID, pageSize, offset)
}

func (s *notificationService) UnreadCount(ctx context.Context, recipientID int32) (int32, error) {
	return s.store.Notifications().CountUnread(ctx, recipientID)
}

func (s *notificationService) MarkRead(ctx context.Context, recipientID, notificationID int32) error {
	const method = "notificationService.MarkRead"
	logger.EnterMethod(method, "recipientID", recipientID, "notificationID", notificationID)

	found, err := s.store.Notifications().MarkRead(ctx, recipientID, notificationID)
	if err == nil && !found {
		err = domain.NotFound("notification", notificationID)
	}
	if err != nil {
		logger.ExitMethodWithError(method, err, "notificationID", notificationID)
		return err
	}
	logger.ExitMethod(method, "notificationID", notificationID)
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipientID int32) (int32, error) {
	const method = "notificationService.MarkAllRead"
	logger.EnterMethod(method, "recipientID", recipientID)

	marked, err := s.store.Notifications().MarkAllRead(ctx, recipientID)
	if err != nil {
		logger.ExitMethodWithError(method, err, "recipientID", recipientID)
		return 0, err
	}
	logger.ExitMethod(method, "recipientID", recipientID, "marked", marked)
	return marked, nil
}
