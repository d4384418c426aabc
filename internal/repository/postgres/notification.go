package postgres

import (
	"context"
	"encoding/json"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type notificationRepository struct {
	q Querier
}

func NewNotificationRepository(q Querier) repository.NotificationRepository {
	return &notificationRepository{q: q}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	logger.EnterMethod("notificationRepository.Create", "recipientID", n.RecipientID, "type", n.Type)

	attrs, err := json.Marshal(n.Attributes)
	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "reason", "failed to marshal attributes")
		return err
	}

	query := `INSERT INTO notifications (event_id, recipient_id, type, title, message, attributes, is_read, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7) RETURNING id`
	logger.StoreCall("INSERT", "notifications", "recipientID", n.RecipientID, "eventID", n.EventID)
	err = r.q.QueryRowContext(ctx, query, n.EventID, n.RecipientID, n.Type, n.Title, n.Message, attrs, n.CreatedAt).Scan(&n.ID)
	logger.StoreResult("INSERT", 1, err, "notificationID", n.ID)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "recipientID", n.RecipientID)
		return err
	}
	logger.ExitMethod("notificationRepository.Create", "notificationID", n.ID)
	return nil
}

const notificationColumns = `id, event_id, recipient_id, type, title, message, attributes, is_read, created_at, delivered_at`

func scanNotification(s scanner) (domain.Notification, error) {
	var (
		n     domain.Notification
		attrs []byte
	)
	if err := s.Scan(&n.ID, &n.EventID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &attrs, &n.IsRead, &n.CreatedAt, &n.DeliveredAt); err != nil {
		return n, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &n.Attributes); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (r *notificationRepository) ListUndelivered(ctx context.Context, limit int32) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE delivered_at IS NULL ORDER BY id ASC LIMIT $1`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id int32, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `UPDATE notifications SET delivered_at = $1 WHERE id = $2 AND delivered_at IS NULL`, at, id)
	return err
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	var count int32
	if err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE recipient_id = $1`, recipientID).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.QueryContext(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}
	return notes, count, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id int32) (bool, error) {
	logger.StoreCall("UPDATE", "notifications", "notificationID", id, "recipientID", recipientID)
	res, err := r.q.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		logger.StoreResult("UPDATE", 0, err, "notificationID", id)
		return false, err
	}
	n, err := res.RowsAffected()
	logger.StoreResult("UPDATE", n, err, "notificationID", id)
	return n > 0, err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID int32) (int32, error) {
	logger.StoreCall("UPDATE", "notifications", "recipientID", recipientID)
	res, err := r.q.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`, recipientID)
	if err != nil {
		logger.StoreResult("UPDATE", 0, err, "recipientID", recipientID)
		return 0, err
	}
	n, err := res.RowsAffected()
	logger.StoreResult("UPDATE", n, err, "recipientID", recipientID)
	return int32(n), err
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID int32) (int32, error) {
	var count int32
	err := r.q.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`, recipientID).Scan(&count)
	return count, err
}
