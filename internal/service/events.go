package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

// transition is one audited state change together with the notification it emits.
type transition struct {
	entity  domain.EntityType
	id      int32
	actorID int32
	action  string
	from    string
	to      string
	notes   string
}

func recordAudit(ctx context.Context, tx repository.Tx, t transition, now time.Time) error {
	entry := &domain.AuditEntry{
		EntityType: t.entity,
		EntityID:   t.id,
		ActorID:    t.actorID,
		Action:     t.action,
		FromStatus: t.from,
		ToStatus:   t.to,
		Notes:      t.notes,
		CreatedAt:  now,
	}
	if err := tx.Audit().Create(ctx, entry); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func enqueueNotification(ctx context.Context, tx repository.Tx, recipientID int32, typ domain.NotificationType, title, message string, attrs map[string]string, now time.Time) error {
	n := &domain.Notification{
		EventID:     uuid.NewString(),
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		Attributes:  attrs,
		CreatedAt:   now,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func itoa(v int32) string {
	return strconv.Itoa(int(v))
}

func formatDue(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
