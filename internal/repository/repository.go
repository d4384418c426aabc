package repository

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
)

// Store runs fn inside one transaction. Repositories reached through tx see
// and write the same snapshot; any error from fn rolls every write back.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Tx
}

// Tx exposes the repositories bound to a single transaction.
type Tx interface {
	Items() ItemRepository
	Borrowings() BorrowingRepository
	Patrons() PatronRepository
	Plans() PlanRepository
	CategoryRules() CategoryRuleRepository
	Holds() HoldRepository
	Submissions() SubmissionRepository
	Audit() AuditRepository
	Notifications() NotificationRepository
}

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int32) (*domain.Item, error)
	GetByBarcode(ctx context.Context, barcode string) (*domain.Item, error)
	// CompareAndSwapStatus moves the item from -> to and reports false when
	// the stored status was not from.
	CompareAndSwapStatus(ctx context.Context, id int32, from, to domain.ItemStatus, at time.Time) (bool, error)
}

type BorrowingRepository interface {
	Create(ctx context.Context, b *domain.Borrowing) error
	GetByID(ctx context.Context, id int32) (*domain.Borrowing, error)
	// Update writes b when the stored version equals b.Version and bumps it.
	// It reports false when the version check fails.
	Update(ctx context.Context, b *domain.Borrowing) (bool, error)
	CountActiveByPatron(ctx context.Context, patronID int32) (int32, error)
	CountActiveByItem(ctx context.Context, itemID int32) (int32, error)
	List(ctx context.Context, filter domain.BorrowingFilter) ([]domain.Borrowing, int32, error)
	ListActiveDueBefore(ctx context.Context, t time.Time) ([]domain.Borrowing, error)
}

type PatronRepository interface {
	Create(ctx context.Context, p *domain.Patron) error
	GetByID(ctx context.Context, id int32) (*domain.Patron, error)
	// GetForUpdate locks the patron row until the transaction ends.
	GetForUpdate(ctx context.Context, id int32) (*domain.Patron, error)
	UpdateStatus(ctx context.Context, id int32, status domain.PatronStatus) error
}

type PlanRepository interface {
	Create(ctx context.Context, plan *domain.MembershipPlan) error
	GetByID(ctx context.Context, id int32) (*domain.MembershipPlan, error)
	List(ctx context.Context) ([]domain.MembershipPlan, error)
	// Update rewrites the plan row only; existing borrowings keep their due dates.
	Update(ctx context.Context, plan *domain.MembershipPlan) error
}

type CategoryRuleRepository interface {
	Get(ctx context.Context, category domain.Category) (*domain.CategoryRules, error)
}

type HoldRepository interface {
	Create(ctx context.Context, h *domain.Hold) error
	GetByID(ctx context.Context, id int32) (*domain.Hold, error)
	UpdateStatus(ctx context.Context, id int32, status domain.HoldStatus) error
	HasPendingByOtherPatron(ctx context.Context, itemID, patronID int32) (bool, error)
	GetPendingByPatronAndItem(ctx context.Context, patronID, itemID int32) (*domain.Hold, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *domain.Submission) error
	GetByID(ctx context.Context, id int32) (*domain.Submission, error)
	// Update writes s when the stored version equals s.Version and bumps it.
	Update(ctx context.Context, s *domain.Submission) (bool, error)
	Delete(ctx context.Context, id int32) error
	List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error)
	CountByStatus(ctx context.Context, status domain.SubmissionStatus) (map[domain.Category]int32, error)
	SlugExists(ctx context.Context, slug string, excludeID int32) (bool, error)
}

type AuditRepository interface {
	Create(ctx context.Context, e *domain.AuditEntry) error
	ListByEntity(ctx context.Context, entity domain.EntityType, id int32) ([]domain.AuditEntry, error)
	CountActionsSince(ctx context.Context, entity domain.EntityType, since time.Time) (map[string]int32, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListUndelivered(ctx context.Context, limit int32) ([]domain.Notification, error)
	MarkDelivered(ctx context.Context, id int32, at time.Time) error
	ListByRecipient(ctx context.Context, recipientID int32, limit, offset int32) ([]domain.Notification, int32, error)
	// MarkRead reports false when recipientID has no notification id.
	MarkRead(ctx context.Context, recipientID, id int32) (bool, error)
	MarkAllRead(ctx context.Context, recipientID int32) (int32, error)
	CountUnread(ctx context.Context, recipientID int32) (int32, error)
}
