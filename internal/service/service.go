package service

import (
	"context"
	"time"

	"library-circulation-backend/internal/domain"
)

type PolicyService interface {
	GetPlan(ctx context.Context, planID int32) (*domain.MembershipPlan, error)
	ListPlans(ctx context.Context) ([]domain.MembershipPlan, error)
	GetCategoryRules(ctx context.Context, category domain.Category) (*domain.CategoryRules, error)
}

type CirculationService interface {
	Checkout(ctx context.Context, actorID, patronID, itemID int32, now time.Time) (*domain.Borrowing, error)
	Renew(ctx context.Context, actorID, borrowingID int32, now time.Time) (*domain.RenewResult, error)
	Return(ctx context.Context, actorID, borrowingID int32, now time.Time) (*domain.ReturnResult, error)
	MarkLost(ctx context.Context, actorID, borrowingID int32, now time.Time) (*domain.Borrowing, error)
	ListBorrowings(ctx context.Context, filter domain.BorrowingFilter, now time.Time) ([]domain.BorrowingView, int32, error)
	ListOverdue(ctx context.Context, now time.Time) ([]domain.BorrowingView, error)

	PlaceHold(ctx context.Context, actor domain.Actor, patronID, itemID int32, now time.Time) (*domain.Hold, error)
	CancelHold(ctx context.Context, actor domain.Actor, holdID int32, now time.Time) error

	GetItemByBarcode(ctx context.Context, barcode string) (*domain.Item, error)
	SetItemStatus(ctx context.Context, actorID, itemID int32, status domain.ItemStatus, now time.Time) (*domain.Item, error)
	SetPatronStatus(ctx context.Context, actorID, patronID int32, action string, now time.Time) (*domain.Patron, error)
}

// ModerationService is the reviewer side of the content workflow.
type ModerationService interface {
	Approve(ctx context.Context, reviewerID int32, category domain.Category, submissionID int32, notes string, now time.Time) (*domain.Submission, error)
	Reject(ctx context.Context, reviewerID int32, category domain.Category, submissionID int32, notes string, now time.Time) (*domain.Submission, error)
	RequestChanges(ctx context.Context, reviewerID int32, category domain.Category, submissionID int32, notes string, now time.Time) (*domain.Submission, error)
	PendingQueue(ctx context.Context, category domain.Category) ([]domain.Submission, error)
	Stats(ctx context.Context, now time.Time) (*domain.ModerationStats, error)
}

// SubmissionService is the author side of the content workflow.
type SubmissionService interface {
	Create(ctx context.Context, authorID int32, category domain.Category, payload domain.Payload, submit bool, now time.Time) (*domain.Submission, error)
	Edit(ctx context.Context, authorID int32, category domain.Category, submissionID int32, payload domain.Payload, now time.Time) (*domain.Submission, error)
	Delete(ctx context.Context, authorID int32, category domain.Category, submissionID int32) error
	Submit(ctx context.Context, authorID int32, category domain.Category, submissionID int32, now time.Time) (*domain.Submission, error)
	Resubmit(ctx context.Context, authorID int32, category domain.Category, submissionID int32, now time.Time) (*domain.Submission, error)
	ListMine(ctx context.Context, authorID int32, category domain.Category, status domain.SubmissionStatus) ([]domain.Submission, error)
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (token string, expiresAt time.Time, err error)
}

type NotificationService interface {
	// DispatchPending mails undelivered outbox rows and returns how many were sent.
	DispatchPending(ctx context.Context, limit int32, now time.Time) (int, error)
	// EnqueueOverdueReminders writes one reminder per overdue borrowing.
	EnqueueOverdueReminders(ctx context.Context, now time.Time) (int, error)
	List(ctx context.Context, recipientID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	UnreadCount(ctx context.Context, recipientID int32) (int32, error)
	// MarkRead fails with not found when the notification belongs to someone else.
	MarkRead(ctx context.Context, recipientID, notificationID int32) error
	MarkAllRead(ctx context.Context, recipientID int32) (int32, error)
}

type EmailService interface {
	SendNotification(ctx context.Context, toEmail, toName string, n *domain.Notification) error
}
