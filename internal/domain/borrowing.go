package domain

import "time"

type BorrowingStatus string

const (
	BorrowingStatusActive   BorrowingStatus = "ACTIVE"
	BorrowingStatusReturned BorrowingStatus = "RETURNED"
	BorrowingStatusLost     BorrowingStatus = "LOST"
)

type Borrowing struct {
	ID           int32           `json:"id"`
	ItemID       int32           `json:"item_id"`
	PatronID     int32           `json:"patron_id"`
	CheckoutAt   time.Time       `json:"checkout_at"`
	DueAt        time.Time       `json:"due_at"`
	ReturnedAt   *time.Time      `json:"returned_at,omitempty"`
	RenewalCount int32           `json:"renewal_count"`
	Status       BorrowingStatus `json:"status"`
	LateFeeCents int64           `json:"late_fee_cents"`
	Version      int32           `json:"version"`
}

// IsOverdue is evaluated at read time only; overdue is never stored.
func (b *Borrowing) IsOverdue(now time.Time) bool {
	return b.Status == BorrowingStatusActive && now.After(b.DueAt)
}

// BorrowingView is a borrowing with its read-time overdue flag.
type BorrowingView struct {
	Borrowing
	IsOverdue bool `json:"is_overdue"`
}

type BorrowingFilter struct {
	PatronID *int32
	Status   BorrowingStatus
	Page     int32
	PageSize int32
}

type HoldStatus string

const (
	HoldStatusPending   HoldStatus = "PENDING"
	HoldStatusFulfilled HoldStatus = "FULFILLED"
	HoldStatusCancelled HoldStatus = "CANCELLED"
)

// Hold is a patron's place in the queue for an item.
type Hold struct {
	ID        int32      `json:"id"`
	ItemID    int32      `json:"item_id"`
	PatronID  int32      `json:"patron_id"`
	Status    HoldStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// RenewResult reports the renewed borrowing. RenewalsRemaining is nil when
// the plan does not cap renewals.
type RenewResult struct {
	Borrowing         Borrowing
	RenewalsRemaining *int32
}

type ReturnResult struct {
	Borrowing    Borrowing
	OverdueDays  int32
	LateFeeCents int64
}
