package domain

import "time"

type PatronStatus string

const (
	PatronStatusActive PatronStatus = "ACTIVE"
	PatronStatusFrozen PatronStatus = "FROZEN"
	PatronStatusClosed PatronStatus = "CLOSED"
)

type Patron struct {
	ID        int32        `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	PlanID    int32        `json:"plan_id"`
	Status    PatronStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// MembershipPlan is looked up on every checkout and renewal, never mutated by the engine.
type MembershipPlan struct {
	ID                 int32         `json:"id"`
	Name               string        `json:"name"`
	MaxBooks           int32         `json:"max_books"`
	LoanDuration       time.Duration `json:"-"`
	LateFeePerDayCents int64         `json:"late_fee_per_day_cents"`
	// MaxRenewals of zero means renewals are not capped.
	MaxRenewals int32 `json:"max_renewals"`
}

func (p *MembershipPlan) LoanDays() int32 {
	return int32(p.LoanDuration / (24 * time.Hour))
}
