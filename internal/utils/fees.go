package utils

import (
	"fmt"
	"time"
)

const (
	day        = 24 * time.Hour
	DateLayout = "2006-01-02"
)

// OverdueDays is the number of started days past due, zero when not late.
func OverdueDays(due, returned time.Time) int32 {
	if !returned.After(due) {
		return 0
	}
	late := returned.Sub(due)
	days := late / day
	if late%day != 0 {
		days++
	}
	return int32(days)
}

// LateFeeCents returns overdue days times the daily rate.
func LateFeeCents(overdueDays int32, perDayCents int64) int64 {
	if overdueDays <= 0 || perDayCents <= 0 {
		return 0
	}
	return int64(overdueDays) * perDayCents
}

// RenewedDue extends from the later of now and the current due date, so a
// renewal never moves the due date backwards.
func RenewedDue(now, due time.Time, loan time.Duration) time.Time {
	base := due
	if now.After(due) {
		base = now
	}
	return base.Add(loan)
}

// CentsToAmount formats cents as a currency amount with two decimals.
func CentsToAmount(cents int64) float64 {
	return float64(cents) / 100
}

// ParseReturnDate accepts an RFC 3339 timestamp or a yyyy-mm-dd date. A bare
// date is taken as midnight UTC, so a same-day return is never charged.
func ParseReturnDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format, expected yyyy-mm-dd or RFC 3339")
	}
	return d, nil
}
