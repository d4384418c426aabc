package domain

import "time"

type ItemStatus string

const (
	ItemStatusAvailable   ItemStatus = "AVAILABLE"
	ItemStatusCheckedOut  ItemStatus = "CHECKED_OUT"
	ItemStatusReserved    ItemStatus = "RESERVED"
	ItemStatusUnderRepair ItemStatus = "UNDER_REPAIR"
	ItemStatusLost        ItemStatus = "LOST"
	ItemStatusDamaged     ItemStatus = "DAMAGED"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusAvailable, ItemStatusCheckedOut, ItemStatusReserved,
		ItemStatusUnderRepair, ItemStatusLost, ItemStatusDamaged:
		return true
	}
	return false
}

type ItemCondition string

const (
	ItemConditionNew       ItemCondition = "NEW"
	ItemConditionExcellent ItemCondition = "EXCELLENT"
	ItemConditionGood      ItemCondition = "GOOD"
	ItemConditionFair      ItemCondition = "FAIR"
	ItemConditionPoor      ItemCondition = "POOR"
)

// Item is one physical copy of a catalogued work. While checked out its
// status is written only by the borrowing that references it.
type Item struct {
	ID              int32         `json:"id"`
	Barcode         string        `json:"barcode"`
	Title           string        `json:"title"`
	Condition       ItemCondition `json:"condition"`
	Status          ItemStatus    `json:"status"`
	StatusChangedAt time.Time     `json:"status_changed_at"`
	Version         int32         `json:"version"`
}
