package models

import (
	"time"

	"github.com/google/uuid"
)

type RoomCategoryPatch struct {
	Name           *string
	TotalRooms     *int
	BasePriceCents *int64
}

// SpecialDayFilter: нулевые From/To означают отсутствие границы, To не включается.
type SpecialDayFilter struct {
	RoomCategoryID *uuid.UUID
	// WithWildcard: вместе с правилами категории вернуть правила для всех категорий.
	WithWildcard bool
	From         time.Time
	To           time.Time
	OnlyActive   bool
}

func (f SpecialDayFilter) Match(d *SpecialDay) bool {
	if f.OnlyActive && !d.IsActive {
		return false
	}
	if !f.From.IsZero() && d.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !d.Date.Before(f.To) {
		return false
	}
	if f.RoomCategoryID == nil {
		return true
	}
	if d.RoomCategoryID == nil {
		return f.WithWildcard
	}
	return *d.RoomCategoryID == *f.RoomCategoryID
}

// LedgerDrift: ночь, где остаток в леджере не сходится с активными бронями.
type LedgerDrift struct {
	RoomCategoryID uuid.UUID
	Night          time.Time
	AvailableRooms int
	ExpectedRooms  int
}
