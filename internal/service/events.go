package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BookingCreatedEvent struct {
	BookingID       uuid.UUID `json:"booking_id"`
	UserID          uuid.UUID `json:"user_id"`
	RoomCategoryID  uuid.UUID `json:"room_category_id"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	RoomsBooked     int       `json:"rooms_booked"`
	TotalCents      int64     `json:"total_cents"`
	Currency        string    `json:"currency"`
	DepositRequired bool      `json:"deposit_required"`
	DepositCents    *int64    `json:"deposit_cents,omitempty"`
	IdempotencyKey  string    `json:"idempotency_key"`
	CreatedAt       time.Time `json:"created_at"`
}

// EventBus: аудит/уведомления. Ошибка публикации не откатывает бронь.
type EventBus interface {
	PublishBookingCreated(ctx context.Context, e BookingCreatedEvent) error
}
