package service

import (
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/pricing"

	"github.com/google/uuid"
)

type CreateBookingInput struct {
	UserID         uuid.UUID
	RoomCategoryID uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	RoomsBooked    int
	IdempotencyKey string // пусто: ключ выводится из параметров запроса

	ClientIP  string
	UserAgent string
}

type BookingResult struct {
	Booking        *models.Booking
	Quote          *pricing.Quote // nil, если бронь взята по ключу идемпотентности
	Deposit        pricing.Deposit
	IdempotencyKey string
	IsFromCache    bool
}

type QuoteInput struct {
	RoomCategoryID uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	RoomsBooked    int
}

type StayQuote struct {
	RoomCategory *models.RoomCategory
	Quote        pricing.Quote
	Deposit      pricing.Deposit
}

type NightAvailability struct {
	Night          time.Time `json:"night"`
	AvailableRooms int       `json:"available_rooms"`
	Blocked        bool      `json:"blocked"`
}
