package http

import (
	"time"

	"reservation-service/internal/integrity"
	"reservation-service/internal/models"
	"reservation-service/internal/pricing"
	"reservation-service/internal/service"
	"reservation-service/internal/stay"
)

// BaseError универсальный формат ошибки.
// Code: код движка (INSUFFICIENT_INVENTORY, DATE_BLOCKED, ...), по нему клиент решает, повторять ли запрос.
// Dates/Available/Requested заполняются для ошибок вместимости и закрытых дат.
type BaseError struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
	Dates     []string     `json:"dates,omitempty"`
	Available *int         `json:"available,omitempty"`
	Requested *int         `json:"requested,omitempty"`
	Retryable bool         `json:"retryable"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

func NewValidationError(msg string, fields []FieldError) BaseError {
	return BaseError{Code: "VALIDATION_ERROR", Message: msg, Fields: fields}
}

func NewInternalError(details string) BaseError {
	return BaseError{Code: "INTERNAL_ERROR", Message: "internal server error", Details: details}
}

type CreateBookingRequest struct {
	RoomCategoryID string `json:"room_category_id" binding:"required,uuid"`
	StartDate      string `json:"start_date" binding:"required"`
	EndDate        string `json:"end_date" binding:"required"`
	RoomsBooked    int    `json:"rooms_booked"`
}

type QuoteRequest struct {
	RoomCategoryID string `json:"room_category_id" binding:"required,uuid"`
	StartDate      string `json:"start_date" binding:"required"`
	EndDate        string `json:"end_date" binding:"required"`
	RoomsBooked    int    `json:"rooms_booked"`
}

type BookingResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	RoomCategoryID  string    `json:"room_category_id"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	RoomsBooked     int       `json:"rooms_booked"`
	Status          string    `json:"status"`
	TotalPriceCents int64     `json:"total_price_cents"`
	CurrencyCode    string    `json:"currency_code"`
	DepositRequired bool      `json:"deposit_required"`
	DepositCents    *int64    `json:"deposit_cents,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type CreateBookingResponse struct {
	Booking        BookingResponse `json:"booking"`
	PerNight       []NightPrice    `json:"per_night,omitempty"`
	Deposit        DepositResponse `json:"deposit"`
	IdempotencyKey string          `json:"idempotency_key"`
	IsFromCache    bool            `json:"is_from_cache"`
}

type NightPrice struct {
	Night      string `json:"night"`
	PriceCents int64  `json:"price_cents"`
	Source     string `json:"source"`
}

type DepositResponse struct {
	Required    bool   `json:"required"`
	AmountCents int64  `json:"amount_cents"`
	PolicyID    string `json:"policy_id,omitempty"`
}

type QuoteResponse struct {
	RoomCategoryID  string          `json:"room_category_id"`
	RoomsBooked     int             `json:"rooms_booked"`
	PerNight        []NightPrice    `json:"per_night"`
	NightlySumCents int64           `json:"nightly_sum_cents"`
	TotalCents      int64           `json:"total_cents"`
	CurrencyCode    string          `json:"currency_code"`
	Deposit         DepositResponse `json:"deposit"`
}

type AvailabilityResponse struct {
	RoomCategoryID string              `json:"room_category_id"`
	Nights         []NightAvailability `json:"nights"`
}

type NightAvailability struct {
	Night          string `json:"night"`
	AvailableRooms int    `json:"available_rooms"`
	Blocked        bool   `json:"blocked"`
}

type RoomCategoryRequest struct {
	Name           string `json:"name" binding:"required"`
	TotalRooms     int    `json:"total_rooms"`
	BasePriceCents int64  `json:"base_price_cents"`
	CurrencyCode   string `json:"currency_code"`
}

type RoomCategoryPatchRequest struct {
	Name           *string `json:"name"`
	TotalRooms     *int    `json:"total_rooms"`
	BasePriceCents *int64  `json:"base_price_cents"`
}

type RoomCategoryResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	TotalRooms     int    `json:"total_rooms"`
	BasePriceCents int64  `json:"base_price_cents"`
	CurrencyCode   string `json:"currency_code"`
}

type SpecialDayRequest struct {
	Date            string   `json:"date" binding:"required"`
	RoomCategoryID  *string  `json:"room_category_id" binding:"omitempty,uuid"`
	Kind            string   `json:"kind" binding:"required"`
	Multiplier      *float64 `json:"multiplier"`
	FixedPriceCents *int64   `json:"fixed_price_cents"`
	IsActive        *bool    `json:"is_active"`
	Description     string   `json:"description"`
}

type SpecialDayResponse struct {
	ID              string   `json:"id"`
	Date            string   `json:"date"`
	RoomCategoryID  *string  `json:"room_category_id"`
	Kind            string   `json:"kind"`
	Multiplier      *float64 `json:"multiplier,omitempty"`
	FixedPriceCents *int64   `json:"fixed_price_cents,omitempty"`
	IsActive        bool     `json:"is_active"`
	Description     string   `json:"description,omitempty"`
}

type DepositPolicyRequest struct {
	MinRooms    int     `json:"min_rooms"`
	MaxRooms    int     `json:"max_rooms"`
	Type        string  `json:"type" binding:"required"`
	Value       float64 `json:"value"`
	IsActive    *bool   `json:"is_active"`
	Description string  `json:"description"`
}

type DepositPolicyResponse struct {
	ID          string  `json:"id"`
	MinRooms    int     `json:"min_rooms"`
	MaxRooms    int     `json:"max_rooms"`
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	IsActive    bool    `json:"is_active"`
	Description string  `json:"description,omitempty"`
}

type ActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type IntegrityResponse struct {
	OK     bool              `json:"ok"`
	Issues []integrity.Issue `json:"issues"`
}

func toBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID.String(),
		UserID:          b.UserID.String(),
		RoomCategoryID:  b.RoomCategoryID.String(),
		StartDate:       b.StartDate.Format(stay.DateLayout),
		EndDate:         b.EndDate.Format(stay.DateLayout),
		RoomsBooked:     b.RoomsBooked,
		Status:          string(b.Status),
		TotalPriceCents: b.TotalPriceCents,
		CurrencyCode:    b.CurrencyCode,
		DepositRequired: b.DepositRequired,
		DepositCents:    b.DepositCents,
		CreatedAt:       b.CreatedAt,
	}
}

func toNightPrices(q pricing.Quote) []NightPrice {
	out := make([]NightPrice, 0, len(q.PerNight))
	for _, n := range q.PerNight {
		out = append(out, NightPrice{
			Night:      n.Night.Format(stay.DateLayout),
			PriceCents: n.PriceCents,
			Source:     string(n.Source),
		})
	}
	return out
}

func toDepositResponse(d pricing.Deposit) DepositResponse {
	out := DepositResponse{Required: d.Required, AmountCents: d.AmountCents}
	if d.PolicyID != nil {
		out.PolicyID = d.PolicyID.String()
	}
	return out
}

func toCreateBookingResponse(res *service.BookingResult) CreateBookingResponse {
	out := CreateBookingResponse{
		Booking:        toBookingResponse(res.Booking),
		Deposit:        toDepositResponse(res.Deposit),
		IdempotencyKey: res.IdempotencyKey,
		IsFromCache:    res.IsFromCache,
	}
	if res.Quote != nil {
		out.PerNight = toNightPrices(*res.Quote)
	}
	return out
}

func toRoomCategoryResponse(c *models.RoomCategory) RoomCategoryResponse {
	return RoomCategoryResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		TotalRooms:     c.TotalRooms,
		BasePriceCents: c.BasePriceCents,
		CurrencyCode:   c.CurrencyCode,
	}
}

func toSpecialDayResponse(d *models.SpecialDay) SpecialDayResponse {
	out := SpecialDayResponse{
		ID:              d.ID.String(),
		Date:            d.Date.Format(stay.DateLayout),
		Kind:            string(d.Kind),
		Multiplier:      d.Multiplier,
		FixedPriceCents: d.FixedPriceCents,
		IsActive:        d.IsActive,
		Description:     d.Description,
	}
	if d.RoomCategoryID != nil {
		id := d.RoomCategoryID.String()
		out.RoomCategoryID = &id
	}
	return out
}

func toDepositPolicyResponse(p *models.DepositPolicy) DepositPolicyResponse {
	return DepositPolicyResponse{
		ID:          p.ID.String(),
		MinRooms:    p.MinRooms,
		MaxRooms:    p.MaxRooms,
		Type:        string(p.Type),
		Value:       p.Value,
		IsActive:    p.IsActive,
		Description: p.Description,
	}
}
