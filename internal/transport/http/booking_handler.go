package http

import (
	"context"
	"net/http"
	"time"

	"reservation-service/internal/apperror"
	"reservation-service/internal/models"
	"reservation-service/internal/service"
	"reservation-service/internal/stay"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderUserID         = "X-User-ID"
	HeaderReplayed       = "Idempotent-Replayed"
)

type BookingService interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*service.BookingResult, error)
	QuoteStay(ctx context.Context, in service.QuoteInput) (*service.StayQuote, error)
	GetAvailability(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]service.NightAvailability, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
}

type BookingHandler struct {
	svc BookingService
	log *zap.Logger
}

func NewBookingHandler(svc BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, log: log}
}

// CreateBooking POST /api/v1/bookings
// Повтор с тем же Idempotency-Key (или теми же параметрами без ключа) возвращает 200 и ту же бронь.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, err := uuid.Parse(c.GetHeader(HeaderUserID))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("user id required",
			[]FieldError{{Field: HeaderUserID, Message: "must be a valid uuid", Tag: "uuid"}}))
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	start, end, ok := parseStay(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	res, err := h.svc.CreateBooking(c.Request.Context(), service.CreateBookingInput{
		UserID:         userID,
		RoomCategoryID: uuid.MustParse(req.RoomCategoryID),
		StartDate:      start,
		EndDate:        end,
		RoomsBooked:    req.RoomsBooked,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
		ClientIP:       c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Header(HeaderIdempotencyKey, res.IdempotencyKey)
	status := http.StatusCreated
	if res.IsFromCache {
		c.Header(HeaderReplayed, "true")
		status = http.StatusOK
	}
	c.JSON(status, toCreateBookingResponse(res))
}

// Quote POST /api/v1/quotes
func (h *BookingHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	start, end, ok := parseStay(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	q, err := h.svc.QuoteStay(c.Request.Context(), service.QuoteInput{
		RoomCategoryID: uuid.MustParse(req.RoomCategoryID),
		StartDate:      start,
		EndDate:        end,
		RoomsBooked:    req.RoomsBooked,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, QuoteResponse{
		RoomCategoryID:  q.RoomCategory.ID.String(),
		RoomsBooked:     q.Quote.RoomsBooked,
		PerNight:        toNightPrices(q.Quote),
		NightlySumCents: q.Quote.NightlySumCents,
		TotalCents:      q.Quote.TotalCents,
		CurrencyCode:    q.RoomCategory.CurrencyCode,
		Deposit:         toDepositResponse(q.Deposit),
	})
}

// Availability GET /api/v1/room-categories/:id/availability?start_date=&end_date=
func (h *BookingHandler) Availability(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	start, end, ok := parseStay(c, c.Query("start_date"), c.Query("end_date"))
	if !ok {
		return
	}

	nights, err := h.svc.GetAvailability(c.Request.Context(), id, start, end)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := AvailabilityResponse{RoomCategoryID: id.String(), Nights: make([]NightAvailability, 0, len(nights))}
	for _, n := range nights {
		resp.Nights = append(resp.Nights, NightAvailability{
			Night:          n.Night.Format(stay.DateLayout),
			AvailableRooms: n.AvailableRooms,
			Blocked:        n.Blocked,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetBooking GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

// ListUserBookings GET /api/v1/users/:id/bookings
func (h *BookingHandler) ListUserBookings(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListUserBookings(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]BookingResponse, 0, len(list))
	for i := range list {
		out = append(out, toBookingResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid id",
			[]FieldError{{Field: name, Message: "must be a valid uuid", Tag: "uuid"}}))
		return uuid.Nil, false
	}
	return id, true
}

// parseStay разбирает даты YYYY-MM-DD; неверный формат: INVALID_DATE_RANGE.
func parseStay(c *gin.Context, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	start, err := stay.ParseDay(rawStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, toBaseError(apperror.InvalidDateRange("start_date must be YYYY-MM-DD")))
		return time.Time{}, time.Time{}, false
	}
	end, err := stay.ParseDay(rawEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, toBaseError(apperror.InvalidDateRange("end_date must be YYYY-MM-DD")))
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
