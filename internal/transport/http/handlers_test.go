package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reservation-service/internal/apperror"
	"reservation-service/internal/cache"
	"reservation-service/internal/idempotency"
	"reservation-service/internal/integrity"
	"reservation-service/internal/models"
	"reservation-service/internal/producer"
	"reservation-service/internal/service"
	"reservation-service/internal/stay"
	"reservation-service/internal/storage/memory"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router   *gin.Engine
	store    *memory.Store
	bookings *service.ReservationService
	category models.RoomCategory
	userID   uuid.UUID
}

func newTestEnv(t *testing.T, totalRooms int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	store := memory.New(log)
	c := cache.NewMemory(cache.Config{Capacity: 1000}, log)
	keys := idempotency.NewManager(store, c, nil, log)

	bookings := service.NewReservationService(store, c, keys, producer.Noop{}, log)
	catalog := service.NewCatalogService(store, c, log)
	checker := integrity.NewChecker(store, log)
	t.Cleanup(bookings.Wait)

	cat := models.RoomCategory{Name: "Standard", TotalRooms: totalRooms, BasePriceCents: 10000, CurrencyCode: "RUB"}
	require.NoError(t, store.CreateRoomCategory(context.Background(), &cat))

	return &testEnv{
		router:   Router(bookings, catalog, checker, log),
		store:    store,
		bookings: bookings,
		category: cat,
		userID:   uuid.New(),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) book(t *testing.T, start time.Time, nights, rooms int, key string) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{HeaderUserID: e.userID.String()}
	if key != "" {
		headers[HeaderIdempotencyKey] = key
	}
	return e.do(t, http.MethodPost, "/api/v1/bookings", CreateBookingRequest{
		RoomCategoryID: e.category.ID.String(),
		StartDate:      start.Format(stay.DateLayout),
		EndDate:        start.AddDate(0, 0, nights).Format(stay.DateLayout),
		RoomsBooked:    rooms,
	}, headers)
}

func futureDay(days int) time.Time {
	return stay.Day(time.Now().UTC()).AddDate(0, 0, days)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 1)
	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateBooking_CreatedThenReplayed(t *testing.T) {
	env := newTestEnv(t, 5)
	start := futureDay(30)

	first := env.book(t, start, 2, 3, "client-key-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := decode[CreateBookingResponse](t, first)
	assert.False(t, created.IsFromCache)
	assert.Equal(t, "client-key-1", created.IdempotencyKey)
	assert.Equal(t, int64(60000), created.Booking.TotalPriceCents)
	assert.Len(t, created.PerNight, 2)

	second := env.book(t, start, 2, 3, "client-key-1")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	replayed := decode[CreateBookingResponse](t, second)
	assert.True(t, replayed.IsFromCache)
	assert.Equal(t, created.Booking.ID, replayed.Booking.ID)

	avail := env.do(t, http.MethodGet, "/api/v1/room-categories/"+env.category.ID.String()+
		"/availability?start_date="+start.Format(stay.DateLayout)+
		"&end_date="+start.AddDate(0, 0, 2).Format(stay.DateLayout), nil, nil)
	require.Equal(t, http.StatusOK, avail.Code)
	for _, n := range decode[AvailabilityResponse](t, avail).Nights {
		assert.Equal(t, 2, n.AvailableRooms, n.Night)
	}
}

func TestCreateBooking_DerivedKeyWithoutHeader(t *testing.T) {
	env := newTestEnv(t, 5)
	start := futureDay(10)

	first := env.book(t, start, 1, 1, "")
	require.Equal(t, http.StatusCreated, first.Code)
	second := env.book(t, start, 1, 1, "")
	require.Equal(t, http.StatusOK, second.Code)

	a := decode[CreateBookingResponse](t, first)
	b := decode[CreateBookingResponse](t, second)
	assert.Equal(t, a.Booking.ID, b.Booking.ID)
	assert.Contains(t, a.IdempotencyKey, "bk_")
}

func TestCreateBooking_Errors(t *testing.T) {
	env := newTestEnv(t, 2)
	start := futureDay(20)

	t.Run("insufficient inventory", func(t *testing.T) {
		w := env.book(t, start, 2, 3, "")
		require.Equal(t, http.StatusConflict, w.Code)
		body := decode[BaseError](t, w)
		assert.Equal(t, "INSUFFICIENT_INVENTORY", body.Code)
		require.NotNil(t, body.Available)
		require.NotNil(t, body.Requested)
		assert.Equal(t, 2, *body.Available)
		assert.Equal(t, 3, *body.Requested)
		assert.False(t, body.Retryable)
	})

	t.Run("end before start", func(t *testing.T) {
		w := env.book(t, start, -1, 1, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_DATE_RANGE", decode[BaseError](t, w).Code)
	})

	t.Run("malformed date", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
			"room_category_id": env.category.ID.String(),
			"start_date":       "15.10.2030",
			"end_date":         "2030-10-16",
			"rooms_booked":     1,
		}, map[string]string{HeaderUserID: env.userID.String()})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_DATE_RANGE", decode[BaseError](t, w).Code)
	})

	t.Run("missing user", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/bookings", CreateBookingRequest{
			RoomCategoryID: env.category.ID.String(),
			StartDate:      start.Format(stay.DateLayout),
			EndDate:        start.AddDate(0, 0, 1).Format(stay.DateLayout),
			RoomsBooked:    1,
		}, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[BaseError](t, w).Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/bookings", CreateBookingRequest{
			RoomCategoryID: uuid.NewString(),
			StartDate:      start.Format(stay.DateLayout),
			EndDate:        start.AddDate(0, 0, 1).Format(stay.DateLayout),
			RoomsBooked:    1,
		}, map[string]string{HeaderUserID: env.userID.String()})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "ROOM_TYPE_NOT_FOUND", decode[BaseError](t, w).Code)
	})

	t.Run("key reused with other parameters", func(t *testing.T) {
		require.Equal(t, http.StatusCreated, env.book(t, start, 1, 1, "reused").Code)
		w := env.book(t, start, 1, 2, "reused")
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "IDEMPOTENCY_CONFLICT", decode[BaseError](t, w).Code)
	})
}

func TestCreateBooking_BlockedDate(t *testing.T) {
	env := newTestEnv(t, 5)
	start := futureDay(40)

	w := env.do(t, http.MethodPost, "/api/v1/admin/special-days", SpecialDayRequest{
		Date: start.AddDate(0, 0, 1).Format(stay.DateLayout),
		Kind: string(models.SpecialDayBlocked),
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.book(t, start, 3, 1, "")
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[BaseError](t, w)
	assert.Equal(t, "DATE_BLOCKED", body.Code)
	assert.Equal(t, []string{start.AddDate(0, 0, 1).Format(stay.DateLayout)}, body.Dates)
}

func TestQuote_SpecialRateAndDeposit(t *testing.T) {
	env := newTestEnv(t, 50)
	start := futureDay(60)
	fixed := int64(20000)

	w := env.do(t, http.MethodPost, "/api/v1/admin/special-days", SpecialDayRequest{
		Date:            start.Format(stay.DateLayout),
		RoomCategoryID:  ptr(env.category.ID.String()),
		Kind:            string(models.SpecialDaySpecialRate),
		FixedPriceCents: &fixed,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/admin/deposit-policies", DepositPolicyRequest{
		MinRooms: 10, MaxRooms: 19, Type: string(models.DepositPercent), Value: 20,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/quotes", QuoteRequest{
		RoomCategoryID: env.category.ID.String(),
		StartDate:      start.Format(stay.DateLayout),
		EndDate:        start.AddDate(0, 0, 2).Format(stay.DateLayout),
		RoomsBooked:    10,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	q := decode[QuoteResponse](t, w)
	assert.Equal(t, int64(30000), q.NightlySumCents)
	assert.Equal(t, int64(300000), q.TotalCents)
	assert.Equal(t, "FIXED", q.PerNight[0].Source)
	assert.True(t, q.Deposit.Required)
	assert.Equal(t, int64(60000), q.Deposit.AmountCents)
}

func TestAdmin_Conflicts(t *testing.T) {
	env := newTestEnv(t, 5)

	w := env.do(t, http.MethodPost, "/api/v1/admin/room-categories", RoomCategoryRequest{Name: "standard", TotalRooms: 3}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RULE_CONFLICT", decode[BaseError](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/deposit-policies", DepositPolicyRequest{
		MinRooms: 10, MaxRooms: 19, Type: "PERCENT", Value: 20,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/admin/deposit-policies", DepositPolicyRequest{
		MinRooms: 15, MaxRooms: 30, Type: "FIXED", Value: 50000,
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/deposit-policies", DepositPolicyRequest{
		MinRooms: 40, MaxRooms: 50, Type: "PERCENT", Value: 150,
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[BaseError](t, w)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.NotEmpty(t, body.Fields)

	w = env.do(t, http.MethodGet, "/api/v1/admin/integrity", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[IntegrityResponse](t, w).OK)
}

func TestAdmin_ShrinkBelowBooked(t *testing.T) {
	env := newTestEnv(t, 5)
	require.Equal(t, http.StatusCreated, env.book(t, futureDay(5), 1, 4, "").Code)

	w := env.do(t, http.MethodPatch, "/api/v1/admin/room-categories/"+env.category.ID.String(),
		RoomCategoryPatchRequest{TotalRooms: ptr(2)}, nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = env.do(t, http.MethodPatch, "/api/v1/admin/room-categories/"+env.category.ID.String(),
		RoomCategoryPatchRequest{TotalRooms: ptr(8)}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 8, decode[RoomCategoryResponse](t, w).TotalRooms)
}

type failingBookings struct {
	BookingService
	err error
}

func (f failingBookings) CreateBooking(context.Context, service.CreateBookingInput) (*service.BookingResult, error) {
	return nil, f.err
}

func TestCreateBooking_RetryableErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, err := range []error{
		apperror.TransactionTimeout(context.DeadlineExceeded),
		apperror.ConcurrencyAbort(errors.New("serialization failure")),
	} {
		r := Router(failingBookings{err: err}, nil, nil, zap.NewNop())
		body, _ := json.Marshal(CreateBookingRequest{
			RoomCategoryID: uuid.NewString(),
			StartDate:      "2030-01-01",
			EndDate:        "2030-01-02",
			RoomsBooked:    1,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewReader(body))
		req.Header.Set(HeaderUserID, uuid.NewString())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.True(t, decode[BaseError](t, w).Retryable)
	}
}

func TestCreateBooking_UnknownErrorIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := Router(failingBookings{err: errors.New("boom")}, nil, nil, zap.NewNop())
	body, _ := json.Marshal(CreateBookingRequest{
		RoomCategoryID: uuid.NewString(), StartDate: "2030-01-01", EndDate: "2030-01-02", RoomsBooked: 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewReader(body))
	req.Header.Set(HeaderUserID, uuid.NewString())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode[BaseError](t, w).Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func ptr[T any](v T) *T { return &v }
