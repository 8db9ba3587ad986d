package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reservation-service/internal/apperror"
	"reservation-service/internal/cache"
	"reservation-service/internal/idempotency"
	"reservation-service/internal/models"
	"reservation-service/internal/pricing"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReservationService struct {
	store  Store
	cache  cache.Cache
	inv    *cache.Invalidator
	keys   KeyManager
	events EventBus
	log    *zap.Logger

	now     func() time.Time
	onPhase func(key string, p models.ReservationPhase)

	pending sync.WaitGroup
}

type Option func(*ReservationService)

func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// WithPhaseObserver получает каждую смену фазы попытки бронирования.
func WithPhaseObserver(fn func(key string, p models.ReservationPhase)) Option {
	return func(s *ReservationService) { s.onPhase = fn }
}

func NewReservationService(store Store, c cache.Cache, keys KeyManager, events EventBus, log *zap.Logger, opts ...Option) *ReservationService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ReservationService{
		store:  store,
		cache:  c,
		inv:    cache.NewInvalidator(c, log),
		keys:   keys,
		events: events,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait дожидается фоновых публикаций событий.
func (s *ReservationService) Wait() { s.pending.Wait() }

func (s *ReservationService) CreateBooking(ctx context.Context, in CreateBookingInput) (*BookingResult, error) {
	s.phase("", models.PhaseValidating)

	r, err := s.validateStay(in.StartDate, in.EndDate, in.RoomsBooked)
	if err != nil {
		return nil, err
	}

	req := idempotency.Request{
		UserID:         in.UserID,
		RoomCategoryID: in.RoomCategoryID,
		StartDate:      r.Start,
		EndDate:        r.End,
		RoomsBooked:    in.RoomsBooked,
	}
	key, hash, err := s.keys.Resolve(in.IdempotencyKey, req)
	if err != nil {
		return nil, err
	}

	// 1. повтор запроса: отдаём уже созданную бронь, даже если заезд уже в прошлом
	if res, err := s.replay(ctx, key, hash); err != nil || res != nil {
		return res, err
	}
	if r.Start.Before(stay.Day(s.now().UTC())) {
		return nil, apperror.Wrap(apperror.CodeInvalidDateRange, "", ErrStartInPast)
	}

	// 2. категория
	cat, err := s.roomCategory(ctx, in.RoomCategoryID)
	if err != nil {
		return nil, err
	}

	// 3. дешёвый отказ до блокировок
	if in.RoomsBooked > cat.TotalRooms {
		return nil, apperror.InsufficientInventory(r.Start, cat.TotalRooms, in.RoomsBooked)
	}

	// 4. закрытые ночи
	nights := r.Nights()
	rules, err := s.rules(ctx, cat.ID, r)
	if err != nil {
		return nil, err
	}
	if blocked := rules.Blocked(nights); len(blocked) > 0 {
		return nil, apperror.DateBlocked(blocked)
	}

	quote, err := pricing.PriceStay(nights, cat.BasePriceCents, in.RoomsBooked, rules)
	if err != nil {
		return nil, priceErr(err)
	}
	deposit, err := s.deposit(ctx, in.RoomsBooked, quote.TotalCents)
	if err != nil {
		return nil, err
	}

	// 5. транзакция
	now := s.now().UTC()
	booking := &models.Booking{
		ID:              uuid.New(),
		UserID:          in.UserID,
		RoomCategoryID:  cat.ID,
		StartDate:       r.Start,
		EndDate:         r.End,
		RoomsBooked:     in.RoomsBooked,
		Status:          models.BookingProvisional,
		TotalPriceCents: quote.TotalCents,
		CurrencyCode:    cat.CurrencyCode,
		DepositRequired: deposit.Required,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if deposit.Required {
		amount := deposit.AmountCents
		booking.DepositCents = &amount
	}

	rec, err := idempotency.NewRecord(key, hash, booking.ID,
		idempotency.MetadataFor(req, now, in.ClientIP, in.UserAgent), now)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Reserve(ctx, &models.ReserveCommand{
		Booking:     booking,
		Idempotency: rec,
		Nights:      nights,
		OnPhase:     func(p models.ReservationPhase) { s.phase(key, p) },
	})
	if errors.Is(err, apperror.ErrKeyAlreadyCommitted) {
		// параллельный запрос с тем же ключом закоммитился первым
		res, lerr := s.replay(ctx, key, hash)
		if lerr != nil {
			return nil, lerr
		}
		if res != nil {
			return res, nil
		}
		return nil, apperror.ConcurrencyAbort(err)
	}
	if err != nil {
		s.log.Info("reservation aborted",
			zap.String("idempotency_key", key),
			zap.String("room_category_id", cat.ID.String()),
			zap.String("range", r.String()),
			zap.Int("rooms", in.RoomsBooked),
			zap.String("code", string(apperror.CodeOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	// 6. депозит посчитан до транзакции и записан вместе с бронью
	s.keys.Remember(ctx, key, idempotency.Entry{BookingID: created.ID, RequestHash: hash})

	// 7. инвалидация после коммита
	s.inv.Availability(cat.ID, r)
	s.inv.UserBookings(in.UserID)

	s.log.Info("booking created",
		zap.String("booking_id", created.ID.String()),
		zap.String("room_category_id", cat.ID.String()),
		zap.String("range", r.String()),
		zap.Int("rooms", created.RoomsBooked),
		zap.Int64("total_cents", created.TotalPriceCents),
		zap.Bool("deposit_required", created.DepositRequired),
	)
	s.publishCreated(ctx, created, key)

	return &BookingResult{
		Booking:        created,
		Quote:          &quote,
		Deposit:        deposit,
		IdempotencyKey: key,
	}, nil
}

func (s *ReservationService) replay(ctx context.Context, key, hash string) (*BookingResult, error) {
	bookingID, found, err := s.keys.Lookup(ctx, key, hash)
	if err != nil || !found {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("idempotency key %q points to missing booking %s", key, bookingID)
	}
	s.log.Debug("booking replayed by idempotency key",
		zap.String("idempotency_key", key), zap.String("booking_id", b.ID.String()))

	dep := pricing.Deposit{Required: b.DepositRequired}
	if b.DepositCents != nil {
		dep.AmountCents = *b.DepositCents
	}
	return &BookingResult{Booking: b, Deposit: dep, IdempotencyKey: key, IsFromCache: true}, nil
}

// QuoteStay: цена и депозит без бронирования.
func (s *ReservationService) QuoteStay(ctx context.Context, in QuoteInput) (*StayQuote, error) {
	r, err := s.validateStay(in.StartDate, in.EndDate, in.RoomsBooked)
	if err != nil {
		return nil, err
	}
	cat, err := s.roomCategory(ctx, in.RoomCategoryID)
	if err != nil {
		return nil, err
	}
	nights := r.Nights()
	rules, err := s.rules(ctx, cat.ID, r)
	if err != nil {
		return nil, err
	}
	if blocked := rules.Blocked(nights); len(blocked) > 0 {
		return nil, apperror.DateBlocked(blocked)
	}
	quote, err := pricing.PriceStay(nights, cat.BasePriceCents, in.RoomsBooked, rules)
	if err != nil {
		return nil, priceErr(err)
	}
	deposit, err := s.deposit(ctx, in.RoomsBooked, quote.TotalCents)
	if err != nil {
		return nil, err
	}
	return &StayQuote{RoomCategory: cat, Quote: quote, Deposit: deposit}, nil
}

// GetAvailability возвращает остаток по ночам. Кэшируется коротко, под блокировкой остаток перечитывается.
func (s *ReservationService) GetAvailability(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]NightAvailability, error) {
	r, err := stay.New(start, end)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeInvalidDateRange, "", err)
	}
	cat, err := s.roomCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	return cache.GetOrLoad(ctx, s.cache, cache.AvailabilityKey(cat.ID, r), cache.TTLVeryShort,
		func(ctx context.Context) ([]NightAvailability, error) {
			rows, err := s.store.ListInventory(ctx, cat.ID, r.Start, r.End)
			if err != nil {
				return nil, err
			}
			byNight := make(map[time.Time]int, len(rows))
			for _, row := range rows {
				byNight[stay.Day(row.Night)] = row.AvailableRooms
			}
			rules, err := s.rules(ctx, cat.ID, r)
			if err != nil {
				return nil, err
			}
			blocked := make(map[time.Time]bool)
			for _, n := range rules.Blocked(r.Nights()) {
				blocked[n] = true
			}

			out := make([]NightAvailability, 0, r.Len())
			for _, n := range r.Nights() {
				avail, ok := byNight[n]
				if !ok {
					avail = cat.TotalRooms
				}
				out = append(out, NightAvailability{Night: n, AvailableRooms: avail, Blocked: blocked[n]})
			}
			return out, nil
		})
}

func (s *ReservationService) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, notFound(ErrBookingNotFound)
	}
	return b, nil
}

func (s *ReservationService) ListUserBookings(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.UserBookingsKey(userID), cache.TTLShort,
		func(ctx context.Context) ([]models.Booking, error) {
			return s.store.ListBookingsByUser(ctx, userID)
		})
}

func (s *ReservationService) validateStay(start, end time.Time, rooms int) (stay.Range, error) {
	r, err := stay.New(start, end)
	if err != nil {
		return stay.Range{}, apperror.Wrap(apperror.CodeInvalidDateRange, "", err)
	}
	if rooms < 1 {
		return stay.Range{}, apperror.Wrap(apperror.CodeInvalidDateRange, "", ErrRoomsInvalid)
	}
	return r, nil
}

func priceErr(err error) error {
	if errors.Is(err, pricing.ErrAmountOverflow) {
		return apperror.Wrap(apperror.CodeValidation, "stay total is too large", err)
	}
	return fmt.Errorf("price stay: %w", err)
}

func (s *ReservationService) roomCategory(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.RoomCategoryKey(id), cache.TTLLong,
		func(ctx context.Context) (*models.RoomCategory, error) {
			c, err := s.store.GetRoomCategory(ctx, id)
			if err != nil {
				return nil, err
			}
			if c == nil {
				return nil, apperror.RoomTypeNotFound(id)
			}
			return c, nil
		})
}

func (s *ReservationService) rules(ctx context.Context, categoryID uuid.UUID, r stay.Range) (*pricing.Rules, error) {
	days, err := cache.GetOrLoad(ctx, s.cache, cache.SpecialDaysKey(categoryID, r), cache.TTLMedium,
		func(ctx context.Context) ([]models.SpecialDay, error) {
			return s.store.ListSpecialDays(ctx, models.SpecialDayFilter{
				RoomCategoryID: &categoryID,
				WithWildcard:   true,
				From:           r.Start,
				To:             r.End,
				OnlyActive:     true,
			})
		})
	if err != nil {
		return nil, err
	}
	return pricing.NewRules(categoryID, days), nil
}

func (s *ReservationService) deposit(ctx context.Context, rooms int, totalCents int64) (pricing.Deposit, error) {
	if !pricing.IsGroupBooking(rooms) {
		return pricing.Deposit{}, nil
	}
	policies, err := cache.GetOrLoad(ctx, s.cache, cache.DepositPoliciesKey(), cache.TTLLong,
		func(ctx context.Context) ([]models.DepositPolicy, error) {
			return s.store.ListDepositPolicies(ctx, true)
		})
	if err != nil {
		return pricing.Deposit{}, err
	}
	dep := pricing.ResolveDeposit(rooms, totalCents, policies)
	if dep.Ambiguous {
		s.log.Warn("several active deposit policies cover room count",
			zap.Int("rooms", rooms), zap.Stringer("chosen_policy_id", dep.PolicyID))
	}
	return dep, nil
}

func (s *ReservationService) phase(key string, p models.ReservationPhase) {
	if s.onPhase != nil {
		s.onPhase(key, p)
	}
	if p == models.PhaseValidating {
		return
	}
	s.log.Debug("reservation phase", zap.String("idempotency_key", key), zap.String("phase", string(p)))
}

func (s *ReservationService) publishCreated(ctx context.Context, b *models.Booking, key string) {
	if s.events == nil {
		return
	}
	ev := BookingCreatedEvent{
		BookingID:       b.ID,
		UserID:          b.UserID,
		RoomCategoryID:  b.RoomCategoryID,
		StartDate:       b.StartDate.Format(stay.DateLayout),
		EndDate:         b.EndDate.Format(stay.DateLayout),
		RoomsBooked:     b.RoomsBooked,
		TotalCents:      b.TotalPriceCents,
		Currency:        b.CurrencyCode,
		DepositRequired: b.DepositRequired,
		DepositCents:    b.DepositCents,
		IdempotencyKey:  key,
		CreatedAt:       b.CreatedAt,
	}

	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.events.PublishBookingCreated(ctx, ev); err != nil {
			s.log.Warn("publish booking created", zap.String("booking_id", ev.BookingID.String()), zap.Error(err))
		}
	}()
}
