package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"reservation-service/internal/apperror"
	"reservation-service/internal/models"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLockTimeout = 3 * time.Second

	// вес семафора категории: бронирование берёт 1 (как FOR SHARE),
	// изменение числа номеров: весь вес (как FOR UPDATE)
	categoryWeight int64 = 1 << 20
)

type ledgerKey struct {
	categoryID uuid.UUID
	night      string
}

// Store: хранилище в памяти процесса. Строки леджера защищены семафорами на ночь,
// которые берутся строго по возрастанию даты, ожидание ограничено lockTimeout.
type Store struct {
	mu sync.RWMutex

	categories  map[uuid.UUID]models.RoomCategory
	ledger      map[ledgerKey]int
	specialDays map[uuid.UUID]models.SpecialDay
	policies    map[uuid.UUID]models.DepositPolicy
	bookings    map[uuid.UUID]models.Booking
	idempotency map[string]models.IdempotencyRecord

	keyLocks      *lockTable
	categoryLocks *lockTable
	nightLocks    *lockTable

	lockTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
}

type Option func(*Store)

func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		categories:    make(map[uuid.UUID]models.RoomCategory),
		ledger:        make(map[ledgerKey]int),
		specialDays:   make(map[uuid.UUID]models.SpecialDay),
		policies:      make(map[uuid.UUID]models.DepositPolicy),
		bookings:      make(map[uuid.UUID]models.Booking),
		idempotency:   make(map[string]models.IdempotencyRecord),
		keyLocks:      newLockTable(1),
		categoryLocks: newLockTable(categoryWeight),
		nightLocks:    newLockTable(1),
		lockTimeout:   defaultLockTimeout,
		now:           time.Now,
		log:           log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func nightKey(categoryID uuid.UUID, night time.Time) ledgerKey {
	return ledgerKey{categoryID: categoryID, night: night.Format(stay.DateLayout)}
}

func (s *Store) lockErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Debug("lock wait exceeded", zap.Duration("lock_timeout", s.lockTimeout))
		return apperror.TransactionTimeout(err)
	}
	return err
}

// Reserve повторяет транзакцию бронирования из postgres: ключ, категория,
// ночи по возрастанию, перепроверка, запись. Любая ошибка не оставляет следов.
func (s *Store) Reserve(ctx context.Context, cmd *models.ReserveCommand) (*models.Booking, error) {
	if len(cmd.Nights) == 0 {
		return nil, apperror.InvalidDateRange("stay has no nights")
	}

	cmd.Enter(models.PhaseLocking)
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var held heldLocks
	defer held.release()

	b, err := s.reserve(lockCtx, cmd, &held)
	if err != nil {
		cmd.Enter(models.PhaseAborted)
		return nil, err
	}
	cmd.Enter(models.PhaseCommitted)
	return b, nil
}

func (s *Store) reserve(ctx context.Context, cmd *models.ReserveCommand, held *heldLocks) (*models.Booking, error) {
	b := *cmd.Booking
	rec := *cmd.Idempotency

	if err := held.acquire(ctx, s.keyLocks, rec.Key, 1); err != nil {
		return nil, s.lockErr(err)
	}
	s.mu.RLock()
	_, exists := s.idempotency[rec.Key]
	s.mu.RUnlock()
	if exists {
		return nil, apperror.ErrKeyAlreadyCommitted
	}

	if err := held.acquire(ctx, s.categoryLocks, b.RoomCategoryID.String(), 1); err != nil {
		return nil, s.lockErr(err)
	}
	s.mu.RLock()
	cat, ok := s.categories[b.RoomCategoryID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.RoomTypeNotFound(b.RoomCategoryID)
	}

	nights := make([]time.Time, len(cmd.Nights))
	copy(nights, cmd.Nights)
	sort.Slice(nights, func(i, j int) bool { return nights[i].Before(nights[j]) })
	for _, n := range nights {
		k := nightKey(b.RoomCategoryID, n)
		if err := held.acquire(ctx, s.nightLocks, b.RoomCategoryID.String()+":"+k.night, 1); err != nil {
			return nil, s.lockErr(err)
		}
	}

	cmd.Enter(models.PhaseChecking)
	s.mu.RLock()
	for _, n := range nights {
		avail := s.availableLocked(cat, n)
		if avail < b.RoomsBooked {
			s.mu.RUnlock()
			return nil, apperror.InsufficientInventory(stay.Day(n), avail, b.RoomsBooked)
		}
	}
	s.mu.RUnlock()

	cmd.Enter(models.PhaseCommitting)
	s.mu.Lock()
	for _, n := range nights {
		s.ledger[nightKey(cat.ID, n)] = s.availableLocked(cat, n) - b.RoomsBooked
	}
	now := s.now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	s.bookings[b.ID] = b
	s.idempotency[rec.Key] = rec
	s.mu.Unlock()

	*cmd.Booking = b
	return &b, nil
}

// availableLocked: отсутствие строки = полная доступность. Вызывать под s.mu.
func (s *Store) availableLocked(cat models.RoomCategory, night time.Time) int {
	if v, ok := s.ledger[nightKey(cat.ID, night)]; ok {
		return v
	}
	return cat.TotalRooms
}

func (s *Store) GetRoomCategory(_ context.Context, id uuid.UUID) (*models.RoomCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) ListRoomCategories(_ context.Context) ([]models.RoomCategory, error) {
	s.mu.RLock()
	list := make([]models.RoomCategory, 0, len(s.categories))
	for _, c := range s.categories {
		list = append(list, c)
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (s *Store) CreateRoomCategory(_ context.Context, c *models.RoomCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTakenLocked(c.Name, uuid.Nil) {
		return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf("room category %q already exists", c.Name))
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CurrencyCode == "" {
		c.CurrencyCode = "RUB"
	}
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) nameTakenLocked(name string, except uuid.UUID) bool {
	for id, c := range s.categories {
		if id != except && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) UpdateRoomCategory(ctx context.Context, id uuid.UUID, patch models.RoomCategoryPatch) (*models.RoomCategory, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	var held heldLocks
	defer held.release()
	if err := held.acquire(lockCtx, s.categoryLocks, id.String(), categoryWeight); err != nil {
		return nil, s.lockErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, apperror.RoomTypeNotFound(id)
	}
	if patch.Name != nil && *patch.Name != c.Name {
		if s.nameTakenLocked(*patch.Name, id) {
			return nil, apperror.New(apperror.CodeRuleConflict, fmt.Sprintf("room category %q already exists", *patch.Name))
		}
		c.Name = *patch.Name
	}
	if patch.BasePriceCents != nil {
		c.BasePriceCents = *patch.BasePriceCents
	}
	if patch.TotalRooms != nil && *patch.TotalRooms != c.TotalRooms {
		delta := *patch.TotalRooms - c.TotalRooms
		for k, avail := range s.ledger {
			if k.categoryID == id && avail+delta < 0 {
				return nil, apperror.New(apperror.CodeRuleConflict, fmt.Sprintf(
					"night %s has %d rooms sold, more than new total %d", k.night, c.TotalRooms-avail, *patch.TotalRooms))
			}
		}
		for k := range s.ledger {
			if k.categoryID == id {
				s.ledger[k] += delta
			}
		}
		c.TotalRooms = *patch.TotalRooms
	}
	c.UpdatedAt = s.now().UTC()
	s.categories[id] = c
	return &c, nil
}

func (s *Store) GetSpecialDay(_ context.Context, id uuid.UUID) (*models.SpecialDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.specialDays[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *Store) ListSpecialDays(_ context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error) {
	s.mu.RLock()
	var list []models.SpecialDay
	for _, d := range s.specialDays {
		if f.Match(&d) {
			list = append(list, d)
		}
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (s *Store) SaveSpecialDay(_ context.Context, d *models.SpecialDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.RoomCategoryID != nil {
		if _, ok := s.categories[*d.RoomCategoryID]; !ok {
			return apperror.RoomTypeNotFound(*d.RoomCategoryID)
		}
	}
	if d.IsActive {
		for id, other := range s.specialDays {
			if id != d.ID && other.IsActive && other.SameScope(d) {
				return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf(
					"active rule %s already covers %s", other.ID, other.Date.Format(stay.DateLayout)))
			}
		}
	}

	now := s.now().UTC()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
		d.CreatedAt = now
	} else if prev, ok := s.specialDays[d.ID]; ok && d.CreatedAt.IsZero() {
		d.CreatedAt = prev.CreatedAt
	}
	d.UpdatedAt = now
	s.specialDays[d.ID] = *d
	return nil
}

func (s *Store) GetDepositPolicy(_ context.Context, id uuid.UUID) (*models.DepositPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) ListDepositPolicies(_ context.Context, onlyActive bool) ([]models.DepositPolicy, error) {
	s.mu.RLock()
	var list []models.DepositPolicy
	for _, p := range s.policies {
		if onlyActive && !p.IsActive {
			continue
		}
		list = append(list, p)
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].MinRooms != list[j].MinRooms {
			return list[i].MinRooms < list[j].MinRooms
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (s *Store) SaveDepositPolicy(_ context.Context, p *models.DepositPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsActive {
		for id, other := range s.policies {
			if id != p.ID && other.IsActive && other.Overlaps(p) {
				return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf(
					"rooms [%d,%d] overlap active policy %s [%d,%d]", p.MinRooms, p.MaxRooms, other.ID, other.MinRooms, other.MaxRooms))
			}
		}
	}

	now := s.now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
		p.CreatedAt = now
	} else if prev, ok := s.policies[p.ID]; ok && p.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}
	p.UpdatedAt = now
	s.policies[p.ID] = *p
	return nil
}

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) ListBookingsByUser(_ context.Context, userID uuid.UUID) ([]models.Booking, error) {
	s.mu.RLock()
	var list []models.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			list = append(list, b)
		}
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (s *Store) ListInventory(_ context.Context, categoryID uuid.UUID, start, end time.Time) ([]models.InventoryNight, error) {
	r := stay.Range{Start: stay.Day(start), End: stay.Day(end)}
	s.mu.RLock()
	var list []models.InventoryNight
	for _, n := range r.Nights() {
		if v, ok := s.ledger[nightKey(categoryID, n)]; ok {
			list = append(list, models.InventoryNight{RoomCategoryID: categoryID, Night: n, AvailableRooms: v})
		}
	}
	s.mu.RUnlock()
	return list, nil
}

func (s *Store) GetIdempotency(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) LedgerDrift(_ context.Context) ([]models.LedgerDrift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booked := make(map[ledgerKey]int)
	for _, b := range s.bookings {
		if b.Status == models.BookingCancelled {
			continue
		}
		for _, n := range (stay.Range{Start: b.StartDate, End: b.EndDate}).Nights() {
			booked[nightKey(b.RoomCategoryID, n)] += b.RoomsBooked
		}
	}

	var out []models.LedgerDrift
	for k, avail := range s.ledger {
		cat, ok := s.categories[k.categoryID]
		if !ok {
			continue
		}
		expected := cat.TotalRooms - booked[k]
		if avail != expected {
			night, _ := stay.ParseDay(k.night)
			out = append(out, models.LedgerDrift{
				RoomCategoryID: k.categoryID,
				Night:          night,
				AvailableRooms: avail,
				ExpectedRooms:  expected,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomCategoryID != out[j].RoomCategoryID {
			return out[i].RoomCategoryID.String() < out[j].RoomCategoryID.String()
		}
		return out[i].Night.Before(out[j].Night)
	})
	return out, nil
}
