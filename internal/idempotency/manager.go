package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"reservation-service/internal/apperror"
	"reservation-service/internal/cache"
	"reservation-service/internal/models"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	derivedPrefix = "bk_"
	maxKeyLength  = 255
	fingerprintV  = "v1"

	lookupTTL = cache.TTLShort
)

// Request: пять полей, однозначно описывающих намерение забронировать.
type Request struct {
	UserID         uuid.UUID
	RoomCategoryID uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	RoomsBooked    int
}

// Metadata сохраняется рядом с ключом как JSON.
type Metadata struct {
	UserID         string    `json:"user_id"`
	RoomCategoryID string    `json:"room_category_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	RoomsBooked    int       `json:"rooms_booked"`
	RequestedAt    time.Time `json:"requested_at"`
	ClientIP       string    `json:"client_ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
}

// Entry: то, что нужно знать о зафиксированном ключе при повторном запросе.
type Entry struct {
	BookingID   uuid.UUID `json:"booking_id"`
	RequestHash string    `json:"request_hash"`
}

type Store interface {
	// GetIdempotency возвращает nil, nil если ключа нет.
	GetIdempotency(ctx context.Context, key string) (*models.IdempotencyRecord, error)
}

// SharedCache: кэш между процессами (redis); его ошибки влияют только на скорость.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Manager struct {
	store  Store
	local  cache.Cache
	shared SharedCache
	log    *zap.Logger
}

func NewManager(store Store, local cache.Cache, shared SharedCache, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, local: local, shared: shared, log: log}
}

// Fingerprint: детерминированный SHA-256 от канонической записи запроса.
func Fingerprint(r Request) string {
	canonical := strings.Join([]string{
		fingerprintV,
		r.UserID.String(),
		r.RoomCategoryID.String(),
		stay.Day(r.StartDate).Format(stay.DateLayout),
		stay.Day(r.EndDate).Format(stay.DateLayout),
		fmt.Sprintf("%d", r.RoomsBooked),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func DeriveKey(r Request) string {
	return derivedPrefix + Fingerprint(r)
}

// Resolve возвращает ключ (явный или производный) и отпечаток запроса.
func (m *Manager) Resolve(explicit string, r Request) (key, hash string, err error) {
	hash = Fingerprint(r)
	explicit = strings.TrimSpace(explicit)
	if explicit == "" {
		return derivedPrefix + hash, hash, nil
	}
	if len(explicit) > maxKeyLength {
		return "", "", apperror.New(apperror.CodeValidation, "idempotency key is too long")
	}
	for _, c := range explicit {
		if !unicode.IsPrint(c) || unicode.IsSpace(c) {
			return "", "", apperror.New(apperror.CodeValidation, "idempotency key contains invalid characters")
		}
	}
	return explicit, hash, nil
}

// Lookup ищет ранее зафиксированную бронь по ключу. Если ключ уже связан
// с другими параметрами запроса: IDEMPOTENCY_CONFLICT.
func (m *Manager) Lookup(ctx context.Context, key, hash string) (uuid.UUID, bool, error) {
	entry, found, err := m.find(ctx, key)
	if err != nil || !found {
		return uuid.Nil, false, err
	}
	if entry.RequestHash != hash {
		m.log.Warn("idempotency key reused with different parameters", zap.String("key", key))
		return uuid.Nil, false, apperror.IdempotencyConflict(key)
	}
	return entry.BookingID, true, nil
}

func (m *Manager) find(ctx context.Context, key string) (Entry, bool, error) {
	cacheKey := cache.IdempotencyKey(key)

	if e, ok := cache.GetAs[Entry](m.local, cacheKey); ok {
		return e, true, nil
	}

	if m.shared != nil {
		raw, err := m.shared.Get(ctx, cacheKey)
		switch {
		case err == nil:
			var e Entry
			if jerr := json.Unmarshal(raw, &e); jerr == nil {
				m.local.SetWithTTL(cacheKey, e, lookupTTL)
				return e, true, nil
			}
		case !errors.Is(err, cache.ErrMiss):
			m.log.Warn("shared idempotency cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	rec, err := m.store.GetIdempotency(ctx, key)
	if err != nil {
		return Entry{}, false, fmt.Errorf("get idempotency record: %w", err)
	}
	if rec == nil {
		return Entry{}, false, nil
	}
	e := Entry{BookingID: rec.BookingID, RequestHash: rec.RequestHash}
	m.Remember(ctx, key, e)
	return e, true, nil
}

// Remember кладёт зафиксированный ключ в кэши. Вызывается только после коммита.
func (m *Manager) Remember(ctx context.Context, key string, e Entry) {
	cacheKey := cache.IdempotencyKey(key)
	m.local.SetWithTTL(cacheKey, e, lookupTTL)

	if m.shared == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := m.shared.Set(ctx, cacheKey, raw, cache.TTLVeryLong); err != nil {
		m.log.Warn("shared idempotency cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// NewRecord собирает запись, которая будет вставлена в одной транзакции с бронью.
func NewRecord(key, hash string, bookingID uuid.UUID, meta Metadata, now time.Time) (*models.IdempotencyRecord, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency metadata: %w", err)
	}
	return &models.IdempotencyRecord{
		Key:         key,
		BookingID:   bookingID,
		RequestHash: hash,
		Metadata:    string(raw),
		CreatedAt:   now,
	}, nil
}

func MetadataFor(r Request, now time.Time, clientIP, userAgent string) Metadata {
	return Metadata{
		UserID:         r.UserID.String(),
		RoomCategoryID: r.RoomCategoryID.String(),
		StartDate:      stay.Day(r.StartDate).Format(stay.DateLayout),
		EndDate:        stay.Day(r.EndDate).Format(stay.DateLayout),
		RoomsBooked:    r.RoomsBooked,
		RequestedAt:    now,
		ClientIP:       clientIP,
		UserAgent:      userAgent,
	}
}
