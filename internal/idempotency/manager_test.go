package idempotency_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reservation-service/internal/apperror"
	"reservation-service/internal/cache"
	"reservation-service/internal/idempotency"
	"reservation-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MockStore struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
	calls   int
}

func (m *MockStore) GetIdempotency(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.records[key], nil
}

type MockShared struct {
	data   map[string][]byte
	getErr error
}

func (m *MockShared) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (m *MockShared) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func request() idempotency.Request {
	start := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	return idempotency.Request{
		UserID:         uuid.MustParse("7b0c2a8e-2d4a-4a56-9a53-2f1f0c7d9e01"),
		RoomCategoryID: uuid.MustParse("1e7c0b7a-9a3c-4d1f-8a52-8b3f6e2c4d10"),
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 3),
		RoomsBooked:    2,
	}
}

func newManager(store *MockStore, shared idempotency.SharedCache) *idempotency.Manager {
	local := cache.NewMemory(cache.Config{}, zap.NewNop())
	return idempotency.NewManager(store, local, shared, zap.NewNop())
}

func TestDeriveKey_Deterministic(t *testing.T) {
	r := request()
	a := idempotency.DeriveKey(r)
	if a != idempotency.DeriveKey(r) {
		t.Fatal("derived key must be stable")
	}
	if !strings.HasPrefix(a, "bk_") || len(a) != 3+64 {
		t.Fatalf("derived key = %q", a)
	}

	r.StartDate = r.StartDate.Add(13 * time.Hour)
	if idempotency.DeriveKey(r) != a {
		t.Fatal("time of day must not affect the key")
	}

	r.RoomsBooked = 3
	if idempotency.DeriveKey(r) == a {
		t.Fatal("different rooms must give a different key")
	}
}

func TestResolve(t *testing.T) {
	m := newManager(&MockStore{}, nil)
	r := request()

	key, hash, err := m.Resolve("  ", r)
	if err != nil || key != idempotency.DeriveKey(r) || hash != idempotency.Fingerprint(r) {
		t.Fatalf("blank key: %q %q %v", key, hash, err)
	}

	key, _, err = m.Resolve("order-42", r)
	if err != nil || key != "order-42" {
		t.Fatalf("explicit key: %q %v", key, err)
	}

	for _, bad := range []string{strings.Repeat("x", 256), "with space", "tab\tkey"} {
		if _, _, err := m.Resolve(bad, r); apperror.CodeOf(err) != apperror.CodeValidation {
			t.Fatalf("Resolve(%q) = %v", bad, err)
		}
	}
}

func TestLookup_FromStoreThenCached(t *testing.T) {
	r := request()
	bookingID := uuid.New()
	store := &MockStore{records: map[string]*models.IdempotencyRecord{
		"k1": {Key: "k1", BookingID: bookingID, RequestHash: idempotency.Fingerprint(r)},
	}}
	m := newManager(store, nil)

	for i := 0; i < 3; i++ {
		id, found, err := m.Lookup(context.Background(), "k1", idempotency.Fingerprint(r))
		if err != nil || !found || id != bookingID {
			t.Fatalf("Lookup #%d: %v %v %v", i, id, found, err)
		}
	}
	if store.calls != 1 {
		t.Fatalf("store hit %d times, want 1", store.calls)
	}
}

func TestLookup_Missing(t *testing.T) {
	m := newManager(&MockStore{}, nil)
	_, found, err := m.Lookup(context.Background(), "nope", "hash")
	if err != nil || found {
		t.Fatalf("Lookup missing: %v %v", found, err)
	}
}

func TestLookup_ConflictOnDifferentParameters(t *testing.T) {
	r := request()
	store := &MockStore{records: map[string]*models.IdempotencyRecord{
		"k1": {Key: "k1", BookingID: uuid.New(), RequestHash: idempotency.Fingerprint(r)},
	}}
	m := newManager(store, nil)

	other := r
	other.RoomsBooked = 5
	_, _, err := m.Lookup(context.Background(), "k1", idempotency.Fingerprint(other))
	if apperror.CodeOf(err) != apperror.CodeIdempotencyConflict {
		t.Fatalf("expected IDEMPOTENCY_CONFLICT, got %v", err)
	}
}

func TestLookup_SharedCache(t *testing.T) {
	r := request()
	shared := &MockShared{data: map[string][]byte{}}
	writer := newManager(&MockStore{}, shared)
	bookingID := uuid.New()
	writer.Remember(context.Background(), "k1", idempotency.Entry{BookingID: bookingID, RequestHash: idempotency.Fingerprint(r)})

	// другой процесс: свой локальный кэш, пустая БД
	store := &MockStore{}
	reader := newManager(store, shared)
	id, found, err := reader.Lookup(context.Background(), "k1", idempotency.Fingerprint(r))
	if err != nil || !found || id != bookingID {
		t.Fatalf("Lookup via shared cache: %v %v %v", id, found, err)
	}
	if store.calls != 0 {
		t.Fatal("store must not be queried on shared cache hit")
	}
}

func TestLookup_SharedCacheFailureFallsBackToStore(t *testing.T) {
	r := request()
	bookingID := uuid.New()
	store := &MockStore{records: map[string]*models.IdempotencyRecord{
		"k1": {Key: "k1", BookingID: bookingID, RequestHash: idempotency.Fingerprint(r)},
	}}
	m := newManager(store, &MockShared{data: map[string][]byte{}, getErr: errors.New("redis down")})

	id, found, err := m.Lookup(context.Background(), "k1", idempotency.Fingerprint(r))
	if err != nil || !found || id != bookingID {
		t.Fatalf("Lookup: %v %v %v", id, found, err)
	}
}

func TestNewRecord(t *testing.T) {
	r := request()
	now := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	meta := idempotency.MetadataFor(r, now, "10.0.0.1", "curl/8")
	rec, err := idempotency.NewRecord("k1", idempotency.Fingerprint(r), uuid.New(), meta, now)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if !strings.Contains(rec.Metadata, `"start_date":"2030-06-01"`) || !strings.Contains(rec.Metadata, `"client_ip":"10.0.0.1"`) {
		t.Fatalf("metadata = %s", rec.Metadata)
	}
}
