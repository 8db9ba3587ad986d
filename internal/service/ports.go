package service

import (
	"context"
	"time"

	"reservation-service/internal/idempotency"
	"reservation-service/internal/models"

	"github.com/google/uuid"
)

// CatalogStore: справочник категорий и правила. Методы Get* возвращают nil, nil если записи нет.
type CatalogStore interface {
	GetRoomCategory(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error)
	ListRoomCategories(ctx context.Context) ([]models.RoomCategory, error)
	CreateRoomCategory(ctx context.Context, c *models.RoomCategory) error
	UpdateRoomCategory(ctx context.Context, id uuid.UUID, patch models.RoomCategoryPatch) (*models.RoomCategory, error)

	GetSpecialDay(ctx context.Context, id uuid.UUID) (*models.SpecialDay, error)
	ListSpecialDays(ctx context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error)
	SaveSpecialDay(ctx context.Context, d *models.SpecialDay) error

	GetDepositPolicy(ctx context.Context, id uuid.UUID) (*models.DepositPolicy, error)
	ListDepositPolicies(ctx context.Context, onlyActive bool) ([]models.DepositPolicy, error)
	SaveDepositPolicy(ctx context.Context, p *models.DepositPolicy) error
}

type BookingStore interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
	ListInventory(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]models.InventoryNight, error)
	GetIdempotency(ctx context.Context, key string) (*models.IdempotencyRecord, error)

	// Reserve: атомарная часть бронирования. Если ключ уже зафиксирован,
	// возвращает apperror.ErrKeyAlreadyCommitted.
	Reserve(ctx context.Context, cmd *models.ReserveCommand) (*models.Booking, error)
}

type Store interface {
	CatalogStore
	BookingStore
}

type KeyManager interface {
	Resolve(explicit string, r idempotency.Request) (key, hash string, err error)
	Lookup(ctx context.Context, key, hash string) (uuid.UUID, bool, error)
	Remember(ctx context.Context, key string, e idempotency.Entry)
}
