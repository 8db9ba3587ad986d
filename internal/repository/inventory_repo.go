package repository

import (
	"context"
	"time"

	"reservation-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepo interface {
	// ListRange: существующие строки леджера на [start, end). Отсутствующая ночь = полная доступность.
	ListRange(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]models.InventoryNight, error)

	// EnsureNights создаёт недостающие строки с available_rooms = total_rooms категории
	// в порядке возрастания даты.
	EnsureNights(ctx context.Context, categoryID uuid.UUID, start, end time.Time) error
	// LockNights: SELECT ... FOR UPDATE в порядке возрастания даты.
	LockNights(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]models.InventoryNight, error)
	// Decrement: available_rooms -= rooms на всех ночах диапазона, где хватает.
	Decrement(ctx context.Context, categoryID uuid.UUID, start, end time.Time, rooms int) (int64, error)

	LockAll(ctx context.Context, categoryID uuid.UUID) ([]models.InventoryNight, error)
	AdjustAll(ctx context.Context, categoryID uuid.UUID, delta int) (int64, error)
}

type inventoryRepo struct{ db *gorm.DB }

func NewInventoryRepo(db *gorm.DB) InventoryRepo { return &inventoryRepo{db: db} }

func (r *inventoryRepo) ListRange(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]models.InventoryNight, error) {
	var list []models.InventoryNight
	err := r.db.WithContext(ctx).
		Where("room_category_id = ? AND night >= ? AND night < ?", categoryID, start, end).
		Order("night ASC").
		Find(&list).Error
	return list, err
}

func (r *inventoryRepo) EnsureNights(ctx context.Context, categoryID uuid.UUID, start, end time.Time) error {
	return r.db.WithContext(ctx).Exec(`
INSERT INTO inventory_nights (room_category_id, night, available_rooms, updated_at)
SELECT c.id, d::date, c.total_rooms, now()
FROM room_categories c
CROSS JOIN generate_series(@start::date, @end::date - 1, interval '1 day') AS d
WHERE c.id = @cid
ORDER BY d
ON CONFLICT (room_category_id, night) DO NOTHING
`, map[string]any{
		"cid":   categoryID,
		"start": start,
		"end":   end,
	}).Error
}

func (r *inventoryRepo) LockNights(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]models.InventoryNight, error) {
	var list []models.InventoryNight
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("room_category_id = ? AND night >= ? AND night < ?", categoryID, start, end).
		Order("night ASC").
		Find(&list).Error
	return list, err
}

func (r *inventoryRepo) Decrement(ctx context.Context, categoryID uuid.UUID, start, end time.Time, rooms int) (int64, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventory_nights
SET available_rooms = available_rooms - @q,
    updated_at = now()
WHERE room_category_id = @cid
  AND night >= @start AND night < @end
  AND available_rooms >= @q
`, map[string]any{
		"cid":   categoryID,
		"start": start,
		"end":   end,
		"q":     rooms,
	})
	return tx.RowsAffected, tx.Error
}

func (r *inventoryRepo) LockAll(ctx context.Context, categoryID uuid.UUID) ([]models.InventoryNight, error) {
	var list []models.InventoryNight
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("room_category_id = ?", categoryID).
		Order("night ASC").
		Find(&list).Error
	return list, err
}

func (r *inventoryRepo) AdjustAll(ctx context.Context, categoryID uuid.UUID, delta int) (int64, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE inventory_nights
SET available_rooms = available_rooms + @delta,
    updated_at = now()
WHERE room_category_id = @cid
`, map[string]any{
		"cid":   categoryID,
		"delta": delta,
	})
	return tx.RowsAffected, tx.Error
}
