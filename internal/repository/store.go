package repository

import (
	"context"
	"fmt"
	"time"

	"reservation-service/internal/apperror"
	"reservation-service/internal/models"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
)

// Методы ниже: то, чем пользуются сервисы и проверка целостности.
// Записи каталога проверяют инварианты внутри транзакции.

func (r *Repository) GetRoomCategory(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error) {
	return r.RoomCategories.GetByID(ctx, id)
}

func (r *Repository) ListRoomCategories(ctx context.Context) ([]models.RoomCategory, error) {
	return r.RoomCategories.List(ctx)
}

func (r *Repository) CreateRoomCategory(ctx context.Context, c *models.RoomCategory) error {
	err := r.WithTx(func(tx *Repository) error {
		existing, err := tx.RoomCategories.GetByName(ctx, c.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf("room category %q already exists", c.Name))
		}
		return tx.RoomCategories.Create(ctx, c)
	})
	return mapWriteError(err, "room category already exists")
}

// UpdateRoomCategory при смене total_rooms сдвигает остаток всех ночей леджера на ту же величину.
// Уменьшение запрещено, если на какой-то ночи продано больше нового числа номеров.
func (r *Repository) UpdateRoomCategory(ctx context.Context, id uuid.UUID, patch models.RoomCategoryPatch) (*models.RoomCategory, error) {
	var out *models.RoomCategory
	err := r.WithTx(func(tx *Repository) error {
		cat, err := tx.RoomCategories.LockUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cat == nil {
			return apperror.RoomTypeNotFound(id)
		}

		fields := map[string]any{}
		if patch.Name != nil && *patch.Name != cat.Name {
			existing, err := tx.RoomCategories.GetByName(ctx, *patch.Name)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != id {
				return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf("room category %q already exists", *patch.Name))
			}
			fields["name"] = *patch.Name
		}
		if patch.BasePriceCents != nil {
			fields["base_price_cents"] = *patch.BasePriceCents
		}
		if patch.TotalRooms != nil && *patch.TotalRooms != cat.TotalRooms {
			delta := *patch.TotalRooms - cat.TotalRooms
			nights, err := tx.Inventory.LockAll(ctx, id)
			if err != nil {
				return err
			}
			for _, n := range nights {
				if n.AvailableRooms+delta < 0 {
					return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf(
						"night %s has %d rooms sold, more than new total %d",
						n.Night.Format(stay.DateLayout), cat.TotalRooms-n.AvailableRooms, *patch.TotalRooms))
				}
			}
			if _, err := tx.Inventory.AdjustAll(ctx, id, delta); err != nil {
				return err
			}
			fields["total_rooms"] = *patch.TotalRooms
		}

		if len(fields) > 0 {
			fields["updated_at"] = time.Now().UTC()
			if err := tx.RoomCategories.UpdateFields(ctx, id, fields); err != nil {
				return err
			}
		}
		out, err = tx.RoomCategories.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, mapWriteError(err, "room category already exists")
	}
	return out, nil
}

func (r *Repository) GetSpecialDay(ctx context.Context, id uuid.UUID) (*models.SpecialDay, error) {
	return r.SpecialDays.GetByID(ctx, id)
}

func (r *Repository) ListSpecialDays(ctx context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error) {
	return r.SpecialDays.List(ctx, f)
}

// SaveSpecialDay создаёт (ID == uuid.Nil) или перезаписывает правило.
// Второе активное правило на ту же (дату, категорию): RULE_CONFLICT.
func (r *Repository) SaveSpecialDay(ctx context.Context, d *models.SpecialDay) error {
	err := r.WithTx(func(tx *Repository) error {
		if d.RoomCategoryID != nil {
			cat, err := tx.RoomCategories.GetByID(ctx, *d.RoomCategoryID)
			if err != nil {
				return err
			}
			if cat == nil {
				return apperror.RoomTypeNotFound(*d.RoomCategoryID)
			}
		}
		if d.IsActive {
			other, err := tx.SpecialDays.FindActiveInScope(ctx, d.Date, d.RoomCategoryID, d.ID)
			if err != nil {
				return err
			}
			if other != nil {
				return specialDayConflict(other)
			}
		}
		if d.ID == uuid.Nil {
			return tx.SpecialDays.Create(ctx, d)
		}
		return tx.SpecialDays.Save(ctx, d)
	})
	return mapWriteError(err, "another active rule exists for this date and category")
}

func specialDayConflict(other *models.SpecialDay) error {
	return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf(
		"active rule %s already covers %s", other.ID, other.Date.Format(stay.DateLayout)))
}

func (r *Repository) GetDepositPolicy(ctx context.Context, id uuid.UUID) (*models.DepositPolicy, error) {
	return r.DepositPolicies.GetByID(ctx, id)
}

func (r *Repository) ListDepositPolicies(ctx context.Context, onlyActive bool) ([]models.DepositPolicy, error) {
	return r.DepositPolicies.List(ctx, onlyActive)
}

// SaveDepositPolicy: писатели сериализуются advisory-блокировкой, поэтому
// две параллельные записи не пройдут проверку пересечения одновременно.
func (r *Repository) SaveDepositPolicy(ctx context.Context, p *models.DepositPolicy) error {
	err := r.WithTx(func(tx *Repository) error {
		if err := tx.DepositPolicies.LockWriters(ctx); err != nil {
			return err
		}
		if p.IsActive {
			overlapping, err := tx.DepositPolicies.FindOverlapping(ctx, p.MinRooms, p.MaxRooms, p.ID)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return depositOverlap(p, &overlapping[0])
			}
		}
		if p.ID == uuid.Nil {
			return tx.DepositPolicies.Create(ctx, p)
		}
		return tx.DepositPolicies.Save(ctx, p)
	})
	return mapWriteError(err, "active deposit policy ranges overlap")
}

func depositOverlap(p, other *models.DepositPolicy) error {
	return apperror.New(apperror.CodeRuleConflict, fmt.Sprintf(
		"rooms [%d,%d] overlap active policy %s [%d,%d]", p.MinRooms, p.MaxRooms, other.ID, other.MinRooms, other.MaxRooms))
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.Bookings.GetByID(ctx, id)
}

func (r *Repository) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	return r.Bookings.ListByUser(ctx, userID)
}

func (r *Repository) ListInventory(ctx context.Context, categoryID uuid.UUID, start, end time.Time) ([]models.InventoryNight, error) {
	return r.Inventory.ListRange(ctx, categoryID, start, end)
}

func (r *Repository) GetIdempotency(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	return r.Idempotency.Get(ctx, key)
}

func (r *Repository) LedgerDrift(ctx context.Context) ([]models.LedgerDrift, error) {
	return r.Bookings.LedgerDrift(ctx)
}
