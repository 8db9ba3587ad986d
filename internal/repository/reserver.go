package repository

import (
	"context"
	"fmt"

	"reservation-service/internal/apperror"
	"reservation-service/internal/models"

	"gorm.io/gorm"
)

// Reserve выполняет транзакцию бронирования. Порядок внутри одной транзакции:
//  1. ключ идемпотентности: INSERT ... ON CONFLICT DO NOTHING (параллельные дубли ждут друг друга здесь);
//  2. категория: FOR SHARE (изменение total_rooms берёт FOR UPDATE);
//  3. недостающие ночи леджера, затем FOR UPDATE по возрастанию даты;
//  4. перепроверка, списание, вставка брони.
//
// FK idempotency_records.booking_id -> bookings отложен до коммита.
func (r *Repository) Reserve(ctx context.Context, cmd *models.ReserveCommand) (*models.Booking, error) {
	if len(cmd.Nights) == 0 {
		return nil, apperror.InvalidDateRange("stay has no nights")
	}
	b := cmd.Booking
	start, end := b.StartDate, b.EndDate

	cmd.Enter(models.PhaseLocking)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())).Error; err != nil {
			return err
		}
		repo := buildRepository(tx, r.lockTimeout)

		inserted, err := repo.Idempotency.InsertIfAbsent(ctx, cmd.Idempotency)
		if err != nil {
			return err
		}
		if !inserted {
			return apperror.ErrKeyAlreadyCommitted
		}

		cat, err := repo.RoomCategories.LockShare(ctx, b.RoomCategoryID)
		if err != nil {
			return err
		}
		if cat == nil {
			return apperror.RoomTypeNotFound(b.RoomCategoryID)
		}

		if err := repo.Inventory.EnsureNights(ctx, b.RoomCategoryID, start, end); err != nil {
			return err
		}
		rows, err := repo.Inventory.LockNights(ctx, b.RoomCategoryID, start, end)
		if err != nil {
			return err
		}
		if len(rows) != len(cmd.Nights) {
			return fmt.Errorf("ledger rows locked: got %d, want %d", len(rows), len(cmd.Nights))
		}

		cmd.Enter(models.PhaseChecking)
		for _, row := range rows {
			if row.AvailableRooms < b.RoomsBooked {
				return apperror.InsufficientInventory(row.Night, row.AvailableRooms, b.RoomsBooked)
			}
		}

		cmd.Enter(models.PhaseCommitting)
		n, err := repo.Inventory.Decrement(ctx, b.RoomCategoryID, start, end, b.RoomsBooked)
		if err != nil {
			return err
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("ledger rows decremented: got %d, want %d", n, len(rows))
		}
		return repo.Bookings.Create(ctx, b)
	})
	if err != nil {
		cmd.Enter(models.PhaseAborted)
		return nil, mapReserveError(ctx, err)
	}

	cmd.Enter(models.PhaseCommitted)
	return b, nil
}
