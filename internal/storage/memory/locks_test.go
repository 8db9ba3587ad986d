package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func TestLockTable_EntryRemovedAfterRelease(t *testing.T) {
	table := newLockTable(1)

	var held heldLocks
	require.NoError(t, held.acquire(context.Background(), table, "a", 1))
	require.NoError(t, held.acquire(context.Background(), table, "b", 1))
	assert.Equal(t, 2, table.Len())

	held.release()
	assert.Equal(t, 0, table.Len())
}

func TestLockTable_CancelledWaiterDropsReference(t *testing.T) {
	table := newLockTable(1)

	var owner heldLocks
	require.NoError(t, owner.acquire(context.Background(), table, "a", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var waiter heldLocks
	err := waiter.acquire(ctx, table, "a", 1)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, table.Len())

	owner.release()
	assert.Equal(t, 0, table.Len())
}

func TestStore_LockTablesEmptyAfterManyStays(t *testing.T) {
	s := New(zap.NewNop())
	ctx := context.Background()
	cat := models.RoomCategory{Name: "Standard", TotalRooms: 3, BasePriceCents: 10000}
	require.NoError(t, s.CreateRoomCategory(ctx, &cat))

	start := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 200; i++ {
		offset := i % 50
		g.Go(func() error {
			r, _ := stay.New(start.AddDate(0, 0, offset), start.AddDate(0, 0, offset+3))
			id := uuid.New()
			cmd := &models.ReserveCommand{
				Booking: &models.Booking{
					ID:             id,
					UserID:         uuid.New(),
					RoomCategoryID: cat.ID,
					StartDate:      r.Start,
					EndDate:        r.End,
					RoomsBooked:    1,
					Status:         models.BookingProvisional,
					CurrencyCode:   "RUB",
				},
				Idempotency: &models.IdempotencyRecord{Key: "key-" + id.String(), BookingID: id, RequestHash: "h", Metadata: "{}"},
				Nights:      r.Nights(),
			}
			// часть запросов упрётся в нехватку номеров, это нормально
			_, _ = s.Reserve(gctx, cmd)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	total := 5
	_, err := s.UpdateRoomCategory(ctx, cat.ID, models.RoomCategoryPatch{TotalRooms: &total})
	require.NoError(t, err)

	assert.Equal(t, 0, s.keyLocks.Len())
	assert.Equal(t, 0, s.categoryLocks.Len())
	assert.Equal(t, 0, s.nightLocks.Len())
}
