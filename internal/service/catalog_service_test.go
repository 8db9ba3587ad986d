package service_test

import (
	"context"
	"testing"

	"reservation-service/internal/apperror"
	"reservation-service/internal/models"
	"reservation-service/internal/pricing"
	"reservation-service/internal/service"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCreateRoomCategory_Validation(t *testing.T) {
	e := newEnv(t, 1)
	_, err := e.catalog.CreateRoomCategory(context.Background(), service.RoomCategoryInput{
		Name: "  ", TotalRooms: -1, BasePriceCents: -5, CurrencyCode: "XXXX",
	})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Fields, "name")
	assert.Contains(t, appErr.Fields, "total_rooms")
	assert.Contains(t, appErr.Fields, "base_price_cents")
	assert.Contains(t, appErr.Fields, "currency_code")
}

func TestCatalog_PriceCaps(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()
	over := pricing.MaxPriceCents + 1

	_, err := e.catalog.CreateRoomCategory(ctx, service.RoomCategoryInput{Name: "Penthouse", TotalRooms: 1, BasePriceCents: over})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Fields, "base_price_cents")

	_, err = e.catalog.UpdateRoomCategory(ctx, e.category.ID, service.RoomCategoryPatchInput{BasePriceCents: &over})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = e.catalog.CreateSpecialDay(ctx, service.SpecialDayInput{
		Date: stay.Day(today).AddDate(0, 0, 3), Kind: models.SpecialDaySpecialRate, FixedPriceCents: &over, IsActive: true,
	})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = e.catalog.CreateRoomCategory(ctx, service.RoomCategoryInput{Name: "Suite", TotalRooms: 1, BasePriceCents: pricing.MaxPriceCents})
	require.NoError(t, err)
}

func TestCreateRoomCategory_DefaultsAndDuplicates(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	c, err := e.catalog.CreateRoomCategory(ctx, service.RoomCategoryInput{Name: " Deluxe ", TotalRooms: 3, CurrencyCode: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "Deluxe", c.Name)
	assert.Equal(t, "EUR", c.CurrencyCode)

	_, err = e.catalog.CreateRoomCategory(ctx, service.RoomCategoryInput{Name: "deluxe", TotalRooms: 1})
	assert.Equal(t, apperror.CodeRuleConflict, apperror.CodeOf(err))
}

func TestRoomCategoryCacheInvalidatedOnUpdate(t *testing.T) {
	e := newEnv(t, 5)
	ctx := context.Background()

	list, err := e.catalog.ListRoomCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got, err := e.catalog.GetRoomCategory(ctx, e.category.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.BasePriceCents)

	_, err = e.catalog.UpdateRoomCategory(ctx, e.category.ID, service.RoomCategoryPatchInput{BasePriceCents: ptr(int64(15000))})
	require.NoError(t, err)

	got, err = e.catalog.GetRoomCategory(ctx, e.category.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), got.BasePriceCents)

	// новая цена сразу попадает в расчёт
	q, err := e.bookings.QuoteStay(ctx, service.QuoteInput{
		RoomCategoryID: e.category.ID,
		StartDate:      stay.Day(today).AddDate(0, 0, 1),
		EndDate:        stay.Day(today).AddDate(0, 0, 2),
		RoomsBooked:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), q.Quote.TotalCents)
}

func TestUpdateRoomCategory_BelowSold(t *testing.T) {
	e := newEnv(t, 5)
	ctx := context.Background()
	_, err := e.bookings.CreateBooking(ctx, e.input(1, 2, 4))
	require.NoError(t, err)

	_, err = e.catalog.UpdateRoomCategory(ctx, e.category.ID, service.RoomCategoryPatchInput{TotalRooms: ptr(3)})
	assert.Equal(t, apperror.CodeRuleConflict, apperror.CodeOf(err))

	_, err = e.catalog.UpdateRoomCategory(ctx, e.category.ID, service.RoomCategoryPatchInput{TotalRooms: ptr(8)})
	require.NoError(t, err)

	in := e.input(1, 2, 1)
	nights, err := e.bookings.GetAvailability(ctx, e.category.ID, in.StartDate, in.EndDate)
	require.NoError(t, err)
	for _, n := range nights {
		assert.Equal(t, 4, n.AvailableRooms)
	}

	_, err = e.catalog.UpdateRoomCategory(ctx, uuid.New(), service.RoomCategoryPatchInput{TotalRooms: ptr(1)})
	assert.Equal(t, apperror.CodeRoomTypeNotFound, apperror.CodeOf(err))
}

func TestSpecialDay_Validation(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()
	day := stay.Day(today).AddDate(0, 0, 3)

	cases := map[string]service.SpecialDayInput{
		"no date":              {Kind: models.SpecialDayBlocked, IsActive: true},
		"blocked with price":   {Date: day, Kind: models.SpecialDayBlocked, FixedPriceCents: ptr(int64(100))},
		"rate without price":   {Date: day, Kind: models.SpecialDaySpecialRate},
		"rate with both":       {Date: day, Kind: models.SpecialDaySpecialRate, Multiplier: ptr(1.5), FixedPriceCents: ptr(int64(1))},
		"multiplier too large": {Date: day, Kind: models.SpecialDaySpecialRate, Multiplier: ptr(11.0)},
		"unknown kind":         {Date: day, Kind: "HOLIDAY"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.catalog.CreateSpecialDay(ctx, in)
			assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
		})
	}

	_, err := e.catalog.CreateSpecialDay(ctx, service.SpecialDayInput{
		Date: day, RoomCategoryID: ptr(uuid.New()), Kind: models.SpecialDayBlocked, IsActive: true,
	})
	assert.Equal(t, apperror.CodeRoomTypeNotFound, apperror.CodeOf(err))
}

func TestSpecialDay_ScopeConflictAndToggle(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()
	day := stay.Day(today).AddDate(0, 0, 3)

	first, err := e.catalog.CreateSpecialDay(ctx, service.SpecialDayInput{
		Date: day, RoomCategoryID: &e.category.ID, Kind: models.SpecialDaySpecialRate, Multiplier: ptr(1.5), IsActive: true,
	})
	require.NoError(t, err)

	_, err = e.catalog.CreateSpecialDay(ctx, service.SpecialDayInput{
		Date: day, RoomCategoryID: &e.category.ID, Kind: models.SpecialDayBlocked, IsActive: true,
	})
	assert.Equal(t, apperror.CodeRuleConflict, apperror.CodeOf(err))

	// общий и категорийный правила на одну дату допустимы
	_, err = e.catalog.CreateSpecialDay(ctx, service.SpecialDayInput{
		Date: day, Kind: models.SpecialDaySpecialRate, Multiplier: ptr(2.0), IsActive: true,
	})
	require.NoError(t, err)

	// неактивный дубль можно сохранить, но нельзя включить
	second, err := e.catalog.CreateSpecialDay(ctx, service.SpecialDayInput{
		Date: day, RoomCategoryID: &e.category.ID, Kind: models.SpecialDayBlocked,
	})
	require.NoError(t, err)
	_, err = e.catalog.SetSpecialDayActive(ctx, second.ID, true)
	assert.Equal(t, apperror.CodeRuleConflict, apperror.CodeOf(err))

	_, err = e.catalog.SetSpecialDayActive(ctx, first.ID, false)
	require.NoError(t, err)
	enabled, err := e.catalog.SetSpecialDayActive(ctx, second.ID, true)
	require.NoError(t, err)
	assert.True(t, enabled.IsActive)

	_, err = e.catalog.SetSpecialDayActive(ctx, uuid.New(), true)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestSpecialDay_UpdateMovesRuleAndInvalidatesBothDates(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	in := e.input(1, 4, 1)
	oldDay := in.StartDate.AddDate(0, 0, 1)
	newDay := in.StartDate.AddDate(0, 0, 2)

	d, err := e.catalog.CreateSpecialDay(ctx, service.SpecialDayInput{Date: oldDay, Kind: models.SpecialDayBlocked, IsActive: true})
	require.NoError(t, err)

	nights, err := e.bookings.GetAvailability(ctx, e.category.ID, in.StartDate, in.EndDate)
	require.NoError(t, err)
	assert.True(t, nights[1].Blocked)

	updated, err := e.catalog.UpdateSpecialDay(ctx, d.ID, service.SpecialDayInput{Date: newDay, Kind: models.SpecialDayBlocked, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, d.ID, updated.ID)
	assert.Equal(t, d.CreatedAt, updated.CreatedAt)

	nights, err = e.bookings.GetAvailability(ctx, e.category.ID, in.StartDate, in.EndDate)
	require.NoError(t, err)
	assert.False(t, nights[1].Blocked)
	assert.True(t, nights[2].Blocked)

	_, err = e.catalog.UpdateSpecialDay(ctx, uuid.New(), service.SpecialDayInput{Date: newDay, Kind: models.SpecialDayBlocked})
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestDepositPolicy_ValidationAndOverlap(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	invalid := map[string]service.DepositPolicyInput{
		"percent over 100":  {MinRooms: 10, MaxRooms: 20, Type: models.DepositPercent, Value: 150},
		"fractional fixed":  {MinRooms: 10, MaxRooms: 20, Type: models.DepositFixed, Value: 10.5},
		"max below min":     {MinRooms: 10, MaxRooms: 5, Type: models.DepositPercent, Value: 10},
		"zero value":        {MinRooms: 10, MaxRooms: 20, Type: models.DepositPercent},
		"unknown type":      {MinRooms: 10, MaxRooms: 20, Type: "SHARE", Value: 1},
		"min rooms below 1": {MinRooms: 0, MaxRooms: 20, Type: models.DepositFixed, Value: 1},
	}
	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := e.catalog.CreateDepositPolicy(ctx, in)
			assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
		})
	}

	p, err := e.catalog.CreateDepositPolicy(ctx, service.DepositPolicyInput{
		MinRooms: 10, MaxRooms: 19, Type: models.DepositPercent, Value: 20, IsActive: true,
	})
	require.NoError(t, err)

	_, err = e.catalog.CreateDepositPolicy(ctx, service.DepositPolicyInput{
		MinRooms: 15, MaxRooms: 30, Type: models.DepositFixed, Value: 50000, IsActive: true,
	})
	assert.Equal(t, apperror.CodeRuleConflict, apperror.CodeOf(err))

	_, err = e.catalog.CreateDepositPolicy(ctx, service.DepositPolicyInput{
		MinRooms: 20, MaxRooms: 30, Type: models.DepositFixed, Value: 50000, IsActive: true,
	})
	require.NoError(t, err)

	// расширение диапазона упирается в соседнюю политику
	_, err = e.catalog.UpdateDepositPolicy(ctx, p.ID, service.DepositPolicyInput{
		MinRooms: 10, MaxRooms: 25, Type: models.DepositPercent, Value: 20, IsActive: true,
	})
	assert.Equal(t, apperror.CodeRuleConflict, apperror.CodeOf(err))

	off, err := e.catalog.SetDepositPolicyActive(ctx, p.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	active, err := e.catalog.ListDepositPolicies(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := e.catalog.ListDepositPolicies(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDepositPolicyCacheInvalidated(t *testing.T) {
	e := newEnv(t, 20)
	ctx := context.Background()
	quote := func() int64 {
		q, err := e.bookings.QuoteStay(ctx, service.QuoteInput{
			RoomCategoryID: e.category.ID,
			StartDate:      stay.Day(today).AddDate(0, 0, 1),
			EndDate:        stay.Day(today).AddDate(0, 0, 2),
			RoomsBooked:    10,
		})
		require.NoError(t, err)
		return q.Deposit.AmountCents
	}

	p, err := e.catalog.CreateDepositPolicy(ctx, service.DepositPolicyInput{
		MinRooms: 10, MaxRooms: 20, Type: models.DepositFixed, Value: 5000, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), quote())

	_, err = e.catalog.UpdateDepositPolicy(ctx, p.ID, service.DepositPolicyInput{
		MinRooms: 10, MaxRooms: 20, Type: models.DepositPercent, Value: 10, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), quote())

	_, err = e.catalog.SetDepositPolicyActive(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), quote())
}
