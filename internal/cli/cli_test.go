package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"reservation-service/internal/cache"
	"reservation-service/internal/idempotency"
	"reservation-service/internal/integrity"
	"reservation-service/internal/models"
	"reservation-service/internal/producer"
	"reservation-service/internal/service"
	"reservation-service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryOpener(t *testing.T) (Opener, *memory.Store) {
	t.Helper()
	log := zap.NewNop()
	store := memory.New(log)
	c := cache.NewMemory(cache.Config{}, log)
	keys := idempotency.NewManager(store, c, nil, log)
	backend := &Backend{
		Catalog:  service.NewCatalogService(store, c, log),
		Bookings: service.NewReservationService(store, c, keys, producer.Noop{}, log),
		Checker:  integrity.NewChecker(store, log),
	}
	return func(context.Context) (*Backend, error) { return backend, nil }, store
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCategoriesCreateAndList(t *testing.T) {
	open, _ := memoryOpener(t)

	out, err := run(t, open, "categories", "create", "--name", "Deluxe", "--rooms", "12", "--price", "1550000", "--json")
	require.NoError(t, err)
	var created models.RoomCategory
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "Deluxe", created.Name)
	assert.Equal(t, "RUB", created.CurrencyCode)

	out, err = run(t, open, "categories", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Deluxe")
	assert.Contains(t, out, "15500.00 RUB")

	out, err = run(t, open, "categories", "update", created.ID.String(), "--rooms", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "20")
}

func TestCategoriesUpdateNeedsAField(t *testing.T) {
	open, _ := memoryOpener(t)
	_, err := run(t, open, "categories", "update", "6f1c7d2e-4a55-4a0d-9a3e-1c4c1b1b2f10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestSpecialDaysAddRejectsDuplicateScope(t *testing.T) {
	open, _ := memoryOpener(t)

	_, err := run(t, open, "special-days", "add", "--date", "2031-01-01")
	require.NoError(t, err)

	_, err = run(t, open, "special-days", "add", "--date", "2031-01-01", "--kind", "SPECIAL_RATE", "--multiplier", "1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RULE_CONFLICT")

	out, err := run(t, open, "special-days", "list", "--from", "2031-01-01", "--to", "2031-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"), out)
	assert.Contains(t, out, "BLOCKED")
}

func TestSpecialDaysAddRejectsBothPrices(t *testing.T) {
	open, _ := memoryOpener(t)
	_, err := run(t, open, "special-days", "add", "--date", "2031-01-01", "--kind", "SPECIAL_RATE",
		"--multiplier", "1.5", "--fixed", "100")
	require.Error(t, err)
}

func TestDepositPoliciesAndIntegrity(t *testing.T) {
	open, _ := memoryOpener(t)

	_, err := run(t, open, "deposit-policies", "add", "--min", "10", "--max", "19", "--value", "20")
	require.NoError(t, err)

	_, err = run(t, open, "deposit-policies", "add", "--min", "15", "--max", "25", "--type", "FIXED", "--value", "50000")
	require.Error(t, err)

	out, err := run(t, open, "deposit-policies", "list", "--active")
	require.NoError(t, err)
	assert.Contains(t, out, "10-19")

	out, err = run(t, open, "integrity")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}

func TestIntegrityReportsIssues(t *testing.T) {
	open := func(context.Context) (*Backend, error) {
		return &Backend{Checker: integrity.NewChecker(driftSource{}, zap.NewNop())}, nil
	}
	out, err := run(t, open, "integrity")
	require.True(t, errors.Is(err, ErrIntegrityIssues))
	assert.Contains(t, out, string(integrity.IssueLedgerDrift))
}

type driftSource struct{}

func (driftSource) ListDepositPolicies(context.Context, bool) ([]models.DepositPolicy, error) {
	return nil, nil
}

func (driftSource) ListSpecialDays(context.Context, models.SpecialDayFilter) ([]models.SpecialDay, error) {
	return nil, nil
}

func (driftSource) LedgerDrift(context.Context) ([]models.LedgerDrift, error) {
	return []models.LedgerDrift{{AvailableRooms: 3, ExpectedRooms: 2}}, nil
}

func TestOpenerErrorIsReturned(t *testing.T) {
	open := func(context.Context) (*Backend, error) { return nil, errors.New("db down") }
	_, err := run(t, open, "categories", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestHelpDoesNotOpenBackend(t *testing.T) {
	open := func(context.Context) (*Backend, error) {
		t.Fatal("backend opened for --help")
		return nil, nil
	}
	out, err := run(t, open, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "special-days")
}
