package service

import (
	"context"
	"strings"

	"reservation-service/internal/apperror"
	"reservation-service/internal/cache"
	"reservation-service/internal/models"
	"reservation-service/internal/stay"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const currencyRUB = "RUB"

// CatalogService: администрирование категорий, особых дней и политик депозита.
// Каждая запись после коммита сбрасывает связанные ключи кэша.
type CatalogService struct {
	store    CatalogStore
	cache    cache.Cache
	inv      *cache.Invalidator
	validate *validator.Validate
	log      *zap.Logger
}

func NewCatalogService(store CatalogStore, c cache.Cache, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{
		store:    store,
		cache:    c,
		inv:      cache.NewInvalidator(c, log),
		validate: newValidator(),
		log:      log,
	}
}

func (s *CatalogService) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *CatalogService) CreateRoomCategory(ctx context.Context, in RoomCategoryInput) (*models.RoomCategory, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CurrencyCode = strings.ToUpper(strings.TrimSpace(in.CurrencyCode))
	if err := s.check(in); err != nil {
		return nil, err
	}
	currency := in.CurrencyCode
	if currency == "" {
		currency = currencyRUB
	}

	c := &models.RoomCategory{
		Name:           in.Name,
		TotalRooms:     in.TotalRooms,
		BasePriceCents: in.BasePriceCents,
		CurrencyCode:   currency,
	}
	if err := s.store.CreateRoomCategory(ctx, c); err != nil {
		return nil, err
	}
	s.inv.RoomCategory(c.ID)
	s.log.Info("room category created", zap.String("room_category_id", c.ID.String()), zap.String("name", c.Name))
	return c, nil
}

func (s *CatalogService) UpdateRoomCategory(ctx context.Context, id uuid.UUID, in RoomCategoryPatchInput) (*models.RoomCategory, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	c, err := s.store.UpdateRoomCategory(ctx, id, models.RoomCategoryPatch{
		Name:           in.Name,
		TotalRooms:     in.TotalRooms,
		BasePriceCents: in.BasePriceCents,
	})
	if err != nil {
		return nil, err
	}
	s.inv.RoomCategory(id)
	s.log.Info("room category updated", zap.String("room_category_id", id.String()))
	return c, nil
}

func (s *CatalogService) GetRoomCategory(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.RoomCategoryKey(id), cache.TTLLong,
		func(ctx context.Context) (*models.RoomCategory, error) {
			c, err := s.store.GetRoomCategory(ctx, id)
			if err != nil {
				return nil, err
			}
			if c == nil {
				return nil, apperror.RoomTypeNotFound(id)
			}
			return c, nil
		})
}

func (s *CatalogService) ListRoomCategories(ctx context.Context) ([]models.RoomCategory, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.RoomCategoriesKey(), cache.TTLLong, s.store.ListRoomCategories)
}

func (s *CatalogService) CreateSpecialDay(ctx context.Context, in SpecialDayInput) (*models.SpecialDay, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	d := specialDayFromInput(in)
	if err := s.store.SaveSpecialDay(ctx, d); err != nil {
		return nil, err
	}
	s.inv.SpecialDays(d.RoomCategoryID, d.Date)
	s.log.Info("special day created",
		zap.String("special_day_id", d.ID.String()),
		zap.String("date", d.Date.Format(stay.DateLayout)),
		zap.String("kind", string(d.Kind)))
	return d, nil
}

// UpdateSpecialDay перезаписывает правило целиком; кэш чистится и для старой, и для новой даты.
func (s *CatalogService) UpdateSpecialDay(ctx context.Context, id uuid.UUID, in SpecialDayInput) (*models.SpecialDay, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	prev, err := s.store.GetSpecialDay(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, notFound(ErrSpecialDayNotFound)
	}

	d := specialDayFromInput(in)
	d.ID = prev.ID
	d.CreatedAt = prev.CreatedAt
	if err := s.store.SaveSpecialDay(ctx, d); err != nil {
		return nil, err
	}
	s.inv.SpecialDays(prev.RoomCategoryID, prev.Date)
	s.inv.SpecialDays(d.RoomCategoryID, d.Date)
	s.log.Info("special day updated", zap.String("special_day_id", d.ID.String()))
	return d, nil
}

func (s *CatalogService) SetSpecialDayActive(ctx context.Context, id uuid.UUID, active bool) (*models.SpecialDay, error) {
	d, err := s.store.GetSpecialDay(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, notFound(ErrSpecialDayNotFound)
	}
	if d.IsActive == active {
		return d, nil
	}
	d.IsActive = active
	if err := s.store.SaveSpecialDay(ctx, d); err != nil {
		return nil, err
	}
	s.inv.SpecialDays(d.RoomCategoryID, d.Date)
	s.log.Info("special day toggled", zap.String("special_day_id", id.String()), zap.Bool("active", active))
	return d, nil
}

func (s *CatalogService) ListSpecialDays(ctx context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error) {
	return s.store.ListSpecialDays(ctx, f)
}

func specialDayFromInput(in SpecialDayInput) *models.SpecialDay {
	return &models.SpecialDay{
		Date:            stay.Day(in.Date),
		RoomCategoryID:  in.RoomCategoryID,
		Kind:            in.Kind,
		Multiplier:      in.Multiplier,
		FixedPriceCents: in.FixedPriceCents,
		IsActive:        in.IsActive,
		Description:     strings.TrimSpace(in.Description),
	}
}

func (s *CatalogService) CreateDepositPolicy(ctx context.Context, in DepositPolicyInput) (*models.DepositPolicy, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	p := depositPolicyFromInput(in)
	if err := s.store.SaveDepositPolicy(ctx, p); err != nil {
		return nil, err
	}
	s.inv.DepositPolicies()
	s.log.Info("deposit policy created",
		zap.String("deposit_policy_id", p.ID.String()), zap.Int("min_rooms", p.MinRooms), zap.Int("max_rooms", p.MaxRooms))
	return p, nil
}

func (s *CatalogService) UpdateDepositPolicy(ctx context.Context, id uuid.UUID, in DepositPolicyInput) (*models.DepositPolicy, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	prev, err := s.store.GetDepositPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, notFound(ErrDepositPolicyNotFound)
	}
	p := depositPolicyFromInput(in)
	p.ID = prev.ID
	p.CreatedAt = prev.CreatedAt
	if err := s.store.SaveDepositPolicy(ctx, p); err != nil {
		return nil, err
	}
	s.inv.DepositPolicies()
	s.log.Info("deposit policy updated", zap.String("deposit_policy_id", id.String()))
	return p, nil
}

func (s *CatalogService) SetDepositPolicyActive(ctx context.Context, id uuid.UUID, active bool) (*models.DepositPolicy, error) {
	p, err := s.store.GetDepositPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound(ErrDepositPolicyNotFound)
	}
	if p.IsActive == active {
		return p, nil
	}
	p.IsActive = active
	if err := s.store.SaveDepositPolicy(ctx, p); err != nil {
		return nil, err
	}
	s.inv.DepositPolicies()
	s.log.Info("deposit policy toggled", zap.String("deposit_policy_id", id.String()), zap.Bool("active", active))
	return p, nil
}

func (s *CatalogService) ListDepositPolicies(ctx context.Context, onlyActive bool) ([]models.DepositPolicy, error) {
	return s.store.ListDepositPolicies(ctx, onlyActive)
}

func depositPolicyFromInput(in DepositPolicyInput) *models.DepositPolicy {
	return &models.DepositPolicy{
		MinRooms:    in.MinRooms,
		MaxRooms:    in.MaxRooms,
		Type:        in.Type,
		Value:       in.Value,
		IsActive:    in.IsActive,
		Description: strings.TrimSpace(in.Description),
	}
}
