package repository

import (
	"context"
	"errors"

	"reservation-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomCategoryRepo interface {
	Create(ctx context.Context, c *models.RoomCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error)
	GetByName(ctx context.Context, name string) (*models.RoomCategory, error)
	List(ctx context.Context) ([]models.RoomCategory, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error

	// Блокировки строки категории: бронирование берёт SHARE, изменение числа номеров берёт UPDATE.
	LockShare(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error)
	LockUpdate(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error)
}

type roomCategoryRepo struct{ db *gorm.DB }

func NewRoomCategoryRepo(db *gorm.DB) RoomCategoryRepo { return &roomCategoryRepo{db: db} }

func (r *roomCategoryRepo) Create(ctx context.Context, c *models.RoomCategory) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *roomCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *roomCategoryRepo) GetByName(ctx context.Context, name string) (*models.RoomCategory, error) {
	return r.first(r.db.WithContext(ctx), "lower(name) = lower(?)", name)
}

func (r *roomCategoryRepo) List(ctx context.Context) ([]models.RoomCategory, error) {
	var list []models.RoomCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

func (r *roomCategoryRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.RoomCategory{}).Where("id = ?", id).Updates(fields).Error
}

func (r *roomCategoryRepo) LockShare(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}), "id = ?", id)
}

func (r *roomCategoryRepo) LockUpdate(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *roomCategoryRepo) first(q *gorm.DB, cond string, args ...any) (*models.RoomCategory, error) {
	var c models.RoomCategory
	err := q.Where(cond, args...).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
