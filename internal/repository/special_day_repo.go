package repository

import (
	"context"
	"errors"
	"time"

	"reservation-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SpecialDayRepo interface {
	Create(ctx context.Context, d *models.SpecialDay) error
	Save(ctx context.Context, d *models.SpecialDay) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SpecialDay, error)
	List(ctx context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error)

	// FindActiveInScope: активное правило на ту же (дату, категорию), кроме excludeID.
	FindActiveInScope(ctx context.Context, date time.Time, categoryID *uuid.UUID, excludeID uuid.UUID) (*models.SpecialDay, error)
}

type specialDayRepo struct{ db *gorm.DB }

func NewSpecialDayRepo(db *gorm.DB) SpecialDayRepo { return &specialDayRepo{db: db} }

func (r *specialDayRepo) Create(ctx context.Context, d *models.SpecialDay) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *specialDayRepo) Save(ctx context.Context, d *models.SpecialDay) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *specialDayRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SpecialDay, error) {
	var d models.SpecialDay
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *specialDayRepo) List(ctx context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error) {
	q := r.db.WithContext(ctx).Model(&models.SpecialDay{})

	if f.OnlyActive {
		q = q.Where("is_active = TRUE")
	}
	if !f.From.IsZero() {
		q = q.Where("date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date < ?", f.To)
	}
	if f.RoomCategoryID != nil {
		if f.WithWildcard {
			q = q.Where("(room_category_id = ? OR room_category_id IS NULL)", *f.RoomCategoryID)
		} else {
			q = q.Where("room_category_id = ?", *f.RoomCategoryID)
		}
	}

	var list []models.SpecialDay
	err := q.Order("date ASC, created_at ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *specialDayRepo) FindActiveInScope(ctx context.Context, date time.Time, categoryID *uuid.UUID, excludeID uuid.UUID) (*models.SpecialDay, error) {
	q := r.db.WithContext(ctx).
		Where("is_active = TRUE AND date = ? AND id <> ?", date, excludeID)
	if categoryID == nil {
		q = q.Where("room_category_id IS NULL")
	} else {
		q = q.Where("room_category_id = ?", *categoryID)
	}

	var d models.SpecialDay
	err := q.First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
