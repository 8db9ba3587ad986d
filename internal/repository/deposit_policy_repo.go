package repository

import (
	"context"
	"errors"

	"reservation-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ключ advisory-блокировки, сериализующей запись политик депозита
const depositPolicyLockKey = 7_340_021

type DepositPolicyRepo interface {
	Create(ctx context.Context, p *models.DepositPolicy) error
	Save(ctx context.Context, p *models.DepositPolicy) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DepositPolicy, error)
	List(ctx context.Context, onlyActive bool) ([]models.DepositPolicy, error)

	// FindOverlapping: активные политики, чей диапазон пересекается с [min, max], кроме excludeID.
	FindOverlapping(ctx context.Context, min, max int, excludeID uuid.UUID) ([]models.DepositPolicy, error)
	// LockWriters: pg_advisory_xact_lock, держится до конца транзакции.
	LockWriters(ctx context.Context) error
}

type depositPolicyRepo struct{ db *gorm.DB }

func NewDepositPolicyRepo(db *gorm.DB) DepositPolicyRepo { return &depositPolicyRepo{db: db} }

func (r *depositPolicyRepo) Create(ctx context.Context, p *models.DepositPolicy) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *depositPolicyRepo) Save(ctx context.Context, p *models.DepositPolicy) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *depositPolicyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DepositPolicy, error) {
	var p models.DepositPolicy
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *depositPolicyRepo) List(ctx context.Context, onlyActive bool) ([]models.DepositPolicy, error) {
	q := r.db.WithContext(ctx)
	if onlyActive {
		q = q.Where("is_active = TRUE")
	}
	var list []models.DepositPolicy
	err := q.Order("min_rooms ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *depositPolicyRepo) FindOverlapping(ctx context.Context, min, max int, excludeID uuid.UUID) ([]models.DepositPolicy, error) {
	var list []models.DepositPolicy
	err := r.db.WithContext(ctx).
		Where("is_active = TRUE AND id <> ? AND min_rooms <= ? AND max_rooms >= ?", excludeID, max, min).
		Order("min_rooms ASC").
		Find(&list).Error
	return list, err
}

func (r *depositPolicyRepo) LockWriters(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec(`SELECT pg_advisory_xact_lock(?)`, depositPolicyLockKey).Error
}
