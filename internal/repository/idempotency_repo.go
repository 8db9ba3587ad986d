package repository

import (
	"context"
	"errors"

	"reservation-service/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdempotencyRepo interface {
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	// InsertIfAbsent возвращает false, если ключ уже занят (или занимается параллельной транзакцией, которая закоммитилась).
	InsertIfAbsent(ctx context.Context, rec *models.IdempotencyRecord) (bool, error)
}

type idempotencyRepo struct{ db *gorm.DB }

func NewIdempotencyRepo(db *gorm.DB) IdempotencyRepo { return &idempotencyRepo{db: db} }

func (r *idempotencyRepo) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := r.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *idempotencyRepo) InsertIfAbsent(ctx context.Context, rec *models.IdempotencyRecord) (bool, error) {
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(rec)
	return tx.RowsAffected > 0, tx.Error
}
