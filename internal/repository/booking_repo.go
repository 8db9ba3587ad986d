package repository

import (
	"context"
	"errors"

	"reservation-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingRepo interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)

	// LedgerDrift сверяет леджер с активными бронями: available = total - Σ rooms_booked.
	LedgerDrift(ctx context.Context) ([]models.LedgerDrift, error)
}

type bookingRepo struct{ db *gorm.DB }

func NewBookingRepo(db *gorm.DB) BookingRepo { return &bookingRepo{db: db} }

func (r *bookingRepo) Create(ctx context.Context, b *models.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *bookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	var list []models.Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *bookingRepo) LedgerDrift(ctx context.Context) ([]models.LedgerDrift, error) {
	var list []models.LedgerDrift
	err := r.db.WithContext(ctx).Raw(`
SELECT n.room_category_id,
       n.night,
       n.available_rooms,
       c.total_rooms - COALESCE(SUM(b.rooms_booked), 0) AS expected_rooms
FROM inventory_nights n
JOIN room_categories c ON c.id = n.room_category_id
LEFT JOIN bookings b
  ON b.room_category_id = n.room_category_id
 AND b.status <> @cancelled
 AND b.start_date <= n.night
 AND b.end_date > n.night
GROUP BY n.room_category_id, n.night, n.available_rooms, c.total_rooms
HAVING n.available_rooms <> c.total_rooms - COALESCE(SUM(b.rooms_booked), 0)
ORDER BY n.room_category_id, n.night
`, map[string]any{"cancelled": models.BookingCancelled}).Scan(&list).Error
	return list, err
}
