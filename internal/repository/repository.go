package repository

import (
	"time"

	"gorm.io/gorm"
)

const defaultLockTimeout = 3 * time.Second

type Repository struct {
	DB              *gorm.DB
	RoomCategories  RoomCategoryRepo
	Inventory       InventoryRepo
	SpecialDays     SpecialDayRepo
	DepositPolicies DepositPolicyRepo
	Bookings        BookingRepo
	Idempotency     IdempotencyRepo

	lockTimeout time.Duration
}

type Option func(*Repository)

// WithLockTimeout ограничивает ожидание блокировок строк леджера в транзакции бронирования.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

func buildRepository(db *gorm.DB, lockTimeout time.Duration) *Repository {
	return &Repository{
		DB:              db,
		RoomCategories:  NewRoomCategoryRepo(db),
		Inventory:       NewInventoryRepo(db),
		SpecialDays:     NewSpecialDayRepo(db),
		DepositPolicies: NewDepositPolicyRepo(db),
		Bookings:        NewBookingRepo(db),
		Idempotency:     NewIdempotencyRepo(db),
		lockTimeout:     lockTimeout,
	}
}

func New(db *gorm.DB, opts ...Option) *Repository {
	r := buildRepository(db, defaultLockTimeout)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Глобальная транзакция на весь набор репо
func (r *Repository) WithTx(fn func(tx *Repository) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx, r.lockTimeout))
	})
}
