package models

import (
	"time"

	"github.com/google/uuid"
)

type RoomCategory struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"type:text;not null;uniqueIndex"`
	TotalRooms     int       `gorm:"not null"`
	BasePriceCents int64     `gorm:"not null"`
	CurrencyCode   string    `gorm:"type:char(3);not null;default:'RUB'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (RoomCategory) TableName() string { return "room_categories" }

// InventoryNight: строка леджера, сколько номеров категории ещё можно продать на ночь.
// Отсутствие строки означает полную доступность (TotalRooms).
type InventoryNight struct {
	RoomCategoryID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Night          time.Time `gorm:"type:date;primaryKey"`
	AvailableRooms int       `gorm:"not null"`

	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (InventoryNight) TableName() string { return "inventory_nights" }

type SpecialDayKind string

const (
	SpecialDayBlocked     SpecialDayKind = "BLOCKED"
	SpecialDaySpecialRate SpecialDayKind = "SPECIAL_RATE"
)

// SpecialDay переопределяет ночь: блокирует продажу или меняет цену.
// RoomCategoryID == nil: правило для всех категорий.
type SpecialDay struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Date            time.Time      `gorm:"type:date;not null;index"`
	RoomCategoryID  *uuid.UUID     `gorm:"type:uuid;index"`
	Kind            SpecialDayKind `gorm:"type:text;not null"`
	Multiplier      *float64       `gorm:"type:numeric(6,4)"`
	FixedPriceCents *int64
	IsActive        bool   `gorm:"not null;default:true"`
	Description     string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (SpecialDay) TableName() string { return "special_days" }

func (d *SpecialDay) IsWildcard() bool { return d.RoomCategoryID == nil }

// SameScope: правила относятся к одной и той же паре (дата, категория).
func (d *SpecialDay) SameScope(other *SpecialDay) bool {
	if !d.Date.Equal(other.Date) {
		return false
	}
	if d.RoomCategoryID == nil || other.RoomCategoryID == nil {
		return d.RoomCategoryID == nil && other.RoomCategoryID == nil
	}
	return *d.RoomCategoryID == *other.RoomCategoryID
}

type DepositType string

const (
	DepositPercent DepositType = "PERCENT"
	DepositFixed   DepositType = "FIXED"
)

type DepositPolicy struct {
	ID          uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MinRooms    int         `gorm:"not null"`
	MaxRooms    int         `gorm:"not null"`
	Type        DepositType `gorm:"type:text;not null"`
	Value       float64     `gorm:"type:numeric(12,2);not null"`
	IsActive    bool        `gorm:"not null;default:true;index"`
	Description string      `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (DepositPolicy) TableName() string { return "deposit_policies" }

func (p *DepositPolicy) Covers(rooms int) bool {
	return rooms >= p.MinRooms && rooms <= p.MaxRooms
}

func (p *DepositPolicy) Overlaps(other *DepositPolicy) bool {
	return p.MinRooms <= other.MaxRooms && other.MinRooms <= p.MaxRooms
}

type BookingStatus string

const (
	BookingProvisional BookingStatus = "PROVISIONAL"
	BookingConfirmed   BookingStatus = "CONFIRMED"
	BookingCancelled   BookingStatus = "CANCELLED"
)

// Booking: цена, депозит и количество номеров фиксируются при создании и больше не пересчитываются.
type Booking struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID     `gorm:"type:uuid;not null;index"`
	RoomCategoryID  uuid.UUID     `gorm:"type:uuid;not null;index"`
	StartDate       time.Time     `gorm:"type:date;not null"`
	EndDate         time.Time     `gorm:"type:date;not null"`
	RoomsBooked     int           `gorm:"not null"`
	Status          BookingStatus `gorm:"type:text;not null;default:'PROVISIONAL';index"`
	TotalPriceCents int64         `gorm:"not null"`
	CurrencyCode    string        `gorm:"type:char(3);not null"`
	DepositRequired bool          `gorm:"not null;default:false"`
	DepositCents    *int64

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Booking) TableName() string { return "bookings" }

// IdempotencyRecord фиксирует ключ → бронь; пишется один раз, в той же транзакции, что и бронь.
type IdempotencyRecord struct {
	Key         string    `gorm:"type:text;primaryKey"`
	BookingID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	RequestHash string    `gorm:"type:char(64);not null"`
	Metadata    string    `gorm:"type:jsonb;not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }
