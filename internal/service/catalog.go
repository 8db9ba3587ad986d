package service

import (
	"time"

	"reservation-service/internal/models"

	"github.com/google/uuid"
)

type RoomCategoryInput struct {
	Name           string `validate:"required,max=128"`
	TotalRooms     int    `validate:"gte=0,lte=100000"`
	BasePriceCents int64  `validate:"gte=0,lte=100000000000"`
	CurrencyCode   string `validate:"omitempty,iso4217"` // пусто: RUB
}

type RoomCategoryPatchInput struct {
	Name           *string `validate:"omitnil,min=1,max=128"`
	TotalRooms     *int    `validate:"omitnil,gte=0,lte=100000"`
	BasePriceCents *int64  `validate:"omitnil,gte=0,lte=100000000000"`
}

// SpecialDayInput: SPECIAL_RATE требует ровно одно из Multiplier / FixedPriceCents, BLOCKED не допускает ни одного.
type SpecialDayInput struct {
	Date            time.Time
	RoomCategoryID  *uuid.UUID
	Kind            models.SpecialDayKind `validate:"required,oneof=BLOCKED SPECIAL_RATE"`
	Multiplier      *float64              `validate:"omitnil,gte=0.1,lte=10"`
	FixedPriceCents *int64                `validate:"omitnil,gte=0,lte=100000000000"`
	IsActive        bool
	Description     string `validate:"max=500"`
}

// DepositPolicyInput: PERCENT в (0, 100], FIXED целым числом копеек > 0.
type DepositPolicyInput struct {
	MinRooms    int                `validate:"gte=1"`
	MaxRooms    int                `validate:"gtefield=MinRooms"`
	Type        models.DepositType `validate:"required,oneof=PERCENT FIXED"`
	Value       float64            `validate:"gt=0,lte=100000000000"`
	IsActive    bool
	Description string `validate:"max=500"`
}
