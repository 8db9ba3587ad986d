package pricing

import (
	"math"
	"sort"

	"reservation-service/internal/models"

	"github.com/google/uuid"
)

// GroupBookingThreshold: с этого количества номеров бронь считается групповой.
const GroupBookingThreshold = 10

type Deposit struct {
	Required    bool       `json:"required"`
	AmountCents int64      `json:"amount_cents"`
	PolicyID    *uuid.UUID `json:"policy_id,omitempty"`

	// Ambiguous: под количество номеров попало несколько активных политик.
	// Это ошибка данных: выбирается первая по MinRooms, но вызывающий обязан её залогировать.
	Ambiguous bool `json:"-"`
}

func IsGroupBooking(rooms int) bool {
	return rooms >= GroupBookingThreshold
}

func ResolveDeposit(rooms int, totalCents int64, policies []models.DepositPolicy) Deposit {
	if !IsGroupBooking(rooms) {
		return Deposit{}
	}

	matches := make([]models.DepositPolicy, 0, 1)
	for _, p := range policies {
		if p.IsActive && p.Covers(rooms) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return Deposit{}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MinRooms != matches[j].MinRooms {
			return matches[i].MinRooms < matches[j].MinRooms
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})

	p := matches[0]
	id := p.ID
	return Deposit{
		Required:    true,
		AmountCents: DepositAmount(p, totalCents),
		PolicyID:    &id,
		Ambiguous:   len(matches) > 1,
	}
}

func DepositAmount(p models.DepositPolicy, totalCents int64) int64 {
	switch p.Type {
	case models.DepositPercent:
		// Value в процентах с точностью до сотых: 20 -> 2000 / 10000
		// больше 100% не берём; при hundredths <= 10000 переполнения нет
		hundredths := min(max(int64(math.Round(p.Value*100)), 0), basisPoints)
		amount, _ := scaleHalfUp(totalCents, hundredths)
		return amount
	case models.DepositFixed:
		return min(int64(math.Round(p.Value)), MaxPriceCents)
	default:
		return 0
	}
}
