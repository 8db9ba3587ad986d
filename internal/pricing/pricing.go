package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
)

const (
	MinMultiplier = 0.1
	MaxMultiplier = 10.0

	// MaxPriceCents: потолок для цены за ночь и фиксированного депозита (1e9 в валюте).
	MaxPriceCents int64 = 100_000_000_000

	basisPoints = 10000
)

var (
	ErrNegativeBase      = errors.New("base price must not be negative")
	ErrInvalidRooms      = errors.New("rooms booked must be > 0")
	ErrInvalidMultiplier = errors.New("multiplier out of range")
	ErrAmountOverflow    = errors.New("amount exceeds int64 range")
)

type Source string

const (
	SourceBase       Source = "BASE"
	SourceMultiplier Source = "MULTIPLIER"
	SourceFixed      Source = "FIXED"
)

type NightPrice struct {
	Night      time.Time  `json:"night"`
	PriceCents int64      `json:"price_cents"`
	Source     Source     `json:"source"`
	RuleID     *uuid.UUID `json:"rule_id,omitempty"`
}

// Quote: TotalCents == NightlySumCents * RoomsBooked, а NightlySumCents равен сумме PerNight.
type Quote struct {
	PerNight        []NightPrice `json:"per_night"`
	NightlySumCents int64        `json:"nightly_sum_cents"`
	RoomsBooked     int          `json:"rooms_booked"`
	TotalCents      int64        `json:"total_cents"`
}

// Rules: активные правила на диапазон, разложенные по ночам.
// Для цены правило категории важнее общего правила на ту же дату.
type Rules struct {
	category map[string]*models.SpecialDay
	wildcard map[string]*models.SpecialDay
	blocked  map[string]bool
}

func NewRules(categoryID uuid.UUID, days []models.SpecialDay) *Rules {
	r := &Rules{
		category: make(map[string]*models.SpecialDay),
		wildcard: make(map[string]*models.SpecialDay),
		blocked:  make(map[string]bool),
	}

	// детерминированный выбор при дублях: самое раннее по CreatedAt, затем по ID
	sorted := make([]models.SpecialDay, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	for i := range sorted {
		d := &sorted[i]
		if !d.IsActive {
			continue
		}
		target := r.wildcard
		if d.RoomCategoryID != nil {
			if *d.RoomCategoryID != categoryID {
				continue
			}
			target = r.category
		}
		key := dayKey(d.Date)
		if d.Kind == models.SpecialDayBlocked {
			r.blocked[key] = true
		}
		if _, exists := target[key]; !exists {
			target[key] = d
		}
	}
	return r
}

// For возвращает правило, действующее на ночь для цены.
func (r *Rules) For(night time.Time) *models.SpecialDay {
	key := dayKey(night)
	if d, ok := r.category[key]; ok {
		return d
	}
	return r.wildcard[key]
}

// Blocked: ночи, закрытые правилом категории или общим правилом.
func (r *Rules) Blocked(nights []time.Time) []time.Time {
	var out []time.Time
	for _, n := range nights {
		if r.blocked[dayKey(n)] {
			out = append(out, n)
		}
	}
	return out
}

// PriceStay чистая: одинаковые входы дают одинаковый результат.
// Округление half-up делается на каждой ночи, итог: сумма округлённых ночей.
func PriceStay(nights []time.Time, baseCents int64, rooms int, rules *Rules) (Quote, error) {
	if baseCents < 0 {
		return Quote{}, ErrNegativeBase
	}
	if rooms < 1 {
		return Quote{}, ErrInvalidRooms
	}

	q := Quote{
		PerNight:    make([]NightPrice, 0, len(nights)),
		RoomsBooked: rooms,
	}
	for _, night := range nights {
		np, err := priceNight(night, baseCents, rules)
		if err != nil {
			return Quote{}, err
		}
		q.PerNight = append(q.PerNight, np)
		sum, ok := addCents(q.NightlySumCents, np.PriceCents)
		if !ok {
			return Quote{}, ErrAmountOverflow
		}
		q.NightlySumCents = sum
	}
	total, ok := mulCents(q.NightlySumCents, int64(rooms))
	if !ok {
		return Quote{}, ErrAmountOverflow
	}
	q.TotalCents = total
	return q, nil
}

func priceNight(night time.Time, baseCents int64, rules *Rules) (NightPrice, error) {
	np := NightPrice{Night: stay.Day(night), PriceCents: baseCents, Source: SourceBase}
	if rules == nil {
		return np, nil
	}
	rule := rules.For(night)
	if rule == nil || rule.Kind != models.SpecialDaySpecialRate {
		return np, nil
	}

	id := rule.ID
	switch {
	case rule.FixedPriceCents != nil:
		np.PriceCents = *rule.FixedPriceCents
		np.Source = SourceFixed
		np.RuleID = &id
	case rule.Multiplier != nil:
		price, err := ApplyMultiplier(baseCents, *rule.Multiplier)
		if err != nil {
			return NightPrice{}, fmt.Errorf("rule %s on %s: %w", rule.ID, night.Format(stay.DateLayout), err)
		}
		np.PriceCents = price
		np.Source = SourceMultiplier
		np.RuleID = &id
	}
	return np, nil
}

// ApplyMultiplier считает round-half-up(base × m) в целых базисных пунктах,
// чтобы результат не зависел от двоичного представления множителя.
func ApplyMultiplier(baseCents int64, m float64) (int64, error) {
	if m < MinMultiplier || m > MaxMultiplier || math.IsNaN(m) {
		return 0, ErrInvalidMultiplier
	}
	bp := int64(math.Round(m * basisPoints))
	price, ok := scaleHalfUp(baseCents, bp)
	if !ok {
		return 0, ErrAmountOverflow
	}
	return price, nil
}

// scaleHalfUp считает round-half-up(v × factor / 10000) без промежуточного v × factor:
// v = q×10000 + r, поэтому результат q×factor + round(r×factor / 10000).
// v и factor неотрицательные, factor не больше 10 × basisPoints.
func scaleHalfUp(v, factor int64) (int64, bool) {
	q, r := v/basisPoints, v%basisPoints
	whole, ok := mulCents(q, factor)
	if !ok {
		return 0, false
	}
	return addCents(whole, RoundHalfUp(r*factor, basisPoints))
}

func mulCents(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

func addCents(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// RoundHalfUp делит неотрицательное num на den с округлением половины вверх.
func RoundHalfUp(num, den int64) int64 {
	return (num + den/2) / den
}

func dayKey(t time.Time) string {
	return stay.Day(t).Format(stay.DateLayout)
}
