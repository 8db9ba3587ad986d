package cache

import (
	"regexp"
	"strings"
	"time"

	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	prefixRoomCategory    = "room_category:"
	prefixRoomCategories  = "room_categories:"
	prefixSpecialDays     = "special_days:"
	prefixDepositPolicies = "deposit_policies:"
	prefixAvailability    = "availability:"
	prefixUserBookings    = "user_bookings:"
	prefixIdempotency     = "idempotency:"

	wildcardScope = "*"
)

func RoomCategoryKey(id uuid.UUID) string { return prefixRoomCategory + id.String() }

func RoomCategoriesKey() string { return prefixRoomCategories + "all" }

func SpecialDaysKey(categoryID uuid.UUID, r stay.Range) string {
	return prefixSpecialDays + categoryID.String() + ":" + rangeSuffix(r)
}

func DepositPoliciesKey() string { return prefixDepositPolicies + "active" }

func AvailabilityKey(categoryID uuid.UUID, r stay.Range) string {
	return prefixAvailability + categoryID.String() + ":" + rangeSuffix(r)
}

func UserBookingsKey(userID uuid.UUID) string { return prefixUserBookings + userID.String() }

func IdempotencyKey(key string) string { return prefixIdempotency + key }

func rangeSuffix(r stay.Range) string {
	return r.Start.Format(stay.DateLayout) + ":" + r.End.Format(stay.DateLayout)
}

// scopedRange разбирает ключ вида prefix<category>:<start>:<end>.
func scopedRange(key, prefix string) (scope string, r stay.Range, ok bool) {
	rest, found := strings.CutPrefix(key, prefix)
	if !found {
		return "", stay.Range{}, false
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return "", stay.Range{}, false
	}
	start, err := stay.ParseDay(parts[1])
	if err != nil {
		return "", stay.Range{}, false
	}
	end, err := stay.ParseDay(parts[2])
	if err != nil {
		return "", stay.Range{}, false
	}
	return parts[0], stay.Range{Start: start, End: end}, true
}

// Invalidator вызывается путями записи строго после коммита.
type Invalidator struct {
	c   Cache
	log *zap.Logger
}

func NewInvalidator(c Cache, log *zap.Logger) *Invalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invalidator{c: c, log: log}
}

func (i *Invalidator) RoomCategory(id uuid.UUID) {
	i.c.Delete(RoomCategoryKey(id))
	i.c.Delete(RoomCategoriesKey())
	n := i.deletePattern("^" + regexp.QuoteMeta(prefixAvailability+id.String()+":"))
	i.log.Debug("cache invalidated: room category", zap.String("room_category_id", id.String()), zap.Int("availability_keys", n))
}

// Availability удаляет сводки доступности категории, пересекающиеся с изменённым диапазоном.
func (i *Invalidator) Availability(categoryID uuid.UUID, r stay.Range) {
	scope := categoryID.String()
	n := i.c.DeleteMatch(func(key string) bool {
		s, kr, ok := scopedRange(key, prefixAvailability)
		return ok && s == scope && kr.Overlaps(r)
	})
	i.log.Debug("cache invalidated: availability",
		zap.String("room_category_id", scope), zap.String("range", r.String()), zap.Int("keys", n))
}

// SpecialDays: правило без категории затрагивает кэш всех категорий на эту дату.
// Сводки доступности содержат флаг блокировки, поэтому чистятся вместе с правилами.
func (i *Invalidator) SpecialDays(categoryID *uuid.UUID, day time.Time) {
	scope := wildcardScope
	if categoryID != nil {
		scope = categoryID.String()
	}
	day = stay.Day(day)
	match := func(prefix string) func(string) bool {
		return func(key string) bool {
			s, kr, ok := scopedRange(key, prefix)
			if !ok {
				return false
			}
			return (scope == wildcardScope || s == scope) && kr.Contains(day)
		}
	}
	n := i.c.DeleteMatch(match(prefixSpecialDays))
	n += i.c.DeleteMatch(match(prefixAvailability))
	i.log.Debug("cache invalidated: special days",
		zap.String("scope", scope), zap.String("date", day.Format(stay.DateLayout)), zap.Int("keys", n))
}

func (i *Invalidator) DepositPolicies() {
	n := i.deletePattern("^" + regexp.QuoteMeta(prefixDepositPolicies))
	i.log.Debug("cache invalidated: deposit policies", zap.Int("keys", n))
}

func (i *Invalidator) UserBookings(userID uuid.UUID) {
	i.c.Delete(UserBookingsKey(userID))
}

func (i *Invalidator) deletePattern(pattern string) int {
	n, err := i.c.DeletePattern(pattern)
	if err != nil {
		i.log.Error("cache invalidation pattern", zap.String("pattern", pattern), zap.Error(err))
	}
	return n
}
