package stay

import (
	"errors"
	"time"
)

const DateLayout = "2006-01-02"

// MaxNights ограничивает длину одного проживания.
const MaxNights = 365

var (
	ErrEmptyRange = errors.New("end date must be after start date")
	ErrTooLong    = errors.New("stay is longer than allowed")
)

// Range описывает проживание [Start, End), End не входит.
type Range struct {
	Start time.Time
	End   time.Time
}

// Day отрезает время и приводит дату к UTC-полуночи.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func New(start, end time.Time) (Range, error) {
	r := Range{Start: Day(start), End: Day(end)}
	if !r.End.After(r.Start) {
		return Range{}, ErrEmptyRange
	}
	if r.Len() > MaxNights {
		return Range{}, ErrTooLong
	}
	return r, nil
}

func (r Range) Len() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

// Nights возвращает ночи проживания по возрастанию: это же глобальный порядок захвата блокировок.
func (r Range) Nights() []time.Time {
	nights := make([]time.Time, 0, r.Len())
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

func (r Range) Contains(day time.Time) bool {
	day = Day(day)
	return !day.Before(r.Start) && day.Before(r.End)
}

func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

func (r Range) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
