package domain

import (
	"cmp"
	"fmt"
	"time"
)

// Span is a closed-open range [From, To) over any ordered unit.
type Span[T cmp.Ordered] struct {
	From T `json:"from"`
	To   T `json:"to"`
}

// Intersects reports whether s and o share any point.
// Touching endpoints do not intersect.
func (s Span[T]) Intersects(o Span[T]) bool {
	return s.From < o.To && s.To > o.From
}

// Contains reports whether o lies entirely within s.
func (s Span[T]) Contains(o Span[T]) bool {
	return s.From <= o.From && s.To >= o.To
}

func (s Span[T]) Valid() bool {
	return s.From < s.To
}

// HourRange is an hour-of-day range used by weekly schedules.
// To may be 24 to express "until midnight".
type HourRange = Span[int]

func NewHourRange(from, to int) (HourRange, error) {
	h := HourRange{From: from, To: to}
	if from < 0 || to > 24 || !h.Valid() {
		return HourRange{}, fmt.Errorf("hour range [%d,%d): %w", from, to, ErrInvalidInterval)
	}
	return h, nil
}

// Period is an absolute closed-open time range.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func NewPeriod(from, to time.Time) (Period, error) {
	p := Period{From: from, To: to}
	if !p.Valid() {
		return Period{}, fmt.Errorf("period %s: %w", p, ErrInvalidInterval)
	}
	return p, nil
}

func (p Period) Valid() bool {
	return !p.From.IsZero() && p.From.Before(p.To)
}

func (p Period) Intersects(o Period) bool {
	return p.From.Before(o.To) && p.To.After(o.From)
}

func (p Period) Contains(o Period) bool {
	return !p.From.After(o.From) && !p.To.Before(o.To)
}

func (p Period) Duration() time.Duration {
	return p.To.Sub(p.From)
}

func (p Period) UTC() Period {
	return Period{From: p.From.UTC(), To: p.To.UTC()}
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))
}
