package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WeeklySchedule maps a weekday to its open hours. A missing weekday is
// closed all day.
type WeeklySchedule map[time.Weekday]HourRange

// Admits checks that p falls inside the open hours of its local weekday.
//
// This is the only place where absolute periods are converted into
// hour-of-day values. A period that ends exactly at the next local midnight
// is treated as ending at hour 24 of its start day.
func (ws WeeklySchedule) Admits(p Period, loc *time.Location) error {
	if !p.Valid() {
		return fmt.Errorf("period %s: %w", p, ErrInvalidInterval)
	}
	if loc == nil {
		loc = time.UTC
	}

	start := p.From.In(loc)
	end := p.To.In(loc)

	open, ok := ws.OpenOn(start, loc)
	if !ok {
		return fmt.Errorf("%s: %w", start.Weekday(), ErrFacilityClosed)
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	next := day.AddDate(0, 0, 1)

	local := Span[time.Duration]{From: clock(start), To: clock(end)}
	switch {
	case end.After(next):
		return fmt.Errorf("%s: %w", p, ErrSpansDays)
	case end.Equal(next):
		local.To = 24 * time.Hour
	}

	if !scaled(open).Contains(local) {
		return fmt.Errorf("%s not within %02d:00-%02d:00: %w", p, open.From, open.To, ErrOutsideOpenHours)
	}

	return nil
}

// OpenOn returns the open hours of the weekday t falls on in loc. ok is
// false when the facility is closed that day.
func (ws WeeklySchedule) OpenOn(t time.Time, loc *time.Location) (HourRange, bool) {
	if loc == nil {
		loc = time.UTC
	}
	open, ok := ws[t.In(loc).Weekday()]
	return open, ok
}

// LocalHours converts a local {hourFrom, hourTo} request on date into an
// absolute period.
func LocalHours(date time.Time, hourFrom, hourTo int, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := NewHourRange(hourFrom, hourTo); err != nil {
		return Period{}, err
	}

	d := date.In(loc)

	return NewPeriod(
		time.Date(d.Year(), d.Month(), d.Day(), hourFrom, 0, 0, 0, loc),
		time.Date(d.Year(), d.Month(), d.Day(), hourTo, 0, 0, 0, loc),
	)
}

func scaled(h HourRange) Span[time.Duration] {
	return Span[time.Duration]{
		From: time.Duration(h.From) * time.Hour,
		To:   time.Duration(h.To) * time.Hour,
	}
}

func clock(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func (ws WeeklySchedule) MarshalJSON() ([]byte, error) {
	out := make(map[string]HourRange, len(ws))
	for d, h := range ws {
		out[strings.ToLower(d.String())] = h
	}
	return json.Marshal(out)
}

func (ws *WeeklySchedule) UnmarshalJSON(b []byte) error {
	var in map[string]HourRange
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	out := make(WeeklySchedule, len(in))
	for name, h := range in {
		d, err := ParseWeekday(name)
		if err != nil {
			return err
		}
		if _, err := NewHourRange(h.From, h.To); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out[d] = h
	}

	*ws = out
	return nil
}

func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q: %w", s, ErrValidation)
}
