package domain

import (
	"time"

	"github.com/google/uuid"
)

type CourtState string

const (
	CourtActive   CourtState = "active"
	CourtInactive CourtState = "inactive"
)

type Facility struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Timezone string         `json:"timezone"`
	Schedule WeeklySchedule `json:"schedule"`
}

// Location resolves the facility timezone, falling back to UTC.
func (f *Facility) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type PeriodKind string

const (
	PeriodOrder    PeriodKind = "order"
	PeriodInactive PeriodKind = "inactive"
)

// CourtPeriod is one occupied entry of a court's reservation set.
type CourtPeriod struct {
	ID      int64      `json:"id"`
	CourtID int64      `json:"court_id"`
	Kind    PeriodKind `json:"kind"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
	Period  Period     `json:"period"`
	Reason  string     `json:"reason,omitempty"`
}

type Court struct {
	ID           int64         `json:"id"`
	FacilityID   int64         `json:"facility_id"`
	Name         string        `json:"name"`
	State        CourtState    `json:"state"`
	PricePerHour int64         `json:"price_per_hour"`
	Currency     string        `json:"currency"`
	Version      int64         `json:"version"`
	Periods      []CourtPeriod `json:"periods"`
}

// IsBookable reports whether no order or inactive period intersects p.
func (c *Court) IsBookable(p Period) bool {
	return c.Blocking(p) == nil
}

// Blocking returns the first period that intersects p, if any.
func (c *Court) Blocking(p Period) *CourtPeriod {
	for i := range c.Periods {
		if c.Periods[i].Period.Intersects(p) {
			return &c.Periods[i]
		}
	}
	return nil
}

// Price returns the amount charged for p, prorated by the minute.
func (c *Court) Price(p Period) int64 {
	return c.PricePerHour * int64(p.Duration()/time.Minute) / 60
}
