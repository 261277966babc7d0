package domain

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderExpired   = "order.expired"
	EventOrderPlayed    = "order.played"
	EventOrderCancelled = "order.cancelled"
	EventFacilityRated  = "facility.rated"
)

// Event is an integration event emitted after a committed state change.
type Event interface {
	Name() string
	Key() string
}

type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    uuid.UUID `json:"order_id"`
	CourtID    int64     `json:"court_id"`
	FacilityID int64     `json:"facility_id"`
	UserID     string    `json:"user_id"`
	Period     Period    `json:"period"`
	Price      int64     `json:"price"`
	Refund     int64     `json:"refund,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e OrderEvent) Name() string { return e.Type }
func (e OrderEvent) Key() string  { return e.OrderID.String() }

func NewOrderEvent(typ string, o *Order, now time.Time) OrderEvent {
	return OrderEvent{
		Type:       typ,
		OrderID:    o.ID,
		CourtID:    o.CourtID,
		FacilityID: o.FacilityID,
		UserID:     o.UserID,
		Period:     o.Period,
		Price:      o.Price,
		OccurredAt: now,
	}
}

type FacilityRated struct {
	FacilityID int64     `json:"facility_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Stars      int       `json:"stars"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (FacilityRated) Name() string  { return EventFacilityRated }
func (e FacilityRated) Key() string { return strconv.FormatInt(e.FacilityID, 10) }

// Publisher delivers events to the messaging infrastructure.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
