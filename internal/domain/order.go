package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderState string

const (
	OrderPending   OrderState = "pending"
	OrderNotPlay   OrderState = "not_play"
	OrderPlayed    OrderState = "played"
	OrderCancelled OrderState = "cancelled"
)

type Rating struct {
	UserID     string    `json:"user_id"`
	FacilityID int64     `json:"facility_id"`
	Stars      int       `json:"stars"`
	Feedback   string    `json:"feedback"`
	CreatedAt  time.Time `json:"created_at"`
}

type Order struct {
	ID               uuid.UUID  `json:"id"`
	CourtID          int64      `json:"court_id"`
	FacilityID       int64      `json:"facility_id"`
	UserID           string     `json:"user_id"`
	Period           Period     `json:"period"`
	Price            int64      `json:"price"`
	Currency         string     `json:"currency"`
	PaymentIntentID  string     `json:"payment_intent_id,omitempty"`
	State            OrderState `json:"state"`
	Rating           *Rating    `json:"rating,omitempty"`
	Version          int64      `json:"version"`
	PendingExpiresAt time.Time  `json:"pending_expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Owned reports whether p may act on the order as its owner or an admin.
func (o *Order) Owned(p Principal) error {
	if p.UserID == "" {
		return ErrUnauthorized
	}
	if p.UserID != o.UserID && !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// ConfirmPayment moves a pending order to NotPlay. It reports false for an
// order that already left Pending, which callers treat as success.
func (o *Order) ConfirmPayment(now time.Time) bool {
	if o.State != OrderPending {
		return false
	}
	o.State = OrderNotPlay
	o.UpdatedAt = now
	return true
}

// Expired reports whether a pending order outlived its payment window.
func (o *Order) Expired(now time.Time) bool {
	return o.State == OrderPending && !now.Before(o.PendingExpiresAt)
}

// MarkPlayed is the time-driven NotPlay to Played transition.
func (o *Order) MarkPlayed(now time.Time) error {
	if o.State != OrderNotPlay {
		return &StateGuardError{State: o.State, Action: "mark played"}
	}
	if !now.After(o.Period.To) {
		return &StateGuardError{State: o.State, Action: "mark played", Reason: "booking has not ended"}
	}
	o.State = OrderPlayed
	o.UpdatedAt = now
	return nil
}

// ForcePlayed is the manager override; it only requires the booking to have started.
func (o *Order) ForcePlayed(now time.Time) error {
	if o.State != OrderNotPlay {
		return &StateGuardError{State: o.State, Action: "mark played"}
	}
	if now.Before(o.Period.From) {
		return &StateGuardError{State: o.State, Action: "mark played", Reason: "booking has not started"}
	}
	o.State = OrderPlayed
	o.UpdatedAt = now
	return nil
}

// Cancel applies an allowed refund decision.
func (o *Order) Cancel(d RefundDecision, now time.Time) error {
	if !d.Allowed {
		return &StateGuardError{State: o.State, Action: "cancel", Reason: d.Reason}
	}
	o.Price -= d.Amount
	o.State = OrderCancelled
	o.UpdatedAt = now
	return nil
}

// Rate attaches the one-time rating of a played order.
func (o *Order) Rate(p Principal, stars int, feedback string, now time.Time) error {
	if p.UserID == "" {
		return ErrUnauthorized
	}
	if p.UserID != o.UserID {
		return ErrForbidden
	}
	if stars < 1 || stars > 5 {
		return &ValidationError{Field: "stars", Reason: "must be between 1 and 5"}
	}
	if o.Rating != nil {
		return ErrAlreadyRated
	}
	if o.State != OrderPlayed {
		return &StateGuardError{State: o.State, Action: "rate"}
	}

	o.Rating = &Rating{
		UserID:     p.UserID,
		FacilityID: o.FacilityID,
		Stars:      stars,
		Feedback:   feedback,
		CreatedAt:  now,
	}
	o.UpdatedAt = now
	return nil
}

// Occupies reports whether the order still holds its court period.
func (o *Order) Occupies() bool {
	return o.State != OrderCancelled
}
