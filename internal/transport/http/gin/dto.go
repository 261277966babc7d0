package httpgin

import (
	"time"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/reservation"
)

// ReserveRequest carries either an absolute period (from, to) or local
// hours on a date (date, hour_from, hour_to).
type ReserveRequest struct {
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	Date     string     `json:"date"`
	HourFrom *int       `json:"hour_from"`
	HourTo   *int       `json:"hour_to"`
	Timezone string     `json:"timezone"`
}

func (r ReserveRequest) input(courtID int64, p domain.Principal) (reservation.ReserveInput, error) {
	in := reservation.ReserveInput{
		CourtID:   courtID,
		Principal: p,
		Timezone:  r.Timezone,
		RateKey:   p.UserID,
	}

	if r.Date != "" || r.HourFrom != nil || r.HourTo != nil {
		if r.HourFrom == nil || r.HourTo == nil {
			return in, &domain.ValidationError{Field: "hour_from", Reason: "hour_from and hour_to are required with date"}
		}
		in.Local = &reservation.LocalSlot{Date: r.Date, HourFrom: *r.HourFrom, HourTo: *r.HourTo}
	}

	if r.From != nil {
		in.Period.From = *r.From
	}
	if r.To != nil {
		in.Period.To = *r.To
	}

	return in, nil
}

type ReserveResponse struct {
	Order       *domain.Order `json:"order"`
	ClientToken string        `json:"client_token"`
}

type InactivePeriodRequest struct {
	From   time.Time `json:"from" binding:"required"`
	To     time.Time `json:"to" binding:"required"`
	Reason string    `json:"reason"`
}

type RateRequest struct {
	Stars    int    `json:"stars"`
	Feedback string `json:"feedback"`
}

type CancelResponse struct {
	Order    *domain.Order `json:"order"`
	Refund   int64         `json:"refund"`
	RefundID string        `json:"refund_id,omitempty"`
}

type PaymentResultRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	Status          string `json:"status" binding:"required,oneof=paid failed pending"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

type ConfirmPaymentResponse struct {
	Changed bool `json:"changed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
