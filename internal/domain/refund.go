package domain

import "time"

const (
	DefaultRefundPercent = 80
	DefaultRefundCutoff  = 24 * time.Hour
)

type RefundPolicy struct {
	Percent int64
	Cutoff  time.Duration
}

type RefundDecision struct {
	Allowed bool
	Amount  int64
	Reason  string
}

func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{Percent: DefaultRefundPercent, Cutoff: DefaultRefundCutoff}
}

// Evaluate decides whether o may be cancelled at now and how much is refunded.
func (rp RefundPolicy) Evaluate(o *Order, now time.Time) RefundDecision {
	if o.State != OrderNotPlay {
		return RefundDecision{Reason: "only confirmed upcoming orders can be cancelled"}
	}
	if !now.Before(o.Period.From.Add(-rp.Cutoff)) {
		return RefundDecision{Reason: "cancellation window closed"}
	}
	return RefundDecision{Allowed: true, Amount: o.Price * rp.Percent / 100}
}
