package payment

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Retrying retries retryable gateway failures with exponential backoff.
type Retrying struct {
	next Gateway
	cfg  RetryConfig
}

func NewRetrying(next Gateway, cfg RetryConfig) *Retrying {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	return &Retrying{next: next, cfg: cfg}
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx)
}

func retry[T any](ctx context.Context, r *Retrying, call func() (T, error)) (T, error) {
	var out T

	err := backoff.Retry(func() error {
		v, err := call()
		if err != nil {
			if domain.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = v
		return nil
	}, r.policy(ctx))

	return out, err
}

// CreateIntent is not retried: a timed out call may still have created a
// source and charge at the provider. The caller releases the slot instead.
func (r *Retrying) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	return r.next.CreateIntent(ctx, req)
}

func (r *Retrying) Status(ctx context.Context, intentID string) (Status, error) {
	return retry(ctx, r, func() (Status, error) { return r.next.Status(ctx, intentID) })
}

// Refund retries only after confirming that no earlier attempt reached the
// provider: the refunded total is read before the first attempt and again
// before each retry. An attempt that landed is reported as success with an
// empty refund id.
func (r *Retrying) Refund(ctx context.Context, intentID string, amount int64) (string, error) {
	baseline := int64(-1)
	attempted := false

	return retry(ctx, r, func() (string, error) {
		if baseline < 0 {
			v, err := r.next.RefundedAmount(ctx, intentID)
			if err != nil {
				return "", err
			}
			baseline = v
		} else if attempted {
			v, err := r.next.RefundedAmount(ctx, intentID)
			if err != nil {
				return "", err
			}
			if v >= baseline+amount {
				return "", nil
			}
		}

		attempted = true
		return r.next.Refund(ctx, intentID, amount)
	})
}

func (r *Retrying) RefundedAmount(ctx context.Context, intentID string) (int64, error) {
	return retry(ctx, r, func() (int64, error) { return r.next.RefundedAmount(ctx, intentID) })
}
