package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/obs"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/uow"
)

// ConfirmPayment moves the order paid through intentID from Pending to
// NotPlay.
//
// Parameters:
//   - ctx: request-scoped context.
//   - intentID: the gateway payment intent id.
//
// Returns:
//   - bool: true if this call confirmed the order; repeat confirmations and
//     orders that already left Pending return false with a nil error.
//   - error: orders.ErrOrderNotFound if no order carries the intent.
func (s *Service) ConfirmPayment(ctx context.Context, intentID string) (changed bool, err error) {
	const op = "service.orders.ConfirmPayment"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	if intentID == "" {
		return false, fmt.Errorf("%s:%w", op, &domain.ValidationError{Field: "payment_intent_id", Reason: "required"})
	}

	now := s.now()

	_, err = s.mutate(ctx, byIntent(intentID), func(
		ctx context.Context,
		tx repository.Repositories,
		o *domain.Order,
		after func(uow.AfterCommit),
	) (bool, error) {
		changed = o.ConfirmPayment(now)
		if !changed {
			return false, nil
		}

		confirmed := *o
		after(func(ctx context.Context) {
			s.pendingChanged(ctx)
			s.courtChanged(ctx, confirmed.CourtID)
			s.publish(ctx, domain.NewOrderEvent(domain.EventOrderConfirmed, &confirmed, now))
		})

		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	if changed {
		s.log.InfoContext(ctx, "payment confirmed", slog.String("payment_intent_id", intentID))
	}

	return changed, nil
}

// HandlePaymentResult applies a payment notification. The reported status
// is checked against the gateway before any state change.
func (s *Service) HandlePaymentResult(ctx context.Context, intentID string, reported payment.Status) (err error) {
	const op = "service.orders.HandlePaymentResult"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	status, err := s.gateway.Status(ctx, intentID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if status != reported {
		s.log.WarnContext(ctx, "payment notification disagrees with gateway",
			slog.String("payment_intent_id", intentID),
			slog.String("reported", string(reported)),
			slog.String("gateway", string(status)),
		)
	}

	switch status {
	case payment.StatusPaid:
		if _, err := s.ConfirmPayment(ctx, intentID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	case payment.StatusFailed:
		o, err := s.store.Orders().GetByPaymentIntent(ctx, intentID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, orderErr(err))
		}
		if _, err := s.releasePending(ctx, o, false); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	return nil
}

// AnyPending reports whether some order is pending. The answer comes from
// a short-lived cache over a count query and is only used to skip work.
func (s *Service) AnyPending(ctx context.Context) (bool, error) {
	const op = "service.orders.AnyPending"

	count := func(ctx context.Context) (int64, error) {
		return s.store.Orders().CountByState(ctx, domain.OrderPending)
	}

	if s.cache != nil {
		busy, err := s.cache.AnyPending(ctx, s.cfg.PendingGateTTL, count)
		if err == nil {
			return busy, nil
		}
		s.log.WarnContext(ctx, "pending gate unavailable", slog.Any("err", err))
	}

	n, err := count(ctx)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return n > 0, nil
}

// ExpirePending releases pending orders whose payment window has passed.
// Each order is checked against the gateway first: a paid intent is
// confirmed instead, and an unreachable gateway leaves the order for the
// next pass.
//
// Parameters:
//   - ctx: request-scoped context.
//
// Returns:
//   - int: the number of released orders.
//   - error: if the pending orders could not be listed.
func (s *Service) ExpirePending(ctx context.Context) (released int, err error) {
	const op = "service.orders.ExpirePending"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	busy, err := s.AnyPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}
	if !busy {
		return 0, nil
	}

	expired, err := s.store.Orders().ListExpiredPending(ctx, s.now(), s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	for i := range expired {
		o := &expired[i]

		if o.PaymentIntentID != "" {
			status, err := s.gateway.Status(ctx, o.PaymentIntentID)
			if err != nil {
				s.log.WarnContext(ctx, "payment status unavailable",
					slog.String("order_id", o.ID.String()),
					slog.Any("err", err),
				)
				continue
			}

			if status == payment.StatusPaid {
				if _, err := s.ConfirmPayment(ctx, o.PaymentIntentID); err != nil {
					s.log.ErrorContext(ctx, "confirm late payment", slog.String("order_id", o.ID.String()), slog.Any("err", err))
				}
				continue
			}
		}

		ok, err := s.releasePending(ctx, o, true)
		if err != nil {
			s.log.ErrorContext(ctx, "expire pending order", slog.String("order_id", o.ID.String()), slog.Any("err", err))
			continue
		}
		if ok {
			released++
		}
	}

	return released, nil
}

// releasePending deletes a pending order and frees its court period. With
// onlyExpired set, an order whose payment window is still open is kept.
// An order that already left Pending is left alone.
func (s *Service) releasePending(ctx context.Context, o *domain.Order, onlyExpired bool) (bool, error) {
	released := false
	now := s.now()

	err := s.uow.DoRetry(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		released = false

		cur, err := tx.Orders().Get(ctx, o.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if cur.State != domain.OrderPending || (onlyExpired && !cur.Expired(now)) {
			return nil
		}

		if err := tx.Orders().DeletePending(ctx, cur.ID, cur.Version); err != nil {
			return err
		}
		released = true

		after(func(ctx context.Context) {
			s.pendingChanged(ctx)
			s.courtChanged(ctx, cur.CourtID)
			s.publish(ctx, domain.NewOrderEvent(domain.EventOrderExpired, cur, now))
		})

		return nil
	})

	return released, err
}
