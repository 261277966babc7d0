package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/obs"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/uow"
)

type CancelResult struct {
	Order    *domain.Order
	Refund   int64
	RefundID string
}

// Cancel cancels a confirmed upcoming order, refunds the policy share of its
// price and releases the court period.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: the order and the caller; the caller must own it or be an admin.
//
// Returns:
//   - *CancelResult: the cancelled order and the refunded amount.
//   - error: *domain.StateGuardError if the order is not NotPlay or the
//     cancellation window closed.
//   - error: domain.ErrPaymentGateway if the refund failed after retries;
//     the order is left unchanged.
//   - error: orders.ErrCancelInProgress if another cancellation holds the order.
//
// A refund already recorded on the payment intent is not paid again; a retry
// after an interrupted cancellation completes it with the earlier amount.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (res *CancelResult, err error) {
	const op = "service.orders.Cancel"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	if err := s.cancelRules.Validate(ctx, in); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	unlock, err := s.lock(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	defer unlock()

	o, err := s.store.Orders().Get(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, orderErr(err))
	}

	if err := o.Owned(in.Principal); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now()
	decision := s.cfg.Policy.Evaluate(o, now)

	// A refund left by an earlier cancellation that did not reach the
	// database counts toward this one.
	var already int64
	if o.State == domain.OrderNotPlay && o.PaymentIntentID != "" {
		already, err = s.gateway.RefundedAmount(ctx, o.PaymentIntentID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	resumed := !decision.Allowed && o.State == domain.OrderNotPlay && already > 0
	if !decision.Allowed && !resumed {
		return nil, fmt.Errorf("%s:%w", op, &domain.StateGuardError{State: o.State, Action: "cancel", Reason: decision.Reason})
	}

	amount := max(decision.Amount, already)
	if resumed {
		amount = already
	}

	var refundID string
	if owed := amount - already; owed > 0 {
		refundID, err = s.gateway.Refund(ctx, o.PaymentIntentID, owed)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	} else if already > 0 {
		s.log.InfoContext(ctx, "reusing earlier refund",
			slog.String("order_id", in.OrderID.String()),
			slog.Int64("amount", already),
		)
	}

	// Money has moved; the write must not depend on the caller staying.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SettleTimeout)
	defer cancel()

	out, err := s.mutate(settleCtx, byID(in.OrderID), func(
		ctx context.Context,
		tx repository.Repositories,
		o *domain.Order,
		after func(uow.AfterCommit),
	) (bool, error) {
		d := s.cfg.Policy.Evaluate(o, now)
		if resumed && o.State == domain.OrderNotPlay {
			d.Allowed = true
		}
		d.Amount = amount
		if err := o.Cancel(d, now); err != nil {
			return false, err
		}

		if err := tx.Courts().RemoveOrderPeriod(ctx, o.ID); err != nil {
			return false, err
		}

		cancelled := *o
		after(func(ctx context.Context) {
			s.courtChanged(ctx, cancelled.CourtID)
			ev := domain.NewOrderEvent(domain.EventOrderCancelled, &cancelled, now)
			ev.Refund = amount
			s.publish(ctx, ev)
		})

		return true, nil
	})
	if err != nil {
		if amount > 0 {
			s.log.ErrorContext(ctx, "refund issued but order not cancelled",
				slog.String("order_id", in.OrderID.String()),
				slog.String("refund_id", refundID),
				slog.Int64("amount", amount),
				slog.Any("err", err),
			)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "order cancelled",
		slog.String("order_id", out.ID.String()),
		slog.Int64("refund", amount),
	)

	return &CancelResult{Order: out, Refund: amount, RefundID: refundID}, nil
}

// lock takes the per-order cancellation lock so that one order is refunded
// at most once.
func (s *Service) lock(ctx context.Context, orderID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := s.lockKey(orderID)
	token := uuid.NewString()

	ok, err := s.locker.Lock(ctx, key, token, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelInProgress
	}

	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.WarnContext(ctx, "release order lock", slog.String("order_id", orderID.String()), slog.Any("err", err))
		}
	}, nil
}

// Rate attaches the caller's rating to a played order.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: the order, the caller, stars in [1,5] and free-text feedback.
//
// Returns:
//   - *domain.Order: the rated order.
//   - error: domain.ErrAlreadyRated if the order carries a rating.
//   - error: *domain.StateGuardError if the order has not been played.
func (s *Service) Rate(ctx context.Context, in RateInput) (out *domain.Order, err error) {
	const op = "service.orders.Rate"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	if err := s.rateRules.Validate(ctx, in); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now()

	out, err = s.mutate(ctx, byID(in.OrderID), func(
		ctx context.Context,
		tx repository.Repositories,
		o *domain.Order,
		after func(uow.AfterCommit),
	) (bool, error) {
		if err := o.Rate(in.Principal, in.Stars, in.Feedback, now); err != nil {
			return false, err
		}

		ev := domain.FacilityRated{FacilityID: o.FacilityID, OrderID: o.ID, Stars: in.Stars, OccurredAt: now}
		after(func(ctx context.Context) { s.publish(ctx, ev) })

		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// MarkPlayed is the manager override of the played sweep. It only requires
// the booking to have started.
func (s *Service) MarkPlayed(ctx context.Context, p domain.Principal, orderID uuid.UUID) (out *domain.Order, err error) {
	const op = "service.orders.MarkPlayed"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	if err := requireManager(p); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now()

	out, err = s.mutate(ctx, byID(orderID), func(
		ctx context.Context,
		tx repository.Repositories,
		o *domain.Order,
		after func(uow.AfterCommit),
	) (bool, error) {
		if err := o.ForcePlayed(now); err != nil {
			return false, err
		}

		played := *o
		after(func(ctx context.Context) {
			s.publish(ctx, domain.NewOrderEvent(domain.EventOrderPlayed, &played, now))
		})

		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SweepPlayed marks every NotPlay order whose booking ended as Played.
// Orders changed concurrently are re-evaluated; those no longer eligible
// are skipped.
//
// Parameters:
//   - ctx: request-scoped context.
//
// Returns:
//   - int: the number of orders marked played.
//   - error: if the ended orders could not be listed.
func (s *Service) SweepPlayed(ctx context.Context) (marked int, err error) {
	const op = "service.orders.SweepPlayed"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	now := s.now()

	ended, err := s.store.Orders().ListEnded(ctx, now, s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	for _, e := range ended {
		_, err := s.mutate(ctx, byID(e.ID), func(
			ctx context.Context,
			tx repository.Repositories,
			o *domain.Order,
			after func(uow.AfterCommit),
		) (bool, error) {
			if err := o.MarkPlayed(now); err != nil {
				return false, err
			}

			played := *o
			after(func(ctx context.Context) {
				s.publish(ctx, domain.NewOrderEvent(domain.EventOrderPlayed, &played, now))
			})

			return true, nil
		})

		switch {
		case err == nil:
			marked++
		case errors.Is(err, domain.ErrStateGuard), errors.Is(err, ErrOrderNotFound):
		default:
			s.log.ErrorContext(ctx, "mark order played", slog.String("order_id", e.ID.String()), slog.Any("err", err))
		}
	}

	return marked, nil
}
