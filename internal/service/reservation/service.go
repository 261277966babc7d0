package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/obs"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	redisrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/redis"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/uow"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/validate"
)

// CourtCache is the part of the read cache invalidated by reservation-set
// changes.
type CourtCache interface {
	InvalidateCourt(ctx context.Context, courtID int64) error
	InvalidatePendingGate(ctx context.Context) error
}

type CourtNotifier interface {
	PublishCourtChanged(ctx context.Context, courtID int64) error
}

type Limiter interface {
	Allow(ctx context.Context, subject string) (redisrepo.RateDecision, error)
}

type Config struct {
	// PendingTTL is how long a pending order holds its slot while payment
	// is collected.
	PendingTTL time.Duration
	// MaxRetries bounds optimistic-concurrency retries of one reservation.
	MaxRetries int
	// SettleTimeout bounds the writes that follow the payment intent; they
	// run detached from the caller's context.
	SettleTimeout time.Duration
}

type Deps struct {
	Store     repository.Store
	Gateway   payment.Gateway
	Cache     CourtCache
	Notifier  CourtNotifier
	Limiter   Limiter
	Publisher domain.Publisher
	Rules     *validate.Registry
	Log       *slog.Logger
	Clock     func() time.Time
}

type Service struct {
	store     repository.Store
	uow       *uow.UoW
	gateway   payment.Gateway
	cache     CourtCache
	notifier  CourtNotifier
	limiter   Limiter
	publisher domain.Publisher
	log       *slog.Logger
	now       func() time.Time
	cfg       Config

	reserveRules  validate.Chain[ReserveInput]
	inactiveRules validate.Chain[InactivePeriodInput]
}

// Reservation is a created order together with the token the client needs
// to complete payment.
type Reservation struct {
	Order       *domain.Order
	ClientToken string
}

// courtOnly is an empty window: the court is loaded without its periods.
var courtOnly = &domain.Period{}

func New(d Deps, cfg Config) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 15 * time.Minute
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 10 * time.Second
	}

	if d.Log == nil {
		d.Log = slog.Default()
	}

	if d.Clock == nil {
		d.Clock = time.Now
	}

	if d.Rules == nil {
		d.Rules = validate.NewRegistry()
		RegisterRules(d.Rules)
	}

	return &Service{
		store:         d.Store,
		uow:           uow.NewUoW(d.Store, cfg.MaxRetries),
		gateway:       d.Gateway,
		cache:         d.Cache,
		notifier:      d.Notifier,
		limiter:       d.Limiter,
		publisher:     d.Publisher,
		log:           d.Log.With(slog.String("service", "reservation")),
		now:           d.Clock,
		cfg:           cfg,
		reserveRules:  validate.MustResolve[ReserveInput](d.Rules, OpReserve),
		inactiveRules: validate.MustResolve[InactivePeriodInput](d.Rules, OpAddInactive),
	}
}

// Reserve books a court period for the caller and opens a payment intent.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: the court, the caller and the requested period in either form.
//
// Returns:
//   - *Reservation: the pending order and the gateway client token.
//   - error: ErrCourtNotFound or ErrCourtInactive if the court cannot be booked.
//   - error: domain.ErrScheduleViolation if the period is outside opening hours.
//   - error: *SlotConflictError if the period overlaps the reservation set.
//   - error: domain.ErrPaymentGateway if the intent could not be created; the
//     slot is released again.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (res *Reservation, err error) {
	const op = "service.reservation.Reserve"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	if err := s.reserveRules.Validate(ctx, in); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.allow(ctx, in.RateKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	court, facility, err := s.loadCourt(ctx, in.CourtID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	// The request timezone only interprets the local-hours form. Opening
	// hours are always checked on the facility's wall clock.
	facilityLoc := facility.Location()
	requestLoc := facilityLoc
	if in.Timezone != "" {
		if requestLoc, err = time.LoadLocation(in.Timezone); err != nil {
			return nil, fmt.Errorf("%s:%w", op, &domain.ValidationError{Field: "timezone", Reason: "unknown IANA zone"})
		}
	}

	period, err := in.resolve(requestLoc)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now()
	if period.From.Before(now) {
		return nil, fmt.Errorf("%s:%w", op, ErrPastPeriod)
	}

	if err := facility.Schedule.Admits(period, facilityLoc); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	period = period.UTC()
	order := &domain.Order{
		ID:               uuid.New(),
		CourtID:          court.ID,
		FacilityID:       court.FacilityID,
		UserID:           in.Principal.UserID,
		Period:           period,
		Price:            court.Price(period),
		Currency:         court.Currency,
		State:            domain.OrderPending,
		PendingExpiresAt: now.Add(s.cfg.PendingTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.hold(ctx, order); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		OrderID:  order.ID,
		Amount:   order.Price,
		Currency: order.Currency,
	})

	// Once the gateway has been called the order is either linked to its
	// intent or released, whether or not the caller is still waiting.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SettleTimeout)
	defer cancel()

	if err != nil {
		s.release(settleCtx, order.ID)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	err = s.uow.DoRetry(settleCtx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		o, err := tx.Orders().Get(ctx, order.ID)
		if err != nil {
			return err
		}

		o.PaymentIntentID = intent.ID
		if err := tx.Orders().Update(ctx, o, o.Version); err != nil {
			return err
		}

		order = o

		after(func(ctx context.Context) {
			s.publish(ctx, domain.NewOrderEvent(domain.EventOrderCreated, o, now))
		})

		return nil
	})
	if err != nil {
		s.release(settleCtx, order.ID)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "court reserved",
		slog.String("order_id", order.ID.String()),
		slog.Int64("court_id", order.CourtID),
		slog.String("period", order.Period.String()),
	)

	return &Reservation{Order: order, ClientToken: intent.ClientToken}, nil
}

// hold atomically checks the reservation set and appends the order period.
func (s *Service) hold(ctx context.Context, order *domain.Order) error {
	err := s.uow.DoRetry(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		court, err := tx.Courts().Get(ctx, order.CourtID, &order.Period)
		if err != nil {
			return courtErr(err)
		}

		if court.State != domain.CourtActive {
			return ErrCourtInactive
		}

		if b := court.Blocking(order.Period); b != nil {
			return &SlotConflictError{CourtID: court.ID, Requested: order.Period, Kind: b.Kind}
		}

		if err := tx.Courts().BumpVersion(ctx, court.ID, court.Version); err != nil {
			return err
		}

		o := *order
		if err := tx.Orders().Create(ctx, &o); err != nil {
			return err
		}

		id := o.ID
		if err := tx.Courts().AddPeriod(ctx, &domain.CourtPeriod{
			CourtID: court.ID,
			Kind:    domain.PeriodOrder,
			OrderID: &id,
			Period:  o.Period,
		}); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &SlotConflictError{CourtID: court.ID, Requested: order.Period}
			}
			return err
		}

		after(func(ctx context.Context) {
			s.courtChanged(ctx, court.ID)
			if s.cache != nil {
				_ = s.cache.InvalidatePendingGate(ctx)
			}
		})

		return nil
	})
	if repository.Retryable(err) {
		return &SlotConflictError{CourtID: order.CourtID, Requested: order.Period}
	}

	return err
}

// release removes a pending order whose payment intent could not be set up.
func (s *Service) release(ctx context.Context, orderID uuid.UUID) {
	var courtID int64

	err := s.uow.DoRetry(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if o.State != domain.OrderPending {
			return nil
		}

		courtID = o.CourtID
		if err := tx.Orders().DeletePending(ctx, o.ID, o.Version); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.courtChanged(ctx, courtID) })

		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "release pending order",
			slog.String("order_id", orderID.String()),
			slog.Any("err", err),
		)
	}
}

// AddInactivePeriod blocks a court period for maintenance. The period goes
// through the same conflict check as bookings.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: the court, the manager and the period to block.
//
// Returns:
//   - *domain.CourtPeriod: the stored reservation-set entry.
//   - error: domain.ErrForbidden if the caller is not a manager or admin.
//   - error: *SlotConflictError if the period overlaps the reservation set.
func (s *Service) AddInactivePeriod(ctx context.Context, in InactivePeriodInput) (out *domain.CourtPeriod, err error) {
	const op = "service.reservation.AddInactivePeriod"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	if err := s.inactiveRules.Validate(ctx, in); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	period := in.Period.UTC()

	err = s.uow.DoRetry(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		court, err := tx.Courts().Get(ctx, in.CourtID, &period)
		if err != nil {
			return courtErr(err)
		}

		if b := court.Blocking(period); b != nil {
			return &SlotConflictError{CourtID: court.ID, Requested: period, Kind: b.Kind}
		}

		if err := tx.Courts().BumpVersion(ctx, court.ID, court.Version); err != nil {
			return err
		}

		p := &domain.CourtPeriod{
			CourtID: court.ID,
			Kind:    domain.PeriodInactive,
			Period:  period,
			Reason:  in.Reason,
		}
		if err := tx.Courts().AddPeriod(ctx, p); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &SlotConflictError{CourtID: court.ID, Requested: period}
			}
			return err
		}

		out = p

		after(func(ctx context.Context) { s.courtChanged(ctx, court.ID) })

		return nil
	})
	if repository.Retryable(err) {
		err = &SlotConflictError{CourtID: in.CourtID, Requested: period}
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// RemoveInactivePeriod unblocks a previously declared inactive period.
func (s *Service) RemoveInactivePeriod(ctx context.Context, p domain.Principal, courtID, periodID int64) (err error) {
	const op = "service.reservation.RemoveInactivePeriod"

	ctx, finish := obs.Start(ctx, op)
	defer func() { finish(err) }()

	if err := requireManager(p); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = s.uow.DoRetry(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		court, err := tx.Courts().Get(ctx, courtID, courtOnly)
		if err != nil {
			return courtErr(err)
		}

		if err := tx.Courts().BumpVersion(ctx, court.ID, court.Version); err != nil {
			return err
		}

		if err := tx.Courts().RemovePeriod(ctx, court.ID, periodID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPeriodNotFound
			}
			return err
		}

		after(func(ctx context.Context) { s.courtChanged(ctx, court.ID) })

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) loadCourt(ctx context.Context, courtID int64) (*domain.Court, *domain.Facility, error) {
	court, err := s.store.Courts().Get(ctx, courtID, courtOnly)
	if err != nil {
		return nil, nil, courtErr(err)
	}

	if court.State != domain.CourtActive {
		return nil, nil, ErrCourtInactive
	}

	facility, err := s.store.Facilities().Get(ctx, court.FacilityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrFacilityNotFound
		}
		return nil, nil, err
	}

	return court, facility, nil
}

func (s *Service) allow(ctx context.Context, key string) error {
	if s.limiter == nil || key == "" {
		return nil
	}

	d, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "rate limiter unavailable", slog.Any("err", err))
		return nil
	}

	if !d.Allowed {
		return &RateLimitedError{RetryAfter: d.RetryAfter}
	}

	return nil
}

func (s *Service) courtChanged(ctx context.Context, courtID int64) {
	if s.cache != nil {
		if err := s.cache.InvalidateCourt(ctx, courtID); err != nil {
			s.log.WarnContext(ctx, "invalidate court cache", slog.Int64("court_id", courtID), slog.Any("err", err))
		}
	}

	if s.notifier != nil {
		_ = s.notifier.PublishCourtChanged(ctx, courtID)
	}
}

func (s *Service) publish(ctx context.Context, ev domain.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.ErrorContext(ctx, "publish event",
			slog.String("event", ev.Name()),
			slog.String("key", ev.Key()),
			slog.Any("err", err),
		)
	}
}

func courtErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCourtNotFound
	}
	return err
}
