package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/uow"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/validate"
)

// Cache holds the pending-orders gate and the court availability views.
type Cache interface {
	AnyPending(ctx context.Context, ttl time.Duration, count func(ctx context.Context) (int64, error)) (bool, error)
	InvalidatePendingGate(ctx context.Context) error
	InvalidateCourt(ctx context.Context, courtID int64) error
}

type CourtNotifier interface {
	PublishCourtChanged(ctx context.Context, courtID int64) error
}

// Locker takes short owned locks.
type Locker interface {
	Lock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

type Config struct {
	Policy domain.RefundPolicy
	// PendingGateTTL is how long the "any pending orders" answer is cached.
	PendingGateTTL time.Duration
	// LockTTL bounds how long a cancellation holds the order lock.
	LockTTL    time.Duration
	MaxRetries int
	// SettleTimeout bounds the write that follows a refund; it runs detached
	// from the caller's context.
	SettleTimeout time.Duration
	// SweepBatch caps the orders handled by one sweep pass.
	SweepBatch int
}

type Deps struct {
	Store     repository.Store
	Gateway   payment.Gateway
	Cache     Cache
	Notifier  CourtNotifier
	Locker    Locker
	LockKey   func(orderID uuid.UUID) string
	Publisher domain.Publisher
	Rules     *validate.Registry
	Log       *slog.Logger
	Clock     func() time.Time
}

type Service struct {
	store     repository.Store
	uow       *uow.UoW
	gateway   payment.Gateway
	cache     Cache
	notifier  CourtNotifier
	locker    Locker
	lockKey   func(orderID uuid.UUID) string
	publisher domain.Publisher
	log       *slog.Logger
	now       func() time.Time
	cfg       Config

	rateRules   validate.Chain[RateInput]
	cancelRules validate.Chain[CancelInput]
}

func New(d Deps, cfg Config) *Service {
	if cfg.Policy.Percent <= 0 {
		cfg.Policy.Percent = domain.DefaultRefundPercent
	}

	if cfg.Policy.Cutoff <= 0 {
		cfg.Policy.Cutoff = domain.DefaultRefundCutoff
	}

	if cfg.PendingGateTTL <= 0 {
		cfg.PendingGateTTL = 10 * time.Second
	}

	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 10 * time.Second
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}

	if d.Log == nil {
		d.Log = slog.Default()
	}

	if d.Clock == nil {
		d.Clock = time.Now
	}

	if d.LockKey == nil {
		d.LockKey = func(id uuid.UUID) string { return "lock:order:" + id.String() }
	}

	if d.Rules == nil {
		d.Rules = validate.NewRegistry()
		RegisterRules(d.Rules)
	}

	return &Service{
		store:       d.Store,
		uow:         uow.NewUoW(d.Store, cfg.MaxRetries),
		gateway:     d.Gateway,
		cache:       d.Cache,
		notifier:    d.Notifier,
		locker:      d.Locker,
		lockKey:     d.LockKey,
		publisher:   d.Publisher,
		log:         d.Log.With(slog.String("service", "orders")),
		now:         d.Clock,
		cfg:         cfg,
		rateRules:   validate.MustResolve[RateInput](d.Rules, OpRate),
		cancelRules: validate.MustResolve[CancelInput](d.Rules, OpCancel),
	}
}

// Get returns an order visible to p.
//
// Parameters:
//   - ctx: request-scoped context.
//   - p: the caller; must own the order or be an admin.
//   - orderID: ID of the order to retrieve.
//
// Returns:
//   - *domain.Order: the order.
//   - error: orders.ErrOrderNotFound if the order is not found.
func (s *Service) Get(ctx context.Context, p domain.Principal, orderID uuid.UUID) (*domain.Order, error) {
	const op = "service.orders.Get"

	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, orderErr(err))
	}

	if err := o.Owned(p); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return o, nil
}

// ListByUser returns the caller's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, p domain.Principal, limit, offset int) ([]domain.Order, error) {
	const op = "service.orders.ListByUser"

	if err := authenticated(p); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if offset < 0 {
		offset = 0
	}

	out, err := s.store.Orders().ListByUser(ctx, p.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// mutate re-reads the order and applies fn under the order version check,
// retrying on concurrent writes. fn returns false to leave the order as is.
func (s *Service) mutate(
	ctx context.Context,
	load func(ctx context.Context, tx repository.Repositories) (*domain.Order, error),
	fn func(ctx context.Context, tx repository.Repositories, o *domain.Order, after func(uow.AfterCommit)) (bool, error),
) (*domain.Order, error) {
	var out *domain.Order

	err := s.uow.DoRetry(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		o, err := load(ctx, tx)
		if err != nil {
			return orderErr(err)
		}

		expected := o.Version
		changed, err := fn(ctx, tx, o, after)
		if err != nil {
			return err
		}

		if changed {
			if err := tx.Orders().Update(ctx, o, expected); err != nil {
				return err
			}
		}

		out = o
		return nil
	})

	return out, err
}

func byID(id uuid.UUID) func(ctx context.Context, tx repository.Repositories) (*domain.Order, error) {
	return func(ctx context.Context, tx repository.Repositories) (*domain.Order, error) {
		return tx.Orders().Get(ctx, id)
	}
}

func byIntent(intentID string) func(ctx context.Context, tx repository.Repositories) (*domain.Order, error) {
	return func(ctx context.Context, tx repository.Repositories) (*domain.Order, error) {
		return tx.Orders().GetByPaymentIntent(ctx, intentID)
	}
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

func (s *Service) pendingChanged(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidatePendingGate(ctx)
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

func orderErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}
