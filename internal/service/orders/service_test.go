package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/events"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/memory"
	redisrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/redis"
)

const courtID = int64(10)

var (
	start  = time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)
	slot   = domain.Period{From: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), To: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	owner  = domain.Principal{UserID: "u1", Roles: []string{domain.RoleUser}}
	other  = domain.Principal{UserID: "u2", Roles: []string{domain.RoleUser}}
	admin  = domain.Principal{UserID: "a1", Roles: []string{domain.RoleAdmin}}
	keeper = domain.Principal{UserID: "m1", Roles: []string{domain.RoleManager}}
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	sandbox  *payment.Sandbox
	recorder *events.Recorder
	locks    *redisrepo.IdempotencyStore
	clock    time.Time
}

func newFixture(t *testing.T, gateway func(sb *payment.Sandbox) payment.Gateway) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memory.NewStore()
	store.PutFacility(domain.Facility{ID: 1, Timezone: "UTC"})
	store.PutCourt(domain.Court{ID: courtID, FacilityID: 1, State: domain.CourtActive, PricePerHour: 100000, Currency: "thb"})

	f := &fixture{
		store:    store,
		sandbox:  payment.NewSandbox(),
		recorder: &events.Recorder{},
		locks:    redisrepo.NewIdempotencyStore(rdb, time.Hour),
		clock:    start,
	}

	var gw payment.Gateway = f.sandbox
	if gateway != nil {
		gw = gateway(f.sandbox)
	}

	f.svc = New(Deps{
		Store:     store,
		Gateway:   gw,
		Cache:     redisrepo.New(rdb),
		Notifier:  redisrepo.NewCourtsPubSub(rdb),
		Locker:    f.locks,
		LockKey:   redisrepo.KeyOrderLock,
		Publisher: f.recorder,
		Clock:     func() time.Time { return f.clock },
	}, Config{})

	return f
}

// seed stores an order holding slot in the given state.
func (f *fixture) seed(t *testing.T, state domain.OrderState, p domain.Period) *domain.Order {
	t.Helper()
	ctx := context.Background()

	intent, err := f.sandbox.CreateIntent(ctx, payment.IntentRequest{Amount: 200000, Currency: "thb"})
	require.NoError(t, err)

	o := &domain.Order{
		ID:               uuid.New(),
		CourtID:          courtID,
		FacilityID:       1,
		UserID:           owner.UserID,
		Period:           p,
		Price:            200000,
		Currency:         "thb",
		PaymentIntentID:  intent.ID,
		State:            state,
		PendingExpiresAt: f.clock.Add(15 * time.Minute),
		CreatedAt:        f.clock,
		UpdatedAt:        f.clock,
	}

	require.NoError(t, f.store.Transact(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		id := o.ID
		return tx.Courts().AddPeriod(ctx, &domain.CourtPeriod{CourtID: courtID, Kind: domain.PeriodOrder, OrderID: &id, Period: p})
	}))

	if state != domain.OrderPending {
		require.NoError(t, f.sandbox.Settle(intent.ID, payment.StatusPaid))
	}

	return o
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *domain.Order {
	t.Helper()

	o, err := f.store.Orders().Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) periods(t *testing.T) []domain.CourtPeriod {
	t.Helper()

	c, err := f.store.Courts().Get(context.Background(), courtID, nil)
	require.NoError(t, err)
	return c.Periods
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o := f.seed(t, domain.OrderPending, slot)

	changed, err := f.svc.ConfirmPayment(ctx, o.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, changed)

	first := f.order(t, o.ID)
	assert.Equal(t, domain.OrderNotPlay, first.State)

	changed, err = f.svc.ConfirmPayment(ctx, o.PaymentIntentID)
	require.NoError(t, err)
	assert.False(t, changed)

	second := f.order(t, o.ID)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, []string{domain.EventOrderConfirmed}, f.recorder.Names())

	_, err = f.svc.ConfirmPayment(ctx, "chrg_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_RefundsEightyPercent(t *testing.T) {
	f := newFixture(t, nil)
	o := f.seed(t, domain.OrderNotPlay, slot)
	f.clock = slot.From.Add(-30 * time.Hour)

	res, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: o.ID, Principal: owner})
	require.NoError(t, err)

	assert.Equal(t, int64(160000), res.Refund)
	assert.Equal(t, int64(40000), res.Order.Price)
	assert.Equal(t, domain.OrderCancelled, res.Order.State)
	assert.Equal(t, int64(160000), f.sandbox.Refunded(o.PaymentIntentID))
	assert.Empty(t, f.periods(t), "cancelled interval is released")

	evs := f.recorder.Events()
	require.Len(t, evs, 1)
	ev := evs[0].(domain.OrderEvent)
	assert.Equal(t, domain.EventOrderCancelled, ev.Type)
	assert.Equal(t, int64(160000), ev.Refund)
}

func TestCancel_WindowClosed(t *testing.T) {
	f := newFixture(t, nil)
	o := f.seed(t, domain.OrderNotPlay, slot)
	f.clock = slot.From.Add(-2 * time.Hour)

	_, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: o.ID, Principal: owner})
	require.ErrorIs(t, err, domain.ErrStateGuard)

	got := f.order(t, o.ID)
	assert.Equal(t, domain.OrderNotPlay, got.State)
	assert.Equal(t, int64(200000), got.Price)
	assert.Zero(t, f.sandbox.Refunded(o.PaymentIntentID))
	assert.Len(t, f.periods(t), 1)
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o := f.seed(t, domain.OrderNotPlay, slot)

	_, err := f.svc.Cancel(ctx, CancelInput{OrderID: o.ID})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Cancel(ctx, CancelInput{OrderID: o.ID, Principal: other})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Cancel(ctx, CancelInput{OrderID: uuid.New(), Principal: owner})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res, err := f.svc.Cancel(ctx, CancelInput{OrderID: o.ID, Principal: admin})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, res.Order.State)
}

func TestCancel_PendingAndPlayedAreGuarded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pending := f.seed(t, domain.OrderPending, slot)
	_, err := f.svc.Cancel(ctx, CancelInput{OrderID: pending.ID, Principal: owner})
	assert.ErrorIs(t, err, domain.ErrStateGuard)

	played := f.seed(t, domain.OrderPlayed, domain.Period{From: slot.To, To: slot.To.Add(time.Hour)})
	_, err = f.svc.Cancel(ctx, CancelInput{OrderID: played.ID, Principal: owner})
	assert.ErrorIs(t, err, domain.ErrStateGuard)
}

type refundDown struct {
	*payment.Sandbox
	calls int
}

func (g *refundDown) Refund(context.Context, string, int64) (string, error) {
	g.calls++
	return "", &domain.PaymentGatewayError{Op: "refund", Retryable: true, Err: errors.New("503")}
}

func TestCancel_RefundExhaustedLeavesOrder(t *testing.T) {
	down := &refundDown{}
	f := newFixture(t, func(sb *payment.Sandbox) payment.Gateway {
		down.Sandbox = sb
		return payment.NewRetrying(down, payment.RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		})
	})
	o := f.seed(t, domain.OrderNotPlay, slot)

	_, err := f.svc.Cancel(context.Background(), CancelInput{OrderID: o.ID, Principal: owner})
	require.ErrorIs(t, err, domain.ErrPaymentGateway)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 3, down.calls)

	got := f.order(t, o.ID)
	assert.Equal(t, domain.OrderNotPlay, got.State)
	assert.Equal(t, int64(200000), got.Price)
	assert.Len(t, f.periods(t), 1)
	assert.Empty(t, f.recorder.Names())
}

// hangup refunds and then drops the caller, as a client disconnecting
// mid-request would.
type hangup struct {
	*payment.Sandbox
	cancel context.CancelFunc
}

func (g *hangup) Refund(ctx context.Context, intentID string, amount int64) (string, error) {
	id, err := g.Sandbox.Refund(ctx, intentID, amount)
	g.cancel()
	return id, err
}

func TestCancel_CallerGoneAfterRefund(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, func(sb *payment.Sandbox) payment.Gateway {
		return &hangup{Sandbox: sb, cancel: cancel}
	})
	o := f.seed(t, domain.OrderNotPlay, slot)

	res, err := f.svc.Cancel(ctx, CancelInput{OrderID: o.ID, Principal: owner})
	require.NoError(t, err)
	assert.Equal(t, int64(160000), res.Refund)

	got := f.order(t, o.ID)
	assert.Equal(t, domain.OrderCancelled, got.State)
	assert.Equal(t, int64(40000), got.Price)
	assert.Empty(t, f.periods(t))

	_, err = f.svc.Cancel(context.Background(), CancelInput{OrderID: o.ID, Principal: owner})
	assert.ErrorIs(t, err, domain.ErrStateGuard)
	assert.Equal(t, int64(160000), f.sandbox.Refunded(o.PaymentIntentID))
}

func TestCancel_ReusesEarlierRefund(t *testing.T) {
	tests := []struct {
		name  string
		clock time.Time
	}{
		{"inside window", start},
		{"window closed since", slot.From.Add(-time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			o := f.seed(t, domain.OrderNotPlay, slot)

			_, err := f.sandbox.Refund(ctx, o.PaymentIntentID, 160000)
			require.NoError(t, err)
			f.clock = tt.clock

			res, err := f.svc.Cancel(ctx, CancelInput{OrderID: o.ID, Principal: owner})
			require.NoError(t, err)
			assert.Equal(t, int64(160000), res.Refund)
			assert.Empty(t, res.RefundID)
			assert.Equal(t, int64(160000), f.sandbox.Refunded(o.PaymentIntentID))

			got := f.order(t, o.ID)
			assert.Equal(t, domain.OrderCancelled, got.State)
			assert.Equal(t, int64(40000), got.Price)
			assert.Empty(t, f.periods(t))
		})
	}
}

func TestCancel_TopsUpPartialRefund(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o := f.seed(t, domain.OrderNotPlay, slot)

	_, err := f.sandbox.Refund(ctx, o.PaymentIntentID, 60000)
	require.NoError(t, err)

	res, err := f.svc.Cancel(ctx, CancelInput{OrderID: o.ID, Principal: owner})
	require.NoError(t, err)
	assert.Equal(t, int64(160000), res.Refund)
	assert.NotEmpty(t, res.RefundID)
	assert.Equal(t, int64(160000), f.sandbox.Refunded(o.PaymentIntentID))
}

func TestCancel_LockHeld(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o := f.seed(t, domain.OrderNotPlay, slot)

	ok, err := f.locks.Lock(ctx, redisrepo.KeyOrderLock(o.ID), "other", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Cancel(ctx, CancelInput{OrderID: o.ID, Principal: owner})
	assert.ErrorIs(t, err, ErrCancelInProgress)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, f.sandbox.Refunded(o.PaymentIntentID))
}

func TestRate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	upcoming := f.seed(t, domain.OrderNotPlay, slot)
	_, err := f.svc.Rate(ctx, RateInput{OrderID: upcoming.ID, Principal: owner, Stars: 5})
	require.ErrorIs(t, err, domain.ErrStateGuard)

	played := f.seed(t, domain.OrderPlayed, domain.Period{From: slot.To, To: slot.To.Add(time.Hour)})

	_, err = f.svc.Rate(ctx, RateInput{OrderID: played.ID, Principal: owner, Stars: 6})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Rate(ctx, RateInput{OrderID: played.ID, Principal: other, Stars: 4})
	require.ErrorIs(t, err, domain.ErrForbidden)

	out, err := f.svc.Rate(ctx, RateInput{OrderID: played.ID, Principal: owner, Stars: 4, Feedback: "good lights"})
	require.NoError(t, err)
	require.NotNil(t, out.Rating)
	assert.Equal(t, 4, out.Rating.Stars)
	assert.Equal(t, domain.OrderPlayed, out.State)

	_, err = f.svc.Rate(ctx, RateInput{OrderID: played.ID, Principal: owner, Stars: 1})
	require.ErrorIs(t, err, domain.ErrAlreadyRated)

	assert.Equal(t, 4, f.order(t, played.ID).Rating.Stars)

	evs := f.recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.FacilityRated{FacilityID: 1, OrderID: played.ID, Stars: 4, OccurredAt: f.clock}, evs[0])
}

func TestSweepPlayed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ended := f.seed(t, domain.OrderNotPlay, slot)
	later := f.seed(t, domain.OrderNotPlay, domain.Period{From: slot.To, To: slot.To.Add(time.Hour)})
	f.clock = slot.To.Add(time.Minute)

	n, err := f.svc.SweepPlayed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.OrderPlayed, f.order(t, ended.ID).State)
	assert.Equal(t, domain.OrderNotPlay, f.order(t, later.ID).State)

	n, err = f.svc.SweepPlayed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Cancel(ctx, CancelInput{OrderID: ended.ID, Principal: owner})
	assert.ErrorIs(t, err, domain.ErrStateGuard)
}

func TestMarkPlayed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o := f.seed(t, domain.OrderNotPlay, slot)

	_, err := f.svc.MarkPlayed(ctx, owner, o.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.MarkPlayed(ctx, keeper, o.ID)
	require.ErrorIs(t, err, domain.ErrStateGuard)

	f.clock = slot.From.Add(30 * time.Minute)
	out, err := f.svc.MarkPlayed(ctx, keeper, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPlayed, out.State)
	assert.Equal(t, []string{domain.EventOrderPlayed}, f.recorder.Names())
}

func TestExpirePending(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	abandoned := f.seed(t, domain.OrderPending, slot)
	paidLate := f.seed(t, domain.OrderPending, domain.Period{From: slot.To, To: slot.To.Add(time.Hour)})
	require.NoError(t, f.sandbox.Settle(paidLate.PaymentIntentID, payment.StatusPaid))

	n, err := f.svc.ExpirePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "payment window still open")

	f.clock = start.Add(time.Hour)
	n, err = f.svc.ExpirePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.store.Orders().Get(ctx, abandoned.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, domain.OrderNotPlay, f.order(t, paidLate.ID).State)

	periods := f.periods(t)
	require.Len(t, periods, 1)
	assert.Equal(t, paidLate.ID, *periods[0].OrderID)

	assert.ElementsMatch(t, []string{domain.EventOrderConfirmed, domain.EventOrderExpired}, f.recorder.Names())

	n, err = f.svc.ExpirePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnyPending(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	busy, err := f.svc.AnyPending(ctx)
	require.NoError(t, err)
	assert.False(t, busy)

	o := f.seed(t, domain.OrderPending, slot)
	f.svc.pendingChanged(ctx)

	busy, err = f.svc.AnyPending(ctx)
	require.NoError(t, err)
	assert.True(t, busy)

	_, err = f.svc.ConfirmPayment(ctx, o.PaymentIntentID)
	require.NoError(t, err)

	busy, err = f.svc.AnyPending(ctx)
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestHandlePaymentResult(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	failed := f.seed(t, domain.OrderPending, slot)
	require.NoError(t, f.sandbox.Settle(failed.PaymentIntentID, payment.StatusFailed))
	require.NoError(t, f.svc.HandlePaymentResult(ctx, failed.PaymentIntentID, payment.StatusFailed))

	_, err := f.store.Orders().Get(ctx, failed.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, f.periods(t))

	paid := f.seed(t, domain.OrderPending, slot)

	// An unverified "paid" notification changes nothing.
	require.NoError(t, f.svc.HandlePaymentResult(ctx, paid.PaymentIntentID, payment.StatusPaid))
	assert.Equal(t, domain.OrderPending, f.order(t, paid.ID).State)

	require.NoError(t, f.sandbox.Settle(paid.PaymentIntentID, payment.StatusPaid))
	require.NoError(t, f.svc.HandlePaymentResult(ctx, paid.PaymentIntentID, payment.StatusPaid))
	assert.Equal(t, domain.OrderNotPlay, f.order(t, paid.ID).State)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o := f.seed(t, domain.OrderNotPlay, slot)

	got, err := f.svc.Get(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.Get(ctx, other, o.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Get(ctx, admin, o.ID)
	assert.NoError(t, err)

	list, err := f.svc.ListByUser(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.ListByUser(ctx, other, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.ListByUser(ctx, domain.Principal{}, 10, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
