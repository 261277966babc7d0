package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omise/omise-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Intent), args.Error(1)
}

func (m *MockGateway) Status(ctx context.Context, intentID string) (Status, error) {
	args := m.Called(ctx, intentID)
	return args.Get(0).(Status), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, intentID string, amount int64) (string, error) {
	args := m.Called(ctx, intentID, amount)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) RefundedAmount(ctx context.Context, intentID string) (int64, error) {
	args := m.Called(ctx, intentID)
	return args.Get(0).(int64), args.Error(1)
}

func fastRetry(next Gateway, n uint64) *Retrying {
	return NewRetrying(next, RetryConfig{
		MaxRetries:      n,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})
}

func TestRetrying_RefundRetriesTransientFailures(t *testing.T) {
	gw := new(MockGateway)
	transient := &domain.PaymentGatewayError{Op: "refund", Retryable: true, Err: errors.New("503")}

	gw.On("RefundedAmount", mock.Anything, "chrg_1").Return(int64(0), nil)
	gw.On("Refund", mock.Anything, "chrg_1", int64(160000)).Return("", transient).Twice()
	gw.On("Refund", mock.Anything, "chrg_1", int64(160000)).Return("rfnd_1", nil).Once()

	id, err := fastRetry(gw, 3).Refund(context.Background(), "chrg_1", 160000)
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", id)
	gw.AssertExpectations(t)
}

func TestRetrying_RefundExhaustsRetries(t *testing.T) {
	gw := new(MockGateway)
	transient := &domain.PaymentGatewayError{Op: "refund", Retryable: true, Err: errors.New("timeout")}

	gw.On("RefundedAmount", mock.Anything, "chrg_1").Return(int64(0), nil)
	gw.On("Refund", mock.Anything, "chrg_1", int64(100)).Return("", transient).Times(3)

	_, err := fastRetry(gw, 2).Refund(context.Background(), "chrg_1", 100)
	require.ErrorIs(t, err, domain.ErrPaymentGateway)
	assert.True(t, domain.IsRetryable(err))
	gw.AssertExpectations(t)
}

func TestRetrying_TerminalFailureIsNotRetried(t *testing.T) {
	gw := new(MockGateway)
	terminal := &domain.PaymentGatewayError{Op: "refund", Err: errors.New("invalid charge")}

	gw.On("RefundedAmount", mock.Anything, "chrg_1").Return(int64(0), nil)
	gw.On("Refund", mock.Anything, "chrg_1", int64(100)).Return("", terminal).Once()

	_, err := fastRetry(gw, 5).Refund(context.Background(), "chrg_1", 100)
	require.ErrorIs(t, err, domain.ErrPaymentGateway)
	assert.False(t, domain.IsRetryable(err))
	gw.AssertExpectations(t)
}

func TestRetrying_RefundLandedBeforeTimeoutIsNotRepeated(t *testing.T) {
	gw := new(MockGateway)
	timeout := &domain.PaymentGatewayError{Op: "refund", Retryable: true, Err: errors.New("read timeout")}

	gw.On("RefundedAmount", mock.Anything, "chrg_1").Return(int64(0), nil).Once()
	gw.On("Refund", mock.Anything, "chrg_1", int64(160000)).Return("", timeout).Once()
	gw.On("RefundedAmount", mock.Anything, "chrg_1").Return(int64(160000), nil).Once()

	id, err := fastRetry(gw, 3).Refund(context.Background(), "chrg_1", 160000)
	require.NoError(t, err)
	assert.Empty(t, id)
	gw.AssertExpectations(t)
	gw.AssertNumberOfCalls(t, "Refund", 1)
}

func TestRetrying_CreateIntentIsNotRetried(t *testing.T) {
	gw := new(MockGateway)
	req := IntentRequest{OrderID: uuid.New(), Amount: 200000, Currency: "thb"}
	transient := &domain.PaymentGatewayError{Op: "create charge", Retryable: true, Err: errors.New("timeout")}
	gw.On("CreateIntent", mock.Anything, req).Return(nil, transient).Once()

	_, err := fastRetry(gw, 3).CreateIntent(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrPaymentGateway)
	gw.AssertNumberOfCalls(t, "CreateIntent", 1)

	ok := new(MockGateway)
	ok.On("CreateIntent", mock.Anything, req).Return(&Intent{ID: "chrg_9", Status: StatusPending}, nil).Once()
	in, err := fastRetry(ok, 3).CreateIntent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "chrg_9", in.ID)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"server error", &omise.Error{StatusCode: 503, Code: "service_unavailable"}, true},
		{"rate limited", &omise.Error{StatusCode: 429, Code: "too_many_requests"}, true},
		{"bad request", &omise.Error{StatusCode: 400, Code: "invalid_charge"}, false},
		{"transport", errors.New("connection reset"), true},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("refund", tt.err)
			assert.ErrorIs(t, err, domain.ErrPaymentGateway)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
		})
	}
}

func TestChargeStatus(t *testing.T) {
	assert.Equal(t, StatusPaid, chargeStatus("successful"))
	assert.Equal(t, StatusFailed, chargeStatus("failed"))
	assert.Equal(t, StatusFailed, chargeStatus("expired"))
	assert.Equal(t, StatusPending, chargeStatus("pending"))
}

func TestSandbox(t *testing.T) {
	sb := NewSandbox()
	ctx := context.Background()

	in, err := sb.CreateIntent(ctx, IntentRequest{OrderID: uuid.New(), Amount: 1000, Currency: "thb"})
	require.NoError(t, err)

	st, err := sb.Status(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st)

	_, err = sb.Refund(ctx, in.ID, 800)
	assert.ErrorIs(t, err, domain.ErrPaymentGateway)

	require.NoError(t, sb.Settle(in.ID, StatusPaid))
	_, err = sb.Refund(ctx, in.ID, 800)
	require.NoError(t, err)
	assert.Equal(t, int64(800), sb.Refunded(in.ID))

	total, err := sb.RefundedAmount(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), total)

	_, err = sb.RefundedAmount(ctx, "chrg_missing")
	assert.ErrorIs(t, err, domain.ErrPaymentGateway)
}
