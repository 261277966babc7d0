package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

// Sandbox is an in-process gateway for local runs. Intents stay pending
// until Settle is called.
type Sandbox struct {
	mu      sync.Mutex
	intents map[string]Status
	refunds map[string]int64
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		intents: make(map[string]Status),
		refunds: make(map[string]int64),
	}
}

func (s *Sandbox) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "sbx_" + uuid.NewString()
	s.intents[id] = StatusPending

	return &Intent{
		ID:          id,
		ClientToken: fmt.Sprintf("sandbox://pay/%s?amount=%d&currency=%s", id, req.Amount, req.Currency),
		Status:      StatusPending,
	}, nil
}

func (s *Sandbox) Status(ctx context.Context, intentID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.intents[intentID]
	if !ok {
		return "", &domain.PaymentGatewayError{Op: "status", Err: fmt.Errorf("unknown intent %s", intentID)}
	}

	return st, nil
}

func (s *Sandbox) Refund(ctx context.Context, intentID string, amount int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.intents[intentID] != StatusPaid {
		return "", &domain.PaymentGatewayError{Op: "refund", Err: fmt.Errorf("intent %s is not paid", intentID)}
	}
	s.refunds[intentID] += amount

	return "rfnd_" + uuid.NewString(), nil
}

func (s *Sandbox) RefundedAmount(ctx context.Context, intentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intents[intentID]; !ok {
		return 0, &domain.PaymentGatewayError{Op: "refunds", Err: fmt.Errorf("unknown intent %s", intentID)}
	}

	return s.refunds[intentID], nil
}

// Settle sets the outcome of an intent.
func (s *Sandbox) Settle(intentID string, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intents[intentID]; !ok {
		return fmt.Errorf("unknown intent %s", intentID)
	}
	s.intents[intentID] = st

	return nil
}

func (s *Sandbox) Refunded(intentID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refunds[intentID]
}
