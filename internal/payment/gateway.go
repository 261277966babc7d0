package payment

import (
	"context"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

type IntentRequest struct {
	OrderID  uuid.UUID
	Amount   int64
	Currency string
}

// Intent is the gateway handle of an in-progress charge.
type Intent struct {
	ID          string
	ClientToken string
	Status      Status
}

// Gateway is the external payment provider. Errors are
// *domain.PaymentGatewayError values.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Status(ctx context.Context, intentID string) (Status, error)
	Refund(ctx context.Context, intentID string, amount int64) (string, error)
	// RefundedAmount is the total already refunded on the intent.
	RefundedAmount(ctx context.Context, intentID string) (int64, error)
}
