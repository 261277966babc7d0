package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

type OmiseConfig struct {
	PublicKey  string
	SecretKey  string
	SourceType string
	ReturnURI  string
}

type Omise struct {
	client *omise.Client
	cfg    OmiseConfig
}

func NewOmise(cfg OmiseConfig) (*Omise, error) {
	const op = "payment.NewOmise"

	c, err := omise.NewClient(cfg.PublicKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	c.SetDebug(false)

	if cfg.SourceType == "" {
		cfg.SourceType = "promptpay"
	}

	return &Omise{client: c, cfg: cfg}, nil
}

// CreateIntent creates a source of the configured type and a charge for it.
// The charge id is the intent id.
func (g *Omise) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	const op = "create intent"

	if err := ctx.Err(); err != nil {
		return nil, classify(op, err)
	}

	src := &omise.Source{}
	if err := g.client.Do(src, &operations.CreateSource{
		Type:     g.cfg.SourceType,
		Amount:   req.Amount,
		Currency: req.Currency,
	}); err != nil {
		return nil, classify(op, err)
	}

	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.CreateCharge{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Source:    src.ID,
		ReturnURI: g.cfg.ReturnURI,
		Metadata:  map[string]any{"order_id": req.OrderID.String()},
	}); err != nil {
		return nil, classify(op, err)
	}

	return &Intent{
		ID:          ch.ID,
		ClientToken: ch.AuthorizeURI,
		Status:      chargeStatus(string(ch.Status)),
	}, nil
}

func (g *Omise) Status(ctx context.Context, intentID string) (Status, error) {
	const op = "retrieve charge"

	if err := ctx.Err(); err != nil {
		return "", classify(op, err)
	}

	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.RetrieveCharge{ChargeID: intentID}); err != nil {
		return "", classify(op, err)
	}

	return chargeStatus(string(ch.Status)), nil
}

func (g *Omise) Refund(ctx context.Context, intentID string, amount int64) (string, error) {
	const op = "refund"

	if err := ctx.Err(); err != nil {
		return "", classify(op, err)
	}

	rf := &omise.Refund{}
	if err := g.client.Do(rf, &operations.CreateRefund{
		ChargeID: intentID,
		Amount:   amount,
	}); err != nil {
		return "", classify(op, err)
	}

	return rf.ID, nil
}

func (g *Omise) RefundedAmount(ctx context.Context, intentID string) (int64, error) {
	const op = "retrieve refunds"

	if err := ctx.Err(); err != nil {
		return 0, classify(op, err)
	}

	list := &omise.RefundList{}
	if err := g.client.Do(list, &operations.ListRefunds{ChargeID: intentID}); err != nil {
		return 0, classify(op, err)
	}

	var total int64
	for _, rf := range list.Data {
		total += rf.Amount
	}

	return total, nil
}

func chargeStatus(s string) Status {
	switch s {
	case "successful":
		return StatusPaid
	case "failed", "expired", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// classify marks API errors with a 5xx or 429 status and transport errors
// as retryable.
func classify(op string, err error) error {
	var apiErr *omise.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
		return &domain.PaymentGatewayError{Op: op, Retryable: retryable, Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &domain.PaymentGatewayError{Op: op, Err: err}
	}

	return &domain.PaymentGatewayError{Op: op, Retryable: true, Err: err}
}
