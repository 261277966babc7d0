package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
)

const (
	KeyPaymentPaid   = "payment.paid"
	KeyPaymentFailed = "payment.failed"
)

var errMalformed = errors.New("malformed payment message")

// PaymentHandler applies a payment notification to its order.
type PaymentHandler interface {
	HandlePaymentResult(ctx context.Context, intentID string, reported payment.Status) error
}

// PaymentResult is the body of payment.paid and payment.failed messages.
type PaymentResult struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// Consumer feeds payment results from a topic exchange into a handler.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	handler PaymentHandler
	log     *slog.Logger
}

func NewConsumer(url, exchange, queue string, handler PaymentHandler, log *slog.Logger) (*Consumer, error) {
	const op = "mq.NewConsumer"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: dial rabbitmq:%w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: open channel:%w", op, err)
	}

	fail := func(what string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %s:%w", op, what, err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	for _, rk := range []string{KeyPaymentPaid, KeyPaymentFailed} {
		if err := ch.QueueBind(q.Name, rk, exchange, false, nil); err != nil {
			return fail("bind "+rk, err)
		}
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fail("qos", err)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Consumer{
		conn:    conn,
		ch:      ch,
		queue:   q.Name,
		handler: handler,
		log:     log.With(slog.String("consumer", q.Name)),
	}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "mq.Consumer.Run"

	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s: deliveries closed", op)
			}
			dispatch(ctx, c.handler, c.log, d)
		}
	}
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// dispatch handles one delivery and settles it. Transient failures are
// requeued; messages that can never succeed are dropped.
func dispatch(ctx context.Context, h PaymentHandler, log *slog.Logger, d amqp.Delivery) {
	err := Handle(ctx, h, d.RoutingKey, d.Body)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.WarnContext(ctx, "ack", slog.Any("err", err))
		}
		return
	}

	requeue := !permanent(err)
	log.ErrorContext(ctx, "payment message",
		slog.String("routing_key", d.RoutingKey),
		slog.Bool("requeue", requeue),
		slog.Any("err", err),
	)
	if err := d.Nack(false, requeue); err != nil {
		log.WarnContext(ctx, "nack", slog.Any("err", err))
	}
}

// Handle decodes one payment message and applies it.
func Handle(ctx context.Context, h PaymentHandler, routingKey string, body []byte) error {
	const op = "mq.Handle"

	var status payment.Status
	switch routingKey {
	case KeyPaymentPaid:
		status = payment.StatusPaid
	case KeyPaymentFailed:
		status = payment.StatusFailed
	default:
		return fmt.Errorf("%s: routing key %q:%w", op, routingKey, errMalformed)
	}

	var msg PaymentResult
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%s: %v:%w", op, err, errMalformed)
	}
	if msg.PaymentIntentID == "" {
		return fmt.Errorf("%s: payment_intent_id missing:%w", op, errMalformed)
	}

	if err := h.HandlePaymentResult(ctx, msg.PaymentIntentID, status); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func permanent(err error) bool {
	switch {
	case errors.Is(err, errMalformed),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation):
		return true
	case errors.Is(err, domain.ErrPaymentGateway):
		return !domain.IsRetryable(err)
	default:
		return false
	}
}
