package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

// KafkaPublisher writes events to one topic per event name, prefixed with
// the configured topic prefix. Messages are keyed by the event key so that
// events of one order stay in one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
}

func NewKafkaPublisher(brokers []string, prefix string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		prefix: prefix,
	}
}

func (p *KafkaPublisher) Topic(ev domain.Event) string {
	if p.prefix == "" {
		return ev.Name()
	}
	return p.prefix + "." + ev.Name()
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.Event) error {
	const op = "events.KafkaPublisher.Publish"

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.Topic(ev),
		Key:   []byte(ev.Key()),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
