package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

// LogPublisher writes events to the logger. Used when no broker is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, ev domain.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.log.InfoContext(ctx, "event published",
		slog.String("name", ev.Name()),
		slog.String("key", ev.Key()),
		slog.String("payload", string(b)),
	)

	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.Event(nil), r.events...)
}

// Names returns the names of the recorded events in publish order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name())
	}
	return out
}
