package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Jobs are the periodic order passes. Both are idempotent and safe to run
// from several instances at once.
type Jobs interface {
	ExpirePending(ctx context.Context) (int, error)
	SweepPlayed(ctx context.Context) (int, error)
}

type Sweeper struct {
	jobs     Jobs
	interval time.Duration
	log      *slog.Logger
}

func New(jobs Jobs, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Sweeper{
		jobs:     jobs,
		interval: interval,
		log:      log.With(slog.String("component", "sweeper")),
	}
}

// Run sweeps once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.log.InfoContext(ctx, "sweeper started", slog.Duration("interval", s.interval))

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// RunOnce runs both passes. A failing pass is logged and retried on the
// next tick.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if n, err := s.jobs.ExpirePending(ctx); err != nil {
		s.log.ErrorContext(ctx, "expire pending orders", slog.Any("err", err))
	} else if n > 0 {
		s.log.InfoContext(ctx, "expired pending orders", slog.Int("count", n))
	}

	if n, err := s.jobs.SweepPlayed(ctx); err != nil {
		s.log.ErrorContext(ctx, "mark played orders", slog.Any("err", err))
	} else if n > 0 {
		s.log.InfoContext(ctx, "marked orders played", slog.Int("count", n))
	}
}
