package uow

import (
	"context"
	"errors"
	"time"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	store      repository.Store
	maxRetries int
	backoff    time.Duration
}

func NewUoW(store repository.Store, maxRetries int) *UoW {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &UoW{store: store, maxRetries: maxRetries, backoff: 10 * time.Millisecond}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.Transact(ctx, func(ctx context.Context, tx repository.Repositories) error {
		hooks = hooks[:0]
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

// DoRetry is Do that re-runs fn on version mismatches and serialization
// failures, up to the configured number of retries. fn must re-read
// everything it depends on.
func (u *UoW) DoRetry(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error,
) error {
	var err error

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), err)
			case <-time.After(time.Duration(attempt) * u.backoff):
			}
		}

		err = u.Do(ctx, fn)
		if err == nil || !repository.Retryable(err) {
			return err
		}
	}

	return err
}
