package validate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Rule checks one aspect of an operation input.
type Rule[T any] func(ctx context.Context, in T) error

// Chain runs rules in order and stops at the first failure.
type Chain[T any] []Rule[T]

func (c Chain[T]) Validate(ctx context.Context, in T) error {
	for _, rule := range c {
		if err := rule(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// Registry maps operation names to their validation chains. Chains are
// registered and resolved while services are constructed.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]any
}

func NewRegistry() *Registry {
	return &Registry{chains: make(map[string]any)}
}

func Register[T any](r *Registry, op string, rules ...Rule[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chains[op] = Chain[T](rules)
}

// ErrUnknownOp is returned for an operation with no registered chain.
var ErrUnknownOp = errors.New("validate: no rules registered")

// Resolve returns the chain registered for op. An unregistered op and a
// chain registered with another input type are errors.
func Resolve[T any](r *Registry, op string) (Chain[T], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.chains[op]
	if !ok {
		return nil, fmt.Errorf("validate.Resolve: %s: %w", op, ErrUnknownOp)
	}

	c, ok := v.(Chain[T])
	if !ok {
		return nil, fmt.Errorf("validate.Resolve: %s registered with %T", op, v)
	}

	return c, nil
}

// MustResolve is Resolve for service constructors. It panics, so a service
// with a missing registration fails at startup.
func MustResolve[T any](r *Registry, op string) Chain[T] {
	c, err := Resolve[T](r, op)
	if err != nil {
		panic(err)
	}
	return c
}
