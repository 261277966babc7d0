package reservation

import (
	"fmt"
	"time"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

var (
	ErrCourtNotFound    = fmt.Errorf("court not found: %w", domain.ErrNotFound)
	ErrCourtInactive    = fmt.Errorf("court is not active: %w", domain.ErrNotFound)
	ErrFacilityNotFound = fmt.Errorf("facility not found: %w", domain.ErrNotFound)
	ErrPeriodNotFound   = fmt.Errorf("inactive period not found: %w", domain.ErrNotFound)
	ErrPastPeriod       = fmt.Errorf("period starts in the past: %w", domain.ErrInvalidInterval)
)

// SlotConflictError reports the reservation-set entry that blocks a request.
type SlotConflictError struct {
	CourtID   int64
	Requested domain.Period
	Kind      domain.PeriodKind
}

func (e *SlotConflictError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("court %d: %s is already reserved", e.CourtID, e.Requested)
	}
	return fmt.Sprintf("court %d: %s overlaps an existing %s period", e.CourtID, e.Requested, e.Kind)
}

func (e *SlotConflictError) Unwrap() error { return domain.ErrConflict }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many reservation attempts, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return domain.ErrRateLimited }
