package orders

import (
	"fmt"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

var (
	ErrOrderNotFound    = fmt.Errorf("order not found: %w", domain.ErrNotFound)
	ErrCancelInProgress = fmt.Errorf("cancellation already in progress: %w", domain.ErrConflict)
)
