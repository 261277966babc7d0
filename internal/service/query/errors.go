package query

import (
	"fmt"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

var (
	ErrCourtNotFound    = fmt.Errorf("court not found: %w", domain.ErrNotFound)
	ErrFacilityNotFound = fmt.Errorf("facility not found: %w", domain.ErrNotFound)
)
