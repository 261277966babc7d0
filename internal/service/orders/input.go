package orders

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/validate"
)

const (
	OpRate   = "orders.rate"
	OpCancel = "orders.cancel"

	maxFeedbackLength = 2000
)

type RateInput struct {
	OrderID   uuid.UUID
	Principal domain.Principal
	Stars     int
	Feedback  string
}

type CancelInput struct {
	OrderID   uuid.UUID
	Principal domain.Principal
}

// RegisterRules adds the validation chains of this package to r.
func RegisterRules(r *validate.Registry) {
	validate.Register(r, OpRate,
		func(ctx context.Context, in RateInput) error {
			return authenticated(in.Principal)
		},
		func(ctx context.Context, in RateInput) error {
			if in.Stars < 1 || in.Stars > 5 {
				return &domain.ValidationError{Field: "stars", Reason: "must be between 1 and 5"}
			}
			return nil
		},
		func(ctx context.Context, in RateInput) error {
			if utf8.RuneCountInString(in.Feedback) > maxFeedbackLength {
				return &domain.ValidationError{Field: "feedback", Reason: "too long"}
			}
			return nil
		},
	)

	validate.Register(r, OpCancel,
		func(ctx context.Context, in CancelInput) error {
			return authenticated(in.Principal)
		},
	)
}

func authenticated(p domain.Principal) error {
	if p.UserID == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func requireManager(p domain.Principal) error {
	if err := authenticated(p); err != nil {
		return err
	}
	if !p.IsAdmin() && !p.HasRole(domain.RoleManager) {
		return domain.ErrForbidden
	}
	return nil
}
