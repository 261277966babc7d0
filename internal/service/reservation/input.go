package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/validate"
)

const (
	OpReserve        = "reservation.reserve"
	OpAddInactive    = "reservation.add_inactive_period"
	dateLayout       = "2006-01-02"
	maxReasonLength  = 500
	maxBookingLength = 24 * time.Hour
)

// LocalSlot is the {date, hourFrom, hourTo} booking form, interpreted in
// the request timezone.
type LocalSlot struct {
	Date     string
	HourFrom int
	HourTo   int
}

type ReserveInput struct {
	CourtID   int64
	Principal domain.Principal
	// Period is the absolute booking form. Exactly one of Period and Local
	// is set.
	Period domain.Period
	Local  *LocalSlot
	// Timezone is an IANA zone name; empty means the facility timezone.
	Timezone string
	// RateKey identifies the caller for rate limiting; empty disables it.
	RateKey string
}

// resolve returns the absolute period of the request.
func (in ReserveInput) resolve(loc *time.Location) (domain.Period, error) {
	if in.Local == nil {
		return in.Period, nil
	}

	date, err := time.ParseInLocation(dateLayout, in.Local.Date, loc)
	if err != nil {
		return domain.Period{}, &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	return domain.LocalHours(date, in.Local.HourFrom, in.Local.HourTo, loc)
}

type InactivePeriodInput struct {
	CourtID   int64
	Principal domain.Principal
	Period    domain.Period
	Reason    string
}

// RegisterRules adds the validation chains of this package to r.
func RegisterRules(r *validate.Registry) {
	validate.Register(r, OpReserve,
		requireUser,
		requireCourt,
		oneBookingForm,
		knownTimezone,
		wellFormedBooking,
	)

	validate.Register(r, OpAddInactive,
		func(ctx context.Context, in InactivePeriodInput) error {
			return requireManager(in.Principal)
		},
		func(ctx context.Context, in InactivePeriodInput) error {
			if !in.Period.Valid() {
				return fmt.Errorf("period %s: %w", in.Period, domain.ErrInvalidInterval)
			}
			return nil
		},
		func(ctx context.Context, in InactivePeriodInput) error {
			if len(in.Reason) > maxReasonLength {
				return &domain.ValidationError{Field: "reason", Reason: "too long"}
			}
			return nil
		},
	)
}

func requireUser(ctx context.Context, in ReserveInput) error {
	if in.Principal.UserID == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func requireManager(p domain.Principal) error {
	if p.UserID == "" {
		return domain.ErrUnauthorized
	}
	if !p.IsAdmin() && !p.HasRole(domain.RoleManager) {
		return domain.ErrForbidden
	}
	return nil
}

func requireCourt(ctx context.Context, in ReserveInput) error {
	if in.CourtID <= 0 {
		return &domain.ValidationError{Field: "court_id", Reason: "must be positive"}
	}
	return nil
}

func oneBookingForm(ctx context.Context, in ReserveInput) error {
	hasPeriod := !in.Period.From.IsZero() || !in.Period.To.IsZero()
	if hasPeriod == (in.Local != nil) {
		return &domain.ValidationError{Field: "period", Reason: "exactly one of period or local hours is required"}
	}
	return nil
}

func knownTimezone(ctx context.Context, in ReserveInput) error {
	if in.Timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return &domain.ValidationError{Field: "timezone", Reason: "unknown IANA zone"}
	}
	return nil
}

func wellFormedBooking(ctx context.Context, in ReserveInput) error {
	if in.Local != nil {
		if _, err := domain.NewHourRange(in.Local.HourFrom, in.Local.HourTo); err != nil {
			return err
		}
		if _, err := time.Parse(dateLayout, in.Local.Date); err != nil {
			return &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
		}
		return nil
	}

	if !in.Period.Valid() {
		return fmt.Errorf("period %s: %w", in.Period, domain.ErrInvalidInterval)
	}
	if in.Period.Duration() > maxBookingLength {
		return fmt.Errorf("period %s: %w", in.Period, domain.ErrSpansDays)
	}
	return nil
}
