package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	redisrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/redis"
)

const dateLayout = "2006-01-02"

type Config struct {
	AvailabilityTTL time.Duration
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	cfg   Config
}

// Slot is one occupied entry of a court day.
type Slot struct {
	Kind   domain.PeriodKind `json:"kind"`
	Period domain.Period     `json:"period"`
}

// Availability is the reservation set of one court on one local day.
type Availability struct {
	CourtID  int64             `json:"court_id"`
	State    string            `json:"state"`
	Date     string            `json:"date"`
	Timezone string            `json:"timezone"`
	Window   domain.Period     `json:"window"`
	Open     *domain.HourRange `json:"open,omitempty"` // nil when closed that day
	Busy     []Slot            `json:"busy"`
}

func New(store repository.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 30 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// CourtAvailability returns the occupied periods of a court on a local day.
// Views are cached per court generation, so any reservation-set change
// drops them.
//
// Parameters:
//   - ctx: request-scoped context.
//   - courtID: ID of the court.
//   - date: the local day as YYYY-MM-DD.
//   - timezone: IANA zone of date; empty means the facility timezone.
//
// Returns:
//   - *Availability: the day view.
//   - error: query.ErrCourtNotFound if the court is not found.
func (s *Service) CourtAvailability(ctx context.Context, courtID int64, date, timezone string) (*Availability, error) {
	const op = "service.query.CourtAvailability"

	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("%s:%w", op, &domain.ValidationError{Field: "timezone", Reason: "unknown IANA zone"})
		}
	}

	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%s:%w", op, &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"})
	}

	load := func(ctx context.Context) (Availability, error) {
		return s.load(ctx, courtID, date, timezone)
	}

	if s.cache == nil {
		a, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return &a, nil
	}

	gen, err := s.cache.CourtGeneration(ctx, courtID)
	if err != nil {
		a, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return &a, nil
	}

	a, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyCourtAvailability(courtID, gen, date+"@"+timezone),
		s.cfg.AvailabilityTTL,
		load,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &a, nil
}

func (s *Service) load(ctx context.Context, courtID int64, date, timezone string) (Availability, error) {
	court, err := s.store.Courts().Get(ctx, courtID, &domain.Period{})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Availability{}, ErrCourtNotFound
		}
		return Availability{}, err
	}

	facility, err := s.store.Facilities().Get(ctx, court.FacilityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Availability{}, ErrFacilityNotFound
		}
		return Availability{}, err
	}

	loc := facility.Location()
	if timezone != "" {
		if loc, err = time.LoadLocation(timezone); err != nil {
			return Availability{}, err
		}
	}

	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return Availability{}, err
	}

	window := domain.Period{From: day, To: day.AddDate(0, 0, 1)}

	court, err = s.store.Courts().Get(ctx, courtID, &window)
	if err != nil {
		return Availability{}, err
	}

	out := Availability{
		CourtID:  court.ID,
		State:    string(court.State),
		Date:     date,
		Timezone: loc.String(),
		Window:   window.UTC(),
		Busy:     make([]Slot, 0, len(court.Periods)),
	}

	if open, ok := facility.Schedule.OpenOn(day, facility.Location()); ok {
		out.Open = &open
	}

	for _, p := range court.Periods {
		out.Busy = append(out.Busy, Slot{Kind: p.Kind, Period: p.Period.UTC()})
	}

	return out, nil
}
