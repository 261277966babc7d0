// Package memory is an in-process implementation of the repository
// interfaces. Transactions hold a store-wide lock and work on a copy of the
// data that replaces the live copy on commit.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
)

type state struct {
	facilities   map[int64]domain.Facility
	courts       map[int64]domain.Court
	periods      []domain.CourtPeriod
	nextPeriodID int64
	orders       map[uuid.UUID]domain.Order
}

func newState() *state {
	return &state{
		facilities: make(map[int64]domain.Facility),
		courts:     make(map[int64]domain.Court),
		orders:     make(map[uuid.UUID]domain.Order),
	}
}

func (st *state) clone() *state {
	cp := &state{
		facilities:   maps.Clone(st.facilities),
		courts:       maps.Clone(st.courts),
		periods:      slices.Clone(st.periods),
		nextPeriodID: st.nextPeriodID,
		orders:       make(map[uuid.UUID]domain.Order, len(st.orders)),
	}
	for id, o := range st.orders {
		cp.orders[id] = copyOrder(o)
	}
	return cp
}

func copyOrder(o domain.Order) domain.Order {
	if o.Rating != nil {
		r := *o.Rating
		o.Rating = &r
	}
	return o
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

// PutFacility inserts or replaces a facility.
func (s *Store) PutFacility(f domain.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.facilities[f.ID] = f
}

// PutCourt inserts or replaces a court. Its periods are appended to the
// reservation set.
func (s *Store) PutCourt(c domain.Court) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range c.Periods {
		s.st.nextPeriodID++
		p.ID = s.st.nextPeriodID
		p.CourtID = c.ID
		s.st.periods = append(s.st.periods, p)
	}
	c.Periods = nil
	s.st.courts[c.ID] = c
}

func (s *Store) Transact(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(ctx, &txRepos{st: work}); err != nil {
		return err
	}

	s.st = work
	return nil
}

// view runs fn against the live data under the store lock.
func (s *Store) view(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.st)
}

func (s *Store) Facilities() repository.FacilityRepository {
	return &facilityRepo{run: s.view}
}

func (s *Store) Courts() repository.CourtRepository {
	return &courtRepo{run: s.view}
}

func (s *Store) Orders() repository.OrderRepository {
	return &orderRepo{run: s.view}
}

type txRepos struct {
	st *state
}

func (t *txRepos) run(fn func(st *state) error) error {
	return fn(t.st)
}

func (t *txRepos) Facilities() repository.FacilityRepository {
	return &facilityRepo{run: t.run}
}

func (t *txRepos) Courts() repository.CourtRepository {
	return &courtRepo{run: t.run}
}

func (t *txRepos) Orders() repository.OrderRepository {
	return &orderRepo{run: t.run}
}
