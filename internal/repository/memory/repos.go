package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
)

type runner func(fn func(st *state) error) error

type facilityRepo struct {
	run runner
}

func (r *facilityRepo) Get(ctx context.Context, id int64) (*domain.Facility, error) {
	const op = "memory.FacilityRepo.Get"

	var out *domain.Facility
	err := r.run(func(st *state) error {
		f, ok := st.facilities[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = &f
		return nil
	})

	return out, err
}

type courtRepo struct {
	run runner
}

func (r *courtRepo) Get(ctx context.Context, id int64, window *domain.Period) (*domain.Court, error) {
	const op = "memory.CourtRepo.Get"

	var out *domain.Court
	err := r.run(func(st *state) error {
		c, ok := st.courts[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		c.Periods = nil
		for _, p := range st.periods {
			if p.CourtID != id {
				continue
			}
			if window != nil && !p.Period.Intersects(*window) {
				continue
			}
			c.Periods = append(c.Periods, p)
		}
		sort.Slice(c.Periods, func(i, j int) bool {
			return c.Periods[i].Period.From.Before(c.Periods[j].Period.From)
		})
		out = &c
		return nil
	})

	return out, err
}

func (r *courtRepo) BumpVersion(ctx context.Context, id, expected int64) error {
	const op = "memory.CourtRepo.BumpVersion"

	return r.run(func(st *state) error {
		c, ok := st.courts[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if c.Version != expected {
			return fmt.Errorf("%s:%w", op, repository.ErrVersionMismatch)
		}
		c.Version++
		st.courts[id] = c
		return nil
	})
}

func (r *courtRepo) AddPeriod(ctx context.Context, p *domain.CourtPeriod) error {
	const op = "memory.CourtRepo.AddPeriod"

	return r.run(func(st *state) error {
		for _, existing := range st.periods {
			if existing.CourtID == p.CourtID && existing.Period.Intersects(p.Period) {
				return fmt.Errorf("%s:%w", op, repository.ErrConflict)
			}
		}
		st.nextPeriodID++
		p.ID = st.nextPeriodID
		st.periods = append(st.periods, *p)
		return nil
	})
}

func (r *courtRepo) RemovePeriod(ctx context.Context, courtID, periodID int64) error {
	const op = "memory.CourtRepo.RemovePeriod"

	return r.run(func(st *state) error {
		n := len(st.periods)
		st.periods = slices.DeleteFunc(st.periods, func(p domain.CourtPeriod) bool {
			return p.ID == periodID && p.CourtID == courtID && p.Kind == domain.PeriodInactive
		})
		if len(st.periods) == n {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return nil
	})
}

func (r *courtRepo) RemoveOrderPeriod(ctx context.Context, orderID uuid.UUID) error {
	return r.run(func(st *state) error {
		st.periods = slices.DeleteFunc(st.periods, func(p domain.CourtPeriod) bool {
			return p.OrderID != nil && *p.OrderID == orderID
		})
		return nil
	})
}

type orderRepo struct {
	run runner
}

func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	const op = "memory.OrderRepo.Create"

	return r.run(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		if o.PaymentIntentID != "" && intentBound(st, o.PaymentIntentID, o.ID) {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		st.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r *orderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "memory.OrderRepo.Get"

	var out *domain.Order
	err := r.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		cp := copyOrder(o)
		out = &cp
		return nil
	})

	return out, err
}

func (r *orderRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	const op = "memory.OrderRepo.GetByPaymentIntent"

	var out *domain.Order
	err := r.run(func(st *state) error {
		for _, o := range st.orders {
			if intentID != "" && o.PaymentIntentID == intentID {
				cp := copyOrder(o)
				out = &cp
				return nil
			}
		}
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	})

	return out, err
}

func (r *orderRepo) Update(ctx context.Context, o *domain.Order, expected int64) error {
	const op = "memory.OrderRepo.Update"

	return r.run(func(st *state) error {
		cur, ok := st.orders[o.ID]
		if !ok || cur.Version != expected {
			return fmt.Errorf("%s:%w", op, repository.ErrVersionMismatch)
		}
		if o.PaymentIntentID != "" && intentBound(st, o.PaymentIntentID, o.ID) {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		o.Version = expected + 1
		st.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r *orderRepo) DeletePending(ctx context.Context, id uuid.UUID, expected int64) error {
	const op = "memory.OrderRepo.DeletePending"

	return r.run(func(st *state) error {
		cur, ok := st.orders[id]
		if !ok || cur.Version != expected || cur.State != domain.OrderPending {
			return fmt.Errorf("%s:%w", op, repository.ErrVersionMismatch)
		}
		delete(st.orders, id)
		st.periods = slices.DeleteFunc(st.periods, func(p domain.CourtPeriod) bool {
			return p.OrderID != nil && *p.OrderID == id
		})
		return nil
	})
}

func (r *orderRepo) filter(match func(o domain.Order) bool, less func(a, b domain.Order) bool) ([]domain.Order, error) {
	var out []domain.Order
	err := r.run(func(st *state) error {
		for _, o := range st.orders {
			if match(o) {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, err
}

func page(orders []domain.Order, limit, offset int) []domain.Order {
	if offset >= len(orders) {
		return nil
	}
	orders = orders[offset:]
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}

func (r *orderRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	out, err := r.filter(
		func(o domain.Order) bool { return o.Expired(now) },
		func(a, b domain.Order) bool { return a.PendingExpiresAt.Before(b.PendingExpiresAt) },
	)
	return page(out, limit, 0), err
}

func (r *orderRepo) ListEnded(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	out, err := r.filter(
		func(o domain.Order) bool { return o.State == domain.OrderNotPlay && o.Period.To.Before(now) },
		func(a, b domain.Order) bool { return a.Period.To.Before(b.Period.To) },
	)
	return page(out, limit, 0), err
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	out, err := r.filter(
		func(o domain.Order) bool { return o.UserID == userID },
		func(a, b domain.Order) bool { return a.Period.From.After(b.Period.From) },
	)
	return page(out, limit, offset), err
}

func (r *orderRepo) CountByState(ctx context.Context, s domain.OrderState) (int64, error) {
	var n int64
	err := r.run(func(st *state) error {
		for _, o := range st.orders {
			if o.State == s {
				n++
			}
		}
		return nil
	})
	return n, err
}

func intentBound(st *state, intentID string, self uuid.UUID) bool {
	for id, o := range st.orders {
		if id != self && o.PaymentIntentID == intentID {
			return true
		}
	}
	return false
}
