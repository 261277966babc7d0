package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
)

type CourtRepo struct {
	db DB
}

// Get loads the court and the reservation-set entries that intersect window.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: court identifier.
//   - window: optional period filter; nil loads every entry.
//
// Returns:
//   - *domain.Court: the court with its periods ordered by start.
//   - error: repository.ErrNotFound if the court does not exist.
func (r *CourtRepo) Get(ctx context.Context, id int64, window *domain.Period) (*domain.Court, error) {
	const op = "postgres.CourtRepo.Get"

	var c domain.Court
	err := r.db.QueryRow(ctx,
		`SELECT id, facility_id, name, state, price_per_hour, currency, version
       	 FROM courts WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.FacilityID, &c.Name, &c.State, &c.PricePerHour, &c.Currency, &c.Version)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	sql := `SELECT id, court_id, kind, order_id, starts_at, ends_at, reason
       	 FROM court_periods WHERE court_id = $1`
	args := []any{id}
	if window != nil {
		sql += ` AND starts_at < $3 AND ends_at > $2`
		args = append(args, window.From, window.To)
	}
	sql += ` ORDER BY starts_at`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var p domain.CourtPeriod
		if err := rows.Scan(
			&p.ID, &p.CourtID, &p.Kind, &p.OrderID,
			&p.Period.From, &p.Period.To, &p.Reason,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		c.Periods = append(c.Periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &c, nil
}

// BumpVersion is the compare-and-swap that serialises writers of one
// court's reservation set.
func (r *CourtRepo) BumpVersion(ctx context.Context, id, expected int64) error {
	const op = "postgres.CourtRepo.BumpVersion"

	tag, err := r.db.Exec(ctx,
		`UPDATE courts SET version = version + 1
      	 WHERE id = $1 AND version = $2`,
		id, expected,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrVersionMismatch)
	}

	return nil
}

// AddPeriod appends p to the court's reservation set. An overlapping entry
// violates the exclusion constraint and yields repository.ErrConflict.
func (r *CourtRepo) AddPeriod(ctx context.Context, p *domain.CourtPeriod) error {
	const op = "postgres.CourtRepo.AddPeriod"

	if err := r.db.QueryRow(ctx,
		`INSERT INTO court_periods(court_id, kind, order_id, starts_at, ends_at, reason)
       	 VALUES ($1, $2, $3, $4, $5, $6)
     	 RETURNING id`,
		p.CourtID, p.Kind, p.OrderID, p.Period.From, p.Period.To, p.Reason,
	).Scan(&p.ID); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CourtRepo) RemovePeriod(ctx context.Context, courtID, periodID int64) error {
	const op = "postgres.CourtRepo.RemovePeriod"

	tag, err := r.db.Exec(ctx,
		`DELETE FROM court_periods
      	 WHERE id = $1 AND court_id = $2 AND kind = 'inactive'`,
		periodID, courtID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// RemoveOrderPeriod releases the interval held by an order. Releasing an
// already released order is a no-op.
func (r *CourtRepo) RemoveOrderPeriod(ctx context.Context, orderID uuid.UUID) error {
	const op = "postgres.CourtRepo.RemoveOrderPeriod"

	if _, err := r.db.Exec(ctx,
		`DELETE FROM court_periods WHERE order_id = $1`,
		orderID,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
