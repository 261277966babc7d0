package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
)

type OrderRepo struct {
	db DB
}

const orderColumns = `id, court_id, facility_id, user_id, starts_at, ends_at,
	price, currency, payment_intent_id, state,
	rating_stars, rating_feedback, rated_at,
	version, pending_expires_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o        domain.Order
		intentID *string
		stars    *int
		feedback *string
		ratedAt  *time.Time
	)

	if err := row.Scan(
		&o.ID, &o.CourtID, &o.FacilityID, &o.UserID, &o.Period.From, &o.Period.To,
		&o.Price, &o.Currency, &intentID, &o.State,
		&stars, &feedback, &ratedAt,
		&o.Version, &o.PendingExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if intentID != nil {
		o.PaymentIntentID = *intentID
	}

	if stars != nil {
		o.Rating = &domain.Rating{
			UserID:     o.UserID,
			FacilityID: o.FacilityID,
			Stars:      *stars,
		}
		if feedback != nil {
			o.Rating.Feedback = *feedback
		}
		if ratedAt != nil {
			o.Rating.CreatedAt = *ratedAt
		}
	}

	return &o, nil
}

func (r *OrderRepo) list(ctx context.Context, op, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	const op = "postgres.OrderRepo.Create"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO orders(id, court_id, facility_id, user_id, starts_at, ends_at,
			price, currency, payment_intent_id, state, version,
			pending_expires_at, created_at, updated_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14)`,
		o.ID, o.CourtID, o.FacilityID, o.UserID, o.Period.From, o.Period.To,
		o.Price, o.Currency, o.PaymentIntentID, o.State, o.Version,
		o.PendingExpiresAt, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.Get"

	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	const op = "postgres.OrderRepo.GetByPaymentIntent"

	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`,
		intentID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

// Update writes the mutable columns of o conditioned on its version.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - o: order carrying the new state; o.Version is advanced on success.
//   - expected: version read before the mutation.
//
// Returns:
//   - error: repository.ErrVersionMismatch if another writer got there first.
//   - error: repository.ErrConflict if the payment intent is already bound.
func (r *OrderRepo) Update(ctx context.Context, o *domain.Order, expected int64) error {
	const op = "postgres.OrderRepo.Update"

	var (
		stars    *int
		feedback *string
		ratedAt  *time.Time
	)
	if o.Rating != nil {
		stars = &o.Rating.Stars
		feedback = &o.Rating.Feedback
		ratedAt = &o.Rating.CreatedAt
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE orders
         SET price = $3, payment_intent_id = NULLIF($4, ''), state = $5,
             rating_stars = $6, rating_feedback = $7, rated_at = $8,
             updated_at = $9, version = version + 1
      	 WHERE id = $1 AND version = $2`,
		o.ID, expected, o.Price, o.PaymentIntentID, o.State,
		stars, feedback, ratedAt, o.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrVersionMismatch)
	}

	o.Version = expected + 1

	return nil
}

func (r *OrderRepo) DeletePending(ctx context.Context, id uuid.UUID, expected int64) error {
	const op = "postgres.OrderRepo.DeletePending"

	tag, err := r.db.Exec(ctx,
		`DELETE FROM orders
      	 WHERE id = $1 AND version = $2 AND state = 'pending'`,
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

func (r *OrderRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.ListExpiredPending"

	return r.list(ctx, op,
		`SELECT `+orderColumns+` FROM orders
      	 WHERE state = 'pending' AND pending_expires_at <= $1
      	 ORDER BY pending_expires_at
      	 LIMIT $2`,
		now, limit,
	)
}

func (r *OrderRepo) ListEnded(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.ListEnded"

	return r.list(ctx, op,
		`SELECT `+orderColumns+` FROM orders
      	 WHERE state = 'not_play' AND ends_at < $1
      	 ORDER BY ends_at
      	 LIMIT $2`,
		now, limit,
	)
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.ListByUser"

	return r.list(ctx, op,
		`SELECT `+orderColumns+` FROM orders
      	 WHERE user_id = $1
      	 ORDER BY starts_at DESC
      	 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
}

func (r *OrderRepo) CountByState(ctx context.Context, state domain.OrderState) (int64, error) {
	const op = "postgres.OrderRepo.CountByState"

	var n int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE state = $1`,
		state,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}
