package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

type FacilityRepository interface {
	Get(ctx context.Context, id int64) (*domain.Facility, error)
}

type CourtRepository interface {
	// Get loads a court together with the periods that intersect window.
	// A nil window loads every period; an empty window loads none.
	Get(ctx context.Context, id int64, window *domain.Period) (*domain.Court, error)
	// BumpVersion increments the court version if it still equals expected.
	BumpVersion(ctx context.Context, id, expected int64) error
	AddPeriod(ctx context.Context, p *domain.CourtPeriod) error
	RemovePeriod(ctx context.Context, courtID, periodID int64) error
	RemoveOrderPeriod(ctx context.Context, orderID uuid.UUID) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error)
	// Update persists o if its stored version equals expected and advances
	// o.Version on success.
	Update(ctx context.Context, o *domain.Order, expected int64) error
	// DeletePending removes a pending order at the expected version.
	DeletePending(ctx context.Context, id uuid.UUID, expected int64) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
	ListEnded(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error)
	CountByState(ctx context.Context, state domain.OrderState) (int64, error)
}

// Repositories is the set of repositories bound to one connection or
// transaction.
type Repositories interface {
	Facilities() FacilityRepository
	Courts() CourtRepository
	Orders() OrderRepository
}

// Store hands out repositories and runs serializable transactions.
type Store interface {
	Repositories
	Transact(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
