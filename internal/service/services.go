package service

import (
	"log/slog"
	"time"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	redisrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/redis"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/orders"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/query"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/reservation"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/validate"
)

type Services struct {
	Reservation *reservation.Service
	Orders      *orders.Service
	Query       *query.Service
}

type Config struct {
	Reservation reservation.Config
	Orders      orders.Config
	Query       query.Config
}

type Deps struct {
	Store     repository.Store
	Gateway   payment.Gateway
	Cache     *redisrepo.Cache
	PubSub    *redisrepo.CourtsPubSub
	Limiter   *redisrepo.SlidingWindowLimiter
	Locks     *redisrepo.IdempotencyStore
	Publisher domain.Publisher
	Log       *slog.Logger
	Clock     func() time.Time
}

// Rules builds the validation registry of every service operation.
func Rules() *validate.Registry {
	r := validate.NewRegistry()
	reservation.RegisterRules(r)
	orders.RegisterRules(r)
	return r
}

// NewServices wires the services over shared infrastructure. Nil redis
// components disable the features built on them.
func NewServices(d Deps, cfg Config) *Services {
	rules := Rules()

	rd := reservation.Deps{
		Store:     d.Store,
		Gateway:   d.Gateway,
		Publisher: d.Publisher,
		Rules:     rules,
		Log:       d.Log,
		Clock:     d.Clock,
	}
	od := orders.Deps{
		Store:     d.Store,
		Gateway:   d.Gateway,
		LockKey:   redisrepo.KeyOrderLock,
		Publisher: d.Publisher,
		Rules:     rules,
		Log:       d.Log,
		Clock:     d.Clock,
	}

	if d.Cache != nil {
		rd.Cache = d.Cache
		od.Cache = d.Cache
	}
	if d.PubSub != nil {
		rd.Notifier = d.PubSub
		od.Notifier = d.PubSub
	}
	if d.Limiter != nil {
		rd.Limiter = d.Limiter
	}
	if d.Locks != nil {
		od.Locker = d.Locks
	}

	return &Services{
		Reservation: reservation.New(rd, cfg.Reservation),
		Orders:      orders.New(od, cfg.Orders),
		Query:       query.New(d.Store, d.Cache, cfg.Query),
	}
}
