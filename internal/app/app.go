package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/config"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/events"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/obs"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/postgres"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/redis"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/memory"
	postgresrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/postgres"
	redisrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/redis"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/orders"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/query"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/reservation"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/sweeper"
	mq "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/transport/amqp"
	httpgin "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/transport/http/gin"
)

type publisher interface {
	domain.Publisher
	Close() error
}

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
	consumer   *mq.Consumer
	publisher  publisher
	rdb        *goredis.Client
	closeDB    func()
	shutdown   func(context.Context) error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, closeDB: func() {}}

	shutdown, err := obs.InitTracer(ctx, obs.Config{
		ServiceName: cfg.OTEL.ServiceName,
		Environment: cfg.OTEL.Environment,
		Endpoint:    cfg.OTEL.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.shutdown = shutdown

	// Initialize dependencies
	store, err := a.initStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.rdb, err = redis.New(ctx, redis.Config{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		ClientName: cfg.OTEL.ServiceName,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	gateway, sandbox, err := initGateway(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.publisher, err = initPublisher(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	// Initialize repositories
	cache := redisrepo.New(a.rdb)
	pubsub := redisrepo.NewCourtsPubSub(a.rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(a.rdb, "reserve", cfg.Booking.ReserveRateLimit, cfg.Booking.ReserveRateWindow)
	idempotencyStore := redisrepo.NewIdempotencyStore(a.rdb, cfg.Booking.IdempotencyTTL)

	// Initialize services
	services := service.NewServices(service.Deps{
		Store:     store,
		Gateway:   gateway,
		Cache:     cache,
		PubSub:    pubsub,
		Limiter:   limiter,
		Locks:     idempotencyStore,
		Publisher: a.publisher,
		Log:       logger,
	}, service.Config{
		Reservation: reservation.Config{
			PendingTTL: cfg.Booking.PendingTTL,
			MaxRetries: cfg.Booking.ReserveMaxRetries,
		},
		Orders: orders.Config{
			Policy: domain.RefundPolicy{
				Percent: cfg.Booking.RefundPercent,
				Cutoff:  cfg.Booking.CancelCutoff,
			},
			PendingGateTTL: cfg.Booking.PendingGateTTL,
			MaxRetries:     cfg.Booking.ReserveMaxRetries,
		},
		Query: query.Config{AvailabilityTTL: cfg.Booking.AvailabilityTTL},
	})

	a.sweeper = sweeper.New(services.Orders, cfg.Booking.SweepInterval, logger)

	if cfg.AMQP.URL != "" {
		a.consumer, err = mq.NewConsumer(cfg.AMQP.URL, cfg.AMQP.PaymentExchange, cfg.AMQP.PaymentQueue, services.Orders, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize payment consumer: %w", err)
		}
	}

	// Initialize Gin router
	router := httpgin.NewRouter(httpgin.Deps{
		Services: services,
		Auth:     httpgin.NewAuthenticator(cfg.JWTSecret),
		Idem:     idempotencyStore,
		PubSub:   pubsub,
		Sandbox:  sandbox,
		Logger:   logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context) (repository.Store, error) {
	switch a.cfg.StorageDriver {
	case "memory":
		store := memory.NewStore()
		if a.cfg.SeedFile != "" {
			if err := store.LoadSeedFile(a.cfg.SeedFile); err != nil {
				return nil, fmt.Errorf("failed to load seed file: %w", err)
			}
		}
		a.logger.Warn("using in-memory store")
		return store, nil
	default:
		pgxPool, err := postgres.New(ctx, postgres.Config{
			DSN:      a.cfg.Postgres.DSN(),
			MaxConns: a.cfg.Postgres.MaxConns,
			AppName:  a.cfg.OTEL.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.closeDB = pgxPool.Close

		store := postgresrepo.NewStore(pgxPool)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return store, nil
	}
}

func initGateway(cfg *config.Config) (payment.Gateway, *payment.Sandbox, error) {
	if cfg.PaymentDriver == "sandbox" {
		sb := payment.NewSandbox()
		return sb, sb, nil
	}

	g, err := payment.NewOmise(payment.OmiseConfig{
		PublicKey:  cfg.Omise.PublicKey,
		SecretKey:  cfg.Omise.SecretKey,
		SourceType: cfg.Omise.SourceType,
		ReturnURI:  cfg.Omise.ReturnURI,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize omise: %w", err)
	}

	return payment.NewRetrying(g, payment.RetryConfig{MaxRetries: cfg.Omise.MaxRetries}), nil, nil
}

func initPublisher(cfg *config.Config, logger *slog.Logger) (publisher, error) {
	switch cfg.EventsDriver {
	case "amqp":
		p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.EventsExchange)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize amqp publisher: %w", err)
		}
		return p, nil
	case "kafka":
		return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix), nil
	default:
		return events.NewLogPublisher(logger), nil
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Expire pending orders and mark played ones
	g.Go(func() error {
		return a.sweeper.Run(gCtx)
	})

	if a.consumer != nil {
		g.Go(func() error {
			a.logger.Info("payment consumer started", "queue", a.cfg.AMQP.PaymentQueue)
			return a.consumer.Run(gCtx)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close publisher", "error", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.closeDB()

	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", "error", err)
		}
	}
}
