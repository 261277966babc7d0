package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Kafka    KafkaConfig
	Omise    OmiseConfig
	OTEL     OTELConfig
	Booking  BookingConfig

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// StorageDriver is postgres or memory. The memory store is loaded from
	// SeedFile.
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	SeedFile      string `envconfig:"SEED_FILE"`
	// PaymentDriver is omise or sandbox.
	PaymentDriver string `envconfig:"PAYMENT_DRIVER" default:"omise"`
	// EventsDriver is amqp, kafka or log.
	EventsDriver string `envconfig:"EVENTS_DRIVER" default:"log"`
	PolicyFile   string `envconfig:"POLICY_FILE"`
}

type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"localhost"`
	Port int    `envconfig:"SERVER_PORT" default:"8080"`
}

type PostgresConfig struct {
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Name     string `envconfig:"POSTGRES_DB"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type AMQPConfig struct {
	URL string `envconfig:"RABBIT_URL"`
	// EventsExchange receives order and rating events.
	EventsExchange  string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payment.exchange"`
	PaymentQueue    string `envconfig:"BOOKING_PAYMENT_QUEUE" default:"booking.payment.q"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS"`
	TopicPrefix string   `envconfig:"KAFKA_TOPIC_PREFIX" default:"courtbook"`
}

type OmiseConfig struct {
	PublicKey  string `envconfig:"OMISE_PUBLIC_KEY"`
	SecretKey  string `envconfig:"OMISE_SECRET_KEY"`
	SourceType string `envconfig:"OMISE_SOURCE_TYPE" default:"promptpay"`
	ReturnURI  string `envconfig:"OMISE_RETURN_URI"`
	MaxRetries uint64 `envconfig:"PAYMENT_MAX_RETRIES" default:"3"`
}

type OTELConfig struct {
	Endpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"courtbook"`
	Environment string `envconfig:"APP_ENV" default:"dev"`
}

type BookingConfig struct {
	PendingTTL        time.Duration `envconfig:"PENDING_TTL" default:"15m"`
	PendingGateTTL    time.Duration `envconfig:"PENDING_GATE_TTL" default:"10s"`
	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"30s"`
	ReserveMaxRetries int           `envconfig:"RESERVE_MAX_RETRIES" default:"3"`
	ReserveRateLimit  int           `envconfig:"RESERVE_RATE_LIMIT" default:"20"`
	ReserveRateWindow time.Duration `envconfig:"RESERVE_RATE_WINDOW" default:"1m"`
	AvailabilityTTL   time.Duration `envconfig:"AVAILABILITY_TTL" default:"30s"`
	IdempotencyTTL    time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	RefundPercent int64         `envconfig:"REFUND_PERCENT" default:"80"`
	CancelCutoff  time.Duration `envconfig:"CANCEL_CUTOFF" default:"24h"`
}

// Policy is the booking policy file. Zero fields keep the env values.
type Policy struct {
	RefundPercent int64         `yaml:"refund_percent"`
	CancelCutoff  time.Duration `yaml:"cancel_cutoff"`
	PendingTTL    time.Duration `yaml:"pending_ttl"`
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if cfg.PolicyFile != "" {
		if err := cfg.applyPolicyFile(cfg.PolicyFile); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case "postgres":
		if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.Name == "" {
			return fmt.Errorf("POSTGRES_USER, POSTGRES_PASSWORD and POSTGRES_DB are required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.PaymentDriver {
	case "omise":
		if c.Omise.PublicKey == "" || c.Omise.SecretKey == "" {
			return fmt.Errorf("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY are required")
		}
	case "sandbox":
	default:
		return fmt.Errorf("unknown PAYMENT_DRIVER %q", c.PaymentDriver)
	}

	switch c.EventsDriver {
	case "amqp":
		if c.AMQP.URL == "" {
			return fmt.Errorf("RABBIT_URL is required")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required")
		}
	case "log":
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", c.EventsDriver)
	}

	if c.Booking.RefundPercent < 0 || c.Booking.RefundPercent > 100 {
		return fmt.Errorf("REFUND_PERCENT must be within [0,100]")
	}

	return nil
}

func (c *Config) applyPolicyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if p.RefundPercent < 0 || p.RefundPercent > 100 {
		return fmt.Errorf("%s: refund_percent must be within [0,100]", path)
	}

	if p.RefundPercent > 0 {
		c.Booking.RefundPercent = p.RefundPercent
	}
	if p.CancelCutoff > 0 {
		c.Booking.CancelCutoff = p.CancelCutoff
	}
	if p.PendingTTL > 0 {
		c.Booking.PendingTTL = p.PendingTTL
	}

	return nil
}
