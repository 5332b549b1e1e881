package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/service/payment"
)

// EnvPrefix префикс переменных окружения (RESTAURANT_HTTP_ADDR и т.д.).
const EnvPrefix = "RESTAURANT"

const (
	// StorageDriverMemory хранит заказы, брони и outbox в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит их в PostgreSQL.
	StorageDriverPostgres = "postgres"

	// CartStoreMemory держит корзины в памяти процесса.
	CartStoreMemory = "memory"
	// CartStoreRedis держит корзины в Redis с TTL.
	CartStoreRedis = "redis"
)

// Config описывает настройки запуска приложения. Значения из DefaultConfig
// переопределяются переменными окружения с префиксом RESTAURANT.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR"`
	GRPCAddr    string `envconfig:"GRPC_ADDR"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogFormat   string `envconfig:"LOG_FORMAT"`

	StorageDriver       string `envconfig:"STORAGE_DRIVER"`
	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE"`

	CartStore     string        `envconfig:"CART_STORE"`
	RedisURL      string        `envconfig:"REDIS_URL"`
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB"`
	CartTTL       time.Duration `envconfig:"CART_TTL"`

	KafkaBrokers      string `envconfig:"KAFKA_BROKERS"`
	KafkaClientID     string `envconfig:"KAFKA_CLIENT_ID"`
	NotificationGroup string `envconfig:"NOTIFICATION_GROUP"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY"`

	IdempotencyCleanupInterval  time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL"`
	IdempotencyCleanupBatchSize int           `envconfig:"IDEMPOTENCY_CLEANUP_BATCH_SIZE"`

	MenuFile         string        `envconfig:"MENU_FILE"`
	City             string        `envconfig:"CITY"`
	ShippingFee      string        `envconfig:"SHIPPING_FEE"`
	PlacementDelay   time.Duration `envconfig:"PLACEMENT_DELAY"`
	PlacementFailure string        `envconfig:"PLACEMENT_FAILURE"`

	ReservationDestination string `envconfig:"RESERVATION_DESTINATION"`
	ReservationTimezone    string `envconfig:"RESERVATION_TIMEZONE"`

	WorkflowTTL   time.Duration `envconfig:"WORKFLOW_TTL"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL"`

	TracingEnabled     bool    `envconfig:"TRACING_ENABLED"`
	TracingSampleRatio float64 `envconfig:"TRACING_SAMPLE_RATIO"`
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		LogLevel:    "info",
		LogFormat:   "text",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		CartStore: CartStoreMemory,
		CartTTL:   24 * time.Hour,

		KafkaClientID:     "restaurant-service",
		NotificationGroup: "restaurant-notifications",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		City:             "Lima",
		ShippingFee:      "5.00",
		PlacementDelay:   payment.DefaultDelay,
		PlacementFailure: string(payment.FailureNone),

		ReservationDestination: "34624432245",
		ReservationTimezone:    "America/Lima",

		WorkflowTTL:   2 * time.Hour,
		SweepInterval: 5 * time.Minute,

		TracingSampleRatio: 1,
	}
}

// LoadConfig читает необязательные .env-файлы и переменные окружения поверх
// DefaultConfig. Отсутствующий .env не считается ошибкой.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек до старта компонентов.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires RESTAURANT_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.CartStore {
	case CartStoreMemory:
	case CartStoreRedis:
		if c.RedisURL == "" && c.RedisAddr == "" {
			errs = append(errs, errors.New("redis cart store requires RESTAURANT_REDIS_URL or RESTAURANT_REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cart store %q", c.CartStore))
	}

	if _, err := c.shippingFee(); err != nil {
		errs = append(errs, err)
	}
	if _, err := payment.ParseFailureMode(c.PlacementFailure); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.ReservationTimezone); err != nil {
		errs = append(errs, fmt.Errorf("reservation timezone: %w", err))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c Config) shippingFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.ShippingFee))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid shipping fee %q: %w", c.ShippingFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("shipping fee must not be negative: %s", c.ShippingFee)
	}
	return fee.Round(2), nil
}

func (c Config) kafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ConfigureLogger применяет уровень и формат логов к стандартному логгеру logrus.
func ConfigureLogger(cfg Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
