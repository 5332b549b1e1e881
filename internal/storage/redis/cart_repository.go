package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

const (
	defaultKeyPrefix = "resto:cart"
	defaultCartTTL   = 24 * time.Hour
	opTimeout        = 2 * time.Second
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Config описывает подключение к Redis.
type Config struct {
	URL          string
	Address      string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient создаёт клиент go-redis и проверяет соединение.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func optionsFromConfig(cfg Config) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}

	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// CartRepository хранит корзины сессий JSON-документами с TTL.
// Каждое сохранение продлевает TTL.
type CartRepository struct {
	store  cmdable
	prefix string
	ttl    time.Duration
}

// Option настраивает CartRepository.
type Option func(*CartRepository)

// WithKeyPrefix задаёт префикс ключей (по умолчанию resto:cart).
func WithKeyPrefix(prefix string) Option {
	return func(r *CartRepository) {
		if p := strings.TrimSpace(prefix); p != "" {
			r.prefix = strings.TrimSuffix(p, ":")
		}
	}
}

// WithTTL задаёт время жизни корзины.
func WithTTL(ttl time.Duration) Option {
	return func(r *CartRepository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewCartRepository создаёт репозиторий поверх клиента go-redis.
func NewCartRepository(client *redis.Client, opts ...Option) *CartRepository {
	return newCartRepository(client, opts...)
}

func newCartRepository(store cmdable, opts ...Option) *CartRepository {
	r := &CartRepository{
		store:  store,
		prefix: defaultKeyPrefix,
		ttl:    defaultCartTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key возвращает ключ корзины сессии.
func (r *CartRepository) Key(sessionID string) string {
	return r.prefix + ":" + strings.TrimSpace(sessionID)
}

// Load возвращает корзину сессии; отсутствие ключа означает пустую корзину.
func (r *CartRepository) Load(ctx context.Context, sessionID string) (domain.Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Cart{}, domain.ErrSessionRequired
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := r.store.Get(opCtx, r.Key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}

	var doc cartDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return doc.toDomain(), nil
}

// Save сохраняет корзину; пустая корзина удаляет ключ.
func (r *CartRepository) Save(ctx context.Context, sessionID string, cart domain.Cart) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.ErrSessionRequired
	}
	if cart.IsEmpty() {
		return r.Delete(ctx, sessionID)
	}

	raw, err := json.Marshal(newCartDocument(cart))
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.store.Set(opCtx, r.Key(sessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}
	return nil
}

// Delete удаляет корзину сессии.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.ErrSessionRequired
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.store.Del(opCtx, r.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis (используется health-чекером).
func (r *CartRepository) Ping(ctx context.Context) error {
	if r == nil || r.store == nil {
		return errors.New("redis cart repository is not initialized")
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.store.Ping(opCtx).Err()
}

var _ domain.CartRepository = (*CartRepository)(nil)

type cartDocument struct {
	Lines []lineDocument `json:"lines"`
}

type lineDocument struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ImageRef    string          `json:"image_ref,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{Lines: make([]lineDocument, 0, len(cart.Lines))}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, lineDocument{
			ProductID:   line.ProductID,
			Name:        line.Name,
			UnitPrice:   line.UnitPrice,
			ImageRef:    line.ImageRef,
			Description: line.Description,
			Quantity:    line.Quantity,
		})
	}
	return doc
}

func (d cartDocument) toDomain() domain.Cart {
	cart := domain.Cart{Lines: make([]domain.OrderLine, 0, len(d.Lines))}
	for _, line := range d.Lines {
		cart.Lines = append(cart.Lines, domain.OrderLine{
			ProductID:   line.ProductID,
			Name:        line.Name,
			UnitPrice:   line.UnitPrice,
			ImageRef:    line.ImageRef,
			Description: line.Description,
			Quantity:    line.Quantity,
		})
	}
	return cart
}
