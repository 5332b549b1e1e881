package cart

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/metrics"
)

// Операции корзины для логов и метрик.
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
	OpClear  = "clear"
	OpSettle = "settle"
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает запись метрик.
func WithMetrics(m *metrics.WorkflowMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service управляет корзинами сессий. Мутации одной сессии выполняются
// последовательно; разные сессии не блокируют друг друга.
type Service struct {
	catalog domain.Catalog
	repo    domain.CartRepository
	locks   *sessionLocks
	logger  *log.Entry
	metrics *metrics.WorkflowMetrics
}

// NewService создаёт сервис корзины.
func NewService(catalog domain.Catalog, repo domain.CartRepository, opts ...Option) *Service {
	s := &Service{
		catalog: catalog,
		repo:    repo,
		locks:   newSessionLocks(),
		logger:  log.WithField("component", "cart-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get возвращает текущую корзину сессии.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	sessionID, err := normalizeSession(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.repo.Load(ctx, sessionID)
}

// AddItem добавляет товар из меню или увеличивает количество существующей позиции.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string, qty int) (domain.Cart, error) {
	product, err := s.catalog.Get(productID)
	if err != nil {
		s.recordError(OpAdd)
		return domain.Cart{}, err
	}

	var addErr error
	cart, _, err := s.mutate(ctx, sessionID, OpAdd, func(c *domain.Cart) bool {
		addErr = c.AddItem(product, qty)
		return addErr == nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if addErr != nil {
		s.recordError(OpAdd)
		return domain.Cart{}, addErr
	}
	return cart, nil
}

// UpdateQuantity меняет количество позиции на delta. Возвращает false, если
// корзина не изменилась (нет позиции или количество ушло бы ниже 1).
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, productID string, delta int) (domain.Cart, bool, error) {
	return s.mutate(ctx, sessionID, OpUpdate, func(c *domain.Cart) bool {
		return c.UpdateQuantity(productID, delta)
	})
}

// RemoveItem удаляет позицию. Отсутствующая позиция — no-op.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (domain.Cart, bool, error) {
	return s.mutate(ctx, sessionID, OpRemove, func(c *domain.Cart) bool {
		return c.RemoveItem(productID)
	})
}

// Clear очищает корзину сессии.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	_, _, err := s.mutate(ctx, sessionID, OpClear, func(c *domain.Cart) bool {
		if c.IsEmpty() {
			return false
		}
		c.Clear()
		return true
	})
	return err
}

// Settle снимает с корзины оформленные позиции. Товары, добавленные после
// снимка заказа, остаются в корзине.
func (s *Service) Settle(ctx context.Context, sessionID string, ordered []domain.OrderLine) (domain.Cart, error) {
	cart, _, err := s.mutate(ctx, sessionID, OpSettle, func(c *domain.Cart) bool {
		return c.Subtract(ordered)
	})
	return cart, err
}

// Session возвращает handle корзины конкретной сессии.
func (s *Service) Session(sessionID string) *Store {
	return &Store{service: s, sessionID: sessionID}
}

func (s *Service) mutate(ctx context.Context, sessionID, op string, fn func(*domain.Cart) bool) (domain.Cart, bool, error) {
	sessionID, err := normalizeSession(sessionID)
	if err != nil {
		s.recordError(op)
		return domain.Cart{}, false, err
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		s.recordError(op)
		return domain.Cart{}, false, fmt.Errorf("load cart: %w", err)
	}

	changed := fn(&cart)
	if changed {
		if err := s.repo.Save(ctx, sessionID, cart); err != nil {
			s.recordError(op)
			return domain.Cart{}, false, fmt.Errorf("save cart: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordCartOperation(op, changed)
	}
	s.logger.WithFields(log.Fields{
		"session_id": sessionID,
		"operation":  op,
		"changed":    changed,
		"items":      cart.Count(),
	}).Debug("cart mutated")

	return cart.Snapshot(), changed, nil
}

func (s *Service) recordError(op string) {
	if s.metrics != nil {
		s.metrics.RecordCartError(op)
	}
}

func normalizeSession(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", domain.ErrSessionRequired
	}
	return sessionID, nil
}

// Store корзина одной сессии, передаётся в checkout workflow.
type Store struct {
	service   *Service
	sessionID string
}

// SessionID возвращает идентификатор сессии.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Snapshot возвращает независимую копию корзины.
func (s *Store) Snapshot(ctx context.Context) (domain.Cart, error) {
	cart, err := s.service.Get(ctx, s.sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart.Snapshot(), nil
}

// Settle снимает с корзины позиции оформленного заказа.
func (s *Store) Settle(ctx context.Context, ordered []domain.OrderLine) error {
	_, err := s.service.Settle(ctx, s.sessionID, ordered)
	return err
}
