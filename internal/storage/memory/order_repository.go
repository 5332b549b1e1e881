package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// orderRepositoryInMemory хранит размещённые заказы в памяти.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.CheckoutOrder
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.CheckoutOrder),
	}
}

// Create сохраняет заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.CheckoutOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderAlreadyExists
	}
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Get(id string) (domain.CheckoutOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.CheckoutOrder{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListBySession возвращает заказы сессии, новые первыми; limit <= 0 — без ограничения.
func (r *orderRepositoryInMemory) ListBySession(sessionID string, limit int) ([]domain.CheckoutOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.CheckoutOrder, 0)
	for _, order := range r.items {
		if order.SessionID != sessionID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PlacedAt.Equal(result[j].PlacedAt) {
			return result[i].PlacedAt.After(result[j].PlacedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func cloneOrder(src domain.CheckoutOrder) domain.CheckoutOrder {
	dst := src
	dst.Lines = append([]domain.OrderLine(nil), src.Lines...)
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
