package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// cartRepositoryInMemory держит корзины сессий в процессе. Корзина живёт,
// пока жив процесс; TTL не поддерживается.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewCartRepository создаёт in-memory хранилище корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{carts: make(map[string]domain.Cart)}
}

// Load возвращает копию корзины; для неизвестной сессии — пустую корзину.
func (r *cartRepositoryInMemory) Load(_ context.Context, sessionID string) (domain.Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Cart{}, domain.ErrSessionRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[sessionID]
	if !ok {
		return domain.Cart{}, nil
	}
	return cart.Snapshot(), nil
}

// Save сохраняет копию корзины. Пустая корзина удаляет запись.
func (r *cartRepositoryInMemory) Save(_ context.Context, sessionID string, cart domain.Cart) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.ErrSessionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cart.IsEmpty() {
		delete(r.carts, sessionID)
		return nil
	}
	r.carts[sessionID] = cart.Snapshot()
	return nil
}

// Delete удаляет корзину сессии; отсутствие записи не ошибка.
func (r *cartRepositoryInMemory) Delete(_ context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.ErrSessionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, sessionID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
