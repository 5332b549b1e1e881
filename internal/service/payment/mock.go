package payment

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// MockService конфигурируемая заглушка OrderPlacementService для тестов.
// Errors выдаются по одной на вызов, затем используется Err.
type MockService struct {
	mu sync.Mutex

	Result domain.PlacementResult
	Err    error
	Errors []error

	Calls     int
	LastOrder domain.CheckoutOrder
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		Result: domain.PlacementResult{Reference: "MOCK-1", Status: domain.PlacementStatusAccepted},
	}
}

// PlaceOrder возвращает заранее настроенный результат и считает вызовы.
func (m *MockService) PlaceOrder(ctx context.Context, order domain.CheckoutOrder) (domain.PlacementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.LastOrder = order

	if err := ctx.Err(); err != nil {
		return domain.PlacementResult{}, err
	}
	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return domain.PlacementResult{}, err
		}
		return m.Result, nil
	}
	if m.Err != nil {
		return domain.PlacementResult{}, m.Err
	}
	return m.Result, nil
}

// CallCount возвращает число вызовов PlaceOrder.
func (m *MockService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

var _ domain.OrderPlacementService = (*MockService)(nil)
