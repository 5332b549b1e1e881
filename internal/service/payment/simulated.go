package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// DefaultDelay задержка имитации обработки заказа.
const DefaultDelay = 2 * time.Second

// FailureMode задаёт исход имитации размещения заказа.
type FailureMode string

const (
	// FailureNone заказ всегда принимается.
	FailureNone FailureMode = "none"
	// FailureDeclined заказ всегда отклоняется.
	FailureDeclined FailureMode = "declined"
	// FailureTemporary провайдер всегда недоступен.
	FailureTemporary FailureMode = "temporary"
)

// ParseFailureMode разбирает значение из конфигурации. Пустая строка означает FailureNone.
func ParseFailureMode(raw string) (FailureMode, error) {
	switch mode := FailureMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "", FailureNone:
		return FailureNone, nil
	case FailureDeclined, FailureTemporary:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown payment failure mode %q", raw)
	}
}

// SimulatedService имитирует внешний сервис: ждёт Delay и принимает заказ.
// Реальной интеграции с платёжным шлюзом нет.
type SimulatedService struct {
	delay   time.Duration
	failure FailureMode
	logger  *log.Entry
}

// NewSimulatedService создаёт имитацию. delay<0 заменяется на 0.
func NewSimulatedService(delay time.Duration, failure FailureMode, logger *log.Entry) *SimulatedService {
	if delay < 0 {
		delay = 0
	}
	if failure == "" {
		failure = FailureNone
	}
	if logger == nil {
		logger = log.WithField("component", "simulated-placement")
	}
	return &SimulatedService{delay: delay, failure: failure, logger: logger}
}

// PlaceOrder блокируется на delay или до отмены ctx.
func (s *SimulatedService) PlaceOrder(ctx context.Context, order domain.CheckoutOrder) (domain.PlacementResult, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return domain.PlacementResult{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return domain.PlacementResult{}, err
	}

	logger := s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"total":    order.Total.StringFixed(2),
		"method":   order.PaymentMethod,
	})

	switch s.failure {
	case FailureDeclined:
		logger.Info("simulated placement declined")
		return domain.PlacementResult{Status: domain.PlacementStatusDeclined}, domain.ErrPaymentDeclined
	case FailureTemporary:
		logger.Warn("simulated placement temporarily unavailable")
		return domain.PlacementResult{}, domain.ErrPaymentTemporary
	}

	reference := "RS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	logger.WithField("reference", reference).Info("simulated placement accepted")
	return domain.PlacementResult{Reference: reference, Status: domain.PlacementStatusAccepted}, nil
}

var _ domain.OrderPlacementService = (*SimulatedService)(nil)
