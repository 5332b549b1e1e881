package checkout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

const tracerName = "github.com/vladislavdragonenkov/restaurant/internal/service/checkout"

// place вызывает сервис размещения заказа. Временные ошибки повторяются
// с экспоненциальной задержкой, остальные возвращаются сразу.
func (s *Service) place(ctx context.Context, order domain.CheckoutOrder) (result domain.PlacementResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout.place_order")
	span.SetAttributes(
		attribute.String("checkout.id", order.ID),
		attribute.String("checkout.payment_method", string(order.PaymentMethod)),
		attribute.String("checkout.total", order.Total.StringFixed(2)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("placement.reference", result.Reference))
		}
		span.End()
	}()

	return s.placeWithRetry(ctx, order)
}

func (s *Service) placeWithRetry(ctx context.Context, order domain.CheckoutOrder) (domain.PlacementResult, error) {
	cfg := s.cfg.Retry.normalized()
	delay := cfg.InitialDelay

	for attempt := 1; ; attempt++ {
		started := time.Now()
		result, err := s.placement.PlaceOrder(ctx, order)
		if s.metrics != nil {
			s.metrics.RecordPlacementDuration(time.Since(started))
		}
		if err == nil {
			if attempt > 1 {
				s.logger.WithFields(log.Fields{
					"checkout_id": order.ID,
					"attempt":     attempt,
				}).Info("order placement succeeded after retry")
			}
			return result, nil
		}

		if !domain.IsTemporaryPaymentError(err) || attempt >= cfg.MaxAttempts || ctx.Err() != nil {
			return result, err
		}

		s.logger.WithError(err).WithFields(log.Fields{
			"checkout_id": order.ID,
			"attempt":     attempt,
			"delay":       delay,
		}).Warn("order placement failed, retrying")
		if s.metrics != nil {
			s.metrics.RecordPlacementRetry()
		}

		if err := sleepContext(ctx, delay); err != nil {
			return domain.PlacementResult{}, err
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
