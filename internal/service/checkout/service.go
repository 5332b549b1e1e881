package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/restaurant/internal/metrics"
	"github.com/vladislavdragonenkov/restaurant/internal/service/workflow"
)

// Причины неудачной отправки для метрик.
const (
	ReasonDeclined      = "declined"
	ReasonTemporary     = "temporary"
	ReasonIndeterminate = "indeterminate"
	ReasonCanceled      = "canceled"
	ReasonError         = "error"
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

// WithOrderRepository сохраняет принятые заказы.
func WithOrderRepository(repo domain.OrderRepository) Option {
	return func(s *Service) {
		s.orders = repo
	}
}

// WithJournal подключает outbox и timeline.
func WithJournal(journal *workflow.Journal) Option {
	return func(s *Service) {
		s.journal = journal
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// FormInput редактируемые поля формы. Город не редактируется.
type FormInput struct {
	Address string
	Phone   string
	Notes   string
}

// Service управляет экземплярами checkout workflow.
type Service struct {
	cfg       Config
	placement domain.OrderPlacementService
	orders    domain.OrderRepository
	journal   *workflow.Journal
	registry  *workflow.Registry[*Workflow]
	metrics   *metrics.WorkflowMetrics
	logger    *log.Entry
	now       func() time.Time
}

// NewService создаёт сервис оформления заказов.
func NewService(cfg Config, placement domain.OrderPlacementService, opts ...Option) *Service {
	if strings.TrimSpace(cfg.City) == "" {
		cfg.City = DefaultCity
	}
	s := &Service{
		cfg:       cfg,
		placement: placement,
		logger:    log.WithField("component", "checkout-service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = workflow.NewRegistry[*Workflow](s.now)
	return s
}

// ShippingFee возвращает фиксированную стоимость доставки.
func (s *Service) ShippingFee() decimal.Decimal {
	return s.cfg.ShippingFee
}

// Start открывает оформление заказа для корзины сессии.
func (s *Service) Start(ctx context.Context, cart CartSource) (Snapshot, error) {
	if cart == nil || strings.TrimSpace(cart.SessionID()) == "" {
		return Snapshot{}, domain.ErrSessionRequired
	}

	current, err := cart.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load cart: %w", err)
	}

	w := newWorkflow(uuid.NewString(), cart, s.cfg.City)
	w.syncWithCart(current)
	s.registry.Put(w.id, w)
	s.updateActive()

	s.journal.Record(w.id, domain.TimelineCheckoutStarted, "")
	s.logger.WithFields(log.Fields{
		"checkout_id": w.id,
		"session_id":  cart.SessionID(),
	}).Debug("checkout started")

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot(current, s.cfg.ShippingFee), nil
}

// Get возвращает состояние оформления с актуальной корзиной.
func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	return s.withWorkflow(ctx, id, func(*Workflow) error { return nil })
}

// UpdateForm обновляет адрес, телефон и заметки.
func (s *Service) UpdateForm(ctx context.Context, id string, input FormInput) (Snapshot, error) {
	return s.withWorkflow(ctx, id, func(w *Workflow) error {
		if err := w.editable(); err != nil {
			return err
		}
		w.form.Address = input.Address
		w.form.Phone = input.Phone
		w.form.Notes = input.Notes
		return nil
	})
}

// SelectPaymentMethod переключает способ оплаты и, если card != nil, сохраняет
// данные карты. Либо применяются оба изменения, либо ни одного.
func (s *Service) SelectPaymentMethod(ctx context.Context, id string, method domain.PaymentMethod, card *domain.CardDetails) (Snapshot, error) {
	return s.withWorkflow(ctx, id, func(w *Workflow) error {
		if err := w.editable(); err != nil {
			return err
		}
		// Изменения применяются к копии: отклонённый запрос не трогает форму.
		next := w.form
		if err := next.SelectPaymentMethod(method); err != nil {
			return err
		}
		if card != nil {
			if err := next.SetCard(*card); err != nil {
				return err
			}
		}
		w.form = next
		return nil
	})
}

// SetCard сохраняет данные карты для online_card. Данные никуда не передаются.
func (s *Service) SetCard(ctx context.Context, id string, card domain.CardDetails) (Snapshot, error) {
	return s.withWorkflow(ctx, id, func(w *Workflow) error {
		if err := w.editable(); err != nil {
			return err
		}
		return w.form.SetCard(card)
	})
}

// Submit отправляет заказ. Невыполненные условия отправки возвращаются ошибкой,
// отказ сервиса размещения переводит workflow в failed без ошибки.
func (s *Service) Submit(ctx context.Context, id string) (Snapshot, error) {
	w, ok := s.registry.Get(id)
	if !ok {
		return Snapshot{}, domain.ErrCheckoutNotFound
	}

	order, err := s.beginSubmit(ctx, w)
	if err != nil {
		return Snapshot{}, err
	}

	logger := s.logger.WithFields(log.Fields{
		"checkout_id": w.id,
		"session_id":  order.SessionID,
	})
	logger.WithField("total", order.Total.StringFixed(2)).Info("submitting order")
	s.journal.Record(w.id, domain.TimelineCheckoutSubmitted, "")
	if s.metrics != nil {
		s.metrics.RecordCheckoutSubmitted()
	}

	result, err := s.place(ctx, order)
	if err == nil && result.Status == domain.PlacementStatusDeclined {
		err = domain.ErrPaymentDeclined
	}
	if err != nil {
		return s.failSubmit(ctx, w, order, err, logger), nil
	}
	return s.completeSubmit(ctx, w, order, result, logger), nil
}

// beginSubmit проверяет условия отправки и переводит workflow в submitting.
func (s *Service) beginSubmit(ctx context.Context, w *Workflow) (domain.CheckoutOrder, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.status {
	case domain.CheckoutStatusSubmitting:
		return domain.CheckoutOrder{}, domain.ErrSubmitInFlight
	case domain.CheckoutStatusCompleted:
		return domain.CheckoutOrder{}, domain.ErrCheckoutCompleted
	}

	current, err := w.cart.Snapshot(ctx)
	if err != nil {
		return domain.CheckoutOrder{}, fmt.Errorf("load cart: %w", err)
	}
	w.syncWithCart(current)
	if current.IsEmpty() {
		return domain.CheckoutOrder{}, domain.ErrCartEmpty
	}
	if errs := w.form.Validate(); len(errs) > 0 {
		return domain.CheckoutOrder{}, errors.Join(errs...)
	}

	w.status = domain.CheckoutStatusSubmitting
	w.failure = ""
	w.attempts++
	return domain.NewCheckoutOrder(w.id, w.cart.SessionID(), current, w.form, s.cfg.ShippingFee, s.now()), nil
}

func (s *Service) failSubmit(ctx context.Context, w *Workflow, order domain.CheckoutOrder, cause error, logger *log.Entry) Snapshot {
	reason := failureReason(cause)
	logger.WithError(cause).WithField("reason", reason).Warn("order placement failed")

	if s.metrics != nil {
		s.metrics.RecordCheckoutFailed(reason)
	}
	s.journal.Emit(domain.AggregateOrder, order.ID, domain.EventOrderPlacementFailed,
		kafka.NewOrderFailedEvent(order, cause.Error()))
	s.journal.Record(w.id, domain.TimelineCheckoutFailed, cause.Error())

	// Корзина не меняется, поэтому загружаем её без контекста запроса.
	current, err := w.cart.Snapshot(context.WithoutCancel(ctx))
	if err != nil {
		logger.WithError(err).Warn("reload cart after failed placement")
		current = domain.Cart{Lines: order.Lines}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = domain.CheckoutStatusFailed
	w.failure = cause.Error()
	return w.snapshot(current, s.cfg.ShippingFee)
}

func (s *Service) completeSubmit(ctx context.Context, w *Workflow, order domain.CheckoutOrder, result domain.PlacementResult, logger *log.Entry) Snapshot {
	bg := context.WithoutCancel(ctx)

	if s.orders != nil {
		if err := s.orders.Create(order); err != nil {
			logger.WithError(err).Error("persist accepted order failed")
		}
	}
	// Позиции, добавленные во время отправки, в заказ не попали и остаются в корзине.
	if err := w.cart.Settle(bg, order.Lines); err != nil {
		logger.WithError(err).Error("settle cart after accepted order failed")
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutCompleted()
	}
	s.journal.Emit(domain.AggregateOrder, order.ID, domain.EventOrderPlaced,
		kafka.NewOrderPlacedEvent(order, result.Reference))
	s.journal.Record(w.id, domain.TimelineCheckoutCompleted, result.Reference)
	logger.WithField("reference", result.Reference).Info("order placed")

	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = domain.CheckoutStatusCompleted
	w.order = &order
	w.ref = result.Reference
	return w.snapshot(domain.Cart{}, s.cfg.ShippingFee)
}

// SessionOf возвращает сессию, которой принадлежит оформление.
func (s *Service) SessionOf(id string) (string, error) {
	w, ok := s.registry.Get(id)
	if !ok {
		return "", domain.ErrCheckoutNotFound
	}
	return w.cart.SessionID(), nil
}

// Timeline возвращает события workflow.
func (s *Service) Timeline(id string) ([]domain.TimelineEvent, error) {
	events, err := s.journal.Timeline(id)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	if len(events) == 0 {
		if _, ok := s.registry.Get(id); !ok {
			return nil, domain.ErrCheckoutNotFound
		}
	}
	return events, nil
}

// Sweep выгружает экземпляры, к которым не обращались дольше olderThan.
func (s *Service) Sweep(olderThan time.Duration) int {
	removed := s.registry.Sweep(olderThan)
	s.updateActive()
	return removed
}

func (s *Service) withWorkflow(ctx context.Context, id string, fn func(*Workflow) error) (Snapshot, error) {
	w, ok := s.registry.Get(id)
	if !ok {
		return Snapshot{}, domain.ErrCheckoutNotFound
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := fn(w); err != nil {
		return Snapshot{}, err
	}

	var current domain.Cart
	if w.status != domain.CheckoutStatusCompleted {
		var err error
		if current, err = w.cart.Snapshot(ctx); err != nil {
			return Snapshot{}, fmt.Errorf("load cart: %w", err)
		}
		w.syncWithCart(current)
	}
	return w.snapshot(current, s.cfg.ShippingFee), nil
}

func (s *Service) updateActive() {
	if s.metrics != nil {
		s.metrics.SetActiveWorkflows(metrics.KindCheckout, s.registry.Len())
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPaymentDeclined):
		return ReasonDeclined
	case errors.Is(err, domain.ErrPaymentTemporary):
		return ReasonTemporary
	case errors.Is(err, domain.ErrPaymentIndeterminate):
		return ReasonIndeterminate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonError
	}
}
