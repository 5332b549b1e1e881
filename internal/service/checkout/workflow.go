package checkout

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// CartSource корзина сессии, из которой оформляется заказ.
type CartSource interface {
	SessionID() string
	Snapshot(ctx context.Context) (domain.Cart, error)
	// Settle снимает с корзины позиции оформленного заказа.
	Settle(ctx context.Context, ordered []domain.OrderLine) error
}

// Workflow один экземпляр оформления заказа.
type Workflow struct {
	mu sync.Mutex

	id       string
	cart     CartSource
	form     domain.CheckoutForm
	status   domain.CheckoutStatus
	failure  string
	attempts int
	order    *domain.CheckoutOrder
	ref      string
}

func newWorkflow(id string, cart CartSource, city string) *Workflow {
	return &Workflow{
		id:     id,
		cart:   cart,
		form:   domain.NewCheckoutForm(city),
		status: domain.CheckoutStatusEditing,
	}
}

// Busy сообщает, что заказ сейчас отправляется.
func (w *Workflow) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status == domain.CheckoutStatusSubmitting
}

// syncWithCart переводит workflow в empty/editing по состоянию корзины.
// Вызывается под w.mu.
func (w *Workflow) syncWithCart(cart domain.Cart) {
	switch w.status {
	case domain.CheckoutStatusSubmitting, domain.CheckoutStatusCompleted:
		return
	}
	if cart.IsEmpty() {
		w.status = domain.CheckoutStatusEmpty
		return
	}
	if w.status == domain.CheckoutStatusEmpty {
		w.status = domain.CheckoutStatusEditing
	}
}

// editable проверяет, что форму можно менять. Вызывается под w.mu.
func (w *Workflow) editable() error {
	switch w.status {
	case domain.CheckoutStatusSubmitting:
		return domain.ErrSubmitInFlight
	case domain.CheckoutStatusCompleted:
		return domain.ErrCheckoutCompleted
	}
	if w.status == domain.CheckoutStatusFailed {
		w.status = domain.CheckoutStatusEditing
		w.failure = ""
	}
	return nil
}

// Snapshot состояние экрана оформления для отображения.
type Snapshot struct {
	ID          string
	SessionID   string
	Status      domain.CheckoutStatus
	Form        domain.CheckoutForm
	Lines       []domain.OrderLine
	Count       int
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
	// CanSubmit ложно, если корзина пуста, форма не заполнена или заказ уже отправляется.
	CanSubmit bool
	// Missing невыполненные условия отправки.
	Missing       []error
	FailureReason string
	Attempts      int
	OrderID       string
	Reference     string
}

// snapshot собирает представление. Вызывается под w.mu.
func (w *Workflow) snapshot(cart domain.Cart, fee decimal.Decimal) Snapshot {
	snap := Snapshot{
		ID:            w.id,
		SessionID:     w.cart.SessionID(),
		Status:        w.status,
		Form:          copyForm(w.form),
		ShippingFee:   fee,
		FailureReason: w.failure,
		Attempts:      w.attempts,
		Reference:     w.ref,
	}

	if w.order != nil {
		snap.OrderID = w.order.ID
		snap.Lines = append([]domain.OrderLine(nil), w.order.Lines...)
		snap.Subtotal = w.order.Subtotal
		snap.ShippingFee = w.order.ShippingFee
		snap.Total = w.order.Total
		for _, line := range snap.Lines {
			snap.Count += line.Quantity
		}
		return snap
	}

	current := cart.Snapshot()
	snap.Lines = current.Lines
	snap.Count = current.Count()
	snap.Subtotal = current.Subtotal()
	snap.Total = snap.Subtotal.Add(fee)

	if current.IsEmpty() {
		snap.Missing = append(snap.Missing, domain.ErrCartEmpty)
	}
	snap.Missing = append(snap.Missing, w.form.Validate()...)
	snap.CanSubmit = len(snap.Missing) == 0 &&
		(w.status == domain.CheckoutStatusEditing || w.status == domain.CheckoutStatusFailed)

	return snap
}

func copyForm(form domain.CheckoutForm) domain.CheckoutForm {
	if form.Card != nil {
		card := *form.Card
		form.Card = &card
	}
	return form
}
