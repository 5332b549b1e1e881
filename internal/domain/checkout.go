package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod способ оплаты заказа. Выбран ровно один.
type PaymentMethod string

const (
	// PaymentMethodCash наличными курьеру.
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodCardTerminal картой через терминал курьера.
	PaymentMethodCardTerminal PaymentMethod = "card_terminal"
	// PaymentMethodOnlineCard онлайн-оплата картой (по умолчанию).
	PaymentMethodOnlineCard PaymentMethod = "online_card"
	// PaymentMethodWalletQR оплата кошельком по QR-коду.
	PaymentMethodWalletQR PaymentMethod = "wallet_qr"
)

// DefaultPaymentMethod выбирается при открытии формы.
const DefaultPaymentMethod = PaymentMethodOnlineCard

// Valid проверяет, что способ оплаты из поддерживаемого списка.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCardTerminal, PaymentMethodOnlineCard, PaymentMethodWalletQR:
		return true
	default:
		return false
	}
}

// PaymentMethods возвращает все способы оплаты в порядке отображения.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCardTerminal,
		PaymentMethodCash,
		PaymentMethodOnlineCard,
		PaymentMethodWalletQR,
	}
}

// CheckoutStatus описывает состояние экрана оформления.
type CheckoutStatus string

const (
	// CheckoutStatusEmpty корзина пуста, отправка недоступна.
	CheckoutStatusEmpty CheckoutStatus = "empty"
	// CheckoutStatusEditing пользователь заполняет форму.
	CheckoutStatusEditing CheckoutStatus = "editing"
	// CheckoutStatusSubmitting ожидаем ответ сервиса размещения заказа.
	CheckoutStatusSubmitting CheckoutStatus = "submitting"
	// CheckoutStatusCompleted заказ принят, корзина очищена.
	CheckoutStatusCompleted CheckoutStatus = "completed"
	// CheckoutStatusFailed размещение не удалось; можно отправить повторно.
	CheckoutStatusFailed CheckoutStatus = "failed"
)

// CardDetails собираются только для online_card и никуда не передаются.
type CardDetails struct {
	Number string
	Expiry string
	CVC    string
}

// CheckoutForm поля экрана оформления заказа.
type CheckoutForm struct {
	Address       string
	City          string
	Phone         string
	Notes         string
	PaymentMethod PaymentMethod
	Card          *CardDetails
}

// NewCheckoutForm возвращает форму с фиксированным городом и способом оплаты по умолчанию.
func NewCheckoutForm(city string) CheckoutForm {
	return CheckoutForm{
		City:          city,
		PaymentMethod: DefaultPaymentMethod,
	}
}

// SelectPaymentMethod переключает способ оплаты. Данные карты сбрасываются,
// если выбран способ, отличный от online_card.
func (f *CheckoutForm) SelectPaymentMethod(m PaymentMethod) error {
	if !m.Valid() {
		return ErrPaymentMethodInvalid
	}
	f.PaymentMethod = m
	if m != PaymentMethodOnlineCard {
		f.Card = nil
	}
	return nil
}

// SetCard сохраняет данные карты, если выбран online_card.
func (f *CheckoutForm) SetCard(card CardDetails) error {
	if f.PaymentMethod != PaymentMethodOnlineCard {
		return ErrCardDetailsNotAccepted
	}
	f.Card = &card
	return nil
}

// Validate проверяет обязательные поля перед отправкой.
func (f *CheckoutForm) Validate() []error {
	var errs []error

	if strings.TrimSpace(f.Address) == "" {
		errs = append(errs, ErrAddressRequired)
	}
	if strings.TrimSpace(f.Phone) == "" {
		errs = append(errs, ErrPhoneRequired)
	}
	if !f.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}

	return errs
}

// CheckoutOrder снимок заказа на момент отправки.
type CheckoutOrder struct {
	ID              string
	SessionID       string
	Lines           []OrderLine
	Subtotal        decimal.Decimal
	ShippingFee     decimal.Decimal
	Total           decimal.Decimal
	DeliveryAddress string
	City            string
	Phone           string
	Notes           string
	PaymentMethod   PaymentMethod
	PlacedAt        time.Time
}

// NewCheckoutOrder собирает заказ из снимка корзины и формы.
// Данные карты в заказ не попадают.
func NewCheckoutOrder(id, sessionID string, cart Cart, form CheckoutForm, shippingFee decimal.Decimal, now time.Time) CheckoutOrder {
	snapshot := cart.Snapshot()
	subtotal := snapshot.Subtotal()
	return CheckoutOrder{
		ID:              id,
		SessionID:       sessionID,
		Lines:           snapshot.Lines,
		Subtotal:        subtotal,
		ShippingFee:     shippingFee,
		Total:           subtotal.Add(shippingFee),
		DeliveryAddress: strings.TrimSpace(form.Address),
		City:            form.City,
		Phone:           strings.TrimSpace(form.Phone),
		Notes:           strings.TrimSpace(form.Notes),
		PaymentMethod:   form.PaymentMethod,
		PlacedAt:        now,
	}
}

// PlacementResult ответ сервиса размещения заказа.
type PlacementResult struct {
	// Reference внешний номер заказа, может быть пустым.
	Reference string
	Status    PlacementStatus
}

// PlacementStatus описывает результат размещения заказа.
type PlacementStatus string

const (
	// PlacementStatusAccepted заказ принят.
	PlacementStatusAccepted PlacementStatus = "accepted"
	// PlacementStatusDeclined заказ отклонён.
	PlacementStatusDeclined PlacementStatus = "declined"
)
