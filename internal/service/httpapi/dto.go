package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/service/checkout"
	"github.com/vladislavdragonenkov/restaurant/internal/service/reservation"
)

// Запросы.

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	// Quantity 0 (не передано) трактуется как 1. Верхняя граница совпадает с domain.MaxLineQuantity.
	Quantity int `json:"quantity" validate:"omitempty,min=1,max=99"`
}

type updateQuantityRequest struct {
	Delta int `json:"delta" validate:"min=-100,max=100"`
}

type checkoutFormRequest struct {
	Address string `json:"address" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=32"`
	Notes   string `json:"notes" validate:"max=500"`
}

type cardRequest struct {
	Number string `json:"number" validate:"required,min=12,max=19,numeric"`
	Expiry string `json:"expiry" validate:"required,len=5"`
	CVC    string `json:"cvc" validate:"required,min=3,max=4,numeric"`
}

type paymentMethodRequest struct {
	Method string       `json:"method" validate:"required,oneof=cash card_terminal online_card wallet_qr"`
	Card   *cardRequest `json:"card,omitempty"`
}

type reservationDetailsRequest struct {
	PartySize *int    `json:"party_size,omitempty" validate:"omitempty,min=1,max=10"`
	ShiftDays int     `json:"shift_days" validate:"min=-366,max=366"`
	TimeSlot  *string `json:"time_slot,omitempty"`
}

type reservationContactRequest struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"omitempty,email,max=200"`
	Phone string `json:"phone" validate:"max=32"`
	Notes string `json:"notes" validate:"max=500"`
}

// Ответы.

type productView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	ImageRef    string `json:"image_ref,omitempty"`
	Description string `json:"description,omitempty"`
	Tag         string `json:"tag,omitempty"`
}

func toProductView(p domain.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price.StringFixed(2),
		ImageRef:    p.ImageRef,
		Description: p.Description,
		Tag:         p.Tag,
	}
}

type lineView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
	ImageRef  string `json:"image_ref,omitempty"`
}

func toLineViews(lines []domain.OrderLine) []lineView {
	views := make([]lineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, lineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			LineTotal: l.Total().StringFixed(2),
			ImageRef:  l.ImageRef,
		})
	}
	return views
}

type cartView struct {
	SessionID   string     `json:"session_id"`
	Lines       []lineView `json:"lines"`
	Count       int        `json:"count"`
	Subtotal    string     `json:"subtotal"`
	ShippingFee string     `json:"shipping_fee"`
	Total       string     `json:"total"`
	Changed     *bool      `json:"changed,omitempty"`
}

// toCartView считает итог с оценкой доставки. Пустая корзина доставку не несёт.
func toCartView(sessionID string, cart domain.Cart, shippingFee decimal.Decimal) cartView {
	if cart.IsEmpty() {
		shippingFee = decimal.Zero
	}
	subtotal := cart.Subtotal()
	return cartView{
		SessionID:   sessionID,
		Lines:       toLineViews(cart.Lines),
		Count:       cart.Count(),
		Subtotal:    subtotal.StringFixed(2),
		ShippingFee: shippingFee.StringFixed(2),
		Total:       subtotal.Add(shippingFee).StringFixed(2),
	}
}

type cardView struct {
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

type formView struct {
	Address       string    `json:"address"`
	City          string    `json:"city"`
	Phone         string    `json:"phone"`
	Notes         string    `json:"notes"`
	PaymentMethod string    `json:"payment_method"`
	Card          *cardView `json:"card,omitempty"`
}

type checkoutView struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Form           formView   `json:"form"`
	PaymentMethods []string   `json:"payment_methods"`
	Lines          []lineView `json:"lines"`
	Count          int        `json:"count"`
	Subtotal       string     `json:"subtotal"`
	ShippingFee    string     `json:"shipping_fee"`
	Total          string     `json:"total"`
	CanSubmit      bool       `json:"can_submit"`
	Missing        []string   `json:"missing,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	Attempts       int        `json:"attempts"`
	OrderID        string     `json:"order_id,omitempty"`
	Reference      string     `json:"reference,omitempty"`
}

func toCheckoutView(s checkout.Snapshot) checkoutView {
	form := formView{
		Address:       s.Form.Address,
		City:          s.Form.City,
		Phone:         s.Form.Phone,
		Notes:         s.Form.Notes,
		PaymentMethod: string(s.Form.PaymentMethod),
	}
	if card := s.Form.Card; card != nil {
		form.Card = &cardView{Last4: last4(card.Number), Expiry: card.Expiry}
	}

	methods := make([]string, 0, len(domain.PaymentMethods()))
	for _, m := range domain.PaymentMethods() {
		methods = append(methods, string(m))
	}

	missing := make([]string, 0, len(s.Missing))
	for _, err := range s.Missing {
		missing = append(missing, err.Error())
	}

	return checkoutView{
		ID:             s.ID,
		Status:         string(s.Status),
		Form:           form,
		PaymentMethods: methods,
		Lines:          toLineViews(s.Lines),
		Count:          s.Count,
		Subtotal:       s.Subtotal.StringFixed(2),
		ShippingFee:    s.ShippingFee.StringFixed(2),
		Total:          s.Total.StringFixed(2),
		CanSubmit:      s.CanSubmit,
		Missing:        missing,
		FailureReason:  s.FailureReason,
		Attempts:       s.Attempts,
		OrderID:        s.OrderID,
		Reference:      s.Reference,
	}
}

func last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

type contactView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type reservationView struct {
	ID              string      `json:"id"`
	Step            string      `json:"step"`
	Date            string      `json:"date"`
	PartySize       int         `json:"party_size"`
	TimeSlot        string      `json:"time_slot,omitempty"`
	Contact         contactView `json:"contact"`
	Notes           string      `json:"notes"`
	CanContinue     bool        `json:"can_continue"`
	CanConfirm      bool        `json:"can_confirm"`
	CanShiftBack    bool        `json:"can_shift_back"`
	ConfirmedAt     *time.Time  `json:"confirmed_at,omitempty"`
	Summary         string      `json:"summary,omitempty"`
	NotificationURL string      `json:"notification_url,omitempty"`
}

func toReservationView(s reservation.Snapshot) reservationView {
	req := s.Reservation.Request
	view := reservationView{
		ID:        req.ID,
		Step:      string(s.Reservation.Step),
		Date:      req.Date.Format(time.DateOnly),
		PartySize: req.PartySize,
		TimeSlot:  req.TimeSlot,
		Contact: contactView{
			Name:  req.Contact.Name,
			Email: req.Contact.Email,
			Phone: req.Contact.Phone,
		},
		Notes:           req.Notes,
		CanContinue:     s.CanContinue,
		CanConfirm:      s.CanConfirm,
		CanShiftBack:    s.CanShiftBack,
		Summary:         s.Summary,
		NotificationURL: s.NotificationURL,
	}
	if !s.Reservation.ConfirmedAt.IsZero() {
		confirmed := s.Reservation.ConfirmedAt.UTC()
		view.ConfirmedAt = &confirmed
	}
	return view
}

type timelineEventView struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toTimelineView(events []domain.TimelineEvent) []timelineEventView {
	views := make([]timelineEventView, 0, len(events))
	for _, e := range events {
		views = append(views, timelineEventView{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	return views
}
