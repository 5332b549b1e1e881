package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/service/checkout"
	"github.com/vladislavdragonenkov/restaurant/internal/service/reservation"
)

// Меню.

func (s *Server) listMenu(w http.ResponseWriter, _ *http.Request) {
	products := s.catalog.List()
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	writeData(w, http.StatusOK, views)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toProductView(p))
}

// Корзина.

func (s *Server) cartView(sessionID string, c domain.Cart) cartView {
	return toCartView(sessionID, c, s.checkouts.ShippingFee())
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r.Context())
	c, err := s.carts.Get(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, s.cartView(sessionID, c))
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sessionID := sessionFrom(r.Context())
	c, err := s.carts.AddItem(r.Context(), sessionID, req.ProductID, req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, s.cartView(sessionID, c))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sessionID := sessionFrom(r.Context())
	c, changed, err := s.carts.UpdateQuantity(r.Context(), sessionID, chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view := s.cartView(sessionID, c)
	view.Changed = &changed
	writeData(w, http.StatusOK, view)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r.Context())
	c, changed, err := s.carts.RemoveItem(r.Context(), sessionID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view := s.cartView(sessionID, c)
	view.Changed = &changed
	writeData(w, http.StatusOK, view)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r.Context())
	if err := s.carts.Clear(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, s.cartView(sessionID, domain.Cart{}))
}

// Оформление заказа.

func (s *Server) startCheckout(w http.ResponseWriter, r *http.Request) {
	snap, err := s.checkouts.Start(r.Context(), s.carts.Session(sessionFrom(r.Context())))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toCheckoutView(snap))
}

// ownedCheckout возвращает id оформления, если оно принадлежит сессии запроса.
// Чужое оформление выглядит как несуществующее.
func (s *Server) ownedCheckout(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	owner, err := s.checkouts.SessionOf(id)
	if err != nil {
		return "", err
	}
	if owner != sessionFrom(r.Context()) {
		return "", domain.ErrCheckoutNotFound
	}
	return id, nil
}

func (s *Server) getCheckout(w http.ResponseWriter, r *http.Request) {
	s.checkoutAction(w, r, func(id string) (checkout.Snapshot, error) {
		return s.checkouts.Get(r.Context(), id)
	})
}

func (s *Server) updateCheckoutForm(w http.ResponseWriter, r *http.Request) {
	var req checkoutFormRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.checkoutAction(w, r, func(id string) (checkout.Snapshot, error) {
		return s.checkouts.UpdateForm(r.Context(), id, checkout.FormInput{
			Address: req.Address,
			Phone:   req.Phone,
			Notes:   req.Notes,
		})
	})
}

func (s *Server) selectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var card *domain.CardDetails
	if req.Card != nil {
		card = &domain.CardDetails{
			Number: req.Card.Number,
			Expiry: req.Card.Expiry,
			CVC:    req.Card.CVC,
		}
	}
	s.checkoutAction(w, r, func(id string) (checkout.Snapshot, error) {
		return s.checkouts.SelectPaymentMethod(r.Context(), id, domain.PaymentMethod(req.Method), card)
	})
}

func (s *Server) submitCheckout(w http.ResponseWriter, r *http.Request) {
	id, err := s.ownedCheckout(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.withIdempotency(w, r, "submit:"+id, func() response {
		snap, err := s.checkouts.Submit(r.Context(), id)
		if err != nil {
			return s.errorResponse(r, err)
		}
		return success(http.StatusOK, toCheckoutView(snap))
	})
}

func (s *Server) checkoutTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := s.ownedCheckout(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.checkouts.Timeline(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toTimelineView(events))
}

func (s *Server) checkoutAction(w http.ResponseWriter, r *http.Request, fn func(id string) (checkout.Snapshot, error)) {
	id, err := s.ownedCheckout(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := fn(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCheckoutView(snap))
}

// Бронирование.

func (s *Server) listSlots(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, domain.TimeSlots())
}

func (s *Server) startReservation(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusCreated, toReservationView(s.reservations.Start()))
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	s.reservationAction(w, r, func(id string) (reservation.Snapshot, error) {
		return s.reservations.Get(id)
	})
}

func (s *Server) updateReservationDetails(w http.ResponseWriter, r *http.Request) {
	var req reservationDetailsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reservationAction(w, r, func(id string) (reservation.Snapshot, error) {
		return s.reservations.UpdateDetails(id, reservation.DetailsInput{
			PartySize: req.PartySize,
			ShiftDays: req.ShiftDays,
			TimeSlot:  req.TimeSlot,
		})
	})
}

func (s *Server) updateReservationContact(w http.ResponseWriter, r *http.Request) {
	var req reservationContactRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reservationAction(w, r, func(id string) (reservation.Snapshot, error) {
		return s.reservations.SetContact(id, reservation.ContactInput{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
			Notes: req.Notes,
		})
	})
}

func (s *Server) applyReservationAction(w http.ResponseWriter, r *http.Request) {
	action := domain.ReservationAction(chi.URLParam(r, "action"))
	switch action {
	case domain.ReservationActionContinue, domain.ReservationActionBack, domain.ReservationActionConfirm:
	default:
		s.writeError(w, r, newAPIError(http.StatusNotFound, CodeNotFound, "unknown reservation action"))
		return
	}
	s.reservationAction(w, r, func(id string) (reservation.Snapshot, error) {
		return s.reservations.Apply(id, action)
	})
}

func (s *Server) reservationTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.reservations.Timeline(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toTimelineView(events))
}

func (s *Server) reservationAction(w http.ResponseWriter, r *http.Request, fn func(id string) (reservation.Snapshot, error)) {
	snap, err := fn(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toReservationView(snap))
}
