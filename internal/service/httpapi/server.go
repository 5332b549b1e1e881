package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/service/cart"
	"github.com/vladislavdragonenkov/restaurant/internal/service/checkout"
	"github.com/vladislavdragonenkov/restaurant/internal/service/reservation"
)

// SessionHeader передаёт идентификатор сессии корзины.
const SessionHeader = "X-Session-ID"

type sessionKey struct{}

// Deps сервисы, которые обслуживает API.
type Deps struct {
	Catalog      domain.Catalog
	Carts        *cart.Service
	Checkouts    *checkout.Service
	Reservations *reservation.Service
	// Idempotency включает поддержку Idempotency-Key для отправки заказа. Может быть nil.
	Idempotency domain.IdempotencyRepository
	Logger      *log.Entry
}

// Server HTTP API ресторана.
type Server struct {
	catalog      domain.Catalog
	carts        *cart.Service
	checkouts    *checkout.Service
	reservations *reservation.Service
	idem         domain.IdempotencyRepository
	validate     *validator.Validate
	logger       *log.Entry
}

// NewServer создаёт API.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Server{
		catalog:      deps.Catalog,
		carts:        deps.Carts,
		checkouts:    deps.Checkouts,
		reservations: deps.Reservations,
		idem:         deps.Idempotency,
		validate:     newValidator(),
		logger:       logger,
	}
}

// Routes возвращает chi-роутер без трассировки (удобно для тестов).
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/menu", s.listMenu)
		r.Get("/menu/{id}", s.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(s.session)

			r.Get("/cart", s.getCart)
			r.Post("/cart/items", s.addCartItem)
			r.Patch("/cart/items/{id}", s.updateCartItem)
			r.Delete("/cart/items/{id}", s.removeCartItem)
			r.Delete("/cart", s.clearCart)

			r.Post("/checkouts", s.startCheckout)
			r.Route("/checkouts/{id}", func(r chi.Router) {
				r.Get("/", s.getCheckout)
				r.Put("/form", s.updateCheckoutForm)
				r.Put("/payment-method", s.selectPaymentMethod)
				r.Post("/submit", s.submitCheckout)
				r.Get("/timeline", s.checkoutTimeline)
			})
		})

		r.Get("/reservations/slots", s.listSlots)
		r.Post("/reservations", s.startReservation)
		r.Route("/reservations/{id}", func(r chi.Router) {
			r.Get("/", s.getReservation)
			r.Put("/details", s.updateReservationDetails)
			r.Put("/contact", s.updateReservationContact)
			r.Get("/timeline", s.reservationTimeline)
			r.Post("/{action}", s.applyReservationAction)
		})
	})

	return r
}

// Handler возвращает роутер, обёрнутый в OpenTelemetry.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Routes(), "restaurant-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// session берёт X-Session-ID из запроса или выдаёт новый и возвращает его в ответе.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		if len(sessionID) > 128 {
			s.writeError(w, r, newAPIError(http.StatusBadRequest, CodeInvalidArgument, "session id is too long"))
			return
		}
		w.Header().Set(SessionHeader, sessionID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sessionID)))
	})
}

func sessionFrom(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionKey{}).(string)
	return sessionID
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		entry := s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("request completed")
			return
		}
		entry.Debug("request completed")
	})
}
