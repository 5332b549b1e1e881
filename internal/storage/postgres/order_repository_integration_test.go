package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

func sampleOrder(id, sessionID string, placedAt time.Time) domain.CheckoutOrder {
	return domain.CheckoutOrder{
		ID:        id,
		SessionID: sessionID,
		Lines: []domain.OrderLine{
			{ProductID: "1", Name: "Pollo a la Brasa", UnitPrice: decimal.RequireFromString("24.90"), Quantity: 2},
			{ProductID: "3", Name: "Alitas BBQ", UnitPrice: decimal.RequireFromString("28.50"), Quantity: 1, ImageRef: "/img/image-16.jpg"},
		},
		Subtotal:        decimal.RequireFromString("78.30"),
		ShippingFee:     decimal.RequireFromString("5.00"),
		Total:           decimal.RequireFromString("83.30"),
		DeliveryAddress: "Av. Larco 123",
		City:            "Lima",
		Phone:           "+51999999999",
		Notes:           "sin cebolla",
		PaymentMethod:   domain.PaymentMethodOnlineCard,
		PlacedAt:        placedAt,
	}
}

func TestOrderRepository_PostgresCreateGetAndList(t *testing.T) {
	store := testStore(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", "session-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", "session-1", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if !got.Total.Equal(order1.Total) || !got.Subtotal.Equal(order1.Subtotal) {
		t.Fatalf("unexpected totals: subtotal=%s total=%s", got.Subtotal, got.Total)
	}
	if got.PaymentMethod != domain.PaymentMethodOnlineCard || got.Notes != "sin cebolla" {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Lines) != 2 || got.Lines[0].ProductID != "1" || got.Lines[1].ImageRef != "/img/image-16.jpg" {
		t.Fatalf("unexpected lines: %+v", got.Lines)
	}
	if !got.PlacedAt.Equal(order1.PlacedAt) {
		t.Fatalf("placed_at mismatch: got %s want %s", got.PlacedAt, order1.PlacedAt)
	}

	listed, err := repo.ListBySession("session-1", 1)
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID || len(listed[0].Lines) != 2 {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListBySession("session-1", 0)
	if err != nil {
		t.Fatalf("list without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
}

func TestOrderRepository_PostgresDuplicateAndMissing(t *testing.T) {
	store := testStore(t)
	repo := NewOrderRepository(store)

	order := sampleOrder("order-dup", "session-dup", time.Now().UTC())
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := repo.Create(order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}
	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
