package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

func TestSimulatedService_Accepts(t *testing.T) {
	svc := NewSimulatedService(5*time.Millisecond, FailureNone, nil)

	start := time.Now()
	result, err := svc.PlaceOrder(context.Background(), domain.CheckoutOrder{ID: "co-1"})
	require.NoError(t, err)
	require.Equal(t, domain.PlacementStatusAccepted, result.Status)
	require.True(t, strings.HasPrefix(result.Reference, "RS-"))
	require.Len(t, result.Reference, 13)
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestSimulatedService_FailureModes(t *testing.T) {
	declined := NewSimulatedService(0, FailureDeclined, nil)
	result, err := declined.PlaceOrder(context.Background(), domain.CheckoutOrder{ID: "co-2"})
	require.ErrorIs(t, err, domain.ErrPaymentDeclined)
	require.Equal(t, domain.PlacementStatusDeclined, result.Status)

	temporary := NewSimulatedService(0, FailureTemporary, nil)
	_, err = temporary.PlaceOrder(context.Background(), domain.CheckoutOrder{ID: "co-3"})
	require.True(t, domain.IsTemporaryPaymentError(err))
}

func TestSimulatedService_HonorsCancellation(t *testing.T) {
	svc := NewSimulatedService(time.Minute, FailureNone, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.PlaceOrder(ctx, domain.CheckoutOrder{ID: "co-4"})
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Less(t, time.Since(start), time.Second)
}

func TestParseFailureMode(t *testing.T) {
	cases := map[string]FailureMode{
		"":           FailureNone,
		"none":       FailureNone,
		"DECLINED":   FailureDeclined,
		" temporary": FailureTemporary,
	}
	for raw, want := range cases {
		got, err := ParseFailureMode(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := ParseFailureMode("sometimes")
	require.Error(t, err)
}
