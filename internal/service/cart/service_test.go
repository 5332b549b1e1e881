package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/metrics"
	"github.com/vladislavdragonenkov/restaurant/internal/service/catalog"
	"github.com/vladislavdragonenkov/restaurant/internal/storage/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	m := metrics.NewWorkflowMetricsWithRegisterer(prometheus.NewRegistry())
	return NewService(catalog.DefaultMenu(), memory.NewCartRepository(), WithMetrics(m))
}

func TestService_AddItemMergesAndTotals(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s-1", "1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "s-1", "1", 1)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "s-1", "3", 0)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 2)
	require.Equal(t, 2, cart.Lines[0].Quantity)
	require.Equal(t, 1, cart.Lines[1].Quantity)
	require.True(t, cart.Subtotal().Equal(decimal.RequireFromString("78.30")), cart.Subtotal().String())
	require.Equal(t, 3, cart.Count())

	stored, err := svc.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, cart, stored)
}

func TestService_AddUnknownProduct(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddItem(context.Background(), "s-1", "404", 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	cart, err := svc.Get(context.Background(), "s-1")
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())
}

func TestService_UpdateQuantityFloor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s-1", "2", 1)
	require.NoError(t, err)

	cart, changed, err := svc.UpdateQuantity(ctx, "s-1", "2", -1)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, cart.Lines[0].Quantity)

	cart, changed, err = svc.UpdateQuantity(ctx, "s-1", "2", 2)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 3, cart.Lines[0].Quantity)

	_, changed, err = svc.UpdateQuantity(ctx, "s-1", "missing", 1)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestService_RemoveKeepsOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := svc.AddItem(ctx, "s-1", id, 1)
		require.NoError(t, err)
	}
	_, _, err := svc.UpdateQuantity(ctx, "s-1", "3", 1)
	require.NoError(t, err)

	cart, changed, err := svc.RemoveItem(ctx, "s-1", "2")
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, cart.Lines, 2)
	require.Equal(t, "1", cart.Lines[0].ProductID)
	require.Equal(t, 1, cart.Lines[0].Quantity)
	require.Equal(t, "3", cart.Lines[1].ProductID)
	require.Equal(t, 2, cart.Lines[1].Quantity)

	_, changed, err = svc.RemoveItem(ctx, "s-1", "2")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestService_ClearAndSessionsAreIsolated(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s-1", "1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "s-2", "4", 1)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "s-1"))

	first, err := svc.Get(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, first.IsEmpty())
	require.True(t, first.Subtotal().IsZero())
	require.Zero(t, first.Count())

	second, err := svc.Get(ctx, "s-2")
	require.NoError(t, err)
	require.Equal(t, 1, second.Count())

	require.NoError(t, svc.Clear(ctx, "s-1"))
}

func TestService_SessionRequired(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddItem(context.Background(), "  ", "1", 1)
	require.ErrorIs(t, err, domain.ErrSessionRequired)
	_, err = svc.Get(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrSessionRequired)
}

func TestService_ConcurrentAddsAreSerialized(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = svc.AddItem(ctx, "s-1", "1", 1)
		}()
	}
	wg.Wait()

	cart, err := svc.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	require.Equal(t, workers, cart.Lines[0].Quantity)
	require.Zero(t, svc.locks.size())
}

func TestService_SaveErrorIsWrapped(t *testing.T) {
	repoErr := errors.New("redis down")
	svc := NewService(catalog.DefaultMenu(), failingRepo{err: repoErr})

	_, err := svc.AddItem(context.Background(), "s-1", "1", 1)
	require.ErrorIs(t, err, repoErr)
}

func TestStore_SnapshotAndSettle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s-1", "5", 3)
	require.NoError(t, err)

	store := svc.Session("s-1")
	require.Equal(t, "s-1", store.SessionID())

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	snapshot.Lines[0].Quantity = 99

	again, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, again.Lines[0].Quantity)

	require.NoError(t, store.Settle(ctx, again.Lines))
	cleared, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, cleared.IsEmpty())
}

func TestService_AddItemOverLimitLeavesCartUntouched(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s-1", "1", domain.MaxLineQuantity)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "s-1", "1", 1)
	require.ErrorIs(t, err, domain.ErrLineQtyTooLarge)

	cart, err := svc.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	require.Equal(t, domain.MaxLineQuantity, cart.Lines[0].Quantity)
	require.True(t, cart.Subtotal().IsPositive())
}

func TestStore_SettleKeepsUnorderedLines(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s-1", "1", 2)
	require.NoError(t, err)
	store := svc.Session("s-1")
	ordered, err := store.Snapshot(ctx)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "s-1", "4", 1)
	require.NoError(t, err)

	require.NoError(t, store.Settle(ctx, ordered.Lines))

	left, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, left.Lines, 1)
	require.Equal(t, "4", left.Lines[0].ProductID)
}

type failingRepo struct {
	err error
}

func (f failingRepo) Load(context.Context, string) (domain.Cart, error) { return domain.Cart{}, nil }
func (f failingRepo) Save(context.Context, string, domain.Cart) error   { return f.err }
func (f failingRepo) Delete(context.Context, string) error              { return f.err }
