package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func testProduct(id, price string) Product {
	return Product{
		ID:    id,
		Name:  "product " + id,
		Price: decimal.RequireFromString(price),
	}
}

func TestCart_AddItemMergesSameProduct(t *testing.T) {
	var cart Cart
	p := testProduct("pollo", "24.90")

	cart.AddItem(p, 1)
	cart.AddItem(p, 2)
	cart.AddItem(p, 4)

	if len(cart.Lines) != 1 {
		t.Fatalf("expected single line, got %d", len(cart.Lines))
	}
	if cart.Lines[0].Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", cart.Lines[0].Quantity)
	}
}

func TestCart_AddItemNormalizesQuantity(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("a", "1.00"), 0)
	cart.AddItem(testProduct("b", "1.00"), -3)

	for _, line := range cart.Lines {
		if line.Quantity != 1 {
			t.Fatalf("line %s: expected quantity 1, got %d", line.ProductID, line.Quantity)
		}
	}
}

func TestCart_AddItemRespectsLineLimit(t *testing.T) {
	p := testProduct("pollo", "24.90")

	var cart Cart
	if err := cart.AddItem(p, MaxLineQuantity); err != nil {
		t.Fatalf("add up to the limit: %v", err)
	}
	if err := cart.AddItem(p, 1); !errors.Is(err, ErrLineQtyTooLarge) {
		t.Fatalf("err=%v, want ErrLineQtyTooLarge", err)
	}
	if err := cart.AddItem(p, math.MaxInt); !errors.Is(err, ErrLineQtyTooLarge) {
		t.Fatalf("err=%v, want ErrLineQtyTooLarge", err)
	}
	if line, _ := cart.Line("pollo"); line.Quantity != MaxLineQuantity {
		t.Fatalf("quantity=%d, want %d", line.Quantity, MaxLineQuantity)
	}

	var fresh Cart
	if err := fresh.AddItem(p, math.MaxInt); !errors.Is(err, ErrLineQtyTooLarge) {
		t.Fatalf("err=%v, want ErrLineQtyTooLarge", err)
	}
	if !fresh.IsEmpty() {
		t.Fatalf("rejected add must not create a line: %+v", fresh.Lines)
	}
	if errs := cart.ValidateInvariants(); len(errs) > 0 {
		t.Fatalf("invariants broken: %v", errs)
	}
	if !cart.Subtotal().IsPositive() {
		t.Fatalf("subtotal=%s must stay positive", cart.Subtotal())
	}
}

func TestCart_SubtractRemovesOnlyOrderedQuantities(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("a", "1.00"), 2)
	cart.AddItem(testProduct("b", "2.00"), 3)
	cart.AddItem(testProduct("c", "3.00"), 1)

	ordered := []OrderLine{
		NewLineFromProduct(testProduct("a", "1.00"), 2),
		NewLineFromProduct(testProduct("b", "2.00"), 1),
		NewLineFromProduct(testProduct("gone", "9.00"), 4),
	}
	if !cart.Subtract(ordered) {
		t.Fatal("subtract must report a change")
	}

	if len(cart.Lines) != 2 {
		t.Fatalf("lines=%+v, want b and c", cart.Lines)
	}
	if cart.Lines[0].ProductID != "b" || cart.Lines[0].Quantity != 2 {
		t.Fatalf("first line=%+v, want b x2", cart.Lines[0])
	}
	if cart.Lines[1].ProductID != "c" || cart.Lines[1].Quantity != 1 {
		t.Fatalf("second line=%+v, want c x1", cart.Lines[1])
	}

	var empty Cart
	if empty.Subtract(ordered) {
		t.Fatal("subtract on empty cart must be a no-op")
	}
}

func TestCart_SubtractEverythingEmptiesCart(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("a", "1.00"), 2)
	snapshot := cart.Snapshot()

	cart.Subtract(snapshot.Lines)
	if !cart.IsEmpty() || cart.Count() != 0 || !cart.Subtotal().IsZero() {
		t.Fatalf("cart must be empty, got %+v", cart.Lines)
	}
}

func TestCart_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		delta     int
		want      int
		wantDirty bool
	}{
		{name: "increment", start: 1, delta: 1, want: 2, wantDirty: true},
		{name: "decrement", start: 3, delta: -1, want: 2, wantDirty: true},
		{name: "decrement from one is ignored", start: 1, delta: -1, want: 1, wantDirty: false},
		{name: "large negative is ignored", start: 2, delta: -5, want: 2, wantDirty: false},
		{name: "zero delta", start: 2, delta: 0, want: 2, wantDirty: false},
		{name: "up to the limit", start: MaxLineQuantity - 1, delta: 1, want: MaxLineQuantity, wantDirty: true},
		{name: "past the limit is ignored", start: MaxLineQuantity, delta: 1, want: MaxLineQuantity, wantDirty: false},
		{name: "huge delta is ignored", start: 5, delta: math.MaxInt, want: 5, wantDirty: false},
		{name: "huge negative delta is ignored", start: 5, delta: math.MinInt, want: 5, wantDirty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cart Cart
			cart.AddItem(testProduct("x", "10.00"), tt.start)

			dirty := cart.UpdateQuantity("x", tt.delta)
			if dirty != tt.wantDirty {
				t.Fatalf("dirty=%v, want %v", dirty, tt.wantDirty)
			}
			line, ok := cart.Line("x")
			if !ok {
				t.Fatal("line must still exist")
			}
			if line.Quantity != tt.want {
				t.Fatalf("quantity=%d, want %d", line.Quantity, tt.want)
			}
		})
	}
}

func TestCart_MissingIDIsNoop(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("a", "5.00"), 2)

	if cart.UpdateQuantity("missing", 1) {
		t.Fatal("update on missing id must be a no-op")
	}
	if cart.RemoveItem("missing") {
		t.Fatal("remove on missing id must be a no-op")
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 {
		t.Fatalf("cart changed unexpectedly: %+v", cart.Lines)
	}
}

func TestCart_RemoveKeepsOrder(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("first", "1.00"), 1)
	cart.AddItem(testProduct("second", "2.00"), 2)
	cart.AddItem(testProduct("third", "3.00"), 3)

	if !cart.RemoveItem("second") {
		t.Fatal("expected second line to be removed")
	}

	if len(cart.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Lines))
	}
	if cart.Lines[0].ProductID != "first" || cart.Lines[0].Quantity != 1 {
		t.Fatalf("unexpected first line: %+v", cart.Lines[0])
	}
	if cart.Lines[1].ProductID != "third" || cart.Lines[1].Quantity != 3 {
		t.Fatalf("unexpected second line: %+v", cart.Lines[1])
	}
}

func TestCart_SubtotalAndCount(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("pollo", "24.90"), 2)
	cart.AddItem(testProduct("alitas", "28.50"), 1)

	if got := cart.Subtotal().StringFixed(2); got != "78.30" {
		t.Fatalf("subtotal=%s, want 78.30", got)
	}
	if got := cart.Count(); got != 3 {
		t.Fatalf("count=%d, want 3", got)
	}
}

func TestCart_Clear(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("a", "9.99"), 3)
	cart.Clear()

	if !cart.IsEmpty() {
		t.Fatal("cart must be empty after clear")
	}
	if !cart.Subtotal().IsZero() {
		t.Fatalf("subtotal must be zero, got %s", cart.Subtotal())
	}
	if cart.Count() != 0 {
		t.Fatalf("count must be zero, got %d", cart.Count())
	}
}

func TestCart_SnapshotIsIndependent(t *testing.T) {
	var cart Cart
	cart.AddItem(testProduct("a", "1.00"), 1)
	snap := cart.Snapshot()

	cart.UpdateQuantity("a", 5)
	cart.AddItem(testProduct("b", "2.00"), 1)

	if len(snap.Lines) != 1 || snap.Lines[0].Quantity != 1 {
		t.Fatalf("snapshot mutated: %+v", snap.Lines)
	}
}

func TestCart_RandomSequencesKeepInvariants(t *testing.T) {
	products := []Product{
		testProduct("p1", "24.90"),
		testProduct("p2", "45.00"),
		testProduct("p3", "28.50"),
		testProduct("p4", "0.00"),
		testProduct("p5", "20.00"),
	}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		var cart Cart
		for op := 0; op < 50; op++ {
			p := products[rng.Intn(len(products))]
			switch rng.Intn(3) {
			case 0:
				cart.AddItem(p, 1+rng.Intn(3))
			case 1:
				cart.UpdateQuantity(p.ID, rng.Intn(7)-3)
			case 2:
				cart.RemoveItem(p.ID)
			}

			if errs := cart.ValidateInvariants(); len(errs) > 0 {
				t.Fatalf("run %d op %d: invariants broken: %v", run, op, errs)
			}

			want := decimal.Zero
			count := 0
			for _, line := range cart.Lines {
				want = want.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
				count += line.Quantity
			}
			if !cart.Subtotal().Equal(want) {
				t.Fatalf("run %d op %d: subtotal=%s, want %s", run, op, cart.Subtotal(), want)
			}
			if cart.Count() != count {
				t.Fatalf("run %d op %d: count=%d, want %d", run, op, cart.Count(), count)
			}
		}
	}
}

func TestProduct_Validate(t *testing.T) {
	p := Product{Price: decimal.RequireFromString("-1")}
	if errs := p.Validate(); len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}

	ok := testProduct("id", "1.50")
	if errs := ok.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}
