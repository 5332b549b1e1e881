package workflow

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type busyItem struct {
	busy bool
}

func (b *busyItem) Busy() bool { return b.busy }

func TestRegistry_PutGetDelete(t *testing.T) {
	reg := NewRegistry[string](nil)

	reg.Put("a", "alpha")
	got, ok := reg.Get("a")
	if !ok || got != "alpha" {
		t.Fatalf("unexpected get result: %q %v", got, ok)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected len 1, got %d", reg.Len())
	}

	reg.Delete("a")
	if _, ok := reg.Get("a"); ok {
		t.Fatal("expected item to be deleted")
	}
}

func TestRegistry_SweepRemovesStaleEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry[*busyItem](clock.Now)

	reg.Put("stale", &busyItem{})
	reg.Put("busy", &busyItem{busy: true})

	clock.now = clock.now.Add(20 * time.Minute)
	reg.Put("fresh", &busyItem{})

	clock.now = clock.now.Add(20 * time.Minute)
	if _, ok := reg.Get("fresh"); !ok {
		t.Fatal("fresh item must exist")
	}

	if removed := reg.Sweep(30 * time.Minute); removed != 1 {
		t.Fatalf("expected 1 removed item, got %d", removed)
	}
	if _, ok := reg.Get("stale"); ok {
		t.Fatal("stale item must be swept")
	}
	if _, ok := reg.Get("busy"); !ok {
		t.Fatal("busy item must survive sweep")
	}
	if _, ok := reg.Get("fresh"); !ok {
		t.Fatal("recently touched item must survive sweep")
	}
}
