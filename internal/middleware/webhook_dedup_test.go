package middleware

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDeduperDetectsDuplicates(t *testing.T) {
	t.Parallel()

	d := newMemoryCallbackDeduper(time.Minute)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "starsefar:ORD-1")
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}

	seen, err = d.Seen(ctx, "starsefar:ORD-1")
	if err != nil || !seen {
		t.Fatalf("second delivery: seen=%v err=%v", seen, err)
	}

	// Different gateways never collide on the same order id.
	seen, err = d.Seen(ctx, "tetra98:ORD-1")
	if err != nil || seen {
		t.Fatalf("other gateway: seen=%v err=%v", seen, err)
	}
}

func TestMemoryDeduperExpires(t *testing.T) {
	t.Parallel()

	d := newMemoryCallbackDeduper(10 * time.Millisecond)
	ctx := context.Background()

	if seen, _ := d.Seen(ctx, "k"); seen {
		t.Fatalf("fresh key reported seen")
	}
	time.Sleep(20 * time.Millisecond)
	if seen, _ := d.Seen(ctx, "k"); seen {
		t.Fatalf("expired key reported seen")
	}
}

func TestNewCallbackDeduperFallsBackWithoutAddr(t *testing.T) {
	t.Parallel()

	d, err := NewCallbackDeduper("", "", 0, 0)
	if err != nil {
		t.Fatalf("NewCallbackDeduper: %v", err)
	}
	if _, ok := d.(*memoryCallbackDeduper); !ok {
		t.Fatalf("expected memory deduper, got %T", d)
	}
}
