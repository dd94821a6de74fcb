package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_BlocksAfterBudget(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("attempt %d blocked, want allowed", i)
		}
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("attempt over budget allowed, want blocked")
	}

	// Keys are independent.
	ok, err = l.Allow(ctx, "10.0.0.2")
	if err != nil {
		t.Fatalf("allow other key: %v", err)
	}
	if !ok {
		t.Fatalf("fresh key blocked")
	}
}

func TestMemoryLimiter_ResetRestoresBudget(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "k"); !ok {
			t.Fatalf("attempt %d blocked", i)
		}
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatalf("over budget allowed")
	}
	if err := l.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("blocked after reset")
	}
}

func TestMemoryLimiter_WindowExpires(t *testing.T) {
	l := NewMemoryLimiter(1, 10*time.Millisecond)
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("first attempt blocked")
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatalf("second attempt inside window allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("attempt after window blocked")
	}
}

func TestMemoryLimiter_PruneDropsIdleKeys(t *testing.T) {
	l := NewMemoryLimiter(5, 10*time.Millisecond)
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "stale"); !ok {
		t.Fatalf("attempt blocked")
	}
	time.Sleep(20 * time.Millisecond)
	l.Prune()

	l.mu.Lock()
	_, present := l.attempts["stale"]
	l.mu.Unlock()
	if present {
		t.Fatalf("stale key survived prune")
	}
}
