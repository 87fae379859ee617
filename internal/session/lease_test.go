package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestLeases(t *testing.T) (*LeaseStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewLeaseStore("redis://"+s.Addr(), 30*time.Second)
	if err != nil {
		t.Fatalf("failed to create lease store: %v", err)
	}
	return store, s
}

func TestAcquireIsExclusive(t *testing.T) {
	store, _ := setupTestLeases(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Acquire(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := store.Acquire(ctx, "inv_1", "own_b"); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("second editor should be rejected, got %v", err)
	}
	// Holding editor may re-acquire.
	if err := store.Acquire(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("re-acquire by holder failed: %v", err)
	}
	// Leases are per document.
	if err := store.Acquire(ctx, "inv_2", "own_b"); err != nil {
		t.Fatalf("acquire on another document failed: %v", err)
	}
}

func TestReleaseFreesTheLease(t *testing.T) {
	store, _ := setupTestLeases(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Acquire(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	// A non-holder cannot release.
	if err := store.Release(ctx, "inv_1", "own_b"); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("release by non-holder should fail, got %v", err)
	}
	if err := store.Release(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := store.Acquire(ctx, "inv_1", "own_b"); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	// Releasing an already free lease is not an error.
	if err := store.Release(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("double release should be a no-op, got %v", err)
	}
}

func TestLeaseExpires(t *testing.T) {
	store, s := setupTestLeases(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Acquire(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	s.FastForward(31 * time.Second)

	if err := store.Refresh(ctx, "inv_1", "own_a"); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("refresh after expiry should report loss, got %v", err)
	}
	if err := store.Acquire(ctx, "inv_1", "own_b"); err != nil {
		t.Fatalf("acquire after expiry failed: %v", err)
	}
}

func TestRefreshExtendsTTL(t *testing.T) {
	store, s := setupTestLeases(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Acquire(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	s.FastForward(20 * time.Second)
	if err := store.Refresh(ctx, "inv_1", "own_a"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	s.FastForward(20 * time.Second)

	// 40s elapsed in total but the refresh reset the 30s TTL.
	holder, err := store.Holder(ctx, "inv_1")
	if err != nil {
		t.Fatalf("holder lookup failed: %v", err)
	}
	if holder != "own_a" {
		t.Fatalf("lease should still be held by own_a, got %q", holder)
	}
}

func TestHolderOnFreeLease(t *testing.T) {
	store, _ := setupTestLeases(t)
	defer store.Close()

	holder, err := store.Holder(context.Background(), "inv_unknown")
	if err != nil {
		t.Fatalf("holder lookup failed: %v", err)
	}
	if holder != "" {
		t.Fatalf("free lease should report empty holder, got %q", holder)
	}
}
