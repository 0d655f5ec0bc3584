package history

import (
	"context"
	"testing"
	"time"
)

func TestGuardClaimIsExclusive(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewGuard(client, 30*time.Second)
	ctx := context.Background()

	token, claimed, err := guard.Claim(ctx, "c1", "setTenderUnsuccessful")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed || token == "" {
		t.Fatalf("expected first claim to succeed with a token, got %q %v", token, claimed)
	}

	_, again, err := guard.Claim(ctx, "c1", "setTenderUnsuccessful")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again {
		t.Fatalf("expected second claim to be rejected")
	}

	_, other, err := guard.Claim(ctx, "c1", "getTenderState")
	if err != nil {
		t.Fatalf("claim other action: %v", err)
	}
	if !other {
		t.Fatalf("expected claim for another action to succeed")
	}

	if ttl := mr.TTL("inflight:c1:setTenderUnsuccessful"); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestGuardReleaseAllowsNewClaim(t *testing.T) {
	_, client := newTestRedis(t)
	guard := NewGuard(client, time.Minute)
	ctx := context.Background()

	token, _, err := guard.Claim(ctx, "c1", "a")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := guard.Release(ctx, "c1", "a", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	_, claimed, err := guard.Claim(ctx, "c1", "a")
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	if !claimed {
		t.Fatalf("expected claim after release to succeed")
	}
}

func TestGuardExpiredHolderKeepsNewClaim(t *testing.T) {
	mr, client := newTestRedis(t)
	guard := NewGuard(client, time.Second)
	ctx := context.Background()

	stale, _, err := guard.Claim(ctx, "c1", "a")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	mr.FastForward(2 * time.Second)

	fresh, claimed, err := guard.Claim(ctx, "c1", "a")
	if err != nil || !claimed {
		t.Fatalf("expected claim after expiry, got %v %v", claimed, err)
	}
	if fresh == stale {
		t.Fatalf("claims must get distinct tokens")
	}

	if err := guard.Release(ctx, "c1", "a", stale); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if got, err := mr.Get("inflight:c1:a"); err != nil || got != fresh {
		t.Fatalf("stale release dropped the new claim: %q %v", got, err)
	}

	if err := guard.Release(ctx, "c1", "a", fresh); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("inflight:c1:a") {
		t.Fatalf("expected owner release to delete the claim")
	}
}
