package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
)

func newTestSnapshots(t *testing.T, ttl time.Duration) (*Snapshots, *miniredis.Miniredis) {
	t.Helper()
	logger.Init()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSnapshots(rdb, ttl), mr
}

func TestSnapshotsMissThenHit(t *testing.T) {
	s, _ := newTestSnapshots(t, time.Minute)
	ctx := context.Background()

	if _, ok := s.Get(ctx); ok {
		t.Fatal("expected miss on empty cache")
	}

	s.Set(ctx, []byte(`[{"ticker":"XYZ"}]`))

	payload, ok := s.Get(ctx)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(payload) != `[{"ticker":"XYZ"}]` {
		t.Errorf("payload = %q", payload)
	}
}

func TestSnapshotsInvalidate(t *testing.T) {
	s, _ := newTestSnapshots(t, time.Minute)
	ctx := context.Background()

	s.Set(ctx, []byte("stale"))
	s.Invalidate(ctx)

	if _, ok := s.Get(ctx); ok {
		t.Fatal("expected miss after Invalidate")
	}
}

func TestSnapshotsExpiry(t *testing.T) {
	s, mr := newTestSnapshots(t, 30*time.Second)
	ctx := context.Background()

	s.Set(ctx, []byte("soon gone"))
	mr.FastForward(31 * time.Second)

	if _, ok := s.Get(ctx); ok {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestSnapshotsDisabled(t *testing.T) {
	logger.Init()
	var s *Snapshots
	ctx := context.Background()

	// nil receiver and nil client are both inert
	s.Set(ctx, []byte("x"))
	s.Invalidate(ctx)
	if _, ok := s.Get(ctx); ok {
		t.Fatal("nil cache must always miss")
	}

	s = NewSnapshots(nil, time.Minute)
	s.Set(ctx, []byte("x"))
	if _, ok := s.Get(ctx); ok {
		t.Fatal("client-less cache must always miss")
	}
}
