package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type persisterCase struct {
	name  string
	setup func(t *testing.T) Persister
}

func persisterCases() []persisterCase {
	return []persisterCase{
		{
			name: "memory",
			setup: func(t *testing.T) Persister {
				return NewMemoryPersister()
			},
		},
		{
			name: "file",
			setup: func(t *testing.T) Persister {
				p, err := NewFilePersister(filepath.Join(t.TempDir(), "nested", "storage.json"))
				if err != nil {
					t.Fatalf("NewFilePersister: %v", err)
				}
				return p
			},
		},
		{
			name: "redis",
			setup: func(t *testing.T) Persister {
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis start: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() {
					_ = rdb.Close()
					mr.Close()
				})
				return NewRedisPersister(rdb, "test:", 0)
			},
		},
	}
}

func TestPersisterRoundTrip(t *testing.T) {
	for _, pc := range persisterCases() {
		t.Run(pc.name, func(t *testing.T) {
			p := pc.setup(t)
			ctx := context.Background()

			if _, ok, err := p.Get(ctx, KeyToken); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}

			if err := p.Set(ctx, KeyToken, "tok-1"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := p.Set(ctx, KeyViewer, `{"_id":"v1"}`); err != nil {
				t.Fatalf("set viewer: %v", err)
			}
			if err := p.Set(ctx, KeyToken, "tok-2"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			v, ok, err := p.Get(ctx, KeyToken)
			if err != nil || !ok || v != "tok-2" {
				t.Fatalf("get token = (%q, %v, %v)", v, ok, err)
			}
			v, ok, err = p.Get(ctx, KeyViewer)
			if err != nil || !ok || v != `{"_id":"v1"}` {
				t.Fatalf("get viewer = (%q, %v, %v)", v, ok, err)
			}
		})
	}
}

func TestPersisterRemoveIdempotent(t *testing.T) {
	for _, pc := range persisterCases() {
		t.Run(pc.name, func(t *testing.T) {
			p := pc.setup(t)
			ctx := context.Background()

			if err := p.Set(ctx, KeyToken, "tok"); err != nil {
				t.Fatalf("set: %v", err)
			}
			for i := 0; i < 2; i++ {
				if err := p.Remove(ctx, KeyToken); err != nil {
					t.Fatalf("remove #%d: %v", i+1, err)
				}
			}
			if _, ok, err := p.Get(ctx, KeyToken); err != nil || ok {
				t.Fatalf("expected removed key, got ok=%v err=%v", ok, err)
			}
			if err := p.Remove(ctx, "never-set"); err != nil {
				t.Fatalf("remove of missing key: %v", err)
			}
		})
	}
}

func TestFilePersisterSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ctx := context.Background()

	first, err := NewFilePersister(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Set(ctx, KeyToken, "tok"); err != nil {
		t.Fatalf("set: %v", err)
	}

	second, err := NewFilePersister(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, ok, err := second.Get(ctx, KeyToken)
	if err != nil || !ok || v != "tok" {
		t.Fatalf("get after reopen = (%q, %v, %v)", v, ok, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 file mode, got %o", perm)
	}
}

func TestFilePersisterCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := NewFilePersister(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, _, err = p.Get(context.Background(), KeyToken)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestFilePersisterHonorsCanceledContext(t *testing.T) {
	p, err := NewFilePersister(filepath.Join(t.TempDir(), "storage.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Set(ctx, KeyToken, "tok"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRedisPersisterPrefixAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := NewRedisPersister(rdb, "", time.Minute)
	ctx := context.Background()
	if err := p.Set(ctx, KeyToken, "tok"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if !mr.Exists("blogportal:jwt_token") {
		t.Fatal("expected default prefix blogportal:")
	}
	if ttl := mr.TTL("blogportal:jwt_token"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, err := p.Get(ctx, KeyToken); err != nil || ok {
		t.Fatalf("expected expired key, got ok=%v err=%v", ok, err)
	}

	if _, err := p.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRedisPersisterBackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	p := NewRedisPersister(rdb, "test:", 0)
	_, _, err = p.Get(context.Background(), KeyToken)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
