//go:build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goBlog "github.com/MrEthical07/goBlog"
	"github.com/MrEthical07/goBlog/internal/apitest"
)

type redisMode struct {
	name   string
	client redis.UniversalClient
	// fastForward advances key TTLs; nil against a live server.
	fastForward func(time.Duration)
}

// redisModes always yields miniredis and adds a live server when REDIS_ADDR
// is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()

	mr := miniredis.RunT(t)
	mini := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = mini.Close() })

	modes := []redisMode{{name: "miniredis", client: mini, fastForward: mr.FastForward}}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return modes
	}
	live := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := live.Ping(ctx).Err(); err != nil {
		t.Fatalf("REDIS_ADDR=%s unreachable: %v", addr, err)
	}
	if err := live.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = live.Close() })
	return append(modes, redisMode{name: "redis", client: live})
}

// seededAPI starts the stand-in blog API with the demo catalogue.
func seededAPI(t *testing.T) (*apitest.Server, string) {
	t.Helper()
	srv, baseURL := apitest.NewTestServer(t, apitest.Options{})
	if _, err := apitest.SeedDemo(srv); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return srv, baseURL
}

func buildRedisPortal(t *testing.T, baseURL string, rdb redis.UniversalClient, prefix string) *goBlog.Portal {
	t.Helper()

	cfg := goBlog.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.RequestsPerSecond = 0
	cfg.Storage.Backend = goBlog.StorageRedis
	cfg.Storage.RedisPrefix = prefix

	p, err := goBlog.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build portal: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}
