// Command blogportal-loadtest drives the session guard and persisted-storage
// bootstrap of many portals against one Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goBlog "github.com/MrEthical07/goBlog"
	"github.com/MrEthical07/goBlog/jwt"
	"github.com/MrEthical07/goBlog/session"
)

func main() {
	var (
		viewers     = flag.Int("viewers", 1000, "number of viewer sessions to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (evaluate + bootstrap)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "persisted key prefix")
	)
	flag.Parse()

	if *viewers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "viewers, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	signer, err := jwt.NewSigner(jwt.SignerConfig{
		TTL:           24 * time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("loadtest-secret-0123456789abcdef"),
		Issuer:        "blogportal-loadtest",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "signer: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d viewers...\n", *viewers)
	startSeed := time.Now()
	portals := make([]*goBlog.Portal, *viewers)
	for i := range portals {
		p, err := seedViewer(ctx, client, signer, fmt.Sprintf("%s:%d:", *prefix, i), i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed viewer %d: %v\n", i, err)
			os.Exit(1)
		}
		defer p.Close()
		portals[i] = p
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	evaluateStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		d := portals[r.Intn(len(portals))].Evaluate(ctx)
		if !d.Allowed() {
			return fmt.Errorf("redirected: %s", d.Reason)
		}
		return nil
	})
	bootstrapStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		return portals[r.Intn(len(portals))].Bootstrap(ctx)
	})

	var reconciled, redirected uint64
	for _, p := range portals {
		reconciled += p.Metrics().Value(goBlog.MetricGuardReconcile)
		redirected += p.Metrics().Value(goBlog.MetricGuardRedirect)
	}

	fmt.Println("---- results ----")
	printStats("evaluate", evaluateStats)
	printStats("bootstrap", bootstrapStats)
	fmt.Printf("guard: reconciled=%d redirected=%d\n", reconciled, redirected)
}

// seedViewer writes a signed token and viewer record under prefix and returns
// a portal reading them back. The portal's store starts empty, so its first
// evaluation reconciles from Redis.
func seedViewer(ctx context.Context, client redis.UniversalClient, signer *jwt.Signer, prefix string, i int) (*goBlog.Portal, error) {
	id := fmt.Sprintf("viewer-%d", i)
	token, err := signer.Sign(id, id+"@example.com", id)
	if err != nil {
		return nil, err
	}
	viewer := fmt.Sprintf(`{"_id":%q,"username":%q}`, id, id)

	rp := session.NewRedisPersister(client, prefix, 24*time.Hour)
	if err := rp.Set(ctx, session.KeyToken, token); err != nil {
		return nil, err
	}
	if err := rp.Set(ctx, session.KeyViewer, viewer); err != nil {
		return nil, err
	}

	cfg := goBlog.DefaultConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1/api"
	cfg.API.RequestsPerSecond = 0
	cfg.Storage.Backend = goBlog.StorageRedis
	cfg.Storage.RedisPrefix = prefix
	cfg.Storage.RedisTTL = 24 * time.Hour
	cfg.Guard.FetchViewerOnReconcile = false
	cfg.Metrics.EnableLatencyHistograms = false

	return goBlog.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
