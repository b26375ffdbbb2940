package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 10
)

// Result is the outcome of probing one address. LatencyMs is nil when
// the probe failed; Err then carries the failure message.
type Result struct {
	Address   string
	LatencyMs *int64
	Err       string
}

// Config tunes the prober.
type Config struct {
	// Timeout is the per-probe deadline. A probe that exceeds it is
	// recorded as failed without blocking the others.
	Timeout time.Duration

	// Concurrency is the fixed worker-pool size.
	Concurrency int

	// MaxAddresses caps how many input addresses are probed; the rest
	// are skipped entirely. Zero means no cap.
	MaxAddresses int
}

// Prober issues one HTTPS HEAD request per address and measures the
// elapsed wall-clock time. Any HTTP response counts as reachable;
// certificate verification is skipped since candidate edge IPs serve
// certificates for unrelated hostnames.
type Prober struct {
	cfg    Config
	client *http.Client
}

// New creates a Prober, clamping non-positive tuning values to defaults.
func New(cfg Config) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Prober{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // probing raw IPs, see type comment
				},
			},
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ProbeAll probes up to MaxAddresses of addrs at bounded concurrency and
// returns one Result per probed address, preserving input order. Partial
// failure is normal; ProbeAll itself never fails.
func (p *Prober) ProbeAll(ctx context.Context, addrs []string) []Result {
	if p.cfg.MaxAddresses > 0 && len(addrs) > p.cfg.MaxAddresses {
		slog.Info("probe: capping address list",
			"collected", len(addrs), "probing", p.cfg.MaxAddresses)
		addrs = addrs[:p.cfg.MaxAddresses]
	}

	results := make([]Result, len(addrs))
	pool, err := ants.NewPool(p.cfg.Concurrency)
	if err != nil {
		// Pool size is validated in New; a failure here means the runtime
		// is out of resources. Record every probe as failed.
		for i, a := range addrs {
			results[i] = Result{Address: a, Err: fmt.Sprintf("worker pool: %v", err)}
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, addr := range addrs {
		i, addr := i, addr
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = p.probeOne(ctx, addr)
		}); err != nil {
			wg.Done()
			results[i] = Result{Address: addr, Err: fmt.Sprintf("submit: %v", err)}
		}
	}
	wg.Wait()

	return results
}

// probeOne issues a single HEAD request to https://addr with the
// configured timeout and records the round-trip in milliseconds.
func (p *Prober) probeOne(ctx context.Context, addr string) Result {
	res := Result{Address: addr}

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, "https://"+addr, nil)
	if err != nil {
		res.Err = fmt.Sprintf("build request: %v", err)
		return res
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = fmt.Sprintf("probe: %v", err)
		slog.Debug("probe: failed", "address", addr, "err", err)
		return res
	}
	resp.Body.Close()

	elapsed := time.Since(start).Milliseconds()
	res.LatencyMs = &elapsed
	return res
}
