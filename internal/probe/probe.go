// Package probe checks collector reachability over the configured
// transport. It fires a series of empty batches (health checks, on
// gRPC) at each endpoint and reports latency percentiles; any status
// counts as reachable, only transport failures count against an
// endpoint.
package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"github.com/beaconlabs/beacon/internal/config"
	"github.com/beaconlabs/beacon/internal/endpoints"
	"github.com/beaconlabs/beacon/pkg/transport"
)

// Attempt is one probe request, reported as it completes.
type Attempt struct {
	Target   endpoints.Target
	Seq      int
	Status   int
	Duration time.Duration
	Err      error
}

// Result summarizes all attempts against one endpoint.
type Result struct {
	Target   endpoints.Target
	URL      string
	Sent     int
	Failed   int
	Statuses map[int]int
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
	Max      time.Duration
	LastErr  string
}

// Reachable reports whether the endpoint answered at least once.
func (r Result) Reachable() bool {
	return r.Sent > r.Failed
}

// Prober drives probe rounds against the configured endpoints.
type Prober struct {
	client  *transport.AsyncClient
	reg     *endpoints.Registry
	apiKey  string
	count   int
	timeout time.Duration
	log     *zap.Logger
}

// New builds a Prober sending count requests per target.
func New(cfg *config.Config, reg *endpoints.Registry, count int, log *zap.Logger) *Prober {
	if count < 1 {
		count = 1
	}
	clientCfg := transport.ClientConfig{
		MaxIdleConns:    cfg.Transport.MaxIdleConns,
		IdleConnTimeout: cfg.Transport.IdleConnTimeout,
		TLSInsecure:     cfg.Transport.TLSInsecure,
	}
	var client transport.Client
	switch cfg.Transport.Protocol {
	case config.ProtocolHTTP2:
		client = transport.NewHTTP2Client(clientCfg)
	case config.ProtocolGRPC:
		client = transport.NewGRPCClient(clientCfg)
	default:
		client = transport.NewHTTPClient(clientCfg)
	}
	return &Prober{
		client:  transport.NewAsyncClient(client),
		reg:     reg,
		apiKey:  cfg.App.APIKey,
		count:   count,
		timeout: cfg.Transport.RequestTimeout,
		log:     log.Named("probe"),
	}
}

// Run probes every known target in order. onAttempt, when non-nil, is
// called after each request; live views hang off it.
func (p *Prober) Run(ctx context.Context, onAttempt func(Attempt)) ([]Result, error) {
	var results []Result
	for _, target := range p.reg.Targets() {
		res, err := p.RunTarget(ctx, target, onAttempt)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RunTarget probes a single target. The returned error is only ever a
// cancelled context; unreachable endpoints show up in the Result.
func (p *Prober) RunTarget(ctx context.Context, target endpoints.Target, onAttempt func(Attempt)) (Result, error) {
	dest, ok := p.reg.UploadURL(target)
	if !ok {
		return Result{Target: target}, nil
	}

	res := Result{
		Target:   target,
		URL:      dest.String(),
		Statuses: map[int]int{},
	}
	// Latencies in microseconds, up to a minute, three significant
	// figures.
	hist := hdrhistogram.New(1, 60_000_000, 3)

	headers := map[string]string{"Content-Type": "application/json"}
	if p.apiKey != "" {
		headers["X-Beacon-Key"] = p.apiKey
	}

	for i := 0; i < p.count; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		req := &transport.Request{
			URL:     dest.String(),
			Method:  http.MethodPost,
			Headers: headers,
			Body:    []byte(`{"events":[]}`),
			Timeout: p.timeout,
		}

		start := time.Now()
		resp, err := p.client.Submit(ctx, req).Await(ctx)
		elapsed := time.Since(start)

		res.Sent++
		attempt := Attempt{Target: target, Seq: i + 1, Duration: elapsed, Err: err}
		if err != nil {
			res.Failed++
			res.LastErr = err.Error()
			p.log.Debug("probe failed",
				zap.String("target", string(target)),
				zap.Int("seq", i+1),
				zap.Error(err),
			)
		} else {
			attempt.Status = resp.StatusCode
			res.Statuses[resp.StatusCode]++
			_ = hist.RecordValue(elapsed.Microseconds())
		}
		if onAttempt != nil {
			onAttempt(attempt)
		}
	}

	if hist.TotalCount() > 0 {
		res.P50 = time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond
		res.P95 = time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond
		res.P99 = time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond
		res.Max = time.Duration(hist.Max()) * time.Microsecond
	}
	return res, nil
}

// Close releases the probe transport.
func (p *Prober) Close() error {
	return p.client.Close()
}
