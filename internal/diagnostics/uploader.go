package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/beaconlabs/beacon/internal/config"
	"github.com/beaconlabs/beacon/internal/endpoints"
	"github.com/beaconlabs/beacon/internal/metrics"
	"github.com/beaconlabs/beacon/internal/spool"
	"github.com/beaconlabs/beacon/internal/tokenstore"
	"github.com/beaconlabs/beacon/pkg/transport"
)

// Uploader is the delivery half of the pipeline. It drains the spool in
// batches: delivered and permanently rejected events leave the spool,
// everything else is rescheduled with backoff.
type Uploader struct {
	cfg     config.Uploader
	app     config.App
	timeout time.Duration
	target  endpoints.Target
	spool   *spool.Spool
	reg     *endpoints.Registry
	tokens  *tokenstore.Store
	client  *transport.AsyncClient
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *zap.Logger
	wake    <-chan struct{}

	flushMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewUploader builds an Uploader from the full configuration. wake may
// be nil when nothing signals new events.
func NewUploader(
	cfg *config.Config,
	sp *spool.Spool,
	reg *endpoints.Registry,
	tokens *tokenstore.Store,
	m *metrics.Metrics,
	wake <-chan struct{},
	log *zap.Logger,
) (*Uploader, error) {
	target, ok := endpoints.ParseTarget(cfg.Uploader.Target)
	if !ok {
		return nil, fmt.Errorf("uploader: unknown target %q", cfg.Uploader.Target)
	}

	clientCfg := transport.ClientConfig{
		MaxIdleConns:    cfg.Transport.MaxIdleConns,
		IdleConnTimeout: cfg.Transport.IdleConnTimeout,
		TLSInsecure:     cfg.Transport.TLSInsecure,
		BodyLimit:       cfg.Transport.BodyLimit,
	}
	var client transport.Client
	switch cfg.Transport.Protocol {
	case config.ProtocolHTTP2:
		client = transport.NewHTTP2Client(clientCfg)
	case config.ProtocolGRPC:
		// The gRPC transport speaks the health protocol only; it has
		// nowhere to put a batch.
		return nil, fmt.Errorf("uploader: grpc transport cannot carry uploads, use http or http2")
	default:
		client = transport.NewHTTPClient(clientCfg)
	}

	limit := rate.Limit(cfg.Uploader.RatePerSecond)
	if cfg.Uploader.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Uploader.Burst
	if burst < 1 {
		burst = 1
	}

	return &Uploader{
		cfg:     cfg.Uploader,
		app:     cfg.App,
		timeout: cfg.Transport.RequestTimeout,
		target:  target,
		spool:   sp,
		reg:     reg,
		tokens:  tokens,
		client:  transport.NewAsyncClient(client),
		limiter: rate.NewLimiter(limit, burst),
		metrics: m,
		log:     log.Named("uploader"),
		wake:    wake,
	}, nil
}

// Start launches the background flush loop.
func (u *Uploader) Start(ctx context.Context) {
	ctx, u.cancel = context.WithCancel(ctx)
	u.wg.Add(1)
	go u.run(ctx)
	u.log.Info("started",
		zap.String("target", string(u.target)),
		zap.Duration("flush_interval", u.cfg.FlushInterval),
		zap.Int("batch_size", u.cfg.BatchSize),
	)
}

// run flushes on a jittered ticker and whenever the logger signals a
// fresh event.
func (u *Uploader) run(ctx context.Context) {
	defer u.wg.Done()

	timer := time.NewTimer(u.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := u.flushOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				u.log.Warn("flush failed", zap.Error(err))
			}
			timer.Reset(u.interval())
		case <-u.wake:
			if _, err := u.flushOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				u.log.Warn("flush failed", zap.Error(err))
			}
		}
	}
}

// interval returns the flush interval with ±10% jitter.
func (u *Uploader) interval() time.Duration {
	return jitter(u.cfg.FlushInterval, 0.1)
}

// Flush drains the spool until it is empty or stops making progress.
func (u *Uploader) Flush(ctx context.Context) error {
	for {
		delivered, err := u.flushOnce(ctx)
		if err != nil {
			return err
		}
		if delivered == 0 {
			return nil
		}
	}
}

// flushOnce uploads at most one batch. It returns how many events left
// the spool as delivered.
func (u *Uploader) flushOnce(ctx context.Context) (int, error) {
	u.flushMu.Lock()
	defer u.flushMu.Unlock()
	defer u.syncDepth(ctx)

	items, err := u.spool.Next(ctx, u.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := u.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := u.buildRequest(ctx, items)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	u.metrics.IncUploadsInFlight()
	resp, err := u.client.Submit(ctx, req).Await(ctx)
	u.metrics.DecUploadsInFlight()
	elapsed := time.Since(start)

	if err != nil {
		// Never reached the collector; every event gets another try.
		u.retry(ctx, items)
		u.metrics.RecordUpload(string(u.target), metrics.OutcomeRetried, elapsed.Seconds())
		u.log.Warn("upload failed",
			zap.Int("events", len(items)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return 0, nil
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := u.spool.Ack(ctx, itemIDs(items)); err != nil {
			return 0, err
		}
		u.metrics.RecordUpload(string(u.target), metrics.OutcomeDelivered, elapsed.Seconds())
		u.log.Debug("batch delivered",
			zap.Int("events", len(items)),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed),
		)
		return len(items), nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		u.retry(ctx, items)
		u.metrics.RecordUpload(string(u.target), metrics.OutcomeRetried, elapsed.Seconds())
		u.log.Warn("collector busy, batch rescheduled",
			zap.Int("events", len(items)),
			zap.Int("status", resp.StatusCode),
		)
		return 0, nil

	default:
		// The collector saw the batch and refused it. Retrying the
		// same payload would loop forever.
		if err := u.spool.Ack(ctx, itemIDs(items)); err != nil {
			return 0, err
		}
		u.metrics.RecordUpload(string(u.target), metrics.OutcomeRejected, elapsed.Seconds())
		u.log.Warn("batch rejected by collector",
			zap.Int("events", len(items)),
			zap.Int("status", resp.StatusCode),
		)
		return 0, nil
	}
}

// retry reschedules items with backoff, abandoning those that already
// used up their attempts.
func (u *Uploader) retry(ctx context.Context, items []spool.Item) {
	byAttempts := map[int][]int64{}
	var abandoned []int64
	for _, it := range items {
		if it.Attempts+1 >= u.cfg.MaxAttempts {
			abandoned = append(abandoned, it.ID)
			continue
		}
		byAttempts[it.Attempts] = append(byAttempts[it.Attempts], it.ID)
	}

	for attempts, ids := range byAttempts {
		next := time.Now().Add(Backoff(attempts + 1))
		if err := u.spool.Fail(ctx, ids, next); err != nil {
			u.log.Warn("reschedule failed", zap.Error(err))
		}
	}

	if len(abandoned) > 0 {
		if err := u.spool.Ack(ctx, abandoned); err != nil {
			u.log.Warn("abandon failed", zap.Error(err))
			return
		}
		for range abandoned {
			u.metrics.DropEvent(metrics.DropAbandoned)
		}
		u.log.Warn("abandoned events after max attempts",
			zap.Int("events", len(abandoned)),
			zap.Int("max_attempts", u.cfg.MaxAttempts),
		)
	}
}

// buildRequest assembles the batch upload request, attaching the stored
// registration token when one exists.
func (u *Uploader) buildRequest(ctx context.Context, items []spool.Item) (*transport.Request, error) {
	dest, ok := u.reg.UploadURL(u.target)
	if !ok {
		return nil, fmt.Errorf("uploader: no endpoint for target %q", u.target)
	}

	batch := struct {
		Events []json.RawMessage `json:"events"`
	}{Events: make([]json.RawMessage, len(items))}
	for i, it := range items {
		batch.Events[i] = json.RawMessage(it.Payload)
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("uploader: encode batch: %w", err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if u.app.APIKey != "" {
		headers["X-Beacon-Key"] = u.app.APIKey
	}
	if u.app.AppID != "" {
		headers["X-Beacon-App"] = u.app.AppID
	}

	if u.app.SenderID != "" {
		tok, err := u.tokens.ExistingToken(ctx, u.app.SenderID).Await(ctx)
		switch {
		case err == nil:
			headers["Authorization"] = "Bearer " + tok
			u.metrics.RecordTokenLookup(true)
		case errors.Is(err, tokenstore.ErrTokenNotFound):
			u.metrics.RecordTokenLookup(false)
		default:
			u.metrics.RecordTokenLookup(false)
			u.log.Debug("token lookup failed", zap.Error(err))
		}
	}

	return &transport.Request{
		URL:     dest.String(),
		Method:  http.MethodPost,
		Headers: headers,
		Body:    body,
		Timeout: u.timeout,
	}, nil
}

func (u *Uploader) syncDepth(ctx context.Context) {
	if n, err := u.spool.Len(ctx); err == nil {
		u.metrics.SetSpoolDepth(n)
	}
}

// Stop halts the flush loop. The transport stays open so a final Flush
// can still run; call Close when done with the uploader entirely.
func (u *Uploader) Stop(ctx context.Context) error {
	if u.cancel != nil {
		u.cancel()
	}
	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the transport.
func (u *Uploader) Close() error {
	return u.client.Close()
}

func itemIDs(items []spool.Item) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
