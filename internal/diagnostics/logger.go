package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/beaconlabs/beacon/internal/metrics"
	"github.com/beaconlabs/beacon/internal/spool"
	"github.com/beaconlabs/beacon/pkg/telemetry"
)

// Logger is the capture half of the pipeline. It implements
// telemetry.Sink: each Record derives an event, runs the scrub hook,
// and spools it. Recording never blocks on the network; delivery is the
// Uploader's job.
type Logger struct {
	spool   *spool.Spool
	hook    *Hook
	metrics *metrics.Metrics
	log     *zap.Logger
	wake    chan struct{}
}

// NewLogger builds a Logger writing to sp. hook may be nil.
func NewLogger(sp *spool.Spool, hook *Hook, m *metrics.Metrics, log *zap.Logger) *Logger {
	return &Logger{
		spool:   sp,
		hook:    hook,
		metrics: m,
		log:     log.Named("logger"),
		wake:    make(chan struct{}, 1),
	}
}

// Record captures one event. Returned errors are informational; callers
// going through telemetry.Report never see them.
func (l *Logger) Record(ctx context.Context, opts *telemetry.Options) error {
	ev := FromOptions(opts)

	if l.hook != nil {
		scrubbed, verdict := l.hook.Apply(ev)
		switch verdict {
		case VerdictDrop:
			l.metrics.DropEvent(metrics.DropScrubbed)
			l.log.Debug("event dropped by scrub hook", zap.String("event_id", ev.ID))
			return nil
		case VerdictRewritten:
			l.metrics.ScrubEvent()
			ev = scrubbed
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		l.metrics.DropEvent(metrics.DropEncodeFailed)
		return fmt.Errorf("encode event: %w", err)
	}

	dropped, err := l.spool.Put(ctx, payload)
	if err != nil {
		l.metrics.DropEvent(metrics.DropSpoolFailed)
		l.log.Warn("spool write failed", zap.String("event_id", ev.ID), zap.Error(err))
		return fmt.Errorf("spool event: %w", err)
	}
	for i := int64(0); i < dropped; i++ {
		l.metrics.DropEvent(metrics.DropSpoolFull)
	}
	if dropped > 0 {
		l.log.Warn("spool full, dropped oldest events", zap.Int64("dropped", dropped))
	}

	l.metrics.RecordEvent()
	l.log.Debug("event spooled",
		zap.String("event_id", ev.ID),
		zap.String("app_id", ev.AppID),
	)

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Wake signals whenever a new event lands in the spool. The uploader
// listens on it to flush promptly instead of waiting out the ticker.
func (l *Logger) Wake() <-chan struct{} {
	return l.wake
}
