package diagnostics

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beaconlabs/beacon/internal/metrics"
	"github.com/beaconlabs/beacon/internal/spool"
	"github.com/beaconlabs/beacon/pkg/telemetry"
)

var _ telemetry.Sink = (*Logger)(nil)

func testSpool(t *testing.T, maxEvents int) *spool.Spool {
	t.Helper()
	sp, err := spool.Open(filepath.Join(t.TempDir(), "spool.db"), maxEvents)
	require.NoError(t, err)
	t.Cleanup(func() { sp.Close() })
	return sp
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestLoggerRecordSpoolsEvent(t *testing.T) {
	ctx := context.Background()
	sp := testSpool(t, 100)
	l := NewLogger(sp, nil, testMetrics(), zap.NewNop())

	err := l.Record(ctx, &telemetry.Options{
		AppID:       "1:234:ios:abc",
		Environment: "staging",
		Extra:       map[string]string{"endpoint": "https://x"},
	})
	require.NoError(t, err)

	items, err := sp.Next(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var ev Event
	require.NoError(t, json.Unmarshal(items[0].Payload, &ev))
	require.Equal(t, "1:234:ios:abc", ev.AppID)
	require.Equal(t, "staging", ev.Environment)
	require.Equal(t, []string{"endpoint"}, ev.ConfigKeys)
	require.NotEmpty(t, ev.ID)
}

func TestLoggerWakes(t *testing.T) {
	ctx := context.Background()
	l := NewLogger(testSpool(t, 100), nil, testMetrics(), zap.NewNop())

	require.NoError(t, l.Record(ctx, &telemetry.Options{AppID: "a"}))
	select {
	case <-l.Wake():
	default:
		t.Fatal("expected a wake signal after Record")
	}

	// A second record while the signal is pending must not block.
	require.NoError(t, l.Record(ctx, &telemetry.Options{AppID: "a"}))
	require.NoError(t, l.Record(ctx, &telemetry.Options{AppID: "a"}))
}

func TestLoggerHookDrops(t *testing.T) {
	ctx := context.Background()
	sp := testSpool(t, 100)
	hook, err := NewHook(writeScript(t, `function scrub(event) { return null; }`), zap.NewNop())
	require.NoError(t, err)
	l := NewLogger(sp, hook, testMetrics(), zap.NewNop())

	require.NoError(t, l.Record(ctx, &telemetry.Options{AppID: "a"}), "a dropped event is not an error")

	n, err := sp.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLoggerHookRewrites(t *testing.T) {
	ctx := context.Background()
	sp := testSpool(t, 100)
	hook, err := NewHook(writeScript(t, `
		function scrub(event) {
			event.environment = "redacted";
			return event;
		}
	`), zap.NewNop())
	require.NoError(t, err)
	l := NewLogger(sp, hook, testMetrics(), zap.NewNop())

	require.NoError(t, l.Record(ctx, &telemetry.Options{AppID: "a", Environment: "staging"}))

	items, err := sp.Next(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var ev Event
	require.NoError(t, json.Unmarshal(items[0].Payload, &ev))
	require.Equal(t, "redacted", ev.Environment)
}

func TestLoggerSpoolCap(t *testing.T) {
	ctx := context.Background()
	sp := testSpool(t, 2)
	l := NewLogger(sp, nil, testMetrics(), zap.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(ctx, &telemetry.Options{AppID: "a"}))
	}

	n, err := sp.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n, "oldest events gave way")
}
