package diagnostics

import (
	"encoding/json"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beaconlabs/beacon/pkg/telemetry"
)

func TestFromOptions(t *testing.T) {
	opts := &telemetry.Options{
		APIKey:      "k-123",
		AppID:       "1:234:ios:abc",
		ProjectID:   "demo",
		SenderID:    "634566",
		Environment: "staging",
		Extra: map[string]string{
			"flush_interval": "30s",
			"collector":      "https://internal.example.com",
		},
	}

	ev := FromOptions(opts)
	require.NotEmpty(t, ev.ID)
	require.WithinDuration(t, time.Now().UTC(), ev.Time, time.Minute)
	require.Equal(t, "1:234:ios:abc", ev.AppID)
	require.Equal(t, "demo", ev.ProjectID)
	require.Equal(t, "634566", ev.SenderID)
	require.Equal(t, "staging", ev.Environment)
	require.Equal(t, sdkVersion, ev.SDKVersion)
	require.Equal(t, []string{"collector", "flush_interval"}, ev.ConfigKeys, "keys sorted, values gone")
	require.Equal(t, runtime.GOOS, ev.Platform.OS)
	require.Equal(t, runtime.GOARCH, ev.Platform.Arch)
	require.Equal(t, runtime.Version(), ev.Platform.Runtime)

	other := FromOptions(opts)
	require.NotEqual(t, ev.ID, other.ID, "every event gets its own identity")
}

func TestEventJSONCarriesNoConfigValues(t *testing.T) {
	ev := FromOptions(&telemetry.Options{
		AppID: "1:234:ios:abc",
		Extra: map[string]string{"endpoint": "https://secret.example.com"},
	})

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.Contains(t, string(data), `"endpoint"`)
	require.NotContains(t, string(data), "secret.example.com")
}

func TestEventJSONOmitsEmpty(t *testing.T) {
	ev := FromOptions(&telemetry.Options{AppID: "1:234:ios:abc"})

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NotContains(t, string(data), "project_id")
	require.NotContains(t, string(data), "config_keys")
}
