package endpoints

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconlabs/beacon/internal/config"
)

func TestUploadURLDefaults(t *testing.T) {
	r, err := NewRegistry(config.Endpoints{})
	require.NoError(t, err)

	u, ok := r.UploadURL(TargetDiagnostics)
	require.True(t, ok)
	require.Equal(t, "https://diagnostics.beaconlabs.io/v1/batch", u.String())

	u, ok = r.UploadURL(TargetEvents)
	require.True(t, ok)
	require.Equal(t, "https://events.beaconlabs.io/v1/batch", u.String())
}

func TestUploadURLUnknownTarget(t *testing.T) {
	r, err := NewRegistry(config.Endpoints{})
	require.NoError(t, err)

	u, ok := r.UploadURL(Target("traces"))
	require.False(t, ok)
	require.Nil(t, u)
}

func TestUploadURLOverride(t *testing.T) {
	r, err := NewRegistry(config.Endpoints{
		Diagnostics: "http://localhost:8080/ingest",
	})
	require.NoError(t, err)

	u, ok := r.UploadURL(TargetDiagnostics)
	require.True(t, ok)
	require.Equal(t, "http://localhost:8080/ingest", u.String())

	// Other targets keep their defaults.
	u, ok = r.UploadURL(TargetMetrics)
	require.True(t, ok)
	require.Equal(t, "https://metrics.beaconlabs.io/v1/batch", u.String())
}

func TestUploadURLReturnsCopy(t *testing.T) {
	r, err := NewRegistry(config.Endpoints{})
	require.NoError(t, err)

	u1, _ := r.UploadURL(TargetDiagnostics)
	u1.Path = "/mutated"
	u2, _ := r.UploadURL(TargetDiagnostics)
	require.Equal(t, "/v1/batch", u2.Path)
}

func TestNewRegistryRejectsBadOverride(t *testing.T) {
	_, err := NewRegistry(config.Endpoints{Events: "://not-a-url"})
	require.Error(t, err)

	_, err = NewRegistry(config.Endpoints{Events: "relative/path"})
	require.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	tgt, ok := ParseTarget("events")
	require.True(t, ok)
	require.Equal(t, TargetEvents, tgt)

	_, ok = ParseTarget("bogus")
	require.False(t, ok)
}

func TestTargets(t *testing.T) {
	r, err := NewRegistry(config.Endpoints{})
	require.NoError(t, err)
	require.Equal(t, []Target{TargetDiagnostics, TargetEvents, TargetMetrics}, r.Targets())
}
