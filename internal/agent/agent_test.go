package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/beaconlabs/beacon/internal/config"
	"github.com/beaconlabs/beacon/pkg/telemetry"
)

func testAgentConfig(t *testing.T, collectorURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.App = config.App{APIKey: "k-123", AppID: "1:234:ios:abc"}
	cfg.Endpoints.Diagnostics = collectorURL
	cfg.Transport.RequestTimeout = 2 * time.Second
	cfg.Uploader.FlushInterval = time.Hour
	cfg.Uploader.RatePerSecond = 0
	cfg.Spool.Path = filepath.Join(dir, "spool.db")
	cfg.Tokens.Path = filepath.Join(dir, "tokens.json")
	cfg.Metrics.Enabled = false
	cfg.Agent.SocketPath = filepath.Join(dir, "a.sock")
	cfg.Agent.PIDFile = filepath.Join(dir, "a.pid")
	return cfg
}

func startAgent(t *testing.T, cfg *config.Config) *Agent {
	t.Helper()
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Start())
	t.Cleanup(a.Stop)
	return a
}

func TestAgentLifecycle(t *testing.T) {
	var uploads atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := testAgentConfig(t, ts.URL)

	leakOpts := goleak.IgnoreCurrent()
	a := startAgent(t, cfg)

	require.True(t, IsRunning(cfg.Agent.SocketPath))

	// The pidfile names this process.
	pid, err := os.ReadFile(cfg.Agent.PIDFile)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(pid))

	// Record an event through the socket.
	data, err := json.Marshal(telemetry.Options{AppID: "1:234:ios:abc", Environment: "staging"})
	require.NoError(t, err)
	resp, err := SendCommand(cfg.Agent.SocketPath, Command{Type: "record", Data: data})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)

	// Status sees it spooled (the background flush may already have
	// shipped it, so just check the command works).
	resp, err = SendCommand(cfg.Agent.SocketPath, Command{Type: "status"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var st Status
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &st))
	require.True(t, st.Running)
	require.Equal(t, os.Getpid(), st.PID)
	require.Equal(t, "1:234:ios:abc", st.AppID)
	require.Equal(t, "diagnostics", st.Target)

	// Flush pushes the event to the collector.
	resp, err = SendCommand(cfg.Agent.SocketPath, Command{Type: "flush"})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	require.GreaterOrEqual(t, uploads.Load(), int64(1))

	a.Stop()
	require.False(t, IsRunning(cfg.Agent.SocketPath))
	_, err = os.Stat(cfg.Agent.PIDFile)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.Agent.SocketPath)
	require.True(t, os.IsNotExist(err))

	goleak.VerifyNone(t, leakOpts)
}

func TestAgentStopCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := testAgentConfig(t, ts.URL)
	a := startAgent(t, cfg)

	resp, err := SendCommand(cfg.Agent.SocketPath, Command{Type: "stop"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop after the stop command")
	}
}

func TestAgentRecordBadPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := testAgentConfig(t, ts.URL)
	startAgent(t, cfg)

	resp, err := SendCommand(cfg.Agent.SocketPath, Command{Type: "record"})
	require.NoError(t, err)
	require.False(t, resp.Success)
}

func TestAgentUnknownCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := testAgentConfig(t, ts.URL)
	startAgent(t, cfg)

	resp, err := SendCommand(cfg.Agent.SocketPath, Command{Type: "dance"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Contains(t, resp.Message, "unknown command")
}

func TestSendCommandNoAgent(t *testing.T) {
	_, err := SendCommand(filepath.Join(t.TempDir(), "nobody.sock"), Command{Type: "status"})
	require.Error(t, err)
}
