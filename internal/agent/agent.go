// Package agent runs the relay as a background process: it owns the
// spool, the uploader, and the metrics server, and answers commands
// over a unix socket.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/beaconlabs/beacon/internal/config"
	"github.com/beaconlabs/beacon/internal/diagnostics"
	"github.com/beaconlabs/beacon/internal/endpoints"
	"github.com/beaconlabs/beacon/internal/metrics"
	"github.com/beaconlabs/beacon/internal/spool"
	"github.com/beaconlabs/beacon/internal/tokenstore"
	"github.com/beaconlabs/beacon/pkg/telemetry"
)

const drainTimeout = 10 * time.Second

// Status is what the agent reports about itself.
type Status struct {
	Running     bool      `json:"running"`
	PID         int       `json:"pid"`
	StartTime   time.Time `json:"start_time"`
	Uptime      string    `json:"uptime"`
	AppID       string    `json:"app_id"`
	Target      string    `json:"target"`
	Endpoint    string    `json:"endpoint"`
	Protocol    string    `json:"protocol"`
	SpoolDepth  int       `json:"spool_depth"`
	MetricsAddr string    `json:"metrics_addr,omitempty"`
}

// Command is one request sent to the agent socket.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the agent's answer.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Agent wires the pipeline together and serves the control socket.
type Agent struct {
	cfg *config.Config
	log *zap.Logger

	spool         *spool.Spool
	logger        *diagnostics.Logger
	uploader      *diagnostics.Uploader
	metricsServer *metrics.Server

	ctx       context.Context
	cancel    context.CancelFunc
	listener  net.Listener
	startTime time.Time
	draining  atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New assembles an agent from configuration. Nothing runs until Start.
func New(cfg *config.Config, log *zap.Logger) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		cfg:    cfg,
		log:    log.Named("agent"),
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}

	sp, err := spool.Open(cfg.Spool.Path, cfg.Spool.MaxEvents)
	if err != nil {
		cancel()
		return nil, err
	}
	a.spool = sp

	var hook *diagnostics.Hook
	if cfg.Scrub.Enabled {
		hook, err = diagnostics.NewHook(cfg.Scrub.Script, log)
		if err != nil {
			sp.Close()
			cancel()
			return nil, err
		}
	}

	reg, err := endpoints.NewRegistry(cfg.Endpoints)
	if err != nil {
		sp.Close()
		cancel()
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)
	a.logger = diagnostics.NewLogger(sp, hook, m, log)

	tokens := tokenstore.New(cfg.Tokens.Path)
	a.uploader, err = diagnostics.NewUploader(cfg, sp, reg, tokens, m, a.logger.Wake(), log)
	if err != nil {
		sp.Close()
		cancel()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.metricsServer = metrics.NewServer(cfg.Metrics, promReg, log, func() bool {
			return !a.draining.Load()
		})
	}

	return a, nil
}

// Start writes the pidfile, opens the control socket, and launches the
// pipeline. It does not block.
func (a *Agent) Start() error {
	if a.cfg.Agent.PIDFile != "" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.Agent.PIDFile), 0o755); err != nil {
			return fmt.Errorf("agent: create pid dir: %w", err)
		}
		if err := os.WriteFile(a.cfg.Agent.PIDFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("agent: write pid file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(a.cfg.Agent.SocketPath), 0o755); err != nil {
		return fmt.Errorf("agent: create socket dir: %w", err)
	}
	os.Remove(a.cfg.Agent.SocketPath)

	var err error
	a.listener, err = net.Listen("unix", a.cfg.Agent.SocketPath)
	if err != nil {
		return fmt.Errorf("agent: listen %s: %w", a.cfg.Agent.SocketPath, err)
	}

	a.uploader.Start(a.ctx)

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Start(); err != nil {
				a.log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	a.startTime = time.Now()
	a.wg.Add(1)
	go a.acceptConnections()

	a.log.Info("started",
		zap.String("socket", a.cfg.Agent.SocketPath),
		zap.String("spool", a.cfg.Spool.Path),
		zap.Int("pid", os.Getpid()),
	)
	return nil
}

// Done closes when a stop command arrives over the socket.
func (a *Agent) Done() <-chan struct{} {
	return a.stopCh
}

// Status reports the agent's current state.
func (a *Agent) Status() Status {
	s := Status{
		Running:   true,
		PID:       os.Getpid(),
		StartTime: a.startTime,
		AppID:     a.cfg.App.AppID,
		Target:    a.cfg.Uploader.Target,
		Protocol:  string(a.cfg.Transport.Protocol),
	}
	if !a.startTime.IsZero() {
		s.Uptime = time.Since(a.startTime).Round(time.Second).String()
	}
	if reg, err := endpoints.NewRegistry(a.cfg.Endpoints); err == nil {
		if t, ok := endpoints.ParseTarget(a.cfg.Uploader.Target); ok {
			if u, ok := reg.UploadURL(t); ok {
				s.Endpoint = u.String()
			}
		}
	}
	if n, err := a.spool.Len(a.ctx); err == nil {
		s.SpoolDepth = n
	}
	if a.cfg.Metrics.Enabled {
		s.MetricsAddr = a.cfg.Metrics.Address
	}
	return s
}

// Stop drains and shuts everything down: no new commands, a last flush
// attempt, then the spool closes.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		a.log.Info("stopping")
		a.draining.Store(true)

		if a.listener != nil {
			a.listener.Close()
		}
		a.cancel()
		a.wg.Wait()

		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		if err := a.uploader.Stop(drainCtx); err != nil {
			a.log.Warn("uploader did not stop cleanly", zap.Error(err))
		}
		if err := a.uploader.Flush(drainCtx); err != nil {
			a.log.Warn("final flush failed", zap.Error(err))
		}
		a.uploader.Close()

		if a.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.metricsServer.Stop(ctx)
			cancel()
		}

		a.spool.Close()
		os.Remove(a.cfg.Agent.SocketPath)
		if a.cfg.Agent.PIDFile != "" {
			os.Remove(a.cfg.Agent.PIDFile)
		}

		a.log.Info("stopped")
		close(a.stopCh)
	})
}

func (a *Agent) acceptConnections() {
	defer a.wg.Done()
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
				a.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}
		go a.handleConnection(conn)
	}
}

func (a *Agent) handleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd Command
	if err := decoder.Decode(&cmd); err != nil {
		encoder.Encode(Response{Success: false, Message: err.Error()})
		return
	}

	var resp Response
	switch cmd.Type {
	case "status":
		resp = Response{Success: true, Data: a.Status()}

	case "record":
		resp = a.handleRecord(cmd.Data)

	case "flush":
		resp = a.handleFlush()

	case "stop":
		resp = Response{Success: true, Message: "stopping"}
		encoder.Encode(resp)
		go func() {
			// Give the reply a moment to reach the client.
			time.Sleep(100 * time.Millisecond)
			a.Stop()
		}()
		return

	default:
		resp = Response{Success: false, Message: "unknown command: " + cmd.Type}
	}

	encoder.Encode(resp)
}

func (a *Agent) handleRecord(data json.RawMessage) Response {
	var opts telemetry.Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return Response{Success: false, Message: "bad options: " + err.Error()}
	}
	if err := telemetry.Report(a.ctx, a.logger, &opts); err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	return Response{Success: true, Message: "event recorded"}
}

func (a *Agent) handleFlush() Response {
	ctx, cancel := context.WithTimeout(a.ctx, drainTimeout)
	defer cancel()

	if err := a.uploader.Flush(ctx); err != nil {
		return Response{Success: false, Message: "flush failed: " + err.Error()}
	}
	remaining, err := a.spool.Len(ctx)
	if err != nil {
		return Response{Success: true, Message: "flushed"}
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("flushed, %d events still spooled", remaining),
		Data:    map[string]int{"spool_depth": remaining},
	}
}

// IsRunning checks whether an agent answers on the socket.
func IsRunning(socketPath string) bool {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// SendCommand sends one command to a running agent.
func SendCommand(socketPath string, cmd Command) (*Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("agent not running: %w", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}
