package config

import "time"

// Config is the root configuration structure.
type Config struct {
	App       App       `yaml:"app"`
	Endpoints Endpoints `yaml:"endpoints"`
	Transport Transport `yaml:"transport"`
	Spool     Spool     `yaml:"spool"`
	Uploader  Uploader  `yaml:"uploader"`
	Scrub     Scrub     `yaml:"scrub"`
	Tokens    Tokens    `yaml:"tokens"`
	Metrics   Metrics   `yaml:"metrics"`
	Agent     Agent     `yaml:"agent"`
	Probe     Probe     `yaml:"probe"`
}

// App identifies the application whose diagnostics are relayed.
type App struct {
	APIKey      string            `yaml:"api_key"`
	AppID       string            `yaml:"app_id"`
	ProjectID   string            `yaml:"project_id"`
	SenderID    string            `yaml:"sender_id"`
	Environment string            `yaml:"environment"`
	Extra       map[string]string `yaml:"extra,omitempty"`
}

// Endpoints overrides the built-in collector URLs per upload target.
// Empty fields keep the defaults.
type Endpoints struct {
	Diagnostics string `yaml:"diagnostics,omitempty"`
	Events      string `yaml:"events,omitempty"`
	Metrics     string `yaml:"metrics,omitempty"`
}

// Protocol represents the supported upload protocols.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTP2 Protocol = "http2"
	ProtocolGRPC  Protocol = "grpc"
)

// Transport configures the upload connection.
type Transport struct {
	Protocol        Protocol      `yaml:"protocol"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	TLSInsecure     bool          `yaml:"tls_insecure,omitempty"`
	BodyLimit       int64         `yaml:"body_limit,omitempty"`
}

// Spool configures the on-disk event buffer.
type Spool struct {
	Path      string `yaml:"path"`
	MaxEvents int    `yaml:"max_events"`
}

// Uploader configures the background flush loop.
type Uploader struct {
	Target        string        `yaml:"target"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

// Scrub configures the optional event rewrite hook.
type Scrub struct {
	Enabled bool   `yaml:"enabled"`
	Script  string `yaml:"script,omitempty"`
}

// Tokens configures the registration token store.
type Tokens struct {
	Path string `yaml:"path"`
}

// Metrics configures Prometheus metrics.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Agent configures the background relay process.
type Agent struct {
	SocketPath string `yaml:"socket_path"`
	PIDFile    string `yaml:"pid_file"`
	LogFile    string `yaml:"log_file"`
}

// Probe configures the doctor's connectivity checks.
type Probe struct {
	Count int `yaml:"count"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: App{
			Environment: "production",
		},
		Transport: Transport{
			Protocol:        ProtocolHTTP,
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Spool: Spool{
			Path:      "~/.beacon/spool.db",
			MaxEvents: 10000,
		},
		Uploader: Uploader{
			Target:        "diagnostics",
			FlushInterval: 30 * time.Second,
			BatchSize:     64,
			RatePerSecond: 2,
			Burst:         4,
			MaxAttempts:   8,
		},
		Tokens: Tokens{
			Path: "~/.beacon/tokens.json",
		},
		Metrics: Metrics{
			Enabled: true,
			Address: ":9464",
			Path:    "/metrics",
		},
		Agent: Agent{
			SocketPath: "/tmp/beacon.sock",
			PIDFile:    "/tmp/beacon.pid",
			LogFile:    "/tmp/beacon.log",
		},
		Probe: Probe{
			Count: 20,
		},
	}
}
