package wavelet

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/wavelet-io/wavelet-go/pkg/metrics"
	"github.com/wavelet-io/wavelet-go/pkg/subscribe"
	"github.com/wavelet-io/wavelet-go/pkg/transport"
)

// Default configuration values, mirroring the teacher's
// pkg/manager/config.go DEFAULT_* constants.
const (
	DefaultHeartbeatSeconds = subscribe.MinHeartbeatSeconds
	DefaultHeartbeatJitter  = 2 * time.Second
	DefaultAutoHeartbeat    = true
)

// Config holds the configuration for a Client. New builds one from the
// defaults plus its Options and does not accept a Config value. LoadConfig
// returns a Config from YAML; With... options can be applied to it by
// calling each Option on it, and then win over the YAML-sourced values.
type Config struct {
	// Context governs the lifetime of the heartbeat watcher goroutine.
	Context context.Context

	// Logger is shared by the engine, facade, listener, and heartbeat
	// watcher.
	Logger *zerolog.Logger

	// Metrics is optional; a nil Registry disables instrumentation.
	Metrics *metrics.Registry

	// Transport is the wire client the Subscribe Event Engine drives.
	// Required: New returns an error if it is nil.
	Transport transport.Transport

	// ClientID is the opaque client identity threaded through every
	// listener callback and Context snapshot.
	ClientID any

	FilterExpression string
	HeartbeatSeconds int
	HeartbeatJitter  time.Duration

	// AutoHeartbeat starts the background heartbeat watcher when New
	// builds the Client; its ticks send a heartbeat only while the Client
	// is in the Receiving state. Disable it when the host process drives
	// its own presence heartbeat cadence.
	AutoHeartbeat bool
}

// Option configures a Config.
type Option func(*Config)

// WithContext sets the context governing the heartbeat watcher's lifetime.
func WithContext(ctx context.Context) Option {
	return func(c *Config) { c.Context = ctx }
}

// WithLogger sets the shared structured logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithMetrics attaches a metrics registry. Pass nil (the default) to run
// without instrumentation.
func WithMetrics(reg *metrics.Registry) Option {
	return func(c *Config) { c.Metrics = reg }
}

// WithTransport sets the wire transport the Subscribe Event Engine drives.
func WithTransport(tr transport.Transport) Option {
	return func(c *Config) { c.Transport = tr }
}

// WithClientID sets the opaque client identity passed to every listener
// callback.
func WithClientID(id any) Option {
	return func(c *Config) { c.ClientID = id }
}

// WithFilterExpression sets the initial subscribe filter expression.
func WithFilterExpression(expr string) Option {
	return func(c *Config) { c.FilterExpression = expr }
}

// WithHeartbeat sets the presence heartbeat interval in seconds, clamped
// up to subscribe.MinHeartbeatSeconds by the facade.
func WithHeartbeat(seconds int) Option {
	return func(c *Config) { c.HeartbeatSeconds = seconds }
}

// WithHeartbeatJitter bounds the random per-tick offset the heartbeat
// watcher adds to its interval, so that many clients started together do
// not all thump in lockstep.
func WithHeartbeatJitter(d time.Duration) Option {
	return func(c *Config) { c.HeartbeatJitter = d }
}

// WithAutoHeartbeat enables or disables the background heartbeat watcher.
func WithAutoHeartbeat(enabled bool) Option {
	return func(c *Config) { c.AutoHeartbeat = enabled }
}

func defaultConfig() *Config {
	return &Config{
		Context:          context.Background(),
		HeartbeatSeconds: DefaultHeartbeatSeconds,
		HeartbeatJitter:  DefaultHeartbeatJitter,
		AutoHeartbeat:    DefaultAutoHeartbeat,
	}
}

// fileConfig is the YAML document shape read by LoadConfig. Only the
// plain-value fields are loadable from YAML; Transport, Logger, and
// Metrics must still be supplied with With... options since they are not
// serializable.
type fileConfig struct {
	FilterExpression string `yaml:"filter_expression"`
	HeartbeatSeconds int    `yaml:"heartbeat_seconds"`
	HeartbeatJitter  string `yaml:"heartbeat_jitter"`
	AutoHeartbeat    *bool  `yaml:"auto_heartbeat"`
}

// LoadConfig reads defaults from a YAML document at path, layered on top
// of defaultConfig(). Callers apply With... options afterward to override
// whatever the file set and to supply the non-serializable fields
// (Transport, Logger, Metrics, Context).
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wavelet: read config %q: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("wavelet: parse config %q: %w", path, err)
	}

	cfg := defaultConfig()
	if fc.FilterExpression != "" {
		cfg.FilterExpression = fc.FilterExpression
	}
	if fc.HeartbeatSeconds != 0 {
		cfg.HeartbeatSeconds = fc.HeartbeatSeconds
	}
	if fc.HeartbeatJitter != "" {
		jitter, err := time.ParseDuration(fc.HeartbeatJitter)
		if err != nil {
			return nil, fmt.Errorf("wavelet: parse config %q: heartbeat_jitter: %w", path, err)
		}
		cfg.HeartbeatJitter = jitter
	}
	if fc.AutoHeartbeat != nil {
		cfg.AutoHeartbeat = *fc.AutoHeartbeat
	}
	return cfg, nil
}
