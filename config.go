package liteorm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the settings shared by sessions and pools.
type Config struct {
	// Trace logs every command, with its arguments, at debug level.
	Trace bool `env:"LITEORM_TRACE" envDefault:"false"`
	// BusyTimeout is how long the engine waits on a locked database file.
	BusyTimeout time.Duration `env:"LITEORM_BUSY_TIMEOUT" envDefault:"5s"`
	ForeignKeys bool          `env:"LITEORM_FOREIGN_KEYS" envDefault:"true"`
	// JournalMode, when set, is applied with PRAGMA journal_mode on open.
	JournalMode string `env:"LITEORM_JOURNAL_MODE"`
	// PoolWorkers bounds how many pooled operations run at once.
	// Zero means GOMAXPROCS.
	PoolWorkers int `env:"LITEORM_POOL_WORKERS" envDefault:"0"`
	// PoolIdleTimeout evicts pooled sessions unused for this long.
	// Zero keeps every session until the pool is closed.
	PoolIdleTimeout time.Duration `env:"LITEORM_POOL_IDLE_TIMEOUT" envDefault:"0s"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		BusyTimeout: 5 * time.Second,
		ForeignKeys: true,
	}
}

// LoadConfig reads the configuration from LITEORM_* environment variables,
// falling back to the defaults of DefaultConfig.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("liteorm: parse env: %w", err)
	}
	return cfg, nil
}

// Option configures a Session or Pool.
type Option func(*options)

type options struct {
	cfg            Config
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

func buildOptions(opts []Option) options {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithTrace turns command logging on or off.
func WithTrace(on bool) Option {
	return func(o *options) { o.cfg.Trace = on }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracerProvider sets where statement spans are sent.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}
