package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config errors.
var (
	ErrInvalidConfig  = errors.New("pulse: invalid config")
	ErrDependencyURL  = errors.New("pulse: invalid dependency url")
	ErrOAuth2Settings = errors.New("pulse: oauth2 needs token_url, client_id and client_secret")
)

// Config is the host configuration.
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Work    WorkConfig    `mapstructure:"work"`
	Log     LogConfig     `mapstructure:"log"`
	Sentry  SentryConfig  `mapstructure:"sentry"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Ops     OpsConfig     `mapstructure:"ops"`
}

// ServiceConfig configures the supervisor.
type ServiceConfig struct {
	Name              string        `mapstructure:"name"`
	MetricPrefix      string        `mapstructure:"metric_prefix"`
	Environment       string        `mapstructure:"environment"`
	HeartbeatServices []string      `mapstructure:"heartbeat_services"`
	CycleInterval     time.Duration `mapstructure:"cycle_interval"`
	CycleTimeout      time.Duration `mapstructure:"cycle_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	FailureEvent      bool          `mapstructure:"failure_event"`
}

// WorkConfig configures the unit of work: an optional dependency call
// followed by a calculation step.
type WorkConfig struct {
	DependencyURL     string        `mapstructure:"dependency_url"`
	DependencyTimeout time.Duration `mapstructure:"dependency_timeout"`
	CalculationDelay  time.Duration `mapstructure:"calculation_delay"`
	OAuth2            OAuth2Config  `mapstructure:"oauth2"`
}

// OAuth2Config enables client-credentials auth on the dependency call.
type OAuth2Config struct {
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// Enabled reports whether any OAuth2 setting is present.
func (c OAuth2Config) Enabled() bool {
	return c.TokenURL != "" || c.ClientID != "" || c.ClientSecret != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SentryConfig enables the Sentry sink when DSN is set.
type SentryConfig struct {
	DSN          string        `mapstructure:"dsn"`
	Release      string        `mapstructure:"release"`
	SampleRate   float64       `mapstructure:"sample_rate"`
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
}

// RedisConfig enables the Redis stream sink when URL is set.
type RedisConfig struct {
	URL          string `mapstructure:"url"`
	Stream       string `mapstructure:"stream"`
	CounterKey   string `mapstructure:"counter_prefix"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

// OpsConfig configures the ops HTTP server and the telemetry buffer.
type OpsConfig struct {
	Address    string `mapstructure:"address"`
	BufferSize int    `mapstructure:"buffer_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "WorkerServiceDemo")
	v.SetDefault("service.metric_prefix", "WorkerService")
	v.SetDefault("service.environment", "production")
	v.SetDefault("service.heartbeat_services", []string{})
	v.SetDefault("service.cycle_interval", time.Second)
	v.SetDefault("service.cycle_timeout", time.Duration(0))
	v.SetDefault("service.heartbeat_interval", 10*time.Second)
	v.SetDefault("service.shutdown_timeout", 30*time.Second)
	v.SetDefault("service.failure_event", true)

	v.SetDefault("work.dependency_url", "")
	v.SetDefault("work.dependency_timeout", 10*time.Second)
	v.SetDefault("work.calculation_delay", time.Second)
	v.SetDefault("work.oauth2.token_url", "")
	v.SetDefault("work.oauth2.client_id", "")
	v.SetDefault("work.oauth2.client_secret", "")
	v.SetDefault("work.oauth2.scopes", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("sentry.flush_timeout", 2*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.stream", "pulse:telemetry")
	v.SetDefault("redis.counter_prefix", "pulse:counter:")
	v.SetDefault("redis.stream_max_len", 10000)

	v.SetDefault("ops.address", ":9090")
	v.SetDefault("ops.buffer_size", 1024)
}

// loadConfig decodes and validates the configuration held by v.
func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Service.CycleInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: service.cycle_interval must be positive", ErrInvalidConfig))
	}
	if c.Service.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: service.heartbeat_interval must be positive", ErrInvalidConfig))
	}
	if c.Service.CycleTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: service.cycle_timeout must not be negative", ErrInvalidConfig))
	}
	if c.Work.DependencyURL != "" {
		u, err := url.Parse(c.Work.DependencyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDependencyURL, c.Work.DependencyURL))
		}
	}
	if o := c.Work.OAuth2; o.Enabled() && (o.TokenURL == "" || o.ClientID == "" || o.ClientSecret == "") {
		errs = append(errs, ErrOAuth2Settings)
	}
	return errors.Join(errs...)
}
