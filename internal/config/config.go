// Package config loads orchestrator settings from a YAML file and
// ORCHESTRATOR_* environment variables.
//
// Environment variables use the key path with dots replaced by
// underscores, e.g. ORCHESTRATOR_ENGINE_MAX_ITERATIONS or
// ORCHESTRATOR_STORE_BACKEND.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kingmaker16/codex-os/internal/engine"
	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/hooks"
	"github.com/Kingmaker16/codex-os/internal/store"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "ORCHESTRATOR"

// Config is the full orchestrator configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Routes    RoutesConfig    `mapstructure:"routes" yaml:"routes"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Hooks     []hooks.Config  `mapstructure:"hooks" yaml:"hooks"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// EngineConfig tunes graph execution. A negative timeout disables it.
type EngineConfig struct {
	MaxIterations    int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	CallTimeout      time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	RoundTimeout     time.Duration `mapstructure:"round_timeout" yaml:"round_timeout"`
	MaxParallel      int           `mapstructure:"max_parallel" yaml:"max_parallel"`
	DisableCascade   bool          `mapstructure:"disable_cascade" yaml:"disable_cascade"`
	StrictEnrichment bool          `mapstructure:"strict_enrichment" yaml:"strict_enrichment"`
}

// RoutesConfig selects the route table. TableFile replaces the built-in
// table; BaseURL and Services override base URLs in either.
type RoutesConfig struct {
	TableFile string            `mapstructure:"table_file" yaml:"table_file"`
	BaseURL   string            `mapstructure:"base_url" yaml:"base_url"`
	Services  map[string]string `mapstructure:"services" yaml:"services"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":4200",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			MaxIterations: engine.DefaultMaxIterations,
			CallTimeout:   engine.DefaultCallTimeout,
			RoundTimeout:  engine.DefaultRoundTimeout,
		},
		Routes: RoutesConfig{Services: map[string]string{}},
		Store: StoreConfig{
			Backend: store.BackendMemory,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			SampleRate:  1.0,
			Environment: "development",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("engine.max_iterations", d.Engine.MaxIterations)
	v.SetDefault("engine.call_timeout", d.Engine.CallTimeout)
	v.SetDefault("engine.round_timeout", d.Engine.RoundTimeout)
	v.SetDefault("engine.max_parallel", d.Engine.MaxParallel)
	v.SetDefault("engine.disable_cascade", d.Engine.DisableCascade)
	v.SetDefault("engine.strict_enrichment", d.Engine.StrictEnrichment)

	v.SetDefault("routes.table_file", d.Routes.TableFile)
	v.SetDefault("routes.base_url", d.Routes.BaseURL)
	v.SetDefault("routes.services", d.Routes.Services)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
	v.SetDefault("telemetry.environment", d.Telemetry.Environment)
}

// Load reads path (optional) and the environment on top of the defaults,
// then validates the result. An empty path looks for orchestrator.yaml in
// the working directory and carries on without it if absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("orchestrator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("read config %s", v.ConfigFileUsed()), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Address == "" {
		add("server.address is required")
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if d < 0 {
			add("%s must not be negative", name)
		}
	}

	if c.Engine.MaxIterations <= 0 {
		add("engine.max_iterations must be positive")
	}
	if c.Engine.MaxParallel < 0 {
		add("engine.max_parallel must not be negative")
	}

	switch strings.ToLower(c.Store.Backend) {
	case store.BackendMemory:
	case store.BackendFile, store.BackendSQLite:
		if c.Store.Path == "" {
			add("store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		add("store.backend %q is not one of memory, file, sqlite", c.Store.Backend)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate must be between 0 and 1")
	}

	names := make(map[string]bool, len(c.Hooks))
	for i, h := range c.Hooks {
		switch {
		case h.Name == "":
			add("hooks[%d].name is required", i)
		case names[h.Name]:
			add("hooks[%d].name %q is duplicated", i, h.Name)
		}
		names[h.Name] = true
		if h.URL == "" {
			add("hooks[%d].url is required", i)
		}
		if h.Timeout < 0 {
			add("hooks[%d].timeout must not be negative", i)
		}
		for _, ev := range h.Events {
			if !ev.IsValid() {
				add("hooks[%d].events: unknown event %q", i, ev)
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.NewConfigInvalidError(strings.Join(problems, "; "))
}

// EngineOptions converts the engine section. Logger and Metrics are left
// for the caller.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		MaxIterations:  c.Engine.MaxIterations,
		CallTimeout:    c.Engine.CallTimeout,
		RoundTimeout:   c.Engine.RoundTimeout,
		MaxParallel:    c.Engine.MaxParallel,
		DisableCascade: c.Engine.DisableCascade,
	}
}
