package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/meals-shell/internal/flags"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLogLevel       = "info"
	defaultStaticDir      = "web/static"
	defaultMountID        = "root"
)

// Viewport source names.
const (
	ViewportNone     = "none"
	ViewportTerminal = "terminal"
	ViewportStatic   = "static"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	LogLevel             string
	StaticDir            string
	EnvFile              string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	Bootstrap            Bootstrap
}

// Bootstrap configures how front-end flags are resolved and handed off.
type Bootstrap struct {
	ModeKey     string
	DefaultMode string
	RequireMode bool
	Lenient     bool
	Locators    []flags.LocatorSpec
	MountID     string
	Title       string
	AppScript   string
	Module      string
	// Viewport selects the metrics provider: none, terminal or static. Empty
	// means unconfigured and lets each command pick its own default.
	Viewport       string
	ViewportWidth  int
	ViewportHeight int
}

// Policy converts the bootstrap settings into a resolution policy.
func (b Bootstrap) Policy() flags.Policy {
	locators := make([]flags.LocatorSpec, len(b.Locators))
	copy(locators, b.Locators)
	return flags.Policy{
		ModeKey:     b.ModeKey,
		DefaultMode: b.DefaultMode,
		RequireMode: b.RequireMode,
		Locators:    locators,
		Lenient:     b.Lenient,
	}
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	LogLevel             string        `yaml:"log_level"`
	StaticDir            string        `yaml:"static_dir"`
	EnvFile              string        `yaml:"env_file"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Bootstrap            yamlBootstrap `yaml:"bootstrap"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// yamlBootstrap represents the bootstrap section in YAML.
type yamlBootstrap struct {
	ModeKey     string              `yaml:"mode_key"`
	DefaultMode string              `yaml:"default_mode"`
	RequireMode *bool               `yaml:"require_mode"`
	Lenient     *bool               `yaml:"lenient"`
	Locators    []flags.LocatorSpec `yaml:"locators"`
	MountID     string              `yaml:"mount_id"`
	Title       string              `yaml:"title"`
	AppScript   string              `yaml:"app_script"`
	Module      string              `yaml:"module"`
	Viewport    yamlViewport        `yaml:"viewport"`
}

type yamlViewport struct {
	Source string `yaml:"source"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	LogLevel       *string
	EnvFile        *string
	StaticDir      *string
	RequireMode    *bool
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Environment first so the YAML file can override it.
	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LogLevel:             defaultLogLevel,
		StaticDir:            defaultStaticDir,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Bootstrap: Bootstrap{
			ModeKey:     flags.DefaultModeKey,
			DefaultMode: flags.DefaultMode,
			Locators:    flags.DefaultLocators(),
			MountID:     defaultMountID,
		},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.StaticDir != "" {
		cfg.StaticDir = yamlCfg.StaticDir
	}
	if yamlCfg.EnvFile != "" {
		cfg.EnvFile = yamlCfg.EnvFile
	}

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.field = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	applyYAMLBootstrap(&cfg.Bootstrap, yamlCfg.Bootstrap)
	return nil
}

func applyYAMLBootstrap(b *Bootstrap, y yamlBootstrap) {
	if y.ModeKey != "" {
		b.ModeKey = y.ModeKey
	}
	if y.DefaultMode != "" {
		b.DefaultMode = y.DefaultMode
	}
	if y.RequireMode != nil {
		b.RequireMode = *y.RequireMode
	}
	if y.Lenient != nil {
		b.Lenient = *y.Lenient
	}
	if y.Locators != nil {
		b.Locators = y.Locators
	}
	if y.MountID != "" {
		b.MountID = y.MountID
	}
	if y.Title != "" {
		b.Title = y.Title
	}
	if y.AppScript != "" {
		b.AppScript = y.AppScript
	}
	if y.Module != "" {
		b.Module = y.Module
	}
	if y.Viewport.Source != "" {
		b.Viewport = y.Viewport.Source
		b.ViewportWidth = y.Viewport.Width
		b.ViewportHeight = y.Viewport.Height
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if dir := strings.TrimSpace(os.Getenv("STATIC_DIR")); dir != "" {
		cfg.StaticDir = dir
	}

	if file := strings.TrimSpace(os.Getenv("ENV_FILE")); file != "" {
		cfg.EnvFile = file
	}

	if mount := strings.TrimSpace(os.Getenv("MOUNT_ID")); mount != "" {
		cfg.Bootstrap.MountID = mount
	}

	if require := strings.TrimSpace(os.Getenv("REQUIRE_MODE")); require != "" {
		if value, err := strconv.ParseBool(require); err == nil {
			cfg.Bootstrap.RequireMode = value
		}
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.EnvFile != nil && *overrides.EnvFile != "" {
		cfg.EnvFile = *overrides.EnvFile
	}

	if overrides.StaticDir != nil && *overrides.StaticDir != "" {
		cfg.StaticDir = *overrides.StaticDir
	}

	if overrides.RequireMode != nil {
		cfg.Bootstrap.RequireMode = *overrides.RequireMode
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if strings.TrimSpace(cfg.Bootstrap.MountID) == "" {
		return fmt.Errorf("mount id cannot be empty")
	}

	switch cfg.Bootstrap.Viewport {
	case "", ViewportNone, ViewportTerminal:
	case ViewportStatic:
		if cfg.Bootstrap.ViewportWidth < 0 || cfg.Bootstrap.ViewportHeight < 0 {
			return fmt.Errorf("static viewport dimensions must be >= 0")
		}
	default:
		return fmt.Errorf("unknown viewport source %q", cfg.Bootstrap.Viewport)
	}

	if _, err := flags.NewResolver(cfg.Bootstrap.Policy()); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}
