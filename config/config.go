package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gemfarm/crypto"
)

const (
	StorageMemory  = "memory"
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"

	EventLogNone     = "none"
	EventLogSQLite   = "sqlite"
	EventLogPostgres = "postgres"
)

type StorageConfig struct {
	Backend string `toml:"Backend" yaml:"backend"`
	Path    string `toml:"Path" yaml:"path"`
}

type EventLogConfig struct {
	Driver       string `toml:"Driver" yaml:"driver"`
	DSN          string `toml:"DSN" yaml:"dsn"`
	HistoryLimit int    `toml:"HistoryLimit" yaml:"historyLimit"`
}

// AuthConfig controls bearer token verification. The signer address is read
// from SignerClaim, "sub" by default.
type AuthConfig struct {
	Enabled          bool   `toml:"Enabled" yaml:"enabled"`
	HMACSecret       string `toml:"HMACSecret" yaml:"hmacSecret"`
	Issuer           string `toml:"Issuer" yaml:"issuer"`
	Audience         string `toml:"Audience" yaml:"audience"`
	SignerClaim      string `toml:"SignerClaim" yaml:"signerClaim"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds" yaml:"clockSkewSeconds"`
}

type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"AllowedOrigins" yaml:"allowedOrigins"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
}

type LogConfig struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// Pauses lists modules that start paused.
type Pauses struct {
	Bank bool `toml:"Bank" yaml:"bank"`
	Farm bool `toml:"Farm" yaml:"farm"`
}

type Config struct {
	ListenAddress          string               `toml:"ListenAddress" yaml:"listen"`
	Environment            string               `toml:"Environment" yaml:"env"`
	DataDir                string               `toml:"DataDir" yaml:"dataDir"`
	ShutdownTimeoutSeconds int                  `toml:"ShutdownTimeoutSeconds" yaml:"shutdownTimeoutSeconds"`
	Storage                StorageConfig        `toml:"storage" yaml:"storage"`
	EventLog               EventLogConfig       `toml:"event_log" yaml:"eventLog"`
	Auth                   AuthConfig           `toml:"auth" yaml:"auth"`
	RateLimits             map[string]RateLimit `toml:"rate_limits" yaml:"rateLimits"`
	CORS                   CORSConfig           `toml:"cors" yaml:"cors"`
	Telemetry              TelemetryConfig      `toml:"telemetry" yaml:"telemetry"`
	Log                    LogConfig            `toml:"log" yaml:"log"`
	Pauses                 Pauses               `toml:"pauses" yaml:"pauses"`

	// EnableMint exposes the development token faucet route.
	EnableMint bool `toml:"EnableMint" yaml:"enableMint"`
	// MetadataAuthority is the address allowed to record NFT creator lists.
	// Empty disables recording.
	MetadataAuthority string `toml:"MetadataAuthority" yaml:"metadataAuthority"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		ListenAddress:          ":8080",
		Environment:            "local",
		DataDir:                "./gemfarm-data",
		ShutdownTimeoutSeconds: 15,
		Storage:                StorageConfig{Backend: StorageLevelDB},
		EventLog:               EventLogConfig{Driver: EventLogSQLite, HistoryLimit: 2048},
		Auth:                   AuthConfig{SignerClaim: "sub", ClockSkewSeconds: 120},
		RateLimits: map[string]RateLimit{
			"write": {RequestsPerMinute: 120, Burst: 20},
			"read":  {RequestsPerMinute: 600, Burst: 60},
		},
		Log: LogConfig{Level: "info"},
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load reads the configuration at path. TOML and YAML are selected by file
// extension. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Default()
		cfg.normalize()
		return cfg, cfg.Validate()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.ShutdownTimeoutSeconds <= 0 {
		cfg.ShutdownTimeoutSeconds = 15
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageLevelDB
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Backend {
		case StorageLevelDB:
			cfg.Storage.Path = filepath.Join(cfg.DataDir, "state")
		case StorageBolt:
			cfg.Storage.Path = filepath.Join(cfg.DataDir, "state.bolt")
		}
	}

	cfg.EventLog.Driver = strings.ToLower(strings.TrimSpace(cfg.EventLog.Driver))
	if cfg.EventLog.Driver == "" {
		cfg.EventLog.Driver = EventLogNone
	}
	if cfg.EventLog.Driver == EventLogSQLite && strings.TrimSpace(cfg.EventLog.DSN) == "" {
		cfg.EventLog.DSN = filepath.Join(cfg.DataDir, "events.db")
	}
	if cfg.EventLog.HistoryLimit <= 0 {
		cfg.EventLog.HistoryLimit = 2048
	}

	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	if cfg.Auth.SignerClaim == "" {
		cfg.Auth.SignerClaim = "sub"
	}
	if cfg.Auth.ClockSkewSeconds <= 0 {
		cfg.Auth.ClockSkewSeconds = 120
	}
	if cfg.RateLimits == nil {
		cfg.RateLimits = map[string]RateLimit{}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.MetadataAuthority = strings.TrimSpace(cfg.MetadataAuthority)
}

// Validate checks the configuration for values the daemon cannot run with.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.ListenAddress == "" {
		return fmt.Errorf("ListenAddress must be set")
	}
	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageLevelDB, StorageBolt:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.Path required for %s backend", cfg.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.Backend %q not supported", cfg.Storage.Backend)
	}
	switch cfg.EventLog.Driver {
	case EventLogNone:
	case EventLogSQLite, EventLogPostgres:
		if strings.TrimSpace(cfg.EventLog.DSN) == "" {
			return fmt.Errorf("event_log.DSN required for %s driver", cfg.EventLog.Driver)
		}
	default:
		return fmt.Errorf("event_log.Driver %q not supported", cfg.EventLog.Driver)
	}
	if cfg.Auth.Enabled && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth.HMACSecret required when auth is enabled")
	}
	for name, limit := range cfg.RateLimits {
		if limit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate_limits.%s.RequestsPerMinute must be positive", name)
		}
		if limit.Burst < 0 {
			return fmt.Errorf("rate_limits.%s.Burst cannot be negative", name)
		}
	}
	if (cfg.Telemetry.Metrics || cfg.Telemetry.Traces) && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry.Endpoint required when exporters are enabled")
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return err
	}
	if _, err := cfg.MetadataAuthorityAddress(); err != nil {
		return err
	}
	return nil
}

// MetadataAuthorityAddress decodes MetadataAuthority. The zero address is
// returned when none is configured.
func (cfg *Config) MetadataAuthorityAddress() (crypto.Address, error) {
	if cfg.MetadataAuthority == "" {
		return crypto.ZeroAddress, nil
	}
	addr, err := crypto.DecodeAddress(cfg.MetadataAuthority)
	if err != nil {
		return crypto.ZeroAddress, fmt.Errorf("MetadataAuthority: %w", err)
	}
	return addr, nil
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.Level: %w", err)
	}
	return level, nil
}

// PausedModules lists the modules configured to start paused.
func (p Pauses) PausedModules() []string {
	var modules []string
	if p.Bank {
		modules = append(modules, "bank")
	}
	if p.Farm {
		modules = append(modules, "farm")
	}
	return modules
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		encoder := yaml.NewEncoder(f)
		defer encoder.Close()
		return encoder.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
