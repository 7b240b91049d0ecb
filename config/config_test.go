package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gemfarm/crypto"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesTOML(t *testing.T) {
	path := writeFile(t, "farmd.toml", `ListenAddress = "0.0.0.0:9000"
Environment = "staging"
DataDir = "/var/lib/gemfarm"

[storage]
Backend = "bolt"

[event_log]
Driver = "postgres"
DSN = "postgres://farm@db/events"

[auth]
Enabled = true
HMACSecret = " secret "
Issuer = "gemfarm"

[rate_limits.write]
RequestsPerMinute = 30
Burst = 5

[log]
Level = "warn"
File = "/var/log/farmd.log"

[pauses]
Farm = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
	require.Equal(t, StorageBolt, cfg.Storage.Backend)
	require.Equal(t, filepath.Join("/var/lib/gemfarm", "state.bolt"), cfg.Storage.Path)
	require.Equal(t, EventLogPostgres, cfg.EventLog.Driver)
	require.Equal(t, "secret", cfg.Auth.HMACSecret)
	require.Equal(t, "sub", cfg.Auth.SignerClaim)
	require.Equal(t, RateLimit{RequestsPerMinute: 30, Burst: 5}, cfg.RateLimits["write"])
	require.Contains(t, cfg.RateLimits, "read", "defaults are kept for unlisted routes")
	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, level)
	require.Equal(t, []string{"farm"}, cfg.Pauses.PausedModules())
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeFile(t, "farmd.yaml", `listen: ":7000"
storage:
  backend: memory
eventLog:
  driver: none
telemetry:
  endpoint: "collector:4318"
  traces: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.ListenAddress)
	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Empty(t, cfg.Storage.Path)
	require.Equal(t, EventLogNone, cfg.EventLog.Driver)
	require.True(t, cfg.Telemetry.Traces)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "farmd.toml", "Bogus = 1\n"))
	require.ErrorContains(t, err, "Bogus")

	_, err = Load(writeFile(t, "farmd.yml", "bogus: 1\n"))
	require.Error(t, err)
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "farmd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Storage, reloaded.Storage)
	require.Equal(t, cfg.EventLog, reloaded.EventLog)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"storage backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.Backend"},
		{"postgres dsn", func(c *Config) { c.EventLog.Driver = EventLogPostgres; c.EventLog.DSN = "" }, "event_log.DSN"},
		{"auth secret", func(c *Config) { c.Auth.Enabled = true; c.Auth.HMACSecret = "" }, "HMACSecret"},
		{"rate limit", func(c *Config) { c.RateLimits["write"] = RateLimit{} }, "rate_limits.write"},
		{"telemetry", func(c *Config) { c.Telemetry.Metrics = true }, "telemetry.Endpoint"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.Level"},
		{"metadata authority", func(c *Config) { c.MetadataAuthority = "not-an-address" }, "MetadataAuthority"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.normalize()
			tc.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}
}

func TestMetadataAuthorityAddress(t *testing.T) {
	cfg := Default()
	addr, err := cfg.MetadataAuthorityAddress()
	require.NoError(t, err)
	require.True(t, addr.IsZero())

	oracle := crypto.NameAddress("metadata-authority")
	cfg.MetadataAuthority = " " + oracle.String() + " "
	cfg.normalize()
	require.NoError(t, cfg.Validate())
	addr, err = cfg.MetadataAuthorityAddress()
	require.NoError(t, err)
	require.Equal(t, oracle, addr)
}
