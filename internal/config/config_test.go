package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "formatted_electoral_data.json", cfg.Data.ElectoralURL)
	assert.Equal(t, "name", cfg.Data.BoundaryNameProperty)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 1, cfg.Fetch.MaxRetries)
	assert.Equal(t, "geobrowser/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 60, cfg.Server.SessionTTLMins)
	assert.Equal(t, 1000, cfg.Server.MaxSessions)
	assert.Equal(t, "exact", cfg.Match.Strategy)
	assert.False(t, cfg.Match.ProvinceFallback)
	assert.Equal(t, int64(100000), cfg.Allocator.DefaultBudget)
	assert.Equal(t, 30, cfg.Backend.TimeoutSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  electoral_url: https://example.org/electoral.json
  boundary_url: ftp://example.org/districts.csv
  boundary_name_property: ENNAME
store:
  driver: postgres
  database_url: postgres://localhost/geo
log:
  level: debug
  format: console
server:
  port: 9090
match:
  strategy: fold
  province_fallback: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/electoral.json", cfg.Data.ElectoralURL)
	assert.Equal(t, "ftp://example.org/districts.csv", cfg.Data.BoundaryURL)
	assert.Equal(t, "ENNAME", cfg.Data.BoundaryNameProperty)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "fold", cfg.Match.Strategy)
	assert.True(t, cfg.Match.ProvinceFallback)
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("GEOBROWSER_STORE_DRIVER", "postgres")
	t.Setenv("GEOBROWSER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GEOBROWSER_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEOBROWSER_ALLOCATOR_DEFAULT_BUDGET=250\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GEOBROWSER_ALLOCATOR_DEFAULT_BUDGET") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.Allocator.DefaultBudget)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestDurations(t *testing.T) {
	assert.Equal(t, "1m0s", FetchConfig{TimeoutSecs: 60}.Timeout().String())
	assert.Equal(t, "2h0m0s", ServerConfig{SessionTTLMins: 120}.SessionTTL().String())
	assert.Equal(t, "5s", BackendConfig{TimeoutSecs: 5}.Timeout().String())
}

func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "geo.db"},
		Server: ServerConfig{Port: 8080, MaxSessions: 10, SessionTTLMins: 5},
		Match:  MatchConfig{Strategy: "exact"},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_ListsEveryProblem(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Match.Strategy = "soundex"
	cfg.Server.Port = 0
	cfg.Allocator.DefaultBudget = -1
	cfg.Data.BoundaryFormat = "kml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"store.driver", "match.strategy", "server.port", "allocator.default_budget", "data.boundary_format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
