package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := []byte("listen: 0.0.0.0:9000\nstate:\n  backend: bogus\nhorizon_days: -3\nlog_level: loud\nbasic_auth:\n  username: admin\n")
	require.NoError(t, os.WriteFile(path, doc, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, DefaultStateBackend, cfg.State.Backend)
	assert.Equal(t, DefaultStatePath, cfg.State.Path)
	assert.Equal(t, DefaultHorizonDays, cfg.HorizonDays)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Nil(t, cfg.BasicAuth, "credentials without a password are ignored")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Berlin"
	cfg.State = StateConfig{Backend: "sqlite", Path: "/tmp/cyclecal.db"}
	cfg.CondensedLabels = true
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CYCLECAL_LISTEN", ":9999")
	t.Setenv("CYCLECAL_STATE_BACKEND", "sqlite")
	t.Setenv("CYCLECAL_STATE_PATH", "/data/state.db")
	t.Setenv("CYCLECAL_FORECAST_COUNT", "3")
	t.Setenv("CYCLECAL_CONDENSED_LABELS", "true")
	t.Setenv("CYCLECAL_CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("CYCLECAL_BASIC_AUTH_USERNAME", "admin")
	t.Setenv("CYCLECAL_BASIC_AUTH_PASSWORD", "secret")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, StateConfig{Backend: "sqlite", Path: "/data/state.db"}, cfg.State)
	assert.Equal(t, 3, cfg.ForecastCount)
	assert.Equal(t, DefaultHorizonDays, cfg.HorizonDays, "unset variables keep file values")
	assert.True(t, cfg.CondensedLabels)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
}

func TestApplyEnvRejectsBadNumber(t *testing.T) {
	t.Setenv("CYCLECAL_HORIZON_DAYS", "soon")

	err := DefaultConfig().ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}
