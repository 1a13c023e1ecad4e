package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval.Duration)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trr.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9000"
allowed_origins = ["https://therealityreport.com/", " "]

[database]
driver = "Postgres"
dsn = "postgres://localhost/trr"

[redis]
addr = "localhost:6379"
ttl = "30s"
`), 0o600))
	t.Setenv("TRR_LOG_LEVEL", "DEBUG")
	t.Setenv("TRR_ADDR", ":7000")

	cfg, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://therealityreport.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL.Duration)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"driver":  "[database]\ndriver = \"mysql\"\n",
		"level":   "[logging]\nlevel = \"loud\"\n",
		"ttl":     "[redis]\nttl = \"0s\"\n",
		"unknown": "[server]\nport = 80\n",
		"bad_dur": "[redis]\nttl = \"soon\"\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name+".toml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		_, _, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, CreateSample(path))
	cfg, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, Default().Database, cfg.Database)
	assert.Error(t, CreateSample(path))
}
