package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, "Other", cfg.Defaults.Brand)
	require.Equal(t, "Standard", cfg.Defaults.Finish)
	require.Equal(t, "None", cfg.Defaults.Additives)
	require.InDelta(t, 1.75, cfg.Defaults.DiameterMM, 1e-9)
	require.InDelta(t, 150, cfg.Defaults.LowThresholdG, 1e-9)
	require.Equal(t, 30, cfg.Defaults.AnalyticsWindowDays)
	require.Equal(t, 12, cfg.Defaults.TopN)
	require.NoError(t, cfg.Validate())
}

func TestLoadPrecedenceFileEnvFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spoolbook.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"storage": {"driver": "postgres", "postgres_dsn": "postgres://file"},
		"log": {"level": "debug"},
		"defaults": {"low_threshold_g": 200}
	}`), 0o600))

	cfg, err := Load(path, envMap(map[string]string{
		"SPOOLBOOK_POSTGRES_DSN":       "postgres://env",
		"SPOOLBOOK_BLOB_S3_PATH_STYLE": "true",
	}))
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Storage.Driver)
	require.Equal(t, "postgres://env", cfg.Storage.PostgresDSN)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format, "fields missing from the file keep defaults")
	require.InDelta(t, 200, cfg.Defaults.LowThresholdG, 1e-9)
	require.True(t, cfg.Blob.S3.PathStyle)

	fs := flag.NewFlagSet("spoolbook", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-dsn", "postgres://flag", "-log-format", "json"}))
	require.Equal(t, "postgres://flag", cfg.Storage.PostgresDSN)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), envMap(nil))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	_, err = Load(bad, envMap(nil))
	require.Error(t, err)

	_, err = Load("", envMap(map[string]string{"SPOOLBOOK_LOW_THRESHOLD_G": "lots"}))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.Storage.Driver = "mongo"
	require.Error(t, cfg.Validate())

	cfg.LoadDefaults()
	cfg.Blob.Driver = "s3"
	require.Error(t, cfg.Validate())
	cfg.Blob.S3.Bucket = "backups"
	require.NoError(t, cfg.Validate())
}

func TestConfigPath(t *testing.T) {
	env := envMap(map[string]string{"SPOOLBOOK_CONFIG": "/etc/spoolbook.json"})
	require.Equal(t, "a.json", ConfigPath([]string{"-config", "a.json", "sku-list"}, env))
	require.Equal(t, "b.json", ConfigPath([]string{"--config=b.json"}, env))
	require.Equal(t, "/etc/spoolbook.json", ConfigPath([]string{"sku-list", "-config", "c.json"}, env))
	require.Equal(t, "c.json", ConfigPath([]string{"-db", "x.db", "-config", "c.json", "sku-list"}, envMap(nil)))
	require.Equal(t, "d.json", ConfigPath([]string{"-log-level", "debug", "--config=d.json", "-storage", "memory"}, env))
	require.Equal(t, "", ConfigPath(nil, envMap(nil)))
}
