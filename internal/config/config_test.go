package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/drivebox/internal/account"
	"github.com/koustreak/drivebox/internal/filestore"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drivebox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "X-Forwarded-User", cfg.Server.UserHeader)
	assert.Equal(t, filestore.ProviderMinIO, cfg.Storage.Provider)
	assert.Equal(t, 255, cfg.Limits.MaxNameLength)
	assert.Equal(t, 1, cfg.Limits.CopyConcurrency)
	assert.Equal(t, account.DriverStatic, cfg.Accounts.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  write_timeout: 2m
storage:
  provider: memory
  bucket: test-files
limits:
  copy_concurrency: 8
download:
  temp_dir: /var/tmp/drivebox
accounts:
  driver: static
  users:
    alice: 1
    bob: 2
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, time.Minute, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, filestore.ProviderMemory, cfg.Storage.Provider)
	assert.Equal(t, "test-files", cfg.Storage.Bucket)
	assert.Equal(t, 8, cfg.Limits.CopyConcurrency)
	assert.Equal(t, "/var/tmp/drivebox", cfg.Download.TempDir)
	assert.Equal(t, map[string]int64{"alice": 1, "bob": 2}, cfg.Accounts.Users)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
storage:
  provider: memory
limits:
  copy_concurrency: 2
`)
	t.Setenv("DRIVEBOX_LIMITS_COPY_CONCURRENCY", "6")
	t.Setenv("DRIVEBOX_STORAGE_BUCKET", "from-env")
	t.Setenv("DRIVEBOX_ACCOUNTS_USERS", "carol:3,dave:4")
	t.Setenv("DRIVEBOX_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Limits.CopyConcurrency)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, map[string]int64{"carol": 3, "dave": 4}, cfg.Accounts.Users)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [unterminated"},
		{"zero concurrency", "limits:\n  copy_concurrency: 0\n"},
		{"unknown provider", "storage:\n  provider: ftp\n"},
		{"postgres without dsn", "accounts:\n  driver: postgres\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
