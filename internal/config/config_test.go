package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  env: production
database:
  driver: sqlite
  url: "file::memory:"
jwt:
  secret: s3cret
chat:
  allow_after_completion: true
delivery:
  interval: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Chat.AllowAfterCompletion)
	assert.Equal(t, time.Minute, cfg.Delivery.Interval)

	assert.Equal(t, int64(50<<20), cfg.Upload.MaxAttachmentSize)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "./uploads", cfg.Storage.BasePath)
	assert.Equal(t, 200, cfg.Chat.DefaultPageSize)
	assert.Equal(t, 500, cfg.Chat.MaxPageSize)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  url: postgres://file
jwt:
  secret: from-file
`)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("STORAGE_TYPE", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoad_EnvOnlyWhenDefaultFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("JWT_SECRET", "x")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_DRIVER", "")
	path := writeConfig(t, `
database:
  driver: oracle
  url: x
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `database.driver "oracle" is not supported`)
	assert.Contains(t, err.Error(), "jwt.secret is required")
}
