package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom(t *testing.T) {
	t.Run("ReadsYAMLFile", func(t *testing.T) {
		dir := t.TempDir()
		yaml := `
env: test
server:
  port: "9000"
  cors_origins: ["http://localhost:3000"]
database:
  driver: sqlite
  dsn: "file::memory:"
auth:
  secret: file-secret
  token_ttl_minutes: 5
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.test.yaml"), []byte(yaml), 0o600))

		cfg, err := config.LoadFrom("test", dir)
		require.NoError(t, err)

		assert.Equal(t, "test", cfg.Env)
		assert.Equal(t, "9000", cfg.Server.Port)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "file-secret", cfg.Auth.Secret)
		assert.Equal(t, 5*time.Minute, cfg.Auth.TokenTTL())
		assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		dir := t.TempDir()
		yaml := "auth:\n  secret: file-secret\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.test.yaml"), []byte(yaml), 0o600))

		t.Setenv("JWT_SECRET", "env-secret")
		t.Setenv("DB_USER", "registrar")

		cfg, err := config.LoadFrom("test", dir)
		require.NoError(t, err)

		assert.Equal(t, "env-secret", cfg.Auth.Secret)
		assert.Equal(t, "registrar", cfg.Database.User)
	})

	t.Run("DefaultsWithoutFile", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "only-env")

		cfg, err := config.LoadFrom("missing", t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "missing", cfg.Env)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "none", cfg.Events.Driver)
		assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL())
	})

	t.Run("MissingSecret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")

		_, err := config.LoadFrom("missing", t.TempDir())
		assert.ErrorIs(t, err, config.ErrMissingSecret)
	})
}
