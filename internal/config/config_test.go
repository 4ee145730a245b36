package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("AUTHGATE_TOKEN_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Token.TTL)
	assert.Equal(t, 10, cfg.Password.BcryptCost)
	assert.Equal(t, int64(3), cfg.DefaultRole)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
  allowed_origins: ["https://app.example.com"]
database:
  driver: SQLite
  dsn: /var/lib/authgate.db
token:
  secret: "`+testSecret+`"
  ttl: 30m
default_role: 5
`), 0o600))

	t.Setenv("AUTHGATE_HTTP_ADDR", ":7000")
	t.Setenv("AUTHGATE_BCRYPT_COST", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr, "env overrides file")
	assert.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/var/lib/authgate.db", cfg.Database.DSN)
	assert.Equal(t, 30*time.Minute, cfg.Token.TTL)
	assert.Equal(t, 12, cfg.Password.BcryptCost)
	assert.Equal(t, int64(5), cfg.DefaultRole)
	assert.Equal(t, "authgate", cfg.Token.Issuer, "unset keys keep defaults")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokne:\n  secret: x\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Token.Secret = testSecret
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Token.Secret = "short"
	bad.Password.BcryptCost = 40
	bad.Database.Driver = DriverPostgres
	bad.DefaultRole = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token.secret")
	assert.Contains(t, err.Error(), "bcrypt_cost")
	assert.Contains(t, err.Error(), "database.dsn")
	assert.Contains(t, err.Error(), "default_role")

	unknown := cfg
	unknown.Database.Driver = "mysql"
	assert.ErrorContains(t, unknown.Validate(), "unsupported database.driver")
}
