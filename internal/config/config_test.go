package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Chain.MonadContract = "0x1111111111111111111111111111111111111111"
	return cfg
}

func TestDefaultsValidateWithCredentials(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(10143), cfg.Chain.DefaultChainID)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Reconcile.IntentTTL.Duration)
	assert.False(t, cfg.Archive.Enabled)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "verbose"
	cfg.Chain.DefaultChainID = 0
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "bogus"`)
	assert.Contains(t, msg, `unknown log_level "verbose"`)
	assert.Contains(t, msg, "private_key must be set")
	assert.Contains(t, msg, "default_chain_id must be positive")
	assert.Contains(t, msg, "at least one contract address")
	assert.Contains(t, msg, "postgres: host must not be empty")
	assert.Contains(t, msg, "redis: addr must not be empty")
}

func TestValidateSkipsHostChecksWithDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/betledger"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""

	assert.NoError(t, cfg.Validate())
}

func TestValidateS3OnlyWhenArchiving(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Endpoint = ""
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.Archive.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: endpoint must not be empty")
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestLoadParsesTOMLAndDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "reconcile"
log_level = "debug"

[wallet]
private_key = "0xabc"

[chain]
default_chain_id = 1
ethereum_contract = "0x2222222222222222222222222222222222222222"

[reconcile]
interval = "45s"
intent_ttl = "5m"

[server]
enabled = false
rate_limit = 50
rate_limit_window = "30s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "reconcile", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(1), cfg.Chain.DefaultChainID)
	assert.Equal(t, 45*time.Second, cfg.Reconcile.Interval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Reconcile.IntentTTL.Duration)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, 50, cfg.Server.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.RateLimitWindow.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "betledger", cfg.Postgres.Database)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "serve"`), 0o644))

	t.Setenv("BETLEDGER_WALLET_PRIVATE_KEY", "0xenvkey")
	t.Setenv("BETLEDGER_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("BETLEDGER_POSTGRES_PORT", "5433")
	t.Setenv("BETLEDGER_ARCHIVE_ENABLED", "true")
	t.Setenv("BETLEDGER_RECONCILE_INTERVAL", "2m")
	t.Setenv("BETLEDGER_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0xenvkey", cfg.Wallet.PrivateKey)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Reconcile.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "secret"
	cfg.Server.APIKey = "apikey"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.AccessKey)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// The source config is not touched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, "0xdeadbeef", cfg.Wallet.PrivateKey)
}
