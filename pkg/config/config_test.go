package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, StoreDriverRedis, cfg.Store.Driver)
	assert.Equal(t, 720*time.Hour, cfg.Store.SessionTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "https://api.example.test", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Checkout.ShippingFeeAmount().IsZero())
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 168*time.Hour, cfg.Checkout.IdempotencyTTL)
	assert.Equal(t, time.Minute, cfg.RateLimit.LoginWindow)
	assert.Equal(t, 20, cfg.RateLimit.LoginIPLimit)
	assert.True(t, cfg.Redis.Configured())
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	require.NoError(t, os.Unsetenv(EnvAppEnv))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, "cassandra")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DBDriverNeedsDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStoreDriver, "SQLite")

	_, err := Load()
	require.Error(t, err)

	t.Setenv(EnvDBDSN, "file::memory:?cache=shared")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.True(t, cfg.Store.UsesDB())
}

func TestLoad_RedisDriverNeedsAddress(t *testing.T) {
	setMinimalEnv(t)
	require.NoError(t, os.Unsetenv(EnvRedisURL))

	_, err := Load()
	require.Error(t, err)

	t.Setenv(EnvStoreDriver, StoreDriverMemory)
	_, err = Load()
	require.NoError(t, err)
}

func TestLoad_PubSubTopicNeedsProject(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvPubSubCartTopic, "cart-events")

	_, err := Load()
	require.Error(t, err)

	t.Setenv(EnvGCPProjectID, "storefront-dev")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.PubSub.Enabled())
	assert.Equal(t, 256, cfg.PubSub.RelayBuffer)
}

func TestLoad_RejectsInvalidShippingFee(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvShippingFee, "free")
	_, err := Load()
	require.Error(t, err)

	t.Setenv(EnvShippingFee, "-5")
	_, err = Load()
	require.Error(t, err)

	t.Setenv(EnvShippingFee, " 25.50 ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "25.5", cfg.Checkout.ShippingFeeAmount().String())
}

func TestCheckoutShippingFee(t *testing.T) {
	assert.Equal(t, "25.5", CheckoutConfig{ShippingFee: " 25.50 "}.ShippingFeeAmount().String())
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvJWTSecret, "secret")
	t.Setenv(EnvBackendURL, "https://api.example.test")
	require.NoError(t, os.Unsetenv(EnvStoreDriver))
	require.NoError(t, os.Unsetenv(EnvDBDSN))
	require.NoError(t, os.Unsetenv(EnvGCPProjectID))
	require.NoError(t, os.Unsetenv(EnvPubSubCartTopic))
	require.NoError(t, os.Unsetenv(EnvShippingFee))
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}
