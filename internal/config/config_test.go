package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnvs provides the gateway credentials every Load call needs.
func setRequiredEnvs(t *testing.T) {
	t.Helper()
	t.Setenv("VNPAY_TMN_CODE", "TESTMERCH")
	t.Setenv("VNPAY_HASH_SECRET", "test-secret")
	t.Setenv("VNPAY_RETURN_URL", "https://shop.example.com/payment/return")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvs(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30, cfg.CartTTLDays)
	assert.Equal(t, 15, cfg.PaymentExpiryMins)
	assert.Equal(t, "TESTMERCH", cfg.VNPayTmnCode)
}

func TestLoad_MissingGatewaySecretFailsStartup(t *testing.T) {
	t.Setenv("VNPAY_TMN_CODE", "TESTMERCH")
	t.Setenv("VNPAY_RETURN_URL", "https://shop.example.com/payment/return")
	// VNPAY_HASH_SECRET deliberately unset.

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VNPAY_HASH_SECRET")
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	setRequiredEnvs(t)
	t.Setenv("HTTP_PORT", "0")

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidReturnURL(t *testing.T) {
	t.Setenv("VNPAY_TMN_CODE", "TESTMERCH")
	t.Setenv("VNPAY_HASH_SECRET", "test-secret")
	t.Setenv("VNPAY_RETURN_URL", "not a url")

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VNPAY_RETURN_URL")
}

func TestLoad_ZeroCartTTL(t *testing.T) {
	setRequiredEnvs(t)
	t.Setenv("CART_TTL_DAYS", "0")

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "CART_TTL_DAYS")
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db.internal",
		PostgresPort: 5433,
		PostgresUser: "storefront",
		PostgresPass: "pw",
		PostgresDB:   "orders_db",
		PostgresSSL:  "require",
	}

	assert.Equal(t, "postgres://storefront:pw@db.internal:5433/orders_db?sslmode=require", cfg.PostgresDSN())
}
