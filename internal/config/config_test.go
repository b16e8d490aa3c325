package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("COFFEE_PORT", "8081")
	t.Setenv("COFFEE_LOG_JSON", "false")
	t.Setenv("COFFEE_AMOUNT_TOLERANCE", "2.5")
	t.Setenv("MOMO_SECRET_KEY", "momo-secret")
	t.Setenv("MOMO_TIMEOUT", "5s")
	t.Setenv("VNP_HASHSECRET", "vnp-secret")
	t.Setenv("VNP_RETURN_URL", "https://shop.example/vnpay/return/")

	c := EnvDefaults()
	assert.Equal(t, 8081, c.Port)
	assert.False(t, c.LogJSON)
	assert.Equal(t, "2.5", c.AmountTolerance.String())
	assert.Equal(t, "momo-secret", c.MoMo.SecretKey)
	assert.Equal(t, 5*time.Second, c.MoMo.Timeout)
	assert.Equal(t, "vnp-secret", c.VNPay.HashSecret)
	assert.Equal(t, "https://shop.example/vnpay/return/ipn", c.VNPay.IPNURL)
}

func TestFromEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("COFFEE_PORT", "eighty")
	t.Setenv("COFFEE_AMOUNT_TOLERANCE", "-3")
	t.Setenv("MOMO_TIMEOUT", "soon")

	c := EnvDefaults()
	d := Default()
	assert.Equal(t, d.Port, c.Port)
	assert.True(t, d.AmountTolerance.Equal(c.AmountTolerance))
	assert.Equal(t, 30*time.Second, c.MoMo.Timeout)
}

func TestFromEnv_ProdEndpoints(t *testing.T) {
	t.Setenv("COFFEE_ENV", "prod")
	c := EnvDefaults()
	assert.Equal(t, "https://payment.momo.vn/v2/gateway/api/create", c.MoMo.Endpoint)
	assert.Equal(t, "https://pay.vnpay.vn/vpcpay.html", c.VNPay.PayURL)
}

func TestValidate(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	c.Env = "prod"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VNP_TMNCODE")

	c.JWTSecret = "j"
	c.MoMo.AccessKey, c.MoMo.SecretKey = "a", "s"
	c.VNPay.TmnCode, c.VNPay.HashSecret = "t", "h"
	assert.NoError(t, c.Validate())

	c.Port = 0
	assert.Error(t, c.Validate())
}
