package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("PROVIDERS", "vnpay, OnePay")
	t.Setenv("APP_URL", "https://shop.example/")
	t.Setenv("VNPAY_MERCHANT_CODE", "TMN01")
	t.Setenv("VNPAY_SECRET", "secret")
	t.Setenv("VNPAY_TIMEZONE", "Asia/Ho_Chi_Minh")
	t.Setenv("ONEPAY_MERCHANT_CODE", "OP01")
	t.Setenv("ONEPAY_RETURN_URL", "https://shop.example/custom")

	pc := NewProviderConfig()
	require.NoError(t, pc.LoadFromEnv())

	assert.Equal(t, []string{"onepay", "vnpay"}, pc.GetAvailableProviders())

	vnpay, err := pc.GetConfig("VNPAY")
	require.NoError(t, err)
	assert.Equal(t, "TMN01", vnpay["merchantCode"])
	assert.Equal(t, "secret", vnpay["secret"])
	assert.Equal(t, "Asia/Ho_Chi_Minh", vnpay["timezone"])
	assert.Equal(t, "https://shop.example/callback/vnpay", vnpay["returnUrl"])

	onepay, err := pc.GetConfig("onepay")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/custom", onepay["returnUrl"])
	_, hasSecret := onepay["secret"]
	assert.False(t, hasSecret)
}

func TestProviderConfig_LoadFromEnvRequiresProviders(t *testing.T) {
	t.Setenv("PROVIDERS", "")
	assert.Error(t, NewProviderConfig().LoadFromEnv())
}

func TestProviderConfig_SetGet(t *testing.T) {
	pc := NewProviderConfig()

	assert.Error(t, pc.SetConfig(" ", map[string]string{}))

	input := map[string]string{"secret": "a"}
	require.NoError(t, pc.SetConfig("Stripe", input))
	input["secret"] = "mutated"

	conf, err := pc.GetConfig("stripe")
	require.NoError(t, err)
	assert.Equal(t, "a", conf["secret"])

	_, err = pc.GetConfig("missing")
	assert.Error(t, err)

	all := pc.All()
	assert.Len(t, all, 1)
	assert.Equal(t, "a", all["stripe"]["secret"])
}
