package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m map[string]string)
		wantErr string
		check   func(t *testing.T, c Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "vnpay", c.Name)
				assert.Equal(t, "sandbox", c.Environment)
				assert.Equal(t, defaultTimeout, c.Timeout)
				assert.Equal(t, defaultRetryCount, c.RetryCount)
				assert.Equal(t, time.UTC, c.Location())
				assert.False(t, c.IsProduction())
			},
		},
		{
			name: "timezone and overrides",
			mutate: func(m map[string]string) {
				m["timezone"] = "Asia/Ho_Chi_Minh"
				m["timeout"] = "5s"
				m["retryCount"] = "1"
				m["environment"] = "production"
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "Asia/Ho_Chi_Minh", c.Location().String())
				assert.Equal(t, 5*time.Second, c.Timeout)
				assert.Equal(t, 1, c.RetryCount)
				assert.True(t, c.IsProduction())
			},
		},
		{name: "missing merchant", mutate: func(m map[string]string) { delete(m, "merchantCode") }, wantErr: "MerchantCode"},
		{name: "bad return url", mutate: func(m map[string]string) { m["returnUrl"] = "not a url" }, wantErr: "ReturnURL"},
		{name: "bad currency", mutate: func(m map[string]string) { m["currency"] = "dong" }, wantErr: "Currency"},
		{name: "bad environment", mutate: func(m map[string]string) { m["environment"] = "staging" }, wantErr: "Environment"},
		{name: "bad timezone", mutate: func(m map[string]string) { m["timezone"] = "Mars/Base" }, wantErr: "timezone"},
		{name: "bad timeout", mutate: func(m map[string]string) { m["timeout"] = "-1s" }, wantErr: "timeout"},
		{name: "bad retry count", mutate: func(m map[string]string) { m["retryCount"] = "many" }, wantErr: "retryCount"},
		{name: "retry count too high", mutate: func(m map[string]string) { m["retryCount"] = "50" }, wantErr: "RetryCount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validConfig()
			if tt.mutate != nil {
				tt.mutate(raw)
			}
			c, err := ParseConfig(" VNPay ", raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindConfiguration))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestConfig_Require(t *testing.T) {
	c := Config{Name: "onepay"}
	assert.NoError(t, c.Require(map[string]string{"accessCode": "A"}))

	err := c.Require(map[string]string{"accessCode": " "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accessCode")
}
