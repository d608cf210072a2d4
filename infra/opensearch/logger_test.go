package opensearch

import (
	"context"
	"testing"
	"time"

	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ logger.Sink       = (*Logger)(nil)
	_ payment.AuditSink = (*Logger)(nil)
)

func TestLogger_LogSystemEvent(t *testing.T) {
	client, cluster := newTestClient(t, true)
	l := NewLogger(client)

	err := l.LogSystemEvent(context.Background(), logger.SystemLog{
		Timestamp: time.Now().UTC(),
		Level:     logger.LevelInfo,
		Message:   "order confirmed",
		OrderID:   "order-1",
	})
	require.NoError(t, err)

	docs := cluster.documents(SystemLogIndex)
	require.Len(t, docs, 1)
	assert.Equal(t, "order confirmed", docs[0]["message"])
	assert.Equal(t, "order-1", docs[0]["order_id"])
}

func TestLogger_RecordCallbackRedactsSignature(t *testing.T) {
	client, cluster := newTestClient(t, true)
	l := NewLogger(client)

	err := l.RecordCallback(context.Background(), payment.CallbackAudit{
		Provider: "vnpay",
		OrderID:  "order-1",
		Outcome:  "confirmed",
		Params: map[string]string{
			"vnp_TxnRef":     "order-1",
			"vnp_SecureHash": "abcdef",
		},
	})
	require.NoError(t, err)

	docs := cluster.documents(CallbackIndex)
	require.Len(t, docs, 1)
	params := docs[0]["params"].(map[string]any)
	assert.Equal(t, "order-1", params["vnp_TxnRef"])
	assert.Equal(t, redacted, params["vnp_SecureHash"])
}

func TestLogger_RecordRefundAndGetOrderAudit(t *testing.T) {
	client, _ := newTestClient(t, true)
	l := NewLogger(client)
	ctx := context.Background()

	require.NoError(t, l.RecordCallback(ctx, payment.CallbackAudit{Provider: "onepay", OrderID: "order-2", Outcome: "confirmed"}))
	require.NoError(t, l.RecordRefund(ctx, payment.RefundAudit{
		Provider:      "onepay",
		OrderID:       "order-2",
		ProviderTxnNo: "TX1",
		Amount:        "10.00",
		Success:       true,
		Code:          "0",
	}))

	audit, err := l.GetOrderAudit(ctx, "order-2")
	require.NoError(t, err)
	require.Len(t, audit.Callbacks, 1)
	require.Len(t, audit.Refunds, 1)
	assert.Equal(t, "confirmed", audit.Callbacks[0].Outcome)
	assert.Equal(t, "TX1", audit.Refunds[0].ProviderTxnNo)
	assert.True(t, audit.Refunds[0].Success)
}

func TestLogger_Disabled(t *testing.T) {
	client, cluster := newTestClient(t, false)
	l := NewLogger(client)

	assert.NoError(t, l.LogSystemEvent(context.Background(), map[string]string{"message": "x"}))
	assert.Empty(t, cluster.documents(SystemLogIndex))

	_, err := l.GetOrderAudit(context.Background(), "order-1")
	assert.Error(t, err)
}

func TestLogger_IndexError(t *testing.T) {
	client, cluster := newTestClient(t, true)
	cluster.mu.Lock()
	cluster.failDocs = true
	cluster.mu.Unlock()

	err := NewLogger(client).RecordRefund(context.Background(), payment.RefundAudit{OrderID: "o"})
	assert.Error(t, err)
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json secret",
			input: `{"secret":"abc","amount":"10"}`,
			want:  `{"secret":"***REDACTED***","amount":"10"}`,
		},
		{
			name:  "query signature",
			input: `vnp_Amount=100&vnp_SecureHash=deadbeef&vnp_TxnRef=1`,
			want:  `vnp_Amount=100&vnp_SecureHash=***REDACTED***&vnp_TxnRef=1`,
		},
		{
			name:  "nothing sensitive",
			input: `{"code":"00","message":"ok"}`,
			want:  `{"code":"00","message":"ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeForLog(tt.input))
		})
	}
}
