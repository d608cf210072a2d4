package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPClient(baseURL string, retries int) *ProviderHTTPClient {
	return NewProviderHTTPClient(&HTTPClientConfig{
		Provider:   "test-" + time.Now().Format("150405.000000000"),
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		RetryCount: retries,
		RetryWait:  time.Millisecond,
	})
}

func TestProviderHTTPClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merchant_webapi/api/transaction", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refund", body["vnp_Command"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vnp_ResponseCode":"00"}`))
	}))
	defer srv.Close()

	c := newTestHTTPClient(srv.URL, 0)
	resp, err := c.PostJSON(context.Background(), "refund", "merchant_webapi/api/transaction", map[string]string{"vnp_Command": "refund"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"vnp_ResponseCode":"00"}`, string(resp.Body))
}

func TestProviderHTTPClient_PostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refund", r.PostForm.Get("vpc_Command"))
		assert.Equal(t, "Order 1", r.PostForm.Get("vpc_OrderInfo"))
		_, _ = w.Write([]byte("vpc_TxnResponseCode=0"))
	}))
	defer srv.Close()

	c := newTestHTTPClient(srv.URL, 0)
	resp, err := c.PostForm(context.Background(), "refund", srv.URL+"/onecomm-pay/Vpcdps.op", map[string]string{
		"vpc_Command":   "refund",
		"vpc_OrderInfo": "Order 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "vpc_TxnResponseCode=0", string(resp.Body))
}

func TestProviderHTTPClient_ClientErrorsAreReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	resp, err := newTestHTTPClient(srv.URL, 2).PostJSON(context.Background(), "refund", "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProviderHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := newTestHTTPClient(srv.URL, 3).PostJSON(context.Background(), "refund", "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestProviderHTTPClient_NetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestHTTPClient(srv.URL, 1)
	_, err := c.PostJSON(context.Background(), "refund", "", map[string]string{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))

	// unreachable host
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	_, err = newTestHTTPClient(closedURL, 0).PostJSON(context.Background(), "refund", "", map[string]string{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
}

func TestProviderHTTPClient_CircuitBreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestHTTPClient(srv.URL, 0)
	for i := 0; i < 3; i++ {
		_, err := c.PostJSON(context.Background(), "refund", "", map[string]string{})
		require.Error(t, err)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.PostJSON(context.Background(), "refund", "", map[string]string{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "open breaker must not reach the provider")
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://a/b", joinURL("https://a/", "/b"))
	assert.Equal(t, "https://a/b", joinURL("https://a", "b"))
	assert.Equal(t, "https://a/b", joinURL("https://a/", "b"))
}
