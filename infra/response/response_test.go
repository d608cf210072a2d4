package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusOK, "Order loaded", map[string]string{"status": "PENDING"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, map[string]any{"status": "PENDING"}, resp.Data)
}

func TestError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantError string
	}{
		{name: "with error", err: errors.New("boom"), wantError: "boom"},
		{name: "without error", err: nil, wantError: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			Error(w, http.StatusBadRequest, "Invalid request", tt.err)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, "Invalid request", resp.Message)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestFailureCarriesReason(t *testing.T) {
	w := httptest.NewRecorder()

	Failure(w, http.StatusPaymentRequired, "Payment declined", "InsufficientFunds", errors.New("code 51"))

	resp := decode(t, w)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "InsufficientFunds", resp.Reason)
	assert.Equal(t, "code 51", resp.Error)
}

func TestRaw(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{name: "explicit content type", contentType: "application/json", want: "application/json"},
		{name: "default content type", contentType: "", want: "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			Raw(w, http.StatusOK, tt.contentType, []byte("responsecode=1&desc=confirm-success"))

			assert.Equal(t, tt.want, w.Header().Get("Content-Type"))
			assert.Equal(t, "responsecode=1&desc=confirm-success", w.Body.String())
		})
	}
}

func BenchmarkSuccess(b *testing.B) {
	data := map[string]string{"status": "CONFIRMED"}
	for b.Loop() {
		w := httptest.NewRecorder()
		Success(w, http.StatusOK, "Benchmark", data)
	}
}
