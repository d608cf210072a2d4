package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/infra/metrics"
	"github.com/sony/gobreaker"
)

// HTTPClientConfig represents configuration for the provider API transport
type HTTPClientConfig struct {
	Provider       string
	BaseURL        string
	Timeout        time.Duration
	RetryCount     int
	RetryWait      time.Duration
	DefaultHeaders map[string]string
}

// HTTPResponse represents a provider API answer
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ProviderHTTPClient sends requests to provider APIs with a timeout, bounded retries
// on transport and 5xx failures, and a circuit breaker per provider
type ProviderHTTPClient struct {
	config  *HTTPClientConfig
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// NewProviderHTTPClient creates a new provider HTTP client
func NewProviderHTTPClient(config *HTTPClientConfig) *ProviderHTTPClient {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RetryWait == 0 {
		config.RetryWait = 250 * time.Millisecond
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(config.RetryWait * 8).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "MediaPay/1.0")
	for key, value := range config.DefaultHeaders {
		client.SetHeader(key, value)
	}

	providerName := config.Provider
	metrics.CircuitBreakerState.WithLabelValues(providerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        providerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logger.Warn("Provider circuit breaker state changed", logger.LogContext{
				Provider: name,
				Fields: map[string]any{
					"from": from.String(),
					"to":   to.String(),
				},
			})
		},
	})

	return &ProviderHTTPClient{
		config:  config,
		client:  client,
		breaker: breaker,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// PostJSON sends body as JSON to endpoint
func (c *ProviderHTTPClient) PostJSON(ctx context.Context, op, endpoint string, body any) (*HTTPResponse, error) {
	return c.send(ctx, op, endpoint, func(r *resty.Request) *resty.Request {
		return r.SetHeader("Content-Type", "application/json").SetBody(body)
	})
}

// PostForm sends form as application/x-www-form-urlencoded to endpoint
func (c *ProviderHTTPClient) PostForm(ctx context.Context, op, endpoint string, form map[string]string) (*HTTPResponse, error) {
	return c.send(ctx, op, endpoint, func(r *resty.Request) *resty.Request {
		return r.SetFormData(form)
	})
}

// send runs one request through the circuit breaker. Any answer below 500 is returned
// to the caller for parsing; transport failures, 5xx answers and an open breaker become
// KindNetwork errors.
func (c *ProviderHTTPClient) send(ctx context.Context, op, endpoint string, prepare func(*resty.Request) *resty.Request) (*HTTPResponse, error) {
	fullURL := c.buildURL(endpoint)
	started := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := prepare(c.client.R().SetContext(ctx)).Post(fullURL)
		if err != nil {
			return nil, err
		}
		out := &HTTPResponse{
			StatusCode: resp.StatusCode(),
			Headers:    resp.Header(),
			Body:       resp.Body(),
		}
		if out.StatusCode >= http.StatusInternalServerError {
			return out, fmt.Errorf("HTTP error %d: %s", out.StatusCode, truncate(string(out.Body), 256))
		}
		return out, nil
	})

	status := 0
	if resp, ok := result.(*HTTPResponse); ok && resp != nil {
		status = resp.StatusCode
	}
	metrics.ObserveProviderCall(c.config.Provider, op, status, started)

	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(c.config.Provider).Inc()
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			err = fmt.Errorf("circuit breaker is open: %w", err)
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			err = fmt.Errorf("circuit breaker is half-open: %w", err)
		}
		return nil, NetworkError(c.config.Provider, op, err)
	}
	return result.(*HTTPResponse), nil
}

// BreakerState returns the current circuit breaker state name
func (c *ProviderHTTPClient) BreakerState() string {
	return c.breaker.State().String()
}

func joinURL(base, endpoint string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// buildURL resolves endpoint against the configured base URL; absolute URLs are used as is
func (c *ProviderHTTPClient) buildURL(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.IsAbs() {
		return endpoint
	}
	if endpoint == "" {
		return c.config.BaseURL
	}
	return joinURL(c.config.BaseURL, endpoint)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
