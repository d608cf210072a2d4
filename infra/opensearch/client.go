package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/mediapay/infra/config"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	indexPrefix     = "mediapay"
	SystemLogIndex  = indexPrefix + "-system-logs"
	CallbackIndex   = indexPrefix + "-callbacks"
	RefundIndex     = indexPrefix + "-refunds"
	setupTimeout    = 10 * time.Second
	defaultPageSize = 100
)

// Client wraps the OpenSearch client
type Client struct {
	client  *opensearch.Client
	enabled bool
}

// NewClient creates a new OpenSearch client and makes sure the indices exist
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Environment != "production",
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	osClient := &Client{
		client:  client,
		enabled: cfg.EnableLogging,
	}

	if osClient.enabled {
		ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
		defer cancel()
		if err := osClient.setupIndices(ctx); err != nil {
			logger.Warn("Failed to setup OpenSearch indices", logger.LogContext{
				Fields: map[string]any{"error": err.Error()},
			})
		}
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.enabled
}

func (c *Client) setupIndices(ctx context.Context) error {
	var failed []string
	for index, mapping := range indexMappings {
		exists, err := c.indexExists(ctx, index)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", index, err))
			continue
		}
		if exists {
			continue
		}
		if err := c.createIndex(ctx, index, mapping); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", index, err))
			continue
		}
		logger.Info("Created OpenSearch index", logger.LogContext{Fields: map[string]any{"index": index}})
	}
	if len(failed) > 0 {
		return fmt.Errorf("index setup failed: %s", strings.Join(failed, "; "))
	}
	return nil
}

func (c *Client) indexExists(ctx context.Context, indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

func (c *Client) createIndex(ctx context.Context, indexName, mapping string) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}
	return nil
}

var indexMappings = map[string]string{
	SystemLogIndex: `{
		"mappings": {
			"properties": {
				"timestamp":   {"type": "date"},
				"level":       {"type": "keyword"},
				"message":     {"type": "text"},
				"order_id":    {"type": "keyword"},
				"provider":    {"type": "keyword"},
				"request_id":  {"type": "keyword"},
				"error":       {"type": "text"},
				"environment": {"type": "keyword"},
				"service":     {"type": "keyword"},
				"version":     {"type": "keyword"}
			}
		},
		"settings": {"number_of_shards": 1, "number_of_replicas": 0}
	}`,
	CallbackIndex: `{
		"mappings": {
			"properties": {
				"timestamp":       {"type": "date"},
				"provider":        {"type": "keyword"},
				"order_id":        {"type": "keyword"},
				"provider_txn_no": {"type": "keyword"},
				"result_code":     {"type": "keyword"},
				"success":         {"type": "boolean"},
				"amount":          {"type": "keyword"},
				"outcome":         {"type": "keyword"},
				"order_status":    {"type": "keyword"},
				"error":           {"type": "text"},
				"params":          {"type": "object", "enabled": false}
			}
		},
		"settings": {"number_of_shards": 1, "number_of_replicas": 0}
	}`,
	RefundIndex: `{
		"mappings": {
			"properties": {
				"timestamp":       {"type": "date"},
				"provider":        {"type": "keyword"},
				"order_id":        {"type": "keyword"},
				"request_id":      {"type": "keyword"},
				"provider_txn_no": {"type": "keyword"},
				"amount":          {"type": "keyword"},
				"operator_id":     {"type": "keyword"},
				"status_code":     {"type": "integer"},
				"success":         {"type": "boolean"},
				"code":            {"type": "keyword"},
				"message":         {"type": "text"},
				"refund_id":       {"type": "keyword"},
				"error":           {"type": "text"},
				"duration_ms":     {"type": "long"}
			}
		},
		"settings": {"number_of_shards": 1, "number_of_replicas": 0}
	}`,
}
