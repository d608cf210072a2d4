package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mstgnz/mediapay/payment"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Logger indexes system log entries and payment audit entries
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// LogSystemEvent indexes a system log entry
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	return l.index(ctx, SystemLogIndex, entry)
}

// RecordCallback indexes a callback audit entry with sensitive parameters redacted
func (l *Logger) RecordCallback(ctx context.Context, entry payment.CallbackAudit) error {
	if len(entry.Params) > 0 {
		params := make(map[string]string, len(entry.Params))
		for k, v := range entry.Params {
			if isSensitiveKey(k) {
				v = redacted
			}
			params[k] = v
		}
		entry.Params = params
	}
	return l.index(ctx, CallbackIndex, entry)
}

// RecordRefund indexes a refund audit entry
func (l *Logger) RecordRefund(ctx context.Context, entry payment.RefundAudit) error {
	entry.Message = SanitizeForLog(entry.Message)
	return l.index(ctx, RefundIndex, entry)
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	if !l.client.IsEnabled() {
		return nil
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

// OrderAudit is the audit trail of one order
type OrderAudit struct {
	Callbacks []payment.CallbackAudit `json:"callbacks"`
	Refunds   []payment.RefundAudit   `json:"refunds"`
}

// GetOrderAudit returns the most recent callback and refund audit entries of an order
func (l *Logger) GetOrderAudit(ctx context.Context, orderID string) (*OrderAudit, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	query := map[string]any{
		"term": map[string]any{"order_id": orderID},
	}

	audit := &OrderAudit{}
	if err := l.search(ctx, CallbackIndex, query, &audit.Callbacks); err != nil {
		return nil, err
	}
	if err := l.search(ctx, RefundIndex, query, &audit.Refunds); err != nil {
		return nil, err
	}
	return audit, nil
}

// search runs query against indexName and decodes the hit sources into out (a pointer to a slice)
func (l *Logger) search(ctx context.Context, indexName string, query map[string]any, out any) error {
	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": defaultPageSize,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode search results: %w", err)
	}

	sources := make([]json.RawMessage, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		sources[i] = hit.Source
	}
	joined, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	return json.Unmarshal(joined, out)
}

const redacted = "***REDACTED***"

var sensitiveFields = []string{
	"vnp_SecureHash", "vpc_SecureHash", "secret", "password", "token",
	"authorization", "x-api-key", "cardNumber", "card_number", "cvv", "cvc",
}

func isSensitiveKey(key string) bool {
	for _, f := range sensitiveFields {
		if strings.EqualFold(key, f) {
			return true
		}
	}
	return false
}

var sanitizePatterns = func() []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, field := range sensitiveFields {
		q := regexp.QuoteMeta(field)
		out = append(out,
			regexp.MustCompile(`(?i)"`+q+`"\s*:\s*"[^"]*"`),
			regexp.MustCompile(`(?i)\b`+q+`=[^&\s]*`),
		)
	}
	return out
}()

// SanitizeForLog removes sensitive values from free text before it is indexed
func SanitizeForLog(data string) string {
	result := data
	for i, re := range sanitizePatterns {
		field := sensitiveFields[i/2]
		if i%2 == 0 {
			result = re.ReplaceAllString(result, `"`+field+`":"`+redacted+`"`)
		} else {
			result = re.ReplaceAllString(result, field+"="+redacted)
		}
	}
	return result
}
