package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// providerFields maps configuration keys to the environment suffix they are read from,
// e.g. VNPAY_MERCHANT_CODE fills "merchantCode" of provider "vnpay"
var providerFields = map[string]string{
	"merchantCode":  "MERCHANT_CODE",
	"secret":        "SECRET",
	"accessCode":    "ACCESS_CODE",
	"payUrl":        "PAY_URL",
	"apiUrl":        "API_URL",
	"returnUrl":     "RETURN_URL",
	"cancelUrl":     "CANCEL_URL",
	"currency":      "CURRENCY",
	"locale":        "LOCALE",
	"timezone":      "TIMEZONE",
	"version":       "VERSION",
	"user":          "USER",
	"password":      "PASSWORD",
	"webhookSecret": "WEBHOOK_SECRET",
	"environment":   "ENVIRONMENT",
	"timeout":       "TIMEOUT",
	"retryCount":    "RETRY_COUNT",
}

// ProviderConfig manages payment provider configurations
type ProviderConfig struct {
	configs map[string]map[string]string
	mu      sync.RWMutex
}

// NewProviderConfig creates a new provider configuration
func NewProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		configs: make(map[string]map[string]string),
	}
}

// LoadFromEnv reads PROVIDERS (comma separated) and the <NAME>_<FIELD> variables of every
// listed provider. APP_URL fills a missing return URL with <APP_URL>/callback/<name>.
func (c *ProviderConfig) LoadFromEnv() error {
	names := GetListEnv("PROVIDERS", nil)
	if len(names) == 0 {
		return fmt.Errorf("no payment providers configured: set PROVIDERS")
	}

	appURL := strings.TrimRight(GetEnv("APP_URL", ""), "/")
	for _, name := range names {
		name = strings.ToLower(name)
		prefix := strings.ToUpper(name) + "_"

		conf := make(map[string]string, len(providerFields))
		for key, suffix := range providerFields {
			if value := os.Getenv(prefix + suffix); value != "" {
				conf[key] = value
			}
		}
		if conf["returnUrl"] == "" && appURL != "" {
			conf["returnUrl"] = appURL + "/callback/" + name
		}
		if err := c.SetConfig(name, conf); err != nil {
			return err
		}
	}
	return nil
}

// SetConfig stores the configuration of one provider
func (c *ProviderConfig) SetConfig(providerName string, config map[string]string) error {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	if providerName == "" {
		return fmt.Errorf("provider name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]string, len(config))
	for k, v := range config {
		cp[k] = v
	}
	c.configs[providerName] = cp
	return nil
}

// GetConfig returns the configuration of one provider
func (c *ProviderConfig) GetConfig(providerName string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conf, ok := c.configs[strings.ToLower(providerName)]
	if !ok {
		return nil, fmt.Errorf("no configuration found for provider %s", providerName)
	}
	cp := make(map[string]string, len(conf))
	for k, v := range conf {
		cp[k] = v
	}
	return cp, nil
}

// GetAvailableProviders returns the sorted names of configured providers
func (c *ProviderConfig) GetAvailableProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.configs))
	for name := range c.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of every provider configuration keyed by provider name
func (c *ProviderConfig) All() map[string]map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]string, len(c.configs))
	for name, conf := range c.configs {
		cp := make(map[string]string, len(conf))
		for k, v := range conf {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}
