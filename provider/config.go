package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // provider timezones must resolve on hosts without a zoneinfo database

	"github.com/go-playground/validator/v10"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultRetryCount = 3
)

// Config is the injected configuration of one gateway instance
type Config struct {
	Name          string `validate:"required"`
	MerchantCode  string `validate:"required"`
	Secret        string `validate:"required"`
	PayURL        string `validate:"omitempty,url"`
	APIURL        string `validate:"omitempty,url"`
	ReturnURL     string `validate:"required,url"`
	CancelURL     string `validate:"omitempty,url"`
	Currency      string `validate:"required,len=3"`
	Locale        string
	Version       string
	AccessCode    string
	User          string
	Password      string
	WebhookSecret string
	Environment   string `validate:"oneof=sandbox test production"`
	Timeout       time.Duration
	RetryCount    int `validate:"gte=0,lte=10"`

	location *time.Location
}

var configValidator = validator.New()

// ParseConfig turns a flat configuration map (as loaded from the environment) into a
// validated Config. Errors are KindConfiguration.
func ParseConfig(name string, raw map[string]string) (Config, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	conf := Config{
		Name:          name,
		MerchantCode:  raw["merchantCode"],
		Secret:        raw["secret"],
		PayURL:        raw["payUrl"],
		APIURL:        raw["apiUrl"],
		ReturnURL:     raw["returnUrl"],
		CancelURL:     raw["cancelUrl"],
		Currency:      strings.ToUpper(raw["currency"]),
		Locale:        raw["locale"],
		Version:       raw["version"],
		AccessCode:    raw["accessCode"],
		User:          raw["user"],
		Password:      raw["password"],
		WebhookSecret: raw["webhookSecret"],
		Environment:   raw["environment"],
		Timeout:       defaultTimeout,
		RetryCount:    defaultRetryCount,
	}

	if conf.Environment == "" {
		conf.Environment = "sandbox"
	}

	if v := raw["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ConfigError(name, "invalid timeout %q", v)
		}
		conf.Timeout = d
	}

	if v := raw["retryCount"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, ConfigError(name, "invalid retryCount %q", v)
		}
		conf.RetryCount = n
	}

	if tz := raw["timezone"]; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, ConfigError(name, "invalid timezone %q: %v", tz, err)
		}
		conf.location = loc
	}

	if err := configValidator.Struct(conf); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return Config{}, ConfigError(name, "invalid fields: %s", strings.Join(fields, ", "))
		}
		return Config{}, ConfigError(name, "%v", err)
	}

	return conf, nil
}

// Location returns the configured timezone, UTC when none was given
func (c Config) Location() *time.Location {
	return c.LocationOr(time.UTC)
}

// LocationOr returns the configured timezone or fallback when none was given
func (c Config) LocationOr(fallback *time.Location) *time.Location {
	if c.location == nil {
		return fallback
	}
	return c.location
}

// IsProduction reports whether the gateway talks to the live provider environment
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Require returns a configuration error naming the first empty field
func (c Config) Require(fields map[string]string) error {
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return ConfigError(c.Name, "required field '%s' is missing", name)
		}
	}
	return nil
}
