// Package config loads and validates the server configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPPort      int    `json:"http_port" validate:"gte=0"`
	MetricsPort   int    `json:"metrics_port" validate:"gte=0"`
	LogLevel      string `json:"log_level" validate:"oneof=debug info warn error"`
	NumWorkers    int    `json:"num_workers" validate:"min=1"`
	DBPath        string `json:"db_path" validate:"required"`
	EncryptionKey string `json:"encryption_key" validate:"required,len=32"`

	Provider struct {
		ClientID    string `json:"client_id" validate:"required"`
		SSOBase     string `json:"sso_base" validate:"required,url"`
		APIBase     string `json:"api_base" validate:"required,url"`
		RedirectURI string `json:"redirect_uri" validate:"required,url"`
		Scopes      string `json:"scopes" validate:"required"`
	} `json:"provider"`

	Proxy struct {
		Endpoint string `json:"endpoint" validate:"omitempty,url"`
	} `json:"proxy"`

	Feed struct {
		URL string `json:"url" validate:"required,url"`
	} `json:"feed"`

	Refresh struct {
		Interval     Duration `json:"interval" validate:"min=1s"`
		PollInterval Duration `json:"poll_interval" validate:"min=10ms,max=1s"`
	} `json:"refresh"`

	Session struct {
		TTL Duration `json:"ttl" validate:"min=1m"`
	} `json:"session"`
}

// AuthURL is the provider's authorization endpoint.
func (c *Config) AuthURL() string {
	return strings.TrimSuffix(c.Provider.SSOBase, "/") + "/auth"
}

// TokenURL is the provider's token endpoint.
func (c *Config) TokenURL() string {
	return strings.TrimSuffix(c.Provider.SSOBase, "/") + "/token"
}

// ProfileURL is the member profile endpoint.
func (c *Config) ProfileURL() string {
	return strings.TrimSuffix(c.Provider.APIBase, "/") + "/users/me"
}

// Duration is a wrapper around time.Duration that implements JSON marshaling/unmarshaling
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads configuration from a file and overrides with environment
// variables. A .env file in the working directory is loaded first when
// present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = 2
	}
	if c.Refresh.Interval.Duration == 0 {
		c.Refresh.Interval = Duration{30 * time.Second}
	}
	if c.Refresh.PollInterval.Duration == 0 {
		c.Refresh.PollInterval = Duration{500 * time.Millisecond}
	}
	if c.Session.TTL.Duration == 0 {
		c.Session.TTL = Duration{24 * time.Hour}
	}
	if c.Provider.Scopes == "" {
		c.Provider.Scopes = "openid email"
	}
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PROVIDER_CLIENT_ID"); v != "" {
		c.Provider.ClientID = v
	}
	if v := os.Getenv("PROVIDER_SSO_BASE"); v != "" {
		c.Provider.SSOBase = v
	}
	if v := os.Getenv("PROVIDER_API_BASE"); v != "" {
		c.Provider.APIBase = v
	}
	if v := os.Getenv("PROVIDER_REDIRECT_URI"); v != "" {
		c.Provider.RedirectURI = v
	}
	if v := os.Getenv("PROXY_ENDPOINT"); v != "" {
		c.Proxy.Endpoint = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}

	if v := os.Getenv("HTTP_PORT"); v != "" {
		var err error
		c.HTTPPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing HTTP_PORT: %w", err)
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var err error
		c.MetricsPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing METRICS_PORT: %w", err)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing REFRESH_INTERVAL: %w", err)
		}
		c.Refresh.Interval = Duration{d}
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing SESSION_TTL: %w", err)
		}
		c.Session.TTL = Duration{d}
	}

	return nil
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	// Register custom validation for Duration
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
