// config.go
// ----------
// Config carries the per-process settings of an AuthBridge: the backend base
// URL, the default request timeout and the shorter timeout used for the
// explicit token renewal call. LoadConfig reads the same settings, plus the
// session provider's, from an optional config file and AUTHBRIDGE_* env vars.
package authbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultTimeout        = 15 * time.Second
	DefaultRenewalTimeout = 5 * time.Second
	DefaultUserAgent      = "authbridge/0.1"
)

// Config allows per-client customization of timeouts, headers and logging.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`         // per request, default 15s
	RenewalTimeout time.Duration `mapstructure:"renewal_timeout"` // renewal call, default 5s
	UserAgent      string        `mapstructure:"user_agent"`

	// DefaultHeaders are applied to every request before per-call overrides.
	DefaultHeaders map[string]string `mapstructure:"default_headers"`

	// RespectRateLimits makes the executor wait out an exhausted backend
	// rate-limit window before sending.
	RespectRateLimits bool `mapstructure:"respect_rate_limits"`

	// RequestsPerSecond paces sends on the client side; zero disables it.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`

	Debug bool `mapstructure:"debug"`

	Session SessionConfig `mapstructure:"session"`

	Logger *slog.Logger `mapstructure:"-"`
}

// SessionConfig describes the OAuth2/OIDC session the CLI builds. Library
// users normally construct their SessionProvider directly.
type SessionConfig struct {
	Issuer             string   `mapstructure:"issuer"`
	TokenURL           string   `mapstructure:"token_url"`
	ClientID           string   `mapstructure:"client_id"`
	ClientSecret       string   `mapstructure:"client_secret"`
	RefreshToken       string   `mapstructure:"refresh_token"`
	AccessToken        string   `mapstructure:"access_token"`
	Scopes             []string `mapstructure:"scopes"`
	ClientCertPath     string   `mapstructure:"client_cert_path"`
	ClientCertPassword string   `mapstructure:"client_cert_password"`
}

// setDefaults fills in default values for zero-valued fields.
func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RenewalTimeout <= 0 {
		c.RenewalTimeout = DefaultRenewalTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		c.Burst = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("config: base_url is required")
	}
	return nil
}

// LoadConfig reads configuration from path (optional; any format viper
// understands) and from AUTHBRIDGE_* environment variables, which win.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("renewal_timeout", DefaultRenewalTimeout)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("respect_rate_limits", false)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("burst", 0)
	v.SetDefault("debug", false)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("AUTHBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{
		"base_url",
		"session.issuer",
		"session.token_url",
		"session.client_id",
		"session.client_secret",
		"session.refresh_token",
		"session.access_token",
		"session.scopes",
		"session.client_cert_path",
		"session.client_cert_password",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}
