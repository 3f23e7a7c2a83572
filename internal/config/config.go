package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	PredictionAPIURL     string        `mapstructure:"PREDICTION_API_URL"`
	CustomerID           string        `mapstructure:"CUSTOMER_ID"`
	RemoteTimeout        time.Duration `mapstructure:"REMOTE_TIMEOUT"`
	RiskFetchConcurrency int           `mapstructure:"RISK_FETCH_CONCURRENCY"`
	SkipProxyWarning     bool          `mapstructure:"SKIP_PROXY_WARNING"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSigningKey       string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer           string        `mapstructure:"AUTH_ISSUER"`
	SessionTTL           time.Duration `mapstructure:"SESSION_TTL"`
	OAuthClientID        string        `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthClientSecret    string        `mapstructure:"OAUTH_CLIENT_SECRET"`
	OAuthRedirectURL     string        `mapstructure:"OAUTH_REDIRECT_URL"`
	OAuthUserInfoURL     string        `mapstructure:"OAUTH_USERINFO_URL"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	LogFile              string        `mapstructure:"LOG_FILE"`
	BodyLimit            string        `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "PREDICTION_API_URL", "CUSTOMER_ID", "REMOTE_TIMEOUT",
	"RISK_FETCH_CONCURRENCY", "SKIP_PROXY_WARNING", "DATABASE_URL",
	"DB_MAX_CONNS", "DB_MIN_CONNS", "AUTH_SIGNING_KEY", "AUTH_ISSUER",
	"SESSION_TTL", "OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "OAUTH_REDIRECT_URL",
	"OAUTH_USERINFO_URL", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"LOG_FILE", "BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("PREDICTION_API_URL", "http://localhost:8080")
	v.SetDefault("CUSTOMER_ID", "CUST1")
	v.SetDefault("REMOTE_TIMEOUT", "10s")
	v.SetDefault("RISK_FETCH_CONCURRENCY", 8)
	v.SetDefault("SKIP_PROXY_WARNING", true)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_ISSUER", "readmission-dashboard")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("OAUTH_USERINFO_URL", "https://www.googleapis.com/oauth2/v2/userinfo")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "64K")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// comma-separated; entries are trimmed and blanks dropped
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.PredictionAPIURL = strings.TrimRight(cfg.PredictionAPIURL, "/")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// OAuthEnabled reports whether federated sign-in has client credentials.
func (c *Config) OAuthEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// Validate checks that the configuration is safe to run. Production requires a
// signing key of at least 32 bytes and a database for the user store.
func (c *Config) Validate() error {
	u, err := url.Parse(c.PredictionAPIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PREDICTION_API_URL must be an absolute http(s) URL, got %q", c.PredictionAPIURL)
	}
	if c.CustomerID == "" {
		return fmt.Errorf("CUSTOMER_ID is required")
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive, got %s", c.RemoteTimeout)
	}
	if c.RiskFetchConcurrency < 1 {
		return fmt.Errorf("RISK_FETCH_CONCURRENCY must be at least 1, got %d", c.RiskFetchConcurrency)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}

	if c.IsProduction() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	if c.OAuthClientID != "" && c.OAuthRedirectURL == "" {
		return fmt.Errorf("OAUTH_REDIRECT_URL is required when OAUTH_CLIENT_ID is set")
	}

	return nil
}
