package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/contactflow/internal/api"
	"github.com/starford/contactflow/internal/webhook"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Webhook lookup scopes.
const (
	WebhookScopeUser = "user"
	WebhookScopeAll  = "all"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Webhook WebhookConfig     `yaml:"webhook"`
	SSE     SSEConfig         `yaml:"sse"`
	MCP     MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Webhook.Validate(); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return c.SSE.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how the acting user is resolved:
//   - "disabled" (default): the X-User-ID header names the user, falling back
//     to DefaultUser. Suitable for local dev.
//   - "token": Bearer token authentication; Tokens maps each token to a user id.
type AuthConfig struct {
	Mode        string            `yaml:"mode"`
	Tokens      map[string]string `yaml:"tokens"`
	DefaultUser string            `yaml:"default_user"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken {
		if len(c.Tokens) == 0 {
			return fmt.Errorf("auth: mode is %q but no tokens are configured", AuthModeToken)
		}
		for token, user := range c.Tokens {
			if token == "" || user == "" {
				return fmt.Errorf("auth: tokens must map a non-empty token to a non-empty user id")
			}
		}
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// Settings converts the configuration into the API middleware settings.
func (c *AuthConfig) Settings() api.AuthSettings {
	return api.AuthSettings{
		Enabled:     c.AuthEnabled(),
		Tokens:      c.Tokens,
		DefaultUser: c.DefaultUser,
	}
}

// WebhookConfig holds outbound webhook delivery settings.
type WebhookConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RoutingPrefix  string        `yaml:"routing_prefix"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	Scope          string        `yaml:"scope"`
}

// Validate validates the webhook configuration.
func (c *WebhookConfig) Validate() error {
	if c.Scope == "" {
		c.Scope = WebhookScopeUser
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxConcurrency, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.QueueSize, validation.Min(0)),
		validation.Field(&c.Scope, validation.In(WebhookScopeUser, WebhookScopeAll)),
	)
}

// Dispatcher converts the configuration into dispatcher settings.
func (c *WebhookConfig) Dispatcher() webhook.Config {
	return webhook.Config{
		BaseURL:        c.BaseURL,
		RoutingPrefix:  c.RoutingPrefix,
		Timeout:        c.Timeout,
		MaxConcurrency: c.MaxConcurrency,
		ScopeAll:       c.Scope == WebhookScopeAll,
	}
}

// SSEConfig holds live update settings.
type SSEConfig struct {
	StatsThrottle time.Duration `yaml:"stats_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StatsThrottle, validation.Min(time.Duration(0))),
	)
}

// MCPConfig holds settings for the stdio MCP server.
type MCPConfig struct {
	UserID string `yaml:"user_id"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./contactflow.db",
		},
		Auth: AuthConfig{
			Mode:        AuthModeDisabled,
			DefaultUser: "local",
		},
		Webhook: WebhookConfig{
			BaseURL:        "http://localhost:5678",
			RoutingPrefix:  webhook.DefaultRoutingPrefix,
			Timeout:        10 * time.Second,
			MaxConcurrency: 8,
			Workers:        2,
			QueueSize:      256,
			Scope:          WebhookScopeUser,
		},
		SSE: SSEConfig{
			StatsThrottle: 2 * time.Second,
		},
		MCP: MCPConfig{
			UserID: "local",
		},
	}
}
