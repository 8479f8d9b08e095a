package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Bundles BundlesConfig     `yaml:"bundles"`
	Auth    AuthConfig        `yaml:"auth"`
	Feed    FeedConfig        `yaml:"feed"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Bundles.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Feed.Validate()
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

// BundlesConfig holds the schema bundle directory settings. With Watch
// enabled the directory is monitored and new or changed bundle files are
// imported automatically; without it bundles are only synced at startup.
type BundlesConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the bundles configuration.
func (c *BundlesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
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
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// FeedConfig controls where live channel data comes from and how fast
// channel update events reach SSE clients.
//
// UpstreamURL, when set, points the websocket connector at an external feed.
// The simulator generates random-walk market data locally. Both sources may
// run at once; they publish into the same hub.
type FeedConfig struct {
	UpstreamURL string          `yaml:"upstream_url"`
	Simulator   SimulatorConfig `yaml:"simulator"`
	ThrottleMS  int             `yaml:"channel_throttle_ms"`
}

// ChannelThrottle returns the minimum spacing between channel.updated events
// per channel key.
func (c *FeedConfig) ChannelThrottle() time.Duration {
	return time.Duration(c.ThrottleMS) * time.Millisecond
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ThrottleMS, validation.Min(0)),
	); err != nil {
		return err
	}
	return c.Simulator.Validate()
}

// SimulatorConfig configures the built-in market data simulator.
type SimulatorConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Symbols    []string `yaml:"symbols"`
	IntervalMS int      `yaml:"interval_ms"`
}

// Interval returns the simulator tick interval.
func (c *SimulatorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Validate validates the simulator configuration.
func (c *SimulatorConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Symbols, validation.Required),
		validation.Field(&c.IntervalMS, validation.Min(0)),
	)
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
			Path: "./tessera.db",
		},
		Bundles: BundlesConfig{
			Path:  "./bundles",
			Watch: true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Feed: FeedConfig{
			Simulator: SimulatorConfig{
				Enabled:    true,
				Symbols:    []string{"BTC-USD", "ETH-USD"},
				IntervalMS: 1000,
			},
			ThrottleMS: 1000,
		},
	}
}
