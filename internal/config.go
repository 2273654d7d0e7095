package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/moewiki/internal/wikipath"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Wiki   WikiConfig        `yaml:"wiki"`
	Import ImportConfig      `yaml:"import"`
	Feed   FeedConfig        `yaml:"feed"`
	Paste  PasteConfig       `yaml:"paste"`
	SSE    SSEConfig         `yaml:"sse"`
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
	if err := c.Wiki.Validate(); err != nil {
		return err
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
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// Editor is the editor key recorded for token-authenticated saves.
type AuthConfig struct {
	Mode   string `yaml:"mode"`
	Token  string `yaml:"token"`
	Editor string `yaml:"editor"`
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

// WikiConfig holds the page rules.
type WikiConfig struct {
	ProtectedPath string `yaml:"protected_path"`
	StartPage     string `yaml:"start_page"`
	MaxPathDepth  int    `yaml:"max_path_depth"`
	DefaultArea   string `yaml:"default_area"`
	PageSize      int    `yaml:"page_size"`
	DiffContext   int    `yaml:"diff_context"`
	SaveRetries   int    `yaml:"save_retries"`
	LinkPrefix    string `yaml:"link_prefix"`
}

// Validate validates the wiki configuration.
func (c *WikiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StartPage, validation.Required),
		validation.Field(&c.MaxPathDepth, validation.Min(0)),
		validation.Field(&c.DefaultArea, validation.Required),
		validation.Field(&c.PageSize, validation.Min(1), validation.Max(100)),
		validation.Field(&c.DiffContext, validation.Min(0)),
		validation.Field(&c.SaveRetries, validation.Required, validation.Min(1)),
		validation.Field(&c.LinkPrefix, validation.Required),
	)
}

// Normalizer returns the path rules of the wiki.
func (c *WikiConfig) Normalizer() wikipath.Normalizer {
	return wikipath.Normalizer{
		ProtectedPath: c.ProtectedPath,
		StartPage:     c.StartPage,
		MaxDepth:      c.MaxPathDepth,
	}
}

// ImportConfig holds the seed directory settings. An empty Dir disables
// importing on startup.
type ImportConfig struct {
	Dir    string `yaml:"dir"`
	Watch  bool   `yaml:"watch"`
	Area   string `yaml:"area"`
	Editor string `yaml:"editor"`
}

// FeedConfig holds Atom feed settings.
type FeedConfig struct {
	BaseURL string `yaml:"base_url"`
	Title   string `yaml:"title"`
}

// PasteConfig holds pastebin settings.
type PasteConfig struct {
	Style string `yaml:"style"`
}

// SSEConfig holds server-sent event settings.
type SSEConfig struct {
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
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
			Path: "./moewiki.db",
		},
		Auth: AuthConfig{
			Mode:   AuthModeDisabled,
			Editor: "owner",
		},
		Wiki: WikiConfig{
			ProtectedPath: "pages",
			StartPage:     "start",
			MaxPathDepth:  5,
			DefaultArea:   "www",
			PageSize:      20,
			DiffContext:   5,
			SaveRetries:   3,
			LinkPrefix:    "/wiki/",
		},
		Import: ImportConfig{
			Editor: "importer",
		},
		Feed: FeedConfig{
			BaseURL: "http://localhost:8080",
			Title:   "moewiki",
		},
		Paste: PasteConfig{
			Style: "github",
		},
		SSE: SSEConfig{
			Throttle: 2 * time.Second,
		},
	}
}
