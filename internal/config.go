package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/scene"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Events    EventsConfig      `yaml:"events"`
	Editor    EditorConfig      `yaml:"editor"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Events.Validate(); err != nil {
		return err
	}
	return c.Editor.Validate()
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

// WorkspaceConfig holds the directory canvas documents and attachments live in.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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

// EventsConfig controls the live event broker.
type EventsConfig struct {
	// Throttle is the minimum gap between two events for the same canvas.
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// EditorConfig holds canvas editing defaults shared by the store and the
// terminal editor.
type EditorConfig struct {
	GridSize       float64       `yaml:"grid_size"`
	GridSnap       bool          `yaml:"grid_snap"`
	MinCardWidth   float64       `yaml:"min_card_width"`
	MinCardHeight  float64       `yaml:"min_card_height"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GridSize, validation.Min(0.0)),
		validation.Field(&c.MinCardWidth, validation.Required, validation.Min(1.0)),
		validation.Field(&c.MinCardHeight, validation.Required, validation.Min(1.0)),
		validation.Field(&c.PersistTimeout, validation.Min(time.Duration(0))),
	)
}

// Settings converts the configuration into editor scene settings.
func (c *EditorConfig) Settings() scene.Settings {
	return scene.Settings{
		GridSize:  c.GridSize,
		GridSnap:  c.GridSnap,
		MinWidth:  c.MinCardWidth,
		MinHeight: c.MinCardHeight,
	}
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
		Workspace: WorkspaceConfig{
			Path: "./workspace",
		},
		SQLite: SQLiteConfig{
			Path: "./tessera.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
		Editor: EditorConfig{
			GridSize:      models.DefaultGridSize,
			GridSnap:      true,
			MinCardWidth:  models.MinCardWidth,
			MinCardHeight: models.MinCardHeight,
		},
	}
}
