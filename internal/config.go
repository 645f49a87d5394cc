package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/watcher"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Library LibraryConfig     `yaml:"library"`
	Watcher WatcherConfig     `yaml:"watcher"`
	Prefs   PrefsConfig       `yaml:"prefs"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.Watcher.Validate(); err != nil {
		return err
	}
	return c.Prefs.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, if set, receives a copy of every log record.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return err
	}
	return c.RateLimit.Validate()
}

// RateLimitConfig bounds write requests per client IP.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RPS <= 0 {
		return errors.New("rate_limit: rps must be positive when enabled")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// LibraryConfig points at the folder of presentations.
type LibraryConfig struct {
	Root         string `yaml:"root"`
	ManifestName string `yaml:"manifest_name"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	if c.ManifestName == "" {
		c.ManifestName = manifest.DefaultName
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.ManifestName, validation.By(func(any) error {
			if !strings.HasSuffix(c.ManifestName, ".json") || strings.ContainsAny(c.ManifestName, `/\`) {
				return errors.New("must be a .json file name")
			}
			return nil
		})),
	)
}

// WatcherConfig tunes change detection.
type WatcherConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watcher configuration.
func (c *WatcherConfig) Validate() error {
	if c.Debounce == 0 {
		c.Debounce = watcher.DefaultDebounce
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(150*time.Millisecond), validation.Max(250*time.Millisecond)),
	)
}

// PrefsConfig holds the viewer preference database location.
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the preference configuration.
func (c *PrefsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
				RateLimit: RateLimitConfig{
					Enabled: true,
					RPS:     10,
					Burst:   20,
				},
			},
		},
		Library: LibraryConfig{
			Root:         "./presentations",
			ManifestName: manifest.DefaultName,
		},
		Watcher: WatcherConfig{
			Debounce: watcher.DefaultDebounce,
		},
		Prefs: PrefsConfig{
			Path: "./deckhand.db",
		},
	}
}
