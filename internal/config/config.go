// Package config provides application configuration management for histview.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"

	"github.com/wethinkt/go-histview/internal/history"
)

// Config holds the histview configuration.
type Config struct {
	Theme        string                 `toml:"theme"`     // Name of the active theme
	Language     string                 `toml:"language"`  // BCP 47 tag used for counts and dates
	LogLevel     string                 `toml:"log_level"` // debug, info, warn or error
	View         ViewConfig             `toml:"view"`
	Server       ServerConfig           `toml:"server"`
	Watch        WatchConfig            `toml:"watch"`
	AutoDownload history.DownloadPolicy `toml:"auto_download"`
}

// ViewConfig holds the settings that shape the rendered history.
type ViewConfig struct {
	BatchCount     int    `toml:"batch_count"`     // Messages per window request
	ViewportHeight int    `toml:"viewport_height"` // First-paint budget in lines (0 = terminal height)
	FontSize       int    `toml:"font_size"`
	DayGrouping    bool   `toml:"day_grouping"`
	GroupPhotos    bool   `toml:"group_photos"`
	IncludeHoles   bool   `toml:"include_holes"`
	DeliverInline  bool   `toml:"deliver_inline"`
	Debug          bool   `toml:"debug"`    // Validate every list, panic on broken ones
	Timezone       string `toml:"timezone"` // IANA name for day separators (empty = local)
}

// ServerConfig holds settings for histview serve.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// WatchConfig holds chat file watching settings.
type WatchConfig struct {
	Enabled  bool   `toml:"enabled"`
	Debounce string `toml:"debounce"` // Debounce duration (e.g. "250ms")
}

// DebounceDuration returns the parsed debounce duration (default: 250ms).
func (c WatchConfig) DebounceDuration() time.Duration {
	if c.Debounce != "" {
		if d, err := time.ParseDuration(c.Debounce); err == nil && d > 0 {
			return d
		}
	}
	return 250 * time.Millisecond
}

// Presentation returns the presentation snapshot the config describes.
func (c Config) Presentation() history.Presentation {
	return history.Presentation{Theme: c.Theme, FontSize: c.View.FontSize, AutoDownload: c.AutoDownload}
}

// TransformOptions returns the transform settings the config describes.
func (c Config) TransformOptions() (history.TransformOptions, error) {
	opts := history.TransformOptions{
		Presentation: c.Presentation(),
		IncludeHoles: c.View.IncludeHoles,
		DayGrouping:  c.View.DayGrouping,
		GroupPhotos:  c.View.GroupPhotos,
		Location:     time.Local,
	}
	if c.View.Timezone != "" {
		loc, err := time.LoadLocation(c.View.Timezone)
		if err != nil {
			return opts, fmt.Errorf("invalid timezone %q: %w", c.View.Timezone, err)
		}
		opts.Location = loc
	}
	return opts, nil
}

// Tag returns the configured language, falling back to English.
func (c Config) Tag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.English
	}
	return tag
}

// Addr returns the server listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Dir returns the path to the .histview directory. HISTVIEW_HOME overrides
// the default under the user's home directory.
func Dir() (string, error) {
	if dir := os.Getenv("HISTVIEW_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".histview"), nil
}

// Path returns the path to the main config file.
func Path() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from ~/.histview/config.toml, writing the
// defaults there on first use.
func Load() (Config, error) {
	configPath, err := Path()
	if err != nil {
		return Config{}, err
	}
	cfg, err := LoadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if saveErr := Save(cfg); saveErr != nil {
			return cfg, nil // defaults are still usable
		}
		return cfg, nil
	}
	return cfg, err
}

// LoadFile decodes the config at path on top of the defaults, so missing
// keys keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
	}

	if cfg.Theme == "" {
		cfg.Theme = "dark"
	}
	if cfg.View.BatchCount <= 0 {
		cfg.View.BatchCount = Default().View.BatchCount
	}
	return cfg, nil
}

// Default returns a default configuration with all defaults set.
func Default() Config {
	return Config{
		Theme:    "dark",
		Language: "en",
		LogLevel: "info",
		View: ViewConfig{
			BatchCount:  100,
			FontSize:    13,
			DayGrouping: true,
			GroupPhotos: true,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8785,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: "250ms",
		},
		AutoDownload: history.DownloadPolicy{Photos: true, MaxFileSize: 10 << 20},
	}
}

// Save saves the configuration to ~/.histview/config.toml.
func Save(cfg Config) error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(configPath, cfg)
}

// SaveFile writes cfg to path, creating its directory.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}
