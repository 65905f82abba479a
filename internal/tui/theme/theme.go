// Package theme provides theming support for the TUI.
package theme

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wethinkt/go-histview/internal/config"
)

// Style defines colors and text attributes for a UI element.
type Style struct {
	Fg        string `toml:"fg,omitempty"`
	Bg        string `toml:"bg,omitempty"`
	Bold      bool   `toml:"bold,omitempty"`
	Italic    bool   `toml:"italic,omitempty"`
	Underline bool   `toml:"underline,omitempty"`
	Faint     bool   `toml:"faint,omitempty"`
}

// Theme defines all styles used in the TUI.
type Theme struct {
	Name        string `toml:"name,omitempty"`
	Description string `toml:"description,omitempty"`

	// Glamour style used for message bodies: dark, light, notty, ...
	Markdown string `toml:"markdown,omitempty"`

	// UI chrome
	Accent         string `toml:"accent,omitempty"`
	BorderActive   string `toml:"border_active,omitempty"`
	BorderInactive string `toml:"border_inactive,omitempty"`

	TextPrimary   Style `toml:"text_primary,omitempty"`
	TextSecondary Style `toml:"text_secondary,omitempty"`
	TextMuted     Style `toml:"text_muted,omitempty"`

	// History rows
	Incoming Style `toml:"incoming,omitempty"`
	Outgoing Style `toml:"outgoing,omitempty"`
	Author   Style `toml:"author,omitempty"`
	Service  Style `toml:"service,omitempty"`
	Date     Style `toml:"date,omitempty"`
	Unread   Style `toml:"unread,omitempty"`
	Hole     Style `toml:"hole,omitempty"`
	Focus    Style `toml:"focus,omitempty"`
}

// ThemeMeta holds metadata about an available theme.
type ThemeMeta struct {
	Name        string
	Description string
	Path        string // File path (empty for built-in)
	Builtin     bool
}

var builtin = map[string]Theme{
	"dark": {
		Name:           "dark",
		Description:    "Default dark theme",
		Markdown:       "dark",
		Accent:         "#7D56F4",
		BorderInactive: "#444444",
		TextPrimary:    Style{Fg: "#E4E4E4"},
		TextSecondary:  Style{Fg: "#A8A8A8"},
		TextMuted:      Style{Fg: "#6C6C6C"},
		Incoming:       Style{Fg: "#E4E4E4"},
		Outgoing:       Style{Fg: "#AFD7FF"},
		Author:         Style{Fg: "#D7AFFF", Bold: true},
		Service:        Style{Fg: "#8A8A8A", Italic: true},
		Date:           Style{Fg: "#87AFAF", Bold: true},
		Unread:         Style{Fg: "#FFAF5F", Bold: true},
		Hole:           Style{Fg: "#6C6C6C", Faint: true},
		Focus:          Style{Bg: "#3A3A3A"},
	},
	"light": {
		Name:           "light",
		Description:    "Light theme for bright terminals",
		Markdown:       "light",
		Accent:         "#5A3FC0",
		BorderInactive: "#BCBCBC",
		TextPrimary:    Style{Fg: "#262626"},
		TextSecondary:  Style{Fg: "#4E4E4E"},
		TextMuted:      Style{Fg: "#8A8A8A"},
		Incoming:       Style{Fg: "#262626"},
		Outgoing:       Style{Fg: "#005F87"},
		Author:         Style{Fg: "#5F00AF", Bold: true},
		Service:        Style{Fg: "#767676", Italic: true},
		Date:           Style{Fg: "#005F5F", Bold: true},
		Unread:         Style{Fg: "#AF5F00", Bold: true},
		Hole:           Style{Fg: "#9E9E9E", Faint: true},
		Focus:          Style{Bg: "#E4E4E4"},
	},
	"plain": {
		Name:        "plain",
		Description: "No colors",
		Markdown:    "notty",
		Author:      Style{Bold: true},
		Service:     Style{Italic: true},
		Date:        Style{Bold: true},
		Unread:      Style{Bold: true},
		Focus:       Style{Underline: true},
	},
}

// DefaultTheme returns the built-in dark theme.
func DefaultTheme() Theme { return builtin["dark"] }

// Builtin returns the built-in theme called name.
func Builtin(name string) (Theme, bool) {
	t, ok := builtin[name]
	return t, ok
}

// ListBuiltin returns the names of the built-in themes, sorted.
func ListBuiltin() []string {
	return slices.Sorted(maps.Keys(builtin))
}

// ThemesDir returns the path to the user themes directory.
func ThemesDir() (string, error) {
	configDir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "themes"), nil
}

// ListAvailable returns all available themes: built-in ones, then user
// themes from the themes directory.
func ListAvailable() ([]ThemeMeta, error) {
	var themes []ThemeMeta
	for _, name := range ListBuiltin() {
		themes = append(themes, ThemeMeta{Name: name, Description: builtin[name].Description, Builtin: true})
	}

	themesDir, err := ThemesDir()
	if err != nil {
		return themes, err
	}
	entries, err := os.ReadDir(themesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return themes, nil
		}
		return themes, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(themesDir, entry.Name())
		description := "User theme"
		var t Theme
		if _, err := toml.DecodeFile(path, &t); err == nil && t.Description != "" {
			description = t.Description
		}
		themes = append(themes, ThemeMeta{
			Name:        strings.TrimSuffix(entry.Name(), ".toml"),
			Description: description,
			Path:        path,
		})
	}
	return themes, nil
}

// LoadByName loads a theme by name, checking user themes first, then
// built-in ones. User themes start from the dark theme, so they only need
// to name what they change.
func LoadByName(name string) (Theme, error) {
	if name == "" {
		return DefaultTheme(), nil
	}
	if themesDir, err := ThemesDir(); err == nil {
		path := filepath.Join(themesDir, name+".toml")
		if _, err := os.Stat(path); err == nil {
			t := DefaultTheme()
			if _, err := toml.DecodeFile(path, &t); err != nil {
				return DefaultTheme(), fmt.Errorf("parse theme %s: %w", path, err)
			}
			t.Name = name
			return t, nil
		}
	}
	if t, ok := builtin[name]; ok {
		return t, nil
	}
	return DefaultTheme(), fmt.Errorf("unknown theme %q", name)
}

// Save writes a theme to the user themes directory.
func Save(name string, t Theme) error {
	themesDir, err := ThemesDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(themesDir, 0755); err != nil {
		return err
	}

	t.Name = name
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(t); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(themesDir, name+".toml"), buf.Bytes(), 0644)
}

// Next returns the theme that follows name in ListAvailable order, wrapping
// around.
func Next(name string) string {
	themes, _ := ListAvailable()
	if len(themes) == 0 {
		return name
	}
	for i, t := range themes {
		if t.Name == name {
			return themes[(i+1)%len(themes)].Name
		}
	}
	return themes[0].Name
}

// GetAccent returns the accent color, with fallback.
func (t Theme) GetAccent() string {
	if t.Accent != "" {
		return t.Accent
	}
	return "#7D56F4"
}

// GetBorderActive returns the active border color.
func (t Theme) GetBorderActive() string {
	if t.BorderActive != "" {
		return t.BorderActive
	}
	return t.GetAccent()
}

// GetBorderInactive returns the inactive border color.
func (t Theme) GetBorderInactive() string {
	if t.BorderInactive != "" {
		return t.BorderInactive
	}
	return "#444444"
}

// GetMarkdown returns the glamour style name, with fallback.
func (t Theme) GetMarkdown() string {
	if t.Markdown != "" {
		return t.Markdown
	}
	return "dark"
}
