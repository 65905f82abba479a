package tui

import (
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/wethinkt/go-histview/internal/tui/theme"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// Styles holds all the computed lipgloss styles for one theme.
type Styles struct {
	Markdown string

	// History rows
	Incoming lipgloss.Style
	Outgoing lipgloss.Style
	Author   lipgloss.Style
	Service  lipgloss.Style
	Date     lipgloss.Style
	Unread   lipgloss.Style
	Hole     lipgloss.Style
	Focus    lipgloss.Style
	Muted    lipgloss.Style

	// Viewer chrome
	ViewerTitle  lipgloss.Style
	ViewerInfo   lipgloss.Style
	ViewerHelp   lipgloss.Style
	ViewerBorder lipgloss.Style
}

var (
	stylesMu    sync.Mutex
	stylesCache = make(map[string]*Styles)
)

// StylesFor returns the styles of the named theme. Unknown themes fall back
// to the default.
func StylesFor(name string) *Styles {
	stylesMu.Lock()
	defer stylesMu.Unlock()
	if s, ok := stylesCache[name]; ok {
		return s
	}
	t, err := theme.LoadByName(name)
	if err != nil {
		tuilog.Log.Warn("theme load failed, using default", "theme", name, "error", err)
	}
	s := buildStyles(t)
	stylesCache[name] = &s
	return &s
}

// ReloadStyles drops cached styles so that themes are read again.
func ReloadStyles() {
	stylesMu.Lock()
	clear(stylesCache)
	stylesMu.Unlock()
}

// applyStyle applies a theme.Style to a lipgloss.Style builder.
func applyStyle(s lipgloss.Style, ts theme.Style) lipgloss.Style {
	if ts.Fg != "" {
		s = s.Foreground(lipgloss.Color(ts.Fg))
	}
	if ts.Bg != "" {
		s = s.Background(lipgloss.Color(ts.Bg))
	}
	if ts.Bold {
		s = s.Bold(true)
	}
	if ts.Italic {
		s = s.Italic(true)
	}
	if ts.Underline {
		s = s.Underline(true)
	}
	if ts.Faint {
		s = s.Faint(true)
	}
	return s
}

func buildStyles(t theme.Theme) Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Markdown: t.GetMarkdown(),

		Incoming: applyStyle(base.PaddingLeft(2), t.Incoming),
		Outgoing: applyStyle(base.PaddingLeft(4), t.Outgoing),
		Author:   applyStyle(base, t.Author),
		Service:  applyStyle(base, t.Service).Align(lipgloss.Center),
		Date:     applyStyle(base, t.Date).Align(lipgloss.Center),
		Unread:   applyStyle(base, t.Unread).Align(lipgloss.Center),
		Hole:     applyStyle(base, t.Hole).Align(lipgloss.Center),
		Focus:    applyStyle(base, t.Focus),
		Muted:    applyStyle(base, t.TextMuted),

		ViewerTitle: base.Bold(true).Foreground(lipgloss.Color(t.GetAccent())),
		ViewerInfo:  applyStyle(base, t.TextSecondary),
		ViewerHelp:  applyStyle(base, t.TextMuted),
		ViewerBorder: base.
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.GetBorderInactive())),
	}
}
