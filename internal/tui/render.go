package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/i18n"
)

// Renderer turns rows into terminal text. It is safe for concurrent use: the
// pipeline measures rows on its worker goroutines while the UI renders them.
type Renderer struct {
	mu       sync.Mutex
	width    int
	location *time.Location
	author   func(int64) string
	markdown map[string]*glamour.TermRenderer // by glamour style
}

// NewRenderer creates a renderer for rows width cells wide. author names
// message authors; nil shows their ids.
func NewRenderer(width int, loc *time.Location, author func(int64) string) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	if author == nil {
		author = func(id int64) string { return fmt.Sprintf("user %d", id) }
	}
	return &Renderer{
		width:    max(20, width),
		location: loc,
		author:   author,
		markdown: make(map[string]*glamour.TermRenderer),
	}
}

// SetWidth changes the row width. Cached markdown renderers are dropped.
func (r *Renderer) SetWidth(width int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	width = max(20, width)
	if width != r.width {
		r.width = width
		clear(r.markdown)
	}
}

// Width returns the row width.
func (r *Renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

// Measure returns a row's height in lines.
func (r *Renderer) Measure(row history.RenderedEntry) float64 {
	return float64(lipgloss.Height(r.Render(row, false)))
}

// Render returns the row's text. focused rows get the theme's focus style.
func (r *Renderer) Render(row history.RenderedEntry, focused bool) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := StylesFor(row.Presentation.Theme)
	e := row.Entry
	var out string
	switch e.Kind {
	case history.KindMessage:
		out = r.message(st, e)
	case history.KindGroup:
		out = r.group(st, e)
	case history.KindDate:
		day := time.Unix(e.Day, 0).In(r.location)
		out = st.Date.Width(r.width).Render(day.Format("Monday, January 2 2006"))
	case history.KindUnread:
		out = st.Unread.Width(r.width).Render(i18n.T("tui.row.unread", "unread messages"))
	case history.KindHole:
		out = st.Hole.Width(r.width).Render(i18n.T("tui.row.hole", "· history not loaded ·"))
	default:
		return ""
	}
	if focused {
		out = st.Focus.Render(out)
	}
	return out
}

func (r *Renderer) message(st *Styles, e history.Entry) string {
	msg := e.Message
	if msg.Action != history.ActionNone {
		return st.Service.Width(r.width).Render(serviceText(msg.Action))
	}

	body := st.Incoming
	if !msg.Incoming {
		body = st.Outgoing
	}
	var lines []string
	if e.Layout.Item == history.ItemFull {
		lines = append(lines, r.header(st, msg))
	}
	if e.Layout.Forward == history.ForwardFullHeader || e.Layout.Forward == history.ForwardShortHeader {
		lines = append(lines, st.Muted.Render("  "+i18n.T("tui.row.forwarded", "forwarded")))
	}
	if text := r.markdownText(st.Markdown, msg.Text); text != "" {
		lines = append(lines, body.Render(text))
	}
	for _, m := range msg.Media {
		lines = append(lines, body.Render(fmt.Sprintf("[%s #%d]", m.Kind, m.ID)))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) group(st *Styles, e history.Entry) string {
	if len(e.Children) == 0 {
		return ""
	}
	// Children are newest first; the album header belongs to the oldest.
	first := e.Children[len(e.Children)-1].Message
	body := st.Incoming
	if !first.Incoming {
		body = st.Outgoing
	}
	lines := []string{r.header(st, first), body.Render(i18n.Tn("tui.row.album", "album, {{.Count}} item", "album, {{.Count}} items", len(e.Children)))}
	for i := len(e.Children) - 1; i >= 0; i-- {
		c := e.Children[i].Message
		for _, m := range c.Media {
			lines = append(lines, body.Render(fmt.Sprintf("[%s #%d]", m.Kind, m.ID)))
		}
		if c.Text != "" {
			lines = append(lines, body.Render(r.markdownText(st.Markdown, c.Text)))
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) header(st *Styles, msg history.Message) string {
	at := time.Unix(int64(msg.Key.Timestamp), 0).In(r.location).Format("15:04")
	h := st.Author.Render(r.author(msg.AuthorID)) + " " + st.Muted.Render(at)
	if msg.Version > 0 {
		h += st.Muted.Render(" " + i18n.T("tui.row.edited", "(edited)"))
	}
	return ansi.Truncate(h, r.width, "…")
}

// markdownText renders text with glamour, falling back to plain wrapped text
// when no renderer can be built.
func (r *Renderer) markdownText(style, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	md, ok := r.markdown[style]
	if !ok {
		var err error
		md, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(r.width-4),
		)
		if err != nil {
			md = nil
		}
		r.markdown[style] = md
	}
	if md != nil {
		if out, err := md.Render(text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return ansi.Wordwrap(text, r.width-4, "")
}

func serviceText(a history.Action) string {
	switch a {
	case history.ActionHistoryCleared:
		return i18n.T("tui.service.historyCleared", "history was cleared")
	case history.ActionGroupMigrated:
		return i18n.T("tui.service.groupMigrated", "group was upgraded")
	case history.ActionPhoneCall:
		return i18n.T("tui.service.phoneCall", "phone call")
	}
	return i18n.T("tui.service.other", "service message")
}
