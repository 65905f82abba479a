// Package tui renders a chat's history in the terminal. It follows a
// pipeline session, applying each transition to its rows and realizing the
// transition's scroll anchor in a viewport.
package tui

import (
	"strconv"
	"strings"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/i18n"
	"github.com/wethinkt/go-histview/internal/pipeline"
	"github.com/wethinkt/go-histview/internal/tui/theme"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// Driver is the session a Model follows. *pipeline.Session implements it.
type Driver interface {
	Deliveries() <-chan pipeline.Delivery
	Navigate(loc pipeline.Location) error
	JumpTo(key history.OrderKey, placement history.Placement) error
	ReachedEdge(edge history.Edge) error
	SetPresentation(p history.Presentation) error
	PushReply(from, to history.OrderKey) error
	PopReply() error
	ScrollToNewest() error
	SetScrolledAway(away bool) error
}

// Options configures a Model.
type Options struct {
	Title        string
	Presentation history.Presentation
	Renderer     *Renderer
	// Lookup finds a message's order key by id for the jump prompt.
	Lookup func(id int64) (history.OrderKey, bool)
	Tag    language.Tag
}

type deliveryMsg pipeline.Delivery

type sessionClosedMsg struct{}

// Model is the history viewer.
type Model struct {
	drv      Driver
	opts     Options
	keys     viewerKeyMap
	printer  *message.Printer
	viewport viewport.Model
	spinner  spinner.Model
	input    textinput.Model

	rows    []history.RenderedEntry
	screen  layout
	focus   *history.StableID
	state   history.State
	status  pipeline.Status
	loading bool
	closed  bool
	away    bool
	jumping bool
	notice  string

	width  int
	height int
	ready  bool
}

// NewModel creates a viewer following drv.
func NewModel(drv Driver, opts Options) Model {
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer(80, nil, nil)
	}
	if opts.Tag == language.Und {
		opts.Tag = language.English
	}
	t, _ := theme.LoadByName(opts.Presentation.Theme)

	ti := textinput.New()
	ti.Placeholder = i18n.T("tui.jump.placeholder", "message id")
	ti.CharLimit = 20

	return Model{
		drv:     drv,
		opts:    opts,
		keys:    defaultViewerKeyMap(),
		printer: message.NewPrinter(opts.Tag),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(t.GetAccent()))),
		),
		input:   ti,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForDelivery(), m.spinner.Tick)
}

func (m Model) waitForDelivery() tea.Cmd {
	ch := m.drv.Deliveries()
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return deliveryMsg(d)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case deliveryMsg:
		m.apply(pipeline.Delivery(msg))
		return m, m.waitForDelivery()

	case sessionClosedMsg:
		m.closed = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentHeight := max(1, m.height-4)
		if !m.ready {
			m.viewport = viewport.New()
			m.ready = true
		}
		m.viewport.SetWidth(max(1, m.width-2))
		m.viewport.SetHeight(contentHeight)
		m.opts.Renderer.SetWidth(m.width - 4)
		m.relayout(history.SaveVisibleState(history.EdgeUpper))
		return m, nil

	case tea.KeyMsg:
		if m.jumping {
			return m.updateJump(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			if len(m.state.ReplyStack) > 0 {
				m.call(m.drv.PopReply())
			}
			return m, nil
		case key.Matches(msg, m.keys.Jump):
			m.jumping = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case key.Matches(msg, m.keys.Theme):
			m.opts.Presentation.Theme = theme.Next(m.opts.Presentation.Theme)
			m.notice = i18n.Tf("tui.notice.theme", "theme: %s", m.opts.Presentation.Theme)
			m.call(m.drv.SetPresentation(m.opts.Presentation))
			return m, nil
		case key.Matches(msg, m.keys.Reload):
			m.call(m.drv.Navigate(pipeline.Initial(0)))
			return m, nil
		case key.Matches(msg, m.keys.End):
			m.call(m.drv.ScrollToNewest())
			if m.ready {
				m.viewport.GotoBottom()
			}
			m.trackEdges(history.EdgeUpper)
			return m, nil
		case key.Matches(msg, m.keys.Home):
			if m.ready {
				m.viewport.GotoTop()
			}
			m.trackEdges(history.EdgeLower)
			return m, nil
		}
		if m.ready {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			switch {
			case key.Matches(msg, m.keys.Up, m.keys.PgUp):
				m.trackEdges(history.EdgeLower)
			case key.Matches(msg, m.keys.Down, m.keys.PgDown):
				m.trackEdges(history.EdgeUpper)
			}
			return m, cmd
		}
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.jumping = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.jumping = false
		m.input.Blur()
		m.jumpTo(strings.TrimSpace(m.input.Value()))
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// jumpTo moves to the message with the typed id, remembering the current
// position so that Back returns to it.
func (m *Model) jumpTo(text string) {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		m.notice = i18n.Tf("tui.notice.badID", "not a message id: %s", text)
		return
	}
	var to history.OrderKey
	found := false
	if k, ok := m.screen.keys[history.MessageID(id)]; ok {
		to, found = k, true
	} else if m.opts.Lookup != nil {
		to, found = m.opts.Lookup(id)
	}
	if !found {
		m.notice = i18n.Tf("tui.notice.notFound", "message %d not found", id)
		return
	}
	m.notice = ""
	if from, ok := m.topVisibleKey(); ok {
		m.call(m.drv.PushReply(from, to))
		return
	}
	m.call(m.drv.JumpTo(to, history.PlaceCenter))
}

func (m Model) topVisibleKey() (history.OrderKey, bool) {
	y := 0
	if m.ready {
		y = m.viewport.YOffset()
	}
	id, _, ok := m.screen.rowAt(y)
	if !ok {
		return history.OrderKey{}, false
	}
	k, ok := m.screen.keys[id]
	return k, ok
}

// trackEdges reports scrolling that reached edge and whether the newest row
// is still in view.
func (m *Model) trackEdges(edge history.Edge) {
	if !m.ready || len(m.rows) == 0 {
		return
	}
	switch {
	case edge == history.EdgeLower && m.viewport.AtTop():
		m.call(m.drv.ReachedEdge(history.EdgeLower))
	case edge == history.EdgeUpper && m.viewport.AtBottom():
		m.call(m.drv.ReachedEdge(history.EdgeUpper))
	}
	if away := !m.viewport.AtBottom(); away != m.away {
		m.away = away
		m.call(m.drv.SetScrolledAway(away))
	}
}

func (m *Model) call(err error) {
	if err != nil {
		tuilog.Log.Warn("session call failed", "error", err)
		m.notice = err.Error()
	}
}

func (m *Model) apply(d pipeline.Delivery) {
	m.status = d.Status
	switch d.Kind {
	case pipeline.DeliverLoading:
		m.loading = true
	case pipeline.DeliverState:
		m.state = d.State
	case pipeline.DeliverTransition:
		m.loading = false
		t := d.Transition
		rows, err := history.Apply(m.rows, t)
		if err != nil {
			tuilog.Log.Error("transition does not apply", "seq", d.Seq, "phase", t.Phase, "error", err)
			m.notice = i18n.T("tui.notice.resync", "view out of sync, reloading")
			m.call(m.drv.Navigate(pipeline.Initial(0)))
			return
		}
		m.rows = rows
		switch {
		case t.Anchor.Focus:
			id := t.Anchor.ID
			m.focus = &id
		case !t.IsEmpty():
			m.focus = nil
		}
		m.relayout(t.Anchor)
	}
}

// relayout rebuilds the screen text and scrolls to realize anchor.
func (m *Model) relayout(anchor history.ScrollState) {
	prev := m.screen
	m.screen = buildLayout(m.rows, m.opts.Renderer.Render, m.focus)
	if !m.ready {
		return
	}
	prevY := m.viewport.YOffset()
	pinned := m.state.PinnedToNewest || !m.away
	m.viewport.SetContent(m.screen.content())
	m.viewport.SetYOffset(scrollFor(prev, m.screen, prevY, m.viewport.Height(), anchor, pinned))
}

func (m Model) View() tea.View {
	if !m.ready {
		v := tea.NewView(m.spinner.View() + " " + i18n.T("tui.loading", "Loading..."))
		v.AltScreen = true
		return v
	}
	st := StylesFor(m.opts.Presentation.Theme)

	var info string
	switch {
	case m.closed:
		info = i18n.T("tui.status.closed", "session closed")
	case m.loading:
		info = m.spinner.View() + " " + i18n.T("tui.status.loading", "loading")
	default:
		info = i18n.Tn("tui.status.rows", "{{.Count}} row", "{{.Count}} rows", len(m.rows))
	}
	if n := len(m.state.ReplyStack); n > 0 {
		info += " · " + m.printer.Sprintf(i18n.T("tui.status.back", "%d back"), n)
	}
	if m.state.PinnedToNewest {
		info += " · " + i18n.T("tui.status.live", "live")
	}
	header := st.ViewerTitle.Render(m.opts.Title) + "  " + st.ViewerInfo.Render(info)

	var footer string
	switch {
	case m.jumping:
		footer = i18n.T("tui.jump.prompt", "jump to ") + m.input.View()
	case m.notice != "":
		footer = st.ViewerInfo.Render(m.notice)
	default:
		footer = st.ViewerHelp.Render(i18n.T("tui.help", "↑/↓: scroll • G: newest • :: jump • esc: back • t: theme • q: quit"))
	}

	content := st.ViewerBorder.
		Width(m.width).
		Height(m.height - 2).
		Render(m.viewport.View())

	v := tea.NewView(header + "\n" + content + "\n" + footer)
	v.AltScreen = true
	return v
}

// Focused returns the highlighted row, if any.
func (m Model) Focused() (history.StableID, bool) {
	if m.focus == nil {
		return history.StableID{}, false
	}
	return *m.focus, true
}

// Rows returns the rows currently shown, newest first.
func (m Model) Rows() []history.RenderedEntry { return m.rows }
