package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/pipeline"
)

type fakeDriver struct {
	out   chan pipeline.Delivery
	calls []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{out: make(chan pipeline.Delivery, 8)}
}

func (f *fakeDriver) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return nil
}

func (f *fakeDriver) Deliveries() <-chan pipeline.Delivery { return f.out }
func (f *fakeDriver) Navigate(loc pipeline.Location) error {
	return f.record("navigate %d", loc.Kind)
}
func (f *fakeDriver) JumpTo(k history.OrderKey, p history.Placement) error {
	return f.record("jump %d %s", k.ID, p)
}
func (f *fakeDriver) ReachedEdge(e history.Edge) error { return f.record("edge %s", e) }
func (f *fakeDriver) SetPresentation(p history.Presentation) error {
	return f.record("presentation %s", p.Theme)
}
func (f *fakeDriver) PushReply(from, to history.OrderKey) error {
	return f.record("push %d %d", from.ID, to.ID)
}
func (f *fakeDriver) PopReply() error       { return f.record("pop") }
func (f *fakeDriver) ScrollToNewest() error { return f.record("newest") }
func (f *fakeDriver) SetScrolledAway(away bool) error {
	return f.record("away %v", away)
}

func press(s string) tea.KeyPressMsg {
	switch s {
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	}
	r := []rune(s)[0]
	return tea.KeyPressMsg{Code: r, Text: s}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func firstPaint(rows []history.RenderedEntry, anchor history.ScrollState) pipeline.Delivery {
	tr := history.Transition{Anchor: anchor, Phase: history.PhaseFirstPaint}
	for i, r := range rows {
		tr.Insertions = append(tr.Insertions, history.Row{Position: i, Entry: r})
	}
	return pipeline.Delivery{Kind: pipeline.DeliverTransition, Seq: 1, Status: pipeline.StatusFirstPaint, Transition: tr}
}

func newTestModel(t *testing.T) (Model, *fakeDriver) {
	t.Helper()
	t.Setenv("HISTVIEW_HOME", t.TempDir())
	drv := newFakeDriver()
	m := NewModel(drv, Options{
		Title:        "team",
		Presentation: history.Presentation{Theme: "plain"},
		Renderer:     NewRenderer(60, time.UTC, nil),
		Lookup: func(id int64) (history.OrderKey, bool) {
			if id == 99 {
				return history.OrderKey{Timestamp: 1, ID: 99}, true
			}
			return history.OrderKey{}, false
		},
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 14})
	return m, drv
}

func TestModelFollowsTransitions(t *testing.T) {
	m, _ := newTestModel(t)

	rows := rowsNewestFirst(1, 30)
	for i := range rows {
		rows[i].Presentation.Theme = "plain"
		rows[i].Entry.Message.Text = fmt.Sprintf("body %d", i)
	}
	m = update(t, m, deliveryMsg(firstPaint(rows, history.ScrollState{})))
	if len(m.Rows()) != 30 || m.loading {
		t.Fatalf("rows not applied: %d loading=%v", len(m.Rows()), m.loading)
	}
	if !m.viewport.AtBottom() {
		t.Error("a fresh view should show the newest row")
	}
	if !strings.Contains(m.screen.content(), "user 1") {
		t.Error("author header missing from screen")
	}

	// A jump anchors and highlights the target.
	target := history.MessageID(5)
	m = update(t, m, deliveryMsg(pipeline.Delivery{
		Kind:       pipeline.DeliverTransition,
		Seq:        2,
		Transition: history.Transition{Anchor: history.ScrollState{Kind: history.ScrollTop, ID: target, Focus: true}},
	}))
	if id, ok := m.Focused(); !ok || id != target {
		t.Errorf("focus %v %v", id, ok)
	}
	if got, want := m.viewport.YOffset(), m.screen.start[target]; got != want {
		t.Errorf("offset %d, want row start %d", got, want)
	}
	m.View()

	m = update(t, m, deliveryMsg(pipeline.Delivery{Kind: pipeline.DeliverLoading, Status: pipeline.StatusLoading}))
	if !m.loading || m.status != pipeline.StatusLoading {
		t.Error("loading delivery not shown")
	}

	m = update(t, m, sessionClosedMsg{})
	if !m.closed {
		t.Error("closed session not noticed")
	}
	m.View()
}

func TestModelKeys(t *testing.T) {
	m, drv := newTestModel(t)
	m = update(t, m, deliveryMsg(firstPaint(rowsNewestFirst(1, 30), history.ScrollState{})))

	m = update(t, m, press("esc"))
	m = update(t, m, deliveryMsg(pipeline.Delivery{Kind: pipeline.DeliverState, State: history.State{ReplyStack: []history.OrderKey{{ID: 3}}}}))
	m = update(t, m, press("esc"))
	m = update(t, m, press("t"))
	m = update(t, m, press("r"))
	m = update(t, m, press("g"))
	m = update(t, m, press("G"))

	m = update(t, m, press(":"))
	if !m.jumping {
		t.Fatal("jump prompt not opened")
	}
	m.input.SetValue("99")
	from, ok := m.topVisibleKey()
	if !ok {
		t.Fatal("no visible row")
	}
	m = update(t, m, press("enter"))

	m = update(t, m, press(":"))
	m.input.SetValue("12345")
	m = update(t, m, press("enter"))
	if !strings.Contains(m.notice, "not found") {
		t.Errorf("notice %q", m.notice)
	}

	want := []string{
		"pop",
		"presentation dark",
		"navigate 0",
		"edge lower",
		"away true",
		"newest",
		"edge upper",
		"away false",
		fmt.Sprintf("push %d 99", from.ID),
	}
	if diff := cmp.Diff(want, drv.calls); diff != "" {
		t.Errorf("driver calls (-want +got):\n%s", diff)
	}
}

func TestModelResyncsOnBadTransition(t *testing.T) {
	m, drv := newTestModel(t)
	m = update(t, m, deliveryMsg(pipeline.Delivery{
		Kind:       pipeline.DeliverTransition,
		Transition: history.Transition{Deletions: []int{3}},
	}))
	if diff := cmp.Diff([]string{"navigate 0"}, drv.calls); diff != "" {
		t.Errorf("driver calls (-want +got):\n%s", diff)
	}
}
