package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/pipeline"
	"github.com/wethinkt/go-histview/internal/store"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// DefaultSettle is how long a step waits for the session to go quiet.
const DefaultSettle = 50 * time.Millisecond

const chatID = "scenario"

// Report is the outcome of one script.
type Report struct {
	Name  string             `json:"name"`
	Steps []StepResult       `json:"steps"`
	Rows  []history.StableID `json:"rows"` // final screen, newest first
}

// StepResult is what one step produced.
type StepResult struct {
	Index       int      `json:"index"`
	Op          string   `json:"op"`
	Deliveries  int      `json:"deliveries"`
	Transitions int      `json:"transitions"`
	Rows        int      `json:"rows"`
	Failures    []string `json:"failures,omitempty"`
}

// Failed reports whether any step failed a check.
func (r Report) Failed() bool {
	return slices.ContainsFunc(r.Steps, func(s StepResult) bool { return len(s.Failures) > 0 })
}

// Failures returns every failure prefixed with its step.
func (r Report) Failures() []string {
	var out []string
	for _, s := range r.Steps {
		for _, f := range s.Failures {
			out = append(out, fmt.Sprintf("step %d (%s): %s", s.Index, s.Op, f))
		}
	}
	return out
}

type runner struct {
	script Script
	store  *store.Memory
	sess   *pipeline.Session
	pres   history.Presentation
	settle time.Duration
	log    *tuilog.Logger

	rows   []history.RenderedEntry
	state  history.State
	anchor history.ScrollState // last positioned anchor
	phase  history.Phase
	holes  map[int64]int64 // script hole name -> store id
}

// Run replays s against a fresh in-memory store. The returned error is for
// failures to run at all; failed checks are recorded in the report.
func Run(ctx context.Context, s Script) (Report, error) {
	mem := store.NewMemory()
	if err := mem.Put(chatID, s.Chat); err != nil {
		return Report{}, fmt.Errorf("load chat: %w", err)
	}
	src, err := mem.Source(chatID)
	if err != nil {
		return Report{}, err
	}
	viewport := s.Viewport
	if viewport <= 0 {
		viewport = 20
	}
	r := &runner{
		script: s,
		store:  mem,
		pres:   history.Presentation{Theme: s.Theme},
		settle: s.Settle.Duration,
		log:    tuilog.Log.With("scenario", s.Name),
		holes:  map[int64]int64{},
	}
	if r.settle <= 0 {
		r.settle = DefaultSettle
	}
	r.sess = pipeline.New(src, pipeline.Options{
		ViewportHeight: viewport,
		Count:          s.Count,
		DeliverInline:  s.Inline,
		Transform: history.TransformOptions{
			Presentation: r.pres,
			IncludeHoles: s.IncludeHoles,
			DayGrouping:  s.DayGrouping,
			GroupPhotos:  s.GroupPhotos,
		},
		Logger: r.log,
	})
	defer r.sess.Close()

	rep := Report{Name: s.Name}
	for i, st := range s.Steps {
		res := StepResult{Index: i + 1, Op: st.Op}
		if err := r.do(ctx, st); err != nil {
			res.Failures = append(res.Failures, err.Error())
			rep.Steps = append(rep.Steps, res)
			r.log.Warn("step failed", "step", i+1, "op", st.Op, "error", err)
			continue
		}
		if err := r.drain(ctx, &res); err != nil {
			return rep, err
		}
		res.Rows = len(r.rows)
		res.Failures = append(res.Failures, r.check(st.Expect)...)
		rep.Steps = append(rep.Steps, res)
	}
	for _, row := range r.rows {
		rep.Rows = append(rep.Rows, row.ID())
	}
	return rep, nil
}

// RunAll runs scripts concurrently, at most parallel at a time, and returns
// reports in script order.
func RunAll(ctx context.Context, scripts []Script, parallel int) ([]Report, error) {
	reports := make([]Report, len(scripts))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, s := range scripts {
		g.Go(func() error {
			rep, err := Run(ctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *runner) do(ctx context.Context, st Step) error {
	switch st.Op {
	case OpOpen:
		return r.sess.Open(ctx)
	case OpAppend:
		key, err := st.messageKey()
		if err != nil {
			return err
		}
		return r.store.Append(chatID, history.Message{
			ID:       st.ID,
			Key:      key,
			AuthorID: st.Author,
			Text:     st.Text,
			Incoming: st.Incoming,
		})
	case OpEdit:
		return r.store.Edit(chatID, st.ID, st.Text)
	case OpDelete:
		return r.store.Delete(chatID, st.ID)
	case OpHole:
		id, err := r.store.AddHole(chatID, *st.Min, *st.Max)
		if err != nil {
			return err
		}
		if st.Hole != 0 {
			r.holes[st.Hole] = id
		}
		return nil
	case OpFillHole:
		id := st.Hole
		if mapped, ok := r.holes[id]; ok {
			id = mapped
		}
		dir := history.LowerToUpper
		switch st.Direction {
		case "", history.LowerToUpper.String():
		case history.UpperToLower.String():
			dir = history.UpperToLower
		default:
			return fmt.Errorf("unknown direction %q", st.Direction)
		}
		msgs := make([]history.Message, 0, len(st.Messages))
		for _, fm := range st.Messages {
			msgs = append(msgs, fm.Resolve())
		}
		return r.store.FillHole(chatID, id, msgs, dir)
	case OpRead:
		key, err := r.keyOf(st)
		if err != nil {
			return err
		}
		return r.store.MarkRead(chatID, key)
	case OpTheme:
		r.pres.Theme = st.Theme
		return r.sess.SetPresentation(r.pres)
	case OpJump:
		key, err := r.keyOf(st)
		if err != nil {
			return err
		}
		placement, err := parsePlacement(st.Placement)
		if err != nil {
			return err
		}
		return r.sess.JumpTo(key, placement)
	case OpReachEdge:
		edge, err := parseEdge(st.Edge)
		if err != nil {
			return err
		}
		return r.sess.ReachedEdge(edge)
	case OpNewest:
		return r.sess.ScrollToNewest()
	case OpScrolledAway:
		return r.sess.SetScrolledAway(st.Away)
	case OpPushReply:
		from, err := r.store.KeyOf(chatID, st.From)
		if err != nil {
			return err
		}
		to, err := r.store.KeyOf(chatID, st.To)
		if err != nil {
			return err
		}
		return r.sess.PushReply(from, to)
	case OpPopReply:
		return r.sess.PopReply()
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

func (r *runner) keyOf(st Step) (history.OrderKey, error) {
	if st.Key != nil {
		return *st.Key, nil
	}
	return r.store.KeyOf(chatID, st.ID)
}

// drain applies deliveries until none arrive for the settle period.
func (r *runner) drain(ctx context.Context, res *StepResult) error {
	timer := time.NewTimer(r.settle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case d, ok := <-r.sess.Deliveries():
			if !ok {
				return errors.New("session closed")
			}
			res.Deliveries++
			if msg := r.apply(d); msg != "" {
				res.Failures = append(res.Failures, msg)
			}
			if d.Kind == pipeline.DeliverTransition {
				res.Transitions++
			}
			timer.Reset(r.settle)
		}
	}
}

func (r *runner) apply(d pipeline.Delivery) string {
	switch d.Kind {
	case pipeline.DeliverState:
		r.state = d.State
	case pipeline.DeliverTransition:
		rows, err := history.Apply(r.rows, d.Transition)
		if err != nil {
			return fmt.Sprintf("seq %d: %v", d.Seq, err)
		}
		if err := history.Validate(rows); err != nil {
			return fmt.Sprintf("seq %d: %v", d.Seq, err)
		}
		r.rows = rows
		r.phase = d.Transition.Phase
		if d.Transition.Anchor.Positioned() {
			r.anchor = d.Transition.Anchor
		}
	}
	return ""
}

func (r *runner) check(e Expect) []string {
	var out []string
	if e.Rows != nil && len(r.rows) != *e.Rows {
		out = append(out, fmt.Sprintf("rows: got %d, want %d", len(r.rows), *e.Rows))
	}
	if e.Newest != nil {
		got := history.StableID{}
		if len(r.rows) > 0 {
			got = r.rows[0].ID()
		}
		if want := history.MessageID(*e.Newest); got != want {
			out = append(out, fmt.Sprintf("newest: got %v, want %v", got, want))
		}
	}
	if e.Anchor != nil {
		if want := history.MessageID(*e.Anchor); r.anchor.ID != want {
			out = append(out, fmt.Sprintf("anchor: got %v, want %v", r.anchor.ID, want))
		}
	}
	if e.Pinned != nil && r.state.PinnedToNewest != *e.Pinned {
		out = append(out, fmt.Sprintf("pinned: got %t, want %t", r.state.PinnedToNewest, *e.Pinned))
	}
	if e.Phase != "" && r.phase.String() != e.Phase {
		out = append(out, fmt.Sprintf("phase: got %s, want %s", r.phase, e.Phase))
	}
	if e.Stack != nil && len(r.state.ReplyStack) != *e.Stack {
		out = append(out, fmt.Sprintf("reply stack: got %d, want %d", len(r.state.ReplyStack), *e.Stack))
	}
	for _, id := range e.Contain {
		if history.IndexOf(r.rows, history.MessageID(id)) < 0 && !inGroup(r.rows, id) {
			out = append(out, fmt.Sprintf("message %d not on screen", id))
		}
	}
	return out
}

func inGroup(rows []history.RenderedEntry, id int64) bool {
	for _, row := range rows {
		for _, c := range row.Entry.Children {
			if c.Message.ID == id {
				return true
			}
		}
	}
	return false
}

func parsePlacement(s string) (history.Placement, error) {
	if s == "" {
		return history.PlaceCenter, nil
	}
	for _, p := range []history.Placement{history.PlaceTop, history.PlaceBottom, history.PlaceCenter} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown placement %q", s)
}

func parseEdge(s string) (history.Edge, error) {
	for _, e := range []history.Edge{history.EdgeUpper, history.EdgeLower} {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown edge %q", s)
}
