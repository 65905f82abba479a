// Package pipeline drives one chat view: it requests history windows, turns
// them into row lists, and delivers the transitions a renderer applies, in
// order, from a single goroutine.
package pipeline

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

var (
	// ErrSessionClosed is returned by calls made after Close.
	ErrSessionClosed = errors.New("pipeline: session closed")
	// ErrNotOpen is returned by calls made before Open.
	ErrNotOpen = errors.New("pipeline: session not open")
)

// DefaultCount is the number of messages requested per window.
const DefaultCount = 100

// Options configures a Session.
type Options struct {
	// ViewportHeight is the budget for the first paint, in Measure units.
	ViewportHeight float64
	// Measure returns a row's height. Nil counts every row as 1.
	Measure history.MeasureFunc
	// Count is the number of messages per request.
	Count int
	// DeliverInline computes the first paint on the session goroutine
	// instead of a worker.
	DeliverInline bool
	// Debug validates every list and panics on a broken one.
	Debug bool

	Transform     history.TransformOptions
	TransformFunc func(history.HistoryWindow, history.TransformOptions) []history.RenderedEntry

	// Restore is the remembered scroll position to open at when nothing is
	// unread.
	Restore       *history.OrderKey
	RestoreOffset float64

	// OnRequestMore is called on the session goroutine before more history
	// is requested past edge. It must not block.
	OnRequestMore func(edge history.Edge, key history.OrderKey)

	// Buffer is the capacity of the delivery channel.
	Buffer int
	Logger *tuilog.Logger
}

type commandKind uint8

const (
	cmdNavigate commandKind = iota
	cmdJump
	cmdReachedEdge
	cmdPresentation
	cmdPushReply
	cmdPopReply
	cmdScrollToNewest
	cmdScrolledAway
)

type command struct {
	kind      commandKind
	loc       Location
	key       history.OrderKey
	from      history.OrderKey
	placement history.Placement
	edge      history.Edge
	pres      history.Presentation
	away      bool
}

type windowMsg struct {
	gen    uint64
	window history.HistoryWindow
}

// job is one unit of background work: transform a window and compare it
// with what is on screen.
type job struct {
	gen        uint64
	window     history.HistoryWindow
	prev       []history.RenderedEntry
	opts       history.TransformOptions
	spec       history.AnchorSpec
	reason     history.Reason
	animated   bool
	anchored   bool
	firstPaint bool
}

type result struct {
	gen      uint64
	list     []history.RenderedEntry
	first    *history.Materialized
	diff     *history.Transition
	deferred *history.Transition
}

type request struct {
	loc      Location
	anchored bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// Session is the transition pipeline for one open chat. All exported methods
// are safe to call from any goroutine; the rendered list and State are only
// touched by the session goroutine.
type Session struct {
	src  WindowSource
	opts Options
	log  *tuilog.Logger

	cmds    chan command
	windows chan windowMsg
	results chan result
	out     chan Delivery
	closing chan struct{}
	done    chan struct{}

	opened    atomic.Bool
	closeOnce sync.Once

	// Owned by the session goroutine.
	ctx          context.Context
	status       Status
	shownLoading bool
	gen          uint64
	seq          uint64
	req          request
	topts        history.TransformOptions
	window       history.HistoryWindow
	haveWindow   bool
	rendered     []history.RenderedEntry
	anchor       history.ScrollState
	state        history.State
	away         bool
	needsPaint   bool
	busy         bool
	pending      *job
}

// New creates a session reading from src. Call Open to start it.
func New(src WindowSource, opts Options) *Session {
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}
	if opts.Measure == nil {
		opts.Measure = func(history.RenderedEntry) float64 { return 1 }
	}
	if opts.TransformFunc == nil {
		opts.TransformFunc = history.Transform
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = tuilog.Log
	}
	return &Session{
		src:     src,
		opts:    opts,
		log:     opts.Logger.With("component", "pipeline"),
		cmds:    make(chan command, 16),
		windows: make(chan windowMsg),
		results: make(chan result),
		out:     make(chan Delivery, opts.Buffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		topts:   opts.Transform,
	}
}

// Open starts the session goroutine and issues the initial request. The
// session stops when ctx is cancelled or Close is called.
func (s *Session) Open(ctx context.Context) error {
	if !s.opened.CompareAndSwap(false, true) {
		return errors.New("pipeline: session already open")
	}
	s.ctx = ctx
	go s.run(ctx)
	return nil
}

// Deliveries returns the ordered delivery stream. It is closed when the
// session stops.
func (s *Session) Deliveries() <-chan Delivery { return s.out }

// Close stops the session and waits for its goroutine to exit.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	if s.opened.Load() {
		<-s.done
	}
	return nil
}

// Navigate issues a request for loc. Initial and InitialSearch locations
// clear the view first.
func (s *Session) Navigate(loc Location) error {
	return s.send(command{kind: cmdNavigate, loc: loc})
}

// JumpTo scrolls to the message at key. A message already on screen gets an
// anchor-only transition; anything else reloads the chat around it.
func (s *Session) JumpTo(key history.OrderKey, placement history.Placement) error {
	return s.send(command{kind: cmdJump, key: key, placement: placement})
}

// ReachedEdge tells the session the viewport hit edge, so more history
// should be loaded past it.
func (s *Session) ReachedEdge(edge history.Edge) error {
	return s.send(command{kind: cmdReachedEdge, edge: edge})
}

// SetPresentation re-renders the current window under p.
func (s *Session) SetPresentation(p history.Presentation) error {
	return s.send(command{kind: cmdPresentation, pres: p})
}

// PushReply remembers from and jumps to the replied message at to.
func (s *Session) PushReply(from, to history.OrderKey) error {
	return s.send(command{kind: cmdPushReply, from: from, key: to})
}

// PopReply jumps back to the most recently remembered position.
func (s *Session) PopReply() error {
	return s.send(command{kind: cmdPopReply})
}

// ScrollToNewest clears the reply stack and returns to the newest message.
func (s *Session) ScrollToNewest() error {
	return s.send(command{kind: cmdScrollToNewest})
}

// SetScrolledAway records whether the user has scrolled off the newest edge.
func (s *Session) SetScrolledAway(away bool) error {
	return s.send(command{kind: cmdScrolledAway, away: away})
}

func (s *Session) send(c command) error {
	if !s.opened.Load() {
		return ErrNotOpen
	}
	select {
	case <-s.closing:
		return ErrSessionClosed
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.cmds <- c:
		return nil
	case <-s.closing:
		return ErrSessionClosed
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) run(ctx context.Context) {
	activeSessions.Inc()
	defer activeSessions.Dec()
	defer close(s.done)
	defer close(s.out)
	defer func() {
		if s.req.cancel != nil {
			s.req.cancel()
		}
		s.status = StatusClosed
		s.log.Debug("session closed", "generation", s.gen, "deliveries", s.seq)
	}()

	s.status = StatusLoading
	s.needsPaint = true
	loc := Initial(s.opts.Count)
	if s.opts.Restore != nil {
		loc = InitialRestoring(*s.opts.Restore, s.opts.RestoreOffset, s.opts.Count)
	}
	s.issue(loc)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case c := <-s.cmds:
			s.handleCommand(c)
		case m := <-s.windows:
			s.handleWindow(m)
		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

func (s *Session) handleCommand(c command) {
	switch c.kind {
	case cmdNavigate:
		if c.loc.resets() {
			s.reset()
		}
		s.issue(c.loc)
	case cmdJump:
		s.jump(c.key, c.placement)
	case cmdReachedEdge:
		s.reachedEdge(c.edge)
	case cmdPresentation:
		s.topts.Presentation = c.pres
		s.refresh()
	case cmdPushReply:
		s.state.PushReply(c.from)
		s.deliverState()
		s.jump(c.key, history.PlaceCenter)
	case cmdPopReply:
		if k, ok := s.state.PopReply(); ok {
			s.deliverState()
			s.jump(k, history.PlaceCenter)
		}
	case cmdScrollToNewest:
		s.state.ReplyStack = nil
		s.away = false
		if s.window.HasMore(history.EdgeUpper) {
			s.issue(Scroll(history.AbsoluteUpper, history.PlaceTop, true, s.opts.Count))
			s.deliverState()
			return
		}
		st := history.Resolve(s.rendered, history.ToIndex(history.AbsoluteUpper, history.PlaceTop, true))
		s.emit(history.Transition{Anchor: st, Animated: true, Grouping: true})
		s.deliverState()
	case cmdScrolledAway:
		s.away = c.away
		s.updatePinned()
	}
}

// issue starts a new request, superseding any request and computation in
// flight.
func (s *Session) issue(loc Location) {
	if loc.Count <= 0 {
		loc.Count = s.opts.Count
	}
	if s.req.cancel != nil {
		s.req.cancel()
	}
	s.busy = false
	s.pending = nil
	s.gen++

	ctx, cancel := context.WithCancel(s.ctx)
	s.req = request{loc: loc, ctx: ctx, cancel: cancel}
	s.log.Debug("request", "generation", s.gen, "location", loc.Kind, "key", loc.Key, "count", loc.Count)

	ch := s.src.RequestWindow(ctx, loc, loc.Count)
	go s.forward(ctx, s.gen, ch)
}

func (s *Session) forward(ctx context.Context, gen uint64, ch <-chan history.HistoryWindow) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.windows <- windowMsg{gen: gen, window: w}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Session) handleWindow(m windowMsg) {
	if m.gen != s.gen {
		windowsTotal.WithLabelValues("stale").Inc()
		return
	}
	w := m.window
	if w.IsLoading {
		windowsTotal.WithLabelValues("loading").Inc()
		s.setLoading()
		return
	}

	j := job{gen: s.gen, window: w}
	switch fill, hasFill := firstFill(w.HoleFills); {
	case !s.req.anchored:
		spec, reason, animated, wait := s.req.loc.anchorFor(w)
		if wait {
			windowsTotal.WithLabelValues("waiting").Inc()
			s.setLoading()
			return
		}
		s.req.anchored = true
		j.spec, j.reason, j.animated, j.anchored = spec, reason, animated, true
	case hasFill:
		j.spec, j.reason = history.HoleAnchor(fill), history.ReasonHoleReload
	default:
		j.spec, j.reason, j.animated = history.NoAnchor(), history.ReasonReload, true
	}
	windowsTotal.WithLabelValues("ready").Inc()
	s.window, s.haveWindow = w, true
	s.schedule(j)
}

// firstFill picks the fill of the lowest hole id so that the choice does not
// depend on map order.
func firstFill(fills map[int64]history.HoleFill) (history.HoleFill, bool) {
	if len(fills) == 0 {
		return history.HoleFill{}, false
	}
	return fills[slices.Min(slices.Collect(maps.Keys(fills)))], true
}

// refresh re-renders the current window under the current options. A
// computation in flight was started with the old options, so a refresh is
// parked behind it; a job already parked reads the options when it starts.
func (s *Session) refresh() {
	if !s.haveWindow {
		return
	}
	j := job{gen: s.gen, window: s.window, spec: history.NoAnchor(), reason: history.ReasonGeneric}
	switch {
	case s.busy:
		if s.pending == nil {
			s.pending = &j
		}
	case !s.needsPaint:
		s.start(j)
	}
}

// schedule runs j now, or parks it until the computation in flight is done.
// A parked job is replaced by newer ones but keeps its request's anchor, or
// the anchor of the hole fill that produced it.
func (s *Session) schedule(j job) {
	if !s.busy {
		s.start(j)
		return
	}
	if p := s.pending; p != nil && !j.anchored {
		switch {
		case p.anchored:
			j.spec, j.reason, j.animated, j.anchored = p.spec, p.reason, p.animated, true
		case p.spec.Kind == history.AnchorHole && j.spec.Kind != history.AnchorHole:
			j.spec, j.reason, j.animated = p.spec, p.reason, p.animated
		}
	}
	s.pending = &j
}

func (s *Session) start(j job) {
	j.prev = s.rendered
	j.opts = s.topts
	j.firstPaint = s.needsPaint
	s.busy = true

	ctx := s.req.ctx
	if j.firstPaint && s.opts.DeliverInline {
		if r, ok := s.compute(ctx, j); ok {
			s.handleResult(r)
		}
		return
	}
	go func() {
		r, ok := s.compute(ctx, j)
		if !ok {
			cancelledTotal.Inc()
			return
		}
		select {
		case s.results <- r:
		case <-ctx.Done():
			cancelledTotal.Inc()
		}
	}()
}

// compute runs off the session goroutine unless the first paint is inline.
// It only reads j and immutable options.
func (s *Session) compute(ctx context.Context, j job) (result, bool) {
	kind := "diff"
	if j.firstPaint {
		kind = "first_paint"
	}
	start := time.Now()
	defer func() { computeDurationSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds()) }()

	list := s.opts.TransformFunc(j.window, j.opts)
	if s.opts.Debug {
		history.MustValidate(list)
	}
	if ctx.Err() != nil {
		return result{}, false
	}

	anchor := history.Resolve(list, j.spec)
	r := result{gen: j.gen, list: list}
	if j.firstPaint {
		m := history.Materialize(list, anchor, s.opts.ViewportHeight, s.opts.Measure)
		r.first = &m
		return r, true
	}
	t := history.Diff(j.prev, list, history.DiffOptions{Anchor: anchor, Animated: j.animated, Reason: j.reason})
	r.diff = &t
	return r, true
}

func (s *Session) handleResult(r result) {
	if r.gen != s.gen {
		cancelledTotal.Inc()
		return
	}
	switch {
	case r.first != nil:
		m := r.first
		materializedRows.Observe(float64(m.Slice.Len()))
		s.needsPaint = false
		s.setStatus(StatusFirstPaint)
		s.rendered = make([]history.RenderedEntry, 0, m.Slice.Len())
		if m.Slice.Len() > 0 {
			s.rendered = append(s.rendered, r.list[m.Slice.Lo:m.Slice.Hi+1]...)
		}
		s.emit(m.First)
		if m.Deferred == nil {
			s.finish(r.list)
			return
		}
		deferred := result{gen: r.gen, list: r.list, deferred: m.Deferred}
		ctx := s.req.ctx
		go func() {
			select {
			case s.results <- deferred:
			case <-ctx.Done():
				cancelledTotal.Inc()
			}
		}()

	case r.deferred != nil:
		s.rendered = r.list
		s.emit(*r.deferred)
		s.finish(r.list)

	case r.diff != nil:
		s.rendered = r.list
		s.emit(*r.diff)
		s.finish(r.list)
	}
}

// finish marks the current computation done and starts the parked one.
func (s *Session) finish(list []history.RenderedEntry) {
	if list == nil {
		list = []history.RenderedEntry{}
	}
	s.rendered = list
	s.setStatus(StatusSteady)
	s.busy = false
	if p := s.pending; p != nil {
		s.pending = nil
		s.start(*p)
	}
}

func (s *Session) jump(key history.OrderKey, placement history.Placement) {
	if containsKey(s.rendered, key) {
		spec := history.ToIndex(key, placement, true)
		spec.Focus = true
		st := history.Resolve(s.rendered, spec)
		s.emit(history.Transition{Anchor: st, Animated: true, Grouping: true, Phase: history.PhaseDiff})
		return
	}
	s.log.Debug("jump target not loaded", "key", key)
	s.reset()
	s.issue(InitialSearch(key, s.opts.Count))
}

func (s *Session) reachedEdge(edge history.Edge) {
	if !s.haveWindow {
		return
	}
	key, ok := s.window.Boundary(edge)
	if !ok {
		return
	}
	if l := s.req.loc; l.Kind == LocNavigation && l.Key == key && l.Side == edge {
		return
	}
	if s.opts.OnRequestMore != nil {
		s.opts.OnRequestMore(edge, key)
	}
	s.issue(Navigation(key, edge, s.opts.Count))
}

// reset clears the view and waits for a fresh first paint.
func (s *Session) reset() {
	if n := len(s.rendered); n > 0 {
		t := history.Transition{Deletions: make([]int, 0, n), Phase: history.PhaseReset}
		for i := n - 1; i >= 0; i-- {
			t.Deletions = append(t.Deletions, i)
		}
		s.rendered = nil
		s.emit(t)
	}
	s.rendered = nil
	s.haveWindow = false
	s.needsPaint = true
	s.setLoading()
}

func (s *Session) emit(t history.Transition) {
	// A no-op refresh leaves the viewport where it was.
	if t.Anchor.Kind != history.ScrollNone || !t.IsEmpty() {
		s.anchor = t.Anchor
	}
	transitionsTotal.WithLabelValues(t.Phase.String()).Inc()
	s.deliver(Delivery{Kind: DeliverTransition, Transition: t})
	s.updatePinned()
}

func (s *Session) updatePinned() {
	pinned := history.Pinned(s.window, s.rendered, s.anchor, s.away)
	if pinned != s.state.PinnedToNewest {
		s.state.PinnedToNewest = pinned
		s.deliverState()
	}
}

func (s *Session) deliverState() {
	s.deliver(Delivery{Kind: DeliverState, State: s.state.Clone()})
}

func (s *Session) setStatus(st Status) {
	s.status = st
	if st != StatusLoading {
		s.shownLoading = false
	}
}

func (s *Session) setLoading() {
	if s.status == StatusLoading && s.shownLoading {
		return
	}
	s.setStatus(StatusLoading)
	s.shownLoading = true
	s.deliver(Delivery{Kind: DeliverLoading})
}

func (s *Session) deliver(d Delivery) {
	s.seq++
	d.Seq = s.seq
	d.Generation = s.gen
	d.Status = s.status
	select {
	case s.out <- d:
	case <-s.closing:
	case <-s.ctx.Done():
	}
}

// containsKey reports whether a message with exactly key is on screen,
// including inside grouped rows.
func containsKey(list []history.RenderedEntry, key history.OrderKey) bool {
	for _, r := range list {
		e := r.Entry
		switch e.Kind {
		case history.KindMessage:
			if e.Key == key {
				return true
			}
		case history.KindGroup:
			for _, c := range e.Children {
				if c.Key == key {
					return true
				}
			}
		}
	}
	return false
}
