package server

import (
	"errors"
	"fmt"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/pipeline"
)

// Frame is one server-to-client WebSocket message. The first frame of a
// connection is a hello carrying the client id; every later frame mirrors a
// pipeline delivery, or reports a rejected command.
type Frame struct {
	Type       string              `json:"type"`
	Client     string              `json:"client,omitempty"`
	Seq        uint64              `json:"seq,omitempty"`
	Generation uint64              `json:"generation,omitempty"`
	Status     string              `json:"status,omitempty"`
	Transition *history.Transition `json:"transition,omitempty"`
	State      *history.State      `json:"state,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func frameFor(d pipeline.Delivery) Frame {
	f := Frame{
		Type:       d.Kind.String(),
		Seq:        d.Seq,
		Generation: d.Generation,
		Status:     d.Status.String(),
	}
	switch d.Kind {
	case pipeline.DeliverTransition:
		t := d.Transition
		f.Transition = &t
	case pipeline.DeliverState:
		st := d.State
		f.State = &st
	}
	return f
}

// Command is one client-to-server WebSocket message.
type Command struct {
	Op        string            `json:"op"`
	Key       *history.OrderKey `json:"key,omitempty"`
	From      *history.OrderKey `json:"from,omitempty"`
	Placement string            `json:"placement,omitempty"`
	Edge      string            `json:"edge,omitempty"`
	Away      bool              `json:"away,omitempty"`
	Theme     string            `json:"theme,omitempty"`
	FontSize  int               `json:"font_size,omitempty"`
}

var errMissingKey = errors.New("key is required")

// apply runs c against sess. pres is the presentation the client currently
// sees; a presentation command updates it.
func (c Command) apply(sess *pipeline.Session, pres *history.Presentation) error {
	switch c.Op {
	case "jump":
		if c.Key == nil {
			return errMissingKey
		}
		placement, err := parsePlacement(c.Placement)
		if err != nil {
			return err
		}
		return sess.JumpTo(*c.Key, placement)
	case "reach_edge":
		edge, err := parseEdge(c.Edge)
		if err != nil {
			return err
		}
		return sess.ReachedEdge(edge)
	case "scroll_to_newest":
		return sess.ScrollToNewest()
	case "scrolled_away":
		return sess.SetScrolledAway(c.Away)
	case "push_reply":
		if c.Key == nil || c.From == nil {
			return errors.New("from and key are required")
		}
		return sess.PushReply(*c.From, *c.Key)
	case "pop_reply":
		return sess.PopReply()
	case "presentation":
		if c.Theme != "" {
			pres.Theme = c.Theme
		}
		if c.FontSize > 0 {
			pres.FontSize = c.FontSize
		}
		return sess.SetPresentation(*pres)
	case "reload":
		return sess.Navigate(pipeline.Initial(0))
	}
	return fmt.Errorf("unknown op %q", c.Op)
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
