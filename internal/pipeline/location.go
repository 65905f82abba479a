package pipeline

import (
	"context"

	"github.com/wethinkt/go-histview/internal/history"
)

// unreadMargin is how close to an edge with more data the first unread
// message may sit before the session waits for a better window.
const unreadMargin = 40

// LocationKind enumerates the ways a session asks for history.
type LocationKind uint8

const (
	LocInitial LocationKind = iota
	LocInitialSearch
	LocNavigation
	LocScroll
)

var locationKindNames = [...]string{"initial", "initial_search", "navigation", "scroll"}

func (k LocationKind) String() string {
	if int(k) < len(locationKindNames) {
		return locationKindNames[k]
	}
	return "unknown"
}

// Location describes which slice of a chat's history a request wants.
type Location struct {
	Kind      LocationKind      `json:"kind"`
	Key       history.OrderKey  `json:"key"`
	Count     int               `json:"count"`
	Side      history.Edge      `json:"side,omitempty"`
	Placement history.Placement `json:"placement,omitempty"`
	Animated  bool              `json:"animated,omitempty"`

	// Restore, when set on an initial location, is the remembered scroll
	// position to return to when there is nothing unread.
	Restore       *history.OrderKey `json:"restore,omitempty"`
	RestoreOffset float64           `json:"restore_offset,omitempty"`
}

// Initial opens a chat at its unread marker or newest message.
func Initial(count int) Location { return Location{Kind: LocInitial, Count: count} }

// InitialRestoring opens a chat at a remembered position when nothing is
// unread.
func InitialRestoring(key history.OrderKey, offset float64, count int) Location {
	return Location{Kind: LocInitial, Count: count, Restore: &key, RestoreOffset: offset}
}

// InitialSearch reopens a chat centered on key.
func InitialSearch(key history.OrderKey, count int) Location {
	return Location{Kind: LocInitialSearch, Key: key, Count: count}
}

// Navigation extends the loaded history past key toward side.
func Navigation(key history.OrderKey, side history.Edge, count int) Location {
	return Location{Kind: LocNavigation, Key: key, Side: side, Count: count}
}

// Scroll loads the history around key and scrolls to it.
func Scroll(key history.OrderKey, placement history.Placement, animated bool, count int) Location {
	return Location{Kind: LocScroll, Key: key, Placement: placement, Animated: animated, Count: count}
}

// resets reports whether the location discards what is on screen.
func (l Location) resets() bool {
	return l.Kind == LocInitial || l.Kind == LocInitialSearch
}

// anchorFor picks the anchor for the first ready window of a request. wait
// is true when the window is not good enough to paint yet.
func (l Location) anchorFor(w history.HistoryWindow) (spec history.AnchorSpec, reason history.Reason, animated, wait bool) {
	switch l.Kind {
	case LocInitialSearch:
		return history.Centered(l.Key, true), history.ReasonInitial, false, false
	case LocScroll:
		return history.ToIndex(l.Key, l.Placement, l.Animated), history.ReasonInteractive, l.Animated, false
	case LocNavigation:
		return history.SaveVisible(l.Side), history.ReasonReload, false, false
	}

	if w.MaxRead != nil && w.AddedToChatList {
		if idx := firstUnread(w); idx >= 0 {
			if (idx < unreadMargin && w.HasMore(history.EdgeUpper)) ||
				(len(w.Entries)-idx < unreadMargin && w.HasMore(history.EdgeLower)) {
				return history.NoAnchor(), history.ReasonInitial, false, true
			}
			return history.ToUnread(), history.ReasonInitial, false, false
		}
	}
	if l.Restore != nil {
		return history.RestorePosition(*l.Restore, l.RestoreOffset), history.ReasonInitial, false, false
	}
	return history.NoAnchor(), history.ReasonInitial, false, false
}

// firstUnread returns the index in w.Entries of the oldest message newer
// than MaxRead, or -1.
func firstUnread(w history.HistoryWindow) int {
	for i := len(w.Entries) - 1; i >= 0; i-- {
		if m := w.Entries[i].Message; m != nil && w.MaxRead.Less(m.Key) {
			return i
		}
	}
	return -1
}

// WindowSource delivers history windows for a location. The returned channel
// yields zero or more loading windows, then ready windows as the underlying
// data changes, until ctx is cancelled.
type WindowSource interface {
	RequestWindow(ctx context.Context, loc Location, count int) <-chan history.HistoryWindow
}

// SourceFunc adapts a function to WindowSource.
type SourceFunc func(ctx context.Context, loc Location, count int) <-chan history.HistoryWindow

func (f SourceFunc) RequestWindow(ctx context.Context, loc Location, count int) <-chan history.HistoryWindow {
	return f(ctx, loc, count)
}
