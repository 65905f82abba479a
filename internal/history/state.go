package history

import "slices"

// State is the per-chat scroll bookkeeping kept alongside the rendered list.
type State struct {
	// PinnedToNewest is true while the view follows the newest message.
	PinnedToNewest bool `json:"pinned_to_newest"`
	// ReplyStack holds the keys to return to after jumping to replied
	// messages, most recent last.
	ReplyStack []OrderKey `json:"reply_stack,omitempty"`
}

// PushReply records from as the position to come back to. Pushing the key
// already on top is a no-op.
func (s *State) PushReply(from OrderKey) {
	if n := len(s.ReplyStack); n > 0 && s.ReplyStack[n-1] == from {
		return
	}
	s.ReplyStack = append(s.ReplyStack, from)
}

// PopReply removes and returns the most recent return position.
func (s *State) PopReply() (OrderKey, bool) {
	n := len(s.ReplyStack)
	if n == 0 {
		return OrderKey{}, false
	}
	k := s.ReplyStack[n-1]
	s.ReplyStack = s.ReplyStack[:n-1]
	return k, true
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.ReplyStack = slices.Clone(s.ReplyStack)
	return s
}

// Pinned reports whether a view showing list under anchor, with w as its
// source window, sits on the newest edge. scrolledAway is the renderer's own
// report that the user moved off the upper edge.
func Pinned(w HistoryWindow, list []RenderedEntry, anchor ScrollState, scrolledAway bool) bool {
	if w.HasMore(EdgeUpper) || scrolledAway {
		return false
	}
	if anchor.Positioned() {
		return IndexOf(list, anchor.ID) <= 0
	}
	return true
}
