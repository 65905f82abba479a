package history

// Edge names one end of the history. The upper edge holds the newest rows
// (position 0); the lower edge holds the oldest.
type Edge uint8

const (
	EdgeUpper Edge = iota
	EdgeLower
)

func (e Edge) String() string {
	if e == EdgeLower {
		return "lower"
	}
	return "upper"
}

// FillDirection is the direction in which a hole was filled.
type FillDirection uint8

const (
	// LowerToUpper filled from older toward newer messages.
	LowerToUpper FillDirection = iota
	// UpperToLower filled from newer toward older messages.
	UpperToLower
)

func (d FillDirection) String() string {
	if d == UpperToLower {
		return "upper_to_lower"
	}
	return "lower_to_upper"
}

// HoleFill describes a gap that was filled or removed since the previous
// window. Key is the order key the gap was anchored at.
type HoleFill struct {
	Direction FillDirection `json:"direction"`
	Key       OrderKey      `json:"key"`
}

// RawEntry is one element of a history window: either a message or a hole.
type RawEntry struct {
	Hole    *Hole    `json:"hole,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Key returns the order key the raw entry sorts at.
func (r RawEntry) Key() OrderKey {
	if r.Hole != nil {
		return r.Hole.Max
	}
	if r.Message != nil {
		return r.Message.Key
	}
	return AbsoluteLower
}

// HistoryWindow is one paginated snapshot of a chat's log, newest first.
// EarlierID and LaterID are non-nil iff more data exists past that edge.
type HistoryWindow struct {
	Entries   []RawEntry         `json:"entries"`
	EarlierID *OrderKey          `json:"earlier_id,omitempty"`
	LaterID   *OrderKey          `json:"later_id,omitempty"`
	HoleFills map[int64]HoleFill `json:"hole_fills,omitempty"`
	MaxRead   *OrderKey          `json:"max_read,omitempty"`
	IsLoading bool               `json:"is_loading,omitempty"`

	// AddedToChatList is false for chats the user has not joined; they do
	// not restore read position.
	AddedToChatList bool `json:"added_to_chat_list,omitempty"`
}

// HasMore reports whether the window has more data past edge.
func (w HistoryWindow) HasMore(edge Edge) bool {
	if edge == EdgeUpper {
		return w.LaterID != nil
	}
	return w.EarlierID != nil
}

// Boundary returns the pagination marker on edge, if any.
func (w HistoryWindow) Boundary(edge Edge) (OrderKey, bool) {
	var k *OrderKey
	if edge == EdgeUpper {
		k = w.LaterID
	} else {
		k = w.EarlierID
	}
	if k == nil {
		return OrderKey{}, false
	}
	return *k, true
}
