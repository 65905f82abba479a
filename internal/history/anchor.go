package history

// Placement says where the anchored row should land in the viewport.
type Placement uint8

const (
	PlaceTop Placement = iota
	PlaceBottom
	PlaceCenter
)

func (p Placement) String() string {
	switch p {
	case PlaceBottom:
		return "bottom"
	case PlaceCenter:
		return "center"
	}
	return "top"
}

// AnchorKind enumerates scroll intents.
type AnchorKind uint8

const (
	AnchorNone AnchorKind = iota
	AnchorSaveVisible
	AnchorUnread
	AnchorRestore
	AnchorIndex
	AnchorHole
)

// AnchorSpec is a request for where the viewport should end up after a
// transition. Build one with the constructors below.
type AnchorSpec struct {
	Kind      AnchorKind
	Key       OrderKey
	Offset    float64
	Placement Placement
	Animated  bool
	Focus     bool
	Edge      Edge
	Fill      FillDirection
}

// ToUnread anchors at the unread marker.
func ToUnread() AnchorSpec { return AnchorSpec{Kind: AnchorUnread} }

// RestorePosition anchors at the first row at or after key, offset by the
// remembered pixel offset.
func RestorePosition(key OrderKey, offset float64) AnchorSpec {
	return AnchorSpec{Kind: AnchorRestore, Key: key, Offset: offset}
}

// ToIndex anchors at the first row at or after key.
func ToIndex(key OrderKey, placement Placement, animated bool) AnchorSpec {
	return AnchorSpec{Kind: AnchorIndex, Key: key, Placement: placement, Animated: animated}
}

// Centered anchors at key, centered in the viewport. Focus highlights it.
func Centered(key OrderKey, focus bool) AnchorSpec {
	return AnchorSpec{Kind: AnchorIndex, Key: key, Placement: PlaceCenter, Focus: focus}
}

// SaveVisible asks the renderer to keep whatever is visible stationary,
// measured from edge.
func SaveVisible(edge Edge) AnchorSpec { return AnchorSpec{Kind: AnchorSaveVisible, Edge: edge} }

// HoleAnchor anchors next to a gap that was just filled or removed.
func HoleAnchor(f HoleFill) AnchorSpec {
	return AnchorSpec{Kind: AnchorHole, Key: f.Key, Fill: f.Direction}
}

// NoAnchor requests no scroll adjustment at all.
func NoAnchor() AnchorSpec { return AnchorSpec{} }

// ScrollKind enumerates resolved anchors.
type ScrollKind uint8

const (
	ScrollNone ScrollKind = iota
	ScrollSaveVisible
	ScrollTop
	ScrollBottom
	ScrollCenter
)

var scrollKindNames = [...]string{"none", "save_visible", "top", "bottom", "center"}

func (k ScrollKind) String() string {
	if int(k) < len(scrollKindNames) {
		return scrollKindNames[k]
	}
	return "unknown"
}

// ScrollState is a resolved anchor: a concrete row (and optionally a child
// inside a grouped row) or a pass-through policy.
type ScrollState struct {
	Kind     ScrollKind `json:"kind"`
	ID       StableID   `json:"id"`
	HasInner bool       `json:"has_inner,omitempty"`
	InnerID  StableID   `json:"inner_id"`
	Offset   float64    `json:"offset,omitempty"`
	Animated bool       `json:"animated,omitempty"`
	Focus    bool       `json:"focus,omitempty"`
	Edge     Edge       `json:"edge,omitempty"`
}

// Positioned reports whether the state names a concrete row.
func (s ScrollState) Positioned() bool {
	return s.Kind == ScrollTop || s.Kind == ScrollBottom || s.Kind == ScrollCenter
}

// SaveVisibleState is the resolved form of SaveVisible(edge).
func SaveVisibleState(edge Edge) ScrollState {
	return ScrollState{Kind: ScrollSaveVisible, Edge: edge}
}

func placed(p Placement, id StableID) ScrollState {
	switch p {
	case PlaceBottom:
		return ScrollState{Kind: ScrollBottom, ID: id}
	case PlaceCenter:
		return ScrollState{Kind: ScrollCenter, ID: id}
	}
	return ScrollState{Kind: ScrollTop, ID: id}
}

// Resolve maps spec onto a row of list. Positioned specs always resolve when
// list is non-empty; SaveVisible and None pass through unresolved. Resolve is
// deterministic and never fails.
func Resolve(list []RenderedEntry, spec AnchorSpec) ScrollState {
	switch spec.Kind {
	case AnchorUnread:
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].Entry.Kind == KindUnread {
				// Any inset above the marker is left to the renderer: Offset
				// is in Measure units and seeds the first-paint budget.
				return ScrollState{Kind: ScrollTop, ID: list[i].ID()}
			}
		}
		return SaveVisibleState(EdgeUpper)

	case AnchorRestore:
		i, ok := scanAtOrAfter(list, spec.Key)
		if !ok {
			i, ok = scanBefore(list, spec.Key)
		}
		if !ok {
			return SaveVisibleState(EdgeUpper)
		}
		return ScrollState{Kind: ScrollTop, ID: list[i].ID(), Offset: spec.Offset}

	case AnchorIndex:
		st, ok := resolveIndex(list, spec)
		if !ok {
			return SaveVisibleState(EdgeUpper)
		}
		st.Animated = spec.Animated
		st.Focus = spec.Focus
		return st

	case AnchorHole:
		var i int
		var ok bool
		if spec.Fill == LowerToUpper {
			if i, ok = scanAtOrAfter(list, spec.Key); !ok {
				i, ok = scanBefore(list, spec.Key)
			}
		} else {
			if i, ok = scanAtOrBefore(list, spec.Key); !ok {
				i, ok = scanAfter(list, spec.Key)
			}
		}
		if !ok {
			return SaveVisibleState(EdgeUpper)
		}
		return ScrollState{Kind: ScrollTop, ID: list[i].ID()}

	case AnchorSaveVisible:
		return SaveVisibleState(spec.Edge)
	}
	return ScrollState{}
}

func resolveIndex(list []RenderedEntry, spec AnchorSpec) (ScrollState, bool) {
	if i, ok := scanAtOrAfter(list, spec.Key); ok {
		e := list[i].Entry
		st := placed(spec.Placement, e.ID())
		if e.Kind == KindGroup {
			for _, child := range e.Children {
				if child.Key == spec.Key {
					st.HasInner = true
					st.InnerID = child.ID()
					break
				}
			}
		}
		return st, true
	}
	if i, ok := scanBefore(list, spec.Key); ok {
		return placed(spec.Placement, list[i].ID()), true
	}
	return ScrollState{}, false
}

// scanAtOrAfter returns the oldest row whose key is >= key.
func scanAtOrAfter(list []RenderedEntry, key OrderKey) (int, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].Key().Less(key) {
			return i, true
		}
	}
	return 0, false
}

// scanAfter returns the oldest row whose key is > key.
func scanAfter(list []RenderedEntry, key OrderKey) (int, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if key.Less(list[i].Key()) {
			return i, true
		}
	}
	return 0, false
}

// scanBefore returns the newest row whose key is < key.
func scanBefore(list []RenderedEntry, key OrderKey) (int, bool) {
	for i := range list {
		if list[i].Key().Less(key) {
			return i, true
		}
	}
	return 0, false
}

// scanAtOrBefore returns the newest row whose key is <= key.
func scanAtOrBefore(list []RenderedEntry, key OrderKey) (int, bool) {
	for i := range list {
		if !key.Less(list[i].Key()) {
			return i, true
		}
	}
	return 0, false
}

// IndexOf returns the position of id in list, or -1.
func IndexOf(list []RenderedEntry, id StableID) int {
	for i := range list {
		if list[i].ID() == id {
			return i
		}
	}
	return -1
}
