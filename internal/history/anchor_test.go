package history

import "testing"

func TestResolveUnread(t *testing.T) {
	w := window(1, 50)
	read := key(20)
	w.MaxRead = &read
	list := rows(w)

	got := Resolve(list, ToUnread())
	if got.Kind != ScrollTop || got.ID != UnreadID || got.Offset != 0 || got.Focus {
		t.Errorf("unexpected state %+v", got)
	}

	got = Resolve(rows(window(1, 50)), ToUnread())
	if got != SaveVisibleState(EdgeUpper) {
		t.Errorf("without a marker expected save-visible upper, got %+v", got)
	}
}

func TestResolveRestore(t *testing.T) {
	list := rows(window(1, 50))
	tests := []struct {
		name   string
		target OrderKey
		want   StableID
	}{
		{"exact", key(17), MessageID(17)},
		{"between", OrderKey{Timestamp: key(17).Timestamp + 1}, MessageID(18)},
		{"past newest", key(90), MessageID(50)},
		{"before oldest", AbsoluteLower, MessageID(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(list, RestorePosition(tt.target, 12))
			if got.Kind != ScrollTop || got.ID != tt.want || got.Offset != 12 {
				t.Errorf("got %+v, want top %s", got, tt.want)
			}
		})
	}
}

func TestResolveIndexGroupChild(t *testing.T) {
	w := window(1, 10)
	for _, i := range []int{4, 5, 6} { // messages 6, 5, 4
		m := w.Entries[i].Message
		m.GroupKey = 3
		m.Media = []Media{{Kind: "photo", ID: m.ID}}
	}
	list := Transform(w, TransformOptions{GroupPhotos: true})

	got := Resolve(list, ToIndex(key(5), PlaceCenter, true))
	if got.Kind != ScrollCenter || got.ID != GroupID(6) {
		t.Fatalf("expected the cluster, got %+v", got)
	}
	if !got.HasInner || got.InnerID != MessageID(5) {
		t.Errorf("expected inner message 5, got %+v", got)
	}
	if !got.Animated {
		t.Error("animated flag should carry through")
	}

	got = Resolve(list, Centered(key(8), true))
	if got.ID != MessageID(8) || got.HasInner || !got.Focus {
		t.Errorf("unexpected state %+v", got)
	}
}

func TestResolveHole(t *testing.T) {
	list := rows(window(1, 40))
	mid := OrderKey{Timestamp: key(20).Timestamp + 1}

	up := Resolve(list, HoleAnchor(HoleFill{Direction: LowerToUpper, Key: mid}))
	if up.ID != MessageID(21) {
		t.Errorf("lower-to-upper: got %s, want message 21", up.ID)
	}
	down := Resolve(list, HoleAnchor(HoleFill{Direction: UpperToLower, Key: mid}))
	if down.ID != MessageID(20) {
		t.Errorf("upper-to-lower: got %s, want message 20", down.ID)
	}

	// Fallbacks past either edge.
	up = Resolve(list, HoleAnchor(HoleFill{Direction: LowerToUpper, Key: key(99)}))
	if up.ID != MessageID(40) {
		t.Errorf("lower-to-upper fallback: got %s", up.ID)
	}
	down = Resolve(list, HoleAnchor(HoleFill{Direction: UpperToLower, Key: AbsoluteLower}))
	if down.ID != MessageID(1) {
		t.Errorf("upper-to-lower fallback: got %s", down.ID)
	}
}

func TestResolvePassThrough(t *testing.T) {
	list := rows(window(1, 5))
	if got := Resolve(list, SaveVisible(EdgeLower)); got != SaveVisibleState(EdgeLower) {
		t.Errorf("got %+v", got)
	}
	if got := Resolve(list, NoAnchor()); got.Kind != ScrollNone {
		t.Errorf("got %+v", got)
	}
}

func TestResolveAlwaysPositionsNonEmpty(t *testing.T) {
	list := rows(window(1, 3))
	specs := []AnchorSpec{
		RestorePosition(AbsoluteUpper, 0),
		RestorePosition(AbsoluteLower, 0),
		ToIndex(AbsoluteUpper, PlaceTop, false),
		ToIndex(AbsoluteLower, PlaceBottom, false),
		HoleAnchor(HoleFill{Direction: UpperToLower, Key: AbsoluteUpper}),
		HoleAnchor(HoleFill{Direction: LowerToUpper, Key: AbsoluteLower}),
	}
	for _, s := range specs {
		got := Resolve(list, s)
		if !got.Positioned() || IndexOf(list, got.ID) < 0 {
			t.Errorf("spec %+v resolved to %+v", s, got)
		}
	}
	if got := Resolve(nil, ToIndex(key(1), PlaceTop, false)); got != SaveVisibleState(EdgeUpper) {
		t.Errorf("empty list: got %+v", got)
	}
}
