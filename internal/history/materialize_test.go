package history

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMaterializeEmpty(t *testing.T) {
	m := Materialize(nil, ScrollState{}, 30, unit)
	if m.Slice.Len() != 0 || len(m.First.Insertions) != 0 || m.Deferred != nil {
		t.Errorf("unexpected result %+v", m)
	}
	if m.First.Anchor.Kind != ScrollNone || m.First.Phase != PhaseFirstPaint {
		t.Errorf("unexpected first transition %+v", m.First)
	}
}

func TestMaterializeFromUpper(t *testing.T) {
	list := rows(window(1, 500))
	m := Materialize(list, SaveVisibleState(EdgeUpper), 30, unit)

	if m.Slice != (Slice{Lo: 0, Hi: 30}) {
		t.Fatalf("slice %+v", m.Slice)
	}
	if m.First.Insertions[0].Entry.ID() != MessageID(500) {
		t.Errorf("first row %s", m.First.Insertions[0].Entry.ID())
	}
	if m.Deferred == nil {
		t.Fatal("expected a deferred transition")
	}
	if len(m.Deferred.Insertions) != 469 || m.Deferred.Insertions[0].Position != 31 {
		t.Errorf("deferred has %d rows starting at %d", len(m.Deferred.Insertions), m.Deferred.Insertions[0].Position)
	}
	if m.Deferred.Animated || m.Deferred.Anchor != SaveVisibleState(EdgeUpper) || m.Deferred.Phase != PhaseDeferred {
		t.Errorf("deferred flags %+v", m.Deferred)
	}
}

func TestMaterializeAroundUnread(t *testing.T) {
	w := window(1, 500)
	read := key(380) // marker lands at position 120
	w.MaxRead = &read
	list := rows(w)
	state := Resolve(list, ToUnread())
	if p := IndexOf(list, state.ID); p != 120 {
		t.Fatalf("marker at %d", p)
	}

	m := Materialize(list, state, 35, unit)
	if !m.Slice.Contains(120) {
		t.Fatalf("slice %+v misses the anchor", m.Slice)
	}
	if m.Slice.Lo == 0 || m.Slice.Hi == len(list)-1 {
		t.Errorf("slice %+v should be a sub-range", m.Slice)
	}
	if m.First.Insertions[0].Position != 0 {
		t.Error("first paint rows must be re-indexed from zero")
	}
	if m.First.Anchor.ID != UnreadID {
		t.Errorf("anchor %+v", m.First.Anchor)
	}
	// The viewport from the marker on, plus one overflow row.
	if got := m.Slice; got.Lo != 85 || got.Hi != 120 {
		t.Errorf("slice %+v, want [85, 120]", got)
	}
}

func TestMaterializeCentered(t *testing.T) {
	list := rows(window(1, 100))
	state := Resolve(list, Centered(key(50), true))
	m := Materialize(list, state, 10, unit)
	p := IndexOf(list, state.ID)
	if m.Slice.Lo != p-5 || m.Slice.Hi != p+5 {
		t.Errorf("slice %+v around %d", m.Slice, p)
	}

	// Near an edge one side stops early.
	state = Resolve(list, Centered(key(99), true))
	m = Materialize(list, state, 10, unit)
	if m.Slice.Lo != 0 || m.Slice.Hi != 6 {
		t.Errorf("slice %+v", m.Slice)
	}
}

func TestMaterializeBottomFallsBack(t *testing.T) {
	list := rows(window(1, 20))
	m := Materialize(list, ScrollState{Kind: ScrollBottom, ID: MessageID(3)}, 8, unit)
	// Only two rows past message 3, so the walk turns back toward newer rows.
	if m.Slice.Hi != 19 || m.Slice.Len() != 9 {
		t.Errorf("slice %+v", m.Slice)
	}
}

func TestMaterializeMissingAnchor(t *testing.T) {
	list := rows(window(1, 50))
	m := Materialize(list, ScrollState{Kind: ScrollTop, ID: MessageID(999)}, 10, unit)
	if m.Slice.Lo != 0 {
		t.Errorf("slice %+v", m.Slice)
	}
	if m.First.Anchor != SaveVisibleState(EdgeUpper) {
		t.Errorf("anchor %+v", m.First.Anchor)
	}
}

func TestMaterializeBudget(t *testing.T) {
	list := rows(window(1, 300))
	measure := func(r RenderedEntry) float64 { return float64(1 + r.Entry.Message.ID%4) }
	const height = 40

	for _, p := range []int{0, 17, 150, 299} {
		for _, kind := range []ScrollKind{ScrollTop, ScrollBottom, ScrollCenter} {
			m := Materialize(list, ScrollState{Kind: kind, ID: list[p].ID()}, height, measure)
			var total, largest float64
			for _, r := range m.First.Insertions {
				h := measure(r.Entry)
				total += h
				largest = max(largest, h)
			}
			if total-3*largest > height {
				t.Errorf("%s at %d: %v rows exceed the budget", kind, p, total)
			}
		}
	}
}

func TestMaterializeReassembles(t *testing.T) {
	list := rows(window(1, 120))
	for _, p := range []int{0, 60, 119} {
		m := Materialize(list, ScrollState{Kind: ScrollTop, ID: list[p].ID()}, 25, unit)
		got := mustApply(t, nil, m.First)
		got = mustApply(t, got, *m.Deferred)
		if diff := cmp.Diff(ids(list), ids(got)); diff != "" {
			t.Errorf("anchor %d: reassembled list differs (-want +got):\n%s", p, diff)
		}
	}
}
