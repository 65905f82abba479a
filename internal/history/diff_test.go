package history

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDiffRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	base := rows(window(1, 60))

	for n := 0; n < 200; n++ {
		prev := pick(r, base)
		next := pick(r, base)
		if r.IntN(3) == 0 {
			r.Shuffle(len(next), func(i, j int) { next[i], next[j] = next[j], next[i] })
		}
		for i := range next {
			if r.IntN(5) == 0 {
				next[i].Entry.Message.Text = "edited"
			}
		}

		tr := Diff(prev, next, DiffOptions{Reason: ReasonReload})
		if !slices.IsSortedFunc(tr.Deletions, func(a, b int) int { return b - a }) {
			t.Fatalf("deletions not descending: %v", tr.Deletions)
		}
		got := mustApply(t, prev, tr)
		if diff := cmp.Diff(next, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("round %d: Apply(prev, Diff(prev, next)) != next (-want +got):\n%s", n, diff)
		}
	}
}

func pick(r *rand.Rand, base []RenderedEntry) []RenderedEntry {
	var out []RenderedEntry
	for _, e := range base {
		if r.IntN(2) == 0 {
			out = append(out, e)
		}
	}
	return out
}

func TestDiffNoop(t *testing.T) {
	list := rows(window(1, 30))
	tr := Diff(list, slices.Clone(list), DiffOptions{Animated: true, Reason: ReasonGeneric})
	if !tr.IsEmpty() {
		t.Errorf("expected an empty transition, got %+v", tr)
	}
	if tr.Animated {
		t.Error("a pure refresh with no anchor must not animate")
	}
	if tr.Grouping {
		t.Error("grouping should be off without an anchor")
	}
}

func TestDiffReorder(t *testing.T) {
	list := rows(window(1, 3)) // 3, 2, 1
	next := []RenderedEntry{list[2], list[0], list[1]}

	tr := Diff(list, next, DiffOptions{})
	if diff := cmp.Diff([]int{2}, tr.Deletions); diff != "" {
		t.Errorf("deletions (-want +got):\n%s", diff)
	}
	if len(tr.Insertions) != 1 || tr.Insertions[0].Position != 0 || tr.Insertions[0].Entry.ID() != MessageID(1) {
		t.Errorf("insertions %+v", tr.Insertions)
	}
	if len(tr.Updates) != 0 {
		t.Errorf("updates %+v", tr.Updates)
	}
}

func TestDiffFromNothing(t *testing.T) {
	list := rows(window(1, 5))
	tr := Diff(nil, list, DiffOptions{Animated: true, Anchor: SaveVisibleState(EdgeUpper), Reason: ReasonInitial})
	if len(tr.Insertions) != 5 || len(tr.Deletions) != 0 {
		t.Errorf("expected 5 insertions, got %+v", tr)
	}
	if tr.Animated {
		t.Error("first transition must not animate")
	}
	if !tr.Grouping {
		t.Error("grouping should be on with an anchor")
	}
}

func TestDiffUpdatesUseNextPositions(t *testing.T) {
	prev := rows(window(1, 5))
	w := window(1, 6)
	w.Entries[3].Message.Text = "edited" // message 3
	next := rows(w)

	tr := Diff(prev, next, DiffOptions{Animated: true, Reason: ReasonInteractive})
	if !tr.Animated {
		t.Error("interactive change should keep its animation")
	}
	if len(tr.Updates) != 1 || tr.Updates[0].Position != 3 || tr.Updates[0].Entry.ID() != MessageID(3) {
		t.Errorf("updates %+v", tr.Updates)
	}
	if len(tr.Insertions) != 1 || tr.Insertions[0].Position != 0 {
		t.Errorf("insertions %+v", tr.Insertions)
	}
}

func TestDiffHoleFilled(t *testing.T) {
	var before, after HistoryWindow
	for id := int32(70); id > 60; id-- {
		before.Entries = append(before.Entries, RawEntry{Message: msg(id)})
		after.Entries = append(after.Entries, RawEntry{Message: msg(id)})
	}
	hole := &Hole{ID: 1, Min: key(50), Max: key(60)}
	before.Entries = append(before.Entries, RawEntry{Hole: hole})
	for id := int32(59); id > 51; id-- {
		after.Entries = append(after.Entries, RawEntry{Message: msg(id)})
	}
	for id := int32(49); id >= 40; id-- {
		before.Entries = append(before.Entries, RawEntry{Message: msg(id)})
		after.Entries = append(after.Entries, RawEntry{Message: msg(id)})
	}
	after.HoleFills = map[int64]HoleFill{hole.ID: {Direction: LowerToUpper, Key: hole.Max}}

	prev, next := rows(before), rows(after)
	anchor := Resolve(next, HoleAnchor(after.HoleFills[hole.ID]))
	if anchor.ID != MessageID(61) {
		t.Errorf("anchor %+v", anchor)
	}

	tr := Diff(prev, next, DiffOptions{Anchor: anchor, Reason: ReasonHoleReload})
	if diff := cmp.Diff([]int{10}, tr.Deletions); diff != "" {
		t.Errorf("deletions (-want +got):\n%s", diff)
	}
	if len(tr.Insertions) != 8 {
		t.Fatalf("expected 8 insertions, got %d", len(tr.Insertions))
	}
	for i, r := range tr.Insertions {
		if r.Position != 10+i {
			t.Errorf("insertion %d at %d", i, r.Position)
		}
	}
}

func TestApplyRejectsBadPositions(t *testing.T) {
	list := rows(window(1, 3))
	tests := []struct {
		name string
		tr   Transition
	}{
		{"delete", Transition{Deletions: []int{3}}},
		{"insert", Transition{Insertions: []Row{{Position: 5, Entry: list[0]}}}},
		{"update", Transition{Updates: []Row{{Position: -1, Entry: list[0]}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Apply(list, tt.tr); !errors.Is(err, ErrPosition) {
				t.Errorf("expected ErrPosition, got %v", err)
			}
		})
	}
	if len(list) != 3 {
		t.Error("Apply must not modify its input")
	}
}

func TestValidate(t *testing.T) {
	list := rows(window(1, 4))
	if err := Validate(list); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	swapped := []RenderedEntry{list[1], list[0]}
	var ce *ContractError
	if err := Validate(swapped); !errors.As(err, &ce) || ce.Position != 1 {
		t.Errorf("expected a key inversion at 1, got %v", err)
	}

	dup := []RenderedEntry{list[0], list[0]}
	defer func() {
		if recover() == nil {
			t.Error("MustValidate should panic on duplicate ids")
		}
	}()
	MustValidate(dup)
}
