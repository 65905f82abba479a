package history

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Phase says which step produced a transition.
type Phase uint8

const (
	PhaseDiff Phase = iota
	PhaseFirstPaint
	PhaseDeferred
	PhaseReset
)

var phaseNames = [...]string{"diff", "first_paint", "deferred", "reset"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Row is a positioned rendered entry.
type Row struct {
	Position int           `json:"position"`
	Entry    RenderedEntry `json:"entry"`
}

// Transition is one ordered batch of row mutations. Apply deletions in the
// order given (descending), then insertions (ascending), then updates.
type Transition struct {
	Deletions  []int       `json:"deletions"`
	Insertions []Row       `json:"insertions"`
	Updates    []Row       `json:"updates"`
	Anchor     ScrollState `json:"anchor"`
	Animated   bool        `json:"animated"`
	Grouping   bool        `json:"grouping"`
	Phase      Phase       `json:"phase"`
}

// IsEmpty reports whether the transition mutates no rows.
func (t Transition) IsEmpty() bool {
	return len(t.Deletions) == 0 && len(t.Insertions) == 0 && len(t.Updates) == 0
}

// Reason is why a new list is being rendered.
type Reason uint8

const (
	// ReasonGeneric is a pure content refresh: no new data, e.g. re-theming.
	ReasonGeneric Reason = iota
	ReasonInitial
	ReasonInteractive
	ReasonHoleReload
	ReasonReload
)

var reasonNames = [...]string{"generic", "initial", "interactive", "hole_reload", "reload"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// DiffOptions carries the caller-supplied parts of a transition.
type DiffOptions struct {
	Anchor   ScrollState
	Animated bool
	Reason   Reason
}

// Diff computes the transition that turns prev into next. A nil prev means
// there is no prior state and yields all insertions.
//
// Rows are matched by StableID. Rows whose relative order changed are
// emitted as a deletion plus an insertion; there is no move operation.
func Diff(prev, next []RenderedEntry, opts DiffOptions) Transition {
	t := Transition{
		Anchor:   opts.Anchor,
		Animated: opts.Animated,
		Grouping: opts.Anchor.Kind != ScrollNone,
		Phase:    PhaseDiff,
	}
	if prev == nil || (opts.Anchor.Kind == ScrollNone && opts.Reason == ReasonGeneric) {
		t.Animated = false
	}

	nextIdx := make(map[StableID]int, len(next))
	for i, e := range next {
		nextIdx[e.ID()] = i
	}

	// Positions in next of the rows shared with prev, in prev order.
	var commonPrev, commonNext []int
	for i, e := range prev {
		if j, ok := nextIdx[e.ID()]; ok {
			commonPrev = append(commonPrev, i)
			commonNext = append(commonNext, j)
		}
	}
	keep := make(map[int]bool, len(commonNext))
	keptPrev := make(map[int]bool, len(commonPrev))
	for _, k := range longestIncreasing(commonNext) {
		keep[commonNext[k]] = true
		keptPrev[commonPrev[k]] = true
	}

	for i := len(prev) - 1; i >= 0; i-- {
		if !keptPrev[i] {
			t.Deletions = append(t.Deletions, i)
		}
	}

	prevPos := make(map[StableID]int, len(prev))
	for i, e := range prev {
		prevPos[e.ID()] = i
	}
	for j, e := range next {
		if !keep[j] {
			t.Insertions = append(t.Insertions, Row{Position: j, Entry: e})
			continue
		}
		if !prev[prevPos[e.ID()]].SameContent(e) {
			t.Updates = append(t.Updates, Row{Position: j, Entry: e})
		}
	}
	return t
}

// longestIncreasing returns the indices of a longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) []int {
	if len(seq) == 0 {
		return nil
	}
	tails := make([]int, 0, len(seq)) // indices into seq
	parent := make([]int, len(seq))
	for i, v := range seq {
		k := sort.Search(len(tails), func(t int) bool { return seq[tails[t]] >= v })
		if k > 0 {
			parent[i] = tails[k-1]
		} else {
			parent[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}
	out := make([]int, len(tails))
	for i, k := len(tails)-1, tails[len(tails)-1]; i >= 0; i, k = i-1, parent[k] {
		out[i] = k
	}
	return out
}

// ErrPosition is returned by Apply when a transition does not fit the list.
var ErrPosition = errors.New("history: transition position out of range")

// Apply returns the list that results from applying t to prev. prev is not
// modified.
func Apply(prev []RenderedEntry, t Transition) ([]RenderedEntry, error) {
	out := slices.Clone(prev)
	if out == nil {
		out = []RenderedEntry{}
	}
	for _, p := range t.Deletions {
		if p < 0 || p >= len(out) {
			return nil, fmt.Errorf("delete at %d of %d: %w", p, len(out), ErrPosition)
		}
		out = slices.Delete(out, p, p+1)
	}
	for _, r := range t.Insertions {
		if r.Position < 0 || r.Position > len(out) {
			return nil, fmt.Errorf("insert at %d of %d: %w", r.Position, len(out), ErrPosition)
		}
		out = slices.Insert(out, r.Position, r.Entry)
	}
	for _, r := range t.Updates {
		if r.Position < 0 || r.Position >= len(out) {
			return nil, fmt.Errorf("update at %d of %d: %w", r.Position, len(out), ErrPosition)
		}
		out[r.Position] = r.Entry
	}
	return out, nil
}
