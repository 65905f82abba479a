package history

// Slice is the contiguous range [Lo, Hi] of the full list that a first paint
// materialized. Hi < Lo when nothing was materialized.
type Slice struct {
	Lo, Hi int
}

// Len returns the number of rows in the slice.
func (s Slice) Len() int {
	if s.Hi < s.Lo {
		return 0
	}
	return s.Hi - s.Lo + 1
}

// Contains reports whether position i is inside the slice.
func (s Slice) Contains(i int) bool { return i >= s.Lo && i <= s.Hi }

// Materialized is the result of a first paint: the slice, the transition that
// inserts it, and the deferred transition that inserts everything else.
type Materialized struct {
	Slice    Slice
	First    Transition
	Deferred *Transition
}

// Materialize builds only the rows needed to fill a viewport of the given
// height around state, instead of the whole list. The rows it leaves out are
// returned as a deferred, non-animated transition; applying First and then
// Deferred to an empty view yields list exactly.
//
// A positioned state whose row is missing from list falls back to filling
// from the upper edge.
func Materialize(list []RenderedEntry, state ScrollState, height float64, measure MeasureFunc) Materialized {
	if len(list) == 0 {
		return Materialized{
			Slice: Slice{Lo: 0, Hi: -1},
			First: Transition{Anchor: state, Grouping: state.Kind != ScrollNone, Phase: PhaseFirstPaint},
		}
	}
	if measure == nil {
		measure = func(RenderedEntry) float64 { return 1 }
	}

	p := -1
	if state.Positioned() {
		if p = IndexOf(list, state.ID); p < 0 {
			state = SaveVisibleState(EdgeUpper)
		}
	}

	var s Slice
	switch {
	case p < 0:
		s = fillFromUpper(list, height, measure)
	case state.Kind == ScrollCenter:
		s = fillCentered(list, p, height, measure)
	case state.Kind == ScrollBottom:
		s = fillOutward(list, p, +1, state.Offset, height, measure)
	default:
		s = fillOutward(list, p, -1, state.Offset, height, measure)
	}

	first := Transition{
		Insertions: make([]Row, 0, s.Len()),
		Anchor:     state,
		Grouping:   state.Kind != ScrollNone,
		Phase:      PhaseFirstPaint,
	}
	for i := s.Lo; i <= s.Hi; i++ {
		first.Insertions = append(first.Insertions, Row{Position: i - s.Lo, Entry: list[i]})
	}

	m := Materialized{Slice: s, First: first}
	if rest := len(list) - s.Len(); rest > 0 {
		deferred := Transition{
			Insertions: make([]Row, 0, rest),
			Anchor:     SaveVisibleState(EdgeUpper),
			Grouping:   true,
			Phase:      PhaseDeferred,
		}
		for i := range list {
			if !s.Contains(i) {
				deferred.Insertions = append(deferred.Insertions, Row{Position: i, Entry: list[i]})
			}
		}
		m.Deferred = &deferred
	}
	return m
}

func fillFromUpper(list []RenderedEntry, height float64, measure MeasureFunc) Slice {
	var h float64
	hi := 0
	for ; hi < len(list); hi++ {
		h += measure(list[hi])
		if h > height {
			break
		}
	}
	return Slice{Lo: 0, Hi: min(hi, len(list)-1)}
}

// fillOutward walks from p in direction step, then in the opposite direction
// if the list runs out before the budget is spent.
func fillOutward(list []RenderedEntry, p, step int, offset, height float64, measure MeasureFunc) Slice {
	h := offset
	lo, hi := p, p
	done := false
	for i := p; i >= 0 && i < len(list); i += step {
		lo, hi = min(lo, i), max(hi, i)
		h += measure(list[i])
		if h > height {
			done = true
			break
		}
	}
	if done {
		return Slice{Lo: lo, Hi: hi}
	}
	for i := p - step; i >= 0 && i < len(list); i -= step {
		lo, hi = min(lo, i), max(hi, i)
		h += measure(list[i])
		if h > height {
			break
		}
	}
	return Slice{Lo: lo, Hi: hi}
}

// fillCentered grows the slice around p one row per side per step, giving
// each side half the budget. A side stops once its half is spent or it hits
// the end of the list.
func fillCentered(list []RenderedEntry, p int, height float64, measure MeasureFunc) Slice {
	half := height / 2
	lo, hi := p, p
	var newerH, olderH float64
	newerDone := p == 0
	olderDone := p == len(list)-1
	for !newerDone || !olderDone {
		if !olderDone {
			hi++
			olderH += measure(list[hi])
			olderDone = olderH >= half || hi == len(list)-1
		}
		if !newerDone {
			lo--
			newerH += measure(list[lo])
			newerDone = newerH >= half || lo == 0
		}
	}
	return Slice{Lo: lo, Hi: hi}
}
