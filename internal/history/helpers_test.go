package history

import "testing"

const baseTime = 1_700_000_000

func key(id int32) OrderKey {
	return OrderKey{Timestamp: baseTime + id*60, ID: id}
}

func msg(id int32) *Message {
	return &Message{ID: int64(id), Key: key(id), AuthorID: int64(id % 3), Text: "m"}
}

// window builds a window holding messages hi down to lo, newest first.
func window(lo, hi int32) HistoryWindow {
	var w HistoryWindow
	for id := hi; id >= lo; id-- {
		w.Entries = append(w.Entries, RawEntry{Message: msg(id)})
	}
	return w
}

func rows(w HistoryWindow) []RenderedEntry {
	return Transform(w, TransformOptions{IncludeHoles: true})
}

func ids(list []RenderedEntry) []StableID {
	out := make([]StableID, len(list))
	for i, r := range list {
		out[i] = r.ID()
	}
	return out
}

func unit(RenderedEntry) float64 { return 1 }

func mustApply(t *testing.T, prev []RenderedEntry, tr Transition) []RenderedEntry {
	t.Helper()
	out, err := Apply(prev, tr)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return out
}
