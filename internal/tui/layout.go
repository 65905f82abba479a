package tui

import (
	"strings"

	"github.com/wethinkt/go-histview/internal/history"
)

// layout is the screen text of a row list. Rows are newest first; the screen
// shows them oldest at the top.
type layout struct {
	lines  []string
	order  []history.StableID // screen order, top to bottom
	start  map[history.StableID]int
	height map[history.StableID]int
	keys   map[history.StableID]history.OrderKey
}

func buildLayout(rows []history.RenderedEntry, render func(history.RenderedEntry, bool) string, focus *history.StableID) layout {
	l := layout{
		order:  make([]history.StableID, 0, len(rows)),
		start:  make(map[history.StableID]int, len(rows)),
		height: make(map[history.StableID]int, len(rows)),
		keys:   make(map[history.StableID]history.OrderKey, len(rows)),
	}
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		id := r.ID()
		text := render(r, focus != nil && *focus == id)
		if text == "" {
			continue
		}
		rowLines := strings.Split(text, "\n")
		l.order = append(l.order, id)
		l.start[id] = len(l.lines)
		l.height[id] = len(rowLines)
		l.keys[id] = r.Key()
		l.lines = append(l.lines, rowLines...)
	}
	return l
}

func (l layout) total() int { return len(l.lines) }

func (l layout) content() string { return strings.Join(l.lines, "\n") }

// rowAt returns the row covering line and how far into it line is.
func (l layout) rowAt(line int) (history.StableID, int, bool) {
	if line < 0 || line >= len(l.lines) {
		return history.StableID{}, 0, false
	}
	for _, id := range l.order {
		s := l.start[id]
		if line >= s && line < s+l.height[id] {
			return id, line - s, true
		}
	}
	return history.StableID{}, 0, false
}

// scrollFor returns the viewport offset that realizes anchor after the
// screen changes from prev, scrolled to prevY, to next. pinned keeps the
// newest row in view when the anchor asks for nothing.
func scrollFor(prev, next layout, prevY, height int, anchor history.ScrollState, pinned bool) int {
	clamp := func(y int) int { return max(0, min(y, next.total()-height)) }

	switch {
	case anchor.Positioned():
		start, ok := next.start[anchor.ID]
		if !ok {
			break
		}
		h := next.height[anchor.ID]
		switch anchor.Kind {
		case history.ScrollTop:
			return clamp(start + int(anchor.Offset))
		case history.ScrollBottom:
			return clamp(start + h - height)
		default:
			return clamp(start + h/2 - height/2)
		}

	case anchor.Kind == history.ScrollSaveVisible:
		// Keep the row at the anchored edge of the screen where it was.
		ref := prevY
		if anchor.Edge == history.EdgeUpper {
			ref = min(prevY+height, prev.total()) - 1
		}
		if id, delta, ok := prev.rowAt(ref); ok {
			if s, ok := next.start[id]; ok {
				return clamp(s + delta - (ref - prevY))
			}
		}
		if anchor.Edge == history.EdgeUpper {
			return clamp(next.total() - (prev.total() - prevY))
		}
		return clamp(prevY)
	}

	if pinned {
		return clamp(next.total())
	}
	return clamp(prevY)
}
