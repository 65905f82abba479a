package history

import (
	"slices"
	"time"
)

// shortWindow is how close two messages from the same author must be for the
// newer one to use the compact layout.
const shortWindow = 10 * 60

// TransformOptions controls Transform.
type TransformOptions struct {
	Presentation  Presentation
	IncludeHoles  bool
	DayGrouping   bool
	GroupPhotos   bool
	IncludeBottom bool
	// Location is used to bucket messages into days. Nil means UTC.
	Location *time.Location
}

// Transform converts a raw window into rendered rows, newest first. It is a
// pure function: the same window and options always produce the same rows,
// and a message present in two overlapping windows gets the same StableID in
// both.
func Transform(w HistoryWindow, opts TransformOptions) []RenderedEntry {
	raw := w.Entries
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	entries := make([]Entry, 0, len(raw)+4)
	var group []Entry
	var groupKey int64
	// lastRow is the closest newer message that became a row, across holes.
	var lastRow *Message

	flushGroup := func() {
		if len(group) == 0 {
			return
		}
		entries = append(entries, Entry{
			Kind:     KindGroup,
			Key:      group[0].Key,
			GroupKey: groupKey,
			Children: group,
		})
		group = nil
		groupKey = 0
	}

	for i, r := range raw {
		if r.Hole != nil {
			flushGroup()
			if opts.IncludeHoles {
				entries = append(entries, Entry{Kind: KindHole, Key: r.Hole.Max, Hole: *r.Hole})
			}
			continue
		}
		if r.Message == nil {
			continue
		}
		msg := *r.Message
		if msg.Action == ActionHistoryCleared || msg.Action == ActionGroupMigrated {
			continue
		}

		older := neighbour(raw, i, +1)
		newer := neighbour(raw, i, -1)
		entry := Entry{
			Kind:    KindMessage,
			Key:     msg.Key,
			Message: msg,
			Layout:  layoutFor(msg, older, newer),
			Read:    w.MaxRead != nil && !w.MaxRead.Less(msg.Key),
		}

		if opts.GroupPhotos && msg.GroupKey != 0 && len(msg.Media) > 0 {
			if groupKey != msg.GroupKey {
				flushGroup()
				groupKey = msg.GroupKey
			}
			group = append(group, entry)
		} else {
			flushGroup()
			entries = append(entries, entry)
		}

		if opts.DayGrouping && lastRow != nil && dayStart(msg.Key, loc) != dayStart(lastRow.Key, loc) {
			entries = append(entries, dateEntry(lastRow.Key, loc))
		}
		lastRow = r.Message
	}
	flushGroup()
	// The oldest message opens its own day.
	if opts.DayGrouping && lastRow != nil {
		entries = append(entries, dateEntry(lastRow.Key, loc))
	}

	if w.MaxRead != nil {
		entries = append(entries, Entry{Kind: KindUnread, Key: *w.MaxRead})
	}
	if opts.IncludeBottom {
		entries = append(entries, Entry{Kind: KindSentinel, Key: AbsoluteUpper})
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case before(b, a):
			return -1
		case before(a, b):
			return 1
		}
		return 0
	})
	entries = dropStaleUnread(entries)

	out := make([]RenderedEntry, len(entries))
	for i, e := range entries {
		out[i] = RenderedEntry{Entry: e, Presentation: opts.Presentation}
	}
	return out
}

// neighbour finds the closest message in direction step (+1 older, -1
// newer), skipping members of the same media group.
func neighbour(raw []RawEntry, i, step int) *Message {
	self := raw[i].Message
	for k := i + step; k >= 0 && k < len(raw); k += step {
		m := raw[k].Message
		if m == nil {
			return nil
		}
		if self.GroupKey != 0 && m.GroupKey == self.GroupKey {
			continue
		}
		return m
	}
	return nil
}

func layoutFor(msg Message, older, newer *Message) Layout {
	l := Layout{Item: ItemFull}
	if older != nil && older.AuthorID == msg.AuthorID &&
		msg.Key.Timestamp-older.Key.Timestamp < shortWindow &&
		(older.Action == ActionNone || older.Action == ActionPhoneCall) &&
		msg.Action == ActionNone {
		l.Item = ItemShort
	}

	if !msg.Forwarded {
		return l
	}
	l.Forward = ForwardShortHeader
	if l.Item == ItemShort && older != nil && older.Forwarded &&
		msg.Key.Timestamp-older.Key.Timestamp < shortWindow {
		l.Forward = ForwardInside
		if newer == nil || newer.AuthorID != msg.AuthorID || !newer.Forwarded ||
			newer.Key.Timestamp-msg.Key.Timestamp > shortWindow {
			l.Forward = ForwardBottom
		}
	}
	if l.Forward == ForwardShortHeader {
		l.Item = ItemFull
		if newer != nil && newer.Forwarded &&
			(newer.AuthorID == msg.AuthorID || newer.Key.Timestamp-msg.Key.Timestamp < shortWindow) {
			l.Forward = ForwardFullHeader
		}
	}
	return l
}

func dayStart(k OrderKey, loc *time.Location) int64 {
	t := time.Unix(int64(k.Timestamp), 0).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).Unix()
}

// dateEntry builds the separator for k's day. Its key sorts before every
// message of that day.
func dateEntry(k OrderKey, loc *time.Location) Entry {
	day := dayStart(k, loc)
	return Entry{
		Kind: KindDate,
		Key:  OrderKey{Timestamp: int32(day), Namespace: AbsoluteLower.Namespace, ID: AbsoluteLower.ID},
		Day:  day,
	}
}

// dropStaleUnread removes the unread marker when nothing unread follows it,
// or when it is the oldest row and only precedes a hole.
func dropStaleUnread(entries []Entry) []Entry {
	idx := slices.IndexFunc(entries, func(e Entry) bool { return e.Kind == KindUnread })
	if idx < 0 {
		return entries
	}
	newerContent := slices.ContainsFunc(entries[:idx], func(e Entry) bool {
		return e.Kind == KindMessage || e.Kind == KindGroup
	})
	leadingHole := idx == len(entries)-1 && idx > 0 && entries[idx-1].Kind == KindHole
	if !newerContent || leadingHole {
		return slices.Delete(entries, idx, idx+1)
	}
	return entries
}
