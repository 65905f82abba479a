package history

import "slices"

// Action marks service messages.
type Action string

const (
	ActionNone           Action = ""
	ActionHistoryCleared Action = "history_cleared"
	ActionGroupMigrated  Action = "group_migrated"
	ActionPhoneCall      Action = "phone_call"
	ActionOther          Action = "service"
)

// Media is an attachment reference. Decoding is not this package's concern.
type Media struct {
	Kind string `json:"kind" toml:"kind"`
	ID   int64  `json:"id" toml:"id"`
}

// Message is one raw message as delivered by the message store.
type Message struct {
	// ID is stable across edits and read-state changes.
	ID        int64    `json:"id" toml:"id"`
	Key       OrderKey `json:"key" toml:"key"`
	AuthorID  int64    `json:"author_id" toml:"author_id"`
	Text      string   `json:"text,omitempty" toml:"text"`
	Media     []Media  `json:"media,omitempty" toml:"media"`
	GroupKey  int64    `json:"group_key,omitempty" toml:"group_key"`
	Version   int32    `json:"version,omitempty" toml:"version"`
	Incoming  bool     `json:"incoming,omitempty" toml:"incoming"`
	Forwarded bool     `json:"forwarded,omitempty" toml:"forwarded"`
	Action    Action   `json:"action,omitempty" toml:"action"`
}

func equalMessages(a, b Message) bool {
	return a.ID == b.ID &&
		a.Key == b.Key &&
		a.Version == b.Version &&
		a.AuthorID == b.AuthorID &&
		a.Text == b.Text &&
		a.GroupKey == b.GroupKey &&
		a.Incoming == b.Incoming &&
		a.Forwarded == b.Forwarded &&
		a.Action == b.Action &&
		slices.Equal(a.Media, b.Media)
}

// Hole is a gap in the locally known log between Min and Max.
type Hole struct {
	ID  int64    `json:"id" toml:"id"`
	Min OrderKey `json:"min" toml:"min"`
	Max OrderKey `json:"max" toml:"max"`
}

// ItemType is the compact/full layout decision for a message row.
type ItemType uint8

const (
	ItemFull ItemType = iota
	ItemShort
)

// ForwardType describes where a forwarded message sits inside a run of
// forwards from the same author.
type ForwardType uint8

const (
	ForwardNone ForwardType = iota
	ForwardShortHeader
	ForwardFullHeader
	ForwardInside
	ForwardBottom
)

// Layout holds the per-row attributes the transform derives from neighbours.
type Layout struct {
	Item    ItemType    `json:"item"`
	Forward ForwardType `json:"forward,omitempty"`
}

// Entry is one logical history row.
type Entry struct {
	Kind Kind     `json:"kind"`
	Key  OrderKey `json:"key"`

	Message  Message `json:"message"`            // KindMessage
	Children []Entry `json:"children,omitempty"` // KindGroup, newest first
	GroupKey int64   `json:"group_key,omitempty"`
	Hole     Hole    `json:"hole"`          // KindHole
	Day      int64   `json:"day,omitempty"` // KindDate, unix seconds of local midnight

	Layout Layout `json:"layout"`
	Read   bool   `json:"read,omitempty"`
}

// ID returns the entry's stable identity.
func (e Entry) ID() StableID {
	switch e.Kind {
	case KindHole:
		return HoleID(e.Hole.ID)
	case KindMessage:
		return MessageID(e.Message.ID)
	case KindGroup:
		if len(e.Children) == 0 {
			return GroupID(0)
		}
		return GroupID(e.Children[0].Message.ID)
	case KindDate:
		return DateID(e.Day)
	case KindUnread:
		return UnreadID
	default:
		return SentinelID
	}
}

func equalEntries(a, b Entry) bool {
	if a.Kind != b.Kind || a.Key != b.Key || a.Layout != b.Layout || a.Read != b.Read {
		return false
	}
	switch a.Kind {
	case KindMessage:
		return equalMessages(a.Message, b.Message)
	case KindGroup:
		return a.GroupKey == b.GroupKey && slices.EqualFunc(a.Children, b.Children, equalEntries)
	case KindHole:
		return a.Hole == b.Hole
	case KindDate:
		return a.Day == b.Day
	}
	return true
}

// DownloadPolicy is the automatic media download setting in effect when a
// row was produced.
type DownloadPolicy struct {
	Photos      bool  `json:"photos" toml:"photos"`
	Videos      bool  `json:"videos" toml:"videos"`
	Files       bool  `json:"files" toml:"files"`
	MaxFileSize int64 `json:"max_file_size" toml:"max_file_size"`
}

// Presentation is the snapshot of external state that changes how a row
// looks without changing what it is.
type Presentation struct {
	Theme        string         `json:"theme" toml:"theme"`
	FontSize     int            `json:"font_size" toml:"font_size"`
	AutoDownload DownloadPolicy `json:"auto_download" toml:"auto_download"`
}

// RenderedEntry is an entry paired with the presentation it was produced
// under.
type RenderedEntry struct {
	Entry        Entry        `json:"entry"`
	Presentation Presentation `json:"presentation"`
}

// ID returns the stable identity of the underlying entry.
func (r RenderedEntry) ID() StableID { return r.Entry.ID() }

// Key returns the order key of the underlying entry.
func (r RenderedEntry) Key() OrderKey { return r.Entry.Key }

// SameIdentity reports whether r and o are the same logical row.
func (r RenderedEntry) SameIdentity(o RenderedEntry) bool { return r.ID() == o.ID() }

// SameContent reports whether r and o would render identically.
func (r RenderedEntry) SameContent(o RenderedEntry) bool {
	return r.Presentation == o.Presentation && equalEntries(r.Entry, o.Entry)
}

// MeasureFunc returns the rendered height of a row. It must be cheap and
// synchronous.
type MeasureFunc func(RenderedEntry) float64

// before reports whether a sorts strictly older than b.
func before(a, b Entry) bool {
	if c := a.Key.Compare(b.Key); c != 0 {
		return c < 0
	}
	return a.Kind < b.Kind
}
