// Package history turns paginated chat history windows into ordered row
// lists with stable identities, and computes the transitions a row-virtualized
// view needs to move from one list to the next.
//
// Every list in this package is ordered newest first: position 0 is the
// newest row and sits on the upper edge of the message index space.
package history

import (
	"fmt"
	"math"
)

// OrderKey is the total order of history rows. Keys compare by timestamp,
// then namespace, then id.
type OrderKey struct {
	Timestamp int32 `json:"timestamp" toml:"timestamp"`
	Namespace int32 `json:"namespace" toml:"namespace"`
	ID        int32 `json:"id" toml:"id"`
}

var (
	// AbsoluteUpper sorts after every real message.
	AbsoluteUpper = OrderKey{Timestamp: math.MaxInt32, Namespace: math.MaxInt32, ID: math.MaxInt32}
	// AbsoluteLower sorts before every real message.
	AbsoluteLower = OrderKey{Timestamp: math.MinInt32, Namespace: math.MinInt32, ID: math.MinInt32}
)

// Compare returns -1, 0 or +1.
func (k OrderKey) Compare(o OrderKey) int {
	switch {
	case k.Timestamp != o.Timestamp:
		return cmpInt32(k.Timestamp, o.Timestamp)
	case k.Namespace != o.Namespace:
		return cmpInt32(k.Namespace, o.Namespace)
	default:
		return cmpInt32(k.ID, o.ID)
	}
}

// Less reports whether k is older than o.
func (k OrderKey) Less(o OrderKey) bool { return k.Compare(o) < 0 }

func (k OrderKey) String() string {
	return fmt.Sprintf("%d:%d:%d", k.Timestamp, k.Namespace, k.ID)
}

func cmpInt32(a, b int32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Kind tags both entries and their stable identities. The numeric order is
// the tie-break rank used when two entries share an OrderKey.
type Kind uint8

const (
	KindHole Kind = iota
	KindMessage
	KindGroup
	KindUnread
	KindDate
	KindSentinel
)

var kindNames = [...]string{"hole", "message", "group", "unread", "date", "sentinel"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// StableID identifies a logical row across successive transforms of
// overlapping data. It ignores the row's payload: an edited message keeps its
// id. StableID is comparable and safe to use as a map key.
type StableID struct {
	Kind Kind  `json:"kind"`
	Key  int64 `json:"key"`
}

// MessageID returns the identity of a message row.
func MessageID(id int64) StableID { return StableID{Kind: KindMessage, Key: id} }

// HoleID returns the identity of a hole row.
func HoleID(id int64) StableID { return StableID{Kind: KindHole, Key: id} }

// GroupID returns the identity of a grouped media cluster, named after the
// id of its newest message. An album split by a hole or by an ungrouped row
// yields one cluster per run, each with its own id.
func GroupID(newestID int64) StableID { return StableID{Kind: KindGroup, Key: newestID} }

// DateID returns the identity of the separator for the day starting at
// dayStart (unix seconds).
func DateID(dayStart int64) StableID { return StableID{Kind: KindDate, Key: dayStart} }

// UnreadID is the identity of the single unread marker.
var UnreadID = StableID{Kind: KindUnread}

// SentinelID is the identity of the bottom sentinel.
var SentinelID = StableID{Kind: KindSentinel}

func (id StableID) String() string {
	switch id.Kind {
	case KindUnread, KindSentinel:
		return id.Kind.String()
	}
	return fmt.Sprintf("%s/%d", id.Kind, id.Key)
}
