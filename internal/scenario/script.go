// Package scenario replays scripted chat activity through a real pipeline
// session and checks what the session delivers. Scripts are TOML:
//
//	name = "hole fill"
//	viewport = 20
//	include_holes = true
//
//	[[chat.messages]]
//	id = 1
//	at = 2024-03-01T10:00:00Z
//
//	[[steps]]
//	op = "open"
//	expect = { rows = 1 }
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/store"
)

// Ops understood by Run.
const (
	OpOpen         = "open"
	OpAppend       = "append"
	OpEdit         = "edit"
	OpDelete       = "delete"
	OpHole         = "hole"
	OpFillHole     = "fill-hole"
	OpRead         = "read"
	OpTheme        = "theme"
	OpJump         = "jump"
	OpReachEdge    = "reach-edge"
	OpNewest       = "newest"
	OpScrolledAway = "scrolled-away"
	OpPushReply    = "push-reply"
	OpPopReply     = "pop-reply"
)

var knownOps = map[string]bool{
	OpOpen: true, OpAppend: true, OpEdit: true, OpDelete: true, OpHole: true,
	OpFillHole: true, OpRead: true, OpTheme: true, OpJump: true, OpReachEdge: true,
	OpNewest: true, OpScrolledAway: true, OpPushReply: true, OpPopReply: true,
}

// Script is a replayable scenario.
type Script struct {
	Name         string   `toml:"name"`
	Count        int      `toml:"count"`    // messages per window request
	Viewport     float64  `toml:"viewport"` // first paint budget, in rows
	IncludeHoles bool     `toml:"include_holes"`
	DayGrouping  bool     `toml:"day_grouping"`
	GroupPhotos  bool     `toml:"group_photos"`
	Inline       bool     `toml:"deliver_inline"`
	Settle       Duration `toml:"settle"` // quiet period that ends a step
	Theme        string   `toml:"theme"`

	Chat  store.ChatFile `toml:"chat"`
	Steps []Step         `toml:"steps"`
}

// Step is one action and what the session should look like once it settles.
// Message references are by id.
type Step struct {
	Op string `toml:"op"`

	ID       int64             `toml:"id"`
	At       time.Time         `toml:"at"`
	Key      *history.OrderKey `toml:"key"`
	Author   int64             `toml:"author"`
	Text     string            `toml:"text"`
	Incoming bool              `toml:"incoming"`

	// Hole names a hole. Holes added by a script are named by the script;
	// other names are store hole ids.
	Hole      int64               `toml:"hole"`
	Min       *history.OrderKey   `toml:"min"`
	Max       *history.OrderKey   `toml:"max"`
	From      int64               `toml:"from"`
	To        int64               `toml:"to"`
	Messages  []store.FileMessage `toml:"messages"`
	Direction string              `toml:"direction"`

	Theme     string `toml:"theme"`
	Placement string `toml:"placement"`
	Edge      string `toml:"edge"`
	Away      bool   `toml:"away"`

	Expect Expect `toml:"expect"`
}

// Expect lists checks run after a step settles. Unset fields are not
// checked.
type Expect struct {
	Rows    *int    `toml:"rows"`
	Newest  *int64  `toml:"newest"`  // message id of the newest row
	Anchor  *int64  `toml:"anchor"`  // message id the last positioned anchor named
	Pinned  *bool   `toml:"pinned"`  // pinned to newest
	Phase   string  `toml:"phase"`   // phase of the last transition
	Stack   *int    `toml:"stack"`   // reply stack depth
	Contain []int64 `toml:"contain"` // message ids that must be on screen
}

// Duration is a time.Duration that decodes from a TOML string like "50ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Parse decodes and checks a script.
func Parse(data string) (Script, error) {
	var s Script
	md, err := toml.Decode(data, &s)
	if err != nil {
		return Script{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Script{}, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	if len(s.Steps) == 0 {
		return Script{}, fmt.Errorf("script has no steps")
	}
	if s.Steps[0].Op != OpOpen {
		return Script{}, fmt.Errorf("first step must be %q, got %q", OpOpen, s.Steps[0].Op)
	}
	for i, st := range s.Steps {
		if !knownOps[st.Op] {
			return Script{}, fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
		if i > 0 && st.Op == OpOpen {
			return Script{}, fmt.Errorf("step %d: %q may only be the first step", i+1, OpOpen)
		}
		if st.Op == OpHole && (st.Min == nil || st.Max == nil) {
			return Script{}, fmt.Errorf("step %d: hole needs min and max", i+1)
		}
	}
	return s, nil
}

// LoadFile reads a script. An unnamed script is named after its file.
func LoadFile(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	s, err := Parse(string(data))
	if err != nil {
		return Script{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// messageKey is the key a step's new message gets: key when set, else at.
func (st Step) messageKey() (history.OrderKey, error) {
	if st.Key != nil {
		return *st.Key, nil
	}
	if st.At.IsZero() {
		return history.OrderKey{}, fmt.Errorf("message %d has neither key nor at", st.ID)
	}
	return history.OrderKey{Timestamp: int32(st.At.Unix()), ID: int32(st.ID)}, nil
}
