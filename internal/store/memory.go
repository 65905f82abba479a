// Package store is the in-memory message store histview reads chat history
// from. It keeps each chat's messages and holes in order, serves paginated
// windows to pipeline sessions, and republishes windows when a chat changes.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/pipeline"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

var (
	ErrUnknownChat    = errors.New("store: unknown chat")
	ErrUnknownMessage = errors.New("store: unknown message")
	ErrUnknownHole    = errors.New("store: unknown hole")
	ErrDuplicate      = errors.New("store: duplicate message")
)

type chatLog struct {
	title    string
	items    []history.RawEntry // oldest first; entries are never mutated in place
	maxRead  *history.OrderKey
	joined   bool
	nextHole int64
}

// Memory holds chats in memory. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	chats map[string]*chatLog
	hub   *Hub

	// Latency delays every window request. The request first yields a
	// loading window.
	Latency time.Duration
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{chats: make(map[string]*chatLog), hub: NewHub()}
}

// Hub returns the store's change fan-out.
func (m *Memory) Hub() *Hub { return m.hub }

// Chats returns the ids of all chats, sorted.
func (m *Memory) Chats() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.chats))
}

// Title returns the chat's display title.
func (m *Memory) Title(chatID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}
	return c.title, nil
}

// Put replaces the chat's whole contents with f and notifies subscribers.
func (m *Memory) Put(chatID string, f ChatFile) error {
	c := &chatLog{title: f.Title, joined: f.Joined == nil || *f.Joined}
	if f.MaxRead != nil {
		k := *f.MaxRead
		c.maxRead = &k
	}
	seen := make(map[int64]bool)
	for _, msg := range f.messages() {
		if seen[msg.ID] {
			return fmt.Errorf("%w: %d in %s", ErrDuplicate, msg.ID, chatID)
		}
		seen[msg.ID] = true
		c.insert(history.RawEntry{Message: &msg})
	}
	for _, h := range f.Holes {
		c.insert(history.RawEntry{Hole: &h})
		c.nextHole = max(c.nextHole, h.ID)
	}

	m.mu.Lock()
	m.chats[chatID] = c
	m.mu.Unlock()

	tuilog.Log.Debug("chat loaded", "chat", chatID, "items", len(c.items))
	m.hub.Publish(Change{ChatID: chatID})
	return nil
}

// Append adds a new message to the chat.
func (m *Memory) Append(chatID string, msg history.Message) error {
	return m.update(chatID, func(c *chatLog) (Change, error) {
		if c.indexOf(msg.ID) >= 0 {
			return Change{}, fmt.Errorf("%w: %d", ErrDuplicate, msg.ID)
		}
		c.insert(history.RawEntry{Message: &msg})
		return Change{}, nil
	})
}

// Edit replaces a message's text and bumps its version.
func (m *Memory) Edit(chatID string, id int64, text string) error {
	return m.update(chatID, func(c *chatLog) (Change, error) {
		i := c.indexOf(id)
		if i < 0 {
			return Change{}, fmt.Errorf("%w: %d", ErrUnknownMessage, id)
		}
		edited := *c.items[i].Message
		edited.Text = text
		edited.Version++
		c.items[i] = history.RawEntry{Message: &edited}
		return Change{}, nil
	})
}

// Delete removes a message.
func (m *Memory) Delete(chatID string, id int64) error {
	return m.update(chatID, func(c *chatLog) (Change, error) {
		i := c.indexOf(id)
		if i < 0 {
			return Change{}, fmt.Errorf("%w: %d", ErrUnknownMessage, id)
		}
		c.items = slices.Delete(c.items, i, i+1)
		return Change{}, nil
	})
}

// AddHole forgets every message with a key in [lo, hi] and records a hole
// in their place. It returns the new hole's id.
func (m *Memory) AddHole(chatID string, lo, hi history.OrderKey) (int64, error) {
	var id int64
	err := m.update(chatID, func(c *chatLog) (Change, error) {
		if hi.Less(lo) {
			return Change{}, fmt.Errorf("store: hole bounds %s > %s", lo, hi)
		}
		c.items = slices.DeleteFunc(c.items, func(e history.RawEntry) bool {
			k := e.Key()
			return !k.Less(lo) && !hi.Less(k)
		})
		c.nextHole++
		id = c.nextHole
		c.insert(history.RawEntry{Hole: &history.Hole{ID: id, Min: lo, Max: hi}})
		return Change{}, nil
	})
	return id, err
}

// FillHole replaces a hole with msgs. Subscribers get a change carrying the
// fill so that views can anchor next to it.
func (m *Memory) FillHole(chatID string, holeID int64, msgs []history.Message, dir history.FillDirection) error {
	return m.update(chatID, func(c *chatLog) (Change, error) {
		i := slices.IndexFunc(c.items, func(e history.RawEntry) bool { return e.Hole != nil && e.Hole.ID == holeID })
		if i < 0 {
			return Change{}, fmt.Errorf("%w: %d", ErrUnknownHole, holeID)
		}
		hole := *c.items[i].Hole
		c.items = slices.Delete(c.items, i, i+1)
		for _, msg := range msgs {
			if c.indexOf(msg.ID) >= 0 {
				continue
			}
			c.insert(history.RawEntry{Message: &msg})
		}
		return Change{HoleFills: map[int64]history.HoleFill{
			holeID: {Direction: dir, Key: hole.Max},
		}}, nil
	})
}

// MarkRead moves the read marker forward to key. It never moves backwards.
func (m *Memory) MarkRead(chatID string, key history.OrderKey) error {
	return m.update(chatID, func(c *chatLog) (Change, error) {
		if c.maxRead != nil && !c.maxRead.Less(key) {
			return Change{}, nil
		}
		c.maxRead = &key
		return Change{}, nil
	})
}

func (m *Memory) update(chatID string, fn func(*chatLog) (Change, error)) error {
	m.mu.Lock()
	c, ok := m.chats[chatID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}
	change, err := fn(c)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	change.ChatID = chatID
	m.hub.Publish(change)
	return nil
}

func (c *chatLog) insert(e history.RawEntry) {
	i, _ := slices.BinarySearchFunc(c.items, e, compareRaw)
	c.items = slices.Insert(c.items, i, e)
}

func (c *chatLog) indexOf(id int64) int {
	return slices.IndexFunc(c.items, func(e history.RawEntry) bool { return e.Message != nil && e.Message.ID == id })
}

// compareRaw orders holes before messages at equal keys, as history rows do.
func compareRaw(a, b history.RawEntry) int {
	if n := a.Key().Compare(b.Key()); n != 0 {
		return n
	}
	switch {
	case a.Hole != nil && b.Hole == nil:
		return -1
	case a.Hole == nil && b.Hole != nil:
		return 1
	}
	return 0
}

// Window returns up to count entries centered on center, newest first.
func (m *Memory) Window(chatID string, center history.OrderKey, count int) (history.HistoryWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	if !ok {
		return history.HistoryWindow{}, fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}
	return c.window(center, count), nil
}

func (c *chatLog) window(center history.OrderKey, count int) history.HistoryWindow {
	i, _ := slices.BinarySearchFunc(c.items, center, func(e history.RawEntry, k history.OrderKey) int {
		return e.Key().Compare(k)
	})
	lo, hi := around(i, count, len(c.items))

	w := history.HistoryWindow{
		Entries:         make([]history.RawEntry, 0, hi-lo),
		AddedToChatList: c.joined,
	}
	for j := hi - 1; j >= lo; j-- {
		w.Entries = append(w.Entries, c.items[j])
	}
	if lo > 0 {
		k := c.items[lo-1].Key()
		w.EarlierID = &k
	}
	if hi < len(c.items) {
		k := c.items[hi].Key()
		w.LaterID = &k
	}
	if c.maxRead != nil {
		k := *c.maxRead
		w.MaxRead = &k
	}
	return w
}

// around returns the half-open range of up to count items centered on i.
func around(i, count, n int) (lo, hi int) {
	if count <= 0 || count > n {
		count = n
	}
	lo = i - count/2
	hi = lo + count
	if hi > n {
		lo -= hi - n
		hi = n
	}
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	return lo, min(hi, n)
}

// hasUnread reports whether any message is newer than the read marker.
func (c *chatLog) hasUnread() bool {
	if c.maxRead == nil || !c.joined {
		return false
	}
	for j := len(c.items) - 1; j >= 0; j-- {
		if msg := c.items[j].Message; msg != nil {
			return c.maxRead.Less(msg.Key)
		}
	}
	return false
}

// KeyOf returns the order key of the message with id.
func (m *Memory) KeyOf(chatID string, id int64) (history.OrderKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	if !ok {
		return history.OrderKey{}, fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}
	i := c.indexOf(id)
	if i < 0 {
		return history.OrderKey{}, fmt.Errorf("%w: %d", ErrUnknownMessage, id)
	}
	return c.items[i].Message.Key, nil
}

// Source returns a window source for chatID.
func (m *Memory) Source(chatID string) (pipeline.WindowSource, error) {
	m.mu.RLock()
	_, ok := m.chats[chatID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}
	return &chatSource{m: m, chatID: chatID}, nil
}

type chatSource struct {
	m      *Memory
	chatID string
}

// center picks the key a location's window is built around.
func (s *chatSource) center(loc pipeline.Location) history.OrderKey {
	if loc.Kind != pipeline.LocInitial {
		return loc.Key
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if c, ok := s.m.chats[s.chatID]; ok && c.hasUnread() {
		return *c.maxRead
	}
	if loc.Restore != nil {
		return *loc.Restore
	}
	return history.AbsoluteUpper
}

// RequestWindow serves the window for loc, then a fresh one around the same
// center every time the chat changes, until ctx is done.
func (s *chatSource) RequestWindow(ctx context.Context, loc pipeline.Location, count int) <-chan history.HistoryWindow {
	out := make(chan history.HistoryWindow, 1)
	changes, unsub := s.m.hub.Subscribe(s.chatID)
	center := s.center(loc)
	log := tuilog.Log.With("chat", s.chatID, "location", loc.Kind)

	go func() {
		defer close(out)
		defer unsub()

		send := func(w history.HistoryWindow) bool {
			select {
			case out <- w:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if s.m.Latency > 0 {
			if !send(history.HistoryWindow{IsLoading: true}) {
				return
			}
			select {
			case <-time.After(s.m.Latency):
			case <-ctx.Done():
				return
			}
		}

		w, err := s.m.Window(s.chatID, center, count)
		if err != nil {
			log.Warn("window request failed", "error", err)
			return
		}
		if !send(w) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-changes:
				if !ok {
					return
				}
				w, err := s.m.Window(s.chatID, center, count)
				if err != nil {
					log.Warn("window refresh failed", "error", err)
					return
				}
				w.HoleFills = c.HoleFills
				if !send(w) {
					return
				}
			}
		}
	}()
	return out
}
