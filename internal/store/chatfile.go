package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wethinkt/go-histview/internal/history"
)

// ChatFile is the on-disk form of a chat: a TOML document with one
// [[messages]] table per message and optional [[holes]].
//
//	title = "Release planning"
//	max_read = { timestamp = 1709287200, id = 12 }
//
//	[[messages]]
//	id = 12
//	at = 2024-03-01T10:00:00Z
//	author_id = 2
//	text = "shipping friday"
type ChatFile struct {
	Title    string            `toml:"title"`
	Joined   *bool             `toml:"joined"`
	MaxRead  *history.OrderKey `toml:"max_read"`
	Messages []FileMessage     `toml:"messages"`
	Holes    []history.Hole    `toml:"holes"`
}

// FileMessage is a message as written in a chat file. At is a convenience
// for hand-written files: when key is absent it becomes the key's timestamp
// and the message id its tie-break.
type FileMessage struct {
	history.Message
	At time.Time `toml:"at"`
}

// Resolve returns the message with its key filled in from At when unset.
func (fm FileMessage) Resolve() history.Message {
	msg := fm.Message
	if msg.Key == (history.OrderKey{}) && !fm.At.IsZero() {
		msg.Key = history.OrderKey{Timestamp: int32(fm.At.Unix()), ID: int32(msg.ID)}
	}
	return msg
}

func (f ChatFile) messages() []history.Message {
	out := make([]history.Message, 0, len(f.Messages))
	for _, fm := range f.Messages {
		out = append(out, fm.Resolve())
	}
	return out
}

// ParseChat decodes a chat file's contents.
func ParseChat(data string) (ChatFile, error) {
	var f ChatFile
	md, err := toml.Decode(data, &f)
	if err != nil {
		return ChatFile{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return ChatFile{}, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	for i, fm := range f.Messages {
		if fm.ID == 0 {
			return ChatFile{}, fmt.Errorf("message %d has no id", i+1)
		}
		if fm.Key == (history.OrderKey{}) && fm.At.IsZero() {
			return ChatFile{}, fmt.Errorf("message %d has neither key nor at", fm.ID)
		}
	}
	return f, nil
}

// LoadChatFile reads and decodes the chat file at path.
func LoadChatFile(path string) (ChatFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ChatFile{}, err
	}
	f, err := ParseChat(string(data))
	if err != nil {
		return ChatFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// ChatID derives a chat id from a chat file path: its base name without the
// extension.
func ChatID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// LoadFiles loads each chat file into m under its ChatID.
func (m *Memory) LoadFiles(paths ...string) error {
	for _, p := range paths {
		f, err := LoadChatFile(p)
		if err != nil {
			return err
		}
		if err := m.Put(ChatID(p), f); err != nil {
			return err
		}
	}
	return nil
}
