package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wethinkt/go-histview/internal/history"
)

const sampleChat = `title = "Release planning"
max_read = { timestamp = 1709287260, id = 2 }

[[messages]]
id = 1
at = 2024-03-01T10:00:00Z
author_id = 1
text = "morning"

[[messages]]
id = 2
at = 2024-03-01T10:01:00Z
author_id = 2
text = "shipping friday"
media = [{ kind = "photo", id = 77 }]
group_key = 5

[[messages]]
id = 3
key = { timestamp = 1709287400, namespace = 0, id = 3 }
author_id = 1
forwarded = true

[[holes]]
id = 9
min = { timestamp = 1709200000 }
max = { timestamp = 1709280000 }
`

func TestParseChat(t *testing.T) {
	f, err := ParseChat(sampleChat)
	if err != nil {
		t.Fatalf("ParseChat failed: %v", err)
	}
	if f.Title != "Release planning" || len(f.Messages) != 3 || len(f.Holes) != 1 {
		t.Fatalf("unexpected chat %+v", f)
	}
	if f.MaxRead == nil || f.MaxRead.ID != 2 {
		t.Errorf("max read %v", f.MaxRead)
	}

	msgs := f.messages()
	if msgs[0].Key != (history.OrderKey{Timestamp: 1709287200, ID: 1}) {
		t.Errorf("at was not turned into a key: %v", msgs[0].Key)
	}
	if msgs[1].GroupKey != 5 || len(msgs[1].Media) != 1 || msgs[1].Media[0].ID != 77 {
		t.Errorf("media not decoded: %+v", msgs[1])
	}
	if msgs[2].Key.Timestamp != 1709287400 || !msgs[2].Forwarded {
		t.Errorf("explicit key not kept: %+v", msgs[2])
	}
}

func TestParseChatErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "color = 1\n", "color"},
		{"missing id", "[[messages]]\ntext = \"x\"\n", "no id"},
		{"missing key", "[[messages]]\nid = 4\n", "neither key nor at"},
		{"syntax", "title = \n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChat(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planning.toml")
	if err := os.WriteFile(path, []byte(sampleChat), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewMemory()
	if err := m.LoadFiles(path); err != nil {
		t.Fatalf("LoadFiles failed: %v", err)
	}
	if chats := m.Chats(); len(chats) != 1 || chats[0] != "planning" {
		t.Fatalf("chats %v", chats)
	}
	title, _ := m.Title("planning")
	if title != "Release planning" {
		t.Errorf("title %q", title)
	}
	w, _ := m.Window("planning", history.AbsoluteUpper, 10)
	if len(w.Entries) != 4 || w.Entries[3].Hole == nil {
		t.Errorf("expected 3 messages over a hole, got %+v", w.Entries)
	}

	if err := m.LoadFiles(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
