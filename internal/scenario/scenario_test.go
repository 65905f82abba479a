package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wethinkt/go-histview/internal/history"
)

const baseTime = 1_700_000_000

// chat writes [[chat.messages]] tables for ids, one minute apart.
func chat(ids ...int) string {
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "[[chat.messages]]\nid = %d\nkey = { timestamp = %d, id = %d }\nauthor_id = %d\ntext = \"message %d\"\n\n",
			id, baseTime+id*60, id, id%2+1, id)
	}
	return b.String()
}

func keyTable(id int) string {
	return fmt.Sprintf("{ timestamp = %d, id = %d }", baseTime+id*60, id)
}

func mustParse(t *testing.T, data string) Script {
	t.Helper()
	s, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, data)
	}
	return s
}

func run(t *testing.T, s Script) Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	rep, err := Run(ctx, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Failed() {
		t.Fatalf("scenario failed:\n%s", strings.Join(rep.Failures(), "\n"))
	}
	return rep
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"no steps", `name = "x"`, "no steps"},
		{"open first", "[[steps]]\nop = \"newest\"\n", "first step must be"},
		{"unknown op", "[[steps]]\nop = \"open\"\n[[steps]]\nop = \"fly\"\n", `unknown op "fly"`},
		{"open twice", "[[steps]]\nop = \"open\"\n[[steps]]\nop = \"open\"\n", "only be the first step"},
		{"hole bounds", "[[steps]]\nop = \"open\"\n[[steps]]\nop = \"hole\"\n", "needs min and max"},
		{"unknown key", "colour = 1\n[[steps]]\nop = \"open\"\n", "unknown key"},
		{"bad settle", "settle = \"soon\"\n[[steps]]\nop = \"open\"\n", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.toml")
	data := "settle = \"20ms\"\n" + chat(1) + "[[steps]]\nop = \"open\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Name != "smoke" {
		t.Errorf("Name = %q, want smoke", s.Name)
	}
	if s.Settle.Duration != 20*time.Millisecond {
		t.Errorf("Settle = %v, want 20ms", s.Settle)
	}
	if len(s.Chat.Messages) != 1 || s.Chat.Messages[0].Resolve().Key != (history.OrderKey{Timestamp: baseTime + 60, ID: 1}) {
		t.Errorf("chat messages = %+v", s.Chat.Messages)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFile of a missing file succeeded")
	}
}

func TestRunConversation(t *testing.T) {
	s := mustParse(t, `
name = "conversation"
viewport = 40
settle = "100ms"
`+chat(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)+`
[[steps]]
op = "open"
expect = { rows = 10, newest = 10, pinned = true, phase = "first_paint" }

[[steps]]
op = "append"
id = 11
at = 2023-11-14T22:25:00Z
text = "late"
expect = { rows = 11, newest = 11, pinned = true, phase = "diff" }

[[steps]]
op = "edit"
id = 3
text = "edited"
expect = { rows = 11 }

[[steps]]
op = "delete"
id = 2
expect = { rows = 10, contain = [1, 3] }

[[steps]]
op = "push-reply"
from = 11
to = 4
expect = { stack = 1, anchor = 4, pinned = false }

[[steps]]
op = "pop-reply"
expect = { stack = 0, anchor = 11, pinned = true }

[[steps]]
op = "theme"
theme = "light"
expect = { rows = 10, phase = "diff" }

[[steps]]
op = "jump"
id = 5
placement = "top"
expect = { anchor = 5, phase = "diff" }

[[steps]]
op = "scrolled-away"
away = true
expect = { pinned = false }

[[steps]]
op = "newest"
expect = { anchor = 11, pinned = true }
`)
	rep := run(t, s)

	if len(rep.Steps) != len(s.Steps) {
		t.Fatalf("got %d step results, want %d", len(rep.Steps), len(s.Steps))
	}
	if rep.Steps[0].Transitions == 0 {
		t.Error("open produced no transitions")
	}
	want := []history.StableID{}
	for _, id := range []int64{11, 10, 9, 8, 7, 6, 5, 4, 3, 1} {
		want = append(want, history.MessageID(id))
	}
	if diff := cmp.Diff(want, rep.Rows); diff != "" {
		t.Errorf("final rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRunHoleFill(t *testing.T) {
	s := mustParse(t, `
name = "hole"
viewport = 40
include_holes = true
settle = "100ms"
`+chat(1, 2, 3, 8, 9, 10)+`
[[steps]]
op = "open"
expect = { rows = 6 }

[[steps]]
op = "hole"
hole = 1
min = `+keyTable(4)+`
max = `+keyTable(7)+`
expect = { rows = 7, newest = 10 }

[[steps]]
op = "fill-hole"
hole = 1
direction = "upper_to_lower"
expect = { rows = 10, contain = [4, 5, 6, 7] }

[[steps.messages]]
id = 4
key = `+keyTable(4)+`

[[steps.messages]]
id = 5
key = `+keyTable(5)+`

[[steps.messages]]
id = 6
key = `+keyTable(6)+`

[[steps.messages]]
id = 7
key = `+keyTable(7)+`
`)
	rep := run(t, s)
	if got := rep.Steps[1].Rows; got != 7 {
		t.Errorf("rows after hole = %d, want 7", got)
	}
}

func TestRunUnread(t *testing.T) {
	s := mustParse(t, `
name = "unread"
viewport = 40
settle = "100ms"

[chat]
max_read = `+keyTable(5)+`

`+chat(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)+`
[[steps]]
op = "open"
expect = { rows = 11, contain = [6] }

[[steps]]
op = "read"
id = 10
expect = { rows = 10 }
`)
	run(t, s)
}

func TestRunRecordsFailures(t *testing.T) {
	s := mustParse(t, `
name = "failing"
settle = "50ms"
`+chat(1, 2)+`
[[steps]]
op = "open"
expect = { rows = 5 }

[[steps]]
op = "edit"
id = 99
text = "nobody"
`)
	rep, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Failed() {
		t.Fatal("report did not fail")
	}
	got := rep.Failures()
	if len(got) != 2 {
		t.Fatalf("failures = %q, want 2", got)
	}
	if !strings.Contains(got[0], "rows: got 2, want 5") {
		t.Errorf("first failure = %q", got[0])
	}
	if !strings.Contains(got[1], "step 2 (edit)") || !strings.Contains(got[1], "unknown message") {
		t.Errorf("second failure = %q", got[1])
	}
}

func TestRunAll(t *testing.T) {
	var scripts []Script
	for i := 1; i <= 4; i++ {
		ids := make([]int, i)
		for j := range ids {
			ids[j] = j + 1
		}
		scripts = append(scripts, mustParse(t, fmt.Sprintf("name = \"s%d\"\nsettle = \"50ms\"\n%s[[steps]]\nop = \"open\"\nexpect = { rows = %d }\n", i, chat(ids...), i)))
	}
	reports, err := RunAll(context.Background(), scripts, 2)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	var names []string
	for _, r := range reports {
		if r.Failed() {
			t.Errorf("%s failed: %q", r.Name, r.Failures())
		}
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"s1", "s2", "s3", "s4"}, names); diff != "" {
		t.Errorf("report order mismatch (-want +got):\n%s", diff)
	}
}
