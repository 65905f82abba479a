package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/pipeline"
	"github.com/wethinkt/go-histview/internal/store"
)

const baseTime = 1_700_000_000

func key(id int32) history.OrderKey {
	return history.OrderKey{Timestamp: baseTime + id*60, ID: id}
}

func newTestServer(t *testing.T, cfg Config) (*Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	var f store.ChatFile
	f.Title = "Team"
	for id := int32(1); id <= 20; id++ {
		f.Messages = append(f.Messages, store.FileMessage{Message: history.Message{ID: int64(id), Key: key(id), AuthorID: int64(id % 2)}})
	}
	if err := mem.Put("team", f); err != nil {
		t.Fatal(err)
	}
	cfg.Quiet = true
	if cfg.Session.ViewportHeight == 0 {
		cfg.Session = pipeline.Options{ViewportHeight: 1000, DeliverInline: true}
	}
	return NewServer(mem, cfg), mem
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func windowIDs(w history.HistoryWindow) []int64 {
	var out []int64
	for _, e := range w.Entries {
		if e.Message != nil {
			out = append(out, e.Message.ID)
		} else {
			out = append(out, -e.Hole.ID)
		}
	}
	return out
}

func TestHealthAndChats(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	if got := decode[HealthResponse](t, w); got.Status != "ok" || got.Chats != 1 {
		t.Errorf("unexpected health %+v", got)
	}

	w = do(t, h, http.MethodGet, "/v1/chats", nil)
	if diff := cmp.Diff([]ChatInfo{{ID: "team", Title: "Team"}}, decode[[]ChatInfo](t, w)); diff != "" {
		t.Errorf("chats (-want +got):\n%s", diff)
	}
}

func TestWindowEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/v1/chats/team/window?count=3", nil)
	if diff := cmp.Diff([]int64{20, 19, 18}, windowIDs(decode[history.HistoryWindow](t, w))); diff != "" {
		t.Errorf("newest window (-want +got):\n%s", diff)
	}

	w = do(t, h, http.MethodGet, "/v1/chats/team/window?count=3&timestamp=1700000600&id=10", nil)
	if diff := cmp.Diff([]int64{11, 10, 9}, windowIDs(decode[history.HistoryWindow](t, w))); diff != "" {
		t.Errorf("centered window (-want +got):\n%s", diff)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/v1/chats/team/window?count=0", http.StatusBadRequest},
		{"/v1/chats/team/window?count=x", http.StatusBadRequest},
		{"/v1/chats/team/window?timestamp=abc", http.StatusBadRequest},
		{"/v1/chats/nope/window", http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := do(t, h, http.MethodGet, tt.path, nil); w.Code != tt.want {
			t.Errorf("GET %s: status %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestMutationEndpoints(t *testing.T) {
	s, mem := newTestServer(t, Config{})
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/v1/chats/team/messages", history.Message{ID: 21, Key: key(21), Text: "hi"})
	if w.Code != http.StatusCreated {
		t.Fatalf("append status %d: %s", w.Code, w.Body)
	}
	if w := do(t, h, http.MethodPost, "/v1/chats/team/messages", history.Message{ID: 21, Key: key(21)}); w.Code != http.StatusConflict {
		t.Errorf("duplicate append status %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/v1/chats/team/messages", history.Message{Text: "no id"}); w.Code != http.StatusBadRequest {
		t.Errorf("append without id status %d", w.Code)
	}

	if w := do(t, h, http.MethodPut, "/v1/chats/team/messages/21", EditRequest{Text: "hello"}); w.Code != http.StatusOK {
		t.Errorf("edit status %d", w.Code)
	}
	if w := do(t, h, http.MethodPut, "/v1/chats/team/messages/99", EditRequest{Text: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("edit of unknown message status %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/v1/chats/team/messages/20", nil); w.Code != http.StatusOK {
		t.Errorf("delete status %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/v1/chats/team/messages/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("delete with bad id status %d", w.Code)
	}

	win, _ := mem.Window("team", history.AbsoluteUpper, 2)
	if win.Entries[0].Message.Text != "hello" || win.Entries[1].Message.ID != 19 {
		t.Errorf("store not mutated: %+v", windowIDs(win))
	}

	w = do(t, h, http.MethodPost, "/v1/chats/team/holes", HoleRequest{Min: key(5), Max: key(8)})
	if w.Code != http.StatusCreated {
		t.Fatalf("add hole status %d: %s", w.Code, w.Body)
	}
	holeID := decode[map[string]int64](t, w)["id"]
	if w := do(t, h, http.MethodPost, "/v1/chats/team/holes", HoleRequest{Min: key(8), Max: key(5)}); w.Code != http.StatusBadRequest {
		t.Errorf("inverted hole status %d", w.Code)
	}

	fill := FillRequest{Direction: "sideways"}
	if w := do(t, h, http.MethodPost, "/v1/chats/team/holes/1/fill", fill); w.Code != http.StatusBadRequest {
		t.Errorf("bad direction status %d", w.Code)
	}
	fill = FillRequest{Messages: []history.Message{{ID: 6, Key: key(6)}}, Direction: "upper_to_lower"}
	path := "/v1/chats/team/holes/" + strconv.FormatInt(holeID, 10) + "/fill"
	if w := do(t, h, http.MethodPost, path, fill); w.Code != http.StatusOK {
		t.Errorf("fill status %d: %s", w.Code, w.Body)
	}
	if w := do(t, h, http.MethodPost, path, fill); w.Code != http.StatusNotFound {
		t.Errorf("second fill status %d", w.Code)
	}

	if w := do(t, h, http.MethodPost, "/v1/chats/team/read", ReadRequest{Key: key(10)}); w.Code != http.StatusOK {
		t.Errorf("mark read status %d", w.Code)
	}
	win, _ = mem.Window("team", history.AbsoluteUpper, 1)
	if win.MaxRead == nil || *win.MaxRead != key(10) {
		t.Errorf("read marker %v", win.MaxRead)
	}

	if w := do(t, h, http.MethodPost, "/v1/chats/team/read", map[string]any{"bogus": 1}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field status %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	s, _ := newTestServer(t, Config{Token: "secret"})
	h := s.Handler()

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is open", "/v1/health", "", http.StatusOK},
		{"missing header", "/v1/chats", "", http.StatusUnauthorized},
		{"wrong scheme", "/v1/chats", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "/v1/chats", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/v1/chats", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	w := do(t, s.Handler(), http.MethodOptions, "/v1/chats", nil)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight status %d headers %v", w.Code, w.Header())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	do(t, s.Handler(), http.MethodDelete, "/v1/chats/team/messages/1", nil)
	w := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("histview_server_mutations_total")) {
		t.Errorf("metrics missing mutations counter")
	}
}
