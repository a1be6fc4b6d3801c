package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cluckburg/coopdoor/internal/logic/control"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

func newTestHandlers(metrics http.Handler) *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	b := NewStatusBroadcaster()
	return NewHandlers(NewStatusBoard("run", b), b, metrics, staticFS)
}

// ---------- HandleStatus ----------

func TestHandleStatus(t *testing.T) {
	h := newTestHandlers(nil)
	h.Board.TickDone(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), true, door.Closed, control.ActionNone)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	h.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var s Snapshot
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.State != "closed" {
		t.Errorf("state = %q, want closed", s.State)
	}
	if s.Daylight == nil || !*s.Daylight {
		t.Errorf("daylight = %v, want true", s.Daylight)
	}
	if s.Mode != "run" {
		t.Errorf("mode = %q, want run", s.Mode)
	}
}

// ---------- HandleMetrics ----------

func TestHandleMetrics_Delegates(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("coopdoor_door_open 1\n"))
	})
	h := newTestHandlers(metrics)

	w := httptest.NewRecorder()
	h.HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(w.Body.String(), "coopdoor_door_open 1") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHandleMetrics_NotConfigured(t *testing.T) {
	h := newTestHandlers(nil)
	w := httptest.NewRecorder()
	h.HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers(nil)
	w := httptest.NewRecorder()
	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestServeIndex_Missing(t *testing.T) {
	h := NewHandlers(NewStatusBoard("run", nil), NewStatusBroadcaster(), nil, fstest.MapFS{})
	w := httptest.NewRecorder()
	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------- HandleStatusStream ----------

func TestHandleStatusStream(t *testing.T) {
	h := newTestHandlers(nil)
	ts := httptest.NewServer(http.HandlerFunc(h.HandleStatusStream))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil || line != ": connected\n" {
		t.Fatalf("first line = %q, err = %v", line, err)
	}

	// The subscription is registered before ": connected" is flushed.
	h.Broadcaster.Broadcast(KindDoor, "door open")

	for {
		line, err = r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	var evt StatusEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.Msg != "door open" || evt.Kind != KindDoor {
		t.Errorf("event = %+v", evt)
	}
}

// ---------- Server ----------

func TestServer_Routes(t *testing.T) {
	b := NewStatusBroadcaster()
	srv, err := NewServer(":0", NewStatusBoard("run", b), b, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	mux := srv.Mux()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/status", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusNotFound},
		{http.MethodPost, "/status", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	b := NewStatusBroadcaster()
	srv, err := NewServer("127.0.0.1:0", NewStatusBoard("run", b), b, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
