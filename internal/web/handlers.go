package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"time"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Board       *StatusBoard
	Broadcaster *StatusBroadcaster
	Metrics     http.Handler // nil = /metrics answers 404
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(board *StatusBoard, broadcaster *StatusBroadcaster, metrics http.Handler, staticFS fs.FS) *Handlers {
	return &Handlers{
		Board:       board,
		Broadcaster: broadcaster,
		Metrics:     metrics,
		staticFS:    staticFS,
	}
}

// HandleStatus returns the current door snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(h.Board.Snapshot())
}

// HandleMetrics serves the Prometheus exposition.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		http.NotFound(w, r)
		return
	}
	h.Metrics.ServeHTTP(w, r)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
