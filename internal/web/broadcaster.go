package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Event kinds carried on the status stream.
const (
	KindLog  = "log"  // a line of the debug log
	KindDoor = "door" // a completed maneuver
	KindTick = "tick" // a control-loop evaluation
)

// StatusEvent is one SSE message.
type StatusEvent struct {
	Time string `json:"t"`
	Kind string `json:"k"`
	Msg  string `json:"msg"`
}

// StatusBroadcaster fans status events out to SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	now     func() time.Time
}

// NewStatusBroadcaster creates a broadcaster with no subscribers.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
		now:     time.Now,
	}
}

// Subscribe returns a channel of encoded events and its cleanup function.
// The caller must call cleanup when the client goes away.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Subscribers returns the number of connected clients.
func (b *StatusBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends {"t":"...","k":"...","msg":"..."} to every client.
// A client whose buffer is full misses the event.
func (b *StatusBroadcaster) Broadcast(kind, msg string) {
	data, err := json.Marshal(StatusEvent{
		Time: b.now().Format(time.RFC3339),
		Kind: kind,
		Msg:  msg,
	})
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// LogWriter returns an io.Writer that broadcasts each written line as a
// KindLog event, for debug.SetOutput.
func LogWriter(b *StatusBroadcaster) *logWriter {
	return &logWriter{b: b}
}

type logWriter struct {
	b *StatusBroadcaster
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.b.Broadcast(KindLog, line)
		}
	}
	return len(p), nil
}
