package web

import (
	"encoding/json"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return StatusEvent{}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast(KindDoor, "door open")

	evt := receive(t, ch)
	if evt.Msg != "door open" {
		t.Errorf("msg = %q, want \"door open\"", evt.Msg)
	}
	if evt.Kind != KindDoor {
		t.Errorf("kind = %q, want %q", evt.Kind, KindDoor)
	}
	if evt.Time == "" {
		t.Error("event should have a timestamp")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	if n := b.Subscribers(); n != 2 {
		t.Fatalf("Subscribers() = %d, want 2", n)
	}

	b.Broadcast(KindTick, "multi")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := receive(t, ch); evt.Msg != "multi" {
			t.Errorf("subscriber %d: msg = %q, want \"multi\"", i, evt.Msg)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if n := b.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}

	b.Broadcast(KindLog, "after unsub") // must not panic
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 64; i++ {
		b.Broadcast(KindLog, "fill")
	}
	b.Broadcast(KindLog, "overflow")

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count != 64 {
				t.Errorf("expected 64 buffered messages, got %d", count)
			}
			return
		}
	}
}

func TestLogWriter_SplitsLines(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := LogWriter(b)
	in := "  first line  \n\nsecond line\n"
	n, err := w.Write([]byte(in))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != len(in) {
		t.Errorf("n = %d, want %d", n, len(in))
	}

	for _, want := range []string{"first line", "second line"} {
		evt := receive(t, ch)
		if evt.Msg != want {
			t.Errorf("msg = %q, want %q", evt.Msg, want)
		}
		if evt.Kind != KindLog {
			t.Errorf("kind = %q, want %q", evt.Kind, KindLog)
		}
	}
}

func TestLogWriter_EmptyWriteIgnored(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	LogWriter(b).Write([]byte("   \n"))

	select {
	case <-ch:
		t.Error("expected no message for whitespace-only write")
	case <-time.After(50 * time.Millisecond):
	}
}
