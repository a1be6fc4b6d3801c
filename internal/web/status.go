package web

import (
	"fmt"
	"sync"
	"time"

	"github.com/cluckburg/coopdoor/internal/logic/control"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

// Maneuver describes the last completed door movement.
type Maneuver struct {
	State       string    `json:"state"`
	Revolutions int       `json:"revolutions"`
	Pattern     string    `json:"pattern"`
	DurationMs  int64     `json:"duration_ms"`
	At          time.Time `json:"at"`
}

// Snapshot is the JSON body of GET /status.
type Snapshot struct {
	Mode         string     `json:"mode"`
	State        string     `json:"state"`
	Daylight     *bool      `json:"daylight,omitempty"` // unknown until the first tick
	LastTick     *time.Time `json:"last_tick,omitempty"`
	LastAction   string     `json:"last_action,omitempty"`
	LastManeuver *Maneuver  `json:"last_maneuver,omitempty"`
	Maneuvers    int        `json:"maneuvers"`
}

// StatusBoard keeps the latest door and loop state for the web surface.
// It is written from the control goroutine and read from HTTP handlers.
type StatusBoard struct {
	mu          sync.RWMutex
	snap        Snapshot
	broadcaster *StatusBroadcaster
	now         func() time.Time
}

// NewStatusBoard creates a board for the given run mode. Events are also
// pushed to broadcaster when it is not nil.
func NewStatusBoard(mode string, broadcaster *StatusBroadcaster) *StatusBoard {
	return &StatusBoard{
		snap:        Snapshot{Mode: mode, State: door.Closed.String()},
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// Snapshot returns a copy of the current status.
func (s *StatusBoard) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	if snap.Daylight != nil {
		d := *snap.Daylight
		snap.Daylight = &d
	}
	if snap.LastTick != nil {
		t := *snap.LastTick
		snap.LastTick = &t
	}
	if snap.LastManeuver != nil {
		m := *snap.LastManeuver
		snap.LastManeuver = &m
	}
	return snap
}

// ManeuverDone implements door.Observer.
func (s *StatusBoard) ManeuverDone(state door.State, cmd door.Command, elapsed time.Duration) {
	m := &Maneuver{
		State:       state.String(),
		Revolutions: cmd.Revolutions,
		Pattern:     cmd.Pattern.Name(),
		DurationMs:  elapsed.Milliseconds(),
		At:          s.now(),
	}

	s.mu.Lock()
	s.snap.State = m.State
	s.snap.LastManeuver = m
	s.snap.Maneuvers++
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(KindDoor, fmt.Sprintf("door %s (%d rev, %s, %v)",
			m.State, m.Revolutions, m.Pattern, elapsed.Round(time.Millisecond)))
	}
}

// TickDone implements control.TickObserver.
func (s *StatusBoard) TickDone(now time.Time, daylight bool, state door.State, action control.Action) {
	s.mu.Lock()
	s.snap.Daylight = &daylight
	s.snap.LastTick = &now
	s.snap.LastAction = action.String()
	s.snap.State = state.String()
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(KindTick, fmt.Sprintf("daylight=%t door=%s action=%s", daylight, state, action))
	}
}
