package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluckburg/coopdoor/internal/logic/daylight"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

// fakeDoor tracks maneuvers without a motor.
type fakeDoor struct {
	mu     sync.Mutex
	state  door.State
	opens  int
	closes int
	err    error
}

func (d *fakeDoor) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.err != nil {
		return d.err
	}
	d.state = door.Open
	return nil
}

func (d *fakeDoor) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	if d.err != nil {
		return d.err
	}
	d.state = door.Closed
	return nil
}

func (d *fakeDoor) State() door.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDoor) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens, d.closes
}

// stepClock advances by the requested duration every time After is called.
// Once halted, After blocks forever so only ctx cancellation can end a wait.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	halted bool
	waits  []time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	if c.halted {
		return nil
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *stepClock) halt() {
	c.mu.Lock()
	c.halted = true
	c.mu.Unlock()
}

type tickRecord struct {
	minute int
	light  bool
	state  door.State
	action Action
}

type tickRecorder struct {
	ticks []tickRecord
	after func(n int)
}

func (r *tickRecorder) TickDone(now time.Time, light bool, state door.State, action Action) {
	r.ticks = append(r.ticks, tickRecord{daylight.MinuteOfDay(now), light, state, action})
	if r.after != nil {
		r.after(len(r.ticks))
	}
}

func januaryAt(minute int) time.Time {
	return time.Date(2024, time.January, 15, minute/60, minute%60, 0, 0, time.Local)
}

func TestTick_OpensAtDaybreak(t *testing.T) {
	clock := &stepClock{now: januaryAt(410)}
	d := &fakeDoor{}
	l := NewLoop(daylight.NewEvaluator(daylight.DefaultTable(), clock), d, time.Minute)

	action, err := l.Tick()
	require.NoError(t, err)
	assert.Equal(t, ActionOpen, action)
	assert.Equal(t, door.Open, d.State())
}

func TestTick_ClosesAtDusk(t *testing.T) {
	clock := &stepClock{now: januaryAt(1261)}
	d := &fakeDoor{state: door.Open}
	l := NewLoop(daylight.NewEvaluator(daylight.DefaultTable(), clock), d, time.Minute)

	action, err := l.Tick()
	require.NoError(t, err)
	assert.Equal(t, ActionClose, action)
	assert.Equal(t, door.Closed, d.State())
}

func TestTick_NoActionWhenStateMatches(t *testing.T) {
	cases := []struct {
		name   string
		minute int
		state  door.State
	}{
		{"dark_and_closed", 400, door.Closed},
		{"light_and_open", 800, door.Open},
		{"sunset_boundary_open", 1260, door.Open},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &stepClock{now: januaryAt(tc.minute)}
			d := &fakeDoor{state: tc.state}
			l := NewLoop(daylight.NewEvaluator(daylight.DefaultTable(), clock), d, time.Minute)

			action, err := l.Tick()
			require.NoError(t, err)
			assert.Equal(t, ActionNone, action)
			opens, closes := d.counts()
			assert.Zero(t, opens)
			assert.Zero(t, closes)
		})
	}
}

func TestTick_PropagatesManeuverError(t *testing.T) {
	clock := &stepClock{now: januaryAt(600)}
	d := &fakeDoor{err: errors.New("stalled")}
	rec := &tickRecorder{}
	l := NewLoop(daylight.NewEvaluator(daylight.DefaultTable(), clock), d, time.Minute, rec)

	action, err := l.Tick()
	assert.Equal(t, ActionOpen, action)
	assert.ErrorContains(t, err, "stalled")
	assert.Empty(t, rec.ticks, "observers are not told about failed ticks")
}

func TestRun_FullDay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &stepClock{now: januaryAt(0)}
	d := &fakeDoor{}
	rec := &tickRecorder{}
	rec.after = func(n int) {
		if n == 48 {
			clock.halt()
			cancel()
		}
	}
	l := NewLoop(daylight.NewEvaluator(daylight.DefaultTable(), clock), d, 30*time.Minute, rec)

	require.NoError(t, l.Run(ctx))
	require.Len(t, rec.ticks, 48)

	var actions []tickRecord
	for _, tr := range rec.ticks {
		if tr.action != ActionNone {
			actions = append(actions, tr)
		}
	}
	require.Len(t, actions, 2)
	assert.Equal(t, tickRecord{420, true, door.Open, ActionOpen}, actions[0])
	assert.Equal(t, tickRecord{1290, false, door.Closed, ActionClose}, actions[1])

	for _, w := range clock.waits {
		assert.Equal(t, 30*time.Minute, w)
	}
}

func TestRun_StopsOnManeuverError(t *testing.T) {
	clock := &stepClock{now: januaryAt(700)}
	d := &fakeDoor{err: errors.New("stalled")}
	l := NewLoop(daylight.NewEvaluator(daylight.DefaultTable(), clock), d, time.Minute)

	err := l.Run(context.Background())
	assert.ErrorContains(t, err, "stalled")
}

func TestNewLoop_DefaultInterval(t *testing.T) {
	l := NewLoop(daylight.NewEvaluator(daylight.DefaultTable(), nil), &fakeDoor{}, 0)
	assert.Equal(t, 1800*time.Second, l.Interval())
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "none", ActionNone.String())
	assert.Equal(t, "open", ActionOpen.String())
	assert.Equal(t, "close", ActionClose.String())
}
