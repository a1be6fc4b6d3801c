// Package daylight decides whether the coop door should be open, using a fixed
// table of average sunrise and sunset times per month.
//
// The table is an approximation: one sunrise and one sunset per calendar month,
// independent of latitude or the day within the month.
package daylight

import (
	"fmt"
	"time"
)

// MinutesPerDay bounds every minute-of-day value to [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

// Window is the inclusive span of minutes after local midnight during which
// the door should be open.
type Window struct {
	Sunrise int `yaml:"sunrise"`
	Sunset  int `yaml:"sunset"`
}

// Contains reports whether minuteOfDay lies within the window, both ends inclusive.
func (w Window) Contains(minuteOfDay int) bool {
	return w.Sunrise <= minuteOfDay && minuteOfDay <= w.Sunset
}

// Table holds one Window per month, index 0 being January.
type Table [12]Window

// defaultTable is the per-month average sunrise/sunset, in minutes of day.
var defaultTable = Table{
	{Sunrise: 410, Sunset: 1260}, // January
	{Sunrise: 450, Sunset: 1240}, // February
	{Sunrise: 450, Sunset: 1230}, // March
	{Sunrise: 480, Sunset: 1100}, // April
	{Sunrise: 450, Sunset: 1060}, // May
	{Sunrise: 480, Sunset: 1040}, // June
	{Sunrise: 480, Sunset: 1060}, // July
	{Sunrise: 450, Sunset: 1090}, // August
	{Sunrise: 420, Sunset: 1110}, // September
	{Sunrise: 420, Sunset: 1200}, // October
	{Sunrise: 380, Sunset: 1240}, // November
	{Sunrise: 370, Sunset: 1260}, // December
}

// DefaultTable returns a copy of the built-in per-month table.
func DefaultTable() Table { return defaultTable }

// Window returns the window for month. A month outside January..December is
// a caller bug and panics.
func (t Table) Window(month time.Month) Window {
	if month < time.January || month > time.December {
		panic(fmt.Sprintf("daylight: month %d out of range", month))
	}
	return t[month-1]
}

// Validate checks that every window lies within a day and that sunrise does
// not come after sunset.
func (t Table) Validate() error {
	for i, w := range t {
		month := time.Month(i + 1)
		if w.Sunrise < 0 || w.Sunrise >= MinutesPerDay {
			return fmt.Errorf("%s: sunrise %d outside 0..%d", month, w.Sunrise, MinutesPerDay-1)
		}
		if w.Sunset < 0 || w.Sunset >= MinutesPerDay {
			return fmt.Errorf("%s: sunset %d outside 0..%d", month, w.Sunset, MinutesPerDay-1)
		}
		if w.Sunrise > w.Sunset {
			return fmt.Errorf("%s: sunrise %d after sunset %d", month, w.Sunrise, w.Sunset)
		}
	}
	return nil
}

// MinuteOfDay returns minutes elapsed since midnight in t's own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Evaluator answers "is it daylight?" from a Table and a Clock.
type Evaluator struct {
	table Table
	clock Clock
}

// NewEvaluator returns an Evaluator over table. A nil clock means SystemClock.
func NewEvaluator(table Table, clock Clock) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Evaluator{table: table, clock: clock}
}

// IsDaylight reports whether now falls inside its month's window.
func (e *Evaluator) IsDaylight(now time.Time) bool {
	return e.table.Window(now.Month()).Contains(MinuteOfDay(now))
}

// IsDaylightNow evaluates the current clock reading.
func (e *Evaluator) IsDaylightNow() bool {
	return e.IsDaylight(e.clock.Now())
}

// Table returns the evaluator's table.
func (e *Evaluator) Table() Table { return e.table }

// Clock returns the clock the evaluator reads.
func (e *Evaluator) Clock() Clock { return e.clock }
