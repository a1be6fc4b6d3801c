package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cluckburg/coopdoor/internal/logic/control"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

// Collector bundles the door's Prometheus metrics. It observes maneuvers
// (door.Observer) and control-loop ticks (control.TickObserver).
type Collector struct {
	gatherer prometheus.Gatherer

	Maneuvers         *prometheus.CounterVec
	ManeuverDurations *prometheus.HistogramVec
	Ticks             *prometheus.CounterVec
	DoorOpen          prometheus.Gauge
	Daylight          prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	maneuvers, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coopdoor_maneuvers_total",
		Help: "Completed door maneuvers, labeled by resulting state.",
	}, []string{"state"}), "coopdoor_maneuvers_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coopdoor_maneuver_duration_seconds",
		Help:    "Wall time of a maneuver including the settle pause.",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
	}, []string{"state"}), "coopdoor_maneuver_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coopdoor_ticks_total",
		Help: "Daylight evaluations, labeled by the action taken.",
	}, []string{"action"}), "coopdoor_ticks_total")
	if err != nil {
		return nil, err
	}

	doorOpen, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coopdoor_door_open",
		Help: "1 when the door was last commanded open, 0 when closed.",
	}), "coopdoor_door_open")
	if err != nil {
		return nil, err
	}

	light, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coopdoor_daylight",
		Help: "1 when the last evaluation fell inside the daylight window.",
	}), "coopdoor_daylight")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		Maneuvers:         maneuvers,
		ManeuverDurations: durations,
		Ticks:             ticks,
		DoorOpen:          doorOpen,
		Daylight:          light,
	}, nil
}

// ManeuverDone implements door.Observer.
func (c *Collector) ManeuverDone(state door.State, _ door.Command, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Maneuvers.WithLabelValues(state.String()).Inc()
	c.ManeuverDurations.WithLabelValues(state.String()).Observe(elapsed.Seconds())
	c.DoorOpen.Set(boolFloat(state == door.Open))
}

// TickDone implements control.TickObserver.
func (c *Collector) TickDone(_ time.Time, daylight bool, state door.State, action control.Action) {
	if c == nil {
		return
	}
	c.Ticks.WithLabelValues(action.String()).Inc()
	c.Daylight.Set(boolFloat(daylight))
	c.DoorOpen.Set(boolFloat(state == door.Open))
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
