package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"eventclock/internal/driver"
	"eventclock/internal/status"
)

// Metrics holds the board's Prometheus collectors.
type Metrics struct {
	// Ticks evaluated so far.
	TicksTotal prometheus.Counter

	// Time spent in one tick.
	TickDuration prometheus.Histogram

	// Events per status at the last tick (status: upcoming, live, passed).
	Events *prometheus.GaugeVec

	// Events skipped at the last tick because their start was unusable.
	SkippedEvents prometheus.Gauge

	// Feed loads (feed, result: ok, cached, error).
	FeedLoadsTotal *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventclock_ticks_total",
			Help: "Total number of board evaluations",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventclock_tick_duration_seconds",
			Help:    "Time spent evaluating the board",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		Events: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eventclock_events",
				Help: "Number of events per status at the last evaluation",
			},
			[]string{"status"},
		),
		SkippedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventclock_skipped_events",
			Help: "Events without a usable start at the last evaluation",
		}),
		FeedLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventclock_feed_loads_total",
				Help: "Calendar feed loads by result",
			},
			[]string{"feed", "result"},
		),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.Events,
		m.SkippedEvents,
		m.FeedLoadsTotal,
	)

	return m
}

// RecordTick implements driver.Recorder.
func (m *Metrics) RecordTick(s driver.Summary, took time.Duration) {
	m.TicksTotal.Inc()
	m.TickDuration.Observe(took.Seconds())
	for _, k := range []status.Kind{status.Upcoming, status.Live, status.Passed} {
		m.Events.WithLabelValues(k.String()).Set(float64(s.Counts[k]))
	}
	m.SkippedEvents.Set(float64(s.Skipped))
}

// RecordFeedLoad counts one feed load attempt.
func (m *Metrics) RecordFeedLoad(feed, result string) {
	m.FeedLoadsTotal.WithLabelValues(feed, result).Inc()
}
