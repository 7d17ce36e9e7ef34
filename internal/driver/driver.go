// Package driver re-evaluates every event on a fixed cadence and pushes the
// results, together with the two wall clocks, into a View.
package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"eventclock/internal/clock"
	appLog "eventclock/internal/log"
	"eventclock/internal/model"
	"eventclock/internal/status"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrAlreadyStarted = errors.New("driver already started")
)

// ClockZone is a clock to render on every tick.
type ClockZone struct {
	Label    string
	Timezone string
}

// Summary describes one tick.
type Summary struct {
	Counts  map[status.Kind]int
	Skipped int
}

// Recorder observes ticks (metrics).
type Recorder interface {
	RecordTick(s Summary, took time.Duration)
}

// ReloadFunc returns a fresh event list.
type ReloadFunc func(ctx context.Context) ([]model.Event, error)

// Options configures a Driver. Zero fields get defaults where one exists.
type Options struct {
	Classifier status.Classifier
	Clocks     []ClockZone
	Formatter  clock.Formatter
	Clock      clock.Clock
	Tick       time.Duration
	Recorder   Recorder

	// Reload, when set, is run on ReloadSpec (standard cron syntax).
	Reload     ReloadFunc
	ReloadSpec string
}

// Driver owns the event list and the view state.
type Driver struct {
	opts Options
	view View

	mu     sync.Mutex
	events []model.Event
	state  ViewState
	loaded bool

	sched    *cron.Cron
	stopOnce sync.Once
}

// New constructs a Driver for the given events.
func New(view View, events []model.Event, opts Options) *Driver {
	if opts.Formatter == nil {
		opts.Formatter = clock.NewZoneFormatter("", "")
	}
	if opts.Clock == nil {
		opts.Clock = clock.SystemClock
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Classifier == (status.Classifier{}) {
		opts.Classifier = status.NewClassifier(0, 0)
	}

	d := &Driver{
		opts:   opts,
		view:   view,
		events: append([]model.Event(nil), events...),
	}
	view.SetEvents(d.events)
	return d
}

// Start runs the initial evaluation and schedules the recurring tick (and
// reload, if configured). It returns immediately; the schedule runs until
// Stop is called or ctx is cancelled.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.sched != nil {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.sched = cron.New(cron.WithLogger(cronLogger{}))
	d.mu.Unlock()

	d.Tick(d.opts.Clock.Now())

	d.sched.Schedule(cron.Every(d.opts.Tick), cron.FuncJob(func() {
		d.Tick(d.opts.Clock.Now())
	}))

	if d.opts.Reload != nil && d.opts.ReloadSpec != "" {
		_, err := d.sched.AddFunc(d.opts.ReloadSpec, func() { d.reload(ctx) })
		if err != nil {
			return err
		}
	}

	d.sched.Start()
	appLog.Info("driver started", "tick", d.opts.Tick.String(), "events", len(d.events), "reload", d.opts.ReloadSpec)

	go func() {
		<-ctx.Done()
		d.Stop()
	}()
	return nil
}

// Stop cancels the schedule and waits for a running tick to finish. Safe to
// call more than once, and before Start.
func (d *Driver) Stop() {
	d.mu.Lock()
	sched := d.sched
	d.mu.Unlock()
	if sched == nil {
		return
	}
	d.stopOnce.Do(func() {
		<-sched.Stop().Done()
		appLog.Info("driver stopped")
	})
}

// Tick evaluates every event at now and updates the view. Events whose
// start is missing or unparseable are skipped for this tick.
func (d *Driver) Tick(now time.Time) Summary {
	began := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	sum := Summary{Counts: make(map[status.Kind]int, 3)}
	firstLive := ""

	for _, ev := range d.events {
		start, err := ev.StartInstant()
		if err != nil {
			appLog.Debug("skipping event", "id", ev.ID, "err", err)
			sum.Skipped++
			continue
		}
		st := d.opts.Classifier.Classify(start, now)
		d.view.UpdateEvent(ev.ID, st, st.Label())
		sum.Counts[st.Kind]++
		if st.Kind == status.Live && firstLive == "" {
			firstLive = ev.ID
		}
	}

	if !d.loaded {
		d.loaded = true
		if firstLive != "" {
			d.state.Expanded = firstLive
			d.state.Scroll = firstLive
			d.view.Expand(firstLive)
			d.view.ScrollIntoView(firstLive)
		}
	}

	d.renderClocks(now)

	if d.opts.Recorder != nil {
		d.opts.Recorder.RecordTick(sum, time.Since(began))
	}
	return sum
}

func (d *Driver) renderClocks(now time.Time) {
	for i, cz := range d.opts.Clocks {
		tm, err := d.opts.Formatter.Format(now, cz.Timezone, false)
		if err != nil {
			appLog.Error("clock format failed", err, "timezone", cz.Timezone)
			continue
		}
		date, err := d.opts.Formatter.Format(now, cz.Timezone, true)
		if err != nil {
			appLog.Error("clock format failed", err, "timezone", cz.Timezone)
			continue
		}
		d.view.UpdateClock(i, ClockReading{
			Label:    cz.Label,
			Timezone: cz.Timezone,
			Time:     tm,
			Date:     date,
		})
	}
}

// Toggle opens the section for id, or closes it if it is already open.
func (d *Driver) Toggle(id string) (ViewState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasEvent(id) {
		return d.state, ErrUnknownEvent
	}
	if d.state.Expanded == id {
		d.state.Expanded = ""
	} else {
		d.state.Expanded = id
	}
	d.view.Expand(d.state.Expanded)
	return d.state, nil
}

// State returns a copy of the current view state.
func (d *Driver) State() ViewState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Events returns a copy of the current event list.
func (d *Driver) Events() []model.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Event(nil), d.events...)
}

// SetEvents replaces the event list. If the open section's event is gone,
// the section is closed.
func (d *Driver) SetEvents(events []model.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = append([]model.Event(nil), events...)
	d.view.SetEvents(d.events)

	if d.state.Expanded != "" && !d.hasEvent(d.state.Expanded) {
		d.state.Expanded = ""
		d.view.Expand("")
	}
}

func (d *Driver) reload(ctx context.Context) {
	events, err := d.opts.Reload(ctx)
	if err != nil {
		appLog.Error("event reload failed", err)
		return
	}
	d.SetEvents(events)
	appLog.Info("events reloaded", "events", len(events))
}

func (d *Driver) hasEvent(id string) bool {
	for _, ev := range d.events {
		if ev.ID == id {
			return true
		}
	}
	return false
}

// cronLogger routes cron's own logging into the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
