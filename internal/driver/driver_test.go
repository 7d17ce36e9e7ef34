package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eventclock/internal/clock"
	"eventclock/internal/model"
	"eventclock/internal/status"
)

// MockView is a testify mock of View.
type MockView struct {
	mock.Mock
}

func (m *MockView) SetEvents(events []model.Event) {
	m.Called(events)
}

func (m *MockView) UpdateEvent(id string, st status.Status, label string) {
	m.Called(id, st, label)
}

func (m *MockView) UpdateClock(index int, reading ClockReading) {
	m.Called(index, reading)
}

func (m *MockView) Expand(id string) {
	m.Called(id)
}

func (m *MockView) ScrollIntoView(id string) {
	m.Called(id)
}

// recordingView keeps the last pushed values; used where exact call order
// does not matter.
type recordingView struct {
	mu       sync.Mutex
	labels   map[string]string
	clocks   map[int]ClockReading
	expanded []string
	scrolled []string
	updates  int
}

func newRecordingView() *recordingView {
	return &recordingView{labels: map[string]string{}, clocks: map[int]ClockReading{}}
}

func (v *recordingView) SetEvents([]model.Event) {}

func (v *recordingView) UpdateEvent(id string, _ status.Status, label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.labels[id] = label
	v.updates++
}

func (v *recordingView) UpdateClock(index int, r ClockReading) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clocks[index] = r
}

func (v *recordingView) Expand(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded = append(v.expanded, id)
}

func (v *recordingView) ScrollIntoView(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrolled = append(v.scrolled, id)
}

func (v *recordingView) updateCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.updates
}

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) string {
	return now.Add(d).Format(time.RFC3339)
}

func sampleEvents() []model.Event {
	return []model.Event{
		{ID: "past", Title: "Breakfast", Start: at(-8 * time.Hour)},
		{ID: "live", Title: "Keynote", Start: at(-30 * time.Minute)},
		{ID: "soon", Title: "Panel", Start: at(2 * time.Minute)},
		{ID: "later", Title: "Dinner", Start: at(26*time.Hour + 5*time.Second)},
		{ID: "broken", Title: "TBD", Start: "soon-ish"},
		{ID: "blank", Title: "Unscheduled"},
	}
}

func newTestDriver(v View, events []model.Event) *Driver {
	return New(v, events, Options{
		Classifier: status.NewClassifier(3*time.Minute, 6*time.Hour),
		Clocks: []ClockZone{
			{Label: "UTC", Timezone: "UTC"},
			{Label: "Seoul", Timezone: "Asia/Seoul"},
		},
		Clock: clock.Fixed(now),
	})
}

func TestTick_UpdatesEveryValidEvent(t *testing.T) {
	v := newRecordingView()
	d := newTestDriver(v, sampleEvents())

	sum := d.Tick(now)

	assert.Equal(t, map[string]string{
		"past":  "Already happened",
		"live":  "Live now",
		"soon":  "Live now",
		"later": "Upcoming: 01:02:00:05",
	}, v.labels)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 1, sum.Counts[status.Passed])
	assert.Equal(t, 2, sum.Counts[status.Live])
	assert.Equal(t, 1, sum.Counts[status.Upcoming])

	assert.Equal(t, ClockReading{Label: "UTC", Timezone: "UTC", Time: "12:00:00", Date: "Fri, 16 Oct 2026"}, v.clocks[0])
	assert.Equal(t, "21:00:00", v.clocks[1].Time)
}

func TestTick_InitialLoadExpandsFirstLiveEvent(t *testing.T) {
	v := new(MockView)
	events := []model.Event{
		{ID: "a", Start: at(time.Hour)},
		{ID: "b", Start: at(-time.Minute)},
		{ID: "c", Start: at(-2 * time.Minute)},
	}
	v.On("SetEvents", mock.Anything).Once()
	v.On("UpdateEvent", mock.Anything, mock.Anything, mock.Anything)
	v.On("UpdateClock", mock.Anything, mock.Anything)
	v.On("Expand", "b").Once()
	v.On("ScrollIntoView", "b").Once()

	d := newTestDriver(v, events)
	d.Tick(now)
	d.Tick(now.Add(time.Second))

	v.AssertExpectations(t)
	v.AssertNumberOfCalls(t, "ScrollIntoView", 1)
	assert.Equal(t, ViewState{Expanded: "b", Scroll: "b"}, d.State())
}

func TestTick_NoLiveEventExpandsNothing(t *testing.T) {
	v := newRecordingView()
	d := newTestDriver(v, []model.Event{{ID: "a", Start: at(time.Hour)}})

	d.Tick(now)
	// An event turning live later is not auto-expanded.
	d.Tick(now.Add(59 * time.Minute))

	assert.Empty(t, v.expanded)
	assert.Empty(t, v.scrolled)
	assert.Equal(t, ViewState{}, d.State())
}

func TestTick_SkipsEventsWithoutStart(t *testing.T) {
	v := new(MockView)
	v.On("SetEvents", mock.Anything)
	v.On("UpdateClock", mock.Anything, mock.Anything)

	d := newTestDriver(v, []model.Event{{ID: "x"}, {ID: "y", Start: "n/a"}})
	sum := d.Tick(now)

	v.AssertNotCalled(t, "UpdateEvent", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 2, sum.Skipped)
}

type failingFormatter struct{}

func (failingFormatter) Format(time.Time, string, bool) (string, error) {
	return "", errors.New("no tzdata")
}

func TestTick_ClockFormatErrorSkipsClock(t *testing.T) {
	v := newRecordingView()
	d := New(v, nil, Options{
		Clocks:    []ClockZone{{Label: "X", Timezone: "UTC"}},
		Formatter: failingFormatter{},
	})

	d.Tick(now)

	assert.Empty(t, v.clocks)
}

func TestToggle_OneSectionAtATime(t *testing.T) {
	v := newRecordingView()
	d := newTestDriver(v, sampleEvents())

	st, err := d.Toggle("later")
	require.NoError(t, err)
	assert.Equal(t, "later", st.Expanded)

	st, err = d.Toggle("past")
	require.NoError(t, err)
	assert.Equal(t, "past", st.Expanded)

	st, err = d.Toggle("past")
	require.NoError(t, err)
	assert.Equal(t, "", st.Expanded)

	_, err = d.Toggle("nope")
	assert.ErrorIs(t, err, ErrUnknownEvent)

	assert.Equal(t, []string{"later", "past", ""}, v.expanded)
}

func TestSetEvents_CollapsesRemovedSection(t *testing.T) {
	v := newRecordingView()
	d := newTestDriver(v, sampleEvents())
	_, err := d.Toggle("live")
	require.NoError(t, err)

	d.SetEvents([]model.Event{{ID: "other", Start: at(time.Hour)}})

	assert.Equal(t, "", d.State().Expanded)
	assert.Equal(t, []string{"live", ""}, v.expanded)
	assert.Len(t, d.Events(), 1)
}

type countingRecorder struct {
	mu    sync.Mutex
	ticks int
}

func (r *countingRecorder) RecordTick(Summary, time.Duration) {
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
}

func TestStartStop(t *testing.T) {
	t.Run("initial evaluation runs before Start returns", func(t *testing.T) {
		v := newRecordingView()
		rec := &countingRecorder{}
		d := New(v, sampleEvents(), Options{Clock: clock.Fixed(now), Recorder: rec})

		require.NoError(t, d.Start(context.Background()))
		defer d.Stop()

		assert.GreaterOrEqual(t, v.updateCount(), 4)
		assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)
	})

	t.Run("ticks repeat until context is cancelled", func(t *testing.T) {
		v := newRecordingView()
		d := New(v, []model.Event{{ID: "a", Start: at(time.Hour)}}, Options{Clock: clock.Fixed(now)})

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, d.Start(ctx))

		assert.Eventually(t, func() bool { return v.updateCount() >= 2 }, 3*time.Second, 50*time.Millisecond)
		cancel()
		d.Stop()
		d.Stop()
	})

	t.Run("stop before start is a no-op", func(t *testing.T) {
		d := New(newRecordingView(), nil, Options{})
		d.Stop()
	})

	t.Run("bad reload spec", func(t *testing.T) {
		d := New(newRecordingView(), nil, Options{
			Reload:     func(context.Context) ([]model.Event, error) { return nil, nil },
			ReloadSpec: "not a cron spec",
		})
		assert.Error(t, d.Start(context.Background()))
		d.Stop()
	})
}

func TestReload(t *testing.T) {
	v := newRecordingView()
	d := New(v, nil, Options{
		Reload: func(context.Context) ([]model.Event, error) {
			return []model.Event{{ID: "fresh", Start: at(time.Hour)}}, nil
		},
	})

	d.reload(context.Background())
	assert.Equal(t, "fresh", d.Events()[0].ID)

	d.opts.Reload = func(context.Context) ([]model.Event, error) { return nil, errors.New("offline") }
	d.reload(context.Background())
	assert.Len(t, d.Events(), 1)
}
