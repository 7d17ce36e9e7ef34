package web

import (
	"sync"
	"time"

	"eventclock/internal/driver"
	"eventclock/internal/model"
	"eventclock/internal/status"
)

// EventRow is one accordion section.
type EventRow struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Start    string         `json:"start"`
	Source   string         `json:"source,omitempty"`
	Status   *status.Status `json:"status,omitempty"`
	Label    string         `json:"label"`
	Expanded bool           `json:"expanded"`
}

// Snapshot is the board as last pushed by the driver.
type Snapshot struct {
	Clocks    []driver.ClockReading `json:"clocks"`
	Events    []EventRow            `json:"events"`
	State     driver.ViewState      `json:"state"`
	UpdatedAt time.Time             `json:"updated_at"`
	Ready     bool                  `json:"ready"`
}

type eventStatus struct {
	status status.Status
	label  string
}

// Board is an in-memory driver.View. HTTP handlers read it through
// Snapshot.
type Board struct {
	mu       sync.RWMutex
	now      func() time.Time
	events   []model.Event
	statuses map[string]eventStatus
	clocks   map[int]driver.ClockReading
	state    driver.ViewState
	updated  time.Time
}

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{
		now:      time.Now,
		statuses: make(map[string]eventStatus),
		clocks:   make(map[int]driver.ClockReading),
	}
}

func (b *Board) SetEvents(events []model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append([]model.Event(nil), events...)
	keep := make(map[string]eventStatus, len(events))
	for _, ev := range events {
		if st, ok := b.statuses[ev.ID]; ok {
			keep[ev.ID] = st
		}
	}
	b.statuses = keep
}

func (b *Board) UpdateEvent(id string, st status.Status, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.statuses[id] = eventStatus{status: st, label: label}
	b.updated = b.now()
}

func (b *Board) UpdateClock(index int, reading driver.ClockReading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clocks[index] = reading
	b.updated = b.now()
}

func (b *Board) Expand(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Expanded = id
}

func (b *Board) ScrollIntoView(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Scroll = id
}

// Snapshot copies the current board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{
		Clocks:    make([]driver.ClockReading, 0, len(b.clocks)),
		Events:    make([]EventRow, 0, len(b.events)),
		State:     b.state,
		UpdatedAt: b.updated,
		Ready:     !b.updated.IsZero(),
	}
	for i := 0; i < len(b.clocks); i++ {
		if c, ok := b.clocks[i]; ok {
			snap.Clocks = append(snap.Clocks, c)
		}
	}
	for _, ev := range b.events {
		row := EventRow{
			ID:       ev.ID,
			Title:    ev.Title,
			Start:    ev.Start,
			Source:   ev.Source,
			Expanded: ev.ID == b.state.Expanded,
		}
		if st, ok := b.statuses[ev.ID]; ok {
			s := st.status
			row.Status = &s
			row.Label = st.label
		}
		snap.Events = append(snap.Events, row)
	}
	return snap
}
