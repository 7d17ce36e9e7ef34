package driver

import (
	"eventclock/internal/model"
	"eventclock/internal/status"
)

// ClockReading is one rendered clock.
type ClockReading struct {
	Label    string `json:"label"`
	Timezone string `json:"timezone"`
	Time     string `json:"time"`
	Date     string `json:"date"`
}

// View receives the driver's output. Implementations must be safe for use
// from the driver's scheduler goroutine.
type View interface {
	// SetEvents announces the current event list, in display order.
	SetEvents(events []model.Event)
	// UpdateEvent pushes the status of one event.
	UpdateEvent(id string, st status.Status, label string)
	// UpdateClock pushes clock index (0 or 1).
	UpdateClock(index int, reading ClockReading)
	// Expand opens the section for id and closes all others. An empty id
	// closes every section.
	Expand(id string)
	// ScrollIntoView asks the view to bring the section for id on screen.
	ScrollIntoView(id string)
}

// ViewState is the UI state owned by the driver.
type ViewState struct {
	// Expanded is the ID of the open section, or empty.
	Expanded string `json:"expanded"`
	// Scroll is the section the view was asked to scroll to on initial load.
	Scroll string `json:"scroll,omitempty"`
}
