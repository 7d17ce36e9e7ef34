package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingStart = errors.New("event start is missing")
	ErrInvalidStart = errors.New("event start is not a valid timestamp")
)

// Event is one scheduled entry on the board. Events are supplied from
// outside (config or a calendar feed); the board only ever reads Start.
type Event struct {
	// ID locates the event's section in the view.
	ID string `yaml:"id" json:"id"`

	Title string `yaml:"title" json:"title"`

	// Start is the raw start timestamp as supplied (RFC 3339).
	Start string `yaml:"start" json:"start"`

	// Source is the feed ID the event came from, empty for inline events.
	Source string `yaml:"-" json:"source,omitempty"`
}

// StartInstant parses Start. Both RFC 3339 with and without fractional
// seconds are accepted.
func (e Event) StartInstant() (time.Time, error) {
	raw := strings.TrimSpace(e.Start)
	if raw == "" {
		return time.Time{}, ErrMissingStart
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, ErrInvalidStart
	}
	return t, nil
}
