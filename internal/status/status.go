// Package status classifies an event as upcoming, live or passed relative to
// the current instant.
package status

import (
	"fmt"
	"time"
)

const (
	DefaultLiveThreshold = 3 * time.Minute
	DefaultLiveDuration  = 6 * time.Hour
)

// Kind is the event state. The zero value is not a valid state.
type Kind int

const (
	Upcoming Kind = iota + 1
	Live
	Passed
)

func (k Kind) String() string {
	switch k {
	case Upcoming:
		return "upcoming"
	case Live:
		return "live"
	case Passed:
		return "passed"
	default:
		return "unknown"
	}
}

// MarshalText lets Kind appear as its name in JSON and YAML.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "upcoming":
		*k = Upcoming
	case "live":
		*k = Live
	case "passed":
		*k = Passed
	default:
		return fmt.Errorf("status: unknown kind %q", b)
	}
	return nil
}

// Remaining is the time left until start, split into whole units.
type Remaining struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// TotalSeconds reassembles the breakdown.
func (r Remaining) TotalSeconds() int64 {
	return r.Days*86400 + r.Hours*3600 + r.Minutes*60 + r.Seconds
}

// Status is the classification result. Remaining is only meaningful when
// Kind is Upcoming.
type Status struct {
	Kind      Kind      `json:"kind"`
	Remaining Remaining `json:"remaining"`
}

// Label is the display text for the status.
func (s Status) Label() string {
	switch s.Kind {
	case Live:
		return "Live now"
	case Passed:
		return "Already happened"
	case Upcoming:
		r := s.Remaining
		if r.Days > 0 {
			return fmt.Sprintf("Upcoming: %02d:%02d:%02d:%02d", r.Days, r.Hours, r.Minutes, r.Seconds)
		}
		return fmt.Sprintf("Upcoming: %02d:%02d:%02d", r.Hours, r.Minutes, r.Seconds)
	default:
		return ""
	}
}

// Classifier holds the live window parameters.
type Classifier struct {
	// LiveThreshold is how long before its start an event turns live.
	LiveThreshold time.Duration
	// LiveDuration is how long after its start an event stays live.
	LiveDuration time.Duration
}

// NewClassifier returns a Classifier with the given window. Zero values are
// replaced by the defaults.
func NewClassifier(threshold, duration time.Duration) Classifier {
	if threshold == 0 {
		threshold = DefaultLiveThreshold
	}
	if duration == 0 {
		duration = DefaultLiveDuration
	}
	return Classifier{LiveThreshold: threshold, LiveDuration: duration}
}

// Classify maps (start, now) to a Status. The passed cutoff is checked
// before the live window.
func (c Classifier) Classify(start, now time.Time) Status {
	toStart := start.Sub(now)
	toLiveEnd := start.Add(c.LiveDuration).Sub(now)

	if toLiveEnd < 0 {
		return Status{Kind: Passed}
	}
	if toStart <= c.LiveThreshold {
		return Status{Kind: Live}
	}
	return Status{Kind: Upcoming, Remaining: split(toStart)}
}

// split floors the millisecond distance into whole days, hours, minutes
// and seconds.
func split(d time.Duration) Remaining {
	secs := d.Milliseconds() / 1000
	return Remaining{
		Days:    secs / 86400,
		Hours:   secs % 86400 / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
	}
}
