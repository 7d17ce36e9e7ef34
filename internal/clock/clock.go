package clock

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultTimeLayout = "15:04:05"
	DefaultDateLayout = "Mon, 02 Jan 2006"
)

// Clock provides the current instant. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Fixed is a Clock that always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// Formatter renders an instant as wall-clock text for an IANA timezone.
type Formatter interface {
	Format(instant time.Time, timezone string, withDate bool) (string, error)
}

// ZoneFormatter formats with Go layouts and caches loaded locations.
type ZoneFormatter struct {
	TimeLayout string
	DateLayout string

	mu   sync.Mutex
	locs map[string]*time.Location
}

// NewZoneFormatter returns a ZoneFormatter. Empty layouts fall back to the
// defaults.
func NewZoneFormatter(timeLayout, dateLayout string) *ZoneFormatter {
	if timeLayout == "" {
		timeLayout = DefaultTimeLayout
	}
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return &ZoneFormatter{
		TimeLayout: timeLayout,
		DateLayout: dateLayout,
		locs:       make(map[string]*time.Location),
	}
}

// Format returns the time of day, or the date when withDate is set.
func (f *ZoneFormatter) Format(instant time.Time, timezone string, withDate bool) (string, error) {
	loc, err := f.location(timezone)
	if err != nil {
		return "", err
	}
	layout := f.TimeLayout
	if withDate {
		layout = f.DateLayout
	}
	return instant.In(loc).Format(layout), nil
}

func (f *ZoneFormatter) location(name string) (*time.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if loc, ok := f.locs[name]; ok {
		return loc, nil
	}
	loc, err := LoadLocation(name)
	if err != nil {
		return nil, err
	}
	f.locs[name] = loc
	return loc, nil
}

// LoadLocation wraps time.LoadLocation but rejects the empty name, which
// the standard library would silently treat as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("clock: timezone is empty")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("clock: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
