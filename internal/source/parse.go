package source

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// vevent is the subset of a VEVENT the board needs.
type vevent struct {
	UID     string
	Summary string
	Start   time.Time

	RRule      string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, set on overrides
}

var ErrEmptyFeed = errors.New("empty calendar body")

// parseFeed decodes an iCalendar body. VEVENTs without UID or DTSTART are
// dropped; the count is returned so callers can log it.
func parseFeed(body []byte) ([]vevent, int, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, 0, ErrEmptyFeed
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []vevent
		dropped int
	)
	for _, ve := range cal.Events() {
		ev, ok := toVEvent(ve)
		if !ok {
			dropped++
			continue
		}
		out = append(out, ev)
	}
	return out, dropped, nil
}

func toVEvent(ve *ical.VEvent) (vevent, bool) {
	var out vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, false
	}
	out.UID = uid.Value

	start, err := ve.GetStartAt()
	if err != nil || start.IsZero() {
		return out, false
	}
	out.Start = start

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := tzidLocation(p.ICalParameters, start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		loc := tzidLocation(p.ICalParameters, start.Location())
		if t, err := parseICSTime(p.Value, loc); err == nil {
			out.Recurrence = &t
		}
	}

	return out, true
}

// tzidLocation resolves a TZID parameter, falling back to def.
func tzidLocation(params map[string][]string, def *time.Location) *time.Location {
	if tz, ok := params["TZID"]; ok && len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	return def
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
