package source

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventclock/internal/log"
)

// maxOccurrences caps a single recurring series.
const maxOccurrences = 1000

// occurrence is one concrete start of a (possibly recurring) VEVENT.
type occurrence struct {
	UID     string
	Summary string
	Start   time.Time
}

// expand turns VEVENTs into concrete occurrences starting within
// [from, to]. RECURRENCE-ID overrides replace the matching generated
// instance.
func expand(events []vevent, from, to time.Time) []occurrence {
	base := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	var order []string

	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := base[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		base[ev.UID] = append(base[ev.UID], ev)
	}

	var out []occurrence
	for _, uid := range order {
		for _, ev := range base[uid] {
			for _, start := range startsOf(ev, from, to) {
				occ := occurrence{UID: ev.UID, Summary: ev.Summary, Start: start}
				if ov, ok := overrideFor(overrides[uid], start); ok {
					occ.Summary = ov.Summary
					occ.Start = ov.Start
				}
				out = append(out, occ)
			}
		}
	}
	return out
}

func startsOf(ev vevent, from, to time.Time) []time.Time {
	if ev.RRule == "" {
		if ev.Start.Before(from) || ev.Start.After(to) {
			return nil
		}
		return []time.Time{ev.Start}
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("skipping event with bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(from.In(loc), to.In(loc), true)
	if len(starts) > maxOccurrences {
		appLog.Info("truncating recurring event", "uid", ev.UID, "occurrences", len(starts), "cap", maxOccurrences)
		starts = starts[:maxOccurrences]
	}
	return starts
}

func overrideFor(overrides []vevent, start time.Time) (vevent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return vevent{}, false
}
