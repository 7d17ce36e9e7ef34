// Package source assembles the board's event list from inline config
// entries and iCalendar feeds.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"eventclock/internal/clock"
	"eventclock/internal/config"
	appLog "eventclock/internal/log"
	"eventclock/internal/model"
)

// idNamespace scopes derived event IDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("eventclock"))

// DeriveID returns a stable ID for an event that has none.
func DeriveID(parts ...string) string {
	key := ""
	for _, p := range parts {
		key += p + "\x00"
	}
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// FeedRecorder observes feed loads (metrics).
type FeedRecorder interface {
	RecordFeedLoad(feed, result string)
}

// Loader builds the event list.
type Loader struct {
	Inline  []model.Event
	Feeds   []config.FeedConfig
	Fetcher *Fetcher
	Clock   clock.Clock

	// Feed occurrences are kept if they start within
	// [now - LookBack, now + Horizon].
	LookBack time.Duration
	Horizon  time.Duration

	Recorder FeedRecorder
}

// NewLoader wires a Loader from configuration.
func NewLoader(cfg *config.Config, rec FeedRecorder) *Loader {
	return &Loader{
		Inline:   cfg.Events,
		Feeds:    cfg.Feeds,
		Fetcher:  NewFetcher(cfg.CacheDir, nil),
		Clock:    clock.SystemClock,
		LookBack: cfg.LiveDuration,
		Horizon:  time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		Recorder: rec,
	}
}

// Load returns inline events followed by feed occurrences, sorted by start.
// Events without a usable start sink to the end so the board can still
// list them. A failing feed is logged and skipped; the
// joined feed errors are returned alongside whatever did load.
func (l *Loader) Load(ctx context.Context) ([]model.Event, error) {
	events := make([]model.Event, 0, len(l.Inline))
	for _, ev := range l.Inline {
		if ev.ID == "" {
			ev.ID = DeriveID(ev.Title, ev.Start)
		}
		events = append(events, ev)
	}

	var errs []error
	for _, feed := range l.Feeds {
		evs, err := l.loadFeed(ctx, feed)
		if err != nil {
			appLog.Error("feed load failed", err, "feed", feed.ID)
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		events = append(events, evs...)
	}

	sortByStart(events)
	return events, errors.Join(errs...)
}

func (l *Loader) loadFeed(ctx context.Context, feed config.FeedConfig) ([]model.Event, error) {
	var (
		body   []byte
		result = ResultFresh
		err    error
	)
	if feed.Path != "" {
		body, err = os.ReadFile(feed.Path)
		if err != nil {
			result = ResultError
		}
	} else {
		body, result, err = l.Fetcher.Fetch(ctx, feed.URL)
	}
	l.record(feed.ID, result)
	if err != nil {
		return nil, err
	}

	vevents, dropped, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	now := l.clock().Now()
	occs := expand(vevents, now.Add(-l.LookBack), now.Add(l.Horizon))

	out := make([]model.Event, 0, len(occs))
	for _, o := range occs {
		start := o.Start.UTC().Format(time.RFC3339)
		out = append(out, model.Event{
			ID:     DeriveID(feed.ID, o.UID, start),
			Title:  o.Summary,
			Start:  start,
			Source: feed.ID,
		})
	}

	appLog.Info("feed loaded", "feed", feed.ID, "vevents", len(vevents), "dropped", dropped, "events", len(out), "result", result)
	return out, nil
}

func (l *Loader) record(feed, result string) {
	if l.Recorder != nil {
		l.Recorder.RecordFeedLoad(feed, result)
	}
}

func (l *Loader) clock() clock.Clock {
	if l.Clock == nil {
		return clock.SystemClock
	}
	return l.Clock
}

// sortByStart orders events by start instant; unparseable starts sink to
// the end in their original relative order.
func sortByStart(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, errA := events[i].StartInstant()
		b, errB := events[j].StartInstant()
		switch {
		case errA != nil:
			return false
		case errB != nil:
			return true
		default:
			return a.Before(b)
		}
	})
}
