// Package termview prints a board snapshot as plain text.
package termview

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"eventclock/internal/web"
)

const maxTitleWidth = 40

// Render writes the clocks on one line followed by one line per event. The
// expanded event is marked with '>' and its start time is shown below it.
func Render(w io.Writer, snap web.Snapshot) error {
	var b strings.Builder

	for i, c := range snap.Clocks {
		if i > 0 {
			b.WriteString("   ")
		}
		fmt.Fprintf(&b, "%s %s (%s)", c.Label, c.Time, c.Date)
	}
	b.WriteString("\n\n")

	width := 0
	for _, ev := range snap.Events {
		if n := runewidth.StringWidth(title(ev)); n > width {
			width = n
		}
	}

	for _, ev := range snap.Events {
		marker := " "
		if ev.Expanded {
			marker = ">"
		}
		label := ev.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(&b, "%s %s  %s\n", marker, runewidth.FillRight(title(ev), width), label)
		if ev.Expanded {
			fmt.Fprintf(&b, "    starts %s\n", ev.Start)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func title(ev web.EventRow) string {
	t := ev.Title
	if t == "" {
		t = ev.ID
	}
	return runewidth.Truncate(t, maxTitleWidth, "...")
}
