// Package ics renders overlay entries as an iCalendar feed so any
// calendar client can subscribe to the predictions, and parses such a
// feed back.
package ics

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/overlay"
)

const (
	ProductID = "-//cyclecal//cycle overlays//EN"

	// uidDomain suffixes entry IDs to form globally unique UIDs.
	uidDomain = "cyclecal"

	// PropertyKind and PropertyStyle carry the overlay tagging so a
	// parsed feed can be mapped back onto overlay kinds.
	PropertyKind  = ical.ComponentProperty("X-CYCLECAL-KIND")
	PropertyStyle = ical.ComponentProperty("X-CYCLECAL-STYLE")
)

// FeedOptions control feed rendering.
type FeedOptions struct {
	// Name is shown by clients as the calendar title.
	Name string

	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
}

// Exported reports whether an entry kind belongs in a feed. Clickable
// kinds are edit handles for interactive renderers and are left out.
func Exported(kind overlay.Kind) bool {
	return !strings.HasSuffix(string(kind), "-clickable")
}

// Feed renders entries as an iCalendar document of all-day events.
// Entry ends are already exclusive, which is what DTEND expects for
// all-day events.
func Feed(entries []overlay.Entry, opts FeedOptions) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	stamp := opts.Stamp.UTC()

	count := 0
	for _, e := range entries {
		if !Exported(e.Kind) {
			continue
		}
		ev := cal.AddEvent(e.ID + "@" + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(e.Start.Time())
		ev.SetAllDayEndAt(e.End.Time())
		ev.SetSummary(summary(e))
		if desc := describe(e.Metadata); desc != "" {
			ev.SetDescription(desc)
		}
		ev.SetProperty(ical.ComponentPropertyCategories, string(e.Kind))
		ev.SetProperty(PropertyKind, string(e.Kind))
		if e.StyleHint != "" {
			ev.SetProperty(PropertyStyle, e.StyleHint)
		}
		count++
	}

	appLog.Debug("ics feed rendered", "events", count)
	return cal.Serialize()
}

func summary(e overlay.Entry) string {
	if e.Label != "" {
		return e.Label
	}
	return string(e.Kind)
}

func describe(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	lines := make([]string, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		lines = append(lines, fmt.Sprintf("%s=%s", k, meta[k]))
	}
	return strings.Join(lines, "\n")
}
