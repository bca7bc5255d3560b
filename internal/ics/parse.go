package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/overlay"
)

// FeedEvent is one all-day VEVENT read back from a feed. End is
// exclusive, as in the feed.
type FeedEvent struct {
	UID       string
	Kind      overlay.Kind
	StyleHint string
	Summary   string
	Start     model.Date
	End       model.Date
}

// ParseFeed parses an iCalendar document into FeedEvents. Events that
// are not all-day or lack a UID are logged and skipped.
func ParseFeed(body []byte) ([]FeedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]FeedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (FeedEvent, error) {
	var out FeedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(PropertyKind); p != nil {
		out.Kind = overlay.Kind(p.Value)
	} else if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		out.Kind = overlay.Kind(p.Value)
	}
	if p := ve.GetProperty(PropertyStyle); p != nil {
		out.StyleHint = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parseICSDate(startProp.Value)
	if err != nil {
		return out, err
	}
	out.Start = start

	// A missing DTEND on an all-day event means a single day.
	out.End = start.AddDays(1)
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, err := parseICSDate(endProp.Value)
		if err != nil {
			return out, err
		}
		out.End = end
	}
	return out, nil
}

// parseICSDate parses a DATE value (YYYYMMDD). Date-times are rejected;
// the feed only carries all-day events.
func parseICSDate(v string) (model.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Date{}, errors.New("empty date value")
	}
	if strings.Contains(v, "T") {
		return model.Date{}, errors.New("not an all-day value: " + v)
	}
	t, err := time.Parse("20060102", v)
	if err != nil {
		return model.Date{}, err
	}
	return model.DateOf(t), nil
}
