package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclecal/internal/model"
	"cyclecal/internal/overlay"
)

func sampleEntries() []overlay.Entry {
	agg := model.NewAggregate()
	e1 := model.MustParseDate("2024-01-05")
	e2 := model.MustParseDate("2024-02-02")
	agg.Periods = []model.Period{
		{ID: "p1", StartDate: model.MustParseDate("2024-01-01"), EndDate: &e1},
		{ID: "p2", StartDate: model.MustParseDate("2024-01-29"), EndDate: &e2},
	}
	return overlay.Synthesize(overlay.Input{
		Aggregate:     agg,
		Today:         model.MustParseDate("2024-02-05"),
		ForecastCount: 2,
	})
}

func TestFeedRoundTrip(t *testing.T) {
	entries := sampleEntries()
	body := Feed(entries, FeedOptions{Name: "Cycle", Stamp: time.Date(2024, 2, 5, 8, 0, 0, 0, time.UTC)})

	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, ProductID)
	assert.Contains(t, body, "X-WR-CALNAME:Cycle")
	assert.NotContains(t, body, "-clickable", "edit handles are not exported")

	events, err := ParseFeed([]byte(body))
	require.NoError(t, err)

	var want []overlay.Entry
	for _, e := range entries {
		if Exported(e.Kind) {
			want = append(want, e)
		}
	}
	require.Len(t, events, len(want))

	for i, e := range want {
		got := events[i]
		assert.Equal(t, e.ID+"@cyclecal", got.UID)
		assert.Equal(t, e.Kind, got.Kind)
		assert.Equal(t, e.StyleHint, got.StyleHint)
		assert.Equal(t, e.Label, got.Summary)
		assert.Equal(t, e.Start, got.Start)
		assert.Equal(t, e.End, got.End, "exclusive end survives")
	}
}

func TestFeedAllDayDates(t *testing.T) {
	body := Feed(sampleEntries(), FeedOptions{})
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20240101")
	assert.Contains(t, body, "DTEND;VALUE=DATE:20240106")
}

func TestParseFeedSkipsBadEvents(t *testing.T) {
	doc := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:ok@test",
		"DTSTART;VALUE=DATE:20240301",
		"SUMMARY:One day",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:timed@test",
		"DTSTART:20240301T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART;VALUE=DATE:20240302",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	events, err := ParseFeed([]byte(doc))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok@test", events[0].UID)
	assert.Equal(t, "2024-03-02", events[0].End.String(), "missing DTEND means one day")
}

func TestParseFeedEmpty(t *testing.T) {
	_, err := ParseFeed(nil)
	assert.Error(t, err)
}
