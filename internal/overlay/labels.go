package overlay

import (
	"fmt"
	"strings"

	"cyclecal/internal/model"
)

// Condensed glyphs.
const (
	GlyphPeriod     = "●"
	GlyphOvulation  = "◆"
	GlyphNote       = "✎"
	GlyphTaken      = "✓"
	GlyphMissed     = "✗"
	GlyphScheduled  = "·"
	GlyphPrediction = "○"
	GlyphSafeDays   = "~"
)

const maxNoteLabel = 40

type labeler struct {
	condensed bool
}

func labelerFor(condensed bool) labeler { return labeler{condensed: condensed} }

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func (l labeler) period(days int) string {
	if l.condensed {
		return GlyphPeriod
	}
	return fmt.Sprintf("Period (%s)", plural(days, "day"))
}

func (l labeler) currentPeriod(day int) string {
	if l.condensed {
		return GlyphPeriod
	}
	return fmt.Sprintf("Period, day %d", day)
}

func (l labeler) periodHandle() string {
	if l.condensed {
		return ""
	}
	return "Edit period"
}

func (l labeler) ovulation() string {
	if l.condensed {
		return GlyphOvulation
	}
	return "Ovulation"
}

func (l labeler) note(n model.DailyNote) string {
	if l.condensed {
		return GlyphNote
	}
	parts := make([]string, 0, 2)
	if len(n.Symptoms) > 0 {
		parts = append(parts, strings.Join(n.Symptoms, ", "))
	}
	if text := strings.TrimSpace(n.Notes); text != "" {
		if r := []rune(text); len(r) > maxNoteLabel {
			text = string(r[:maxNoteLabel]) + "…"
		}
		parts = append(parts, text)
	}
	return "Note: " + strings.Join(parts, " | ")
}

func (l labeler) medication(ev model.MedicationEvent) string {
	if ev.Taken {
		if l.condensed {
			return GlyphTaken
		}
		if ev.Time != "" {
			return "Taken at " + string(ev.Time)
		}
		return "Taken"
	}
	if l.condensed {
		return GlyphMissed
	}
	if reason := strings.TrimSpace(ev.MissedReason); reason != "" {
		return "Missed: " + reason
	}
	return "Missed"
}

func (l labeler) scheduled(packDay int) string {
	if l.condensed {
		return GlyphScheduled
	}
	return fmt.Sprintf("Pack day %d", packDay)
}

func (l labeler) prediction() string {
	if l.condensed {
		return GlyphPrediction
	}
	return "Expected period"
}

func (l labeler) predictionHandle() string {
	if l.condensed {
		return ""
	}
	return "Log expected period"
}

func (l labeler) safeDays(days int) string {
	if l.condensed {
		return GlyphSafeDays
	}
	return fmt.Sprintf("Safe days (%s)", plural(days, "day"))
}
