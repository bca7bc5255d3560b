// Package overlay turns the aggregate and the derived predictions into
// one ordered list of calendar entries for a renderer.
//
// Internally every range is inclusive. Entry.End is exclusive (one day
// past the last covered day); that conversion happens only in this
// package.
package overlay

import (
	"fmt"
	"strconv"
	"strings"

	"cyclecal/internal/cycle"
	"cyclecal/internal/medication"
	"cyclecal/internal/model"
)

// Kind tags an entry for the renderer.
type Kind string

const (
	KindPeriodRange               Kind = "period-range"
	KindPeriodClickable           Kind = "period-clickable"
	KindCurrentPeriodRange        Kind = "current-period-range"
	KindCurrentPeriodClickable    Kind = "current-period-clickable"
	KindOvulationPoint            Kind = "ovulation-point"
	KindNotePoint                 Kind = "note-point"
	KindMedicationRecorded        Kind = "medication-recorded"
	KindMedicationScheduled       Kind = "medication-scheduled"
	KindPeriodPredictionRange     Kind = "period-prediction-range"
	KindPeriodPredictionClickable Kind = "period-prediction-clickable"
	KindSafeDaysRange             Kind = "safe-days-range"
)

// Kinds lists every kind in emission order.
var Kinds = []Kind{
	KindPeriodRange,
	KindPeriodClickable,
	KindCurrentPeriodRange,
	KindCurrentPeriodClickable,
	KindOvulationPoint,
	KindNotePoint,
	KindMedicationRecorded,
	KindMedicationScheduled,
	KindPeriodPredictionRange,
	KindPeriodPredictionClickable,
	KindSafeDaysRange,
}

// DefaultForecastCount is how many future periods are predicted when
// Input.ForecastCount is unset.
const DefaultForecastCount = 6

// Metadata keys.
const (
	MetaPeriodID   = "periodId"
	MetaNoteID     = "noteId"
	MetaEventID    = "eventId"
	MetaSymptoms   = "symptoms"
	MetaTaken      = "taken"
	MetaPackDay    = "packDay"
	MetaStatus     = "status"
	MetaCycleIndex = "cycleIndex"
)

// Entry is one displayable overlay. End is exclusive.
type Entry struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Start     model.Date        `json:"start"`
	End       model.Date        `json:"end"`
	Label     string            `json:"label"`
	StyleHint string            `json:"styleHint"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Input is everything one synthesis pass needs.
type Input struct {
	Aggregate model.Aggregate
	Today     model.Date

	// Condensed swaps verbose labels for short glyphs. Ranges are the
	// same in both modes.
	Condensed bool

	// HorizonDays bounds virtual medication entries past today.
	// 0 means medication.DefaultHorizonDays.
	HorizonDays int

	// ForecastCount is the number of predicted periods. 0 means
	// DefaultForecastCount.
	ForecastCount int
}

// Synthesize builds the full overlay list. Entries come grouped by kind
// in the order of Kinds, each group sorted by date.
func Synthesize(in Input) []Entry {
	agg := in.Aggregate
	settings := agg.Settings
	l := labelerFor(in.Condensed)

	horizon := in.HorizonDays
	if horizon <= 0 {
		horizon = medication.DefaultHorizonDays
	}
	forecast := in.ForecastCount
	if forecast <= 0 {
		forecast = DefaultForecastCount
	}

	var out []Entry

	// Recorded history.
	for _, p := range agg.Periods {
		r := cycle.PeriodRange(p, in.Today)
		out = append(out, span(KindPeriodRange, p.ID, r, l.period(r.Len()), "period", nil))
	}
	for _, p := range agg.Periods {
		r := cycle.PeriodRange(p, in.Today)
		out = append(out, span(KindPeriodClickable, p.ID, r, l.periodHandle(), "period-handle",
			map[string]string{MetaPeriodID: p.ID}))
	}

	if cur := agg.CurrentPeriod; cur != nil {
		r := cycle.PeriodRange(*cur, in.Today)
		out = append(out, span(KindCurrentPeriodRange, cur.ID, r, l.currentPeriod(r.Len()), "period-current", nil))
		out = append(out, span(KindCurrentPeriodClickable, cur.ID, r, l.periodHandle(), "period-current-handle",
			map[string]string{MetaPeriodID: cur.ID}))
	}

	pred, hasPrediction := cycle.Predict(agg.Periods)

	if settings.ShowOvulation && hasPrediction && pred.HasOvulation {
		out = append(out, point(KindOvulationPoint, pred.Ovulation.String(), pred.Ovulation, l.ovulation(), "ovulation", nil))
	}

	for _, n := range agg.SortedNotes() {
		if n.IsEmpty() {
			continue
		}
		meta := map[string]string{MetaNoteID: n.ID}
		if len(n.Symptoms) > 0 {
			meta[MetaSymptoms] = strings.Join(n.Symptoms, ",")
		}
		out = append(out, point(KindNotePoint, n.ID, n.Date, l.note(n), "note", meta))
	}

	if settings.MedicationTrackingEnabled {
		for _, ev := range agg.SortedMedicationEvents() {
			style := "medication-missed"
			if ev.Taken {
				style = "medication-taken"
			}
			out = append(out, point(KindMedicationRecorded, ev.ID, ev.Date, l.medication(ev), style,
				map[string]string{MetaEventID: ev.ID, MetaTaken: strconv.FormatBool(ev.Taken)}))
		}
		if settings.ShowScheduleOnCalendar {
			for _, s := range medication.VirtualScheduleEntries(agg.MedicationEvents, settings, in.Today, horizon) {
				out = append(out, point(KindMedicationScheduled, s.Date.String(), s.Date, l.scheduled(s.PackDay),
					"medication-"+string(s.Status),
					map[string]string{MetaPackDay: strconv.Itoa(s.PackDay), MetaStatus: string(s.Status)}))
			}
		}
	}

	if settings.ShowNextPeriodPrediction && hasPrediction {
		var predicted []cycle.Range
		for start := range cycle.FuturePeriods(agg.Periods, pred.AverageCycleLength, forecast) {
			predicted = append(predicted, cycle.Range{Start: start, End: start.AddDays(settings.PeriodLength - 1)})
		}
		for _, r := range predicted {
			out = append(out, span(KindPeriodPredictionRange, r.Start.String(), r, l.prediction(), "prediction", nil))
		}
		for i, r := range predicted {
			out = append(out, span(KindPeriodPredictionClickable, r.Start.String(), r, l.predictionHandle(), "prediction-handle",
				map[string]string{MetaCycleIndex: strconv.Itoa(i + 1)}))
		}
	}

	if settings.ShowSafeDays {
		for _, r := range cycle.SafeDayRanges(agg.Periods, settings, in.Today) {
			out = append(out, span(KindSafeDaysRange, r.Start.String(), r, l.safeDays(r.Len()), "safe-days", nil))
		}
	}

	return out
}

func span(kind Kind, key string, r cycle.Range, label, style string, meta map[string]string) Entry {
	return Entry{
		ID:        fmt.Sprintf("%s:%s", kind, key),
		Kind:      kind,
		Start:     r.Start,
		End:       r.End.AddDays(1),
		Label:     label,
		StyleHint: style,
		Metadata:  meta,
	}
}

func point(kind Kind, key string, day model.Date, label, style string, meta map[string]string) Entry {
	return span(kind, key, cycle.Range{Start: day, End: day}, label, style, meta)
}
