// Package cycle derives predictions from recorded period history: the
// average cycle length, ovulation, upcoming periods and the "safe day"
// ranges around the fertile window.
//
// Every function is pure. The current date is always passed in, never
// read from the clock, so results are reproducible.
package cycle

import (
	"iter"
	"math"

	"github.com/teambition/rrule-go"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

const (
	// LutealPhaseDays is the fixed distance from ovulation to the next
	// period start.
	LutealPhaseDays = 14

	// FertileDaysBefore and FertileDaysAfter bound the fertile window
	// around ovulation.
	FertileDaysBefore = 5
	FertileDaysAfter  = 1
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start model.Date `json:"start"`
	End   model.Date `json:"end"`
}

// Empty reports whether the range ends before it starts.
func (r Range) Empty() bool { return r.End.Before(r.Start) }

// Len returns the number of days in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.Start.DaysUntil(r.End) + 1
}

func (r Range) Contains(d model.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) Overlaps(o Range) bool {
	return !r.End.Before(o.Start) && !o.End.Before(r.Start)
}

// Days returns every day in the range.
func (r Range) Days() []model.Date {
	var out []model.Date
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// AverageCycleLength returns the rounded mean distance between
// consecutive period starts, or 0 with fewer than two periods. periods
// must be sorted by start date.
func AverageCycleLength(periods []model.Period) int {
	if len(periods) < 2 {
		return 0
	}
	total := 0
	for i := 1; i < len(periods); i++ {
		total += periods[i-1].StartDate.DaysUntil(periods[i].StartDate)
	}
	return int(math.Round(float64(total) / float64(len(periods)-1)))
}

// OvulationDate returns periodStart + (avg - 14). ok is false when the
// cycle is too short to place ovulation after the start.
func OvulationDate(periodStart model.Date, avgCycleLength int) (model.Date, bool) {
	offset := avgCycleLength - LutealPhaseDays
	if offset <= 0 {
		return model.Date{}, false
	}
	return periodStart.AddDays(offset), true
}

// NextPeriodDate returns the last recorded start + avg.
func NextPeriodDate(periods []model.Period, avgCycleLength int) (model.Date, bool) {
	if len(periods) < 2 || avgCycleLength <= 0 {
		return model.Date{}, false
	}
	return periods[len(periods)-1].StartDate.AddDays(avgCycleLength), true
}

// FuturePeriods yields count predicted start dates, each avg days after
// the previous one, beginning after the last recorded start. The
// sequence is lazy and can be ranged over any number of times.
func FuturePeriods(periods []model.Period, avgCycleLength, count int) iter.Seq[model.Date] {
	return func(yield func(model.Date) bool) {
		if len(periods) < 2 || avgCycleLength <= 0 || count <= 0 {
			return
		}
		last := periods[len(periods)-1].StartDate

		// The rule's first occurrence is DTSTART itself, which is the
		// recorded start, so ask for one more and skip it.
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:     rrule.DAILY,
			Interval: avgCycleLength,
			Count:    count + 1,
			Dtstart:  last.Time(),
		})
		if err != nil {
			appLog.Error("cycle: failed to build prediction rule", err, "interval", avgCycleLength)
			return
		}

		next := rule.Iterator()
		first := true
		for {
			t, ok := next()
			if !ok {
				return
			}
			if first {
				first = false
				continue
			}
			if !yield(model.DateOf(t)) {
				return
			}
		}
	}
}

// FertileWindow returns [ovulation-5, ovulation+1].
func FertileWindow(ovulation model.Date) Range {
	return Range{
		Start: ovulation.AddDays(-FertileDaysBefore),
		End:   ovulation.AddDays(FertileDaysAfter),
	}
}

// Prediction bundles the next-cycle numbers derived from the history.
type Prediction struct {
	AverageCycleLength int
	NextPeriod         model.Date
	Ovulation          model.Date
	HasOvulation       bool
	Fertile            Range
}

// Predict computes the next-cycle prediction. ok is false with fewer
// than two recorded periods.
func Predict(periods []model.Period) (Prediction, bool) {
	avg := AverageCycleLength(periods)
	next, ok := NextPeriodDate(periods, avg)
	if !ok {
		return Prediction{}, false
	}
	p := Prediction{AverageCycleLength: avg, NextPeriod: next}
	if ov, ok := OvulationDate(periods[len(periods)-1].StartDate, avg); ok {
		p.Ovulation = ov
		p.HasOvulation = true
		p.Fertile = FertileWindow(ov)
	}
	return p, true
}

// SafeDayRanges returns the low-fertility spans of the upcoming cycle:
// from the day after the last period ends to the day before the fertile
// window, and from the day after the fertile window to the day before
// the next predicted period. Empty spans are left out.
// The ranges depend on the history alone; settings and today complete
// the recomputation context shared with the other analytics.
func SafeDayRanges(periods []model.Period, _ model.Settings, _ model.Date) []Range {
	pred, ok := Predict(periods)
	if !ok || !pred.HasOvulation {
		return nil
	}
	last := periods[len(periods)-1]
	if last.EndDate == nil {
		return nil
	}

	candidates := []Range{
		{Start: last.EndDate.AddDays(1), End: pred.Fertile.Start.AddDays(-1)},
		{Start: pred.Fertile.End.AddDays(1), End: pred.NextPeriod.AddDays(-1)},
	}
	out := make([]Range, 0, len(candidates))
	for _, r := range candidates {
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out
}
