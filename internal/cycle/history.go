package cycle

import "cyclecal/internal/model"

// PeriodRange returns the inclusive day span of p. An open period is
// taken to run through today (or just its start day when today is
// earlier).
func PeriodRange(p model.Period, today model.Date) Range {
	if p.EndDate != nil {
		return Range{Start: p.StartDate, End: *p.EndDate}
	}
	return Range{Start: p.StartDate, End: model.MaxDate(p.StartDate, today)}
}

// FindOverlaps returns the recorded periods whose day span intersects
// candidate. The period with excludeID (the one being edited) is
// ignored. Detection only; whether to proceed is the caller's decision.
func FindOverlaps(periods []model.Period, current *model.Period, candidate Range, excludeID string, today model.Date) []model.Period {
	var out []model.Period
	check := func(p model.Period) {
		if p.ID == excludeID {
			return
		}
		if PeriodRange(p, today).Overlaps(candidate) {
			out = append(out, p)
		}
	}
	for _, p := range periods {
		check(p)
	}
	if current != nil {
		check(*current)
	}
	return out
}

// LastStart returns the most recent period start, counting the open
// period.
func LastStart(periods []model.Period, current *model.Period) (model.Date, bool) {
	var last model.Date
	found := false
	if n := len(periods); n > 0 {
		last = periods[n-1].StartDate
		found = true
	}
	if current != nil && (!found || current.StartDate.After(last)) {
		last = current.StartDate
		found = true
	}
	return last, found
}

// CurrentCycleDay returns the 1-based day of the running cycle, counted
// from the most recent period start. It is 0 when nothing is recorded
// or the latest start lies after today.
func CurrentCycleDay(periods []model.Period, current *model.Period, today model.Date) int {
	last, ok := LastStart(periods, current)
	if !ok || today.Before(last) {
		return 0
	}
	return last.DaysUntil(today) + 1
}

// PeriodDaysInMonth counts the days of today's month covered by
// recorded periods. The open period counts up to today.
func PeriodDaysInMonth(periods []model.Period, current *model.Period, today model.Date) int {
	month := Range{Start: today.StartOfMonth(), End: today.EndOfMonth()}
	covered := map[model.Date]bool{}

	add := func(r Range) {
		if !r.Overlaps(month) {
			return
		}
		clipped := Range{Start: model.MaxDate(r.Start, month.Start), End: model.MinDate(r.End, month.End)}
		for _, d := range clipped.Days() {
			covered[d] = true
		}
	}
	for _, p := range periods {
		add(PeriodRange(p, today))
	}
	if current != nil && !current.StartDate.After(today) {
		add(PeriodRange(*current, today))
	}
	return len(covered)
}
