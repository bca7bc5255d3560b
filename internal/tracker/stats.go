package tracker

import (
	"github.com/shopspring/decimal"

	"cyclecal/internal/cycle"
	"cyclecal/internal/medication"
	"cyclecal/internal/model"
)

// Stats are the derived figures shown next to the calendar.
type Stats struct {
	AverageCycleLength int             `json:"averageCycleLength"`
	CurrentCycleDay    int             `json:"currentCycleDay"`
	MonthlyPeriodDays  int             `json:"monthlyPeriodDays"`
	NextPeriod         *model.Date     `json:"nextPeriod,omitempty"`
	Ovulation          *model.Date     `json:"ovulation,omitempty"`
	MedicationStreak   int             `json:"medicationStreak"`
	CompliancePercent  decimal.Decimal `json:"compliancePercent"`
}

// Stats recomputes the derived figures for today.
func (t *Tracker) Stats(today model.Date) Stats {
	return ComputeStats(t.Snapshot(), today, t.opts.ComplianceWindow)
}

// ComputeStats derives Stats from a.
func ComputeStats(a model.Aggregate, today model.Date, complianceWindow int) Stats {
	s := Stats{
		AverageCycleLength: cycle.AverageCycleLength(a.Periods),
		CurrentCycleDay:    cycle.CurrentCycleDay(a.Periods, a.CurrentPeriod, today),
		MonthlyPeriodDays:  cycle.PeriodDaysInMonth(a.Periods, a.CurrentPeriod, today),
		MedicationStreak:   medication.Streak(a.MedicationEvents, a.Settings, today),
		CompliancePercent:  medication.ComplianceRate(a.MedicationEvents, today, complianceWindow),
	}
	if pred, ok := cycle.Predict(a.Periods); ok {
		next := pred.NextPeriod
		s.NextPeriod = &next
		if pred.HasOvulation {
			ov := pred.Ovulation
			s.Ovulation = &ov
		}
	}
	return s
}
