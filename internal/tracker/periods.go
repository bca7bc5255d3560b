package tracker

import (
	"context"
	"fmt"

	"cyclecal/internal/cycle"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

// StartPeriod opens a new period on date. A date inside any recorded
// period is refused with an *OverlapError unless confirm is set.
func (t *Tracker) StartPeriod(ctx context.Context, date model.Date, confirm bool) (model.Period, error) {
	var started model.Period
	err := t.mutate(ctx, "start_period", func(a *model.Aggregate) error {
		if date.IsZero() {
			return invalid("startDate", "is required")
		}
		if a.CurrentPeriod != nil {
			return ErrPeriodOpen
		}
		if last, ok := a.LastPeriod(); ok && !date.After(*last.EndDate) {
			return invalid("startDate", fmt.Sprintf("must be after the last recorded period (ended %s)", last.EndDate))
		}
		// The latest start is not always the latest end once overlaps were
		// confirmed, so check every recorded period.
		if err := overlaps(a, cycle.Range{Start: date, End: date}, ""); err != nil && !confirm {
			return err
		}
		started = model.Period{ID: model.NewID(), StartDate: date}
		a.CurrentPeriod = &started
		return nil
	})
	if err != nil {
		return model.Period{}, err
	}
	appLog.Info("period started", "id", started.ID, "date", date.String())
	return started, nil
}

// EndPeriod closes the open period on date and files it in the history.
func (t *Tracker) EndPeriod(ctx context.Context, date model.Date) (model.Period, error) {
	var ended model.Period
	err := t.mutate(ctx, "end_period", func(a *model.Aggregate) error {
		if date.IsZero() {
			return invalid("endDate", "is required")
		}
		if a.CurrentPeriod == nil {
			return ErrNoOpenPeriod
		}
		if date.Before(a.CurrentPeriod.StartDate) {
			return invalid("endDate", "must not be before the start date")
		}
		ended = *a.CurrentPeriod
		end := date
		ended.EndDate = &end
		a.Periods = append(a.Periods, ended)
		model.SortPeriods(a.Periods)
		a.CurrentPeriod = nil
		return nil
	})
	if err != nil {
		return model.Period{}, err
	}
	appLog.Info("period ended", "id", ended.ID, "days", ended.LengthDays())
	return ended, nil
}

// AddPeriod records a closed period. A range that overlaps a recorded
// period is refused with an *OverlapError unless confirm is set, in
// which case both are kept.
func (t *Tracker) AddPeriod(ctx context.Context, start, end model.Date, confirm bool) (model.Period, error) {
	var added model.Period
	err := t.mutate(ctx, "add_period", func(a *model.Aggregate) error {
		r, err := periodRange(start, end)
		if err != nil {
			return err
		}
		if err := overlaps(a, r, ""); err != nil && !confirm {
			return err
		}
		e := end
		added = model.Period{ID: model.NewID(), StartDate: start, EndDate: &e}
		a.Periods = append(a.Periods, added)
		model.SortPeriods(a.Periods)
		return nil
	})
	if err != nil {
		return model.Period{}, err
	}
	appLog.Info("period added", "id", added.ID, "start", start.String(), "end", end.String())
	return added, nil
}

// EditPeriod changes the dates of the period with id. For the open
// period a nil end keeps it open and a non-nil end closes it. A
// recorded period always needs an end.
func (t *Tracker) EditPeriod(ctx context.Context, id string, start model.Date, end *model.Date, confirm bool) (model.Period, error) {
	var edited model.Period
	err := t.mutate(ctx, "edit_period", func(a *model.Aggregate) error {
		existing, idx, ok := a.FindPeriod(id)
		if !ok {
			return fmt.Errorf("period %q: %w", id, ErrNotFound)
		}
		if start.IsZero() {
			return invalid("startDate", "is required")
		}

		if end == nil {
			if idx >= 0 {
				return invalid("endDate", "is required for a recorded period")
			}
			if err := overlaps(a, cycle.Range{Start: start, End: start}, id); err != nil && !confirm {
				return err
			}
			existing.StartDate = start
			a.CurrentPeriod = &existing
			edited = existing
			return nil
		}

		r, err := periodRange(start, *end)
		if err != nil {
			return err
		}
		if err := overlaps(a, r, id); err != nil && !confirm {
			return err
		}
		e := *end
		edited = model.Period{ID: existing.ID, StartDate: start, EndDate: &e}
		if idx < 0 {
			a.CurrentPeriod = nil
			a.Periods = append(a.Periods, edited)
		} else {
			a.Periods[idx] = edited
		}
		model.SortPeriods(a.Periods)
		return nil
	})
	if err != nil {
		return model.Period{}, err
	}
	appLog.Info("period edited", "id", id)
	return edited, nil
}

// DeletePeriod removes the period with id, recorded or open.
func (t *Tracker) DeletePeriod(ctx context.Context, id string, confirm bool) error {
	err := t.mutate(ctx, "delete_period", func(a *model.Aggregate) error {
		_, idx, ok := a.FindPeriod(id)
		if !ok {
			return fmt.Errorf("period %q: %w", id, ErrNotFound)
		}
		if !confirm {
			return ErrConfirmationRequired
		}
		if idx < 0 {
			a.CurrentPeriod = nil
		} else {
			a.Periods = append(a.Periods[:idx], a.Periods[idx+1:]...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	appLog.Info("period deleted", "id", id)
	return nil
}
