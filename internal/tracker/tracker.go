// Package tracker owns the aggregate and runs every mutation as one
// transaction: validate, mutate a copy, persist, then publish.
//
// A mutex serializes all operations, so concurrent HTTP requests observe
// the same single-writer behaviour as a local app. Readers never see a
// half-applied change and a failed Save leaves the state untouched.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"cyclecal/internal/cycle"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/medication"
	"cyclecal/internal/model"
	"cyclecal/internal/overlay"
	"cyclecal/internal/store"
)

// Options tune the derived views.
type Options struct {
	HorizonDays      int
	ForecastCount    int
	ComplianceWindow int
}

func (o Options) withDefaults() Options {
	if o.HorizonDays <= 0 {
		o.HorizonDays = medication.DefaultHorizonDays
	}
	if o.ForecastCount <= 0 {
		o.ForecastCount = overlay.DefaultForecastCount
	}
	if o.ComplianceWindow <= 0 {
		o.ComplianceWindow = medication.DefaultComplianceWindow
	}
	return o
}

// ChangeFunc observes the aggregate after a committed mutation. It
// receives a private copy.
type ChangeFunc func(model.Aggregate)

// Tracker is the single owner of the aggregate.
type Tracker struct {
	store store.Store
	opts  Options

	mu    sync.RWMutex
	state model.Aggregate
	hooks []ChangeFunc
}

// New returns a Tracker starting from state.
func New(st store.Store, state model.Aggregate, opts Options) *Tracker {
	return &Tracker{store: st, state: state, opts: opts.withDefaults()}
}

// Open loads the persisted aggregate. A document that cannot be read at
// all is moved aside and the tracker starts from an empty aggregate.
func Open(ctx context.Context, st store.Store, opts Options) (*Tracker, error) {
	state, err := st.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrCorruptState) {
			return nil, fmt.Errorf("load state: %w", err)
		}
		appLog.Error("persisted state is corrupt; starting empty", err)
		moved, qerr := st.Quarantine(ctx)
		if qerr != nil {
			return nil, fmt.Errorf("quarantine corrupt state: %w", qerr)
		}
		appLog.Warn("corrupt state moved aside", "to", moved)
		state = model.NewAggregate()
	}
	appLog.Info("state loaded",
		"periods", len(state.Periods),
		"open", state.CurrentPeriod != nil,
		"notes", len(state.Notes),
		"medication_events", len(state.MedicationEvents),
	)
	return New(st, state, opts), nil
}

// OnChange registers fn to run after every committed mutation.
func (t *Tracker) OnChange(fn ChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Snapshot returns a copy of the current aggregate.
func (t *Tracker) Snapshot() model.Aggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Clone()
}

// Settings returns the current settings.
func (t *Tracker) Settings() model.Settings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Settings
}

// HasTaken reports whether day has a taken medication record.
func (t *Tracker) HasTaken(day model.Date) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ev, ok := t.state.MedicationEvents[day]
	return ok && ev.Taken
}

// mutate applies fn to a copy of the state, saves it and swaps it in.
func (t *Tracker) mutate(ctx context.Context, op string, fn func(a *model.Aggregate) error) error {
	t.mu.Lock()
	next := t.state.Clone()
	if err := fn(&next); err != nil {
		t.mu.Unlock()
		appLog.Debug("mutation rejected", "op", op, "reason", err.Error())
		return err
	}
	if err := t.store.Save(ctx, next); err != nil {
		t.mu.Unlock()
		appLog.Error("failed to persist state", err, "op", op)
		return fmt.Errorf("%s: save: %w", op, err)
	}
	t.state = next
	hooks := slices.Clone(t.hooks)
	t.mu.Unlock()

	appLog.Debug("mutation committed", "op", op)
	for _, h := range hooks {
		h(next.Clone())
	}
	return nil
}

// Overlays synthesizes the calendar entries for today.
func (t *Tracker) Overlays(today model.Date, condensed bool) []overlay.Entry {
	return overlay.Synthesize(overlay.Input{
		Aggregate:     t.Snapshot(),
		Today:         today,
		Condensed:     condensed,
		HorizonDays:   t.opts.HorizonDays,
		ForecastCount: t.opts.ForecastCount,
	})
}

// Options returns the effective options.
func (t *Tracker) Options() Options { return t.opts }

// periodRange validates a closed candidate range.
func periodRange(start, end model.Date) (cycle.Range, error) {
	if start.IsZero() {
		return cycle.Range{}, invalid("startDate", "is required")
	}
	if end.IsZero() {
		return cycle.Range{}, invalid("endDate", "is required")
	}
	if end.Before(start) {
		return cycle.Range{}, invalid("endDate", "must not be before the start date")
	}
	return cycle.Range{Start: start, End: end}, nil
}

// overlaps checks candidate against everything recorded except
// excludeID. The open period counts as running at least through the
// candidate's end.
func overlaps(a *model.Aggregate, candidate cycle.Range, excludeID string) error {
	hits := cycle.FindOverlaps(a.Periods, a.CurrentPeriod, candidate, excludeID, candidate.End)
	if len(hits) == 0 {
		return nil
	}
	return &OverlapError{Conflicts: hits}
}
