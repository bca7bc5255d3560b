// Package reminder fires a daily medication reminder at the configured
// time of day, skipping days that already have a taken record.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cyclecal/internal/debounce"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

// TakenChecker reports whether day already has a taken record.
type TakenChecker interface {
	HasTaken(day model.Date) bool
}

// Notifier delivers a reminder.
type Notifier interface {
	Notify(ctx context.Context, day model.Date, at model.ClockTime) error
}

// LogNotifier writes reminders to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, day model.Date, at model.ClockTime) error {
	appLog.Info("medication reminder", "date", day.String(), "time", string(at))
	return nil
}

// Scheduler owns one cron instance with at most one reminder job.
type Scheduler struct {
	cron     *cron.Cron
	loc      *time.Location
	checker  TakenChecker
	notifier Notifier

	mu     sync.Mutex
	entry  cron.EntryID
	active bool
	spec   string
}

// New returns a Scheduler evaluating reminder times in loc.
func New(loc *time.Location, checker TakenChecker, notifier Notifier) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		loc:      loc,
		checker:  checker,
		notifier: notifier,
	}
}

// Spec returns the standard five-field cron spec for a daily run at t.
func Spec(t model.ClockTime) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("invalid reminder time %q", t)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Apply installs, moves or removes the daily job to match settings. The
// job exists only while medication tracking and reminders are enabled.
func (s *Scheduler) Apply(settings model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := settings.MedicationTrackingEnabled && settings.ReminderEnabled
	if !want {
		if s.active {
			s.cron.Remove(s.entry)
			s.active = false
			s.spec = ""
			appLog.Info("medication reminder disabled")
		}
		return nil
	}

	spec, err := Spec(settings.ReminderTime)
	if err != nil {
		return err
	}
	if s.active && spec == s.spec {
		return nil
	}
	if s.active {
		s.cron.Remove(s.entry)
		s.active = false
	}

	at := settings.ReminderTime
	id, err := s.cron.AddFunc(spec, func() { s.Fire(context.Background(), model.Today(s.loc), at) })
	if err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	s.entry, s.active, s.spec = id, true, spec
	appLog.Info("medication reminder scheduled", "time", string(at), "spec", spec, "tz", s.loc.String())
	return nil
}

// Fire runs one reminder for day unless it was already taken. It
// reports whether a notification was sent.
func (s *Scheduler) Fire(ctx context.Context, day model.Date, at model.ClockTime) bool {
	if s.checker != nil && s.checker.HasTaken(day) {
		appLog.Debug("reminder skipped; already taken", "date", day.String())
		return false
	}
	if err := s.notifier.Notify(ctx, day, at); err != nil {
		appLog.Error("reminder notification failed", err, "date", day.String())
		return false
	}
	return true
}

// Active reports whether a job is installed and its spec.
func (s *Scheduler) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec, s.active
}

// Next returns the next scheduled run, if any.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entry).Next, true
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Follow returns a debouncer that re-applies current() once settings
// changes have been quiet for delay. Trigger it from a change hook.
func (s *Scheduler) Follow(delay time.Duration, current func() model.Settings) *debounce.Debouncer {
	return debounce.New(delay, func() {
		if err := s.Apply(current()); err != nil {
			appLog.Error("failed to reschedule reminder", err)
		}
	})
}
