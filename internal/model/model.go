// Package model holds the persisted aggregate of the tracker: recorded
// periods, daily notes, medication events and user settings.
package model

import (
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Period is one menstrual period. EndDate == nil means the period is
// still open; an open period only ever lives in Aggregate.CurrentPeriod.
type Period struct {
	// ID is assigned at creation and never changes, so edit/delete flows
	// stay valid across re-sorting of the history.
	ID        string `json:"id"`
	StartDate Date   `json:"startDate"`
	EndDate   *Date  `json:"endDate"`
}

// IsOpen reports whether the period has no end date yet.
func (p Period) IsOpen() bool { return p.EndDate == nil }

// LengthDays returns the inclusive day count of a closed period, 0 if open.
func (p Period) LengthDays() int {
	if p.EndDate == nil {
		return 0
	}
	return p.StartDate.DaysUntil(*p.EndDate) + 1
}

// DailyNote is the free-form record for one calendar day.
type DailyNote struct {
	ID       string   `json:"id"`
	Date     Date     `json:"date"`
	Symptoms []string `json:"symptoms"`
	Notes    string   `json:"notes"`
}

// IsEmpty reports whether the note carries nothing worth rendering.
func (n DailyNote) IsEmpty() bool {
	return len(n.Symptoms) == 0 && strings.TrimSpace(n.Notes) == ""
}

// NormalizeSymptoms turns a tag list into a sorted set without blanks.
func NormalizeSymptoms(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// MedicationEvent records whether the pill for a given day was taken.
// Time is set iff Taken; MissedReason is only meaningful when !Taken.
type MedicationEvent struct {
	ID           string    `json:"id"`
	Date         Date      `json:"date"`
	Taken        bool      `json:"taken"`
	Time         ClockTime `json:"time,omitempty"`
	MissedReason string    `json:"missedReason,omitempty"`
}

// Aggregate is the single persisted root.
type Aggregate struct {
	Periods          []Period                 `json:"periods"`
	CurrentPeriod    *Period                  `json:"currentPeriod"`
	Notes            map[Date]DailyNote       `json:"notes"`
	MedicationEvents map[Date]MedicationEvent `json:"medicationEvents"`
	Settings         Settings                 `json:"settings"`
}

// NewAggregate returns a fully defaulted empty aggregate.
func NewAggregate() Aggregate {
	return Aggregate{
		Periods:          []Period{},
		Notes:            map[Date]DailyNote{},
		MedicationEvents: map[Date]MedicationEvent{},
		Settings:         DefaultSettings(),
	}
}

// NewID returns a fresh opaque record identifier.
func NewID() string {
	return uuid.NewString()
}

// SortPeriods orders periods ascending by start date. Ties keep their
// relative order.
func SortPeriods(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].StartDate.Before(periods[j].StartDate)
	})
}

// FindPeriod looks a period up by ID in the history and the open slot.
// The returned index is -1 for the open period.
func (a *Aggregate) FindPeriod(id string) (Period, int, bool) {
	for i, p := range a.Periods {
		if p.ID == id {
			return p, i, true
		}
	}
	if a.CurrentPeriod != nil && a.CurrentPeriod.ID == id {
		return *a.CurrentPeriod, -1, true
	}
	return Period{}, 0, false
}

// LastPeriod returns the most recent closed period.
func (a *Aggregate) LastPeriod() (Period, bool) {
	if len(a.Periods) == 0 {
		return Period{}, false
	}
	return a.Periods[len(a.Periods)-1], true
}

// Clone returns a deep copy, so a transaction can mutate freely and be
// discarded if persisting fails.
func (a Aggregate) Clone() Aggregate {
	out := Aggregate{
		Periods:          make([]Period, len(a.Periods)),
		Notes:            make(map[Date]DailyNote, len(a.Notes)),
		MedicationEvents: make(map[Date]MedicationEvent, len(a.MedicationEvents)),
		Settings:         a.Settings,
	}
	for i, p := range a.Periods {
		out.Periods[i] = clonePeriod(p)
	}
	if a.CurrentPeriod != nil {
		cp := clonePeriod(*a.CurrentPeriod)
		out.CurrentPeriod = &cp
	}
	for k, n := range a.Notes {
		n.Symptoms = slices.Clone(n.Symptoms)
		out.Notes[k] = n
	}
	for k, e := range a.MedicationEvents {
		out.MedicationEvents[k] = e
	}
	return out
}

func clonePeriod(p Period) Period {
	if p.EndDate != nil {
		end := *p.EndDate
		p.EndDate = &end
	}
	return p
}

// SortedNotes returns the notes ordered by date.
func (a Aggregate) SortedNotes() []DailyNote {
	out := make([]DailyNote, 0, len(a.Notes))
	for _, n := range a.Notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SortedMedicationEvents returns the medication events ordered by date.
func (a Aggregate) SortedMedicationEvents() []MedicationEvent {
	return SortEvents(a.MedicationEvents)
}

// SortEvents flattens a date-keyed event set into date order.
func SortEvents(events map[Date]MedicationEvent) []MedicationEvent {
	out := make([]MedicationEvent, 0, len(events))
	for _, e := range events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
