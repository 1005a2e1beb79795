package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calbot/internal/calendar"
)

// Priority orders slot selection. High-priority tasks take the earliest
// qualifying slot, low-priority the latest, medium the middle one.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps free-form parser output onto a Priority, defaulting to
// medium for anything unrecognized.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// StructuredTask is the resolved output of the NL parser and the input to the
// orchestrator. Optional fields are zero-valued when absent; defaulting rules
// are applied by the orchestrator boundary, not by the parser.
type StructuredTask struct {
	Title           string
	DurationMinutes int
	Priority        Priority

	// Deadline is an optional timestamp string ("2025-01-02T15:00",
	// "2025-01-02", RFC3339). It bounds the search window, and together with
	// PreferredTime it can pin an exact interval.
	Deadline string

	// PreferredTime is an optional time-of-day word (morning/afternoon/
	// evening), a clock time ("13:00", "1pm", "1:30pm"), or a full timestamp.
	PreferredTime string

	Recurring         bool
	RecurrencePattern string // daily | weekdays | weekly_<dayname>
	Occurrences       int
}

// Clock is a time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// On anchors the clock time to the calendar date of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// ParseClockHHMM parses strict "HH:MM" (24h). Used for work-policy fields.
func ParseClockHHMM(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// WorkPolicy is a user's scheduling constraints: the daily work window, an
// optional break window, and the timezone all of it lives in. Immutable for
// the duration of one scheduling call.
type WorkPolicy struct {
	WorkStart  Clock
	WorkEnd    Clock
	BreakStart *Clock
	BreakEnd   *Clock
	Timezone   string
}

// DefaultPolicy mirrors the stock preferences: 09:00-17:00 with a 12:00-13:00
// break.
func DefaultPolicy(tz string) WorkPolicy {
	bs := Clock{Hour: 12}
	be := Clock{Hour: 13}
	return WorkPolicy{
		WorkStart:  Clock{Hour: 9},
		WorkEnd:    Clock{Hour: 17},
		BreakStart: &bs,
		BreakEnd:   &be,
		Timezone:   tz,
	}
}

func (p WorkPolicy) Validate() error {
	if p.WorkStart.Minutes() >= p.WorkEnd.Minutes() {
		return fmt.Errorf("work window: start %s must be before end %s", p.WorkStart, p.WorkEnd)
	}
	if (p.BreakStart == nil) != (p.BreakEnd == nil) {
		return fmt.Errorf("break window: both start and end must be set")
	}
	if p.BreakStart != nil {
		bs, be := p.BreakStart.Minutes(), p.BreakEnd.Minutes()
		if bs >= be {
			return fmt.Errorf("break window: start %s must be before end %s", p.BreakStart, p.BreakEnd)
		}
		if bs < p.WorkStart.Minutes() || be > p.WorkEnd.Minutes() {
			return fmt.Errorf("break window must fall within the work window")
		}
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("timezone: invalid %q: %w", p.Timezone, err)
		}
	}
	return nil
}

// Location resolves the policy timezone, falling back to UTC.
func (p WorkPolicy) Location() *time.Location {
	tz := strings.TrimSpace(p.Timezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FreeInterval is one candidate window produced by the availability
// calculator. Transient: computed fresh per call, never persisted.
type FreeInterval struct {
	Start time.Time
	End   time.Time
}

func (f FreeInterval) Span() time.Duration { return f.End.Sub(f.Start) }

// Proposal is the interval a Conflict result asked the user to confirm.
type Proposal struct {
	Title string
	Start time.Time
	End   time.Time
}

// Status tags a Result.
type Status int

const (
	StatusScheduled Status = iota
	StatusScheduledMany
	StatusConflict
	StatusFailed
)

// FailReason classifies terminal failures.
type FailReason string

const (
	ReasonNoSlotFound         FailReason = "no_slot_found"
	ReasonUnparsableTime      FailReason = "unparsable_time"
	ReasonRecurrenceExhausted FailReason = "recurrence_exhausted"
	ReasonStoreError          FailReason = "store_error"
)

// Result is the single outcome of one orchestrator invocation.
type Result struct {
	Status Status

	// StatusScheduled
	Event *calendar.Event

	// StatusScheduledMany: the scheduled subset, in occurrence order. Callers
	// compare len(Events) against the requested occurrence count to detect
	// shortfall.
	Events []calendar.Event

	// StatusConflict
	Proposed  *Proposal
	Conflicts []calendar.Event

	// StatusFailed
	Reason       FailReason
	Alternatives []FreeInterval // NoSlotFound only; up to 3
	Err          error          // StoreError only; wrapped store error
}
