package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calbot/internal/calendar"
	logx "calbot/pkg/logx"
)

const (
	defaultDurationMinutes = 60
	defaultSearchDays      = 7
	maxAlternatives        = 3
)

// Scheduler is the orchestrator for one user's calendar. It owns no state
// beyond its collaborators; every Schedule call is an independent computation.
type Scheduler struct {
	store calendar.Store
	log   logx.Logger

	// now is swappable in tests.
	now func() time.Time
}

func New(store calendar.Store, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{store: store, log: log, now: time.Now}
}

// Schedule places the task on the calendar and returns exactly one Result.
//
// force=true skips the conflict gate entirely and must only be passed after
// an explicit user confirmation; it is the single way a conflicting event can
// be persisted.
func (s *Scheduler) Schedule(ctx context.Context, task StructuredTask, policy WorkPolicy, force bool) Result {
	task = normalize(task)

	if task.Recurring {
		return s.scheduleRecurring(ctx, task, policy, force)
	}
	return s.scheduleSingle(ctx, task, policy, force)
}

// Cancel deletes an event. The bool reports whether anything was removed.
func (s *Scheduler) Cancel(ctx context.Context, eventID string) (bool, error) {
	err := s.store.DeleteEvent(ctx, eventID)
	if errors.Is(err, calendar.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete event %s: %w", eventID, err)
	}
	s.log.Info("event cancelled", logx.String("event_id", eventID))
	return true, nil
}

func normalize(task StructuredTask) StructuredTask {
	if task.DurationMinutes <= 0 {
		task.DurationMinutes = defaultDurationMinutes
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Recurring {
		if task.RecurrencePattern == "" {
			task.RecurrencePattern = "daily"
		}
		if task.Occurrences < 1 {
			task.Occurrences = 1
		}
	}
	return task
}

func (s *Scheduler) scheduleSingle(ctx context.Context, task StructuredTask, policy WorkPolicy, force bool) Result {
	loc := policy.Location()

	// Exact-time path: both an end anchor and a start anchor were given.
	if task.Deadline != "" && task.PreferredTime != "" {
		if end, ok := ParseTimestamp(task.Deadline, loc); ok {
			start, ok := ParseTimestamp(task.PreferredTime, loc)
			if !ok {
				// A bare clock time borrows the deadline's date.
				if c, okc := ParseClock(task.PreferredTime); okc {
					start, ok = c.On(end), true
				}
			}
			if ok {
				if !end.After(start) {
					return Result{Status: StatusFailed, Reason: ReasonUnparsableTime}
				}
				s.log.Debug("exact-time path",
					logx.Time("start", start), logx.Time("end", end), logx.String("title", task.Title))
				return s.commit(ctx, task, start, end, force)
			}
		}
		// Anchors did not parse as an exact interval; fall through to search.
	}

	now := s.now().In(loc)
	start, end, res := s.searchSlot(ctx, task, policy, now, s.searchEnd(task, loc, now), task.Priority)
	if res != nil {
		return *res
	}
	return s.commit(ctx, task, start, end, force)
}

// searchEnd computes the end of the search window: the deadline when it
// parses to a future timestamp, otherwise now + 7 days.
func (s *Scheduler) searchEnd(task StructuredTask, loc *time.Location, now time.Time) time.Time {
	if task.Deadline != "" {
		if dl, ok := ParseTimestamp(task.Deadline, loc); ok && dl.After(now) {
			return dl
		}
	}
	return now.AddDate(0, 0, defaultSearchDays)
}

// searchSlot runs the availability + slot-selection steps over the window.
// On failure it returns a terminal Result; otherwise the chosen interval.
func (s *Scheduler) searchSlot(ctx context.Context, task StructuredTask, policy WorkPolicy, windowStart, windowEnd time.Time, prio Priority) (time.Time, time.Time, *Result) {
	intervals := ComputeFreeIntervals(windowStart, windowEnd, policy)

	slot, ok := SelectSlot(intervals, task.DurationMinutes, task.PreferredTime, prio)
	if !ok {
		alts := intervals
		if len(alts) > maxAlternatives {
			alts = alts[:maxAlternatives]
		}
		s.log.Debug("no slot found",
			logx.String("title", task.Title), logx.Int("duration_min", task.DurationMinutes))
		return time.Time{}, time.Time{}, &Result{
			Status:       StatusFailed,
			Reason:       ReasonNoSlotFound,
			Alternatives: alts,
		}
	}

	start := slot.Start
	return start, start.Add(time.Duration(task.DurationMinutes) * time.Minute), nil
}

// commit is the single conflict gate plus store write. force bypasses the
// gate; nothing else does.
func (s *Scheduler) commit(ctx context.Context, task StructuredTask, start, end time.Time, force bool) Result {
	if !force {
		dayStart := midnight(start)
		existing, err := s.store.ListEvents(ctx, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return storeFailure(fmt.Errorf("list events: %w", err))
		}
		if conflicts := FindConflicts(start, end, existing); len(conflicts) > 0 {
			s.log.Info("conflict detected",
				logx.String("title", task.Title),
				logx.Time("start", start),
				logx.Int("conflicts", len(conflicts)))
			return Result{
				Status:    StatusConflict,
				Proposed:  &Proposal{Title: task.Title, Start: start, End: end},
				Conflicts: conflicts,
			}
		}
	}

	ev, err := s.store.CreateEvent(ctx, task.Title, start, end, describe(task))
	if err != nil {
		return storeFailure(fmt.Errorf("create event: %w", err))
	}
	s.log.Info("event scheduled",
		logx.String("event_id", ev.ID), logx.String("title", ev.Title), logx.Time("start", ev.Start))
	return Result{Status: StatusScheduled, Event: &ev}
}

func (s *Scheduler) scheduleRecurring(ctx context.Context, task StructuredTask, policy WorkPolicy, force bool) Result {
	loc := policy.Location()
	now := s.now().In(loc)

	dates := ExpandOccurrences(now, task.RecurrencePattern, task.Occurrences)

	var created []calendar.Event
	for _, date := range dates {
		day := midnight(date.In(loc))
		dayStart := policy.WorkStart.On(day)
		dayEnd := policy.WorkEnd.On(day)

		// Occurrence slots are placed with medium priority; the preference
		// still steers them toward the requested time of day.
		start, end, fail := s.searchSlot(ctx, task, policy, dayStart, dayEnd, PriorityMedium)
		if fail != nil {
			continue // day has no capacity; skip, don't abort the series
		}

		res := s.commit(ctx, task, start, end, force)
		switch res.Status {
		case StatusScheduled:
			created = append(created, *res.Event)
		case StatusConflict:
			s.log.Debug("occurrence skipped (conflict)",
				logx.String("title", task.Title), logx.Time("date", day))
		case StatusFailed:
			if res.Reason == ReasonStoreError {
				return res
			}
		}
	}

	if len(created) == 0 {
		return Result{Status: StatusFailed, Reason: ReasonRecurrenceExhausted}
	}
	s.log.Info("recurring task scheduled",
		logx.String("title", task.Title),
		logx.Int("scheduled", len(created)),
		logx.Int("requested", task.Occurrences))
	return Result{Status: StatusScheduledMany, Events: created}
}

func storeFailure(err error) Result {
	return Result{Status: StatusFailed, Reason: ReasonStoreError, Err: err}
}

func describe(task StructuredTask) string {
	if task.Recurring {
		return fmt.Sprintf("Recurring task (%s)\nScheduled by calbot", task.RecurrencePattern)
	}
	return fmt.Sprintf("Priority: %s\nScheduled by calbot", task.Priority)
}
