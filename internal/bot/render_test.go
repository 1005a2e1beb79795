package bot

import (
	"strings"
	"testing"
	"time"

	"calbot/internal/calendar"
	"calbot/internal/schedule"
)

func TestRenderResultScheduled(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)
	res := schedule.Result{
		Status: schedule.StatusScheduled,
		Event:  &calendar.Event{ID: "ev-1", Title: "dentist", Start: start, End: start.Add(time.Hour)},
	}
	got := renderResult(res, schedule.StructuredTask{Title: "dentist"}, time.UTC)

	for _, want := range []string{"dentist", "Monday, January 6", "2:00 PM", "3:00 PM", "ev-1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestRenderResultScheduledManyShortfall(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	res := schedule.Result{
		Status: schedule.StatusScheduledMany,
		Events: []calendar.Event{
			{ID: "a", Title: "gym", Start: day, End: day.Add(time.Hour)},
			{ID: "b", Title: "gym", Start: day.AddDate(0, 0, 1), End: day.AddDate(0, 0, 1).Add(time.Hour)},
		},
	}
	task := schedule.StructuredTask{Title: "gym", Recurring: true, Occurrences: 5}
	got := renderResult(res, task, time.UTC)

	if !strings.Contains(got, "2 time(s)") {
		t.Fatalf("missing count in %q", got)
	}
	if !strings.Contains(got, "3 of 5 requested occurrences didn't fit") {
		t.Fatalf("missing shortfall line in %q", got)
	}

	// No shortfall line when everything fit.
	task.Occurrences = 2
	if got := renderResult(res, task, time.UTC); strings.Contains(got, "didn't fit") {
		t.Fatalf("unexpected shortfall line in %q", got)
	}
}

func TestRenderFailure(t *testing.T) {
	t.Parallel()

	mon := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	task := schedule.StructuredTask{Title: "deep work", DurationMinutes: 240}

	res := schedule.Result{
		Status: schedule.StatusFailed,
		Reason: schedule.ReasonNoSlotFound,
		Alternatives: []schedule.FreeInterval{
			{Start: mon, End: mon.Add(3 * time.Hour)},
		},
	}
	got := renderResult(res, task, time.UTC)
	for _, want := range []string{"240-minute", "deep work", "Monday, January 6", "shorter duration"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}

	cases := []struct {
		reason schedule.FailReason
		want   string
	}{
		{schedule.ReasonUnparsableTime, "don't add up"},
		{schedule.ReasonRecurrenceExhausted, "None of the requested occurrences"},
		{schedule.ReasonStoreError, "saving to your calendar"},
	}
	for _, tc := range cases {
		got := renderResult(schedule.Result{Status: schedule.StatusFailed, Reason: tc.reason}, task, time.UTC)
		if !strings.Contains(got, tc.want) {
			t.Fatalf("%s: missing %q in %q", tc.reason, tc.want, got)
		}
	}
}

func TestRenderConflict(t *testing.T) {
	t.Parallel()

	mon9 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	res := schedule.Result{
		Status:   schedule.StatusConflict,
		Proposed: &schedule.Proposal{Title: "focus block", Start: mon9, End: mon9.Add(time.Hour)},
		Conflicts: []calendar.Event{
			{Title: "standup", Start: mon9, End: mon9.Add(30 * time.Minute)},
		},
	}
	got := renderConflict(res, time.UTC)
	for _, want := range []string{"focus block", "standup", "9:00 AM", "anyway?"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestRenderAgenda(t *testing.T) {
	t.Parallel()

	mon := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	if got := renderAgenda(mon, 1, nil, time.UTC); !strings.Contains(got, "today") {
		t.Fatalf("empty day = %q", got)
	}
	if got := renderAgenda(mon, 7, nil, time.UTC); !strings.Contains(got, "7 days") {
		t.Fatalf("empty week = %q", got)
	}

	events := []calendar.Event{
		{ID: "a", Title: "standup", Start: mon.Add(9 * time.Hour), End: mon.Add(10 * time.Hour)},
		{ID: "b", Title: "review", Start: mon.AddDate(0, 0, 1).Add(14 * time.Hour), End: mon.AddDate(0, 0, 1).Add(15 * time.Hour)},
	}

	day := renderAgenda(mon, 1, events[:1], time.UTC)
	for _, want := range []string{"Monday, January 6", "standup", "id:"} {
		if !strings.Contains(day, want) {
			t.Fatalf("missing %q in %q", want, day)
		}
	}

	// Multi-day view groups by day header.
	week := renderAgenda(mon, 7, events, time.UTC)
	for _, want := range []string{"Monday, January 6", "Tuesday, January 7", "standup", "review"} {
		if !strings.Contains(week, want) {
			t.Fatalf("missing %q in %q", want, week)
		}
	}
	if strings.Index(week, "standup") > strings.Index(week, "review") {
		t.Fatalf("events out of day order: %q", week)
	}
}
