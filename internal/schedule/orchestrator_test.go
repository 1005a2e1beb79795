package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"calbot/internal/calendar"
	logx "calbot/pkg/logx"
)

func newTestScheduler(store calendar.Store, now time.Time) *Scheduler {
	s := New(store, logx.Nop())
	s.now = func() time.Time { return now }
	return s
}

func TestScheduleExactInterval(t *testing.T) {
	t.Parallel()

	store := calendar.NewMemoryStore()
	s := newTestScheduler(store, at(mon, 8, 0))

	res := s.Schedule(context.Background(), StructuredTask{
		Title:         "dentist",
		Deadline:      "2025-01-07T11:00",
		PreferredTime: "2025-01-07T10:00",
	}, DefaultPolicy(""), false)

	if res.Status != StatusScheduled {
		t.Fatalf("status = %v, want Scheduled", res.Status)
	}
	tue := mon.AddDate(0, 0, 1)
	if !res.Event.Start.Equal(at(tue, 10, 0)) || !res.Event.End.Equal(at(tue, 11, 0)) {
		t.Fatalf("event [%v, %v), want Tue 10:00-11:00", res.Event.Start, res.Event.End)
	}
}

func TestScheduleExactIntervalClockPreference(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(calendar.NewMemoryStore(), at(mon, 8, 0))

	// A bare clock preference borrows the deadline's date.
	res := s.Schedule(context.Background(), StructuredTask{
		Title:         "call",
		Deadline:      "2025-01-07T16:00",
		PreferredTime: "2pm",
	}, DefaultPolicy(""), false)

	if res.Status != StatusScheduled {
		t.Fatalf("status = %v, want Scheduled", res.Status)
	}
	tue := mon.AddDate(0, 0, 1)
	if !res.Event.Start.Equal(at(tue, 14, 0)) || !res.Event.End.Equal(at(tue, 16, 0)) {
		t.Fatalf("event [%v, %v), want Tue 14:00-16:00", res.Event.Start, res.Event.End)
	}
}

func TestScheduleRejectsInvertedInterval(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(calendar.NewMemoryStore(), at(mon, 8, 0))

	res := s.Schedule(context.Background(), StructuredTask{
		Title:         "broken",
		Deadline:      "2025-01-07T09:00",
		PreferredTime: "2025-01-07T10:00",
	}, DefaultPolicy(""), false)

	if res.Status != StatusFailed || res.Reason != ReasonUnparsableTime {
		t.Fatalf("got %v/%v, want Failed/unparsable_time", res.Status, res.Reason)
	}
}

func TestScheduleSearchPathHighPriority(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(calendar.NewMemoryStore(), at(mon, 8, 0))

	res := s.Schedule(context.Background(), StructuredTask{
		Title:    "report",
		Priority: PriorityHigh,
	}, DefaultPolicy(""), false)

	if res.Status != StatusScheduled {
		t.Fatalf("status = %v, want Scheduled", res.Status)
	}
	// High priority lands in the earliest window of the search range.
	if !res.Event.Start.Equal(at(mon, 9, 0)) || !res.Event.End.Equal(at(mon, 10, 0)) {
		t.Fatalf("event [%v, %v), want Mon 09:00-10:00", res.Event.Start, res.Event.End)
	}
}

func TestScheduleConflictGateAndForce(t *testing.T) {
	t.Parallel()

	store := calendar.NewMemoryStore()
	ctx := context.Background()
	if _, err := store.CreateEvent(ctx, "standup", at(mon, 9, 0), at(mon, 10, 0), ""); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	s := newTestScheduler(store, at(mon, 8, 0))

	task := StructuredTask{Title: "focus block", Priority: PriorityHigh}

	res := s.Schedule(ctx, task, DefaultPolicy(""), false)
	if res.Status != StatusConflict {
		t.Fatalf("status = %v, want Conflict", res.Status)
	}
	if res.Proposed == nil || !res.Proposed.Start.Equal(at(mon, 9, 0)) {
		t.Fatalf("proposal missing or wrong: %+v", res.Proposed)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Title != "standup" {
		t.Fatalf("conflicts = %v", res.Conflicts)
	}

	// Nothing was written.
	events, err := store.ListEvents(ctx, mon, mon.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("conflict result wrote to the store: %v", events)
	}

	// Confirmation replays with force and commits over the conflict.
	res = s.Schedule(ctx, task, DefaultPolicy(""), true)
	if res.Status != StatusScheduled {
		t.Fatalf("forced status = %v, want Scheduled", res.Status)
	}
	if !res.Event.Start.Equal(at(mon, 9, 0)) {
		t.Fatalf("forced start = %v, want Mon 09:00", res.Event.Start)
	}
}

func TestScheduleNoSlotFound(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(calendar.NewMemoryStore(), at(mon, 8, 0))

	// No window is 10 hours long.
	res := s.Schedule(context.Background(), StructuredTask{
		Title:           "marathon",
		DurationMinutes: 600,
	}, DefaultPolicy(""), false)

	if res.Status != StatusFailed || res.Reason != ReasonNoSlotFound {
		t.Fatalf("got %v/%v, want Failed/no_slot_found", res.Status, res.Reason)
	}
	if len(res.Alternatives) != 3 {
		t.Fatalf("got %d alternatives, want 3", len(res.Alternatives))
	}
	if !res.Alternatives[0].Start.Equal(at(mon, 9, 0)) {
		t.Fatalf("first alternative = %v, want Mon 09:00", res.Alternatives[0].Start)
	}
}

func TestScheduleRecurringSkipsBlockedDays(t *testing.T) {
	t.Parallel()

	store := calendar.NewMemoryStore()
	ctx := context.Background()
	tue := mon.AddDate(0, 0, 1)
	if _, err := store.CreateEvent(ctx, "offsite", at(tue, 9, 0), at(tue, 17, 0), ""); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	s := newTestScheduler(store, at(mon, 8, 0))

	res := s.Schedule(ctx, StructuredTask{
		Title:             "workout",
		DurationMinutes:   60,
		Recurring:         true,
		RecurrencePattern: "daily",
		Occurrences:       3,
	}, DefaultPolicy(""), false)

	if res.Status != StatusScheduledMany {
		t.Fatalf("status = %v, want ScheduledMany", res.Status)
	}
	// Mon and Wed succeed; Tue is fully booked and skipped.
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2: %v", len(res.Events), res.Events)
	}
	for _, ev := range res.Events {
		if ev.Start.Day() == tue.Day() {
			t.Fatalf("blocked day received an event: %v", ev)
		}
	}
}

func TestScheduleRecurringExhausted(t *testing.T) {
	t.Parallel()

	store := calendar.NewMemoryStore()
	ctx := context.Background()
	for d := 0; d < 3; d++ {
		day := mon.AddDate(0, 0, d)
		if _, err := store.CreateEvent(ctx, "busy", at(day, 9, 0), at(day, 17, 0), ""); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
	s := newTestScheduler(store, at(mon, 8, 0))

	res := s.Schedule(ctx, StructuredTask{
		Title:             "workout",
		Recurring:         true,
		RecurrencePattern: "daily",
		Occurrences:       3,
	}, DefaultPolicy(""), false)

	if res.Status != StatusFailed || res.Reason != ReasonRecurrenceExhausted {
		t.Fatalf("got %v/%v, want Failed/recurrence_exhausted", res.Status, res.Reason)
	}
}

type failingStore struct {
	calendar.Store
	createErr error
	listErr   error
}

func (f *failingStore) CreateEvent(ctx context.Context, title string, start, end time.Time, description string) (calendar.Event, error) {
	if f.createErr != nil {
		return calendar.Event{}, f.createErr
	}
	return f.Store.CreateEvent(ctx, title, start, end, description)
}

func (f *failingStore) ListEvents(ctx context.Context, start, end time.Time) ([]calendar.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListEvents(ctx, start, end)
}

func TestScheduleStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	store := &failingStore{Store: calendar.NewMemoryStore(), createErr: boom}
	s := newTestScheduler(store, at(mon, 8, 0))

	res := s.Schedule(context.Background(), StructuredTask{Title: "doomed"}, DefaultPolicy(""), false)
	if res.Status != StatusFailed || res.Reason != ReasonStoreError {
		t.Fatalf("got %v/%v, want Failed/store_error", res.Status, res.Reason)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("Err = %v, want wrapped %v", res.Err, boom)
	}

	// A store error inside a recurring series aborts it.
	res = s.Schedule(context.Background(), StructuredTask{
		Title: "doomed", Recurring: true, RecurrencePattern: "daily", Occurrences: 3,
	}, DefaultPolicy(""), false)
	if res.Status != StatusFailed || res.Reason != ReasonStoreError {
		t.Fatalf("recurring got %v/%v, want Failed/store_error", res.Status, res.Reason)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	store := calendar.NewMemoryStore()
	ctx := context.Background()
	ev, err := store.CreateEvent(ctx, "standup", at(mon, 9, 0), at(mon, 10, 0), "")
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	s := newTestScheduler(store, at(mon, 8, 0))

	ok, err := s.Cancel(ctx, ev.ID)
	if err != nil || !ok {
		t.Fatalf("cancel existing: ok=%v err=%v", ok, err)
	}
	ok, err = s.Cancel(ctx, ev.ID)
	if err != nil || ok {
		t.Fatalf("cancel missing: ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	got := normalize(StructuredTask{Title: "x", Recurring: true})
	if got.DurationMinutes != 60 || got.Priority != PriorityMedium ||
		got.RecurrencePattern != "daily" || got.Occurrences != 1 {
		t.Fatalf("normalize defaults wrong: %+v", got)
	}
}
