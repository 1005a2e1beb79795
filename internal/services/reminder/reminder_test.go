package reminder

import (
	"strings"
	"testing"
	"time"

	"calbot/internal/calendar"
)

func TestRenderAgenda(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	events := []calendar.Event{
		{Title: "standup", Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute)},
		{Title: "design review", Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)},
	}

	got := RenderAgenda(day, events, time.UTC)
	if !strings.Contains(got, "Monday, January 6") {
		t.Fatalf("missing date header: %q", got)
	}
	if !strings.Contains(got, "09:00–09:30  standup") {
		t.Fatalf("missing first event: %q", got)
	}
	if !strings.Contains(got, "14:00–15:00  design review") {
		t.Fatalf("missing second event: %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Fatalf("trailing newline: %q", got)
	}
}

func TestRenderAgendaTimezone(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, berlin)
	events := []calendar.Event{
		// Stored in UTC; 08:00Z is 09:00 in Berlin in January.
		{Title: "standup", Start: time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)},
	}

	got := RenderAgenda(day, events, berlin)
	if !strings.Contains(got, "09:00–10:00  standup") {
		t.Fatalf("timezone conversion wrong: %q", got)
	}
}
