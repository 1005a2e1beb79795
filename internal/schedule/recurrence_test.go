package schedule

import (
	"testing"
	"time"
)

func TestExpandOccurrencesDaily(t *testing.T) {
	t.Parallel()

	start := at(mon, 10, 0)
	got := ExpandOccurrences(start, "daily", 5)
	if len(got) != 5 {
		t.Fatalf("got %d occurrences, want 5", len(got))
	}
	for i, d := range got {
		want := start.AddDate(0, 0, i)
		if !d.Equal(want) {
			t.Fatalf("occurrence %d = %v, want %v", i, d, want)
		}
	}
}

func TestExpandOccurrencesWeekdays(t *testing.T) {
	t.Parallel()

	fri := mon.AddDate(0, 0, 4)
	got := ExpandOccurrences(at(fri, 9, 0), "weekdays", 3)
	if len(got) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(got))
	}

	// Friday itself, then the weekend is skipped.
	want := []time.Time{at(fri, 9, 0), at(fri.AddDate(0, 0, 3), 9, 0), at(fri.AddDate(0, 0, 4), 9, 0)}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
	}
	for _, d := range got {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekdays pattern produced %v (%v)", d, wd)
		}
	}
}

func TestExpandOccurrencesWeeklyNeverSameDay(t *testing.T) {
	t.Parallel()

	// Starting on a Monday, weekly_monday begins next week.
	start := at(mon, 14, 0)
	got := ExpandOccurrences(start, "weekly_monday", 3)
	if len(got) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(got))
	}
	for i, d := range got {
		want := start.AddDate(0, 0, 7*(i+1))
		if !d.Equal(want) {
			t.Fatalf("occurrence %d = %v, want %v", i, d, want)
		}
	}
}

func TestExpandOccurrencesWeeklyFromOtherDay(t *testing.T) {
	t.Parallel()

	// Starting Wednesday, weekly_friday lands on the Friday of the same week.
	wed := mon.AddDate(0, 0, 2)
	got := ExpandOccurrences(at(wed, 9, 0), "weekly_friday", 2)
	if len(got) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(got))
	}
	if got[0].Weekday() != time.Friday || !got[0].Equal(at(mon.AddDate(0, 0, 4), 9, 0)) {
		t.Fatalf("first occurrence = %v, want the coming Friday", got[0])
	}
	if !got[1].Equal(got[0].AddDate(0, 0, 7)) {
		t.Fatalf("second occurrence = %v, want one week after the first", got[1])
	}
}

func TestExpandOccurrencesUnknownInputs(t *testing.T) {
	t.Parallel()

	start := at(mon, 10, 0)

	// Unrecognized pattern degrades to daily.
	got := ExpandOccurrences(start, "fortnightly", 3)
	if len(got) != 3 || !got[1].Equal(start.AddDate(0, 0, 1)) {
		t.Fatalf("unknown pattern did not fall back to daily: %v", got)
	}

	// Unrecognized weekly dayname degrades to Monday.
	got = ExpandOccurrences(start, "weekly_someday", 1)
	if len(got) != 1 || got[0].Weekday() != time.Monday {
		t.Fatalf("unknown dayname did not fall back to Monday: %v", got)
	}

	if got := ExpandOccurrences(start, "daily", 0); got != nil {
		t.Fatalf("count 0 produced occurrences: %v", got)
	}
}

func TestExpandOccurrencesStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"daily", "weekdays", "weekly_thursday"} {
		got := ExpandOccurrences(at(mon, 9, 0), pattern, 6)
		for i := 1; i < len(got); i++ {
			if !got[i].After(got[i-1]) {
				t.Fatalf("%s: occurrences not strictly increasing: %v then %v",
					pattern, got[i-1], got[i])
			}
		}
	}
}
