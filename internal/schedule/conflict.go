package schedule

import (
	"sort"
	"time"

	"calbot/internal/calendar"
)

// FindConflicts returns every existing event overlapping the proposed
// half-open interval [start, end), ordered by event start time. Touching
// endpoints (an event ending exactly when the proposal starts, or vice versa)
// do not conflict.
func FindConflicts(start, end time.Time, existing []calendar.Event) []calendar.Event {
	var out []calendar.Event
	for _, ev := range existing {
		if ev.Overlaps(start, end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
