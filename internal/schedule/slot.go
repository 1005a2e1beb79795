package schedule

import (
	"time"
)

// Time-of-day buckets used by the advisory preference filter.
const (
	morningStartHour   = 6
	afternoonStartHour = 12
	eveningStartHour   = 17
	eveningEndHour     = 21
)

// SelectSlot picks exactly one interval long enough for the task, or reports
// none. The time-of-day preference is advisory: if no qualifying interval
// matches it, selection falls back to the full duration-qualified list.
// Priority breaks ties: high takes the earliest interval, low the latest,
// medium the middle one.
func SelectSlot(intervals []FreeInterval, durationMinutes int, preferred string, prio Priority) (FreeInterval, bool) {
	need := time.Duration(durationMinutes) * time.Minute

	suitable := make([]FreeInterval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Span() >= need {
			suitable = append(suitable, iv)
		}
	}
	if len(suitable) == 0 {
		return FreeInterval{}, false
	}

	if matched := filterByTimeOfDay(suitable, preferred); len(matched) > 0 {
		suitable = matched
	}

	switch prio {
	case PriorityHigh:
		return suitable[0], true
	case PriorityLow:
		return suitable[len(suitable)-1], true
	default:
		return suitable[len(suitable)/2], true
	}
}

func filterByTimeOfDay(intervals []FreeInterval, preferred string) []FreeInterval {
	var lo, hi int
	switch preferred {
	case "morning":
		lo, hi = morningStartHour, afternoonStartHour
	case "afternoon":
		lo, hi = afternoonStartHour, eveningStartHour
	case "evening":
		lo, hi = eveningStartHour, eveningEndHour
	default:
		return nil
	}

	var out []FreeInterval
	for _, iv := range intervals {
		if h := iv.Start.Hour(); h >= lo && h < hi {
			out = append(out, iv)
		}
	}
	return out
}
