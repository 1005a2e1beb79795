package schedule

import (
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are the accepted explicit timestamp forms, tried in order.
// Naive layouts (no zone) are interpreted in the supplied location.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp tolerantly parses an explicit timestamp string. The second
// return is false when no layout matches; callers fall back to the search
// path rather than erroring.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range timestampLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, s); err == nil {
				return t.In(loc), true
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseClock tolerantly parses a human clock time: "13:00", "1pm", "1:30pm",
// "13". The second return is false for anything else (including time-of-day
// words like "morning", which are handled by the slot selector instead).
func ParseClock(s string) (Clock, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Clock{}, false
	}

	isPM := strings.Contains(s, "pm")
	isAM := strings.Contains(s, "am")
	s = strings.TrimSpace(strings.NewReplacer("am", "", "pm", "").Replace(s))

	var hour, minute int
	if h, m, ok := strings.Cut(s, ":"); ok {
		hv, err := strconv.Atoi(strings.TrimSpace(h))
		if err != nil {
			return Clock{}, false
		}
		mv, err := strconv.Atoi(strings.TrimSpace(m))
		if err != nil {
			return Clock{}, false
		}
		hour, minute = hv, mv
	} else {
		hv, err := strconv.Atoi(s)
		if err != nil {
			return Clock{}, false
		}
		hour = hv
	}

	if isPM && hour < 12 {
		hour += 12
	} else if isAM && hour == 12 {
		hour = 0
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute}, true
}
