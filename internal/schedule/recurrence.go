package schedule

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var weekdayByName = map[string]rrule.Weekday{
	"monday":    rrule.MO,
	"tuesday":   rrule.TU,
	"wednesday": rrule.WE,
	"thursday":  rrule.TH,
	"friday":    rrule.FR,
	"saturday":  rrule.SA,
	"sunday":    rrule.SU,
}

// ExpandOccurrences turns a recurrence pattern into the ordered, strictly
// increasing sequence of occurrence datetimes, one per occurrence. Pure
// function, no I/O.
//
// Patterns:
//   - "daily": start, start+1d, ... (count total)
//   - "weekdays": Monday-Friday only, the start date itself eligible
//   - "weekly_<dayname>": the next <dayname> strictly after start, then every
//     7 days; a weekly pattern never schedules same-day
//   - anything else falls back to daily (defensive default, not an error)
func ExpandOccurrences(start time.Time, pattern string, count int) []time.Time {
	if count < 1 {
		return nil
	}

	pattern = strings.ToLower(strings.TrimSpace(pattern))
	opt := rrule.ROption{Freq: rrule.DAILY, Count: count, Dtstart: start}

	switch {
	case pattern == "weekdays":
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	case strings.HasPrefix(pattern, "weekly_"):
		day, ok := weekdayByName[strings.TrimPrefix(pattern, "weekly_")]
		if !ok {
			day = rrule.MO
		}
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{day}
		// Anchor one day after start so a weekly pattern starting on its own
		// weekday rolls over to next week instead of scheduling same-day.
		opt.Dtstart = start.AddDate(0, 0, 1)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return dailySequence(start, count)
	}
	return r.All()
}

func dailySequence(start time.Time, count int) []time.Time {
	out := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}
