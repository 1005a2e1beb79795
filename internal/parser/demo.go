package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"calbot/internal/schedule"
)

// Demo is the keyword fallback used without an API key. It understands the
// common phrasings well enough for a trial run; anything it can't read still
// becomes a schedulable one-hour task.
type Demo struct{}

func NewDemo() *Demo { return &Demo{} }

var (
	reHours   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)
	reMinutes = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?|m)\b`)
	reForDays = regexp.MustCompile(`for\s+(?:the\s+)?(?:next\s+)?(\d+)\s+days?`)
	reWeeks   = regexp.MustCompile(`for\s+(\d+)\s+weeks?`)
	reTimes   = regexp.MustCompile(`(?:at|by)\s+(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)
)

var dayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d *Demo) Parse(ctx context.Context, text string, now time.Time) (Outcome, error) {
	lower := strings.ToLower(text)

	task := schedule.StructuredTask{
		Title:           titleFrom(text),
		DurationMinutes: 60,
		Priority:        schedule.PriorityMedium,
	}

	if m := reHours.FindStringSubmatch(lower); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil && f > 0 {
			task.DurationMinutes = int(f * 60)
		}
	} else if m := reMinutes.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			task.DurationMinutes = n
		}
	}

	switch {
	case strings.Contains(lower, "urgent"), strings.Contains(lower, "important"),
		strings.Contains(lower, "high priority"), strings.Contains(lower, "asap"):
		task.Priority = schedule.PriorityHigh
	case strings.Contains(lower, "low priority"), strings.Contains(lower, "whenever"),
		strings.Contains(lower, "no rush"):
		task.Priority = schedule.PriorityLow
	}

	switch {
	case strings.Contains(lower, "morning"):
		task.PreferredTime = "morning"
	case strings.Contains(lower, "afternoon"):
		task.PreferredTime = "afternoon"
	case strings.Contains(lower, "evening"), strings.Contains(lower, "tonight"):
		task.PreferredTime = "evening"
	default:
		if m := reTimes.FindStringSubmatch(lower); m != nil {
			task.PreferredTime = strings.TrimSpace(m[1])
		}
	}

	if strings.Contains(lower, "every day") || strings.Contains(lower, "daily") {
		task.Recurring = true
		task.RecurrencePattern = "daily"
		task.Occurrences = 7
	} else if strings.Contains(lower, "every weekday") {
		task.Recurring = true
		task.RecurrencePattern = "weekdays"
		task.Occurrences = 5
	} else {
		for _, day := range dayNames {
			if strings.Contains(lower, "every "+day) {
				task.Recurring = true
				task.RecurrencePattern = "weekly_" + day
				task.Occurrences = 4
				break
			}
		}
	}
	if task.Recurring {
		if m := reForDays.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				task.Occurrences = n
			}
		} else if m := reWeeks.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				if task.RecurrencePattern == "weekdays" {
					task.Occurrences = n * 5
				} else if strings.HasPrefix(task.RecurrencePattern, "weekly_") {
					task.Occurrences = n
				} else {
					task.Occurrences = n * 7
				}
			}
		}
	}

	return Outcome{
		Action:     "schedule",
		Tasks:      []schedule.StructuredTask{task},
		Confidence: 0.5,
	}, nil
}

// titleFrom trims scheduling phrasing off the front and duration/recurrence
// phrasing off the back, keeping whatever names the activity.
func titleFrom(text string) string {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	for _, prefix := range []string{"schedule ", "plan ", "book ", "add ", "i need to ", "i want to ", "remind me to "} {
		if strings.HasPrefix(lower, prefix) {
			t = t[len(prefix):]
			break
		}
	}
	for _, marker := range []string{" for ", " every ", " at ", " by ", " tomorrow", " next ", " tonight"} {
		if i := strings.Index(strings.ToLower(t), marker); i > 0 {
			t = t[:i]
		}
	}
	t = strings.TrimSpace(t)
	if t == "" {
		return "Task"
	}
	return t
}
