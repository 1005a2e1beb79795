package bot

import (
	"fmt"
	"strings"
	"time"

	"calbot/internal/calendar"
	"calbot/internal/schedule"
	"calbot/pkg/tgui"
)

func helpText() string {
	return strings.Join([]string{
		"Hi! Tell me what you need to do and I'll find time for it.",
		"",
		"Try things like:",
		"• \"dentist appointment tomorrow at 2pm\"",
		"• \"2 hours of focused writing, high priority\"",
		"• \"gym every day for the next 10 days\"",
		"",
		"Commands:",
		"/today — today's agenda",
		"/week — the next 7 days",
		"/cancel &lt;id&gt; — cancel an event",
		"/export — download your calendar as .ics",
		"/workhours 09:00-17:00 — set your work hours",
		"/timezone Europe/Berlin — set your timezone",
		"/settings — show your scheduling settings",
	}, "\n")
}

func formatWhen(t time.Time) string {
	return t.Format("Monday, January 2 at 3:04 PM")
}

func formatSpan(start, end time.Time) string {
	return fmt.Sprintf("%s–%s", start.Format("3:04 PM"), end.Format("3:04 PM"))
}

// renderResult turns an engine outcome into the user-facing reply. Conflict
// results are rendered by renderConflict instead, next to the keyboard.
func renderResult(res schedule.Result, task schedule.StructuredTask, loc *time.Location) string {
	switch res.Status {
	case schedule.StatusScheduled:
		ev := res.Event
		return fmt.Sprintf("✅ Scheduled %s for %s (%s).\nid: %s",
			tgui.B(ev.Title), formatWhen(ev.Start.In(loc)),
			formatSpan(ev.Start.In(loc), ev.End.In(loc)), tgui.Code(ev.ID))

	case schedule.StatusScheduledMany:
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Scheduled %s %d time(s):\n", tgui.B(task.Title), len(res.Events))
		for _, ev := range res.Events {
			fmt.Fprintf(&b, "• %s\n", formatWhen(ev.Start.In(loc)))
		}
		if task.Occurrences > len(res.Events) {
			fmt.Fprintf(&b, "%d of %d requested occurrences didn't fit and were skipped.",
				task.Occurrences-len(res.Events), task.Occurrences)
		}
		return strings.TrimRight(b.String(), "\n")

	case schedule.StatusFailed:
		return renderFailure(res, task, loc)
	}
	return "Something unexpected happened. Please try again."
}

func renderFailure(res schedule.Result, task schedule.StructuredTask, loc *time.Location) string {
	switch res.Reason {
	case schedule.ReasonNoSlotFound:
		var b strings.Builder
		fmt.Fprintf(&b, "😕 I couldn't find a free %d-minute slot for %s.", task.DurationMinutes, tgui.B(task.Title))
		if len(res.Alternatives) > 0 {
			b.WriteString("\nThe nearest open windows are:\n")
			for _, iv := range res.Alternatives {
				fmt.Fprintf(&b, "• %s, %s\n",
					iv.Start.In(loc).Format("Monday, January 2"),
					formatSpan(iv.Start.In(loc), iv.End.In(loc)))
			}
			b.WriteString("A shorter duration might fit.")
		}
		return strings.TrimRight(b.String(), "\n")

	case schedule.ReasonUnparsableTime:
		return fmt.Sprintf("🤔 The times for %s don't add up (the end isn't after the start). Could you restate them?", tgui.B(task.Title))

	case schedule.ReasonRecurrenceExhausted:
		return fmt.Sprintf("😕 None of the requested occurrences of %s fit into your calendar.", tgui.B(task.Title))

	case schedule.ReasonStoreError:
		return "⚠️ I hit a problem saving to your calendar. Please try again in a moment."
	}
	return "Something unexpected happened. Please try again."
}

// renderConflict is the confirmation prompt shown with the yes/no keyboard.
func renderConflict(res schedule.Result, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s at %s would overlap with:\n",
		tgui.B(res.Proposed.Title), formatWhen(res.Proposed.Start.In(loc)))
	for _, ev := range res.Conflicts {
		fmt.Fprintf(&b, "• %s (%s)\n", tgui.Esc(ev.Title), formatSpan(ev.Start.In(loc), ev.End.In(loc)))
	}
	b.WriteString("Schedule it anyway?")
	return b.String()
}

func renderAgenda(start time.Time, days int, events []calendar.Event, loc *time.Location) string {
	if len(events) == 0 {
		if days == 1 {
			return "Nothing on your calendar today. 🎉"
		}
		return fmt.Sprintf("Nothing on your calendar for the next %d days. 🎉", days)
	}

	var b strings.Builder
	if days == 1 {
		fmt.Fprintf(&b, "📅 %s:\n", start.Format("Monday, January 2"))
	} else {
		fmt.Fprintf(&b, "📅 %s – %s:\n",
			start.Format("January 2"), start.AddDate(0, 0, days-1).Format("January 2"))
	}

	var lastDay string
	for _, ev := range events {
		s := ev.Start.In(loc)
		if days > 1 {
			if day := s.Format("Monday, January 2"); day != lastDay {
				fmt.Fprintf(&b, "\n%s\n", tgui.B(day))
				lastDay = day
			}
		}
		fmt.Fprintf(&b, "• %s  %s\n  id: %s\n",
			formatSpan(s, ev.End.In(loc)), tgui.Esc(ev.Title), tgui.Code(ev.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}
