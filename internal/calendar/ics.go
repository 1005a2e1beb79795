package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"
)

// ExportICS serializes events into an iCalendar feed so a user's schedule can
// be subscribed to from a regular calendar client.
func ExportICS(name string, events []Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//calbot//calendar//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now)
		ve.SetStartAt(e.Start)
		ve.SetEndAt(e.End)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
	}

	return cal.Serialize()
}
