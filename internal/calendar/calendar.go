// Package calendar defines the calendar event model and the store contract the
// scheduling engine talks to.
//
// A Store is scoped to a single user's calendar. Implementations must tolerate
// being asked for ranges with no events (empty slice, not an error).
package calendar

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calendar: event not found")

// Event is one busy interval on a user's calendar. The scheduler only reads
// events and requests creation/deletion; it never mutates one in place.
type Event struct {
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	Description string
}

// Store is the calendar read/write API the scheduler consumes.
type Store interface {
	// ListEvents returns events overlapping [start, end), ordered by start time.
	ListEvents(ctx context.Context, start, end time.Time) ([]Event, error)
	// CreateEvent persists a new event and returns it with its assigned ID.
	CreateEvent(ctx context.Context, title string, start, end time.Time, description string) (Event, error)
	// DeleteEvent removes an event. Returns ErrNotFound for unknown IDs.
	DeleteEvent(ctx context.Context, id string) error
}

// Overlaps reports whether the event intersects the half-open interval
// [start, end). Touching endpoints do not overlap.
func (e Event) Overlaps(start, end time.Time) bool {
	return start.Before(e.End) && e.Start.Before(end)
}
