package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// ConflictLookback is how far before a candidate start an existing booking
// may begin and still count as a conflict.
const ConflictLookback = 29 * time.Minute

// ConflictWindow returns the inclusive range of start times that collide with
// a booking at start lasting durationMinutes. The range is asymmetric:
// bookings that start up to 29 minutes earlier conflict regardless of their
// own length, and nothing that starts after the candidate ends does.
func ConflictWindow(start time.Time, durationMinutes int) (from, to time.Time) {
	return start.Add(-ConflictLookback), start.Add(time.Duration(durationMinutes) * time.Minute)
}

// HasConflict reports whether any booking in existing starts inside the
// conflict window, ignoring the booking identified by exclude.
func HasConflict(existing []*Booking, start time.Time, durationMinutes int, exclude *uuid.UUID) bool {
	from, to := ConflictWindow(start, durationMinutes)
	for _, b := range existing {
		if exclude != nil && b.ID == *exclude {
			continue
		}
		if !b.StartAt.Before(from) && !b.StartAt.After(to) {
			return true
		}
	}
	return false
}
