package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func bookingAt(start time.Time, minutes int) *Booking {
	return &Booking{ID: uuid.New(), StartAt: start, DurationMinutes: minutes}
}

func TestConflictWindow(t *testing.T) {
	start := time.Date(2025, 11, 4, 9, 25, 0, 0, time.UTC)
	from, to := ConflictWindow(start, 30)
	if want := time.Date(2025, 11, 4, 8, 56, 0, 0, time.UTC); !from.Equal(want) {
		t.Errorf("from = %s, want %s", from, want)
	}
	if want := time.Date(2025, 11, 4, 9, 55, 0, 0, time.UTC); !to.Equal(want) {
		t.Errorf("to = %s, want %s", to, want)
	}
}

func TestHasConflict(t *testing.T) {
	nine := time.Date(2025, 11, 4, 9, 0, 0, 0, time.UTC)
	existing := []*Booking{bookingAt(nine, 30)}

	tests := []struct {
		name     string
		start    time.Time
		duration int
		want     bool
	}{
		{"same start", nine, 30, true},
		{"25 minutes later", nine.Add(25 * time.Minute), 30, true},
		{"29 minutes later is on the boundary", nine.Add(29 * time.Minute), 30, true},
		{"30 minutes later", nine.Add(30 * time.Minute), 30, false},
		{"ends exactly at existing start", nine.Add(-30 * time.Minute), 30, true},
		{"ends before existing start", nine.Add(-31 * time.Minute), 30, false},
		{"long candidate earlier", nine.Add(-2 * time.Hour), 120, true},
		{"40 minutes later", nine.Add(40 * time.Minute), 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasConflict(existing, tt.start, tt.duration, nil); got != tt.want {
				t.Errorf("HasConflict(%s, %d) = %v, want %v", tt.start.Format(time.Kitchen), tt.duration, got, tt.want)
			}
		})
	}
}

func TestHasConflict_Exclude(t *testing.T) {
	nine := time.Date(2025, 11, 4, 9, 0, 0, 0, time.UTC)
	b := bookingAt(nine, 30)

	if HasConflict([]*Booking{b}, nine, 30, &b.ID) {
		t.Error("expected excluded booking to be ignored")
	}
	other := uuid.New()
	if !HasConflict([]*Booking{b}, nine, 30, &other) {
		t.Error("expected conflict when a different id is excluded")
	}
	// The lookback ignores how long the earlier booking runs.
	long := bookingAt(nine, 120)
	if HasConflict([]*Booking{long}, nine.Add(40*time.Minute), 10, nil) {
		t.Error("expected no conflict 40 minutes into a long booking")
	}
	if HasConflict(nil, nine, 30, nil) {
		t.Error("expected no conflict with no bookings")
	}
}
