package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDurationMinutes = 30
	// MaxDurationMinutes caps a slot or booking at one day.
	MaxDurationMinutes = 24 * 60
	MaxMessageLength   = 1000
)

// Slot is a bookable window published for a doctor.
type Slot struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        string    `json:"doctorId"`
	StartAt         time.Time `json:"startAt"`
	DurationMinutes int       `json:"durationMinutes"`
	Booked          bool      `json:"booked"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (s *Slot) EndAt() time.Time {
	return s.StartAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Booking is a confirmed appointment. SlotID is set when the booking consumed
// a published slot and nil for free-form bookings.
type Booking struct {
	ID              uuid.UUID  `json:"id"`
	UserID          string     `json:"userId"`
	DoctorID        *string    `json:"doctorId,omitempty"`
	SlotID          *uuid.UUID `json:"slotId,omitempty"`
	StartAt         time.Time  `json:"startAt"`
	DurationMinutes int        `json:"durationMinutes"`
	Phone           *string    `json:"phone,omitempty"`
	Message         *string    `json:"message,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (b *Booking) EndAt() time.Time {
	return b.StartAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Contact holds the optional details a requester attaches to a booking.
type Contact struct {
	Phone   string
	Message string
}
