package scheduling

import "errors"

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidDuration   = errors.New("duration must be between 1 and 1440 minutes")
	ErrMessageTooLong    = errors.New("message exceeds 1000 characters")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrSlotAlreadyBooked = errors.New("slot already booked")
	ErrSlotConflict      = errors.New("requested time conflicts with an existing booking")
	ErrSlotInUse         = errors.New("slot is booked and cannot be deleted")
	ErrStoreUnavailable  = errors.New("store unavailable")
)
