package booking

import (
	"errors"
	"fmt"
	"time"

	"laundry/pkg/availability"
	"laundry/pkg/model"
)

var (
	// ErrConflict rejects a request locally, before anything is sent to the store.
	ErrConflict = errors.New("requested time overlaps an existing reservation")

	// ErrSlotTaken means the window was free when first checked but was booked by
	// someone else before this request was confirmed.
	ErrSlotTaken = errors.New("time slot was just taken")

	ErrNotOffered = errors.New("start time is not an offered slot")

	ErrInvalidDuration = availability.ErrInvalidDuration

	ErrNotFound = errors.New("reservation not found")
)

// ConflictError carries the reservation that blocks a request, when it is known.
type ConflictError struct {
	Err      error
	Blocking *model.Reservation
}

func (e *ConflictError) Error() string {
	if e.Blocking == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (%s-%s, apartment %s)", e.Err,
		e.Blocking.StartTime.Format(time.Kitchen),
		e.Blocking.EndTime.Format(time.Kitchen),
		e.Blocking.ApartmentNumber,
	)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
