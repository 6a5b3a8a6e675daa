package availability

import (
	"errors"
	"sort"
	"time"

	"laundry/pkg/model"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotOccupied  SlotStatus = "occupied"
)

var ErrInvalidDuration = errors.New("duration must be a positive number of hours")

// Overlaps reports whether [start1, end1) and [start2, end2) share any instant.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

func covers(r *model.Reservation, instant time.Time) bool {
	return !instant.Before(r.StartTime) && instant.Before(r.EndTime)
}

// SlotStatusAt reports whether instant falls inside any of the reservations.
func SlotStatusAt(instant time.Time, active []*model.Reservation) SlotStatus {
	if CurrentReservation(instant, active) != nil {
		return SlotOccupied
	}
	return SlotAvailable
}

// CurrentReservation returns the reservation covering instant, or nil.
func CurrentReservation(instant time.Time, active []*model.Reservation) *model.Reservation {
	for _, r := range active {
		if covers(r, instant) {
			return r
		}
	}
	return nil
}

// HasConflict reports whether [start, end) overlaps any of the reservations.
func HasConflict(start, end time.Time, active []*model.Reservation) bool {
	_, found := FindConflict(start, end, active)
	return found
}

// FindConflict returns the earliest-starting reservation overlapping [start, end).
func FindConflict(start, end time.Time, active []*model.Reservation) (*model.Reservation, bool) {
	var first *model.Reservation
	for _, r := range active {
		if !Overlaps(start, end, r.StartTime, r.EndTime) {
			continue
		}
		if first == nil || r.StartTime.Before(first.StartTime) {
			first = r
		}
	}
	return first, first != nil
}

// EndFor computes the end of a booking of the given number of hours.
func EndFor(start time.Time, hours int) (time.Time, error) {
	if hours <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	return start.Add(time.Duration(hours) * time.Hour), nil
}

// DayBounds returns the local midnight starting day and the midnight after it.
func DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

// ReservationsForDay returns the reservations starting on the calendar day of day,
// ascending by start time. The returned slice is newly allocated.
func ReservationsForDay(day time.Time, active []*model.Reservation) []*model.Reservation {
	dayStart, nextDay := DayBounds(day)

	result := make([]*model.Reservation, 0)
	for _, r := range active {
		if !r.StartTime.Before(dayStart) && r.StartTime.Before(nextDay) {
			result = append(result, r)
		}
	}
	sortByStart(result)
	return result
}

func sortByStart(reservations []*model.Reservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
}

// DaySchedule is the set of reservations starting on one local day.
type DaySchedule struct {
	Date         string               `json:"date"`
	Reservations []*model.Reservation `json:"reservations"`
}

// GroupByDay splits reservations into consecutive local days beginning with from.
func GroupByDay(from time.Time, days int, active []*model.Reservation) []DaySchedule {
	if days <= 0 {
		return []DaySchedule{}
	}
	first, _ := DayBounds(from)
	y, m, d := first.Date()

	schedule := make([]DaySchedule, 0, days)
	for i := 0; i < days; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, first.Location())
		schedule = append(schedule, DaySchedule{
			Date:         day.Format(time.DateOnly),
			Reservations: ReservationsForDay(day, active),
		})
	}
	return schedule
}

// DerivedStatus is the status shown to residents: an ACTIVE reservation whose window
// has passed reads as COMPLETED. Stored status is never changed by this.
func DerivedStatus(r *model.Reservation, now time.Time) string {
	if r.Status == model.ReservationActive && !now.Before(r.EndTime) {
		return model.ReservationCompleted
	}
	return r.Status
}

// View wraps reservations with their derived status.
func View(reservations []*model.Reservation, now time.Time) []model.ReservationView {
	views := make([]model.ReservationView, 0, len(reservations))
	for _, r := range reservations {
		views = append(views, model.ReservationView{
			Reservation:   r,
			DisplayStatus: DerivedStatus(r, now),
		})
	}
	return views
}
