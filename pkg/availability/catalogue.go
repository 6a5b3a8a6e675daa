package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"laundry/pkg/model"
)

// TimeOfDay is a wall-clock start time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 || len(hh) > 2 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On places the time of day on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// Catalogue is the set of start times a building offers for booking.
type Catalogue struct {
	starts []TimeOfDay
}

func NewCatalogue(starts ...TimeOfDay) (*Catalogue, error) {
	if len(starts) == 0 {
		return nil, fmt.Errorf("slot catalogue cannot be empty")
	}

	seen := make(map[int]bool, len(starts))
	unique := make([]TimeOfDay, 0, len(starts))
	for _, s := range starts {
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return nil, fmt.Errorf("invalid slot start %d:%d", s.Hour, s.Minute)
		}
		if seen[s.minutes()] {
			continue
		}
		seen[s.minutes()] = true
		unique = append(unique, s)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].minutes() < unique[j].minutes() })

	return &Catalogue{starts: unique}, nil
}

// RangeCatalogue offers every step from first to last inclusive, e.g. 06:00..22:00 hourly.
func RangeCatalogue(first, last TimeOfDay, step time.Duration) (*Catalogue, error) {
	if step <= 0 || step%time.Minute != 0 {
		return nil, fmt.Errorf("slot interval must be a positive whole number of minutes, got %s", step)
	}
	if last.minutes() < first.minutes() {
		return nil, fmt.Errorf("last slot %s is before first slot %s", last, first)
	}

	stepMin := int(step / time.Minute)
	var starts []TimeOfDay
	for m := first.minutes(); m <= last.minutes(); m += stepMin {
		starts = append(starts, TimeOfDay{Hour: m / 60, Minute: m % 60})
	}
	return NewCatalogue(starts...)
}

// ParseCatalogue reads a comma separated list such as "07:00,09:00,19:30".
func ParseCatalogue(list string) (*Catalogue, error) {
	var starts []TimeOfDay
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseTimeOfDay(part)
		if err != nil {
			return nil, err
		}
		starts = append(starts, t)
	}
	return NewCatalogue(starts...)
}

func (c *Catalogue) Starts() []TimeOfDay {
	out := make([]TimeOfDay, len(c.starts))
	copy(out, c.starts)
	return out
}

func (c *Catalogue) String() string {
	parts := make([]string, 0, len(c.starts))
	for _, s := range c.starts {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ",")
}

// SlotsOn returns the concrete slot instants for the calendar day of day.
func (c *Catalogue) SlotsOn(day time.Time) []time.Time {
	slots := make([]time.Time, 0, len(c.starts))
	for _, s := range c.starts {
		slots = append(slots, s.On(day))
	}
	return slots
}

// Offers reports whether instant is one of the offered start times on its day.
func (c *Catalogue) Offers(instant time.Time) bool {
	if instant.Second() != 0 || instant.Nanosecond() != 0 {
		return false
	}
	m := instant.Hour()*60 + instant.Minute()
	for _, s := range c.starts {
		if s.minutes() == m {
			return true
		}
	}
	return false
}

type Slot struct {
	Start  time.Time  `json:"start"`
	Label  string     `json:"label"`
	Status SlotStatus `json:"status"`
}

// DayOccupancy marks every offered slot of the day as available or occupied.
func DayOccupancy(day time.Time, catalogue *Catalogue, active []*model.Reservation) []Slot {
	slots := make([]Slot, 0, len(catalogue.starts))
	for _, s := range catalogue.starts {
		instant := s.On(day)
		slots = append(slots, Slot{
			Start:  instant,
			Label:  s.String(),
			Status: SlotStatusAt(instant, active),
		})
	}
	return slots
}

// DayView is one machine's day: slot occupancy plus the reservations starting that day.
type DayView struct {
	Date         string               `json:"date"`
	MachineID    string               `json:"machineId"`
	Slots        []Slot               `json:"slots"`
	Reservations []*model.Reservation `json:"reservations"`
}

func NewDayView(machineID string, day time.Time, catalogue *Catalogue, active []*model.Reservation) *DayView {
	return &DayView{
		Date:         day.Format(time.DateOnly),
		MachineID:    machineID,
		Slots:        DayOccupancy(day, catalogue, active),
		Reservations: ReservationsForDay(day, active),
	}
}
