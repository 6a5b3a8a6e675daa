// Package availability decides whether a machine is free for a proposed window and
// renders per-slot occupancy for a day.
//
// Every function is pure: callers pass the reservations already narrowed to one
// machine and status ACTIVE, and get a fresh result back. Intervals are half-open,
// [start, end), so a reservation ending at 11:00 and one starting at 11:00 can both
// exist on the same machine.
//
// Day boundaries are taken in the location of the day argument. Callers that work
// in building-local wall-clock time pass instants in that location.
package availability
