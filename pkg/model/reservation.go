package model

import (
	"strings"
	"time"
)

const (
	ReservationActive    = "ACTIVE"
	ReservationCompleted = "COMPLETED"
	ReservationCancelled = "CANCELLED"
)

type Reservation struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	MachineID       string    `json:"machineId" bson:"machine_id" validate:"required,max=64"`
	StartTime       time.Time `json:"startTime" bson:"start_time" validate:"required"`
	EndTime         time.Time `json:"endTime" bson:"end_time" validate:"required,gtfield=StartTime"`
	ResidentName    string    `json:"residentName" bson:"resident_name" validate:"required,min=1,max=100"`
	ApartmentNumber string    `json:"apartmentNumber" bson:"apartment_number" validate:"required,min=1,max=20,apartment"`
	ResidentID      string    `json:"residentId,omitempty" bson:"resident_id,omitempty" validate:"omitempty,max=64"`
	Status          string    `json:"status" bson:"status" validate:"required,oneof=ACTIVE COMPLETED CANCELLED"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at"`
}

// IsActive reports whether the stored status is ACTIVE, regardless of whether the
// window has already elapsed.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// ReservationRequest is the body of POST /reservations. Any status sent by the
// client is ignored.
type ReservationRequest struct {
	MachineID       string    `json:"machineId"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	ResidentName    string    `json:"residentName"`
	ApartmentNumber string    `json:"apartmentNumber"`
	ResidentID      string    `json:"residentId,omitempty"`
}

func (req *ReservationRequest) ToReservation() *Reservation {
	return &Reservation{
		MachineID:       req.MachineID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		ResidentName:    req.ResidentName,
		ApartmentNumber: req.ApartmentNumber,
		ResidentID:      req.ResidentID,
		Status:          ReservationActive,
	}
}

type ReservationUpdate struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE COMPLETED CANCELLED"`
}

// ReservationFilter narrows GET /reservations. Zero values mean "any".
type ReservationFilter struct {
	Status     string
	MachineID  string
	ResidentID string
	From       *time.Time
	To         *time.Time
}

// NormalizeStatus upper-cases a status the way the API accepts it ("active" == "ACTIVE").
func NormalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

func IsValidStatus(status string) bool {
	switch status {
	case ReservationActive, ReservationCompleted, ReservationCancelled:
		return true
	}
	return false
}

// ReservationView adds the display status derived from the wall clock.
type ReservationView struct {
	*Reservation
	DisplayStatus string `json:"displayStatus"`
}
