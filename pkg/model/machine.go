package model

import (
	"strings"
	"time"
)

const (
	MachineTypeWasher = "washer"
	MachineTypeDryer  = "dryer"

	MachineStatusActive      = "active"
	MachineStatusMaintenance = "maintenance"
	MachineStatusOutOfOrder  = "out_of_order"
)

type Machine struct {
	ID        string    `json:"id" bson:"_id" validate:"required"`
	Name      string    `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Type      string    `json:"type" bson:"type" validate:"required,oneof=washer dryer"`
	Location  *string   `json:"location" bson:"location,omitempty" validate:"omitempty,max=100"`
	Status    string    `json:"status" bson:"status" validate:"required,oneof=active maintenance out_of_order"`
	CreatedAt time.Time `json:"createdAt,omitempty" bson:"created_at"`
}

// IsBookable reports whether new reservations may be placed on the machine.
func (m *Machine) IsBookable() bool {
	return m.Status == MachineStatusActive
}

// NormalizeMachineEnum lower-cases type and status values; seeds and older
// clients send them upper-case.
func NormalizeMachineEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MachineOverview is a machine together with the reservation occupying it right now.
type MachineOverview struct {
	Machine
	CurrentReservation *Reservation `json:"currentReservation"`
	Available          bool         `json:"available"`
}
