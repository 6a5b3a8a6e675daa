package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"laundry/pkg/logger"
	"laundry/pkg/model"
)

func validReservation() *model.Reservation {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &model.Reservation{
		MachineID:       "washer-1",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		ResidentName:    "Ana Lima",
		ApartmentNumber: "4B",
		Status:          model.ReservationActive,
	}
}

func TestValidate(t *testing.T) {
	validator := NewReservationValidator(logger.Discard())

	tests := []struct {
		name      string
		mutate    func(r *model.Reservation)
		wantError bool
		field     string
	}{
		{name: "valid", mutate: func(r *model.Reservation) {}},
		{name: "apartment with block", mutate: func(r *model.Reservation) { r.ApartmentNumber = "Block C 2.1" }},
		{name: "apartment with dash", mutate: func(r *model.Reservation) { r.ApartmentNumber = "B-3" }},
		{name: "valid object id", mutate: func(r *model.Reservation) { r.ID = "65f000000000000000000001" }},
		{name: "missing machine", mutate: func(r *model.Reservation) { r.MachineID = "" }, wantError: true, field: "machineId"},
		{name: "missing name", mutate: func(r *model.Reservation) { r.ResidentName = "" }, wantError: true, field: "residentName"},
		{name: "name too long", mutate: func(r *model.Reservation) { r.ResidentName = strings.Repeat("a", 101) }, wantError: true, field: "residentName"},
		{name: "apartment punctuation", mutate: func(r *model.Reservation) { r.ApartmentNumber = "4B!" }, wantError: true, field: "apartmentNumber"},
		{name: "apartment leading space", mutate: func(r *model.Reservation) { r.ApartmentNumber = " 4B" }, wantError: true, field: "apartmentNumber"},
		{name: "end equals start", mutate: func(r *model.Reservation) { r.EndTime = r.StartTime }, wantError: true, field: "endTime"},
		{name: "zero start", mutate: func(r *model.Reservation) { r.StartTime = time.Time{} }, wantError: true, field: "startTime"},
		{name: "lower-case status", mutate: func(r *model.Reservation) { r.Status = "active" }, wantError: true, field: "status"},
		{name: "bad object id", mutate: func(r *model.Reservation) { r.ID = "nope" }, wantError: true, field: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReservation()
			tt.mutate(r)

			err := validator.Validate(r)
			if (err != nil) != tt.wantError {
				t.Fatalf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
			if !tt.wantError {
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error for field %q, got %v", tt.field, verrs)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	validator := NewReservationValidator(logger.Discard())

	for _, status := range []string{model.ReservationActive, model.ReservationCompleted, model.ReservationCancelled} {
		if err := validator.ValidateUpdate(&model.ReservationUpdate{Status: status}); err != nil {
			t.Errorf("ValidateUpdate(%q) unexpected error: %v", status, err)
		}
	}

	for _, status := range []string{"", "PENDING", "cancelled"} {
		if err := validator.ValidateUpdate(&model.ReservationUpdate{Status: status}); err == nil {
			t.Errorf("ValidateUpdate(%q) expected error", status)
		}
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	validator := NewReservationValidator(logger.Discard())

	r := validReservation()
	r.EndTime = r.StartTime.Add(-time.Minute)
	err := validator.Validate(r)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "endTime must be after startTime") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
