// Package booking runs the two-phase booking protocol against a reservation store:
// check locally, then re-fetch and re-check before asking the store to create.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laundry/pkg/availability"
	"laundry/pkg/client"
	"laundry/pkg/logger"
	"laundry/pkg/model"
)

// Store is the reservation store as seen by a booking client.
type Store interface {
	ListActive(ctx context.Context, machineID string) ([]*model.Reservation, error)
	Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error)
	Delete(ctx context.Context, id string) error
}

// ReservationLister is implemented by stores that can filter reservations server side.
type ReservationLister interface {
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error)
}

type Request struct {
	MachineID       string
	Start           time.Time
	Hours           int
	ResidentName    string
	ApartmentNumber string
	ResidentID      string
}

func (r Request) toReservationRequest(end time.Time) *model.ReservationRequest {
	return &model.ReservationRequest{
		MachineID:       r.MachineID,
		StartTime:       r.Start,
		EndTime:         end,
		ResidentName:    r.ResidentName,
		ApartmentNumber: r.ApartmentNumber,
		ResidentID:      r.ResidentID,
	}
}

type Booker struct {
	store     Store
	catalogue *availability.Catalogue
	log       *logger.Logger
	now       func() time.Time
}

func NewBooker(store Store, catalogue *availability.Catalogue, log *logger.Logger) *Booker {
	return &Booker{
		store:     store,
		catalogue: catalogue,
		log:       log,
		now:       time.Now,
	}
}

// Preview returns the slot occupancy and the reservations of one machine's day.
func (b *Booker) Preview(ctx context.Context, machineID string, day time.Time) (*availability.DayView, error) {
	active, err := b.fetchActive(ctx, machineID)
	if err != nil {
		return nil, err
	}
	return availability.NewDayView(machineID, day, b.catalogue, active), nil
}

// Check is the first phase: it rejects an invalid or overlapping request without
// calling Create on the store.
func (b *Booker) Check(ctx context.Context, req Request) (time.Time, error) {
	end, err := b.window(req)
	if err != nil {
		return time.Time{}, err
	}

	active, err := b.fetchActive(ctx, req.MachineID)
	if err != nil {
		return time.Time{}, err
	}
	if blocking, found := availability.FindConflict(req.Start, end, active); found {
		return time.Time{}, &ConflictError{Err: ErrConflict, Blocking: blocking}
	}
	return end, nil
}

// Book checks the request, re-fetches the active set to catch concurrent bookings and
// creates the reservation only if the window is still free.
func (b *Booker) Book(ctx context.Context, req Request) (*model.Reservation, error) {
	end, err := b.Check(ctx, req)
	if err != nil {
		return nil, err
	}

	active, err := b.fetchActive(ctx, req.MachineID)
	if err != nil {
		return nil, err
	}
	if blocking, found := availability.FindConflict(req.Start, end, active); found {
		b.log.Info("Slot taken between check and confirm",
			"machine_id", req.MachineID,
			"start", req.Start,
			"blocking_id", blocking.ID,
		)
		return nil, &ConflictError{Err: ErrSlotTaken, Blocking: blocking}
	}

	reservation, err := b.store.Create(ctx, req.toReservationRequest(end))
	if err != nil {
		var conflict *client.ConflictError
		if errors.As(err, &conflict) {
			return nil, &ConflictError{Err: ErrSlotTaken}
		}
		b.log.Error("Failed to create reservation", "machine_id", req.MachineID, "error", err)
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	return reservation, nil
}

func (b *Booker) Cancel(ctx context.Context, id string) error {
	if err := b.store.Delete(ctx, id); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return ErrNotFound
		}
		b.log.Error("Failed to cancel reservation", "id", id, "error", err)
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	return nil
}

// Mine lists a resident's reservations with their derived display status.
func (b *Booker) Mine(ctx context.Context, residentID string) ([]model.ReservationView, error) {
	lister, ok := b.store.(ReservationLister)
	if !ok {
		return nil, errors.New("store cannot list reservations by resident")
	}
	if residentID == "" {
		return nil, errors.New("resident ID cannot be empty")
	}

	reservations, err := lister.ListReservations(ctx, model.ReservationFilter{ResidentID: residentID})
	if err != nil {
		b.log.Error("Failed to fetch resident reservations", "resident_id", residentID, "error", err)
		return nil, fmt.Errorf("failed to fetch reservations: %w", err)
	}
	return availability.View(reservations, b.now()), nil
}

func (b *Booker) window(req Request) (time.Time, error) {
	end, err := availability.EndFor(req.Start, req.Hours)
	if err != nil {
		return time.Time{}, err
	}
	if !b.catalogue.Offers(req.Start) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotOffered, req.Start.Format("15:04"))
	}
	return end, nil
}

func (b *Booker) fetchActive(ctx context.Context, machineID string) ([]*model.Reservation, error) {
	active, err := b.store.ListActive(ctx, machineID)
	if err != nil {
		b.log.Error("Failed to fetch active reservations", "machine_id", machineID, "error", err)
		return nil, fmt.Errorf("failed to fetch reservations: %w", err)
	}
	return active, nil
}
