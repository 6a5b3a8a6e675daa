package service

import (
	"context"
	"errors"
	"time"

	machineserrors "laundry/internal/machines/errors"
	"laundry/internal/machines/repository"
	"laundry/pkg/availability"
	apperrors "laundry/pkg/errors"
	"laundry/pkg/logger"
	"laundry/pkg/model"
)

// ReservationFinder is the slice of the reservation store the overview needs.
type ReservationFinder interface {
	Find(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error)
}

type MachineService interface {
	List(ctx context.Context) ([]*model.Machine, error)
	GetByID(ctx context.Context, id string) (*model.Machine, error)
	Overview(ctx context.Context, now time.Time) ([]*model.MachineOverview, error)
}

type machineService struct {
	repo         repository.MachineRepository
	reservations ReservationFinder
	log          *logger.Logger
}

func NewMachineService(repo repository.MachineRepository, reservations ReservationFinder, log *logger.Logger) MachineService {
	return &machineService{
		repo:         repo,
		reservations: reservations,
		log:          log,
	}
}

func (s *machineService) List(ctx context.Context) ([]*model.Machine, error) {
	machines, err := s.repo.FindAll(ctx)
	if err != nil {
		s.log.Error("Failed to list machines", "error", err)
		return nil, apperrors.Internal("Failed to retrieve machines", err)
	}
	return machines, nil
}

func (s *machineService) GetByID(ctx context.Context, id string) (*model.Machine, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Machine ID cannot be empty")
	}

	machine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, machineserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Machine", id)
		}
		s.log.Error("Failed to retrieve machine", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve machine", err)
	}
	return machine, nil
}

// Overview lists every machine with the reservation occupying it at now. A machine is
// available when it is active and nothing covers now.
func (s *machineService) Overview(ctx context.Context, now time.Time) ([]*model.MachineOverview, error) {
	machines, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	to := now.Add(time.Nanosecond)
	current, err := s.reservations.Find(ctx, model.ReservationFilter{
		Status: model.ReservationActive,
		From:   &now,
		To:     &to,
	})
	if err != nil {
		s.log.Error("Failed to load current reservations", "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}

	byMachine := make(map[string][]*model.Reservation)
	for _, r := range current {
		byMachine[r.MachineID] = append(byMachine[r.MachineID], r)
	}

	overview := make([]*model.MachineOverview, 0, len(machines))
	for _, m := range machines {
		res := availability.CurrentReservation(now, byMachine[m.ID])
		overview = append(overview, &model.MachineOverview{
			Machine:            *m,
			CurrentReservation: res,
			Available:          m.IsBookable() && res == nil,
		})
	}
	return overview, nil
}
