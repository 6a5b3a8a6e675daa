package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	machineserrors "laundry/internal/machines/errors"
	"laundry/internal/reservations/events"
	reservationserrors "laundry/internal/reservations/errors"
	"laundry/internal/reservations/repository"
	"laundry/internal/reservations/validator"
	"laundry/pkg/availability"
	"laundry/pkg/config"
	mongotx "laundry/pkg/db/mongo"
	apperrors "laundry/pkg/errors"
	"laundry/pkg/metrics"
	"laundry/pkg/model"
	"laundry/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const MaxScheduleDays = 31

// MachineFinder resolves the machine a reservation refers to.
type MachineFinder interface {
	FindByID(ctx context.Context, id string) (*model.Machine, error)
}

type ReservationService interface {
	List(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, update *model.ReservationUpdate) (*model.Reservation, error)
	Delete(ctx context.Context, id string) error
	Availability(ctx context.Context, machineID string, day time.Time) (*availability.DayView, error)
	Schedule(ctx context.Context, from time.Time, days int) ([]availability.DaySchedule, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.ReservationLockRepository
	machines  MachineFinder
	validator *validator.ReservationValidator
	events    events.Publisher
	metrics   *metrics.Metrics
	cfg       *config.Config
	now       func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.ReservationLockRepository,
	machines MachineFinder,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		machines:  machines,
		validator: validator,
		events:    publisher,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *reservationService) List(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	filter.Status = model.NormalizeStatus(filter.Status)
	if filter.Status != "" && !model.IsValidStatus(filter.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Invalid status filter: %s", filter.Status))
	}
	filter.MachineID = sanitizer.SanitizeIdentifier(filter.MachineID)
	filter.ResidentID = sanitizer.SanitizeIdentifier(filter.ResidentID)

	reservations, err := s.repo.Find(ctx, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations",
			"status", filter.Status,
			"machine_id", filter.MachineID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to fetch reservations", err)
	}
	return reservations, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to fetch reservation")
	}
	return reservation, nil
}

func (s *reservationService) Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Request body cannot be empty")
	}

	reservation := req.ToReservation()
	s.sanitize(reservation)
	if err := s.validate(reservation); err != nil {
		return nil, err
	}
	if err := s.checkWindow(reservation); err != nil {
		return nil, err
	}
	if err := s.checkMachine(ctx, reservation.MachineID); err != nil {
		return nil, err
	}

	err := s.withMachineLock(ctx, reservation.MachineID, func() error {
		return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if err := s.verifyNoConflict(sessCtx, reservation); err != nil {
				return err
			}
			if err := s.repo.Create(sessCtx, reservation); err != nil {
				return apperrors.Internal("Failed to create reservation", err)
			}
			return nil
		})
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeConflict) {
			s.cfg.Log.Error("Failed to create reservation", "machine_id", reservation.MachineID, "error", err)
		}
		return nil, asAppError(err, "Failed to create reservation")
	}

	s.metrics.ReservationsCreated.Inc()
	s.events.Publish(ctx, events.ReservationCreated, reservation)
	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"machine_id", reservation.MachineID,
		"start_time", reservation.StartTime,
		"end_time", reservation.EndTime,
		"apartment", reservation.ApartmentNumber,
	)
	return reservation, nil
}

func (s *reservationService) UpdateStatus(ctx context.Context, id string, update *model.ReservationUpdate) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	if update == nil {
		return nil, apperrors.InvalidInput("Request body cannot be empty")
	}
	update.Status = model.NormalizeStatus(update.Status)
	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update reservation")
	}
	if existing.Status == update.Status {
		return existing, nil
	}

	updated := *existing
	updated.Status = update.Status

	apply := func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, update.Status); err != nil {
			return s.mapRepoError(err, id, "Failed to update reservation")
		}
		return nil
	}

	if update.Status == model.ReservationActive {
		// Re-activating puts the window back in play, so it must be free again.
		err = s.withMachineLock(ctx, existing.MachineID, func() error {
			return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
				if err := s.verifyNoConflict(sessCtx, &updated); err != nil {
					return err
				}
				return apply(sessCtx)
			})
		})
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return nil, asAppError(err, "Failed to update reservation")
	}

	eventType := events.ReservationUpdated
	if updated.Status == model.ReservationCancelled {
		eventType = events.ReservationCancelled
		s.metrics.ReservationsCancelled.Inc()
	}
	s.events.Publish(ctx, eventType, &updated)
	s.cfg.Log.Info("Reservation status updated", "id", id, "from", existing.Status, "to", updated.Status)
	return &updated, nil
}

func (s *reservationService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapRepoError(err, id, "Failed to delete reservation")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err, id, "Failed to delete reservation")
	}

	s.metrics.ReservationsCancelled.Inc()
	existing.Status = model.ReservationCancelled
	s.events.Publish(ctx, events.ReservationCancelled, existing)
	s.cfg.Log.Info("Reservation deleted successfully", "id", id, "machine_id", existing.MachineID)
	return nil
}

func (s *reservationService) Availability(ctx context.Context, machineID string, day time.Time) (*availability.DayView, error) {
	machineID = sanitizer.SanitizeIdentifier(machineID)
	if _, err := s.findMachine(ctx, machineID); err != nil {
		return nil, err
	}

	dayStart, nextDay := availability.DayBounds(day)
	active, err := s.repo.Find(ctx, model.ReservationFilter{
		Status:    model.ReservationActive,
		MachineID: machineID,
		From:      &dayStart,
		To:        &nextDay,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to load availability", "machine_id", machineID, "day", dayStart, "error", err)
		return nil, apperrors.Internal("Failed to fetch reservations", err)
	}

	return availability.NewDayView(machineID, dayStart, s.cfg.Catalogue, active), nil
}

func (s *reservationService) Schedule(ctx context.Context, from time.Time, days int) ([]availability.DaySchedule, error) {
	if days < 1 || days > MaxScheduleDays {
		return nil, apperrors.InvalidInput(fmt.Sprintf("days must be between 1 and %d", MaxScheduleDays))
	}

	first, _ := availability.DayBounds(from)
	y, m, d := first.Date()
	end := time.Date(y, m, d+days, 0, 0, 0, 0, first.Location())

	active, err := s.repo.Find(ctx, model.ReservationFilter{
		Status: model.ReservationActive,
		From:   &first,
		To:     &end,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to load schedule", "from", first, "days", days, "error", err)
		return nil, apperrors.Internal("Failed to fetch reservations", err)
	}
	return availability.GroupByDay(first, days, active), nil
}

// --- Helpers ---

func (s *reservationService) sanitize(r *model.Reservation) {
	r.MachineID = sanitizer.SanitizeIdentifier(r.MachineID)
	r.ResidentID = sanitizer.SanitizeIdentifier(r.ResidentID)
	r.ResidentName = sanitizer.SanitizeResidentName(r.ResidentName)
	r.ApartmentNumber = sanitizer.SanitizeApartment(r.ApartmentNumber)
}

func (s *reservationService) validate(r *model.Reservation) error {
	if err := s.validator.Validate(r); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// checkWindow bounds the duration and keeps the start between now and the booking
// horizon.
func (s *reservationService) checkWindow(r *model.Reservation) error {
	now := s.now()

	if d := r.EndTime.Sub(r.StartTime); d > s.cfg.MaxReservationDuration {
		return apperrors.Validation("Reservation is too long", map[string]any{
			"error":       fmt.Sprintf("duration %s exceeds the maximum of %s", d, s.cfg.MaxReservationDuration),
			"maxDuration": s.cfg.MaxReservationDuration.String(),
		})
	}
	if r.StartTime.Before(now.Truncate(time.Minute)) {
		return apperrors.Validation("Reservation cannot start in the past", map[string]any{
			"startTime": r.StartTime,
		})
	}
	horizon := now.AddDate(0, 0, s.cfg.BookingHorizonDays)
	if r.StartTime.After(horizon) {
		return apperrors.Validation("Reservation starts too far ahead", map[string]any{
			"error":       fmt.Sprintf("reservations may start at most %d days ahead", s.cfg.BookingHorizonDays),
			"horizonDays": s.cfg.BookingHorizonDays,
		})
	}
	return nil
}

func (s *reservationService) findMachine(ctx context.Context, machineID string) (*model.Machine, error) {
	machine, err := s.machines.FindByID(ctx, machineID)
	if err != nil {
		if errors.Is(err, machineserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Machine", machineID)
		}
		s.cfg.Log.Error("Failed to look up machine", "machine_id", machineID, "error", err)
		return nil, apperrors.Internal("Failed to look up machine", err)
	}
	return machine, nil
}

func (s *reservationService) checkMachine(ctx context.Context, machineID string) error {
	machine, err := s.machines.FindByID(ctx, machineID)
	if err != nil {
		if errors.Is(err, machineserrors.ErrNotFound) {
			return apperrors.Validation("Machine does not exist", map[string]any{"machineId": machineID})
		}
		s.cfg.Log.Error("Failed to look up machine", "machine_id", machineID, "error", err)
		return apperrors.Internal("Failed to create reservation", err)
	}
	if !machine.IsBookable() {
		return apperrors.Validation("Machine is not available for booking", map[string]any{
			"machineId": machineID,
			"status":    machine.Status,
		})
	}
	return nil
}

// verifyNoConflict re-reads the machine's active reservations inside the transaction
// and refuses the window if any of them intersects it.
func (s *reservationService) verifyNoConflict(ctx context.Context, r *model.Reservation) error {
	overlapping, err := s.repo.FindActiveOverlapping(ctx, r.MachineID, r.StartTime, r.EndTime)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}

	others := make([]*model.Reservation, 0, len(overlapping))
	for _, o := range overlapping {
		if o.ID != r.ID || r.ID == "" {
			others = append(others, o)
		}
	}

	if conflict, found := availability.FindConflict(r.StartTime, r.EndTime, others); found {
		s.metrics.ReservationConflicts.WithLabelValues(metrics.PhaseRecheck).Inc()
		return apperrors.Conflict("Time slot already reserved").WithDetails(map[string]any{
			"conflictingId": conflict.ID,
			"startTime":     conflict.StartTime,
			"endTime":       conflict.EndTime,
		})
	}
	return nil
}

// withMachineLock serializes conflict check and write per machine through an advisory
// lock document. Expired locks left by a crashed holder are reaped on contention.
func (s *reservationService) withMachineLock(ctx context.Context, machineID string, fn func() error) error {
	lockID, owner, err := s.acquireMachineLock(ctx, machineID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(context.WithoutCancel(ctx), lockID, owner); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lockID, "error", releaseErr)
		}
	}()
	return fn()
}

func (s *reservationService) acquireMachineLock(ctx context.Context, machineID string) (string, string, error) {
	lockID := "reservation_lock_" + machineID
	owner := uuid.NewString()

	for attempt := 0; ; attempt++ {
		now := s.now()
		err := s.lockRepo.Create(ctx, &model.ReservationLock{
			ID:        lockID,
			MachineID: machineID,
			Owner:     owner,
			ExpiresAt: now.Add(s.cfg.LockTTL),
		})
		if err == nil {
			return lockID, owner, nil
		}
		if !mongotx.IsDuplicateKey(err) {
			return "", "", apperrors.Internal("Failed to acquire reservation lock", err)
		}

		if reaped, reapErr := s.lockRepo.DeleteExpired(ctx, lockID, now); reapErr == nil && reaped {
			s.cfg.Log.Warn("Reaped expired reservation lock", "lock_id", lockID)
			continue
		}

		if attempt >= s.cfg.LockRetries {
			s.metrics.ReservationConflicts.WithLabelValues(metrics.PhaseLock).Inc()
			return "", "", apperrors.Unavailable(
				"This machine is currently being booked by another request. Please try again.",
			).WithDetails(map[string]any{"error": reservationserrors.ErrLockBusy.Error()})
		}

		s.metrics.LockWaitRetries.Inc()
		select {
		case <-ctx.Done():
			return "", "", apperrors.Timeout("Timed out waiting for reservation lock")
		case <-time.After(s.cfg.LockRetryDelay):
		}
	}
}

func (s *reservationService) mapRepoError(err error, id string, message string) error {
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	if errors.Is(err, reservationserrors.ErrInvalidID) {
		// IDs that cannot exist are reported like any other unknown reservation.
		return apperrors.NotFoundWithID("Reservation", id)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	s.cfg.Log.Error(message, "id", id, "error", err)
	return apperrors.Internal(message, err)
}

func asAppError(err error, message string) error {
	if apperrors.IsAppError(err) {
		return apperrors.AsAppError(err)
	}
	return apperrors.Internal(message, err)
}
