package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	machineserrors "laundry/internal/machines/errors"
	reservationserrors "laundry/internal/reservations/errors"
	"laundry/internal/reservations/validator"
	"laundry/pkg/availability"
	"laundry/pkg/config"
	mongotx "laundry/pkg/db/mongo"
	apperrors "laundry/pkg/errors"
	"laundry/pkg/logger"
	"laundry/pkg/metrics"
	"laundry/pkg/model"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// fakeReservationRepository keeps reservations in memory and mimics the Mongo
// repository's filter semantics.
type fakeReservationRepository struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	findErr      error
}

func newFakeRepo() *fakeReservationRepository {
	return &fakeReservationRepository{reservations: make(map[string]*model.Reservation)}
}

func (f *fakeReservationRepository) Create(ctx context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = primitive.NewObjectID().Hex()
	r.CreatedAt = testNow
	cp := *r
	f.reservations[r.ID] = &cp
	return nil
}

func (f *fakeReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, reservationserrors.ErrInvalidID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservationRepository) Find(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Reservation, 0)
	for _, r := range f.reservations {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.MachineID != "" && r.MachineID != filter.MachineID {
			continue
		}
		if filter.ResidentID != "" && r.ResidentID != filter.ResidentID {
			continue
		}
		if filter.To != nil && !r.StartTime.Before(*filter.To) {
			continue
		}
		if filter.From != nil && !r.EndTime.After(*filter.From) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeReservationRepository) FindActiveOverlapping(ctx context.Context, machineID string, start, end time.Time) ([]*model.Reservation, error) {
	return f.Find(ctx, model.ReservationFilter{Status: model.ReservationActive, MachineID: machineID, From: &start, To: &end})
}

func (f *fakeReservationRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return reservationserrors.ErrNotFound
	}
	r.Status = status
	return nil
}

func (f *fakeReservationRepository) Delete(ctx context.Context, id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return reservationserrors.ErrInvalidID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[id]; !ok {
		return reservationserrors.ErrNotFound
	}
	delete(f.reservations, id)
	return nil
}

func (f *fakeReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

func (f *fakeReservationRepository) all() []*model.Reservation {
	out, _ := f.Find(context.Background(), model.ReservationFilter{Status: model.ReservationActive})
	return out
}

type fakeLockRepository struct {
	mu    sync.Mutex
	locks map[string]*model.ReservationLock
}

func newFakeLocks() *fakeLockRepository {
	return &fakeLockRepository{locks: make(map[string]*model.ReservationLock)}
}

func (f *fakeLockRepository) Create(ctx context.Context, lock *model.ReservationLock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.locks[lock.ID]; held {
		return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	}
	cp := *lock
	f.locks[lock.ID] = &cp
	return nil
}

func (f *fakeLockRepository) Delete(ctx context.Context, lockID, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.locks[lockID]; ok && l.Owner == owner {
		delete(f.locks, lockID)
	}
	return nil
}

func (f *fakeLockRepository) DeleteExpired(ctx context.Context, lockID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.locks[lockID]; ok && !l.ExpiresAt.After(now) {
		delete(f.locks, lockID)
		return true, nil
	}
	return false, nil
}

type mockMachineFinder struct {
	machines map[string]*model.Machine
	err      error
}

func (m *mockMachineFinder) FindByID(ctx context.Context, id string) (*model.Machine, error) {
	if m.err != nil {
		return nil, m.err
	}
	if machine, ok := m.machines[id]; ok {
		return machine, nil
	}
	return nil, machineserrors.ErrNotFound
}

type recordedEvent struct {
	eventType string
	id        string
	status    string
}

type mockPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *mockPublisher) Publish(ctx context.Context, eventType string, r *model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{eventType: eventType, id: r.ID, status: r.Status})
}

type testEnv struct {
	svc       *reservationService
	repo      *fakeReservationRepository
	locks     *fakeLockRepository
	machines  *mockMachineFinder
	publisher *mockPublisher
	metrics   *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()

	catalogue, err := availability.RangeCatalogue(
		availability.TimeOfDay{Hour: 6}, availability.TimeOfDay{Hour: 22}, time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		MaxReservationDuration: 4 * time.Hour,
		BookingHorizonDays:     7,
		LockTTL:                10 * time.Second,
		LockRetries:            50,
		LockRetryDelay:         time.Millisecond,
		Location:               time.UTC,
		Catalogue:              catalogue,
		Log:                    log,
	}

	env := &testEnv{
		repo:  newFakeRepo(),
		locks: newFakeLocks(),
		machines: &mockMachineFinder{machines: map[string]*model.Machine{
			"washer-1": {ID: "washer-1", Name: "Washer 1", Type: model.MachineTypeWasher, Status: model.MachineStatusActive},
			"washer-2": {ID: "washer-2", Name: "Washer 2", Type: model.MachineTypeWasher, Status: model.MachineStatusActive},
			"dryer-b":  {ID: "dryer-b", Name: "Dryer B", Type: model.MachineTypeDryer, Status: model.MachineStatusOutOfOrder},
		}},
		publisher: &mockPublisher{},
		metrics:   metrics.New(),
	}
	env.svc = NewReservationService(
		env.repo, env.locks, env.machines,
		validator.NewReservationValidator(log),
		env.publisher, env.metrics, cfg,
	).(*reservationService)
	env.svc.now = func() time.Time { return testNow }
	return env
}

func request(machineID string, start time.Time, hours int) *model.ReservationRequest {
	return &model.ReservationRequest{
		MachineID:       machineID,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(hours) * time.Hour),
		ResidentName:    gofakeit.Name(),
		ApartmentNumber: gofakeit.Numerify("##") + gofakeit.RandomString([]string{"A", "B", "C"}),
		ResidentID:      gofakeit.UUID(),
	}
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC)
}

func TestCreate_Success(t *testing.T) {
	env := newTestEnv(t)

	req := request("washer-1", at(10), 1)
	req.ResidentName = "  Ana   Lima "
	req.ApartmentNumber = "4b"

	res, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, model.ReservationActive, res.Status)
	assert.Equal(t, "Ana Lima", res.ResidentName)
	assert.Equal(t, "4B", res.ApartmentNumber)
	assert.Empty(t, env.locks.locks, "lock must be released")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ReservationsCreated))
	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, "reservation.created", env.publisher.events[0].eventType)
}

// With 10:00-12:00 booked, 11:00-12:00 is refused and 12:00-13:00 is accepted.
func TestCreate_ConflictAndTouchingWindows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, request("washer-1", at(10), 2))
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, request("washer-1", at(11), 1))
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, 409, appErr.StatusCode())
	assert.Equal(t, "Time slot already reserved", appErr.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ReservationConflicts.WithLabelValues(metrics.PhaseRecheck)))

	_, err = env.svc.Create(ctx, request("washer-1", at(12), 1))
	assert.NoError(t, err, "touching windows do not conflict")

	_, err = env.svc.Create(ctx, request("washer-2", at(10), 2))
	assert.NoError(t, err, "other machines are independent")

	assert.Empty(t, env.locks.locks)
}

func TestCreate_CancelledDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Create(ctx, request("washer-1", at(10), 2))
	require.NoError(t, err)
	_, err = env.svc.UpdateStatus(ctx, first.ID, &model.ReservationUpdate{Status: "cancelled"})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, request("washer-1", at(10), 2))
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *model.ReservationRequest)
		code   string
	}{
		{"missing name", func(r *model.ReservationRequest) { r.ResidentName = "   " }, apperrors.CodeValidation},
		{"missing apartment", func(r *model.ReservationRequest) { r.ApartmentNumber = "" }, apperrors.CodeValidation},
		{"bad apartment", func(r *model.ReservationRequest) { r.ApartmentNumber = "4B; drop" }, apperrors.CodeValidation},
		{"end before start", func(r *model.ReservationRequest) { r.EndTime = r.StartTime.Add(-time.Hour) }, apperrors.CodeValidation},
		{"zero length", func(r *model.ReservationRequest) { r.EndTime = r.StartTime }, apperrors.CodeValidation},
		{"too long", func(r *model.ReservationRequest) { r.EndTime = r.StartTime.Add(5 * time.Hour) }, apperrors.CodeValidation},
		{"in the past", func(r *model.ReservationRequest) {
			r.StartTime = testNow.Add(-2 * time.Hour)
			r.EndTime = testNow.Add(-time.Hour)
		}, apperrors.CodeValidation},
		{"beyond horizon", func(r *model.ReservationRequest) {
			r.StartTime = testNow.AddDate(0, 0, 8)
			r.EndTime = r.StartTime.Add(time.Hour)
		}, apperrors.CodeValidation},
		{"unknown machine", func(r *model.ReservationRequest) { r.MachineID = "washer-9" }, apperrors.CodeValidation},
		{"machine out of order", func(r *model.ReservationRequest) { r.MachineID = "dryer-b" }, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := request("washer-1", at(10), 1)
			tt.mutate(req)

			_, err := env.svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			assert.Empty(t, env.repo.all())
		})
	}
}

func TestCreate_NilRequest(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Create(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestCreate_LockBusy(t *testing.T) {
	env := newTestEnv(t)
	env.svc.cfg.LockRetries = 2

	require.NoError(t, env.locks.Create(context.Background(), &model.ReservationLock{
		ID:        "reservation_lock_washer-1",
		MachineID: "washer-1",
		ExpiresAt: testNow.Add(time.Minute),
	}))

	_, err := env.svc.Create(context.Background(), request("washer-1", at(10), 1))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnavailable))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.LockWaitRetries))
	assert.Empty(t, env.repo.all())
}

func TestCreate_ReapsExpiredLock(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.locks.Create(context.Background(), &model.ReservationLock{
		ID:        "reservation_lock_washer-1",
		MachineID: "washer-1",
		ExpiresAt: testNow.Add(-time.Second),
	}))

	_, err := env.svc.Create(context.Background(), request("washer-1", at(10), 1))
	require.NoError(t, err)
	assert.Empty(t, env.locks.locks)
}

func TestWithMachineLock_StaleHolderDoesNotReleaseNewLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var nextOwner string
	err := env.svc.withMachineLock(ctx, "washer-1", func() error {
		// The first holder overruns its TTL and a second request takes the lock over.
		env.svc.now = func() time.Time { return testNow.Add(env.svc.cfg.LockTTL + time.Second) }

		_, owner, err := env.svc.acquireMachineLock(ctx, "washer-1")
		require.NoError(t, err)
		nextOwner = owner
		return nil
	})
	require.NoError(t, err)

	require.Contains(t, env.locks.locks, "reservation_lock_washer-1")
	assert.Equal(t, nextOwner, env.locks.locks["reservation_lock_washer-1"].Owner)

	env.svc.cfg.LockRetries = 1
	_, err = env.svc.Create(ctx, request("washer-1", at(10), 1))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnavailable))
}

func TestAcquireMachineLock_UniqueOwnerPerAcquisition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lockID, first, err := env.svc.acquireMachineLock(ctx, "washer-1")
	require.NoError(t, err)
	require.NoError(t, env.locks.Delete(ctx, lockID, first))

	_, second, err := env.svc.acquireMachineLock(ctx, "washer-1")
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)

	require.NoError(t, env.locks.Delete(ctx, lockID, first))
	assert.Contains(t, env.locks.locks, lockID, "release with a stale owner must be ignored")
}

// Concurrent bookings of one machine never produce overlapping active reservations.
func TestCreate_ConcurrentRequestsNeverOverlap(t *testing.T) {
	env := newTestEnv(t)

	starts := []int{10, 10, 11, 11, 12, 9, 10, 13, 12, 11}
	var wg sync.WaitGroup
	for _, h := range starts {
		wg.Add(1)
		go func(h int) {
			defer wg.Done()
			_, _ = env.svc.Create(context.Background(), request("washer-1", at(h), 2))
		}(h)
	}
	wg.Wait()

	accepted := env.repo.all()
	require.NotEmpty(t, accepted)
	for i := 0; i < len(accepted); i++ {
		for j := i + 1; j < len(accepted); j++ {
			a, b := accepted[i], accepted[j]
			assert.False(t, availability.Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime),
				"%s-%s overlaps %s-%s", a.StartTime, a.EndTime, b.StartTime, b.EndTime)
		}
	}
}

func TestGetByID(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), request("washer-1", at(10), 1))
	require.NoError(t, err)

	got, err := env.svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = env.svc.GetByID(context.Background(), primitive.NewObjectID().Hex())
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
	assert.Equal(t, "Reservation not found", appErr.Message)

	_, err = env.svc.GetByID(context.Background(), "not-an-object-id")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r1, err := env.svc.Create(ctx, request("washer-1", at(12), 1))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, request("washer-1", at(9), 1))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, request("washer-2", at(9), 1))
	require.NoError(t, err)
	_, err = env.svc.UpdateStatus(ctx, r1.ID, &model.ReservationUpdate{Status: model.ReservationCancelled})
	require.NoError(t, err)

	all, err := env.svc.List(ctx, model.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := env.svc.List(ctx, model.ReservationFilter{Status: "active", MachineID: "washer-1"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].StartTime.Equal(at(9)))

	_, err = env.svc.List(ctx, model.ReservationFilter{Status: "pending"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestList_StoreFailureIsNotEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.repo.findErr = errors.New("server selection timeout")

	_, err := env.svc.List(context.Background(), model.ReservationFilter{})
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeInternal, appErr.Code)
	assert.Equal(t, "Failed to fetch reservations", appErr.Message)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, request("washer-1", at(10), 2))
	require.NoError(t, err)

	updated, err := env.svc.UpdateStatus(ctx, created.ID, &model.ReservationUpdate{Status: "Cancelled"})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, updated.Status)

	_, err = env.svc.UpdateStatus(ctx, created.ID, &model.ReservationUpdate{Status: "bogus"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = env.svc.UpdateStatus(ctx, primitive.NewObjectID().Hex(), &model.ReservationUpdate{Status: "CANCELLED"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	types := make([]string, 0)
	for _, e := range env.publisher.events {
		types = append(types, e.eventType)
	}
	assert.Equal(t, []string{"reservation.created", "reservation.cancelled"}, types)
}

func TestUpdateStatus_ReactivationRechecksConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Create(ctx, request("washer-1", at(10), 2))
	require.NoError(t, err)
	_, err = env.svc.UpdateStatus(ctx, first.ID, &model.ReservationUpdate{Status: model.ReservationCancelled})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, request("washer-1", at(11), 1))
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(ctx, first.ID, &model.ReservationUpdate{Status: model.ReservationActive})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	got, err := env.svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), request("washer-1", at(10), 1))
	require.NoError(t, err)

	got, err := env.svc.UpdateStatus(context.Background(), created.ID, &model.ReservationUpdate{Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, got.Status)
	assert.Len(t, env.publisher.events, 1)
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, request("washer-1", at(10), 1))
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, created.ID))
	assert.Empty(t, env.repo.all())

	err = env.svc.Delete(ctx, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	last := env.publisher.events[len(env.publisher.events)-1]
	assert.Equal(t, "reservation.cancelled", last.eventType)
	assert.Equal(t, model.ReservationCancelled, last.status)
}

func TestAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, request("washer-1", at(10), 2))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, request("washer-1", at(15), 1))
	require.NoError(t, err)

	view, err := env.svc.Availability(ctx, "washer-1", at(0))
	require.NoError(t, err)

	assert.Equal(t, "2026-03-02", view.Date)
	assert.Len(t, view.Reservations, 2)

	status := map[string]availability.SlotStatus{}
	for _, s := range view.Slots {
		status[s.Label] = s.Status
	}
	assert.Equal(t, availability.SlotOccupied, status["10:00"])
	assert.Equal(t, availability.SlotOccupied, status["11:00"])
	assert.Equal(t, availability.SlotAvailable, status["12:00"])
	assert.Equal(t, availability.SlotOccupied, status["15:00"])

	_, err = env.svc.Availability(ctx, "washer-9", at(0))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, request("washer-1", at(10), 1))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, request("washer-2", at(10).AddDate(0, 0, 2), 1))
	require.NoError(t, err)

	days, err := env.svc.Schedule(ctx, at(0), 3)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Len(t, days[0].Reservations, 1)
	assert.Empty(t, days[1].Reservations)
	assert.Len(t, days[2].Reservations, 1)

	_, err = env.svc.Schedule(ctx, at(0), 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	_, err = env.svc.Schedule(ctx, at(0), MaxScheduleDays+1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}
