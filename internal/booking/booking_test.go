package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"laundry/pkg/availability"
	"laundry/pkg/client"
	"laundry/pkg/logger"
	"laundry/pkg/model"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore behaves like the original reservation store: it persists whatever it
// is given and performs no conflict check of its own.
type memoryStore struct {
	mu           sync.Mutex
	seq          int
	reservations map[string]*model.Reservation

	listCalls   int
	createCalls int

	// beforeList runs ahead of every ListActive call; tests use it to inject
	// concurrent bookings.
	beforeList func(call int)
	listErr    error
	createErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reservations: make(map[string]*model.Reservation)}
}

func (s *memoryStore) ListActive(ctx context.Context, machineID string) ([]*model.Reservation, error) {
	s.mu.Lock()
	s.listCalls++
	call := s.listCalls
	hook := s.beforeList
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if s.listErr != nil {
		return nil, s.listErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Reservation, 0)
	for _, r := range s.reservations {
		if r.MachineID == machineID && r.Status == model.ReservationActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memoryStore) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Reservation, 0)
	for _, r := range s.reservations {
		if filter.ResidentID == "" || r.ResidentID == filter.ResidentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memoryStore) Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.seq++
	r := req.ToReservation()
	r.ID = fmt.Sprintf("res-%d", s.seq)
	s.reservations[r.ID] = r
	cp := *r
	return &cp, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		return client.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

func (s *memoryStore) seed(machineID string, start, end time.Time) *model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	r := &model.Reservation{
		ID:              fmt.Sprintf("res-%d", s.seq),
		MachineID:       machineID,
		StartTime:       start,
		EndTime:         end,
		ResidentName:    gofakeit.Name(),
		ApartmentNumber: gofakeit.Numerify("#") + "C",
		Status:          model.ReservationActive,
	}
	s.reservations[r.ID] = r
	return r
}

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func newBooker(t *testing.T, store Store) *Booker {
	t.Helper()
	catalogue, err := availability.RangeCatalogue(
		availability.TimeOfDay{Hour: 6}, availability.TimeOfDay{Hour: 22}, 30*time.Minute)
	require.NoError(t, err)
	return NewBooker(store, catalogue, logger.Discard())
}

func bookingRequest(machineID string, start time.Time, hours int) Request {
	return Request{
		MachineID:       machineID,
		Start:           start,
		Hours:           hours,
		ResidentName:    gofakeit.Name(),
		ApartmentNumber: "2A",
		ResidentID:      "resident-1",
	}
}

// With 09:00-11:00 booked, 11:00-12:00 is accepted and 10:30-11:30 is rejected.
func TestBook_TouchingAcceptedOverlapRejected(t *testing.T) {
	store := newMemoryStore()
	existing := store.seed("M", at(9, 0), at(11, 0))
	b := newBooker(t, store)

	_, err := b.Book(context.Background(), bookingRequest("M", at(11, 0), 1))
	require.NoError(t, err)

	createsBefore := store.createCalls
	_, err = b.Book(context.Background(), bookingRequest("M", at(10, 30), 1))
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, createsBefore, store.createCalls, "a local conflict never reaches the store")

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, existing.ID, conflict.Blocking.ID)
}

// An empty machine accepts any offered start with 1-4 hours.
func TestBook_EmptyMachineAcceptsCatalogue(t *testing.T) {
	catalogue, err := availability.RangeCatalogue(
		availability.TimeOfDay{Hour: 6}, availability.TimeOfDay{Hour: 22}, time.Hour)
	require.NoError(t, err)

	for _, start := range catalogue.SlotsOn(day) {
		for hours := 1; hours <= 4; hours++ {
			b := NewBooker(newMemoryStore(), catalogue, logger.Discard())
			r, err := b.Book(context.Background(), bookingRequest("M", start, hours))
			require.NoError(t, err, "start %s for %dh", start, hours)
			assert.Equal(t, start.Add(time.Duration(hours)*time.Hour), r.EndTime)
		}
	}
}

// A booking that lands between check and confirm is caught by the re-check.
func TestBook_SlotTakenBetweenCheckAndConfirm(t *testing.T) {
	store := newMemoryStore()
	b := newBooker(t, store)

	store.beforeList = func(call int) {
		if call == 2 {
			store.seed("M", at(10, 0), at(11, 0))
		}
	}

	_, err := b.Book(context.Background(), bookingRequest("M", at(10, 0), 1))
	require.ErrorIs(t, err, ErrSlotTaken)
	assert.Zero(t, store.createCalls)
}

// Booking the same slot twice: the second attempt for the same slot is refused.
func TestBook_SecondAttemptForSameSlotRejected(t *testing.T) {
	store := newMemoryStore()
	b := newBooker(t, store)

	_, err := b.Book(context.Background(), bookingRequest("M", at(14, 0), 2))
	require.NoError(t, err)

	_, err = b.Book(context.Background(), bookingRequest("M", at(14, 0), 2))
	require.ErrorIs(t, err, ErrConflict)

	active, err := store.ListActive(context.Background(), "M")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestBook_StoreConflictIsSlotTaken(t *testing.T) {
	store := newMemoryStore()
	store.createErr = &client.ConflictError{Message: "Time slot already reserved"}
	b := newBooker(t, store)

	_, err := b.Book(context.Background(), bookingRequest("M", at(10, 0), 1))
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBook_TransportFailureIsNotEmpty(t *testing.T) {
	store := newMemoryStore()
	store.listErr = errors.New("connection refused")
	b := newBooker(t, store)

	_, err := b.Book(context.Background(), bookingRequest("M", at(10, 0), 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "failed to fetch reservations")
	assert.Zero(t, store.createCalls)
}

func TestCheck_RejectsBadRequests(t *testing.T) {
	b := newBooker(t, newMemoryStore())

	_, err := b.Check(context.Background(), bookingRequest("M", at(10, 0), 0))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = b.Check(context.Background(), bookingRequest("M", at(10, 15), 1))
	assert.ErrorIs(t, err, ErrNotOffered)

	_, err = b.Check(context.Background(), bookingRequest("M", at(23, 0), 1))
	assert.ErrorIs(t, err, ErrNotOffered)

	end, err := b.Check(context.Background(), bookingRequest("M", at(10, 30), 3))
	require.NoError(t, err)
	assert.Equal(t, at(13, 30), end)
}

// Cancelling frees the interval for a new booking.
func TestCancel_FreesInterval(t *testing.T) {
	store := newMemoryStore()
	b := newBooker(t, store)
	ctx := context.Background()

	first, err := b.Book(ctx, bookingRequest("M", at(10, 0), 2))
	require.NoError(t, err)

	require.NoError(t, b.Cancel(ctx, first.ID))

	active, err := store.ListActive(ctx, "M")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = b.Book(ctx, bookingRequest("M", at(10, 0), 2))
	assert.NoError(t, err)

	assert.ErrorIs(t, b.Cancel(ctx, first.ID), ErrNotFound)
}

func TestPreview(t *testing.T) {
	store := newMemoryStore()
	store.seed("M", at(9, 0), at(11, 0))
	store.seed("M", at(9, 0).AddDate(0, 0, 1), at(10, 0).AddDate(0, 0, 1))
	b := newBooker(t, store)

	view, err := b.Preview(context.Background(), "M", day)
	require.NoError(t, err)

	assert.Len(t, view.Reservations, 1, "next day's reservation is excluded")
	status := map[string]availability.SlotStatus{}
	for _, s := range view.Slots {
		status[s.Label] = s.Status
	}
	assert.Equal(t, availability.SlotAvailable, status["08:30"])
	assert.Equal(t, availability.SlotOccupied, status["09:00"])
	assert.Equal(t, availability.SlotOccupied, status["10:30"])
	assert.Equal(t, availability.SlotAvailable, status["11:00"])
}

func TestMine_DerivesCompleted(t *testing.T) {
	store := newMemoryStore()
	b := newBooker(t, store)
	b.now = func() time.Time { return at(12, 0) }
	ctx := context.Background()

	_, err := b.Book(ctx, bookingRequest("M", at(9, 0), 2))
	require.NoError(t, err)
	_, err = b.Book(ctx, bookingRequest("M", at(13, 0), 1))
	require.NoError(t, err)

	views, err := b.Mine(ctx, "resident-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, model.ReservationCompleted, views[0].DisplayStatus)
	assert.Equal(t, model.ReservationActive, views[1].DisplayStatus)
	assert.Equal(t, model.ReservationActive, views[0].Status, "stored status is untouched")

	_, err = b.Mine(ctx, "")
	assert.Error(t, err)
}
