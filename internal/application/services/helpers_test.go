package services_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medicare/medicare/backend/internal/adapters/events"
	"github.com/medicare/medicare/backend/internal/adapters/locks"
	"github.com/medicare/medicare/backend/internal/adapters/memory"
	"github.com/medicare/medicare/backend/internal/application/services"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/stretchr/testify/mock"
)

var (
	patientOne = entities.Identity{ID: "p1", Role: entities.RolePatient}
	patientTwo = entities.Identity{ID: "p2", Role: entities.RolePatient}
	doctorOne  = entities.Identity{ID: "d1", Role: entities.RoleDoctor}
	startTime  = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
)

// steppingClock advances one second per reading so createdAt ordering is strict
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("appt-%d", n.Add(1))
	}
}

type fixture struct {
	appointments *memory.AppointmentStore
	doctors      *memory.DoctorStore
	bus          *events.MemoryEventBus
	svc          *services.AppointmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		appointments: memory.NewAppointmentStore(),
		doctors: memory.NewDoctorStore(
			&entities.Doctor{ID: "d1", FirstName: "Greg", LastName: "House", Specialty: "diagnostics"},
			&entities.Doctor{ID: "d2", FirstName: "Lisa", LastName: "Cuddy", Specialty: "endocrinology"},
		),
		bus: events.NewMemoryEventBus(),
	}
	clock := &steppingClock{now: startTime}
	f.svc = services.NewAppointmentService(f.appointments, f.doctors, locks.NewLocalLocker(),
		services.WithClock(clock.Now),
		services.WithIDGenerator(sequentialIDs()),
	)
	f.svc.SetEventBus(f.bus)
	t.Cleanup(func() { f.bus.Close() })
	return f
}

func bookInput(doctorID, date, clock string) services.BookAppointmentInput {
	return services.BookAppointmentInput{
		DoctorID: doctorID,
		Date:     entities.MustParseDate(date),
		Time:     entities.MustParseClockTime(clock),
		Reason:   "checkup",
	}
}

func waitForEvent(t *testing.T, ch <-chan *entities.AppointmentEvent) *entities.AppointmentEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertNoEvent(t *testing.T, ch <-chan *entities.AppointmentEvent) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event %s", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

// naiveRepo stores appointments without any uniqueness checks and widens the
// check-then-insert window, so only the ledger lock prevents double booking.
type naiveRepo struct {
	repositories.AppointmentRepository
	mu    sync.Mutex
	items []*entities.Appointment
}

func (r *naiveRepo) Create(ctx context.Context, appointment *entities.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *appointment
	r.items = append(r.items, &c)
	return nil
}

func (r *naiveRepo) ListActiveAt(ctx context.Context, key entities.SlotKey) ([]*entities.Appointment, error) {
	time.Sleep(2 * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.Appointment, 0)
	for _, a := range r.items {
		if a.SlotKey() == key && a.Status.IsActive() {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *naiveRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// MockLockProvider for testing lock failures
type MockLockProvider struct {
	mock.Mock
}

func (m *MockLockProvider) Acquire(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}
