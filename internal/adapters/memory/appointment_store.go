// Package memory holds in-process repository and cache implementations used
// with STORAGE_DRIVER=memory and by service tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

// AppointmentStore keeps appointments in memory and indexes active slots so a
// second live booking on a slot fails the same way the database index does.
type AppointmentStore struct {
	mu     sync.RWMutex
	byID   map[string]*entities.Appointment
	active map[entities.SlotKey]string
}

// NewAppointmentStore creates an empty store
func NewAppointmentStore() *AppointmentStore {
	return &AppointmentStore{
		byID:   make(map[string]*entities.Appointment),
		active: make(map[entities.SlotKey]string),
	}
}

var _ repositories.AppointmentRepository = (*AppointmentStore)(nil)

// Create inserts a copy of appointment
func (s *AppointmentStore) Create(ctx context.Context, appointment *entities.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[appointment.ID]; exists {
		return apperrors.NewInternalError("duplicate appointment id", nil)
	}
	key := appointment.SlotKey()
	if appointment.Status.IsActive() {
		if _, taken := s.active[key]; taken {
			return apperrors.NewSlotConflictError("time slot already booked")
		}
		s.active[key] = appointment.ID
	}

	stored := *appointment
	s.byID[appointment.ID] = &stored
	return nil
}

// GetByID retrieves an appointment by ID
func (s *AppointmentStore) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("appointment not found")
	}
	out := *appt
	return &out, nil
}

// Update replaces the stored appointment, moving its slot reservation
func (s *AppointmentStore) Update(ctx context.Context, appointment *entities.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[appointment.ID]
	if !ok {
		return apperrors.NewNotFoundError("appointment not found")
	}

	newKey := appointment.SlotKey()
	if appointment.Status.IsActive() {
		if holder, taken := s.active[newKey]; taken && holder != appointment.ID {
			return apperrors.NewSlotConflictError("time slot already booked")
		}
	}

	oldKey := current.SlotKey()
	if s.active[oldKey] == appointment.ID {
		delete(s.active, oldKey)
	}
	if appointment.Status.IsActive() {
		s.active[newKey] = appointment.ID
	}

	stored := *appointment
	s.byID[appointment.ID] = &stored
	return nil
}

// ListByPatient retrieves a patient's appointments, newest first
func (s *AppointmentStore) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return s.list(func(a *entities.Appointment) bool { return a.PatientID == patientID }, filter), nil
}

// ListByDoctor retrieves a doctor's appointments, newest first
func (s *AppointmentStore) ListByDoctor(ctx context.Context, doctorID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return s.list(func(a *entities.Appointment) bool { return a.DoctorID == doctorID }, filter), nil
}

// ListActiveAt retrieves the live appointment holding key, if any
func (s *AppointmentStore) ListActiveAt(ctx context.Context, key entities.SlotKey) ([]*entities.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.active[key]
	if !ok {
		return []*entities.Appointment{}, nil
	}
	out := *s.byID[id]
	return []*entities.Appointment{&out}, nil
}

func (s *AppointmentStore) list(owner func(*entities.Appointment) bool, filter repositories.AppointmentFilter) []*entities.Appointment {
	s.mu.RLock()
	out := make([]*entities.Appointment, 0)
	for _, appt := range s.byID {
		if owner(appt) && filter.Matches(appt) {
			c := *appt
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *entities.Appointment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	return paginate(out, filter.Offset, filter.Limit)
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
