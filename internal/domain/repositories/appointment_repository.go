package repositories

import (
	"context"

	"github.com/medicare/medicare/backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations.
// Appointments are never deleted; cancellation is a status update.
type AppointmentRepository interface {
	// Create inserts a new appointment. Implementations must reject a second
	// active appointment on the same slot with a slot conflict error.
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// Update persists every mutable field of an appointment
	Update(ctx context.Context, appointment *entities.Appointment) error

	// ListByPatient retrieves a patient's appointments, newest first
	ListByPatient(ctx context.Context, patientID string, filter AppointmentFilter) ([]*entities.Appointment, error)

	// ListByDoctor retrieves a doctor's appointments, newest first
	ListByDoctor(ctx context.Context, doctorID string, filter AppointmentFilter) ([]*entities.Appointment, error)

	// ListActiveAt retrieves the non-cancelled appointments holding a slot
	ListActiveAt(ctx context.Context, key entities.SlotKey) ([]*entities.Appointment, error)
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	Status     entities.AppointmentStatus
	FromDate   *entities.Date
	ToDate     *entities.Date
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Matches reports whether appt passes the filter, ignoring paging.
func (f AppointmentFilter) Matches(appt *entities.Appointment) bool {
	if f.Status != "" && appt.Status != f.Status {
		return false
	}
	if f.ActiveOnly && !appt.Status.IsActive() {
		return false
	}
	if f.FromDate != nil && appt.Date.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && f.ToDate.Before(appt.Date) {
		return false
	}
	return true
}
