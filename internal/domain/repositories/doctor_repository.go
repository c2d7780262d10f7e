package repositories

import (
	"context"

	"github.com/medicare/medicare/backend/internal/domain/entities"
)

// DoctorRepository reads doctor accounts and their weekly availability
type DoctorRepository interface {
	// GetByID retrieves a doctor by ID. Accounts that are not doctors are not found.
	GetByID(ctx context.Context, id string) (*entities.Doctor, error)

	// List retrieves doctors, newest first
	List(ctx context.Context, filter DoctorFilter) ([]*entities.Doctor, error)

	// UpdateAvailability replaces a doctor's stored weekly pattern
	UpdateAvailability(ctx context.Context, doctorID string, rec entities.AvailabilityRecord) error
}

// DoctorFilter defines filters for listing doctors
type DoctorFilter struct {
	Specialty string
	Limit     int
	Offset    int
}
