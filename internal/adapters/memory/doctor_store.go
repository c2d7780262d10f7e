package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

// DoctorStore keeps doctor accounts in memory
type DoctorStore struct {
	mu      sync.RWMutex
	doctors map[string]*entities.Doctor
	now     func() time.Time
}

// NewDoctorStore creates a store holding the given doctors
func NewDoctorStore(doctors ...*entities.Doctor) *DoctorStore {
	s := &DoctorStore{doctors: make(map[string]*entities.Doctor), now: time.Now}
	for _, d := range doctors {
		s.Put(d)
	}
	return s
}

var _ repositories.DoctorRepository = (*DoctorStore)(nil)

// Put inserts or replaces a doctor, filling in the default weekly pattern
func (s *DoctorStore) Put(doctor *entities.Doctor) {
	d := *doctor
	if d.AvailabilityRecord == (entities.AvailabilityRecord{}) {
		d.AvailabilityRecord = entities.DefaultAvailabilityRecord()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}

	s.mu.Lock()
	s.doctors[d.ID] = &d
	s.mu.Unlock()
}

// GetByID retrieves a doctor by ID
func (s *DoctorStore) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doctors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("doctor not found")
	}
	out := *d
	return &out, nil
}

// List retrieves doctors, newest first
func (s *DoctorStore) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	s.mu.RLock()
	out := make([]*entities.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		if filter.Specialty != "" && !strings.EqualFold(d.Specialty, filter.Specialty) {
			continue
		}
		c := *d
		out = append(out, &c)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *entities.Doctor) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return paginate(out, filter.Offset, filter.Limit), nil
}

// UpdateAvailability replaces a doctor's weekly pattern
func (s *DoctorStore) UpdateAvailability(ctx context.Context, doctorID string, rec entities.AvailabilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.doctors[doctorID]
	if !ok {
		return apperrors.NewNotFoundError("doctor not found")
	}
	d.AvailabilityRecord = rec
	d.UpdatedAt = s.now()
	return nil
}
