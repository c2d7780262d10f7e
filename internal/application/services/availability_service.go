package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/medicare/medicare/backend/internal/domain/availability"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

// Directory and slot query bounds
const (
	defaultDoctorPageSize = 50
	maxDoctorPageSize     = 100
	maxHorizonDays        = 366
	defaultSlotCacheTTL   = 30
)

// SlotQuery selects the window and granularity of a slot listing
type SlotQuery struct {
	HorizonDays   int
	StepMinutes   int
	OnlyAvailable bool
}

// SlotView is a generated slot and whether it can still be booked
type SlotView struct {
	Date      entities.Date      `json:"date"`
	Time      entities.ClockTime `json:"time"`
	Available bool               `json:"available"`
}

// AvailabilityConfig holds the slot generation defaults
type AvailabilityConfig struct {
	HorizonDays     int
	StepMinutes     int
	SlotCacheTTLSec int
}

// AvailabilityService serves the doctor directory and derived slot views
type AvailabilityService struct {
	doctors      repositories.DoctorRepository
	appointments repositories.AppointmentRepository
	cache        providers.CacheProvider
	metrics      *observability.Metrics
	cfg          AvailabilityConfig
	now          func() time.Time
}

// NewAvailabilityService creates a new availability service. cache may be nil.
func NewAvailabilityService(
	doctors repositories.DoctorRepository,
	appointments repositories.AppointmentRepository,
	cache providers.CacheProvider,
	cfg AvailabilityConfig,
) *AvailabilityService {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = availability.DefaultHorizonDays
	}
	if cfg.StepMinutes <= 0 {
		cfg.StepMinutes = availability.DefaultStepMinutes
	}
	if cfg.SlotCacheTTLSec <= 0 {
		cfg.SlotCacheTTLSec = defaultSlotCacheTTL
	}
	return &AvailabilityService{
		doctors:      doctors,
		appointments: appointments,
		cache:        cache,
		cfg:          cfg,
		now:          time.Now,
	}
}

// SetMetrics enables cache hit/miss metrics
func (s *AvailabilityService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetClock overrides the time source used to pick "today"
func (s *AvailabilityService) SetClock(now func() time.Time) {
	s.now = now
}

// SlotCacheKey is the cache key of one doctor's slot listing
func SlotCacheKey(doctorID string, today entities.Date, horizonDays, stepMinutes int) string {
	return fmt.Sprintf("slots:%s:%s:%d:%d", doctorID, today, horizonDays, stepMinutes)
}

// SlotCachePattern matches every cached slot listing of a doctor
func SlotCachePattern(doctorID string) string {
	return fmt.Sprintf("slots:%s:*", doctorID)
}

// ListDoctors returns the public doctor directory, newest first
func (s *AvailabilityService) ListDoctors(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultDoctorPageSize
	}
	if filter.Limit > maxDoctorPageSize {
		filter.Limit = maxDoctorPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Specialty = strings.TrimSpace(filter.Specialty)
	return s.doctors.List(ctx, filter)
}

// GetDoctor returns a doctor's public profile
func (s *AvailabilityService) GetDoctor(ctx context.Context, doctorID string) (*entities.Doctor, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, apperrors.NewValidationError("doctor id is required")
	}
	return s.doctors.GetByID(ctx, doctorID)
}

// GetDoctorSlots lists a doctor's generated slots, marking those held by an
// active appointment as unavailable. Listings for the default window are
// cached briefly.
func (s *AvailabilityService) GetDoctorSlots(ctx context.Context, doctorID string, q SlotQuery) ([]SlotView, error) {
	ctx, span := observability.StartSpan(ctx, "AvailabilityService.GetDoctorSlots")
	defer span.End()

	if strings.TrimSpace(doctorID) == "" {
		return nil, apperrors.NewValidationError("doctor id is required")
	}
	if q.HorizonDays < 0 || q.StepMinutes < 0 {
		return nil, apperrors.NewValidationError("horizonDays and stepMinutes must not be negative")
	}
	if q.HorizonDays == 0 {
		q.HorizonDays = s.cfg.HorizonDays
	}
	if q.StepMinutes == 0 {
		q.StepMinutes = s.cfg.StepMinutes
	}
	if q.HorizonDays > maxHorizonDays {
		return nil, apperrors.NewValidationError(fmt.Sprintf("horizonDays must be at most %d", maxHorizonDays))
	}
	if q.StepMinutes > entities.MinutesPerDay {
		return nil, apperrors.NewValidationError("stepMinutes must be at most one day")
	}

	today := entities.DateOf(s.now())
	key := SlotCacheKey(doctorID, today, q.HorizonDays, q.StepMinutes)
	// Only the configured window is cached; callers pick horizon and step freely.
	cacheable := q.HorizonDays == s.cfg.HorizonDays && q.StepMinutes == s.cfg.StepMinutes

	var views []SlotView
	ok := false
	if cacheable {
		views, ok = s.cachedSlots(ctx, key)
	}
	if !ok {
		var err error
		views, err = s.buildSlots(ctx, doctorID, today, q)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		if cacheable {
			s.storeSlots(ctx, key, views)
		}
	}

	if !q.OnlyAvailable {
		return views, nil
	}
	free := make([]SlotView, 0, len(views))
	for _, v := range views {
		if v.Available {
			free = append(free, v)
		}
	}
	return free, nil
}

// UpdateAvailability replaces the calling doctor's weekly pattern
func (s *AvailabilityService) UpdateAvailability(ctx context.Context, identity entities.Identity, rec entities.AvailabilityRecord) (*entities.Doctor, error) {
	if identity.Role != entities.RoleDoctor || identity.ID == "" {
		return nil, apperrors.NewForbiddenError("only doctors can update availability")
	}

	parsed, err := availability.Parse(rec)
	if err != nil {
		return nil, err
	}

	if err := s.doctors.UpdateAvailability(ctx, identity.ID, parsed.Record()); err != nil {
		return nil, err
	}
	s.InvalidateSlots(ctx, identity.ID)

	observability.LoggerFromContext(ctx).Info().
		Str("doctor_id", identity.ID).
		Str("working_days", parsed.WorkingDays.String()).
		Msg("Doctor availability updated")

	return s.doctors.GetByID(ctx, identity.ID)
}

// InvalidateSlots drops every cached slot listing of a doctor
func (s *AvailabilityService) InvalidateSlots(ctx context.Context, doctorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, SlotCachePattern(doctorID)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("doctor_id", doctorID).Msg("Failed to invalidate slot cache")
	}
}

func (s *AvailabilityService) buildSlots(ctx context.Context, doctorID string, today entities.Date, q SlotQuery) ([]SlotView, error) {
	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	slots, err := availability.Generate(doctor.AvailabilityRecord, today, availability.Options{
		HorizonDays: q.HorizonDays,
		StepMinutes: q.StepMinutes,
	})
	if err != nil {
		return nil, err
	}

	last := today.AddDays(q.HorizonDays - 1)
	booked, err := s.appointments.ListByDoctor(ctx, doctorID, repositories.AppointmentFilter{
		ActiveOnly: true,
		FromDate:   &today,
		ToDate:     &last,
	})
	if err != nil {
		return nil, err
	}

	taken := make(map[entities.Slot]struct{}, len(booked))
	for _, appt := range booked {
		taken[entities.Slot{Date: appt.Date, Time: appt.Time}] = struct{}{}
	}

	views := make([]SlotView, 0)
	for slot := range slots {
		_, held := taken[slot]
		views = append(views, SlotView{Date: slot.Date, Time: slot.Time, Available: !held})
	}
	return views, nil
}

func (s *AvailabilityService) cachedSlots(ctx context.Context, key string) ([]SlotView, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.RecordCacheMiss(ctx, s.metrics, key)
		return nil, false
	}
	var views []SlotView
	if err := json.Unmarshal(data, &views); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", key).Msg("Discarding unreadable slot cache entry")
		return nil, false
	}
	observability.RecordCacheHit(ctx, s.metrics, key)
	return views, true
}

func (s *AvailabilityService) storeSlots(ctx context.Context, key string, views []SlotView) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(views)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cfg.SlotCacheTTLSec); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", key).Msg("Failed to cache slots")
	}
}
