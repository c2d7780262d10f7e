package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
)

// CachedDoctorAdapter wraps a DoctorRepository with read-through caching
type CachedDoctorAdapter struct {
	adapter repositories.DoctorRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedDoctorAdapter creates a new cached doctor adapter. metrics may be nil.
func NewCachedDoctorAdapter(adapter repositories.DoctorRepository, cache providers.CacheProvider, metrics *observability.Metrics) repositories.DoctorRepository {
	return &CachedDoctorAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

// Cache TTLs (in seconds)
const (
	doctorByIDTTL   = 300
	doctorsListTTL  = 180
	doctorsListGlob = "doctors:list:*"
)

// DoctorCacheKey is the cache key of a single doctor profile
func DoctorCacheKey(id string) string {
	return fmt.Sprintf("doctor:%s", id)
}

func doctorsListCacheKey(filter repositories.DoctorFilter) string {
	return fmt.Sprintf("doctors:list:%s:%d:%d", filter.Specialty, filter.Limit, filter.Offset)
}

// GetByID retrieves a doctor by ID with caching
func (a *CachedDoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	cacheKey := DoctorCacheKey(id)

	var doctor entities.Doctor
	if a.readCache(ctx, cacheKey, &doctor) {
		return &doctor, nil
	}

	fetched, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.writeCache(ctx, cacheKey, fetched, doctorByIDTTL)
	return fetched, nil
}

// List retrieves doctors with caching
func (a *CachedDoctorAdapter) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	cacheKey := doctorsListCacheKey(filter)

	var doctors []*entities.Doctor
	if a.readCache(ctx, cacheKey, &doctors) {
		return doctors, nil
	}

	fetched, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	a.writeCache(ctx, cacheKey, fetched, doctorsListTTL)
	return fetched, nil
}

// UpdateAvailability writes through and evicts every cached view of the doctor
func (a *CachedDoctorAdapter) UpdateAvailability(ctx context.Context, doctorID string, rec entities.AvailabilityRecord) error {
	if err := a.adapter.UpdateAvailability(ctx, doctorID, rec); err != nil {
		return err
	}

	logger := observability.LoggerFromContext(ctx)
	if err := a.cache.Delete(ctx, DoctorCacheKey(doctorID)); err != nil {
		logger.Warn().Err(err).Str("doctor_id", doctorID).Msg("Failed to evict cached doctor")
	}
	if err := a.cache.DeletePattern(ctx, doctorsListGlob); err != nil {
		logger.Warn().Err(err).Msg("Failed to evict cached doctor lists")
	}
	return nil
}

func (a *CachedDoctorAdapter) readCache(ctx context.Context, key string, dest interface{}) bool {
	cached, err := a.cache.Get(ctx, key)
	if err != nil {
		observability.RecordCacheMiss(ctx, a.metrics, key)
		return false
	}
	if err := json.Unmarshal(cached, dest); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", key).Msg("Failed to unmarshal cached doctor data")
		observability.RecordCacheMiss(ctx, a.metrics, key)
		return false
	}
	observability.RecordCacheHit(ctx, a.metrics, key)
	return true
}

func (a *CachedDoctorAdapter) writeCache(ctx context.Context, key string, value interface{}, ttl int) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("cache_key", key).Msg("Failed to cache doctor data")
	}
}
