package database

import (
	"context"
	"testing"

	"github.com/medicare/medicare/backend/internal/adapters/memory"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDoctorRepo struct {
	repositories.DoctorRepository
	gets  int
	lists int
}

func (r *countingDoctorRepo) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	r.gets++
	return r.DoctorRepository.GetByID(ctx, id)
}

func (r *countingDoctorRepo) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	r.lists++
	return r.DoctorRepository.List(ctx, filter)
}

func TestCachedDoctorAdapter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDoctorStore(&entities.Doctor{ID: "d1", FirstName: "Greg", Specialty: "diagnostics"})
	inner := &countingDoctorRepo{DoctorRepository: store}
	cache := memory.NewCache()
	adapter := NewCachedDoctorAdapter(inner, cache, nil)

	first, err := adapter.GetByID(ctx, "d1")
	require.NoError(t, err)
	second, err := adapter.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, first.FirstName, second.FirstName)
	assert.Equal(t, entities.DefaultWorkingDays, second.WorkingDays)

	_, err = adapter.List(ctx, repositories.DoctorFilter{Limit: 10})
	require.NoError(t, err)
	_, err = adapter.List(ctx, repositories.DoctorFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.lists)

	rec := entities.AvailabilityRecord{WorkingDays: "saturday", StartTime: "10:00", EndTime: "14:00"}
	require.NoError(t, adapter.UpdateAvailability(ctx, "d1", rec))

	exists, err := cache.Exists(ctx, DoctorCacheKey("d1"))
	require.NoError(t, err)
	assert.False(t, exists)

	updated, err := adapter.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, rec, updated.AvailabilityRecord)
	assert.Equal(t, 2, inner.gets)

	_, err = adapter.List(ctx, repositories.DoctorFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.lists)
}

func TestCachedDoctorAdapter_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingDoctorRepo{DoctorRepository: memory.NewDoctorStore()}
	adapter := NewCachedDoctorAdapter(inner, memory.NewCache(), nil)

	_, err := adapter.GetByID(ctx, "missing")
	assert.Error(t, err)
	_, err = adapter.GetByID(ctx, "missing")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.gets)
}
