package services

import (
	"context"
	"fmt"
	"time"

	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
)

const warmDoctorLimit = 50

// CacheWarmingService pre-computes slot listings for the first page of the
// doctor directory
type CacheWarmingService struct {
	availability *AvailabilityService
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(availability *AvailabilityService) *CacheWarmingService {
	return &CacheWarmingService{availability: availability}
}

// WarmCache fills the slot cache, returning how many doctors were warmed
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx)

	doctors, err := s.availability.ListDoctors(ctx, repositories.DoctorFilter{Limit: warmDoctorLimit})
	if err != nil {
		return 0, fmt.Errorf("failed to list doctors: %w", err)
	}

	warmed := 0
	for _, doctor := range doctors {
		if _, err := s.availability.GetDoctorSlots(ctx, doctor.ID, SlotQuery{}); err != nil {
			logger.Warn().Err(err).Str("doctor_id", doctor.ID).Msg("Failed to warm slot cache")
			continue
		}
		warmed++
	}

	logger.Info().Int("doctors", warmed).Msg("Slot cache warmed")
	return warmed, nil
}

// StartPeriodicWarming warms once, then again every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	logger := observability.GetLogger()
	if _, err := s.WarmCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil {
					logger.Warn().Err(err).Msg("Periodic cache warming failed")
				}
			}
		}
	}()
	logger.Info().Dur("interval", interval).Msg("Started periodic cache warming")
}
