package services

import (
	"context"
	"fmt"
	"time"

	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
)

const invalidationTimeout = 5 * time.Second

// CacheInvalidationService drops cached slot listings when the ledger changes
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for ledger events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelAppointmentUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to appointment updates: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	observability.GetLogger().Info().Msg("Cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit, if it ever ran
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if !s.started {
		return
	}
	<-s.done
	observability.GetLogger().Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.AppointmentEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.AppointmentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidationTimeout)
	defer cancel()

	logger := observability.GetLogger()
	if err := s.InvalidateDoctorSlots(ctx, event.DoctorID); err != nil {
		logger.Warn().Err(err).Str("doctor_id", event.DoctorID).Str("event_id", event.ID).Msg("Failed to invalidate slot cache")
		return
	}
	logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("doctor_id", event.DoctorID).
		Msg("Invalidated slot cache")
}

// InvalidateDoctorSlots drops every cached slot listing of a doctor
func (s *CacheInvalidationService) InvalidateDoctorSlots(ctx context.Context, doctorID string) error {
	if err := s.cache.DeletePattern(ctx, SlotCachePattern(doctorID)); err != nil {
		return fmt.Errorf("failed to invalidate slots of doctor %s: %w", doctorID, err)
	}
	return nil
}
