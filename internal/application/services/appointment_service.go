package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/policy"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLockWait bounds how long a ledger operation waits for a lock
const DefaultLockWait = 3 * time.Second

// BookAppointmentInput is a patient's booking request
type BookAppointmentInput struct {
	DoctorID string
	Date     entities.Date
	Time     entities.ClockTime
	Reason   string
	Notes    string
}

// AppointmentPatch carries the fields of a generic update. Nil fields are left untouched.
type AppointmentPatch struct {
	Status *entities.AppointmentStatus
	Date   *entities.Date
	Time   *entities.ClockTime
	Reason *string
	Notes  *string
}

// IsEmpty reports whether the patch changes nothing
func (p AppointmentPatch) IsEmpty() bool {
	return p.Status == nil && p.Date == nil && p.Time == nil && p.Reason == nil && p.Notes == nil
}

// AppointmentService is the booking ledger. It is the only writer of
// appointment state.
type AppointmentService struct {
	repo     repositories.AppointmentRepository
	doctors  repositories.DoctorRepository
	locker   providers.LockProvider
	eventBus providers.EventBus
	metrics  *observability.Metrics
	lockWait time.Duration
	now      func() time.Time
	newID    func() string
}

// AppointmentServiceOption customises an AppointmentService
type AppointmentServiceOption func(*AppointmentService)

// WithClock overrides the time source
func WithClock(now func() time.Time) AppointmentServiceOption {
	return func(s *AppointmentService) { s.now = now }
}

// WithIDGenerator overrides appointment id generation
func WithIDGenerator(newID func() string) AppointmentServiceOption {
	return func(s *AppointmentService) { s.newID = newID }
}

// WithLockWait overrides DefaultLockWait
func WithLockWait(d time.Duration) AppointmentServiceOption {
	return func(s *AppointmentService) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(
	repo repositories.AppointmentRepository,
	doctors repositories.DoctorRepository,
	locker providers.LockProvider,
	opts ...AppointmentServiceOption,
) *AppointmentService {
	s := &AppointmentService{
		repo:     repo,
		doctors:  doctors,
		locker:   locker,
		lockWait: DefaultLockWait,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventBus enables publishing of ledger events
func (s *AppointmentService) SetEventBus(bus providers.EventBus) {
	s.eventBus = bus
}

// SetMetrics enables ledger metrics
func (s *AppointmentService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// BookAppointment books a free slot for the calling patient
func (s *AppointmentService) BookAppointment(ctx context.Context, identity entities.Identity, input BookAppointmentInput) (appt *entities.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.BookAppointment")
	defer span.End()
	defer func() { s.finish(ctx, "book", err) }()

	if !policy.CanBook(identity) {
		return nil, apperrors.NewForbiddenError("only patients can book appointments")
	}

	input.DoctorID = strings.TrimSpace(input.DoctorID)
	input.Reason = strings.TrimSpace(input.Reason)
	switch {
	case input.DoctorID == "":
		return nil, apperrors.NewValidationError("doctorId is required")
	case input.Date.IsZero():
		return nil, apperrors.NewValidationError("appointmentDate is required")
	case input.Time.IsZero():
		return nil, apperrors.NewValidationError("appointmentTime is required")
	case input.Reason == "":
		return nil, apperrors.NewValidationError("reason is required")
	}

	if _, err := s.doctors.GetByID(ctx, input.DoctorID); err != nil {
		return nil, err
	}

	key := entities.SlotKey{DoctorID: input.DoctorID, Date: input.Date, Time: input.Time}
	observability.SetSpanAttributes(span, attribute.String("slot.key", key.String()))

	err = s.withLock(ctx, "slot", slotLockKey(key), func() error {
		if err := s.ensureFree(ctx, key, ""); err != nil {
			return err
		}

		now := s.now().UTC()
		appt = &entities.Appointment{
			ID:        s.newID(),
			PatientID: identity.ID,
			DoctorID:  input.DoctorID,
			Date:      input.Date,
			Time:      input.Time,
			Reason:    input.Reason,
			Notes:     input.Notes,
			Status:    entities.AppointmentStatusConfirmed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewAppointmentEvent(entities.AppointmentEventBooked, appt, appt.CreatedAt))
	return appt, nil
}

// CancelAppointment cancels an appointment. Cancelling twice is a no-op.
func (s *AppointmentService) CancelAppointment(ctx context.Context, id string, identity entities.Identity) (appt *entities.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.CancelAppointment")
	defer span.End()
	defer func() { s.finish(ctx, "cancel", err) }()

	changed := false
	err = s.withLock(ctx, "appointment", appointmentLockKey(id), func() error {
		current, err := s.loadOwned(ctx, id, identity)
		if err != nil {
			return err
		}
		appt = current

		switch current.Status {
		case entities.AppointmentStatusCancelled:
			return nil
		case entities.AppointmentStatusCompleted:
			return apperrors.NewValidationError("completed appointments cannot be cancelled")
		}

		updated := *current
		updated.Status = entities.AppointmentStatusCancelled
		updated.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, &updated); err != nil {
			return err
		}
		appt = &updated
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, entities.NewAppointmentEvent(entities.AppointmentEventCancelled, appt, appt.UpdatedAt))
	}
	return appt, nil
}

// RescheduleAppointment moves an active appointment to another slot of the same doctor
func (s *AppointmentService) RescheduleAppointment(ctx context.Context, id string, identity entities.Identity, newDate entities.Date, newTime entities.ClockTime) (appt *entities.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.RescheduleAppointment")
	defer span.End()
	defer func() { s.finish(ctx, "reschedule", err) }()

	if newDate.IsZero() {
		return nil, apperrors.NewValidationError("appointmentDate is required")
	}
	if newTime.IsZero() {
		return nil, apperrors.NewValidationError("appointmentTime is required")
	}

	var previous entities.SlotKey
	moved := false
	err = s.withLock(ctx, "appointment", appointmentLockKey(id), func() error {
		current, err := s.loadOwned(ctx, id, identity)
		if err != nil {
			return err
		}
		appt = current

		if !policy.IsReschedulable(current.Status) {
			return apperrors.NewValidationError(fmt.Sprintf("%s appointments cannot be rescheduled", current.Status))
		}

		previous = current.SlotKey()
		target := entities.SlotKey{DoctorID: current.DoctorID, Date: newDate, Time: newTime}
		if target == previous {
			return nil
		}

		updated := *current
		updated.Date = newDate
		updated.Time = newTime
		updated.UpdatedAt = s.now().UTC()
		if err := s.commitMove(ctx, &updated); err != nil {
			return err
		}
		appt = &updated
		moved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.publish(ctx, entities.NewAppointmentEvent(entities.AppointmentEventRescheduled, appt, appt.UpdatedAt).WithPrevious(previous))
	}
	return appt, nil
}

// UpdateAppointment applies an owner's patch. Date or time changes are
// clash-checked exactly like a reschedule.
func (s *AppointmentService) UpdateAppointment(ctx context.Context, id string, identity entities.Identity, patch AppointmentPatch) (appt *entities.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.UpdateAppointment")
	defer span.End()
	defer func() { s.finish(ctx, "update", err) }()

	if patch.IsEmpty() {
		return nil, apperrors.NewValidationError("no fields to update")
	}
	if patch.Reason != nil && strings.TrimSpace(*patch.Reason) == "" {
		return nil, apperrors.NewValidationError("reason must not be empty")
	}
	if patch.Date != nil && patch.Date.IsZero() {
		return nil, apperrors.NewValidationError("appointmentDate must not be empty")
	}
	if patch.Time != nil && patch.Time.IsZero() {
		return nil, apperrors.NewValidationError("appointmentTime must not be empty")
	}

	var previous entities.SlotKey
	moved := false
	err = s.withLock(ctx, "appointment", appointmentLockKey(id), func() error {
		current, err := s.loadOwned(ctx, id, identity)
		if err != nil {
			return err
		}

		updated := *current
		if patch.Status != nil {
			if !policy.CanTransition(current.Status, *patch.Status) {
				return apperrors.NewValidationError(fmt.Sprintf("cannot change status from %s to %s", current.Status, *patch.Status))
			}
			updated.Status = *patch.Status
		}
		if patch.Date != nil {
			updated.Date = *patch.Date
		}
		if patch.Time != nil {
			updated.Time = *patch.Time
		}
		if patch.Reason != nil {
			updated.Reason = strings.TrimSpace(*patch.Reason)
		}
		if patch.Notes != nil {
			updated.Notes = *patch.Notes
		}
		updated.UpdatedAt = s.now().UTC()

		previous = current.SlotKey()
		moved = updated.SlotKey() != previous
		if moved && !policy.IsReschedulable(current.Status) {
			return apperrors.NewValidationError(fmt.Sprintf("%s appointments cannot be rescheduled", current.Status))
		}

		if moved && updated.Status.IsActive() {
			err = s.commitMove(ctx, &updated)
		} else {
			err = s.repo.Update(ctx, &updated)
		}
		if err != nil {
			return err
		}
		appt = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := entities.NewAppointmentEvent(entities.AppointmentEventUpdated, appt, appt.UpdatedAt)
	if moved {
		event.WithPrevious(previous)
	}
	s.publish(ctx, event)
	return appt, nil
}

// ListMyAppointments lists the caller's appointments, newest first
func (s *AppointmentService) ListMyAppointments(ctx context.Context, identity entities.Identity, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	if identity.ID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}

	switch identity.Role {
	case entities.RolePatient:
		return s.repo.ListByPatient(ctx, identity.ID, filter)
	case entities.RoleDoctor:
		return s.repo.ListByDoctor(ctx, identity.ID, filter)
	default:
		return nil, apperrors.NewForbiddenError("unsupported role")
	}
}

// GetAppointment returns an appointment to its patient or doctor
func (s *AppointmentService) GetAppointment(ctx context.Context, id string, identity entities.Identity) (*entities.Appointment, error) {
	return s.loadOwned(ctx, id, identity)
}

func (s *AppointmentService) loadOwned(ctx context.Context, id string, identity entities.Identity) (*entities.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("appointment id is required")
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.IsOwner(identity, appt) {
		return nil, apperrors.NewForbiddenError("not your appointment")
	}
	return appt, nil
}

// commitMove writes updated under the lock of its new slot. The caller holds
// the appointment lock.
func (s *AppointmentService) commitMove(ctx context.Context, updated *entities.Appointment) error {
	key := updated.SlotKey()
	return s.withLock(ctx, "slot", slotLockKey(key), func() error {
		if err := s.ensureFree(ctx, key, updated.ID); err != nil {
			return err
		}
		return s.repo.Update(ctx, updated)
	})
}

func (s *AppointmentService) ensureFree(ctx context.Context, key entities.SlotKey, excludeID string) error {
	existing, err := s.repo.ListActiveAt(ctx, key)
	if err != nil {
		return err
	}
	if policy.Clashes(key, existing, excludeID) {
		return apperrors.NewSlotConflictError("time slot already booked")
	}
	return nil
}

func (s *AppointmentService) withLock(ctx context.Context, scope, key string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	start := time.Now()
	release, err := s.locker.Acquire(lockCtx, key)
	cancel()
	observability.RecordLockWait(ctx, s.metrics, scope, time.Since(start))
	if err != nil {
		return apperrors.NewInternalError("could not acquire "+scope+" lock", err)
	}
	defer release()

	return fn()
}

// publish fans a committed event out to the shared and per-user channels.
// Failures are logged; the mutation has already been committed.
func (s *AppointmentService) publish(ctx context.Context, event *entities.AppointmentEvent) {
	if s.eventBus == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	logger := observability.LoggerFromContext(ctx)
	for _, channel := range providers.ChannelsFor(event) {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			logger.Warn().Err(err).
				Str("channel", channel).
				Str("appointment_id", event.AppointmentID).
				Msg("Failed to publish appointment event")
		}
	}
}

func (s *AppointmentService) finish(ctx context.Context, op string, err error) {
	outcome := "OK"
	if err != nil {
		outcome = string(apperrors.TypeOf(err))
	}
	observability.RecordLedgerOp(ctx, s.metrics, op, outcome)

	if err != nil && apperrors.IsType(err, apperrors.ErrorTypeInternal) {
		observability.LoggerFromContext(ctx).Error().Err(err).Str("operation", op).Msg("Ledger operation failed")
	}
}

func appointmentLockKey(id string) string {
	return "appointment:" + id
}

func slotLockKey(key entities.SlotKey) string {
	return "slot:" + key.String()
}
