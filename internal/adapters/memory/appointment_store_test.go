package memory

import (
	"context"
	"testing"
	"time"

	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newAppointment(id, patient, clock string, created time.Time) *entities.Appointment {
	return &entities.Appointment{
		ID:        id,
		PatientID: patient,
		DoctorID:  "d1",
		Date:      entities.MustParseDate("2024-06-10"),
		Time:      entities.MustParseClockTime(clock),
		Reason:    "checkup",
		Status:    entities.AppointmentStatusConfirmed,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestAppointmentStore_UniqueActiveSlot(t *testing.T) {
	ctx := context.Background()
	store := NewAppointmentStore()

	require.NoError(t, store.Create(ctx, newAppointment("a1", "p1", "10:00", base)))

	err := store.Create(ctx, newAppointment("a2", "p2", "10:00", base))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSlotConflict))

	require.NoError(t, store.Create(ctx, newAppointment("a3", "p2", "10:30", base)))

	// Cancelling frees the slot for a new booking.
	cancelled, err := store.GetByID(ctx, "a1")
	require.NoError(t, err)
	cancelled.Status = entities.AppointmentStatusCancelled
	require.NoError(t, store.Update(ctx, cancelled))

	require.NoError(t, store.Create(ctx, newAppointment("a4", "p2", "10:00", base)))

	active, err := store.ListActiveAt(ctx, cancelled.SlotKey())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a4", active[0].ID)
}

func TestAppointmentStore_UpdateMovesReservation(t *testing.T) {
	ctx := context.Background()
	store := NewAppointmentStore()
	require.NoError(t, store.Create(ctx, newAppointment("a1", "p1", "10:00", base)))
	require.NoError(t, store.Create(ctx, newAppointment("a2", "p2", "11:00", base)))

	moved, err := store.GetByID(ctx, "a1")
	require.NoError(t, err)
	oldKey := moved.SlotKey()

	moved.Time = entities.MustParseClockTime("11:00")
	err = store.Update(ctx, moved)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSlotConflict))

	moved.Time = entities.MustParseClockTime("12:00")
	require.NoError(t, store.Update(ctx, moved))

	freed, err := store.ListActiveAt(ctx, oldKey)
	require.NoError(t, err)
	assert.Empty(t, freed)

	// Updating in place keeps the reservation.
	moved.Notes = "bring reports"
	require.NoError(t, store.Update(ctx, moved))
	held, err := store.ListActiveAt(ctx, moved.SlotKey())
	require.NoError(t, err)
	assert.Len(t, held, 1)
}

func TestAppointmentStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewAppointmentStore()
	appt := newAppointment("a1", "p1", "10:00", base)
	require.NoError(t, store.Create(ctx, appt))

	appt.Reason = "mutated after create"
	got, err := store.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "checkup", got.Reason)

	got.Reason = "mutated after read"
	again, err := store.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "checkup", again.Reason)
}

func TestAppointmentStore_ListByPatient(t *testing.T) {
	ctx := context.Background()
	store := NewAppointmentStore()
	require.NoError(t, store.Create(ctx, newAppointment("a1", "p1", "09:00", base)))
	require.NoError(t, store.Create(ctx, newAppointment("a2", "p1", "09:30", base.Add(time.Hour))))
	require.NoError(t, store.Create(ctx, newAppointment("a3", "p2", "10:00", base.Add(2*time.Hour))))
	require.NoError(t, store.Create(ctx, newAppointment("a4", "p1", "10:30", base.Add(3*time.Hour))))

	got, err := store.ListByPatient(ctx, "p1", repositories.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a4", "a2", "a1"}, []string{got[0].ID, got[1].ID, got[2].ID})

	page, err := store.ListByPatient(ctx, "p1", repositories.AppointmentFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a2", page[0].ID)

	byDoctor, err := store.ListByDoctor(ctx, "d1", repositories.AppointmentFilter{Status: entities.AppointmentStatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, byDoctor)
}

func TestAppointmentStore_NotFound(t *testing.T) {
	store := NewAppointmentStore()

	_, err := store.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	err = store.Update(context.Background(), newAppointment("missing", "p1", "10:00", base))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
