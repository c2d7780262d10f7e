package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/medicare/medicare/backend/internal/adapters/locks"
	"github.com/medicare/medicare/backend/internal/adapters/memory"
	"github.com/medicare/medicare/backend/internal/application/services"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "appt-1", appt.ID)
	assert.Equal(t, "p1", appt.PatientID)
	assert.Equal(t, entities.AppointmentStatusConfirmed, appt.Status)
	assert.Equal(t, "", appt.Notes)
	assert.Equal(t, appt.CreatedAt, appt.UpdatedAt)

	stored, err := f.appointments.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt, stored)
}

func TestBookAppointment_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.BookAppointment(ctx, patientTwo, bookInput("d1", "2024-06-10", "10:00"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSlotConflict))

	_, err = f.svc.BookAppointment(ctx, patientTwo, bookInput("d1", "2024-06-10", "10:30"))
	assert.NoError(t, err)

	// Same time with another doctor is a different slot.
	_, err = f.svc.BookAppointment(ctx, patientTwo, bookInput("d2", "2024-06-10", "10:00"))
	assert.NoError(t, err)
}

func TestBookAppointment_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity entities.Identity
		input    services.BookAppointmentInput
		want     apperrors.ErrorType
	}{
		{"doctor cannot book", doctorOne, bookInput("d1", "2024-06-10", "10:00"), apperrors.ErrorTypeForbidden},
		{"missing doctor", patientOne, bookInput(" ", "2024-06-10", "10:00"), apperrors.ErrorTypeValidation},
		{"missing date", patientOne, services.BookAppointmentInput{DoctorID: "d1", Time: entities.MustParseClockTime("10:00"), Reason: "x"}, apperrors.ErrorTypeValidation},
		{"missing time", patientOne, services.BookAppointmentInput{DoctorID: "d1", Date: entities.MustParseDate("2024-06-10"), Reason: "x"}, apperrors.ErrorTypeValidation},
		{"blank reason", patientOne, services.BookAppointmentInput{DoctorID: "d1", Date: entities.MustParseDate("2024-06-10"), Time: entities.MustParseClockTime("10:00"), Reason: "  "}, apperrors.ErrorTypeValidation},
		{"unknown doctor", patientOne, bookInput("nobody", "2024-06-10", "10:00"), apperrors.ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BookAppointment(ctx, tt.identity, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperrors.TypeOf(err))
		})
	}
}

func TestBookAppointment_ConcurrentRace(t *testing.T) {
	repo := &naiveRepo{}
	doctors := memory.NewDoctorStore(&entities.Doctor{ID: "d1"})
	svc := services.NewAppointmentService(repo, doctors, locks.NewLocalLocker())

	const contenders = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := entities.Identity{ID: "patient-" + string(rune('a'+i)), Role: entities.RolePatient}
			_, err := svc.BookAppointment(context.Background(), identity, bookInput("d1", "2024-06-10", "10:00"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case apperrors.IsType(err, apperrors.ErrorTypeSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, contenders-1, conflicts)
	assert.Equal(t, 1, repo.count())
}

func TestBookAppointment_LockTimeout(t *testing.T) {
	locker := new(MockLockProvider)
	locker.On("Acquire", mock.Anything, "slot:d1:2024-06-10:10:00").Return(nil, providers.ErrLockTimeout)

	svc := services.NewAppointmentService(memory.NewAppointmentStore(), memory.NewDoctorStore(&entities.Doctor{ID: "d1"}), locker)
	_, err := svc.BookAppointment(context.Background(), patientOne, bookInput("d1", "2024-06-10", "10:00"))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.ErrorIs(t, err, providers.ErrLockTimeout)
	locker.AssertExpectations(t)
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)

	events, err := f.bus.Subscribe(ctx, providers.GetUserChannel("d1"))
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, appt.ID, patientTwo)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	_, err = f.svc.CancelAppointment(ctx, "missing", patientOne)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	cancelled, err := f.svc.CancelAppointment(ctx, appt.ID, patientOne)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.UpdatedAt.After(appt.UpdatedAt))
	assert.Equal(t, entities.AppointmentEventCancelled, waitForEvent(t, events).Type)

	t.Run("idempotent", func(t *testing.T) {
		again, err := f.svc.CancelAppointment(ctx, appt.ID, doctorOne)
		require.NoError(t, err)
		assert.Equal(t, cancelled, again)
		assertNoEvent(t, events)
	})

	t.Run("frees the slot", func(t *testing.T) {
		_, err := f.svc.BookAppointment(ctx, patientTwo, bookInput("d1", "2024-06-10", "10:00"))
		assert.NoError(t, err)
	})
}

func TestCancelAppointment_Completed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)

	completed := entities.AppointmentStatusCompleted
	_, err = f.svc.UpdateAppointment(ctx, appt.ID, doctorOne, services.AppointmentPatch{Status: &completed})
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, appt.ID, patientOne)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestRescheduleAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.BookAppointment(ctx, patientTwo, bookInput("d1", "2024-06-10", "11:00"))
	require.NoError(t, err)

	t.Run("same slot is a no-op", func(t *testing.T) {
		same, err := f.svc.RescheduleAppointment(ctx, first.ID, patientOne, first.Date, first.Time)
		require.NoError(t, err)
		assert.Equal(t, first, same)
	})

	t.Run("occupied slot", func(t *testing.T) {
		_, err := f.svc.RescheduleAppointment(ctx, first.ID, patientOne, first.Date, entities.MustParseClockTime("11:00"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSlotConflict))
	})

	t.Run("not the owner", func(t *testing.T) {
		_, err := f.svc.RescheduleAppointment(ctx, first.ID, patientTwo, first.Date, entities.MustParseClockTime("12:00"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.RescheduleAppointment(ctx, first.ID, patientOne, entities.Date{}, entities.MustParseClockTime("12:00"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("free slot", func(t *testing.T) {
		events, err := f.bus.Subscribe(ctx, providers.GetUserChannel("p1"))
		require.NoError(t, err)

		moved, err := f.svc.RescheduleAppointment(ctx, first.ID, patientOne, entities.MustParseDate("2024-06-11"), entities.MustParseClockTime("09:00"))
		require.NoError(t, err)
		assert.Equal(t, "2024-06-11", moved.Date.String())
		assert.Equal(t, "09:00", moved.Time.String())
		assert.Equal(t, first.Status, moved.Status)

		event := waitForEvent(t, events)
		assert.Equal(t, entities.AppointmentEventRescheduled, event.Type)
		require.NotNil(t, event.PreviousDate)
		assert.Equal(t, first.Date, *event.PreviousDate)
		assert.Equal(t, first.Time, *event.PreviousTime)

		freed, err := f.svc.BookAppointment(ctx, patientTwo, bookInput("d1", "2024-06-10", "10:00"))
		require.NoError(t, err)
		assert.Equal(t, "p2", freed.PatientID)
	})

	t.Run("cancelled cannot move", func(t *testing.T) {
		_, err := f.svc.CancelAppointment(ctx, first.ID, patientOne)
		require.NoError(t, err)
		_, err = f.svc.RescheduleAppointment(ctx, first.ID, patientOne, entities.MustParseDate("2024-06-12"), entities.MustParseClockTime("09:00"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestUpdateAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.BookAppointment(ctx, patientTwo, bookInput("d1", "2024-06-10", "11:00"))
	require.NoError(t, err)

	t.Run("time change is clash checked", func(t *testing.T) {
		clash := entities.MustParseClockTime("11:00")
		_, err := f.svc.UpdateAppointment(ctx, first.ID, patientOne, services.AppointmentPatch{Time: &clash})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSlotConflict))

		stored, err := f.appointments.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "10:00", stored.Time.String())
	})

	t.Run("notes and reason", func(t *testing.T) {
		notes, reason := "bring x-rays", " follow-up "
		updated, err := f.svc.UpdateAppointment(ctx, first.ID, doctorOne, services.AppointmentPatch{Notes: &notes, Reason: &reason})
		require.NoError(t, err)
		assert.Equal(t, "bring x-rays", updated.Notes)
		assert.Equal(t, "follow-up", updated.Reason)
	})

	t.Run("empty reason", func(t *testing.T) {
		blank := ""
		_, err := f.svc.UpdateAppointment(ctx, first.ID, patientOne, services.AppointmentPatch{Reason: &blank})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := f.svc.UpdateAppointment(ctx, first.ID, patientOne, services.AppointmentPatch{})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("illegal transition", func(t *testing.T) {
		pending := entities.AppointmentStatusPending
		_, err := f.svc.UpdateAppointment(ctx, first.ID, patientOne, services.AppointmentPatch{Status: &pending})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("date change to a free slot", func(t *testing.T) {
		date := entities.MustParseDate("2024-06-12")
		updated, err := f.svc.UpdateAppointment(ctx, first.ID, patientOne, services.AppointmentPatch{Date: &date})
		require.NoError(t, err)
		assert.Equal(t, "2024-06-12", updated.Date.String())
		assert.Equal(t, "10:00", updated.Time.String())
	})

	t.Run("completed cannot move", func(t *testing.T) {
		completed := entities.AppointmentStatusCompleted
		_, err := f.svc.UpdateAppointment(ctx, first.ID, doctorOne, services.AppointmentPatch{Status: &completed})
		require.NoError(t, err)

		date := entities.MustParseDate("2024-06-13")
		_, err = f.svc.UpdateAppointment(ctx, first.ID, doctorOne, services.AppointmentPatch{Date: &date})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestListMyAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)
	a2, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d2", "2024-06-10", "10:00"))
	require.NoError(t, err)
	a3, err := f.svc.BookAppointment(ctx, patientTwo, bookInput("d1", "2024-06-10", "11:00"))
	require.NoError(t, err)

	mine, err := f.svc.ListMyAppointments(ctx, patientOne, repositories.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, []string{a2.ID, a1.ID}, []string{mine[0].ID, mine[1].ID})

	theirs, err := f.svc.ListMyAppointments(ctx, doctorOne, repositories.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, theirs, 2)
	assert.Equal(t, a3.ID, theirs[0].ID)

	_, err = f.svc.ListMyAppointments(ctx, entities.Identity{ID: "x", Role: "admin"}, repositories.AppointmentFilter{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}

func TestGetAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)

	got, err := f.svc.GetAppointment(ctx, appt.ID, doctorOne)
	require.NoError(t, err)
	assert.Equal(t, appt, got)

	_, err = f.svc.GetAppointment(ctx, appt.ID, patientTwo)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	_, err = f.svc.GetAppointment(ctx, appt.ID, entities.Identity{ID: "d2", Role: entities.RoleDoctor})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}

func TestBookAppointment_PublishesToEveryChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updates, err := f.bus.Subscribe(ctx, providers.EventChannelAppointmentUpdates)
	require.NoError(t, err)
	patient, err := f.bus.Subscribe(ctx, providers.GetUserChannel("p1"))
	require.NoError(t, err)
	doctor, err := f.bus.Subscribe(ctx, providers.GetUserChannel("d1"))
	require.NoError(t, err)
	other, err := f.bus.Subscribe(ctx, providers.GetUserChannel("p2"))
	require.NoError(t, err)

	appt, err := f.svc.BookAppointment(ctx, patientOne, bookInput("d1", "2024-06-10", "10:00"))
	require.NoError(t, err)

	for _, ch := range []<-chan *entities.AppointmentEvent{updates, patient, doctor} {
		event := waitForEvent(t, ch)
		assert.Equal(t, entities.AppointmentEventBooked, event.Type)
		assert.Equal(t, appt.ID, event.AppointmentID)
	}
	assertNoEvent(t, other)
}
