//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/clients/postgres"
	"github.com/medicare/medicare/backend/internal/testutil"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertUser(t *testing.T, client *postgres.Client, role entities.Role, specialty string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := client.DB().Exec(
		`INSERT INTO users (id, role, email, first_name, last_name, specialty) VALUES ($1, $2, $3, 'Test', 'User', $4)`,
		id, string(role), id+"@medicare.test", specialty,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = client.DB().Exec(`DELETE FROM appointments WHERE patient_id = $1 OR doctor_id = $1`, id)
		_, _ = client.DB().Exec(`DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestAppointmentAdapterIntegration(t *testing.T) {
	client := testutil.PostgresClient(t)
	repo := NewAppointmentAdapter(client, nil)
	ctx := context.Background()

	doctorID := insertUser(t, client, entities.RoleDoctor, "cardiology")
	patientID := insertUser(t, client, entities.RolePatient, "")
	now := time.Now().UTC().Truncate(time.Second)

	newAppt := func() *entities.Appointment {
		return &entities.Appointment{
			ID:        uuid.NewString(),
			PatientID: patientID,
			DoctorID:  doctorID,
			Date:      entities.MustParseDate("2030-01-07"),
			Time:      entities.MustParseClockTime("10:00"),
			Reason:    "checkup",
			Status:    entities.AppointmentStatusConfirmed,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	first := newAppt()
	require.NoError(t, repo.Create(ctx, first))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.SlotKey(), got.SlotKey())
	assert.Equal(t, entities.AppointmentStatusConfirmed, got.Status)

	// The partial unique index rejects a second live booking of the slot.
	err = repo.Create(ctx, newAppt())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSlotConflict))

	active, err := repo.ListActiveAt(ctx, first.SlotKey())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	// Cancelled rows no longer hold the slot.
	first.Status = entities.AppointmentStatusCancelled
	first.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.Update(ctx, first))

	second := newAppt()
	second.CreatedAt = now.Add(time.Hour)
	require.NoError(t, repo.Create(ctx, second))

	mine, err := repo.ListByPatient(ctx, patientID, repositories.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	live, err := repo.ListByDoctor(ctx, doctorID, repositories.AppointmentFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, second.ID, live[0].ID)
}

func TestDoctorAdapterIntegration(t *testing.T) {
	client := testutil.PostgresClient(t)
	repo := NewDoctorAdapter(client, nil)
	ctx := context.Background()

	specialty := "integration-" + uuid.NewString()[:8]
	doctorID := insertUser(t, client, entities.RoleDoctor, specialty)
	patientID := insertUser(t, client, entities.RolePatient, specialty)

	doctor, err := repo.GetByID(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultWorkingDays, doctor.WorkingDays)

	_, err = repo.GetByID(ctx, patientID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	listed, err := repo.List(ctx, repositories.DoctorFilter{Specialty: specialty, Limit: 10})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, doctorID, listed[0].ID)

	rec := entities.AvailabilityRecord{WorkingDays: "monday,friday", StartTime: "08:30", EndTime: "12:00"}
	require.NoError(t, repo.UpdateAvailability(ctx, doctorID, rec))

	doctor, err = repo.GetByID(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, rec, doctor.AvailabilityRecord)
}
