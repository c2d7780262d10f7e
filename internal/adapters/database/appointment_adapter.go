package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/clients/postgres"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

const appointmentsTable = "appointments"

var appointmentColumns = []interface{}{
	"id", "patient_id", "doctor_id", "appointment_date", "appointment_time",
	"reason", "notes", "status", "created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewAppointmentAdapter creates a new appointment adapter. metrics may be nil.
func NewAppointmentAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// Create creates a new appointment
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	defer a.observe(ctx, "appointments.insert", time.Now())

	record := goqu.Record{
		"id":               appointment.ID,
		"patient_id":       appointment.PatientID,
		"doctor_id":        appointment.DoctorID,
		"appointment_date": appointment.Date.String(),
		"appointment_time": appointment.Time.String(),
		"reason":           appointment.Reason,
		"notes":            appointment.Notes,
		"status":           string(appointment.Status),
		"created_at":       appointment.CreatedAt,
		"updated_at":       appointment.UpdatedAt,
	}

	query, args, err := a.db.Insert(appointmentsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return mapWriteError(err, "failed to create appointment")
	}

	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	defer a.observe(ctx, "appointments.get", time.Now())

	query, args, err := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// Update updates an appointment
func (a *AppointmentAdapter) Update(ctx context.Context, appointment *entities.Appointment) error {
	defer a.observe(ctx, "appointments.update", time.Now())

	record := goqu.Record{
		"appointment_date": appointment.Date.String(),
		"appointment_time": appointment.Time.String(),
		"reason":           appointment.Reason,
		"notes":            appointment.Notes,
		"status":           string(appointment.Status),
		"updated_at":       appointment.UpdatedAt,
	}

	query, args, err := a.db.Update(appointmentsTable).
		Set(record).
		Where(goqu.Ex{"id": appointment.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError(err, "failed to update appointment")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", appointment.ID))
	}

	return nil
}

// ListByPatient retrieves a patient's appointments, newest first
func (a *AppointmentAdapter) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return a.list(ctx, "appointments.list_by_patient", goqu.Ex{"patient_id": patientID}, filter)
}

// ListByDoctor retrieves a doctor's appointments, newest first
func (a *AppointmentAdapter) ListByDoctor(ctx context.Context, doctorID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return a.list(ctx, "appointments.list_by_doctor", goqu.Ex{"doctor_id": doctorID}, filter)
}

// ListActiveAt retrieves the non-cancelled appointments holding a slot
func (a *AppointmentAdapter) ListActiveAt(ctx context.Context, key entities.SlotKey) ([]*entities.Appointment, error) {
	defer a.observe(ctx, "appointments.list_active_at", time.Now())

	query, args, err := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(
			goqu.Ex{
				"doctor_id":        key.DoctorID,
				"appointment_date": key.Date.String(),
				"appointment_time": key.Time.String(),
			},
			goqu.C("status").Neq(string(entities.AppointmentStatusCancelled)),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, query, args)
}

func (a *AppointmentAdapter) list(ctx context.Context, op string, owner goqu.Ex, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	defer a.observe(ctx, op, time.Now())

	conditions := []exp.Expression{owner}
	if filter.Status != "" {
		conditions = append(conditions, goqu.C("status").Eq(string(filter.Status)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, goqu.C("status").Neq(string(entities.AppointmentStatusCancelled)))
	}
	if filter.FromDate != nil {
		conditions = append(conditions, goqu.C("appointment_date").Gte(filter.FromDate.String()))
	}
	if filter.ToDate != nil {
		conditions = append(conditions, goqu.C("appointment_date").Lte(filter.ToDate.String()))
	}

	ds := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(conditions...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, query, args)
}

func (a *AppointmentAdapter) query(ctx context.Context, query string, args []interface{}) ([]*entities.Appointment, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	appointments := make([]*entities.Appointment, 0)
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate appointments", err)
	}

	return appointments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var date, clock, status string

	err := row.Scan(
		&appointment.ID,
		&appointment.PatientID,
		&appointment.DoctorID,
		&date,
		&clock,
		&appointment.Reason,
		&appointment.Notes,
		&status,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if appointment.Date, err = entities.ParseDate(date); err != nil {
		return nil, err
	}
	if appointment.Time, err = entities.ParseClockTime(clock); err != nil {
		return nil, err
	}
	if appointment.Status, err = entities.ParseAppointmentStatus(status); err != nil {
		return nil, err
	}

	return appointment, nil
}

func (a *AppointmentAdapter) observe(ctx context.Context, op string, start time.Time) {
	observability.RecordDBMetric(ctx, a.metrics, op, time.Since(start))
}
