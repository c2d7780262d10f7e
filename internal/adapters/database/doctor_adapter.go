package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/clients/postgres"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

const usersTable = "users"

var doctorColumns = []interface{}{
	"id", "email", "first_name", "last_name", "specialty", "license_number",
	"years_experience", "bio", "working_days", "start_time", "end_time",
	"created_at", "updated_at",
}

// DoctorAdapter reads doctor rows of the users table
type DoctorAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
	now     func() time.Time
}

// NewDoctorAdapter creates a new doctor adapter. metrics may be nil.
func NewDoctorAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.DoctorRepository {
	return &DoctorAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
		now:     time.Now,
	}
}

func isDoctor() goqu.Ex {
	return goqu.Ex{"role": string(entities.RoleDoctor)}
}

// GetByID retrieves a doctor by ID
func (a *DoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	defer a.observe(ctx, "users.get_doctor", time.Now())

	query, args, err := a.db.Select(doctorColumns...).
		From(usersTable).
		Where(goqu.Ex{"id": id}, isDoctor()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doctor, err := scanDoctor(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}

	return doctor, nil
}

// List retrieves doctors, newest first
func (a *DoctorAdapter) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	defer a.observe(ctx, "users.list_doctors", time.Now())

	conditions := []exp.Expression{isDoctor()}
	if filter.Specialty != "" {
		conditions = append(conditions, goqu.Func("LOWER", goqu.C("specialty")).Eq(strings.ToLower(filter.Specialty)))
	}

	ds := a.db.Select(doctorColumns...).
		From(usersTable).
		Where(conditions...).
		Order(goqu.I("created_at").Desc())
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

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	defer rows.Close()

	doctors := make([]*entities.Doctor, 0)
	for rows.Next() {
		doctor, err := scanDoctor(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor", err)
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate doctors", err)
	}

	return doctors, nil
}

// UpdateAvailability replaces a doctor's stored weekly pattern
func (a *DoctorAdapter) UpdateAvailability(ctx context.Context, doctorID string, rec entities.AvailabilityRecord) error {
	defer a.observe(ctx, "users.update_availability", time.Now())

	query, args, err := a.db.Update(usersTable).
		Set(goqu.Record{
			"working_days": rec.WorkingDays,
			"start_time":   rec.StartTime,
			"end_time":     rec.EndTime,
			"updated_at":   a.now().UTC(),
		}).
		Where(goqu.Ex{"id": doctorID}, isDoctor()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update availability", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", doctorID))
	}

	return nil
}

func scanDoctor(row rowScanner) (*entities.Doctor, error) {
	doctor := &entities.Doctor{}
	var specialty, licenseNumber, bio sql.NullString
	var yearsExperience sql.NullInt64

	err := row.Scan(
		&doctor.ID,
		&doctor.Email,
		&doctor.FirstName,
		&doctor.LastName,
		&specialty,
		&licenseNumber,
		&yearsExperience,
		&bio,
		&doctor.WorkingDays,
		&doctor.StartTime,
		&doctor.EndTime,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doctor.Specialty = specialty.String
	doctor.LicenseNumber = licenseNumber.String
	doctor.YearsExperience = int(yearsExperience.Int64)
	doctor.Bio = bio.String

	return doctor, nil
}

func (a *DoctorAdapter) observe(ctx context.Context, op string, start time.Time) {
	observability.RecordDBMetric(ctx, a.metrics, op, time.Since(start))
}
