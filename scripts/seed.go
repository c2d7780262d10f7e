package main

import (
	"context"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medicare/medicare/backend/internal/api/middleware"
	"github.com/medicare/medicare/backend/internal/domain/availability"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/infrastructure/clients/postgres"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	"github.com/medicare/medicare/backend/pkg/config"
)

// seedNamespace keeps user ids stable across runs so issued demo tokens stay valid
var seedNamespace = uuid.MustParse("6f1c2a5e-3b7d-4f0a-9e61-2d8c4b9a7f10")

type seedUser struct {
	role      entities.Role
	email     string
	firstName string
	lastName  string
	specialty string
	license   string
	years     int
	bio       string
	hours     entities.AvailabilityRecord
}

func (u seedUser) id() string {
	return uuid.NewSHA1(seedNamespace, []byte(u.email)).String()
}

var seedUsers = []seedUser{
	{
		role: entities.RoleDoctor, email: "amara.okafor@medicare.test", firstName: "Amara", lastName: "Okafor",
		specialty: "Cardiology", license: "MD-10442", years: 12,
		bio:   "Interventional cardiologist focused on preventive care.",
		hours: entities.DefaultAvailabilityRecord(),
	},
	{
		role: entities.RoleDoctor, email: "tomas.lindqvist@medicare.test", firstName: "Tomas", lastName: "Lindqvist",
		specialty: "Dermatology", license: "MD-20917", years: 7,
		bio:   "General and pediatric dermatology.",
		hours: entities.AvailabilityRecord{WorkingDays: "tuesday,thursday", StartTime: "10:00", EndTime: "16:00"},
	},
	{
		role: entities.RoleDoctor, email: "priya.raman@medicare.test", firstName: "Priya", lastName: "Raman",
		specialty: "Pediatrics", license: "MD-33105", years: 15,
		hours: entities.AvailabilityRecord{WorkingDays: "monday,wednesday,friday,saturday", StartTime: "08:00", EndTime: "13:00"},
	},
	{
		role: entities.RoleDoctor, email: "daniel.mensah@medicare.test", firstName: "Daniel", lastName: "Mensah",
		specialty: "Orthopedics", license: "MD-41876", years: 9,
		hours: entities.AvailabilityRecord{WorkingDays: "monday,tuesday,wednesday,thursday", StartTime: "12:00", EndTime: "20:00"},
	},
	{role: entities.RolePatient, email: "jane.doe@medicare.test", firstName: "Jane", lastName: "Doe"},
	{role: entities.RolePatient, email: "kofi.boateng@medicare.test", firstName: "Kofi", lastName: "Boateng"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	observability.InitLogger("medicare-seed", cfg.Environment)
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if err := pgClient.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	if os.Getenv("RESET_DB") == "true" {
		logger.Warn().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE appointments, users CASCADE`); err != nil {
			logger.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	db := goqu.New("postgres", pgClient.DB())
	now := time.Now().UTC()

	rows := make([]interface{}, 0, len(seedUsers))
	for _, u := range seedUsers {
		hours := u.hours
		if u.role == entities.RoleDoctor {
			// Store the normalized form the API writes.
			parsed, err := availability.Parse(hours)
			if err != nil {
				logger.Fatal().Err(err).Str("email", u.email).Msg("Invalid seed availability")
			}
			hours = parsed.Record()
		} else {
			hours = entities.DefaultAvailabilityRecord()
		}

		rows = append(rows, goqu.Record{
			"id":               u.id(),
			"role":             string(u.role),
			"email":            u.email,
			"first_name":       u.firstName,
			"last_name":        u.lastName,
			"specialty":        u.specialty,
			"license_number":   u.license,
			"years_experience": u.years,
			"bio":              u.bio,
			"working_days":     hours.WorkingDays,
			"start_time":       hours.StartTime,
			"end_time":         hours.EndTime,
			"created_at":       now,
			"updated_at":       now,
		})
	}

	query, args, err := db.Insert("users").Rows(rows...).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build seed query")
	}
	result, err := pgClient.DB().ExecContext(ctx, query, args...)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed users")
	}
	inserted, _ := result.RowsAffected()
	logger.Info().Int64("inserted", inserted).Int("total", len(seedUsers)).Msg("Seeded users")

	if cfg.Auth.JWTSecret == "" {
		logger.Info().Msg("JWT_SECRET not set; skipping demo tokens")
		return
	}
	for _, u := range seedUsers {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
			UserID: u.id(),
			Role:   u.role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   u.email,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(7 * 24 * time.Hour)),
			},
		}).SignedString([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			logger.Error().Err(err).Str("email", u.email).Msg("Failed to sign demo token")
			continue
		}
		logger.Info().Str("email", u.email).Str("role", string(u.role)).Str("id", u.id()).Str("token", token).Msg("Demo token")
	}
}
