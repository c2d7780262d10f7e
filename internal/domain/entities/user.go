package entities

import (
	"time"
)

// Role is the kind of account behind an authenticated identity
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Identity is the authenticated caller of an operation
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Default weekly pattern for a newly registered doctor
const (
	DefaultWorkingDays = "monday,tuesday,wednesday,thursday,friday"
	DefaultStartTime   = "09:00"
	DefaultEndTime     = "17:00"
)

// AvailabilityRecord is the weekly pattern as stored on the doctor's account
type AvailabilityRecord struct {
	WorkingDays string `json:"workingDays" db:"working_days"`
	StartTime   string `json:"startTime" db:"start_time"`
	EndTime     string `json:"endTime" db:"end_time"`
}

// DefaultAvailabilityRecord returns the pattern applied when none is stored.
func DefaultAvailabilityRecord() AvailabilityRecord {
	return AvailabilityRecord{
		WorkingDays: DefaultWorkingDays,
		StartTime:   DefaultStartTime,
		EndTime:     DefaultEndTime,
	}
}

// Availability is a parsed weekly pattern
type Availability struct {
	WorkingDays WeekdaySet
	Start       ClockTime
	End         ClockTime
}

// Record renders the pattern back into its stored form.
func (a Availability) Record() AvailabilityRecord {
	return AvailabilityRecord{
		WorkingDays: a.WorkingDays.String(),
		StartTime:   a.Start.String(),
		EndTime:     a.End.String(),
	}
}

// Doctor is the public profile of a doctor account
type Doctor struct {
	ID              string `json:"id" db:"id"`
	Email           string `json:"email" db:"email"`
	FirstName       string `json:"firstName" db:"first_name"`
	LastName        string `json:"lastName" db:"last_name"`
	Specialty       string `json:"specialty" db:"specialty"`
	LicenseNumber   string `json:"licenseNumber" db:"license_number"`
	YearsExperience int    `json:"yearsExperience" db:"years_experience"`
	Bio             string `json:"bio" db:"bio"`
	AvailabilityRecord
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
