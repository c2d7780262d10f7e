package entities

import (
	"fmt"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// ParseAppointmentStatus validates a wire status value.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}

// IsActive reports whether the appointment still occupies its slot.
func (s AppointmentStatus) IsActive() bool {
	return s != AppointmentStatusCancelled
}

// Appointment represents a booked visit between a patient and a doctor
type Appointment struct {
	ID        string            `json:"id" db:"id"`
	PatientID string            `json:"patientId" db:"patient_id"`
	DoctorID  string            `json:"doctorId" db:"doctor_id"`
	Date      Date              `json:"appointmentDate" db:"appointment_date"`
	Time      ClockTime         `json:"appointmentTime" db:"appointment_time"`
	Reason    string            `json:"reason" db:"reason"`
	Notes     string            `json:"notes" db:"notes"`
	Status    AppointmentStatus `json:"status" db:"status"`
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time         `json:"updatedAt" db:"updated_at"`
}

// SlotKey returns the (doctor, date, time) triple the appointment occupies.
func (a *Appointment) SlotKey() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

// Slot is a bookable start time on a given day
type Slot struct {
	Date Date      `json:"date"`
	Time ClockTime `json:"time"`
}

// SlotKey identifies a doctor's slot. At most one active appointment may hold a key.
type SlotKey struct {
	DoctorID string
	Date     Date
	Time     ClockTime
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DoctorID, k.Date, k.Time)
}
