package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEventType represents the kind of ledger mutation
type AppointmentEventType string

const (
	AppointmentEventBooked      AppointmentEventType = "booked"
	AppointmentEventCancelled   AppointmentEventType = "cancelled"
	AppointmentEventRescheduled AppointmentEventType = "rescheduled"
	AppointmentEventUpdated     AppointmentEventType = "updated"
)

// AppointmentEvent is published after every committed ledger mutation
type AppointmentEvent struct {
	ID            string               `json:"id"`
	Type          AppointmentEventType `json:"type"`
	AppointmentID string               `json:"appointmentId"`
	PatientID     string               `json:"patientId"`
	DoctorID      string               `json:"doctorId"`
	Date          Date                 `json:"appointmentDate"`
	Time          ClockTime            `json:"appointmentTime"`
	Status        AppointmentStatus    `json:"status"`
	// Previous slot, set on reschedules and date/time updates
	PreviousDate *Date      `json:"previousDate,omitempty"`
	PreviousTime *ClockTime `json:"previousTime,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// NewAppointmentEvent snapshots appt into an event of the given type
func NewAppointmentEvent(eventType AppointmentEventType, appt *Appointment, at time.Time) *AppointmentEvent {
	return &AppointmentEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date,
		Time:          appt.Time,
		Status:        appt.Status,
		Timestamp:     at,
	}
}

// WithPrevious records the slot the appointment moved away from.
func (e *AppointmentEvent) WithPrevious(key SlotKey) *AppointmentEvent {
	d, t := key.Date, key.Time
	e.PreviousDate = &d
	e.PreviousTime = &t
	return e
}
