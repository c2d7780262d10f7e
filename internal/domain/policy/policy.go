// Package policy holds the pure scheduling rules shared by every ledger
// operation. A false result is a denial; callers pick the error to return.
package policy

import (
	"github.com/medicare/medicare/backend/internal/domain/entities"
)

// IsOwner reports whether the caller is the appointment's patient or doctor.
func IsOwner(id entities.Identity, appt *entities.Appointment) bool {
	if appt == nil || id.ID == "" {
		return false
	}
	switch id.Role {
	case entities.RolePatient:
		return appt.PatientID == id.ID
	case entities.RoleDoctor:
		return appt.DoctorID == id.ID
	default:
		return false
	}
}

// CanBook reports whether the caller may create appointments. Only patients book.
func CanBook(id entities.Identity) bool {
	return id.ID != "" && id.Role == entities.RolePatient
}

// Clashes reports whether any active appointment other than excludeID already
// holds the candidate slot.
func Clashes(candidate entities.SlotKey, existing []*entities.Appointment, excludeID string) bool {
	for _, appt := range existing {
		if appt == nil || !appt.Status.IsActive() {
			continue
		}
		if excludeID != "" && appt.ID == excludeID {
			continue
		}
		if appt.SlotKey() == candidate {
			return true
		}
	}
	return false
}

var transitions = map[entities.AppointmentStatus][]entities.AppointmentStatus{
	entities.AppointmentStatusPending:   {entities.AppointmentStatusConfirmed, entities.AppointmentStatusCancelled},
	entities.AppointmentStatusConfirmed: {entities.AppointmentStatusCompleted, entities.AppointmentStatusCancelled},
}

// CanTransition reports whether status may move from one value to another.
// Staying put is always allowed; cancelled and completed are terminal.
func CanTransition(from, to entities.AppointmentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsReschedulable reports whether an appointment in this status may change date or time.
func IsReschedulable(status entities.AppointmentStatus) bool {
	return status == entities.AppointmentStatusPending || status == entities.AppointmentStatusConfirmed
}
