package handlers

import (
	"context"
	"net/http"

	"github.com/medicare/medicare/backend/internal/application/services"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

// AppointmentService defines the interface for appointment operations
type AppointmentService interface {
	BookAppointment(ctx context.Context, identity entities.Identity, input services.BookAppointmentInput) (*entities.Appointment, error)
	CancelAppointment(ctx context.Context, id string, identity entities.Identity) (*entities.Appointment, error)
	RescheduleAppointment(ctx context.Context, id string, identity entities.Identity, newDate entities.Date, newTime entities.ClockTime) (*entities.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, identity entities.Identity, patch services.AppointmentPatch) (*entities.Appointment, error)
	ListMyAppointments(ctx context.Context, identity entities.Identity, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
	GetAppointment(ctx context.Context, id string, identity entities.Identity) (*entities.Appointment, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service AppointmentService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(service AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
	}
}

type bookAppointmentRequest struct {
	DoctorID        string             `json:"doctorId"`
	AppointmentDate entities.Date      `json:"appointmentDate"`
	AppointmentTime entities.ClockTime `json:"appointmentTime"`
	Reason          string             `json:"reason"`
	Notes           string             `json:"notes"`
}

type rescheduleRequest struct {
	AppointmentDate entities.Date      `json:"appointmentDate"`
	AppointmentTime entities.ClockTime `json:"appointmentTime"`
}

type updateAppointmentRequest struct {
	Status          *string             `json:"status"`
	AppointmentDate *entities.Date      `json:"appointmentDate"`
	AppointmentTime *entities.ClockTime `json:"appointmentTime"`
	Reason          *string             `json:"reason"`
	Notes           *string             `json:"notes"`
}

func (req updateAppointmentRequest) patch() (services.AppointmentPatch, error) {
	patch := services.AppointmentPatch{
		Date:   req.AppointmentDate,
		Time:   req.AppointmentTime,
		Reason: req.Reason,
		Notes:  req.Notes,
	}
	if req.Status != nil {
		status, err := entities.ParseAppointmentStatus(*req.Status)
		if err != nil {
			return patch, apperrors.NewValidationError("invalid status")
		}
		patch.Status = &status
	}
	return patch, nil
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req bookAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appt, err := h.service.BookAppointment(r.Context(), identity, services.BookAppointmentInput{
		DoctorID: req.DoctorID,
		Date:     req.AppointmentDate,
		Time:     req.AppointmentTime,
		Reason:   req.Reason,
		Notes:    req.Notes,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, appt)
}

// ListMyAppointments handles GET /api/appointments/mine
func (h *AppointmentHandler) ListMyAppointments(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	filter, err := appointmentFilterFromQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appointments, err := h.service.ListMyAppointments(r.Context(), identity, filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// GetAppointment handles GET /api/appointments/{id}
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	appt, err := h.service.GetAppointment(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appt)
}

// CancelAppointment handles PATCH /api/appointments/{id}/cancel
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	appt, err := h.service.CancelAppointment(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appt)
}

// RescheduleAppointment handles PATCH /api/appointments/{id}/reschedule
func (h *AppointmentHandler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appt, err := h.service.RescheduleAppointment(r.Context(), r.PathValue("id"), identity, req.AppointmentDate, req.AppointmentTime)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appt)
}

// UpdateAppointment handles PATCH /api/appointments/{id}
func (h *AppointmentHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appt, err := h.service.UpdateAppointment(r.Context(), r.PathValue("id"), identity, patch)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appt)
}

func appointmentFilterFromQuery(r *http.Request) (repositories.AppointmentFilter, error) {
	var filter repositories.AppointmentFilter
	var err error

	if raw := r.URL.Query().Get("status"); raw != "" {
		if filter.Status, err = entities.ParseAppointmentStatus(raw); err != nil {
			return filter, apperrors.NewValidationError("invalid status")
		}
	}
	if filter.FromDate, err = queryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.ToDate, err = queryDate(r, "to"); err != nil {
		return filter, err
	}
	if filter.ActiveOnly, err = queryBool(r, "active"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}
