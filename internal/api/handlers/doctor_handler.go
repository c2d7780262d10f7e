package handlers

import (
	"context"
	"net/http"

	"github.com/medicare/medicare/backend/internal/application/services"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
)

// AvailabilityService defines the doctor directory and slot operations
type AvailabilityService interface {
	ListDoctors(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error)
	GetDoctor(ctx context.Context, doctorID string) (*entities.Doctor, error)
	GetDoctorSlots(ctx context.Context, doctorID string, q services.SlotQuery) ([]services.SlotView, error)
	UpdateAvailability(ctx context.Context, identity entities.Identity, rec entities.AvailabilityRecord) (*entities.Doctor, error)
}

// DoctorHandler handles doctor directory and availability requests
type DoctorHandler struct {
	service AvailabilityService
}

// NewDoctorHandler creates a new doctor handler
func NewDoctorHandler(service AvailabilityService) *DoctorHandler {
	return &DoctorHandler{service: service}
}

// ListDoctors handles GET /api/users/doctors
func (h *DoctorHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	filter := repositories.DoctorFilter{Specialty: r.URL.Query().Get("specialty")}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	doctors, err := h.service.ListDoctors(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": doctors,
		"count":   len(doctors),
	})
}

// GetDoctor handles GET /api/users/doctors/{id}
func (h *DoctorHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.GetDoctor(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doctor)
}

// GetDoctorSlots handles GET /api/doctors/{id}/slots
func (h *DoctorHandler) GetDoctorSlots(w http.ResponseWriter, r *http.Request) {
	var q services.SlotQuery
	var err error
	if q.HorizonDays, err = queryInt(r, "horizonDays"); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if q.StepMinutes, err = queryInt(r, "stepMinutes"); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if q.OnlyAvailable, err = queryBool(r, "available"); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	doctorID := r.PathValue("id")
	slots, err := h.service.GetDoctorSlots(r.Context(), doctorID, q)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctorId": doctorID,
		"slots":    slots,
	})
}

// UpdateMyAvailability handles PUT /api/users/me/availability
func (h *DoctorHandler) UpdateMyAvailability(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var rec entities.AvailabilityRecord
	if err := decodeJSON(r, &rec); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	doctor, err := h.service.UpdateAvailability(r.Context(), identity, rec)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, doctor)
}
