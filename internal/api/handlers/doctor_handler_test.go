package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medicare/medicare/backend/internal/api/handlers"
	"github.com/medicare/medicare/backend/internal/application/services"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) ListDoctors(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Doctor), args.Error(1)
}

func (m *MockAvailabilityService) GetDoctor(ctx context.Context, doctorID string) (*entities.Doctor, error) {
	args := m.Called(ctx, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func (m *MockAvailabilityService) GetDoctorSlots(ctx context.Context, doctorID string, q services.SlotQuery) ([]services.SlotView, error) {
	args := m.Called(ctx, doctorID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.SlotView), args.Error(1)
}

func (m *MockAvailabilityService) UpdateAvailability(ctx context.Context, identity entities.Identity, rec entities.AvailabilityRecord) (*entities.Doctor, error) {
	args := m.Called(ctx, identity, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func TestDoctorHandler_ListDoctors(t *testing.T) {
	mockService := new(MockAvailabilityService)
	handler := handlers.NewDoctorHandler(mockService)

	mockService.On("ListDoctors", mock.Anything, repositories.DoctorFilter{Specialty: "cardiology", Limit: 5}).
		Return([]*entities.Doctor{{ID: "d1", Specialty: "cardiology", AvailabilityRecord: entities.DefaultAvailabilityRecord()}}, nil)

	w := httptest.NewRecorder()
	handler.ListDoctors(w, httptest.NewRequest("GET", "/api/users/doctors?specialty=cardiology&limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["count"])
	doctors := body["doctors"].([]interface{})
	first := doctors[0].(map[string]interface{})
	assert.Equal(t, entities.DefaultWorkingDays, first["workingDays"])
	assert.Equal(t, "09:00", first["startTime"])
	mockService.AssertExpectations(t)
}

func TestDoctorHandler_GetDoctorSlots(t *testing.T) {
	t.Run("passes the query through", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		handler := handlers.NewDoctorHandler(mockService)

		mockService.On("GetDoctorSlots", mock.Anything, "d1", services.SlotQuery{HorizonDays: 7, StepMinutes: 15, OnlyAvailable: true}).
			Return([]services.SlotView{{Date: entities.MustParseDate("2024-06-10"), Time: entities.MustParseClockTime("09:15"), Available: true}}, nil)

		req := httptest.NewRequest("GET", "/api/doctors/d1/slots?horizonDays=7&stepMinutes=15&available=true", nil)
		req.SetPathValue("id", "d1")
		w := httptest.NewRecorder()
		handler.GetDoctorSlots(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"doctorId":"d1","slots":[{"date":"2024-06-10","time":"09:15","available":true}]}`, w.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		handler := handlers.NewDoctorHandler(mockService)
		mockService.On("GetDoctorSlots", mock.Anything, "ghost", services.SlotQuery{}).
			Return(nil, apperrors.NewNotFoundError("doctor not found"))

		req := httptest.NewRequest("GET", "/api/doctors/ghost/slots", nil)
		req.SetPathValue("id", "ghost")
		w := httptest.NewRecorder()
		handler.GetDoctorSlots(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad query", func(t *testing.T) {
		handler := handlers.NewDoctorHandler(new(MockAvailabilityService))
		req := httptest.NewRequest("GET", "/api/doctors/d1/slots?stepMinutes=abc", nil)
		req.SetPathValue("id", "d1")
		w := httptest.NewRecorder()
		handler.GetDoctorSlots(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDoctorHandler_UpdateMyAvailability(t *testing.T) {
	t.Run("updates", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		handler := handlers.NewDoctorHandler(mockService)

		rec := entities.AvailabilityRecord{WorkingDays: "monday", StartTime: "08:00", EndTime: "12:00"}
		mockService.On("UpdateAvailability", mock.Anything, doctor, rec).
			Return(&entities.Doctor{ID: "d1", AvailabilityRecord: rec}, nil)

		w := httptest.NewRecorder()
		handler.UpdateMyAvailability(w, authedRequest("PUT", "/api/users/me/availability",
			`{"workingDays":"monday","startTime":"08:00","endTime":"12:00"}`, doctor))

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		handler := handlers.NewDoctorHandler(mockService)
		mockService.On("UpdateAvailability", mock.Anything, doctor, mock.Anything).
			Return(nil, apperrors.NewInvalidAvailabilityError("unknown working day \"funday\"", nil))

		w := httptest.NewRecorder()
		handler.UpdateMyAvailability(w, authedRequest("PUT", "/api/users/me/availability",
			`{"workingDays":"funday","startTime":"08:00","endTime":"12:00"}`, doctor))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_AVAILABILITY", decodeError(t, w)["kind"])
	})
}
