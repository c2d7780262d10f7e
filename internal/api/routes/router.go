package routes

import (
	"net/http"

	"github.com/medicare/medicare/backend/internal/api/handlers"
	"github.com/medicare/medicare/backend/internal/api/middleware"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	appointmentHandler *handlers.AppointmentHandler
	doctorHandler      *handlers.DoctorHandler
	sseHandler         *handlers.SSEHandler

	auth           *middleware.Authenticator
	limiter        *middleware.RateLimiter
	metrics        *observability.Metrics
	allowedOrigins []string
}

// NewRouter creates a new router. limiter and metrics may be nil.
func NewRouter(
	appointmentHandler *handlers.AppointmentHandler,
	doctorHandler *handlers.DoctorHandler,
	sseHandler *handlers.SSEHandler,
	auth *middleware.Authenticator,
	limiter *middleware.RateLimiter,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		appointmentHandler: appointmentHandler,
		doctorHandler:      doctorHandler,
		sseHandler:         sseHandler,
		auth:               auth,
		limiter:            limiter,
		metrics:            metrics,
		allowedOrigins:     allowedOrigins,
	}
}

// protected requires a bearer identity
func (r *Router) protected(h http.HandlerFunc) http.Handler {
	return r.auth.Require(h)
}

// mutating requires a bearer identity and spends from the caller's rate bucket
func (r *Router) mutating(h http.HandlerFunc) http.Handler {
	if r.limiter == nil {
		return r.auth.Require(h)
	}
	return r.auth.Require(r.limiter.Middleware(h))
}

// limited spends from the caller's rate bucket without requiring a token
func (r *Router) limited(h http.HandlerFunc) http.Handler {
	if r.limiter == nil {
		return h
	}
	return r.limiter.Middleware(h)
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Doctor directory and availability
	r.mux.HandleFunc("GET /api/users/doctors", r.doctorHandler.ListDoctors)
	r.mux.HandleFunc("GET /api/users/doctors/{id}", r.doctorHandler.GetDoctor)
	r.mux.Handle("GET /api/doctors/{id}/slots", r.limited(r.doctorHandler.GetDoctorSlots))
	r.mux.Handle("PUT /api/users/me/availability", r.mutating(r.doctorHandler.UpdateMyAvailability))

	// Appointment ledger
	r.mux.Handle("POST /api/appointments", r.mutating(r.appointmentHandler.BookAppointment))
	r.mux.Handle("GET /api/appointments/mine", r.protected(r.appointmentHandler.ListMyAppointments))
	r.mux.Handle("GET /api/appointments/events", r.protected(r.sseHandler.StreamAppointmentEvents))
	r.mux.Handle("GET /api/appointments/{id}", r.protected(r.appointmentHandler.GetAppointment))
	r.mux.Handle("PATCH /api/appointments/{id}", r.mutating(r.appointmentHandler.UpdateAppointment))
	r.mux.Handle("PATCH /api/appointments/{id}/cancel", r.mutating(r.appointmentHandler.CancelAppointment))
	r.mux.Handle("PATCH /api/appointments/{id}/reschedule", r.mutating(r.appointmentHandler.RescheduleAppointment))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything so preflights never reach auth
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
