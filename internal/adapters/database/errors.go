package database

import (
	"errors"

	"github.com/lib/pq"
	apperrors "github.com/medicare/medicare/backend/pkg/errors"
)

const (
	pgUniqueViolation  = "23505"
	activeSlotIndex    = "appointments_active_slot_uq"
	slotConflictReason = "time slot already booked"
)

// mapWriteError turns a unique violation on the active slot index into a
// slot conflict and wraps everything else as an internal error.
func mapWriteError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation && pqErr.Constraint == activeSlotIndex {
		return apperrors.NewSlotConflictError(slotConflictReason)
	}
	return apperrors.NewInternalError(message, err)
}
