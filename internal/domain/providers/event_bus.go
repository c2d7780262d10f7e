package providers

import (
	"context"

	"github.com/medicare/medicare/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to ledger events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelAppointmentUpdates carries every ledger event
	EventChannelAppointmentUpdates = "appointments:updates"

	// EventChannelUserPrefix is the prefix for per-account channels
	EventChannelUserPrefix = "user:"
)

// GetUserChannel returns the channel a patient or doctor listens on for
// events about their own appointments
func GetUserChannel(userID string) string {
	return EventChannelUserPrefix + userID
}

// ChannelsFor lists every channel an event is published to.
func ChannelsFor(event *entities.AppointmentEvent) []string {
	return []string{
		EventChannelAppointmentUpdates,
		GetUserChannel(event.PatientID),
		GetUserChannel(event.DoctorID),
	}
}
