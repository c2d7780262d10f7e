package events

import (
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
)

const subscriberBufferSize = 100

// fanout tracks local subscriber channels per bus channel. Callers hold the
// owning bus's mutex around every method.
type fanout struct {
	subscribers map[string]map[chan *entities.AppointmentEvent]struct{}
}

func newFanout() fanout {
	return fanout{subscribers: make(map[string]map[chan *entities.AppointmentEvent]struct{})}
}

func (f *fanout) add(channel string) (chan *entities.AppointmentEvent, int) {
	if f.subscribers[channel] == nil {
		f.subscribers[channel] = make(map[chan *entities.AppointmentEvent]struct{})
	}
	ch := make(chan *entities.AppointmentEvent, subscriberBufferSize)
	f.subscribers[channel][ch] = struct{}{}
	return ch, len(f.subscribers[channel])
}

// remove closes ch and reports how many subscribers the channel has left.
// ok is false when ch was already gone.
func (f *fanout) remove(channel string, ch chan *entities.AppointmentEvent) (remaining int, ok bool) {
	subs, exists := f.subscribers[channel]
	if !exists {
		return 0, false
	}
	if _, ok := subs[ch]; !ok {
		return len(subs), false
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(f.subscribers, channel)
	}
	return len(subs), true
}

// broadcast delivers without blocking; a full subscriber misses the event.
func (f *fanout) broadcast(channel string, event *entities.AppointmentEvent) {
	for ch := range f.subscribers[channel] {
		select {
		case ch <- event:
		default:
			observability.GetLogger().Warn().
				Str("channel", channel).
				Str("event_id", event.ID).
				Msg("Subscriber channel full, skipping event")
		}
	}
}

func (f *fanout) closeChannel(channel string) {
	for ch := range f.subscribers[channel] {
		close(ch)
	}
	delete(f.subscribers, channel)
}

func (f *fanout) channels() []string {
	out := make([]string, 0, len(f.subscribers))
	for channel := range f.subscribers {
		out = append(out, channel)
	}
	return out
}
