package events

import "sync"

type RecordedEvent struct {
	Event     string
	Data      any
	ChannelId string
}

// InMemoryPublisher records emitted events in order. Used by tests and local
// runs without a socket server.
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []RecordedEvent
}

var _ Publisher = (*InMemoryPublisher)(nil)

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Emit(event string, data any, channelId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, RecordedEvent{Event: event, Data: data, ChannelId: channelId})
}

func (p *InMemoryPublisher) Events() []RecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RecordedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventNames returns just the ordered event names, which is what most
// assertions care about.
func (p *InMemoryPublisher) EventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Event
	}
	return names
}
