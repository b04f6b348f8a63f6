package testkit

import (
	"context"
	"sync"

	"parley/internal/domain"
)

// Transport is an in-memory domain.Transport. Push feeds events to the
// consumer; Emitted records what the consumer sent.
type Transport struct {
	events chan domain.Event

	mu      sync.Mutex
	emitted []domain.Event
	closed  bool
	EmitErr error
}

// NewTransport returns a Transport with a buffer of size events.
func NewTransport(size int) *Transport {
	return &Transport{events: make(chan domain.Event, size)}
}

// Push delivers ev to the consumer. It reports false once closed.
func (t *Transport) Push(ev domain.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.events <- ev
	return true
}

func (t *Transport) Events() <-chan domain.Event { return t.events }

func (t *Transport) Emit(_ context.Context, name string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domain.TransportError("emit "+name, nil)
	}
	if t.EmitErr != nil {
		return t.EmitErr
	}
	ev, err := domain.NewEvent(name, payload)
	if err != nil {
		return err
	}
	t.emitted = append(t.emitted, ev)
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	return nil
}

// Emitted returns a copy of every event sent through Emit.
func (t *Transport) Emitted() []domain.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Event(nil), t.emitted...)
}

var _ domain.Transport = (*Transport)(nil)
