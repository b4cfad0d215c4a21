package eventchannel

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

type Emission struct {
	Event   string
	Payload any
}

// RecordingChannel is an in-memory EventChannel for tests.
type RecordingChannel struct {
	// EmitErr, when set, is returned by Emit and nothing is recorded.
	EmitErr error

	mu       sync.Mutex
	emitted  []Emission
	handlers map[string][]func(json.RawMessage)
}

func NewRecordingChannel() *RecordingChannel {
	return &RecordingChannel{handlers: make(map[string][]func(json.RawMessage))}
}

func (r *RecordingChannel) Emit(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.EmitErr != nil {
		return r.EmitErr
	}
	r.emitted = append(r.emitted, Emission{Event: event, Payload: payload})
	return nil
}

func (r *RecordingChannel) On(event string, handler func(data json.RawMessage)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], handler)
}

// Deliver simulates an inbound frame. It reports whether any handler ran.
func (r *RecordingChannel) Deliver(event string, data json.RawMessage) bool {
	r.mu.Lock()
	hs := slices.Clone(r.handlers[event])
	r.mu.Unlock()

	for _, h := range hs {
		h(data)
	}
	return len(hs) > 0
}

func (r *RecordingChannel) Emitted() []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.emitted)
}

// Reset forgets recorded emissions.
func (r *RecordingChannel) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted = nil
}
