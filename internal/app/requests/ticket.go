package requests

import (
	"context"
	"log/slog"
	"sync"
)

// Slots tracks one authoritative in-flight request per named slot. Beginning a
// request on a slot bumps its sequence counter and cancels whatever was in
// flight there, so out-of-order completions can never commit stale results.
type Slots struct {
	mu     sync.Mutex
	states map[string]*slotState
	logger *slog.Logger
}

type slotState struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewSlots builds an empty slot registry.
func NewSlots(logger *slog.Logger) *Slots {
	return &Slots{
		states: make(map[string]*slotState),
		logger: logger,
	}
}

// Begin issues a new ticket for slot, cancelling any prior in-flight request
// registered against it. The returned context is cancelled when the ticket is
// superseded or the parent context ends.
func (s *Slots) Begin(ctx context.Context, slot string) (*Ticket, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	state, ok := s.states[slot]
	if !ok {
		state = &slotState{}
		s.states[slot] = state
	}
	if state.cancel != nil {
		state.cancel()
	}
	state.seq++
	state.cancel = cancel
	seq := state.seq
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("request ticket issued", "slot", slot, "seq", seq)
	}
	return &Ticket{slots: s, slot: slot, seq: seq}, runCtx
}

// Latest returns the most recently issued sequence number for slot.
func (s *Slots) Latest(slot string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[slot]; ok {
		return state.seq
	}
	return 0
}

// finish releases the cancel registration if the ticket is still current.
func (s *Slots) finish(t *Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[t.slot]
	if !ok || state.seq != t.seq {
		return
	}
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
}

func (s *Slots) discarded(t *Ticket) {
	if s.logger != nil {
		s.logger.Debug("stale request result discarded", "slot", t.slot, "seq", t.seq, "latest", s.Latest(t.slot))
	}
}

// Ticket identifies one attempt within a slot. Only the ticket whose sequence
// number equals the slot's latest may commit its result.
type Ticket struct {
	slots *Slots
	slot  string
	seq   uint64
}

// Current reports whether the ticket still holds the slot's latest sequence.
// Asynchronous continuations must check this immediately before applying
// results to shared state.
func (t *Ticket) Current() bool {
	return t.slots.Latest(t.slot) == t.seq
}

// Slot returns the slot name the ticket was issued for.
func (t *Ticket) Slot() string { return t.slot }

// Seq returns the ticket's sequence number.
func (t *Ticket) Seq() uint64 { return t.seq }
