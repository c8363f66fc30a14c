package core

import (
	"context"

	"github.com/conciergeai/concierge/logging"
)

// TurnContext carries the execution scope of one turn through the engine's
// nodes: the ambient cancellation context, thread/turn identifiers, the
// exclusively owned conversation state, the per-turn event stream, and the
// backing stores. Exactly one node holds it at a time.
type TurnContext struct {
	Context          context.Context
	ThreadID, TurnID string
	State            *ConversationState
	Emit             chan<- StreamEvent
	States           StateStore
	Memory           MemoryStore

	*loggerAdapter
}

// NewTurnContext constructs a TurnContext for a single turn.
func NewTurnContext(
	ctx context.Context,
	threadID, turnID string,
	state *ConversationState,
	emit chan<- StreamEvent,
	states StateStore,
	memory MemoryStore,
	logger logging.Logger,
) *TurnContext {
	return &TurnContext{
		Context:       ctx,
		ThreadID:      threadID,
		TurnID:        turnID,
		State:         state,
		Emit:          emit,
		States:        states,
		Memory:        memory,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done mirrors context.Context's Done.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// EmitEvent delivers a stream event, stamping the thread id. A cancelled
// context aborts delivery only; the conversation state remains valid.
func (tc *TurnContext) EmitEvent(ev StreamEvent) error {
	ev.ThreadID = tc.ThreadID
	select {
	case <-tc.Context.Done():
		return tc.Context.Err()
	case tc.Emit <- ev:
		return nil
	}
}

// Save persists the current conversation state snapshot.
func (tc *TurnContext) Save() error {
	return tc.States.Save(tc.State)
}
