// Package concierge provides a high-level façade over the orchestration
// engine and its services (thread state, long-term memory, logging). Most
// applications interact with this package by:
//  1. Creating a Concierge via New() (optionally overriding the in-memory stores)
//  2. Registering one or more domain workers (mail, calendar, contacts, ...)
//  3. Processing user turns asynchronously (ProcessTurn) or synchronously
//     (ProcessTurnSync), resuming suspended threads with Resume
//
// The façade delegates orchestration to engine.Engine while keeping setup
// concise. The defaults are safe for local development and testing; durable
// deployments supply state.NewFileStore and a structured logger.
package concierge

import (
	"context"

	"github.com/conciergeai/concierge/core"
	"github.com/conciergeai/concierge/engine"
	"github.com/conciergeai/concierge/logging"
	"github.com/conciergeai/concierge/memory"
	"github.com/conciergeai/concierge/model"
	"github.com/conciergeai/concierge/state"
)

// Options configures the Concierge instance.
type Options struct {
	// StateStore holds per-thread conversation state, including suspended
	// review checkpoints. Defaults to an in-memory store.
	StateStore core.StateStore

	// MemoryStore backs long-term memory retrieval and the memory agent.
	// Defaults to an in-memory store.
	MemoryStore core.MemoryStore

	// Logger defaults to a NoOp logger.
	Logger logging.Logger

	// EngineOptions are applied to the underlying engine after the store and
	// logger defaults.
	EngineOptions []func(o *engine.Options)
}

// Concierge is the high-level façade aggregating the engine and its stores.
type Concierge struct {
	opts   Options
	engine *engine.Engine
}

// New creates a Concierge around the given controller model. Any unset store
// is initialized with an in-memory implementation.
func New(controller model.Completer, optFns ...func(o *Options)) *Concierge {
	opts := Options{
		StateStore:  state.NewInMemoryStore(),
		MemoryStore: memory.NewInMemoryStore(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	engineOpts := append([]func(o *engine.Options){engine.WithLogger(opts.Logger)}, opts.EngineOptions...)
	eng := engine.New(opts.StateStore, opts.MemoryStore, controller, engineOpts...)

	return &Concierge{opts: opts, engine: eng}
}

// RegisterWorker installs a domain worker on the underlying engine.
func (c *Concierge) RegisterWorker(w *engine.Worker) error {
	return c.engine.RegisterWorker(w)
}

// ProcessTurn starts an asynchronous turn returning the ordered event stream.
func (c *Concierge) ProcessTurn(ctx context.Context, threadID, text string) (<-chan core.StreamEvent, error) {
	return c.engine.ProcessTurn(ctx, threadID, text)
}

// Resume continues a suspended thread with the human's review reply.
func (c *Concierge) Resume(ctx context.Context, threadID, humanText string) (<-chan core.StreamEvent, error) {
	return c.engine.Resume(ctx, threadID, humanText)
}

// ProcessTurnSync is a synchronous helper that drains the event stream and
// returns all events. The final event is done, interrupt or error.
func (c *Concierge) ProcessTurnSync(ctx context.Context, threadID, text string) ([]core.StreamEvent, error) {
	events, err := c.engine.ProcessTurn(ctx, threadID, text)
	if err != nil {
		return nil, err
	}
	return drainEvents(ctx, events)
}

// ResumeSync is the synchronous counterpart of Resume.
func (c *Concierge) ResumeSync(ctx context.Context, threadID, humanText string) ([]core.StreamEvent, error) {
	events, err := c.engine.Resume(ctx, threadID, humanText)
	if err != nil {
		return nil, err
	}
	return drainEvents(ctx, events)
}

func drainEvents(ctx context.Context, events <-chan core.StreamEvent) ([]core.StreamEvent, error) {
	var out []core.StreamEvent
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return out, nil
			}
			out = append(out, ev)
		}
	}
}
