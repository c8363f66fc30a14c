package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/conciergeai/concierge/core"
	"github.com/conciergeai/concierge/logging"
	"github.com/conciergeai/concierge/model"
	"github.com/conciergeai/concierge/tool"
	"github.com/conciergeai/concierge/tool/memorytool"
)

// Sentinel errors for the turn lifecycle.
var (
	// ErrAwaitingReview is returned by ProcessTurn while a thread is parked
	// at a review checkpoint; the caller must use Resume.
	ErrAwaitingReview = errors.New("engine: thread is awaiting human review, use Resume")

	// ErrNotSuspended is returned by Resume when the thread has no pending
	// review checkpoint.
	ErrNotSuspended = errors.New("engine: thread has no pending review checkpoint")

	// ErrThreadBusy is returned while a turn is already in flight on the
	// thread; turns on one thread are strictly sequential.
	ErrThreadBusy = errors.New("engine: thread has a turn in flight")
)

// Worker binds one worker kind to its model, toolset and system role. The
// engine drives the generic worker loop with whatever Worker is registered
// for the controller's route.
type Worker struct {
	Kind        core.WorkerKind
	Completer   model.Completer
	Tools       *tool.Toolset
	Instruction string
}

// Options configures an Engine using the functional options pattern.
type Options struct {
	// Logger defaults to a NoOpLogger.
	Logger logging.Logger

	// EventBufferSize sets the per-turn event channel buffer.
	EventBufferSize int

	// MaxSteps bounds node transitions per turn as a final backstop against
	// runaway dispatch loops.
	MaxSteps int

	// MemoryToolBudget caps the memory agent's tool executions per turn.
	MemoryToolBudget int

	// MemorySearchLimit is the retrieval node's result limit.
	MemorySearchLimit int

	// Instructions override the built-in system prompts.
	ControllerInstruction string
	ReviewerInstruction   string
	MemoryInstruction     string

	// ReviewerCompleter classifies human review replies; defaults to the
	// controller's completer.
	ReviewerCompleter model.Completer

	// MemoryCompleter drives the long-term memory agent; defaults to the
	// controller's completer.
	MemoryCompleter model.Completer

	// Callbacks hook into node execution; optional.
	Callbacks *CallbackManager
}

// Engine is the orchestration state machine. It owns no conversation state
// itself; everything per-thread lives in the StateStore, so any number of
// threads can run turns concurrently while each thread stays strictly
// sequential.
type Engine struct {
	states      core.StateStore
	memories    core.MemoryStore
	controller  model.Completer
	reviewer    model.Completer
	workers     map[core.WorkerKind]*Worker
	memoryAgent *Worker
	callbacks   *CallbackManager
	logger      logging.Logger
	opts        Options

	mu     sync.Mutex
	active map[string]struct{}
}

// New constructs an Engine over the given stores and controller model.
// Workers are registered separately; the long-term memory agent is built in
// with the memorytool toolset.
func New(states core.StateStore, memories core.MemoryStore, controller model.Completer, optFns ...func(o *Options)) *Engine {
	opts := Options{
		EventBufferSize:       100,
		MaxSteps:              50,
		MemoryToolBudget:      2,
		MemorySearchLimit:     1,
		ControllerInstruction: defaultControllerInstruction,
		ReviewerInstruction:   defaultReviewerInstruction,
		MemoryInstruction:     defaultMemoryInstruction,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.ReviewerCompleter == nil {
		opts.ReviewerCompleter = controller
	}
	if opts.MemoryCompleter == nil {
		opts.MemoryCompleter = controller
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	return &Engine{
		states:     states,
		memories:   memories,
		controller: controller,
		reviewer:   opts.ReviewerCompleter,
		workers:    map[core.WorkerKind]*Worker{},
		memoryAgent: &Worker{
			Kind:        core.WorkerMemory,
			Completer:   opts.MemoryCompleter,
			Tools:       memorytool.New(memories),
			Instruction: opts.MemoryInstruction,
		},
		callbacks: opts.Callbacks,
		logger:    opts.Logger,
		opts:      opts,
		active:    map[string]struct{}{},
	}
}

// acquire claims a thread for one turn. It fails while another turn on the
// same thread is still running.
func (e *Engine) acquire(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[threadID]; busy {
		return false
	}
	e.active[threadID] = struct{}{}
	return true
}

func (e *Engine) release(threadID string) {
	e.mu.Lock()
	delete(e.active, threadID)
	e.mu.Unlock()
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithReviewerCompleter sets the model used to classify review replies.
func WithReviewerCompleter(c model.Completer) func(o *Options) {
	return func(o *Options) { o.ReviewerCompleter = c }
}

// WithMemoryCompleter sets the model driving the long-term memory agent.
func WithMemoryCompleter(c model.Completer) func(o *Options) {
	return func(o *Options) { o.MemoryCompleter = c }
}

// WithEventBufferSize sets the per-turn event channel buffer.
func WithEventBufferSize(n int) func(o *Options) {
	return func(o *Options) { o.EventBufferSize = n }
}

// WithCallbacks installs a callback manager.
func WithCallbacks(cm *CallbackManager) func(o *Options) {
	return func(o *Options) { o.Callbacks = cm }
}

// RegisterWorker installs a worker for its kind. The memory kind is built in
// and cannot be replaced here.
func (e *Engine) RegisterWorker(w *Worker) error {
	if w == nil || w.Kind == "" {
		return fmt.Errorf("engine: worker kind required")
	}
	if w.Kind == core.WorkerMemory {
		return fmt.Errorf("engine: the memory agent is built in and not registrable")
	}
	if _, exists := e.workers[w.Kind]; exists {
		return fmt.Errorf("engine: worker %q already registered", w.Kind)
	}
	if w.Completer == nil {
		return fmt.Errorf("engine: worker %q needs a completer", w.Kind)
	}
	if w.Tools == nil {
		w.Tools = tool.NewToolset(nil)
	}
	e.workers[w.Kind] = w
	return nil
}

// ProcessTurn runs one user turn to completion or suspension. The returned
// channel delivers ordered stream events for this thread and is closed when
// the turn ends, suspends or fails. A suspended thread rejects new turns
// until Resume is called.
func (e *Engine) ProcessTurn(ctx context.Context, threadID, text string) (<-chan core.StreamEvent, error) {
	if threadID == "" {
		return nil, fmt.Errorf("engine: thread id required")
	}
	if !e.acquire(threadID) {
		return nil, ErrThreadBusy
	}

	state, err := e.states.Load(threadID)
	if err != nil {
		e.release(threadID)
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state.Suspended() {
		e.release(threadID)
		return nil, ErrAwaitingReview
	}

	user := core.NewUserMessage(text)
	state.AppendMessage(user)
	state.AppendCore(user)
	if err := e.states.Save(state); err != nil {
		e.release(threadID)
		return nil, fmt.Errorf("save state: %w", err)
	}

	events := make(chan core.StreamEvent, e.opts.EventBufferSize)
	tc := core.NewTurnContext(ctx, threadID, core.NewID(), state, events, e.states, e.memories, e.logger)

	go e.run(tc, events, nodeMemoryRetrieval, "")
	return events, nil
}

// Resume continues a suspended thread with the human's reply to the pending
// review draft. The reply is classified and execution picks up from the
// persisted checkpoint.
func (e *Engine) Resume(ctx context.Context, threadID, humanText string) (<-chan core.StreamEvent, error) {
	if threadID == "" {
		return nil, fmt.Errorf("engine: thread id required")
	}
	if !e.acquire(threadID) {
		return nil, ErrThreadBusy
	}

	state, err := e.states.Load(threadID)
	if err != nil {
		e.release(threadID)
		return nil, fmt.Errorf("load state: %w", err)
	}
	if !state.Suspended() || state.Pending == nil {
		e.release(threadID)
		return nil, ErrNotSuspended
	}

	events := make(chan core.StreamEvent, e.opts.EventBufferSize)
	tc := core.NewTurnContext(ctx, threadID, core.NewID(), state, events, e.states, e.memories, e.logger)

	go e.run(tc, events, nodeReviewer, humanText)
	return events, nil
}

// run drives the transition loop for one turn in its own goroutine. State is
// saved after every node so a crash loses at most the in-flight node, and a
// review suspension is durable by the time the interrupt event is delivered.
func (e *Engine) run(tc *core.TurnContext, events chan core.StreamEvent, start node, resumeText string) {
	// Release runs before the channel closes, so a caller that drained the
	// stream can immediately start the thread's next turn.
	defer close(events)
	defer e.release(tc.ThreadID)

	began := time.Now()
	n := start
	steps := 0

	for {
		if err := tc.Err(); err != nil {
			tc.LogWarn("engine.turn.cancelled", "thread_id", tc.ThreadID)
			return
		}
		if steps >= e.opts.MaxSteps {
			e.fail(tc, fmt.Errorf("engine: turn exceeded %d steps", e.opts.MaxSteps))
			return
		}

		next, err := e.step(tc, n, resumeText)
		resumeText = ""
		if err != nil {
			e.fail(tc, err)
			return
		}
		if err := tc.Save(); err != nil {
			e.fail(tc, fmt.Errorf("save state: %w", err))
			return
		}

		steps++
		n = next

		if n == nodeSuspend {
			tc.LogInfo("engine.turn.suspended", "thread_id", tc.ThreadID, "steps", steps)
			return
		}
		if n == nodeEnd {
			break
		}
	}

	// The memory agent's scratch log is turn-scoped; drop it so next turn's
	// run (and its tool budget) starts fresh.
	tc.State.SetSubLog(core.WorkerMemory, nil)
	if err := tc.Save(); err != nil {
		e.fail(tc, fmt.Errorf("save state: %w", err))
		return
	}

	tc.LogInfo("engine.turn.done", "thread_id", tc.ThreadID, "steps", steps, "duration", time.Since(began))
	_ = tc.EmitEvent(core.StreamEvent{
		Type: core.EventDone,
		Text: tc.State.LastControllerResponse(),
	})
}

// step executes one node and computes the transition. A resume entry passes
// the human's reply through to the reviewer.
func (e *Engine) step(tc *core.TurnContext, n node, resumeText string) (node, error) {
	if err := e.callbacks.Execute(tc, CallbackBeforeNode, n.String(), nil); err != nil {
		return nodeEnd, err
	}

	var err error
	switch n {
	case nodeMemoryRetrieval:
		err = e.retrieveMemory(tc)
	case nodeController:
		err = e.runController(tc)
	case nodeWorker:
		var w *Worker
		if w, err = e.activeWorker(tc.State); err == nil {
			err = e.runWorker(tc, w)
		}
	case nodeToolExec:
		var w *Worker
		if w, err = e.activeWorker(tc.State); err == nil {
			err = e.runToolExec(tc, w)
		}
	case nodeReviewer:
		if resumeText != "" || tc.State.Suspended() {
			// Resume entry: classify the human reply and clear the checkpoint.
			var next node
			next, err = e.resumeReview(tc, resumeText)
			if err != nil {
				return nodeEnd, err
			}
			if cbErr := e.callbacks.Execute(tc, CallbackAfterNode, n.String(), nil); cbErr != nil {
				return nodeEnd, cbErr
			}
			return next, nil
		}
		err = e.runReviewer(tc)
	case nodeSummarizer:
		err = e.runSummarizer(tc)
	case nodeMemoryAgent:
		err = e.runMemoryAgent(tc)
	case nodeMemoryToolExec:
		err = e.runToolExec(tc, e.memoryAgent)
	default:
		err = fmt.Errorf("engine: no implementation for node %s", n)
	}
	if err != nil {
		_ = e.callbacks.Execute(tc, CallbackOnError, n.String(), err)
		return nodeEnd, err
	}

	if err := e.callbacks.Execute(tc, CallbackAfterNode, n.String(), nil); err != nil {
		return nodeEnd, err
	}
	return transition(n, tc.State, e.opts.MemoryToolBudget), nil
}

// activeWorker resolves the worker the current route dispatches to.
func (e *Engine) activeWorker(s *core.ConversationState) (*Worker, error) {
	kind, ok := s.Route.Worker()
	if !ok {
		return nil, fmt.Errorf("engine: route %q has no worker", s.Route)
	}
	w, registered := e.workers[kind]
	if !registered {
		return nil, fmt.Errorf("engine: no worker registered for %q", kind)
	}
	return w, nil
}

// fail emits a turn-level error event. State was last saved before the
// failing node ran, so the turn can be retried cleanly.
func (e *Engine) fail(tc *core.TurnContext, err error) {
	tc.LogError("engine.turn.failed", "thread_id", tc.ThreadID, "error", err)
	_ = tc.EmitEvent(core.StreamEvent{Type: core.EventError, Err: err.Error()})
}
