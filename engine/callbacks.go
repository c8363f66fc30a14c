package engine

import (
	"github.com/conciergeai/concierge/core"
)

// CallbackType names the lifecycle points where callbacks run.
type CallbackType string

const (
	// CallbackBeforeNode fires before a node executes. Use for validation
	// or instrumentation; an error aborts the turn.
	CallbackBeforeNode CallbackType = "before_node"

	// CallbackAfterNode fires after a node executed successfully. Use for
	// metrics or auditing.
	CallbackAfterNode CallbackType = "after_node"

	// CallbackOnError fires when a node fails. The turn still fails;
	// callback errors here are ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the execution point a callback observes. State is
// the live conversation state; callbacks must treat it as read-only.
type CallbackContext struct {
	ThreadID string
	TurnID   string
	Node     string
	State    *core.ConversationState
	Err      error
}

// Callback is a lifecycle hook. Implementations should be fast (they run
// synchronously on the turn goroutine) and must not mutate state.
type Callback interface {
	Type() CallbackType
	Execute(cc *CallbackContext) error
}

// FunctionCallback wraps a plain function as a Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(cc *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback for the given type.
func NewFunctionCallback(callbackType CallbackType, fn func(cc *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(cc *CallbackContext) error { return c.fn(cc) }

// CallbackManager holds registered callbacks and runs them in registration
// order at each lifecycle point. Registration is not synchronized; register
// everything before the engine starts processing turns.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: map[CallbackType][]Callback{}}
}

// Register adds a callback for its declared type.
func (cm *CallbackManager) Register(cb Callback) {
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// Execute runs every callback of the given type. The first error stops the
// chain and is returned, except for CallbackOnError where errors are dropped.
func (cm *CallbackManager) Execute(tc *core.TurnContext, t CallbackType, nodeName string, nodeErr error) error {
	cbs := cm.callbacks[t]
	if len(cbs) == 0 {
		return nil
	}

	cc := &CallbackContext{
		ThreadID: tc.ThreadID,
		TurnID:   tc.TurnID,
		Node:     nodeName,
		State:    tc.State,
		Err:      nodeErr,
	}
	for _, cb := range cbs {
		if err := cb.Execute(cc); err != nil {
			if t == CallbackOnError {
				continue
			}
			return err
		}
	}
	return nil
}
