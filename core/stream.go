package core

// StreamEventType enumerates the ordered per-thread stream events delivered
// to clients during a turn.
type StreamEventType string

// Stream event types. Ordering is guaranteed within a thread, not across
// threads.
const (
	EventAgentStart StreamEventType = "agent_start"
	EventToken      StreamEventType = "token"
	EventToolCall   StreamEventType = "tool_call"
	EventInterrupt  StreamEventType = "interrupt"
	EventDone       StreamEventType = "done"
	EventError      StreamEventType = "error"
)

// StreamEvent is one entry in a turn's output stream.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	ThreadID string          `json:"thread_id"`
	Agent    string          `json:"agent,omitempty"`
	Text     string          `json:"text,omitempty"`
	Tool     string          `json:"tool,omitempty"`
	Args     string          `json:"args,omitempty"`
	Payload  string          `json:"payload,omitempty"` // interrupt draft / resume token
	Err      string          `json:"error,omitempty"`
}
