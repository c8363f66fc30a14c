package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

// Author roles.
const (
	RoleUser       Role = "user"
	RoleController Role = "controller"
	RoleWorker     Role = "worker"
	RoleTool       Role = "tool"
)

// ToolCall is a request by a worker's model to invoke a named tool. ID is the
// correlation id that the matching tool result must carry.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // serialized JSON payload
}

// MetaRejection marks tool-result messages synthesized by the reviewer on a
// change_requested decision. The summarizer skips them when composing the
// task summary.
const MetaRejection = "rejection"

// Message is the unit of conversation state. A message either carries plain
// content, requests tool calls (ToolCalls non-empty), or answers a previous
// tool call (ToolResultFor set). After emission it is treated as immutable.
type Message struct {
	ID            string            `json:"id"`
	Role          Role              `json:"role"`
	Name          string            `json:"name,omitempty"`
	Content       string            `json:"content,omitempty"`
	ToolCalls     []ToolCall        `json:"tool_calls,omitempty"`
	ToolResultFor string            `json:"tool_result_for,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewMessage creates a bare message with a fresh id and UTC timestamp.
func NewMessage(role Role, name, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Name:      name,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored turn input.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, "user", content)
}

// NewControllerMessage creates a controller output addressed to the user.
func NewControllerMessage(content string) Message {
	return NewMessage(RoleController, "controller", content)
}

// NewHandoffMessage creates the controller's instruction to a worker. It is
// user-authored from the worker model's point of view, named after the
// controller for audit.
func NewHandoffMessage(instruction string, target WorkerKind) Message {
	m := NewMessage(RoleUser, "controller", instruction)
	m.Metadata = map[string]string{"handoff_target": string(target)}
	return m
}

// NewWorkerMessage creates a worker response, optionally carrying tool-call
// requests.
func NewWorkerMessage(kind WorkerKind, content string, calls []ToolCall) Message {
	m := NewMessage(RoleWorker, string(kind), content)
	m.ToolCalls = calls
	return m
}

// NewToolResultMessage records the outcome of a tool call, paired to the
// originating request through its correlation id.
func NewToolResultMessage(toolName, correlationID, content string) Message {
	m := NewMessage(RoleTool, toolName, content)
	m.ToolResultFor = correlationID
	return m
}

// NewID generates a unique identifier for messages, turns and resume tokens.
func NewID() string { return uuid.NewString() }

// HasToolCalls reports whether the message requests any tool invocations.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// IsToolResult reports whether the message answers a previous tool call.
func (m Message) IsToolResult() bool { return m.ToolResultFor != "" }

// IsRejection reports whether the message is a reviewer-synthesized rejection
// artifact.
func (m Message) IsRejection() bool {
	return m.Metadata[MetaRejection] == "true"
}

// Stripped returns a content-only copy of the message: tool-call metadata is
// removed so the message can be replayed to a model without violating the
// pairing requirement. Empty content gets a placeholder so providers that
// reject empty assistant turns still accept it.
func (m Message) Stripped() Message {
	c := m
	c.ToolCalls = nil
	if c.Content == "" {
		c.Content = "Delegating to tools."
	}
	return c
}
