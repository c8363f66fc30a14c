// Package model defines the normalized completion contract between the
// engine and language-model providers, plus a scripted mock for tests.
// Provider adapters live in the openai and anthropic subpackages.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/conciergeai/concierge/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized model input produced by engine nodes. Messages
// must satisfy the tool-call pairing requirement before a request is built;
// adapters may assume every tool call is followed by its result.
type Request struct {
	Instructions   string           `json:"instructions"`
	Messages       []core.Message   `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ResponseSchema map[string]any   `json:"response_schema,omitempty"` // structured output, optional
}

// TokenUsage captures token accounting for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one complete model turn: assistant text and/or tool-call
// requests.
type Response struct {
	Content      string          `json:"content"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        *TokenUsage     `json:"usage,omitempty"`
}

// Info contains metadata about a completer implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Completer is the minimal interface the engine needs to drive generation.
// Complete is synchronous from the engine's perspective; cancellation flows
// through ctx.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Info() Info
}

// MockCompleter replays a scripted sequence of responses (or errors) and
// records every request it receives. It drives the engine tests through
// multi-step tool loops deterministically.
type MockCompleter struct {
	mu       sync.Mutex
	info     Info
	script   []scripted
	Requests []Request
}

type scripted struct {
	resp Response
	err  error
}

// NewMockCompleter constructs a MockCompleter with tool support enabled.
func NewMockCompleter(name string) *MockCompleter {
	return &MockCompleter{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// Enqueue appends a canned response to the script.
func (m *MockCompleter) Enqueue(resp Response) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{resp: resp})
	return m
}

// EnqueueText appends a plain assistant text response.
func (m *MockCompleter) EnqueueText(content string) *MockCompleter {
	return m.Enqueue(Response{Content: content, FinishReason: "stop"})
}

// EnqueueToolCall appends a response requesting a single tool call.
func (m *MockCompleter) EnqueueToolCall(id, name, args string) *MockCompleter {
	return m.Enqueue(Response{
		ToolCalls:    []core.ToolCall{{ID: id, Name: name, Arguments: args}},
		FinishReason: "tool_calls",
	})
}

// EnqueueError appends a transport failure.
func (m *MockCompleter) EnqueueError(err error) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// Complete implements Completer by popping the next scripted entry.
func (m *MockCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if len(m.script) == 0 {
		return Response{}, fmt.Errorf("mock completer %s: script exhausted after %d requests", m.info.Name, len(m.Requests))
	}

	next := m.script[0]
	m.script = m.script[1:]
	return next.resp, next.err
}

// Info implements Completer.
func (m *MockCompleter) Info() Info { return m.info }
