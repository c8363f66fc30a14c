package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/conciergeai/concierge/model"
)

// Toolset is an ordered collection of tools belonging to one worker, with a
// designation of which tool names are sensitive. Sensitive tools have outward
// effects (sending mail, creating events) and must pass human review before
// execution; everything else runs immediately.
type Toolset struct {
	tools     []Tool
	byName    map[string]Tool
	sensitive map[string]bool
}

// NewToolset builds a toolset from tools. Mark outward-acting tools with
// WithSensitive.
func NewToolset(tools []Tool, optFns ...func(o *ToolsetOptions)) *Toolset {
	opts := ToolsetOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	ts := &Toolset{
		tools:     tools,
		byName:    make(map[string]Tool, len(tools)),
		sensitive: make(map[string]bool, len(opts.Sensitive)),
	}
	for _, t := range tools {
		ts.byName[t.Name()] = t
	}
	for _, name := range opts.Sensitive {
		ts.sensitive[name] = true
	}
	return ts
}

// ToolsetOptions configure toolset construction.
type ToolsetOptions struct {
	Sensitive []string
}

// WithSensitive marks the named tools as requiring human review.
func WithSensitive(names ...string) func(o *ToolsetOptions) {
	return func(o *ToolsetOptions) {
		o.Sensitive = append(o.Sensitive, names...)
	}
}

// Definitions returns the declarations advertised to the model.
func (ts *Toolset) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, len(ts.tools))
	for i, t := range ts.tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// Get returns the named tool.
func (ts *Toolset) Get(name string) (Tool, bool) {
	t, ok := ts.byName[name]
	return t, ok
}

// IsSensitive reports whether the named tool requires human review.
func (ts *Toolset) IsSensitive(name string) bool { return ts.sensitive[name] }

// Len returns the number of tools in the set.
func (ts *Toolset) Len() int { return len(ts.tools) }

// Execute parses the serialized arguments, runs the named tool and renders
// its result as a string suitable for a tool-result message. Failures are
// returned as an error; the caller decides whether to surface them to the
// model as result content.
func (ts *Toolset) Execute(ctx context.Context, name, arguments string) (string, error) {
	t, ok := ts.byName[name]
	if !ok {
		return "", NewToolError(name, "unknown tool", "UNKNOWN_TOOL")
	}

	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("invalid arguments: %v", err),
				Code:    "VALIDATION_ERROR",
			}
		}
	}

	result, err := t.Call(ctx, args)
	if err != nil {
		return "", err
	}
	return RenderResult(result), nil
}

// RenderResult converts a tool's return value to result-message content.
// Strings pass through, everything else is JSON encoded.
func RenderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
