package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/conciergeai/concierge/core"
)

// noMemoryContext is the explicit value stored when retrieval finds nothing
// or fails. Downstream prompts always have a context string to interpolate.
const noMemoryContext = "No relevant context found."

// summaryMarker prefixes every task-summary entry in the core log.
const summaryMarker = "[SUB_AGENT_SUMMARY]"

// defaultControllerInstruction is the controller's system prompt. MemoryContext
// is interpolated per turn.
const defaultControllerInstruction = `You are the controller of a personal assistant. You decide, one step at a
time, which specialized worker handles the next part of the user's request,
or that no further work is needed.

Workers: mail (email), calendar (scheduling), contacts (address book),
browser (web navigation), research (open-ended lookup).

Entries marked {{.SummaryMarker}} describe work that is already finished.
Never dispatch an instruction that such an entry covers.

Long-term memory about this user:
{{.MemoryContext}}

Respond with a JSON object:
{"thoughts": "...", "route": "mail|calendar|contacts|browser|research|none",
"handoff_instruction": "...", "user_facing_response": "..."}

Set route to "none" when the request is complete or needs no worker, and put
your reply to the user in user_facing_response.`

// defaultReviewerInstruction classifies a human reply to a pending action.
const defaultReviewerInstruction = `A draft of a sensitive action was shown to a human for approval. Classify
their reply. Respond with a JSON object:
{"decision": "approved|change_requested", "feedback": "..."}

"approved" only when the human clearly consents. Anything else, including
requests to modify the action, is "change_requested"; put the requested
changes in feedback.`

// defaultMemoryInstruction drives the long-term memory agent.
const defaultMemoryInstruction = `You maintain long-term memory about the user. Given the conversation turn
below, decide whether any durable fact should be stored, corrected or
removed. Use the add_memory, update_memory and delete_memory tools for
changes. If nothing is worth keeping, reply exactly "no update needed".
Store only stable facts (preferences, relationships, recurring details),
never transient task state.`

// decision is the controller's structured output.
type decision struct {
	Thoughts           string `json:"thoughts"`
	Route              string `json:"route"`
	HandoffInstruction string `json:"handoff_instruction"`
	UserFacingResponse string `json:"user_facing_response"`
}

func decisionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thoughts":             map[string]any{"type": "string"},
			"route":                map[string]any{"type": "string", "enum": []string{"mail", "calendar", "contacts", "browser", "research", "none"}},
			"handoff_instruction":  map[string]any{"type": "string"},
			"user_facing_response": map[string]any{"type": "string"},
		},
		"required": []string{"route", "user_facing_response"},
	}
}

// parseDecision extracts a decision from model output. It accepts plain JSON
// or JSON embedded in surrounding prose. The boolean is false when nothing
// usable can be parsed; the caller then falls back to degraded mode.
func parseDecision(content string) (decision, bool) {
	var d decision
	if err := json.Unmarshal([]byte(content), &d); err == nil && usable(d) {
		return d, true
	}
	if inner, ok := extractObject(content); ok {
		if err := json.Unmarshal([]byte(inner), &d); err == nil && usable(d) {
			return d, true
		}
	}
	return decision{}, false
}

func usable(d decision) bool {
	return d.Route != "" || d.UserFacingResponse != ""
}

// review is the reviewer's structured classification output.
type review struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}

func reviewSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"decision": map[string]any{"type": "string", "enum": []string{"approved", "change_requested"}},
			"feedback": map[string]any{"type": "string"},
		},
		"required": []string{"decision"},
	}
}

// parseReview extracts the review classification. A malformed classification
// degrades to change_requested with the raw human text as feedback: a
// sensitive action never executes on an unparseable verdict.
func parseReview(content, humanText string) review {
	var r review
	if err := json.Unmarshal([]byte(content), &r); err == nil && r.Decision != "" {
		return r
	}
	if inner, ok := extractObject(content); ok {
		if err := json.Unmarshal([]byte(inner), &r); err == nil && r.Decision != "" {
			return r
		}
	}
	return review{Decision: string(core.ReviewChangeRequested), Feedback: humanText}
}

// extractObject returns the outermost {...} span of s, for model outputs that
// wrap their JSON in prose or code fences.
func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// renderDraft builds the human-readable approval draft for a pending
// sensitive call. Well-known argument keys (recipient, subject, body) are
// pulled into labeled lines; everything else is listed verbatim.
func renderDraft(p *core.PendingToolCall) string {
	var b strings.Builder
	rule := strings.Repeat("=", 50)
	b.WriteString(rule + "\n")
	b.WriteString("ACTION PENDING APPROVAL\n")
	fmt.Fprintf(&b, "Tool: %s\n", p.Name)

	args := map[string]any{}
	if p.Arguments != "" {
		if err := json.Unmarshal([]byte(p.Arguments), &args); err != nil {
			fmt.Fprintf(&b, "Arguments: %s\n", p.Arguments)
			b.WriteString(rule)
			return b.String()
		}
	}

	writeArg := func(label string, keys ...string) {
		for _, k := range keys {
			if v, ok := args[k]; ok {
				fmt.Fprintf(&b, "%s: %v\n", label, v)
				delete(args, k)
				return
			}
		}
	}
	writeArg("To", "to", "recipient", "attendee")
	writeArg("Subject", "subject", "title")
	writeArg("Message", "body", "message", "content")

	rest := make([]string, 0, len(args))
	for k := range args {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		fmt.Fprintf(&b, "%s: %v\n", k, args[k])
	}

	b.WriteString(rule)
	return b.String()
}

// memoryAgentContext composes the memory agent's single input message.
func memoryAgentContext(s *core.ConversationState) string {
	var b strings.Builder
	b.WriteString("User said: " + s.LastUserMessage() + "\n")
	b.WriteString("Assistant replied: " + s.LastControllerResponse() + "\n")
	b.WriteString("Existing memory context: " + s.RetrievedMemory)
	return b.String()
}
