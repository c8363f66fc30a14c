package engine

import (
	"testing"

	"github.com/conciergeai/concierge/core"
	"github.com/stretchr/testify/assert"
)

func TestTransition_RetrievalAlwaysReachesController(t *testing.T) {
	s := core.NewConversationState("t")
	assert.Equal(t, nodeController, transition(nodeMemoryRetrieval, s, 2))
}

func TestTransition_ControllerRouting(t *testing.T) {
	s := core.NewConversationState("t")

	for _, route := range []core.Route{core.RouteMail, core.RouteCalendar, core.RouteContacts, core.RouteBrowser, core.RouteResearch} {
		s.Route = route
		assert.Equal(t, nodeWorker, transition(nodeController, s, 2), "route %s", route)
	}

	s.Route = core.RouteNone
	assert.Equal(t, nodeMemoryAgent, transition(nodeController, s, 2))
}

func TestTransition_WorkerBranches(t *testing.T) {
	s := core.NewConversationState("t")
	s.Route = core.RouteMail

	// Sensitive call pending: review first.
	s.Pending = &core.PendingToolCall{Name: "send_email", CorrelationID: "m1", Worker: core.WorkerMail}
	assert.Equal(t, nodeReviewer, transition(nodeWorker, s, 2))

	// Plain tool call: straight to execution.
	s.Pending = nil
	s.SetSubLog(core.WorkerMail, core.Log{
		core.NewWorkerMessage(core.WorkerMail, "", []core.ToolCall{{ID: "m2", Name: "search_inbox"}}),
	})
	assert.Equal(t, nodeToolExec, transition(nodeWorker, s, 2))

	// No tool call: the excursion is done.
	s.SetSubLog(core.WorkerMail, core.Log{core.NewWorkerMessage(core.WorkerMail, "done", nil)})
	assert.Equal(t, nodeSummarizer, transition(nodeWorker, s, 2))
}

func TestTransition_ToolExecReturnsToWorker(t *testing.T) {
	s := core.NewConversationState("t")
	s.Route = core.RouteMail
	assert.Equal(t, nodeWorker, transition(nodeToolExec, s, 2))
}

func TestTransition_ReviewerBranches(t *testing.T) {
	s := core.NewConversationState("t")
	s.Route = core.RouteMail

	s.AwaitingReview = &core.ReviewCheckpoint{Draft: "d", Token: "tok"}
	assert.Equal(t, nodeSuspend, transition(nodeReviewer, s, 2))

	s.AwaitingReview = nil
	s.ReviewDecision = core.ReviewApproved
	assert.Equal(t, nodeToolExec, transition(nodeReviewer, s, 2))

	s.ReviewDecision = core.ReviewChangeRequested
	assert.Equal(t, nodeWorker, transition(nodeReviewer, s, 2))

	// Passthrough without a pending sensitive call.
	s.ReviewDecision = ""
	assert.Equal(t, nodeSummarizer, transition(nodeReviewer, s, 2))
}

func TestTransition_SummarizerReturnsToController(t *testing.T) {
	s := core.NewConversationState("t")
	assert.Equal(t, nodeController, transition(nodeSummarizer, s, 2))
}

func TestTransition_MemoryAgentBudget(t *testing.T) {
	s := core.NewConversationState("t")

	// No tool call: turn ends.
	s.SetSubLog(core.WorkerMemory, core.Log{core.NewWorkerMessage(core.WorkerMemory, "no update needed", nil)})
	assert.Equal(t, nodeEnd, transition(nodeMemoryAgent, s, 2))

	// Tool call under budget: execute it.
	s.SetSubLog(core.WorkerMemory, core.Log{
		core.NewWorkerMessage(core.WorkerMemory, "", []core.ToolCall{{ID: "a", Name: "add_memory"}}),
	})
	assert.Equal(t, nodeMemoryToolExec, transition(nodeMemoryAgent, s, 2))

	// Budget exhausted: terminate despite the pending call.
	exhausted := core.Log{
		core.NewWorkerMessage(core.WorkerMemory, "", []core.ToolCall{{ID: "a", Name: "add_memory"}}),
		core.NewToolResultMessage("add_memory", "a", "stored"),
		core.NewWorkerMessage(core.WorkerMemory, "", []core.ToolCall{{ID: "b", Name: "add_memory"}}),
		core.NewToolResultMessage("add_memory", "b", "stored"),
		core.NewWorkerMessage(core.WorkerMemory, "", []core.ToolCall{{ID: "c", Name: "add_memory"}}),
	}
	s.SetSubLog(core.WorkerMemory, exhausted)
	assert.Equal(t, nodeEnd, transition(nodeMemoryAgent, s, 2))

	assert.Equal(t, nodeMemoryAgent, transition(nodeMemoryToolExec, s, 2))
}

func TestNodeString_CoversAllNodes(t *testing.T) {
	names := map[node]string{
		nodeMemoryRetrieval: "memory_retrieval",
		nodeController:      "controller",
		nodeWorker:          "worker",
		nodeToolExec:        "tool_exec",
		nodeReviewer:        "reviewer",
		nodeSummarizer:      "summarizer",
		nodeMemoryAgent:     "memory_agent",
		nodeMemoryToolExec:  "memory_tool_exec",
		nodeSuspend:         "suspend",
		nodeEnd:             "end",
	}
	for n, want := range names {
		assert.Equal(t, want, n.String())
	}
}

func TestParseDecision(t *testing.T) {
	d, ok := parseDecision(`{"thoughts":"t","route":"mail","handoff_instruction":"send it","user_facing_response":"on it"}`)
	assert.True(t, ok)
	assert.Equal(t, "mail", d.Route)

	// JSON wrapped in prose still parses.
	d, ok = parseDecision("Sure, here's my decision:\n```json\n{\"route\":\"none\",\"user_facing_response\":\"hi\"}\n```")
	assert.True(t, ok)
	assert.Equal(t, "none", d.Route)
	assert.Equal(t, "hi", d.UserFacingResponse)

	_, ok = parseDecision("just plain prose")
	assert.False(t, ok)

	_, ok = parseDecision(`{"thoughts":"empty otherwise"}`)
	assert.False(t, ok)
}

func TestParseReview(t *testing.T) {
	r := parseReview(`{"decision":"approved","feedback":""}`, "yes")
	assert.Equal(t, "approved", r.Decision)

	r = parseReview("garbage", "make it shorter")
	assert.Equal(t, string(core.ReviewChangeRequested), r.Decision)
	assert.Equal(t, "make it shorter", r.Feedback)
}

func TestRenderDraft(t *testing.T) {
	draft := renderDraft(&core.PendingToolCall{
		Name:          "send_email",
		Arguments:     `{"to":"x@example.com","subject":"Meeting","body":"See you at 2pm","cc":"y@example.com"}`,
		CorrelationID: "m1",
		Worker:        core.WorkerMail,
	})
	assert.Contains(t, draft, "ACTION PENDING APPROVAL")
	assert.Contains(t, draft, "Tool: send_email")
	assert.Contains(t, draft, "To: x@example.com")
	assert.Contains(t, draft, "Subject: Meeting")
	assert.Contains(t, draft, "Message: See you at 2pm")
	assert.Contains(t, draft, "cc: y@example.com")

	// Unparseable arguments are shown verbatim.
	draft = renderDraft(&core.PendingToolCall{Name: "place_call", Arguments: "not json"})
	assert.Contains(t, draft, "Arguments: not json")
}
