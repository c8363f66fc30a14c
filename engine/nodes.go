package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/conciergeai/concierge/core"
	"github.com/conciergeai/concierge/internal/util"
	"github.com/conciergeai/concierge/model"
)

// retrieveMemory runs once at the start of every turn. Retrieval failures are
// never fatal: the state always ends up with an explicit context value.
func (e *Engine) retrieveMemory(tc *core.TurnContext) error {
	s := tc.State

	results, err := tc.Memory.Search(s.LastUserMessage(), e.opts.MemorySearchLimit)
	if err != nil {
		tc.LogWarn("engine.memory.search_failed", "thread_id", tc.ThreadID, "error", err)
		s.RetrievedMemory = noMemoryContext
		return nil
	}
	if len(results) == 0 {
		s.RetrievedMemory = noMemoryContext
		return nil
	}

	s.RetrievedMemory = results[0].Content
	tc.LogDebug("engine.memory.retrieved", "thread_id", tc.ThreadID, "memory_id", results[0].ID)
	return nil
}

// runController invokes the controller model over the core log and applies
// its structured decision. Unparseable output degrades: the raw text becomes
// the user-facing response and the route collapses to none.
func (e *Engine) runController(tc *core.TurnContext) error {
	s := tc.State

	if err := tc.EmitEvent(core.StreamEvent{Type: core.EventAgentStart, Agent: "controller"}); err != nil {
		return err
	}

	instructions, err := util.RenderTemplate(e.opts.ControllerInstruction, map[string]any{
		"MemoryContext": s.RetrievedMemory,
		"SummaryMarker": summaryMarker,
	})
	if err != nil {
		return fmt.Errorf("render controller instruction: %w", err)
	}

	began := time.Now()
	resp, err := e.controller.Complete(tc.Context, model.Request{
		Instructions:   instructions,
		Messages:       s.CoreLog,
		ResponseSchema: decisionSchema(),
	})
	if err != nil {
		return fmt.Errorf("controller completion: %w", err)
	}
	tc.LogDebug("engine.controller.completed", "duration", time.Since(began))

	d, ok := parseDecision(resp.Content)
	if !ok {
		tc.LogWarn("engine.controller.malformed_decision", "thread_id", tc.ThreadID)
		d = decision{Route: string(core.RouteNone), UserFacingResponse: resp.Content}
	}

	route := core.ParseRoute(d.Route)
	if kind, hasWorker := route.Worker(); hasWorker {
		if _, registered := e.workers[kind]; !registered {
			tc.LogWarn("engine.controller.unregistered_worker", "worker", kind)
			route = core.RouteNone
		}
	}

	msg := core.NewControllerMessage(d.UserFacingResponse)
	s.AppendMessage(msg)
	s.AppendCore(msg)
	s.Route = route

	if kind, hasWorker := route.Worker(); hasWorker {
		h := core.NewHandoffMessage(d.HandoffInstruction, kind)
		s.Handoff = &h
		s.ActiveInstruction = d.HandoffInstruction
		tc.LogInfo("engine.controller.route", "route", route, "thread_id", tc.ThreadID)
	}

	if d.UserFacingResponse != "" {
		if err := tc.EmitEvent(core.StreamEvent{Type: core.EventToken, Agent: "controller", Text: d.UserFacingResponse}); err != nil {
			return err
		}
	}
	return nil
}

// runWorker drives one iteration of a worker's tool-call loop: reconcile the
// sub-log, complete, commit. Nothing is committed when the model call fails,
// so a retried turn replays from an unchanged state.
func (e *Engine) runWorker(tc *core.TurnContext, w *Worker) error {
	s := tc.State

	sub := s.SubLog(w.Kind).Clone()
	switch {
	case len(sub.UnresolvedCalls()) > 0:
		sub = sub.Reconcile(s.MessageLog)
	case s.Handoff != nil:
		sub = sub.Append(*s.Handoff)
	default:
		// Entry without a handoff: seed with the latest global message,
		// unless it is already the sub-log's tail.
		if last := s.MessageLog.Last(); last != nil && (sub.Last() == nil || sub.Last().ID != last.ID) {
			m := *last
			if m.HasToolCalls() {
				m = m.Stripped()
			}
			sub = sub.Append(m)
		}
	}

	if err := tc.EmitEvent(core.StreamEvent{Type: core.EventAgentStart, Agent: string(w.Kind)}); err != nil {
		return err
	}

	began := time.Now()
	resp, err := w.Completer.Complete(tc.Context, model.Request{
		Instructions: w.Instruction,
		Messages:     sub,
		Tools:        w.Tools.Definitions(),
	})
	if err != nil {
		return fmt.Errorf("%s worker completion: %w", w.Kind, err)
	}
	tc.LogDebug("engine.worker.completed", "worker", w.Kind, "duration", time.Since(began), "tool_calls", len(resp.ToolCalls))

	msg := core.NewWorkerMessage(w.Kind, resp.Content, resp.ToolCalls)
	sub = sub.Append(msg)
	s.SetSubLog(w.Kind, sub)
	s.AppendMessage(msg)
	if s.LastResponse == nil {
		s.LastResponse = map[core.WorkerKind]string{}
	}
	s.LastResponse[w.Kind] = resp.Content
	s.Handoff = nil
	s.ReviewDecision = ""

	s.Pending = nil
	for _, call := range resp.ToolCalls {
		if w.Tools.IsSensitive(call.Name) {
			s.Pending = &core.PendingToolCall{
				Name:          call.Name,
				Arguments:     call.Arguments,
				CorrelationID: call.ID,
				Worker:        w.Kind,
			}
			break
		}
	}

	if resp.Content != "" {
		if err := tc.EmitEvent(core.StreamEvent{Type: core.EventToken, Agent: string(w.Kind), Text: resp.Content}); err != nil {
			return err
		}
	}
	return nil
}

// runToolExec executes every unresolved call of the worker's trailing
// message. A failing tool never fails the turn; the error text becomes the
// result content and the owning worker decides what to do with it.
func (e *Engine) runToolExec(tc *core.TurnContext, w *Worker) error {
	s := tc.State

	calls := s.SubLog(w.Kind).UnresolvedCalls()
	for _, call := range calls {
		began := time.Now()
		out, err := w.Tools.Execute(tc.Context, call.Name, call.Arguments)
		if err != nil {
			tc.LogWarn("engine.tool.failed", "tool", call.Name, "worker", w.Kind, "error", err)
			out = fmt.Sprintf("Error executing %s: %v", call.Name, err)
		} else {
			tc.LogInfo("engine.tool.executed", "tool", call.Name, "worker", w.Kind, "duration", time.Since(began))
		}

		res := core.NewToolResultMessage(call.Name, call.ID, out)
		s.AppendSub(w.Kind, res)
		s.AppendMessage(res)

		if err := tc.EmitEvent(core.StreamEvent{Type: core.EventToolCall, Agent: string(w.Kind), Tool: call.Name, Args: call.Arguments}); err != nil {
			return err
		}
	}

	// The pending sensitive call (if any) is executed now; its review cycle
	// is complete.
	s.Pending = nil
	s.ReviewDecision = ""
	return nil
}

// reviewPayload is the interrupt event body, mirroring the wire shape review
// clients consume.
type reviewPayload struct {
	Type  string `json:"type"`
	Draft string `json:"payload"`
	Token string `json:"token"`
}

// runReviewer gates a pending sensitive call. With bulk approval active the
// call is released immediately; otherwise the turn suspends behind a durable
// checkpoint and waits for Resume.
func (e *Engine) runReviewer(tc *core.TurnContext) error {
	s := tc.State

	if s.Pending == nil {
		s.ReviewDecision = ""
		return nil
	}

	if s.BulkApproval {
		s.ReviewDecision = core.ReviewApproved
		tc.LogInfo("engine.review.auto_approved", "tool", s.Pending.Name, "thread_id", tc.ThreadID)
		return nil
	}

	draft := renderDraft(s.Pending)
	token := core.NewID()
	s.AwaitingReview = &core.ReviewCheckpoint{Draft: draft, Token: token}

	// Persist the checkpoint before the client learns about it, so a crash
	// between the two leaves a resumable thread rather than a lost draft.
	if err := tc.Save(); err != nil {
		return fmt.Errorf("save review checkpoint: %w", err)
	}

	payload, _ := json.Marshal(reviewPayload{Type: "review_required", Draft: draft, Token: token})
	tc.LogInfo("engine.review.suspended", "tool", s.Pending.Name, "thread_id", tc.ThreadID)
	return tc.EmitEvent(core.StreamEvent{Type: core.EventInterrupt, Agent: "reviewer", Payload: string(payload)})
}

// resumeReview classifies the human's reply against the suspended draft and
// returns the node execution continues from: tool execution on approval, the
// worker on a change request.
func (e *Engine) resumeReview(tc *core.TurnContext, humanText string) (node, error) {
	s := tc.State
	pending := s.Pending
	checkpoint := s.AwaitingReview

	if err := tc.EmitEvent(core.StreamEvent{Type: core.EventAgentStart, Agent: "reviewer"}); err != nil {
		return nodeEnd, err
	}

	content := fmt.Sprintf("Draft action:\n%s\n\nHuman reply: %s", checkpoint.Draft, humanText)
	resp, err := e.reviewer.Complete(tc.Context, model.Request{
		Instructions:   e.opts.ReviewerInstruction,
		Messages:       core.Log{core.NewUserMessage(content)},
		ResponseSchema: reviewSchema(),
	})
	if err != nil {
		// The checkpoint stays in place; the caller can Resume again.
		return nodeEnd, fmt.Errorf("review classification: %w", err)
	}

	verdict := parseReview(resp.Content, humanText)
	s.AwaitingReview = nil

	if verdict.Decision == string(core.ReviewApproved) {
		s.ReviewDecision = core.ReviewApproved
		s.ReviewFeedback = ""
		s.BulkApproval = true
		tc.LogInfo("engine.review.approved", "tool", pending.Name, "thread_id", tc.ThreadID)
		return nodeToolExec, nil
	}

	s.ReviewDecision = core.ReviewChangeRequested
	s.ReviewFeedback = verdict.Feedback
	s.BulkApproval = false

	// Synthesize results for every call in the rejected batch so the sub-log
	// stays well-formed, then hand the worker a revision instruction. The
	// reviewer gates the whole batch: sibling calls were not executed either,
	// and leaving any of them unpaired would poison every later replay.
	for _, call := range s.SubLog(pending.Worker).UnresolvedCalls() {
		content := "Not executed: this call was part of a batch the user did not approve."
		if call.ID == pending.CorrelationID {
			content = "Action not approved by the user. Feedback: " + verdict.Feedback
		}
		rejection := core.NewToolResultMessage(call.Name, call.ID, content)
		rejection.Metadata = map[string]string{core.MetaRejection: "true"}
		s.AppendSub(pending.Worker, rejection)
		s.AppendMessage(rejection)
	}

	h := core.NewHandoffMessage(
		"The user did not approve the previous action. Revise it according to this feedback: "+verdict.Feedback,
		pending.Worker)
	s.Handoff = &h
	s.Pending = nil

	tc.LogInfo("engine.review.change_requested", "tool", pending.Name, "thread_id", tc.ThreadID)
	return nodeWorker, nil
}

// runSummarizer collapses a finished worker excursion into one task-summary
// entry on the core log and resets all task-scoped state. The summary is the
// loop-prevention mechanism: it is the only trace of the excursion the
// controller ever sees.
func (e *Engine) runSummarizer(tc *core.TurnContext) error {
	s := tc.State

	var parts []string
	for _, kind := range core.AllWorkers() {
		resp := s.LastResponse[kind]
		results := s.SubLog(kind).ToolResults()
		if resp == "" && len(results) == 0 {
			continue
		}
		seg := string(kind) + ": " + resp
		if len(results) > 0 {
			seg += " (tool output: " + joinResults(results) + ")"
		}
		parts = append(parts, seg)
	}

	summary := summaryMarker + " Instruction completed: " + s.ActiveInstruction
	if len(parts) > 0 {
		summary += "\nResults: " + joinResults(parts)
	}
	summary += "\nThis instruction is done and must not be dispatched again."

	s.AppendCore(core.NewMessage(core.RoleUser, "task_summary", summary))
	s.ResetTaskState()
	s.Route = core.RouteNone

	tc.LogInfo("engine.summarizer.collapsed", "thread_id", tc.ThreadID)
	return nil
}

func joinResults(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " | "
		}
		out += p
	}
	return out
}

// runMemoryAgent runs the bounded end-of-turn memory curation loop. Its
// scratch sub-log is seeded once per turn with the turn's outcome; the
// transition table caps its tool executions.
func (e *Engine) runMemoryAgent(tc *core.TurnContext) error {
	s := tc.State
	w := e.memoryAgent

	sub := s.SubLog(core.WorkerMemory).Clone()
	if len(sub) == 0 {
		sub = sub.Append(core.NewMessage(core.RoleUser, "controller", memoryAgentContext(s)))
	} else if len(sub.UnresolvedCalls()) > 0 {
		sub = sub.Reconcile(s.MessageLog)
	}

	if err := tc.EmitEvent(core.StreamEvent{Type: core.EventAgentStart, Agent: string(core.WorkerMemory)}); err != nil {
		return err
	}

	resp, err := w.Completer.Complete(tc.Context, model.Request{
		Instructions: w.Instruction,
		Messages:     sub,
		Tools:        w.Tools.Definitions(),
	})
	if err != nil {
		return fmt.Errorf("memory agent completion: %w", err)
	}

	msg := core.NewWorkerMessage(core.WorkerMemory, resp.Content, resp.ToolCalls)
	sub = sub.Append(msg)
	s.SetSubLog(core.WorkerMemory, sub)
	s.AppendMessage(msg)

	tc.LogDebug("engine.memory_agent.completed", "tool_calls", len(resp.ToolCalls), "thread_id", tc.ThreadID)
	return nil
}
