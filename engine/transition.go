package engine

import "github.com/conciergeai/concierge/core"

// node identifies one step of the orchestration state machine. The set is
// closed; transition switches over it exhaustively.
type node int

const (
	nodeMemoryRetrieval node = iota
	nodeController
	nodeWorker
	nodeToolExec
	nodeReviewer
	nodeSummarizer
	nodeMemoryAgent
	nodeMemoryToolExec
	nodeSuspend
	nodeEnd
)

func (n node) String() string {
	switch n {
	case nodeMemoryRetrieval:
		return "memory_retrieval"
	case nodeController:
		return "controller"
	case nodeWorker:
		return "worker"
	case nodeToolExec:
		return "tool_exec"
	case nodeReviewer:
		return "reviewer"
	case nodeSummarizer:
		return "summarizer"
	case nodeMemoryAgent:
		return "memory_agent"
	case nodeMemoryToolExec:
		return "memory_tool_exec"
	case nodeSuspend:
		return "suspend"
	case nodeEnd:
		return "end"
	default:
		return "unknown"
	}
}

// transition is the pure routing function of the engine: given the node that
// just ran and the resulting conversation state, it yields the next node.
//
//	memory retrieval -> controller
//	controller       -> worker (route set) | memory agent (route none)
//	worker           -> reviewer (sensitive call) | tool exec (tool call) | summarizer
//	tool exec        -> same worker
//	reviewer         -> suspend | tool exec (approved) | worker (change requested) | summarizer
//	summarizer       -> controller
//	memory agent     -> memory tool exec (tool call, under budget) | end
//	memory tool exec -> memory agent
func transition(n node, s *core.ConversationState, memoryToolBudget int) node {
	switch n {
	case nodeMemoryRetrieval:
		return nodeController

	case nodeController:
		if _, ok := s.Route.Worker(); ok {
			return nodeWorker
		}
		return nodeMemoryAgent

	case nodeWorker:
		kind, ok := s.Route.Worker()
		if !ok {
			return nodeSummarizer
		}
		if s.Pending != nil {
			return nodeReviewer
		}
		if len(s.SubLog(kind).UnresolvedCalls()) > 0 {
			return nodeToolExec
		}
		return nodeSummarizer

	case nodeToolExec:
		return nodeWorker

	case nodeReviewer:
		switch {
		case s.Suspended():
			return nodeSuspend
		case s.ReviewDecision == core.ReviewApproved:
			return nodeToolExec
		case s.ReviewDecision == core.ReviewChangeRequested:
			return nodeWorker
		default:
			return nodeSummarizer
		}

	case nodeSummarizer:
		return nodeController

	case nodeMemoryAgent:
		sub := s.SubLog(core.WorkerMemory)
		if len(sub.UnresolvedCalls()) > 0 && toolExecutions(sub) < memoryToolBudget {
			return nodeMemoryToolExec
		}
		return nodeEnd

	case nodeMemoryToolExec:
		return nodeMemoryAgent

	default:
		return nodeEnd
	}
}

// toolExecutions counts completed tool round-trips in a sub-log. The memory
// agent's termination bound is expressed over this count so it survives
// persistence and replay.
func toolExecutions(l core.Log) int {
	n := 0
	for _, m := range l {
		if m.IsToolResult() {
			n++
		}
	}
	return n
}
