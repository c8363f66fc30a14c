package core

import "time"

// PendingToolCall is a sensitive tool invocation awaiting human review.
type PendingToolCall struct {
	Name          string     `json:"name"`
	Arguments     string     `json:"arguments"`
	CorrelationID string     `json:"correlation_id"`
	Worker        WorkerKind `json:"worker"`
}

// ReviewCheckpoint is the durable suspended-review variant of a conversation
// state. While set, the thread accepts only Resume; the token ties a resume
// request to this exact checkpoint across process restarts.
type ReviewCheckpoint struct {
	Draft string `json:"draft"`
	Token string `json:"token"`
}

// ReviewDecision is the outcome of a review cycle.
type ReviewDecision string

// Review decisions. Empty means the reviewer was a passthrough (no pending
// sensitive call).
const (
	ReviewApproved        ReviewDecision = "approved"
	ReviewChangeRequested ReviewDecision = "change_requested"
)

// ConversationState is the complete per-thread state. It is owned exclusively
// by its thread: exactly one engine node mutates it at a time, so it carries
// no locking. Stores clone on load/save to keep snapshots independent. All
// fields are JSON-serializable for durable persistence.
type ConversationState struct {
	ThreadID string `json:"thread_id"`

	// MessageLog is the complete raw trace (streaming/audit). CoreLog is the
	// controller-visible projection: user turns, controller outputs and task
	// summaries only, never raw tool chatter. SubLogs hold each worker's
	// private tool-calling loop.
	MessageLog Log                `json:"message_log"`
	CoreLog    Log                `json:"core_log"`
	SubLogs    map[WorkerKind]Log `json:"sub_logs"`

	Route             Route    `json:"route"`
	Handoff           *Message `json:"handoff,omitempty"`
	ActiveInstruction string   `json:"active_instruction,omitempty"`

	Pending        *PendingToolCall `json:"pending_sensitive_call,omitempty"`
	ReviewDecision ReviewDecision   `json:"review_decision,omitempty"`
	ReviewFeedback string           `json:"review_feedback,omitempty"`
	BulkApproval   bool             `json:"bulk_approval_active"`

	RetrievedMemory string                `json:"retrieved_memory,omitempty"`
	LastResponse    map[WorkerKind]string `json:"last_worker_response,omitempty"`

	AwaitingReview *ReviewCheckpoint `json:"awaiting_review,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// NewConversationState creates an empty state for a thread.
func NewConversationState(threadID string) *ConversationState {
	now := time.Now().UTC()
	return &ConversationState{
		ThreadID:     threadID,
		SubLogs:      map[WorkerKind]Log{},
		LastResponse: map[WorkerKind]string{},
		Route:        RouteNone,
		Created:      now,
		Updated:      now,
	}
}

// AppendMessage appends to the raw message trace.
func (s *ConversationState) AppendMessage(m Message) {
	s.MessageLog = s.MessageLog.Append(m)
	s.Updated = time.Now().UTC()
}

// AppendCore appends to the controller-visible core log. Tool-call and
// tool-result entries are never valid here; callers only pass user turns,
// controller outputs and task summaries.
func (s *ConversationState) AppendCore(m Message) {
	s.CoreLog = s.CoreLog.Append(m)
	s.Updated = time.Now().UTC()
}

// AppendSub appends to a worker's private sub-log.
func (s *ConversationState) AppendSub(kind WorkerKind, msgs ...Message) {
	if s.SubLogs == nil {
		s.SubLogs = map[WorkerKind]Log{}
	}
	s.SubLogs[kind] = s.SubLogs[kind].Append(msgs...)
	s.Updated = time.Now().UTC()
}

// SubLog returns a worker's sub-log (nil when the worker has not run).
func (s *ConversationState) SubLog(kind WorkerKind) Log { return s.SubLogs[kind] }

// SetSubLog replaces a worker's sub-log, used after reconciliation.
func (s *ConversationState) SetSubLog(kind WorkerKind, l Log) {
	if s.SubLogs == nil {
		s.SubLogs = map[WorkerKind]Log{}
	}
	s.SubLogs[kind] = l
	s.Updated = time.Now().UTC()
}

// Suspended reports whether the thread is parked at a review checkpoint.
func (s *ConversationState) Suspended() bool { return s.AwaitingReview != nil }

// ResetTaskState collapses a finished worker excursion: every sub-log is
// emptied and all task-scoped fields are cleared, including the bulk-approval
// flag (reset on task completion and on rejection, one consistent rule).
func (s *ConversationState) ResetTaskState() {
	s.SubLogs = map[WorkerKind]Log{}
	s.LastResponse = map[WorkerKind]string{}
	s.Handoff = nil
	s.ActiveInstruction = ""
	s.Pending = nil
	s.ReviewDecision = ""
	s.ReviewFeedback = ""
	s.BulkApproval = false
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy safe for independent mutation.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	c.MessageLog = s.MessageLog.Clone()
	c.CoreLog = s.CoreLog.Clone()
	c.SubLogs = make(map[WorkerKind]Log, len(s.SubLogs))
	for k, v := range s.SubLogs {
		c.SubLogs[k] = v.Clone()
	}
	c.LastResponse = make(map[WorkerKind]string, len(s.LastResponse))
	for k, v := range s.LastResponse {
		c.LastResponse[k] = v
	}
	if s.Handoff != nil {
		h := *s.Handoff
		c.Handoff = &h
	}
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	if s.AwaitingReview != nil {
		a := *s.AwaitingReview
		c.AwaitingReview = &a
	}
	return &c
}

// LastUserMessage returns the most recent user-authored message content.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.MessageLog) - 1; i >= 0; i-- {
		if s.MessageLog[i].Role == RoleUser {
			return s.MessageLog[i].Content
		}
	}
	return ""
}

// LastControllerResponse returns the most recent controller output content.
func (s *ConversationState) LastControllerResponse() string {
	for i := len(s.CoreLog) - 1; i >= 0; i-- {
		if s.CoreLog[i].Role == RoleController {
			return s.CoreLog[i].Content
		}
	}
	return ""
}
