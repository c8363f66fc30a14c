package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationState_ResetTaskState(t *testing.T) {
	s := NewConversationState("t1")
	s.AppendSub(WorkerMail, NewWorkerMessage(WorkerMail, "drafting", nil))
	s.LastResponse[WorkerMail] = "drafting"
	h := NewHandoffMessage("send it", WorkerMail)
	s.Handoff = &h
	s.ActiveInstruction = "send it"
	s.Pending = &PendingToolCall{Name: "send_email", CorrelationID: "m1", Worker: WorkerMail}
	s.ReviewDecision = ReviewApproved
	s.ReviewFeedback = "fine"
	s.BulkApproval = true
	s.AppendCore(NewUserMessage("hi"))
	s.AppendMessage(NewUserMessage("hi"))

	s.ResetTaskState()

	for _, kind := range AllWorkers() {
		assert.Empty(t, s.SubLog(kind))
	}
	assert.Empty(t, s.LastResponse)
	assert.Nil(t, s.Handoff)
	assert.Empty(t, s.ActiveInstruction)
	assert.Nil(t, s.Pending)
	assert.Empty(t, s.ReviewDecision)
	assert.Empty(t, s.ReviewFeedback)
	assert.False(t, s.BulkApproval)

	// The durable conversation record survives the reset.
	assert.Len(t, s.CoreLog, 1)
	assert.Len(t, s.MessageLog, 1)
}

func TestConversationState_CloneIsDeep(t *testing.T) {
	s := NewConversationState("t1")
	s.AppendMessage(NewUserMessage("hi"))
	s.AppendSub(WorkerMail, NewWorkerMessage(WorkerMail, "ok", nil))
	s.Pending = &PendingToolCall{Name: "send_email", CorrelationID: "m1", Worker: WorkerMail}
	s.AwaitingReview = &ReviewCheckpoint{Draft: "d", Token: "tok"}

	c := s.Clone()
	c.AppendMessage(NewUserMessage("later"))
	c.AppendSub(WorkerMail, NewWorkerMessage(WorkerMail, "more", nil))
	c.Pending.Name = "place_call"
	c.AwaitingReview.Token = "other"

	assert.Len(t, s.MessageLog, 1)
	assert.Len(t, s.SubLog(WorkerMail), 1)
	assert.Equal(t, "send_email", s.Pending.Name)
	assert.Equal(t, "tok", s.AwaitingReview.Token)
}

func TestConversationState_JSONRoundTrip(t *testing.T) {
	s := NewConversationState("t1")
	s.AppendMessage(NewUserMessage("send the mail"))
	s.AppendSub(WorkerMail, NewWorkerMessage(WorkerMail, "", []ToolCall{{ID: "m1", Name: "send_email", Arguments: `{"to":"x"}`}}))
	s.Route = RouteMail
	s.Pending = &PendingToolCall{Name: "send_email", Arguments: `{"to":"x"}`, CorrelationID: "m1", Worker: WorkerMail}
	s.AwaitingReview = &ReviewCheckpoint{Draft: "draft", Token: "tok"}
	s.BulkApproval = true

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back ConversationState
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, RouteMail, back.Route)
	assert.True(t, back.Suspended())
	assert.Equal(t, "m1", back.Pending.CorrelationID)
	require.Len(t, back.SubLog(WorkerMail), 1)
	assert.Equal(t, "send_email", back.SubLog(WorkerMail)[0].ToolCalls[0].Name)
	assert.True(t, back.BulkApproval)
}

func TestConversationState_LastLookups(t *testing.T) {
	s := NewConversationState("t1")
	assert.Empty(t, s.LastUserMessage())
	assert.Empty(t, s.LastControllerResponse())

	s.AppendMessage(NewUserMessage("first"))
	s.AppendMessage(NewControllerMessage("reply one"))
	s.AppendMessage(NewUserMessage("second"))
	s.AppendCore(NewControllerMessage("reply one"))
	s.AppendCore(NewControllerMessage("reply two"))

	assert.Equal(t, "second", s.LastUserMessage())
	assert.Equal(t, "reply two", s.LastControllerResponse())
}

func TestNewHandoffMessage(t *testing.T) {
	h := NewHandoffMessage("find X", WorkerContacts)
	assert.Equal(t, RoleUser, h.Role, "workers receive handoffs as user input")
	assert.Equal(t, "controller", h.Name)
	assert.Equal(t, string(WorkerContacts), h.Metadata["handoff_target"])
}
