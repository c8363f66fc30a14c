package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_UnresolvedCalls(t *testing.T) {
	var l Log
	assert.Nil(t, l.UnresolvedCalls())

	l = l.Append(NewUserMessage("hi"))
	assert.Nil(t, l.UnresolvedCalls())

	l = l.Append(NewWorkerMessage(WorkerMail, "", []ToolCall{{ID: "c1", Name: "search"}}))
	calls := l.UnresolvedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)

	l = l.Append(NewToolResultMessage("search", "c1", "found"))
	assert.Nil(t, l.UnresolvedCalls())
}

func TestLog_ReconcileAppendsMatchingResults(t *testing.T) {
	request := NewWorkerMessage(WorkerMail, "", []ToolCall{
		{ID: "c1", Name: "search"},
		{ID: "c2", Name: "search"},
	})
	r1 := NewToolResultMessage("search", "c1", "one")
	r2 := NewToolResultMessage("search", "c2", "two")

	sub := Log{request}
	global := Log{request, r1, r2}

	out := sub.Reconcile(global)
	require.Len(t, out, 3)
	assert.Equal(t, "c1", out[1].ToolResultFor)
	assert.Equal(t, "c2", out[2].ToolResultFor)
	assert.True(t, out.Paired())

	// The receiver is unchanged.
	assert.Len(t, sub, 1)
}

func TestLog_ReconcileStripsWhenAnyCallOrphaned(t *testing.T) {
	request := NewWorkerMessage(WorkerMail, "", []ToolCall{
		{ID: "c1", Name: "search"},
		{ID: "c2", Name: "search"},
	})
	r1 := NewToolResultMessage("search", "c1", "one")

	sub := Log{NewUserMessage("find it"), request}
	global := Log{request, r1} // c2 has no result anywhere

	out := sub.Reconcile(global)
	require.Len(t, out, 2)
	last := out.Last()
	assert.False(t, last.HasToolCalls(), "orphaned request is stripped, never partially paired")
	assert.NotEmpty(t, last.Content)
	assert.True(t, out.Paired())
}

func TestLog_ReconcileNoopWithoutTrailingCalls(t *testing.T) {
	sub := Log{NewUserMessage("hi"), NewWorkerMessage(WorkerMail, "done", nil)}
	out := sub.Reconcile(Log{})
	assert.Equal(t, sub, out)
}

func TestLog_Paired(t *testing.T) {
	request := NewWorkerMessage(WorkerMail, "", []ToolCall{{ID: "c1", Name: "search"}})

	assert.False(t, Log{request}.Paired())
	assert.True(t, Log{request, NewToolResultMessage("search", "c1", "ok")}.Paired())
	assert.True(t, Log{NewUserMessage("hi")}.Paired())
}

func TestLog_ToolResultsSkipsRejections(t *testing.T) {
	ok := NewToolResultMessage("search", "c1", "found it")
	rejected := NewToolResultMessage("send_email", "c2", "not approved")
	rejected.Metadata = map[string]string{MetaRejection: "true"}

	l := Log{ok, rejected, NewWorkerMessage(WorkerMail, "done", nil)}
	assert.Equal(t, []string{"found it"}, l.ToolResults())
}

func TestMessage_Stripped(t *testing.T) {
	m := NewWorkerMessage(WorkerMail, "", []ToolCall{{ID: "c1", Name: "search"}})
	s := m.Stripped()
	assert.False(t, s.HasToolCalls())
	assert.NotEmpty(t, s.Content, "placeholder content for providers that reject empty turns")

	// Content survives stripping.
	m = NewWorkerMessage(WorkerMail, "thinking", []ToolCall{{ID: "c2", Name: "search"}})
	assert.Equal(t, "thinking", m.Stripped().Content)
}

func TestLog_CloneIsIndependent(t *testing.T) {
	l := Log{NewUserMessage("a")}
	c := l.Clone()
	c = c.Append(NewUserMessage("b"))
	assert.Len(t, l, 1)
	assert.Len(t, c, 2)
}
