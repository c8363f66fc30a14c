package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conciergeai/concierge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ core.StateStore = (*InMemoryStore)(nil)
	_ core.StateStore = (*FileStore)(nil)
)

func TestInMemoryStore_LoadUnknownThread(t *testing.T) {
	s := NewInMemoryStore()
	st, err := s.Load("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", st.ThreadID)
	assert.Empty(t, st.MessageLog)
}

func TestInMemoryStore_CloneIsolation(t *testing.T) {
	s := NewInMemoryStore()
	st := core.NewConversationState("t1")
	st.AppendMessage(core.NewUserMessage("hello"))
	require.NoError(t, s.Save(st))

	// mutate the saved snapshot after Save; store must be unaffected
	st.AppendMessage(core.NewUserMessage("later"))

	loaded, err := s.Load("t1")
	require.NoError(t, err)
	assert.Len(t, loaded.MessageLog, 1)

	// mutate the loaded snapshot; store must be unaffected
	loaded.AppendMessage(core.NewUserMessage("even later"))
	again, _ := s.Load("t1")
	assert.Len(t, again.MessageLog, 1)
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	st := core.NewConversationState("thread-1")
	st.AppendMessage(core.NewUserMessage("send the email"))
	st.AppendCore(core.NewUserMessage("send the email"))
	st.Route = core.RouteMail
	require.NoError(t, s.Save(st))

	loaded, err := s.Load("thread-1")
	require.NoError(t, err)
	assert.Equal(t, "thread-1", loaded.ThreadID)
	assert.Equal(t, core.RouteMail, loaded.Route)
	require.Len(t, loaded.MessageLog, 1)
	assert.Equal(t, "send the email", loaded.MessageLog[0].Content)
}

func TestFileStore_ReviewCheckpointSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	st := core.NewConversationState("thread-2")
	st.Pending = &core.PendingToolCall{
		Name:          "send_email",
		Arguments:     `{"to":"sam@example.com"}`,
		CorrelationID: "call-1",
		Worker:        core.WorkerMail,
	}
	st.AwaitingReview = &core.ReviewCheckpoint{Draft: "To: sam@example.com", Token: "tok-1"}
	require.NoError(t, s.Save(st))

	// a second store over the same directory models a process restart
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	loaded, err := reopened.Load("thread-2")
	require.NoError(t, err)

	require.True(t, loaded.Suspended())
	assert.Equal(t, "tok-1", loaded.AwaitingReview.Token)
	require.NotNil(t, loaded.Pending)
	assert.Equal(t, "send_email", loaded.Pending.Name)
	assert.Equal(t, core.WorkerMail, loaded.Pending.Worker)
}

func TestFileStore_UnknownThread(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	st, err := s.Load("missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", st.ThreadID)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load("../escape")
	assert.Error(t, err)
	err = s.Save(core.NewConversationState("a/b"))
	assert.Error(t, err)
}

func TestFileStore_AtomicWriteLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(core.NewConversationState("t")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t.json", filepath.Base(entries[0].Name()))
}
