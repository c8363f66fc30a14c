package core

// Log is an ordered, append-only message sequence. The conversation state
// holds one global log, one controller-visible core log and one sub-log per
// worker kind; all share this single reconciliation implementation.
type Log []Message

// Append returns the log extended by the given messages.
func (l Log) Append(msgs ...Message) Log {
	return append(l, msgs...)
}

// Last returns the final message, or nil for an empty log.
func (l Log) Last() *Message {
	if len(l) == 0 {
		return nil
	}
	return &l[len(l)-1]
}

// UnresolvedCalls returns the trailing message's tool calls that have no
// matching result later in the log. Because results are always appended
// directly after the requesting message, only the last message can be
// unresolved.
func (l Log) UnresolvedCalls() []ToolCall {
	last := l.Last()
	if last == nil || !last.HasToolCalls() {
		return nil
	}
	return last.ToolCalls
}

// Reconcile enforces the tool-call pairing requirement before the log is
// replayed to a model. If the trailing message carries tool calls, matching
// results are looked up in global (the complete message trace) and appended.
// When any call cannot be paired, the trailing message is instead stripped to
// content-only; a partially paired request is never replayed.
func (l Log) Reconcile(global Log) Log {
	calls := l.UnresolvedCalls()
	if len(calls) == 0 {
		return l
	}

	results := make([]Message, 0, len(calls))
	for _, call := range calls {
		found := false
		for _, m := range global {
			if m.ToolResultFor == call.ID {
				results = append(results, m)
				found = true
				break
			}
		}
		if !found {
			// Orphaned call: downgrade the request to plain content.
			out := make(Log, len(l))
			copy(out, l)
			out[len(out)-1] = out[len(out)-1].Stripped()
			return out
		}
	}

	return l.Append(results...)
}

// Paired reports whether every tool-call request in the log is followed by
// one result per correlation id. Used by tests to assert the pairing
// invariant over replayed logs.
func (l Log) Paired() bool {
	resolved := map[string]bool{}
	for _, m := range l {
		if m.IsToolResult() {
			resolved[m.ToolResultFor] = true
		}
	}
	for _, m := range l {
		for _, call := range m.ToolCalls {
			if !resolved[call.ID] {
				return false
			}
		}
	}
	return true
}

// ToolResults returns the contents of tool-result messages, excluding
// reviewer-synthesized rejection artifacts. The summarizer folds these into
// the task summary.
func (l Log) ToolResults() []string {
	var out []string
	for _, m := range l {
		if m.IsToolResult() && !m.IsRejection() {
			out = append(out, m.Content)
		}
	}
	return out
}

// Clone returns an independent copy of the log.
func (l Log) Clone() Log {
	if l == nil {
		return nil
	}
	out := make(Log, len(l))
	copy(out, l)
	return out
}
