// Package engine implements the orchestration state machine that coordinates
// a controller, several tool-using workers, a human-review checkpoint and a
// long-term memory agent around each user turn.
//
// # Turn lifecycle
//
// One turn runs these nodes in sequence, with the worker loop repeating as
// long as the worker keeps requesting tools:
//
//	memory retrieval -> controller -> (worker -> tool exec -> [reviewer] -> worker ...)*
//	                 -> summarizer -> controller -> memory agent -> done
//
// Routing between nodes is a pure function over the conversation state (see
// transition); every other piece of logic lives in a node. Per thread,
// exactly one node runs at a time and state mutation is strictly sequential.
// Many threads run turns concurrently without coordination because all
// per-thread state lives behind the StateStore.
//
// # Human review
//
// When a worker requests a tool from its sensitive set, the reviewer builds
// a draft of the action and suspends the turn behind a durable checkpoint.
// The caller receives an interrupt event; the thread rejects further turns
// until Resume supplies the human's reply, which a secondary model call
// classifies as approved or change_requested. Approval releases the call and
// activates bulk approval for the rest of the task; a change request
// synthesizes a rejection result for the pending call and hands the worker a
// revision instruction.
//
// # Usage
//
//	eng := engine.New(states, memories, controllerModel,
//	    engine.WithLogger(logger))
//	_ = eng.RegisterWorker(&engine.Worker{
//	    Kind:        core.WorkerMail,
//	    Completer:   mailModel,
//	    Tools:       mailTools,
//	    Instruction: "You are the mail worker...",
//	})
//
//	events, err := eng.ProcessTurn(ctx, "thread-1", "email Sam the notes")
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    handleEvent(ev)
//	}
//
// A received interrupt event is answered later with:
//
//	events, err := eng.Resume(ctx, "thread-1", "approved")
//
// # Error handling
//
// Tool failures never fail a turn; they are folded into tool-result content
// for the owning worker. Model transport failures emit a turn-level error
// event and leave the state exactly as it was before the failed call, so the
// turn can be retried. Client disconnection cancels delivery only; the saved
// state remains valid.
package engine
