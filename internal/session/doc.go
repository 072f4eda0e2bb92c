// Package session implements the review session state machine and the engine
// that runs one session per user.
//
// A Session is an immutable value. Start builds one from a candidate list and
// every transition (Flip, Record, Terminate) returns a new value, leaving the
// receiver untouched. The state machine is
//
//	Idle ──Start(non-empty)──▶ Active ──Record(last card) / Terminate──▶ Completed
//
// with Active carrying a front/back face flag. Calling a transition from a state
// that does not allow it is a programming error and panics with *ProtocolError.
//
// Engine wraps the value in a per-user registry, loads cards and learning states
// from the stores, hands new states to a StateWriter without waiting for them,
// and reports completed sessions as events.
package session
