// Package engine implements the proposal lifecycle state machine.
//
// # Lifecycle
//
// Proposals move through Voting -> {Approved, Declined} -> Performed. The
// engine enforces exactly-once terminal transitions under concurrent
// callers:
//
//  1. Create validates the caller's add capability and the payload, then
//     stores the proposal in the voting state under a fresh id.
//  2. Vote enforces one vote per participant and evaluates the category's
//     threshold once the stop count is reached.
//  3. Perform runs in three phases: read-validate, dispatch with no lock
//     held, and a commit that re-checks the approved state so a racing
//     perform degrades to a reported conflict instead of a duplicated
//     privileged action.
//
// Remote failures during dispatch become the proposal's recorded terminal
// outcome, never an engine-level failure: once dispatch is attempted the
// proposal always reaches Performed (or the caller loses the commit race).
//
// External collaborators (the call transport and the upgrade-grant
// submitter) are consumed through the interfaces in interfaces.go.
package engine
