// Package proposal defines the proposal data model and its ordered store.
//
// A Proposal carries one of three payload kinds (policy update, remote
// upgrade, remote call) through the lifecycle
//
//	Voting -> {Approved, Declined} -> Performed
//
// where Performed is globally terminal and carries the immutable execution
// result. The Store keys proposals by a strictly increasing identifier and
// supports point lookup, in-place mutation, paginated iteration in either
// order, and snapshot/restore for persistence across restarts.
package proposal
