package engine

import (
	"context"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/proposal"
)

// Caller is the point-to-point remote call transport. A call may suspend
// indefinitely; failures are reported as errors and never retried by the
// engine.
type Caller interface {
	// Call invokes method on the target process with the encoded argument
	// bytes and an optional attached payment, returning the raw reply.
	Call(ctx context.Context, target candid.Principal, method string, args []byte, payment *uint64) ([]byte, error)
}

// Grant describes one upgrade grant submitted to the upload collaborator.
type Grant struct {
	// UploaderID addresses the collaborator holding the binary.
	UploaderID candid.Principal

	// OperatorID is the identity the grant is issued to.
	OperatorID candid.Principal

	// TargetID is the process to upgrade.
	TargetID candid.Principal

	// ExpectedHash is the hex digest the binary must match.
	ExpectedHash string

	// ExpectedLength optionally pins the binary's byte length.
	ExpectedLength *uint64

	// Argument is the encoded constructor argument.
	Argument []byte
}

// GrantSubmitter is the upload collaborator that ships new program images to
// remote processes.
type GrantSubmitter interface {
	// SubmitGrant authorizes one upgrade through the collaborator.
	SubmitGrant(ctx context.Context, grant Grant) error
}

// Checkpointer persists the full application state after a successful
// mutation. The engine calls it outside the proposal store lock.
type Checkpointer interface {
	// Save persists the store snapshot and the active policy.
	Save(ctx context.Context, snapshot proposal.Snapshot, policy governance.Policy) error
}
