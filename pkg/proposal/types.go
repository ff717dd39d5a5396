package proposal

import (
	"fmt"
	"time"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/governance"
)

// State is a proposal's lifecycle state.
type State string

const (
	// StateVoting accepts votes until the threshold triggers.
	StateVoting State = "voting"

	// StateApproved means the threshold was met; the proposal awaits Perform.
	StateApproved State = "approved"

	// StateDeclined means the threshold was missed. Terminal.
	StateDeclined State = "declined"

	// StatePerformed means the action was dispatched and its result
	// recorded. Terminal.
	StatePerformed State = "performed"
)

// Validate checks that the state is one of the known values.
func (s State) Validate() error {
	switch s {
	case StateVoting, StateApproved, StateDeclined, StatePerformed:
		return nil
	}
	return fmt.Errorf("unknown proposal state %q", string(s))
}

// Terminal reports whether no further transitions exist from the state.
func (s State) Terminal() bool {
	return s == StateDeclined || s == StatePerformed
}

// Vote is one participant's recorded choice on one proposal.
type Vote struct {
	// Voter is the participant who cast the vote.
	Voter candid.Principal `json:"voter"`

	// Affirm is true for an affirmative vote.
	Affirm bool `json:"affirm"`

	// At is when the vote was recorded.
	At time.Time `json:"at"`
}

// RemoteUpgrade instructs an upgrade of a remote process through the upload
// collaborator.
type RemoteUpgrade struct {
	// UploaderID addresses the upload collaborator holding the binary.
	UploaderID candid.Principal `json:"uploader_id"`

	// TargetID is the process to upgrade.
	TargetID candid.Principal `json:"target_id"`

	// OperatorID is the identity the grant is issued to.
	OperatorID candid.Principal `json:"operator_id"`

	// ExpectedHash is the hex digest the uploaded binary must match.
	ExpectedHash string `json:"expected_hash"`

	// ExpectedLength optionally pins the binary's byte length.
	ExpectedLength *uint64 `json:"expected_length,omitempty"`

	// Argument is the textual constructor argument, encoded at dispatch.
	Argument string `json:"argument"`
}

// RemoteCall instructs an arbitrary call to a remote process.
type RemoteCall struct {
	// TargetID is the process to call.
	TargetID candid.Principal `json:"target_id"`

	// Method is the remote method name.
	Method string `json:"method"`

	// Argument is the textual call argument, encoded at dispatch.
	Argument string `json:"argument"`

	// Payment is an optional amount attached to the call.
	Payment *uint64 `json:"payment,omitempty"`

	// Description optionally carries the target's interface description,
	// used to decode the reply.
	Description string `json:"description,omitempty"`
}

// Payload is the closed union of proposal actions. Exactly one member is
// non-nil.
type Payload struct {
	// PolicyUpdate replaces the governance policy wholesale.
	PolicyUpdate *governance.Policy `json:"policy_update,omitempty"`

	// RemoteUpgrade upgrades a remote process.
	RemoteUpgrade *RemoteUpgrade `json:"remote_upgrade,omitempty"`

	// RemoteCall issues a remote call.
	RemoteCall *RemoteCall `json:"remote_call,omitempty"`
}

// Category derives the action category from the payload variant.
func (p Payload) Category() (governance.ActionCategory, error) {
	set := 0
	var category governance.ActionCategory
	if p.PolicyUpdate != nil {
		set++
		category = governance.CategoryPolicyUpdate
	}
	if p.RemoteUpgrade != nil {
		set++
		category = governance.CategoryRemoteUpgrade
	}
	if p.RemoteCall != nil {
		set++
		category = governance.CategoryRemoteCall
	}
	if set != 1 {
		return "", fmt.Errorf("payload must carry exactly one action, has %d", set)
	}
	return category, nil
}

// ResultKind tags the execution result union.
type ResultKind string

const (
	// ResultDone means the action succeeded with no observable remote output.
	ResultDone ResultKind = "done"

	// ResultCallResponse carries the raw remote reply and its decodings.
	ResultCallResponse ResultKind = "call_response"

	// ResultError records a failed remote action as the proposal's terminal
	// outcome.
	ResultError ResultKind = "error"
)

// ExecutionResult is the immutable outcome attached to a performed proposal.
type ExecutionResult struct {
	// Kind selects which members are meaningful.
	Kind ResultKind `json:"kind"`

	// Response is the raw remote reply for call responses.
	Response []byte `json:"response,omitempty"`

	// Decoded is the textual rendering of Response, when decoding succeeded
	// in some form.
	Decoded string `json:"decoded,omitempty"`

	// DecodeError records why the interface-guided decode failed, when it
	// did.
	DecodeError string `json:"decode_error,omitempty"`

	// Reason is the failure text for error results.
	Reason string `json:"reason,omitempty"`
}

// Proposal is one collective-authorization request moving through the
// lifecycle.
type Proposal struct {
	// ID is the strictly increasing identifier assigned at creation.
	ID uint64 `json:"id"`

	// Proposer is the identity that created the proposal.
	Proposer candid.Principal `json:"proposer"`

	// Description is optional free text.
	Description string `json:"description,omitempty"`

	// Payload is the action to authorize.
	Payload Payload `json:"payload"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Result is set exactly once, when State becomes performed.
	Result *ExecutionResult `json:"result,omitempty"`

	// Votes are the recorded votes in cast order.
	Votes []Vote `json:"votes,omitempty"`

	// CreatedAt is when the proposal was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt advances on every recorded mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasVoted reports whether the participant already voted on the proposal.
func (p *Proposal) HasVoted(voter candid.Principal) bool {
	for _, v := range p.Votes {
		if v.Voter.Equal(voter) {
			return true
		}
	}
	return false
}

// AffirmativeVotes counts the recorded affirmative votes.
func (p *Proposal) AffirmativeVotes() uint32 {
	var n uint32
	for _, v := range p.Votes {
		if v.Affirm {
			n++
		}
	}
	return n
}

// Clone deep-copies the proposal so callers cannot alias stored state.
func (p *Proposal) Clone() Proposal {
	out := *p
	if p.Votes != nil {
		out.Votes = append([]Vote(nil), p.Votes...)
	}
	if p.Result != nil {
		result := *p.Result
		if result.Response != nil {
			result.Response = append([]byte(nil), result.Response...)
		}
		out.Result = &result
	}
	if p.Payload.PolicyUpdate != nil {
		policy := p.Payload.PolicyUpdate.Clone()
		out.Payload.PolicyUpdate = &policy
	}
	if p.Payload.RemoteUpgrade != nil {
		upgrade := *p.Payload.RemoteUpgrade
		out.Payload.RemoteUpgrade = &upgrade
	}
	if p.Payload.RemoteCall != nil {
		call := *p.Payload.RemoteCall
		out.Payload.RemoteCall = &call
	}
	return out
}
