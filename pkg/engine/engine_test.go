package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/proposal"
)

type fakeCaller struct {
	reply  []byte
	err    error
	calls  int
	method string
	args   []byte
}

func (f *fakeCaller) Call(_ context.Context, _ candid.Principal, method string, args []byte, _ *uint64) ([]byte, error) {
	f.calls++
	f.method = method
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type fakeGrants struct {
	err   error
	calls int
	grant Grant
}

func (f *fakeGrants) SubmitGrant(_ context.Context, grant Grant) error {
	f.calls++
	f.grant = grant
	return f.err
}

func mustPrincipal(t *testing.T, b ...byte) candid.Principal {
	t.Helper()
	p, err := candid.PrincipalFromBytes(b)
	if err != nil {
		t.Fatalf("Expected principal from %x, got: %v", b, err)
	}
	return p
}

type fixture struct {
	engine *Engine
	store  *proposal.Store
	reg    *governance.Registry
	caller *fakeCaller
	grants *fakeGrants

	alice   candid.Principal
	bob     candid.Principal
	carol   candid.Principal
	outside candid.Principal
}

func allCaps() map[governance.ActionCategory][]governance.Capability {
	caps := map[governance.ActionCategory][]governance.Capability{}
	for _, category := range governance.Categories() {
		caps[category] = []governance.Capability{
			governance.CapabilityAdd,
			governance.CapabilityVote,
			governance.CapabilityPerform,
		}
	}
	return caps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   proposal.NewStore(),
		caller:  &fakeCaller{},
		grants:  &fakeGrants{},
		alice:   mustPrincipal(t, 1),
		bob:     mustPrincipal(t, 2),
		carol:   mustPrincipal(t, 3),
		outside: mustPrincipal(t, 9),
	}
	f.reg = governance.NewRegistry(governance.Policy{
		Participants: []governance.Participant{
			{ID: f.alice, Name: "alice", Capabilities: allCaps()},
			{ID: f.bob, Name: "bob", Capabilities: allCaps()},
			{ID: f.carol, Name: "carol", Capabilities: allCaps()},
		},
		Thresholds: map[governance.ActionCategory]governance.VotingConfig{
			governance.CategoryPolicyUpdate:  {StopVoteCount: 2, PositiveVoteCount: 2},
			governance.CategoryRemoteCall:    {StopVoteCount: 3, PositiveVoteCount: 2},
			governance.CategoryRemoteUpgrade: {StopVoteCount: 2, PositiveVoteCount: 1},
		},
	})

	tick := int64(0)
	eng, err := New(Options{
		Store:    f.store,
		Registry: f.reg,
		Caller:   f.caller,
		Grants:   f.grants,
		Clock: func() time.Time {
			tick++
			return time.Unix(tick, 0).UTC()
		},
	})
	if err != nil {
		t.Fatalf("Expected engine to build, got: %v", err)
	}
	f.engine = eng
	return f
}

func callPayload() proposal.Payload {
	return proposal.Payload{RemoteCall: &proposal.RemoteCall{
		Method:   "transfer",
		Argument: `(record { amount = 5 : nat })`,
	}}
}

func (f *fixture) create(t *testing.T, payload proposal.Payload) proposal.Proposal {
	t.Helper()
	p, err := f.engine.Create(context.Background(), f.alice, payload, "test proposal")
	if err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}
	return p
}

func TestEngine_CreateAssignsIncreasingIDs(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, callPayload())
	second := f.create(t, callPayload())

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("Expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.State != proposal.StateVoting {
		t.Errorf("Expected new proposal in voting, got %s", first.State)
	}
	if len(first.Votes) != 0 {
		t.Errorf("Expected empty vote list, got %d votes", len(first.Votes))
	}
}

func TestEngine_CreateDeniedWithoutAddCapability(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(context.Background(), f.outside, callPayload(), "")
	if !IsCode(err, CodeNotPermission) {
		t.Fatalf("Expected NOT_PERMISSION, got: %v", err)
	}
	if f.store.Len() != 0 {
		t.Error("Expected no proposal stored after a denied create")
	}
}

func TestEngine_CreateValidatesPayloads(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		payload proposal.Payload
	}{
		{"empty payload", proposal.Payload{}},
		{"bad call argument", proposal.Payload{RemoteCall: &proposal.RemoteCall{
			Method: "m", Argument: "(record {",
		}}},
		{"missing method", proposal.Payload{RemoteCall: &proposal.RemoteCall{
			Argument: "()",
		}}},
		{"argument out of range", proposal.Payload{RemoteCall: &proposal.RemoteCall{
			Method: "m", Argument: "(300 : nat8)",
		}}},
		{"upgrade hash not hex", proposal.Payload{RemoteUpgrade: &proposal.RemoteUpgrade{
			ExpectedHash: "zz", Argument: "()",
		}}},
		{"ungovernable policy", proposal.Payload{PolicyUpdate: &governance.Policy{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Create(context.Background(), f.alice, tc.payload, "")
			if !IsCode(err, CodeValidation) {
				t.Errorf("Expected VALIDATION, got: %v", err)
			}
		})
	}
}

func TestEngine_VoteThresholdDeterminism(t *testing.T) {
	// Remote calls use stop=3, positive=2.
	t.Run("two of three approve", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, callPayload())
		votes := []struct {
			voter  candid.Principal
			affirm bool
		}{{f.alice, true}, {f.bob, true}, {f.carol, false}}
		var last proposal.Proposal
		for i, v := range votes {
			var err error
			last, err = f.engine.Vote(context.Background(), v.voter, p.ID, v.affirm)
			if err != nil {
				t.Fatalf("Expected vote %d to succeed, got: %v", i, err)
			}
			if i < 2 && last.State != proposal.StateVoting {
				t.Errorf("Expected voting before the stop count, got %s", last.State)
			}
		}
		if last.State != proposal.StateApproved {
			t.Errorf("Expected approved, got %s", last.State)
		}
	})

	t.Run("one of three declines", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, callPayload())
		f.vote(t, f.alice, p.ID, true)
		f.vote(t, f.bob, p.ID, false)
		last := f.vote(t, f.carol, p.ID, false)
		if last.State != proposal.StateDeclined {
			t.Errorf("Expected declined, got %s", last.State)
		}
	})
}

func (f *fixture) vote(t *testing.T, voter candid.Principal, id uint64, affirm bool) proposal.Proposal {
	t.Helper()
	p, err := f.engine.Vote(context.Background(), voter, id, affirm)
	if err != nil {
		t.Fatalf("Expected vote to succeed, got: %v", err)
	}
	return p
}

func TestEngine_VoteExclusivity(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, callPayload())
	f.vote(t, f.alice, p.ID, true)

	_, err := f.engine.Vote(context.Background(), f.alice, p.ID, false)
	if !IsCode(err, CodeAlreadyVoted) {
		t.Fatalf("Expected ALREADY_VOTED, got: %v", err)
	}

	got, _ := f.engine.Get(p.ID)
	if len(got.Votes) != 1 || !got.Votes[0].Affirm {
		t.Error("Expected the vote list to be unchanged by the rejected vote")
	}
}

func TestEngine_VoteErrorOrdering(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown proposal", func(t *testing.T) {
		_, err := f.engine.Vote(context.Background(), f.alice, 42, true)
		if !IsCode(err, CodeProposalNotFound) {
			t.Errorf("Expected PROPOSAL_NOT_FOUND, got: %v", err)
		}
	})

	t.Run("missing config reported before permission", func(t *testing.T) {
		p := f.create(t, callPayload())
		// Drop the remote-call threshold so the config lookup fails.
		policy := f.reg.Policy()
		delete(policy.Thresholds, governance.CategoryRemoteCall)
		f.reg.Replace(policy)

		// Even a caller with no vote capability sees the missing config.
		_, err := f.engine.Vote(context.Background(), f.outside, p.ID, true)
		if !IsCode(err, CodeVotingConfigNotFound) {
			t.Errorf("Expected VOTING_CONFIG_NOT_FOUND, got: %v", err)
		}
	})

	t.Run("unauthorized voter", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, callPayload())
		_, err := f.engine.Vote(context.Background(), f.outside, p.ID, true)
		if !IsCode(err, CodeNotPermission) {
			t.Errorf("Expected NOT_PERMISSION, got: %v", err)
		}
	})
}

func TestEngine_VoteRejectedAfterTerminalState(t *testing.T) {
	f := newFixture(t)
	p := f.approvedCall(t)

	_, err := f.engine.Vote(context.Background(), f.carol, p.ID, true)
	if !IsCode(err, CodeNotVotingState) {
		t.Fatalf("Expected NOT_VOTING_STATE, got: %v", err)
	}
}

// approvedCall creates a remote-call proposal and votes it to approval.
func (f *fixture) approvedCall(t *testing.T) proposal.Proposal {
	t.Helper()
	p := f.create(t, callPayload())
	f.vote(t, f.alice, p.ID, true)
	f.vote(t, f.bob, p.ID, true)
	last := f.vote(t, f.carol, p.ID, true)
	if last.State != proposal.StateApproved {
		t.Fatalf("Expected approved, got %s", last.State)
	}
	return last
}

func TestEngine_PerformRemoteCallSuccess(t *testing.T) {
	f := newFixture(t)
	reply, err := candid.EncodeText("(42 : nat8)", nil, "")
	if err != nil {
		t.Fatalf("Expected reply to encode, got: %v", err)
	}
	f.caller.reply = reply.Raw

	p := f.approvedCall(t)
	done, err := f.engine.Perform(context.Background(), f.alice, p.ID)
	if err != nil {
		t.Fatalf("Expected perform to succeed, got: %v", err)
	}
	if done.State != proposal.StatePerformed {
		t.Fatalf("Expected performed, got %s", done.State)
	}
	if done.Result == nil || done.Result.Kind != proposal.ResultCallResponse {
		t.Fatalf("Expected a call response result, got %+v", done.Result)
	}
	if done.Result.Decoded != "(42 : nat8)" {
		t.Errorf("Expected decoded reply (42 : nat8), got %q", done.Result.Decoded)
	}
	if f.caller.calls != 1 || f.caller.method != "transfer" {
		t.Errorf("Expected one call to transfer, got %d to %q", f.caller.calls, f.caller.method)
	}
	if !done.UpdatedAt.After(p.UpdatedAt) {
		t.Error("Expected the perform to advance the updated timestamp")
	}
}

func TestEngine_PerformRemoteCallFailureIsTerminalOutcome(t *testing.T) {
	f := newFixture(t)
	f.caller.err = errors.New("target unreachable")

	p := f.approvedCall(t)
	done, err := f.engine.Perform(context.Background(), f.alice, p.ID)
	if err != nil {
		t.Fatalf("Expected perform to succeed despite the remote failure, got: %v", err)
	}
	if done.State != proposal.StatePerformed {
		t.Fatalf("Expected performed, got %s", done.State)
	}
	if done.Result.Kind != proposal.ResultError {
		t.Fatalf("Expected an error outcome, got %s", done.Result.Kind)
	}
	if done.Result.Reason == "" {
		t.Error("Expected the failure reason to be recorded")
	}
}

func TestEngine_PerformDecodesWithSchemalessFallback(t *testing.T) {
	f := newFixture(t)
	reply, err := candid.EncodeText("(42 : nat8)", nil, "")
	if err != nil {
		t.Fatalf("Expected reply to encode, got: %v", err)
	}
	f.caller.reply = reply.Raw

	// The supplied description declares the wrong return type.
	payload := callPayload()
	payload.RemoteCall.Description = `service : { transfer : () -> (text); }`
	p := f.create(t, payload)
	f.vote(t, f.alice, p.ID, true)
	f.vote(t, f.bob, p.ID, true)
	f.vote(t, f.carol, p.ID, true)

	done, err := f.engine.Perform(context.Background(), f.alice, p.ID)
	if err != nil {
		t.Fatalf("Expected perform to succeed, got: %v", err)
	}
	if done.Result.Decoded != "(42 : nat8)" {
		t.Errorf("Expected the schemaless text to be recorded, got %q", done.Result.Decoded)
	}
	if done.Result.DecodeError == "" {
		t.Error("Expected the schema mismatch to be recorded alongside the text")
	}
}

func TestEngine_PerformPolicyUpdateReplacesPolicy(t *testing.T) {
	f := newFixture(t)

	next := f.reg.Policy()
	next.Thresholds[governance.CategoryRemoteCall] = governance.VotingConfig{
		StopVoteCount: 1, PositiveVoteCount: 1,
	}
	p := f.create(t, proposal.Payload{PolicyUpdate: &next})
	f.vote(t, f.alice, p.ID, true)
	last := f.vote(t, f.bob, p.ID, true)
	if last.State != proposal.StateApproved {
		t.Fatalf("Expected approved, got %s", last.State)
	}

	done, err := f.engine.Perform(context.Background(), f.alice, p.ID)
	if err != nil {
		t.Fatalf("Expected perform to succeed, got: %v", err)
	}
	if done.Result.Kind != proposal.ResultDone {
		t.Errorf("Expected done, got %s", done.Result.Kind)
	}
	cfg, _ := f.reg.Threshold(governance.CategoryRemoteCall)
	if cfg.StopVoteCount != 1 {
		t.Errorf("Expected the new policy to be active, got stop count %d", cfg.StopVoteCount)
	}
}

func TestEngine_PerformRemoteUpgrade(t *testing.T) {
	f := newFixture(t)
	length := uint64(1024)
	p := f.create(t, proposal.Payload{RemoteUpgrade: &proposal.RemoteUpgrade{
		UploaderID:     f.alice,
		TargetID:       f.bob,
		OperatorID:     f.carol,
		ExpectedHash:   "deadbeef",
		ExpectedLength: &length,
		Argument:       "(true)",
	}})
	f.vote(t, f.alice, p.ID, true)
	f.vote(t, f.bob, p.ID, false)

	done, err := f.engine.Perform(context.Background(), f.alice, p.ID)
	if err != nil {
		t.Fatalf("Expected perform to succeed, got: %v", err)
	}
	if done.Result.Kind != proposal.ResultDone {
		t.Fatalf("Expected done, got %+v", done.Result)
	}
	if f.grants.calls != 1 {
		t.Fatalf("Expected one grant submission, got %d", f.grants.calls)
	}
	if f.grants.grant.ExpectedHash != "deadbeef" || f.grants.grant.ExpectedLength == nil {
		t.Errorf("Expected the grant to carry the hash and length, got %+v", f.grants.grant)
	}
	if len(f.grants.grant.Argument) == 0 {
		t.Error("Expected the encoded constructor argument on the grant")
	}
}

func TestEngine_PerformTerminalIdempotence(t *testing.T) {
	f := newFixture(t)
	f.caller.reply = mustEncode(t, "(true)")

	p := f.approvedCall(t)
	done, err := f.engine.Perform(context.Background(), f.alice, p.ID)
	if err != nil {
		t.Fatalf("Expected first perform to succeed, got: %v", err)
	}

	_, err = f.engine.Perform(context.Background(), f.bob, p.ID)
	if !IsCode(err, CodeNotApprovedState) {
		t.Fatalf("Expected NOT_APPROVED_STATE, got: %v", err)
	}

	again, _ := f.engine.Get(p.ID)
	if again.Result == nil || again.Result.Decoded != done.Result.Decoded {
		t.Error("Expected the recorded result to be unchanged by the second perform")
	}
	if f.caller.calls != 1 {
		t.Errorf("Expected exactly 1 dispatch, got %d", f.caller.calls)
	}
}

type funcCaller struct {
	fn func() ([]byte, error)
}

func (f *funcCaller) Call(_ context.Context, _ candid.Principal, _ string, _ []byte, _ *uint64) ([]byte, error) {
	return f.fn()
}

func TestEngine_PerformCommitRecheck(t *testing.T) {
	// A proposal that leaves the approved state while the dispatch is in
	// flight must not have its result overwritten at commit.
	f := newFixture(t)
	p := f.approvedCall(t)

	winner := &proposal.ExecutionResult{Kind: proposal.ResultDone}
	eng, err := New(Options{
		Store:    f.store,
		Registry: f.reg,
		Caller: &funcCaller{fn: func() ([]byte, error) {
			// Simulate a racing perform committing first.
			_, _, merr := f.store.Mutate(p.ID, func(p *proposal.Proposal) error {
				p.State = proposal.StatePerformed
				p.Result = winner
				return nil
			})
			return mustEncode(t, "(true)"), merr
		}},
	})
	if err != nil {
		t.Fatalf("Expected engine to build, got: %v", err)
	}

	_, err = eng.Perform(context.Background(), f.alice, p.ID)
	if !IsCode(err, CodeNotApprovedState) {
		t.Fatalf("Expected NOT_APPROVED_STATE for the race loser, got: %v", err)
	}

	got, _ := f.store.Get(p.ID)
	if got.Result == nil || got.Result.Kind != proposal.ResultDone {
		t.Error("Expected the winner's result to survive the losing commit")
	}
}

func mustEncode(t *testing.T, args string) []byte {
	t.Helper()
	res, err := candid.EncodeText(args, nil, "")
	if err != nil {
		t.Fatalf("Expected %s to encode, got: %v", args, err)
	}
	return res.Raw
}

func TestEngine_PerformChecks(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown proposal", func(t *testing.T) {
		_, err := f.engine.Perform(context.Background(), f.alice, 42)
		if !IsCode(err, CodeProposalNotFound) {
			t.Errorf("Expected PROPOSAL_NOT_FOUND, got: %v", err)
		}
	})

	t.Run("still voting", func(t *testing.T) {
		p := f.create(t, callPayload())
		_, err := f.engine.Perform(context.Background(), f.alice, p.ID)
		if !IsCode(err, CodeNotApprovedState) {
			t.Errorf("Expected NOT_APPROVED_STATE, got: %v", err)
		}
	})

	t.Run("unauthorized performer", func(t *testing.T) {
		p := f.approvedCall(t)
		_, err := f.engine.Perform(context.Background(), f.outside, p.ID)
		if !IsCode(err, CodeNotPermission) {
			t.Errorf("Expected NOT_PERMISSION, got: %v", err)
		}
	})
}

func TestEngine_ListReturnsLastIssuedIDAsTotal(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.create(t, callPayload())
	}

	page, total := f.engine.List(0, 2, false)
	if total != 3 {
		t.Errorf("Expected total 3, got %d", total)
	}
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 2 {
		t.Errorf("Expected descending page [3 2], got %+v", page)
	}
}

func TestEngine_ParticipantLookup(t *testing.T) {
	f := newFixture(t)

	part, err := f.engine.Participant(f.alice)
	if err != nil {
		t.Fatalf("Expected alice to be registered, got: %v", err)
	}
	if part.Name != "alice" {
		t.Errorf("Expected alice, got %s", part.Name)
	}

	_, err = f.engine.Participant(f.outside)
	if !IsCode(err, CodeParticipantNotFound) {
		t.Errorf("Expected PARTICIPANT_NOT_FOUND, got: %v", err)
	}
}

func TestEngine_Scenario(t *testing.T) {
	// Full lifecycle: create, vote to approval, perform, decode via the
	// supplied description.
	f := newFixture(t)
	f.caller.reply = mustEncode(t, `("ok")`)

	payload := proposal.Payload{RemoteCall: &proposal.RemoteCall{
		Method:      "transfer",
		Argument:    `(record { amount = 5 : nat })`,
		Description: `service : { transfer : (record { amount : nat }) -> (text); }`,
	}}
	created := f.create(t, payload)

	f.vote(t, f.alice, created.ID, true)
	f.vote(t, f.bob, created.ID, true)
	approved := f.vote(t, f.carol, created.ID, true)
	if approved.State != proposal.StateApproved {
		t.Fatalf("Expected approved, got %s", approved.State)
	}
	if !approved.UpdatedAt.After(created.UpdatedAt) {
		t.Error("Expected voting to advance the updated timestamp")
	}

	done, err := f.engine.Perform(context.Background(), f.carol, created.ID)
	if err != nil {
		t.Fatalf("Expected perform to succeed, got: %v", err)
	}
	if done.Result.Kind != proposal.ResultCallResponse {
		t.Fatalf("Expected a call response, got %s", done.Result.Kind)
	}
	if done.Result.Decoded != `("ok")` {
		t.Errorf("Expected decoded (\"ok\"), got %q", done.Result.Decoded)
	}
	if done.Result.DecodeError != "" {
		t.Errorf("Expected a clean decode, got error %q", done.Result.DecodeError)
	}
	if !done.UpdatedAt.After(approved.UpdatedAt) {
		t.Error("Expected performing to advance the updated timestamp again")
	}

	if fmt.Sprintf("%x", done.Result.Response) != fmt.Sprintf("%x", f.caller.reply) {
		t.Error("Expected the raw reply to be recorded verbatim")
	}
}
