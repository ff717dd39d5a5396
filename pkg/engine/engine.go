package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/proposal"
	"github.com/conclavehq/conclave/pkg/telemetry"
)

// Engine orchestrates the proposal lifecycle: creation, voting, threshold
// evaluation and execution dispatch. All store and policy mutation funnels
// through it.
type Engine struct {
	store    *proposal.Store
	registry *governance.Registry
	caller   Caller
	grants   GrantSubmitter

	checkpoint Checkpointer
	log        *telemetry.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// Options configures an Engine. Store and Registry are required; the
// collaborators may be nil when the corresponding proposal kinds are never
// performed.
type Options struct {
	// Store is the proposal table.
	Store *proposal.Store

	// Registry holds the active governance policy.
	Registry *governance.Registry

	// Caller dispatches remote-call proposals.
	Caller Caller

	// Grants dispatches remote-upgrade proposals.
	Grants GrantSubmitter

	// Checkpoint persists state after successful mutations.
	Checkpoint Checkpointer

	// Logger receives lifecycle logs. A nil logger discards them.
	Logger *telemetry.Logger

	// Metrics receives lifecycle counters.
	Metrics *telemetry.Metrics

	// Clock overrides the timestamp source, for tests.
	Clock func() time.Time
}

// New creates a lifecycle engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine requires a proposal store")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("engine requires a governance registry")
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:      opts.Store,
		registry:   opts.Registry,
		caller:     opts.Caller,
		grants:     opts.Grants,
		checkpoint: opts.Checkpoint,
		log:        log.NewComponentLogger("engine"),
		metrics:    opts.Metrics,
		tracer:     otel.Tracer("github.com/conclavehq/conclave/pkg/engine"),
		now:        now,
	}, nil
}

// Create validates and stores a new proposal in the voting state.
func (e *Engine) Create(ctx context.Context, caller candid.Principal, payload proposal.Payload, description string) (proposal.Proposal, error) {
	ctx, span := e.tracer.Start(ctx, "engine.create")
	defer span.End()
	log := e.opLogger(caller)

	category, err := payload.Category()
	if err != nil {
		return proposal.Proposal{}, validationError(err)
	}
	span.SetAttributes(attribute.String("proposal.category", string(category)))

	if !e.registry.Grants(caller, category, governance.CapabilityAdd) {
		log.Warnf("create denied for category %s", category)
		return proposal.Proposal{}, notPermission("caller may not create %s proposals", category)
	}
	if err := e.validatePayload(payload, category); err != nil {
		log.WithError(err).Warn("proposal payload rejected")
		return proposal.Proposal{}, validationError(err)
	}

	ts := e.now()
	p := proposal.Proposal{
		ID:          e.store.NextID(),
		Proposer:    caller,
		Description: description,
		Payload:     payload,
		State:       proposal.StateVoting,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	e.store.Insert(p)
	e.metrics.ProposalCreated(string(category))
	log.WithField("proposal_id", p.ID).Infof("proposal created in category %s", category)
	e.save(ctx, log)
	return p, nil
}

// validatePayload applies the payload-specific creation rules.
func (e *Engine) validatePayload(payload proposal.Payload, category governance.ActionCategory) error {
	switch category {
	case governance.CategoryPolicyUpdate:
		return payload.PolicyUpdate.Validate()
	case governance.CategoryRemoteUpgrade:
		upgrade := payload.RemoteUpgrade
		if upgrade.ExpectedHash == "" {
			return fmt.Errorf("expected hash is required")
		}
		if _, err := hex.DecodeString(upgrade.ExpectedHash); err != nil {
			return fmt.Errorf("expected hash is not hex: %w", err)
		}
		if _, err := candid.EncodeText(upgrade.Argument, nil, ""); err != nil {
			e.metrics.CodecFailure("encode")
			return fmt.Errorf("constructor argument: %w", err)
		}
		return nil
	case governance.CategoryRemoteCall:
		call := payload.RemoteCall
		if call.Method == "" {
			return fmt.Errorf("method name is required")
		}
		if _, err := candid.EncodeText(call.Argument, nil, ""); err != nil {
			e.metrics.CodecFailure("encode")
			return fmt.Errorf("call argument: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown category %s", category)
}

// Vote records one participant's vote and evaluates the threshold once the
// stop count is reached.
func (e *Engine) Vote(ctx context.Context, caller candid.Principal, id uint64, affirm bool) (proposal.Proposal, error) {
	ctx, span := e.tracer.Start(ctx, "engine.vote",
		trace.WithAttributes(attribute.Int64("proposal.id", int64(id))))
	defer span.End()
	log := e.opLogger(caller).WithField("proposal_id", id)

	updated, ok, err := e.store.Mutate(id, func(p *proposal.Proposal) error {
		if p.State != proposal.StateVoting {
			return notVotingState(id)
		}
		if p.HasVoted(caller) {
			return alreadyVoted(id)
		}
		category, cerr := p.Payload.Category()
		if cerr != nil {
			return validationError(cerr).WithProposal(id)
		}
		// The threshold lookup deliberately precedes the permission check:
		// a missing config is reported even to unauthorized callers.
		cfg, found := e.registry.Threshold(category)
		if !found {
			return votingConfigNotFound(string(category)).WithProposal(id)
		}
		if !e.registry.Grants(caller, category, governance.CapabilityVote) {
			return notPermission("caller may not vote on %s proposals", category).WithProposal(id)
		}

		p.Votes = append(p.Votes, proposal.Vote{Voter: caller, Affirm: affirm, At: e.now()})
		p.UpdatedAt = e.now()
		if uint32(len(p.Votes)) >= cfg.StopVoteCount {
			if p.AffirmativeVotes() >= cfg.PositiveVoteCount {
				p.State = proposal.StateApproved
			} else {
				p.State = proposal.StateDeclined
			}
		}
		return nil
	})
	if !ok {
		return proposal.Proposal{}, proposalNotFound(id)
	}
	if err != nil {
		return proposal.Proposal{}, err
	}

	e.metrics.VoteCast(affirm)
	if updated.State != proposal.StateVoting {
		log.Infof("vote threshold reached, proposal is now %s", updated.State)
	} else {
		log.Info("vote recorded")
	}
	e.save(ctx, log)
	return updated, nil
}

// Perform executes an approved proposal: read-validate, dispatch with no
// lock held, then re-check and commit the terminal result. Remote failures
// become the proposal's recorded outcome, never an engine failure.
func (e *Engine) Perform(ctx context.Context, caller candid.Principal, id uint64) (proposal.Proposal, error) {
	ctx, span := e.tracer.Start(ctx, "engine.perform",
		trace.WithAttributes(attribute.Int64("proposal.id", int64(id))))
	defer span.End()
	log := e.opLogger(caller).WithField("proposal_id", id)

	// Read phase.
	p, ok := e.store.Get(id)
	if !ok {
		return proposal.Proposal{}, proposalNotFound(id)
	}
	if p.State != proposal.StateApproved {
		return proposal.Proposal{}, notApprovedState(id)
	}
	category, err := p.Payload.Category()
	if err != nil {
		return proposal.Proposal{}, validationError(err).WithProposal(id)
	}
	if !e.registry.Grants(caller, category, governance.CapabilityPerform) {
		log.Warnf("perform denied for category %s", category)
		return proposal.Proposal{}, notPermission("caller may not perform %s proposals", category).WithProposal(id)
	}

	// Dispatch phase, no lock held. The payload copy from Get is immutable
	// from the engine's point of view.
	result := e.dispatch(ctx, log, p.Payload, category)

	// Commit phase: the proposal must still be approved. The loser of a
	// perform race observes the winner's terminal state here.
	updated, ok, err := e.store.Mutate(id, func(p *proposal.Proposal) error {
		if p.State != proposal.StateApproved {
			return notApprovedState(id)
		}
		p.State = proposal.StatePerformed
		p.Result = &result
		p.UpdatedAt = e.now()
		return nil
	})
	if !ok {
		return proposal.Proposal{}, proposalNotFound(id)
	}
	if err != nil {
		log.Warnf("perform result dropped, proposal left the approved state during dispatch")
		return proposal.Proposal{}, err
	}

	e.metrics.PerformRecorded(string(result.Kind))
	log.Infof("proposal performed with outcome %s", result.Kind)
	e.save(ctx, log)
	return updated, nil
}

// dispatch runs the privileged action and converts every failure into a
// terminal execution result.
func (e *Engine) dispatch(ctx context.Context, log *telemetry.Logger, payload proposal.Payload, category governance.ActionCategory) proposal.ExecutionResult {
	switch category {
	case governance.CategoryPolicyUpdate:
		e.registry.Replace(*payload.PolicyUpdate)
		log.Info("governance policy replaced")
		return proposal.ExecutionResult{Kind: proposal.ResultDone}

	case governance.CategoryRemoteUpgrade:
		upgrade := payload.RemoteUpgrade
		encoded, err := candid.EncodeText(upgrade.Argument, nil, "")
		if err != nil {
			e.metrics.CodecFailure("encode")
			return failureResult(log, fmt.Errorf("encoding constructor argument: %w", err))
		}
		if e.grants == nil {
			return failureResult(log, fmt.Errorf("no upload collaborator configured"))
		}
		err = e.grants.SubmitGrant(ctx, Grant{
			UploaderID:     upgrade.UploaderID,
			OperatorID:     upgrade.OperatorID,
			TargetID:       upgrade.TargetID,
			ExpectedHash:   upgrade.ExpectedHash,
			ExpectedLength: upgrade.ExpectedLength,
			Argument:       encoded.Raw,
		})
		if err != nil {
			return failureResult(log, fmt.Errorf("upgrade grant: %w", err))
		}
		return proposal.ExecutionResult{Kind: proposal.ResultDone}

	case governance.CategoryRemoteCall:
		call := payload.RemoteCall
		encoded, err := candid.EncodeText(call.Argument, nil, "")
		if err != nil {
			e.metrics.CodecFailure("encode")
			return failureResult(log, fmt.Errorf("encoding call argument: %w", err))
		}
		if e.caller == nil {
			return failureResult(log, fmt.Errorf("no call transport configured"))
		}
		reply, err := e.caller.Call(ctx, call.TargetID, call.Method, encoded.Raw, call.Payment)
		if err != nil {
			return failureResult(log, fmt.Errorf("remote call: %w", err))
		}
		return e.decodeReply(log, reply, call)
	}
	return failureResult(log, fmt.Errorf("unknown category %s", category))
}

// decodeReply renders a remote reply, degrading gracefully: a bad or stale
// interface description still yields the schemaless text plus the recorded
// decode failure.
func (e *Engine) decodeReply(log *telemetry.Logger, reply []byte, call *proposal.RemoteCall) proposal.ExecutionResult {
	result := proposal.ExecutionResult{
		Kind:     proposal.ResultCallResponse,
		Response: append([]byte(nil), reply...),
	}

	var env *candid.TypeEnv
	method := ""
	if call.Description != "" {
		parsed, err := candid.ParseDescription(call.Description)
		if err != nil {
			e.metrics.CodecFailure("parse")
			result.DecodeError = err.Error()
		} else {
			env = parsed
			method = call.Method
		}
	}

	decoded, err := candid.DecodeResponse(reply, env, method)
	if err != nil {
		e.metrics.CodecFailure("decode")
		if result.DecodeError == "" {
			result.DecodeError = err.Error()
		}
		log.WithError(err).Warn("remote reply could not be decoded")
		return result
	}
	result.Decoded = decoded.Text
	if decoded.DecodeError != "" {
		e.metrics.CodecFailure("decode")
		result.DecodeError = decoded.DecodeError
	}
	return result
}

func failureResult(log *telemetry.Logger, err error) proposal.ExecutionResult {
	log.WithError(err).Warn("privileged action failed, recording error outcome")
	return proposal.ExecutionResult{Kind: proposal.ResultError, Reason: err.Error()}
}

// Get returns the proposal under id.
func (e *Engine) Get(id uint64) (proposal.Proposal, error) {
	p, ok := e.store.Get(id)
	if !ok {
		return proposal.Proposal{}, proposalNotFound(id)
	}
	return p, nil
}

// List returns a page of proposals ordered by id plus the total count, which
// equals the last issued proposal id.
func (e *Engine) List(offset, limit uint64, ascending bool) ([]proposal.Proposal, uint64) {
	return e.store.List(offset, limit, ascending), e.store.LastID()
}

// Participant returns the caller's registered participant record.
func (e *Engine) Participant(caller candid.Principal) (governance.Participant, error) {
	part, ok := e.registry.Participant(caller)
	if !ok {
		return governance.Participant{}, participantNotFound()
	}
	return part, nil
}

// Policy returns a copy of the active governance policy.
func (e *Engine) Policy() governance.Policy {
	return e.registry.Policy()
}

// save checkpoints the application state after a successful mutation. A
// checkpoint failure is logged, never surfaced: the in-memory state stays
// authoritative.
func (e *Engine) save(ctx context.Context, log *telemetry.Logger) {
	if e.checkpoint == nil {
		return
	}
	if err := e.checkpoint.Save(ctx, e.store.Snapshot(), e.registry.Policy()); err != nil {
		log.WithError(err).Error("state checkpoint failed")
	}
}

func (e *Engine) opLogger(caller candid.Principal) *telemetry.Logger {
	return e.log.
		WithField("op_id", uuid.NewString()).
		WithField("caller", caller.String())
}
