package governance

import (
	"fmt"

	"github.com/conclavehq/conclave/pkg/candid"
)

// Capability is a single right a participant may hold for an action category.
type Capability string

const (
	// CapabilityAdd allows creating proposals in a category.
	CapabilityAdd Capability = "add"

	// CapabilityVote allows voting on proposals in a category.
	CapabilityVote Capability = "vote"

	// CapabilityPerform allows executing approved proposals in a category.
	CapabilityPerform Capability = "perform"
)

// Validate checks that the capability is one of the known values.
func (c Capability) Validate() error {
	switch c {
	case CapabilityAdd, CapabilityVote, CapabilityPerform:
		return nil
	}
	return fmt.Errorf("unknown capability %q", string(c))
}

// ActionCategory is the class of privileged action a proposal performs. It is
// always derived from the proposal payload, never stored independently.
type ActionCategory string

const (
	// CategoryPolicyUpdate covers proposals that replace the governance policy.
	CategoryPolicyUpdate ActionCategory = "policy_update"

	// CategoryRemoteUpgrade covers proposals that upgrade a remote process.
	CategoryRemoteUpgrade ActionCategory = "remote_upgrade"

	// CategoryRemoteCall covers proposals that issue an arbitrary remote call.
	CategoryRemoteCall ActionCategory = "remote_call"
)

// Validate checks that the category is one of the known values.
func (c ActionCategory) Validate() error {
	switch c {
	case CategoryPolicyUpdate, CategoryRemoteUpgrade, CategoryRemoteCall:
		return nil
	}
	return fmt.Errorf("unknown action category %q", string(c))
}

// Categories lists every action category.
func Categories() []ActionCategory {
	return []ActionCategory{CategoryPolicyUpdate, CategoryRemoteUpgrade, CategoryRemoteCall}
}

// VotingConfig is the threshold pair governing when and how a category's
// proposals resolve.
type VotingConfig struct {
	// StopVoteCount is the number of votes that triggers threshold
	// evaluation.
	StopVoteCount uint32 `json:"stop_vote_count" yaml:"stop_vote_count"`

	// PositiveVoteCount is the minimum affirmative votes required for
	// approval.
	PositiveVoteCount uint32 `json:"positive_vote_count" yaml:"positive_vote_count"`
}

// Validate checks the internal consistency of the config.
func (v VotingConfig) Validate() error {
	if v.StopVoteCount == 0 {
		return fmt.Errorf("stop_vote_count must be positive")
	}
	if v.PositiveVoteCount == 0 {
		return fmt.Errorf("positive_vote_count must be positive")
	}
	if v.PositiveVoteCount > v.StopVoteCount {
		return fmt.Errorf("positive_vote_count %d exceeds stop_vote_count %d",
			v.PositiveVoteCount, v.StopVoteCount)
	}
	return nil
}

// Participant is a named identity with per-category capability grants.
type Participant struct {
	// ID is the participant's principal identity.
	ID candid.Principal `json:"id" yaml:"id"`

	// Name is the human-readable display name.
	Name string `json:"name" yaml:"name"`

	// Capabilities maps each action category to the capabilities granted for
	// it. A missing category grants nothing.
	Capabilities map[ActionCategory][]Capability `json:"capabilities" yaml:"capabilities"`
}

// HasCapability reports whether the participant holds the capability for the
// category.
func (p Participant) HasCapability(category ActionCategory, capability Capability) bool {
	for _, c := range p.Capabilities[category] {
		if c == capability {
			return true
		}
	}
	return false
}

// Validate checks the participant's capability grants.
func (p Participant) Validate() error {
	if p.ID.IsZero() && p.Name == "" {
		return fmt.Errorf("participant has neither id nor name")
	}
	for category, caps := range p.Capabilities {
		if err := category.Validate(); err != nil {
			return fmt.Errorf("participant %s: %w", p.Name, err)
		}
		for _, c := range caps {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("participant %s: %w", p.Name, err)
			}
		}
	}
	return nil
}

// Policy is the full governance state: the participant table and the
// per-category voting thresholds. Policies are replaced wholesale, never
// edited incrementally.
type Policy struct {
	// Participants is the closed set of identities allowed to act.
	Participants []Participant `json:"participants" yaml:"participants"`

	// Thresholds maps each action category to its voting config. A missing
	// category cannot be voted on.
	Thresholds map[ActionCategory]VotingConfig `json:"thresholds" yaml:"thresholds"`
}

// Participant returns the participant registered under id.
func (p Policy) Participant(id candid.Principal) (Participant, bool) {
	for _, part := range p.Participants {
		if part.ID.Equal(id) {
			return part, true
		}
	}
	return Participant{}, false
}

// Grants reports whether id is registered and holds the capability for the
// category.
func (p Policy) Grants(id candid.Principal, category ActionCategory, capability Capability) bool {
	part, ok := p.Participant(id)
	if !ok {
		return false
	}
	return part.HasCapability(category, capability)
}

// Threshold returns the voting config for the category. A false result means
// voting is impossible for that category.
func (p Policy) Threshold(category ActionCategory) (VotingConfig, bool) {
	cfg, ok := p.Thresholds[category]
	return cfg, ok
}

// CountWithCapability counts the participants holding the capability for the
// category.
func (p Policy) CountWithCapability(category ActionCategory, capability Capability) uint32 {
	var n uint32
	for _, part := range p.Participants {
		if part.HasCapability(category, capability) {
			n++
		}
	}
	return n
}

// Validate checks that the policy can govern itself: the participant table
// is non-empty, at least one participant can propose further policy updates,
// every threshold is internally consistent, and the policy-update threshold
// is reachable by the participants allowed to vote on policy updates.
func (p Policy) Validate() error {
	if len(p.Participants) == 0 {
		return fmt.Errorf("participant table is empty")
	}
	seen := map[string]bool{}
	for _, part := range p.Participants {
		if err := part.Validate(); err != nil {
			return err
		}
		key := part.ID.String()
		if seen[key] {
			return fmt.Errorf("duplicate participant %s", key)
		}
		seen[key] = true
	}
	if p.CountWithCapability(CategoryPolicyUpdate, CapabilityAdd) == 0 {
		return fmt.Errorf("no participant may propose policy updates")
	}
	for category, cfg := range p.Thresholds {
		if err := category.Validate(); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("threshold for %s: %w", category, err)
		}
	}
	cfg, ok := p.Threshold(CategoryPolicyUpdate)
	if !ok {
		return fmt.Errorf("no voting threshold for %s", CategoryPolicyUpdate)
	}
	voters := p.CountWithCapability(CategoryPolicyUpdate, CapabilityVote)
	if cfg.StopVoteCount > voters {
		return fmt.Errorf("stop_vote_count %d exceeds the %d participants allowed to vote on policy updates",
			cfg.StopVoteCount, voters)
	}
	return nil
}
