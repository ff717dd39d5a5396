package governance

import (
	"sync"

	"github.com/conclavehq/conclave/pkg/candid"
)

// Registry holds the active policy and serves concurrent lookups. All
// mutation goes through Replace, which swaps the whole policy atomically.
type Registry struct {
	mu     sync.RWMutex
	policy Policy
}

// NewRegistry creates a registry with the given initial policy.
func NewRegistry(initial Policy) *Registry {
	return &Registry{policy: initial}
}

// Grants reports whether id holds the capability for the category under the
// active policy.
func (r *Registry) Grants(id candid.Principal, category ActionCategory, capability Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy.Grants(id, category, capability)
}

// Threshold returns the active voting config for the category.
func (r *Registry) Threshold(category ActionCategory) (VotingConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy.Threshold(category)
}

// Participant returns the participant registered under id.
func (r *Registry) Participant(id candid.Principal) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy.Participant(id)
}

// Policy returns a copy of the active policy.
func (r *Registry) Policy() Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy.Clone()
}

// Replace installs a new policy, replacing the participant table and the
// threshold table in one step.
func (r *Registry) Replace(policy Policy) {
	cloned := policy.Clone()
	r.mu.Lock()
	r.policy = cloned
	r.mu.Unlock()
}

// Clone deep-copies the policy, including the capability maps and slices, so
// callers cannot alias the source's state.
func (p Policy) Clone() Policy {
	out := Policy{}
	if p.Participants != nil {
		out.Participants = make([]Participant, len(p.Participants))
		for i, part := range p.Participants {
			cloned := part
			if part.Capabilities != nil {
				cloned.Capabilities = make(map[ActionCategory][]Capability, len(part.Capabilities))
				for category, caps := range part.Capabilities {
					cloned.Capabilities[category] = append([]Capability(nil), caps...)
				}
			}
			out.Participants[i] = cloned
		}
	}
	if p.Thresholds != nil {
		out.Thresholds = make(map[ActionCategory]VotingConfig, len(p.Thresholds))
		for category, cfg := range p.Thresholds {
			out.Thresholds[category] = cfg
		}
	}
	return out
}
