package governance

import (
	"testing"

	"github.com/conclavehq/conclave/pkg/candid"
)

func principal(t *testing.T, text string) candid.Principal {
	t.Helper()
	p, err := candid.PrincipalFromText(text)
	if err != nil {
		t.Fatalf("Expected principal %s to parse, got: %v", text, err)
	}
	return p
}

func testPolicy(t *testing.T) Policy {
	t.Helper()
	return Policy{
		Participants: []Participant{
			{
				ID:   principal(t, "aaaaa-aa"),
				Name: "alice",
				Capabilities: map[ActionCategory][]Capability{
					CategoryPolicyUpdate: {CapabilityAdd, CapabilityVote, CapabilityPerform},
					CategoryRemoteCall:   {CapabilityAdd, CapabilityVote},
				},
			},
			{
				ID:   principal(t, "2vxsx-fae"),
				Name: "bob",
				Capabilities: map[ActionCategory][]Capability{
					CategoryPolicyUpdate: {CapabilityVote},
				},
			},
		},
		Thresholds: map[ActionCategory]VotingConfig{
			CategoryPolicyUpdate: {StopVoteCount: 2, PositiveVoteCount: 2},
			CategoryRemoteCall:   {StopVoteCount: 1, PositiveVoteCount: 1},
		},
	}
}

func TestPolicy_Grants(t *testing.T) {
	policy := testPolicy(t)

	if !policy.Grants(principal(t, "aaaaa-aa"), CategoryPolicyUpdate, CapabilityAdd) {
		t.Error("Expected alice to hold add for policy updates")
	}
	if policy.Grants(principal(t, "2vxsx-fae"), CategoryPolicyUpdate, CapabilityAdd) {
		t.Error("Expected bob not to hold add for policy updates")
	}
	if policy.Grants(principal(t, "2vxsx-fae"), CategoryRemoteUpgrade, CapabilityVote) {
		t.Error("Expected an unmapped category to grant nothing")
	}
}

func TestPolicy_Threshold(t *testing.T) {
	policy := testPolicy(t)

	cfg, ok := policy.Threshold(CategoryPolicyUpdate)
	if !ok {
		t.Fatal("Expected a policy-update threshold")
	}
	if cfg.StopVoteCount != 2 || cfg.PositiveVoteCount != 2 {
		t.Errorf("Expected {2 2}, got %+v", cfg)
	}
	if _, ok := policy.Threshold(CategoryRemoteUpgrade); ok {
		t.Error("Expected no remote-upgrade threshold")
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := testPolicy(t).Validate(); err != nil {
		t.Fatalf("Expected valid policy, got: %v", err)
	}

	t.Run("empty participants", func(t *testing.T) {
		policy := testPolicy(t)
		policy.Participants = nil
		if err := policy.Validate(); err == nil {
			t.Error("Expected validation failure, got nil")
		}
	})

	t.Run("no policy-update proposer", func(t *testing.T) {
		policy := testPolicy(t)
		for i := range policy.Participants {
			delete(policy.Participants[i].Capabilities, CategoryPolicyUpdate)
		}
		if err := policy.Validate(); err == nil {
			t.Error("Expected validation failure, got nil")
		}
	})

	t.Run("stop count exceeds voters", func(t *testing.T) {
		policy := testPolicy(t)
		policy.Thresholds[CategoryPolicyUpdate] = VotingConfig{StopVoteCount: 5, PositiveVoteCount: 2}
		if err := policy.Validate(); err == nil {
			t.Error("Expected validation failure, got nil")
		}
	})

	t.Run("positive above stop", func(t *testing.T) {
		policy := testPolicy(t)
		policy.Thresholds[CategoryRemoteCall] = VotingConfig{StopVoteCount: 1, PositiveVoteCount: 2}
		if err := policy.Validate(); err == nil {
			t.Error("Expected validation failure, got nil")
		}
	})

	t.Run("duplicate participant", func(t *testing.T) {
		policy := testPolicy(t)
		policy.Participants = append(policy.Participants, policy.Participants[0])
		if err := policy.Validate(); err == nil {
			t.Error("Expected validation failure, got nil")
		}
	})
}

func TestRegistry_Replace(t *testing.T) {
	reg := NewRegistry(testPolicy(t))

	alice := principal(t, "aaaaa-aa")
	if !reg.Grants(alice, CategoryRemoteCall, CapabilityAdd) {
		t.Fatal("Expected alice to hold add for remote calls")
	}

	next := testPolicy(t)
	delete(next.Participants[0].Capabilities, CategoryRemoteCall)
	reg.Replace(next)

	if reg.Grants(alice, CategoryRemoteCall, CapabilityAdd) {
		t.Error("Expected the replaced policy to revoke the grant")
	}
	if !reg.Grants(alice, CategoryPolicyUpdate, CapabilityAdd) {
		t.Error("Expected unrelated grants to survive the replacement")
	}
}

func TestRegistry_PolicyIsACopy(t *testing.T) {
	reg := NewRegistry(testPolicy(t))

	snapshot := reg.Policy()
	snapshot.Thresholds[CategoryPolicyUpdate] = VotingConfig{StopVoteCount: 9, PositiveVoteCount: 9}

	cfg, _ := reg.Threshold(CategoryPolicyUpdate)
	if cfg.StopVoteCount != 2 {
		t.Errorf("Expected registry state untouched, got stop count %d", cfg.StopVoteCount)
	}
}
