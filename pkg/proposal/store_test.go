package proposal

import (
	"testing"
	"time"

	"github.com/conclavehq/conclave/pkg/governance"
)

func newProposal(id uint64) Proposal {
	return Proposal{
		ID:        id,
		State:     StateVoting,
		Payload:   Payload{RemoteCall: &RemoteCall{Method: "m", Argument: "()"}},
		CreatedAt: time.Unix(int64(id), 0),
		UpdatedAt: time.Unix(int64(id), 0),
	}
}

func TestStore_NextIDMonotonic(t *testing.T) {
	store := NewStore()
	prev := uint64(0)
	for i := 0; i < 100; i++ {
		id := store.NextID()
		if id != prev+1 {
			t.Fatalf("Expected id %d, got %d", prev+1, id)
		}
		prev = id
	}
	if store.LastID() != 100 {
		t.Errorf("Expected last id 100, got %d", store.LastID())
	}
}

func TestStore_InsertDuplicatePanics(t *testing.T) {
	store := NewStore()
	store.Insert(newProposal(store.NextID()))

	defer func() {
		if recover() == nil {
			t.Error("Expected duplicate insert to panic")
		}
	}()
	store.Insert(newProposal(1))
}

func TestStore_GetReturnsACopy(t *testing.T) {
	store := NewStore()
	p := newProposal(store.NextID())
	p.Votes = []Vote{{Affirm: true}}
	store.Insert(p)

	got, ok := store.Get(p.ID)
	if !ok {
		t.Fatal("Expected proposal to exist")
	}
	got.Votes[0].Affirm = false
	got.State = StateDeclined

	again, _ := store.Get(p.ID)
	if !again.Votes[0].Affirm || again.State != StateVoting {
		t.Error("Expected stored proposal to be unaffected by copy mutation")
	}
}

func TestStore_Mutate(t *testing.T) {
	store := NewStore()
	store.Insert(newProposal(store.NextID()))

	updated, ok, err := store.Mutate(1, func(p *Proposal) error {
		p.State = StateApproved
		return nil
	})
	if err != nil || !ok {
		t.Fatalf("Expected mutation to succeed, got ok=%v err=%v", ok, err)
	}
	if updated.State != StateApproved {
		t.Errorf("Expected approved, got %s", updated.State)
	}

	stored, _ := store.Get(1)
	if stored.State != StateApproved {
		t.Errorf("Expected mutation to persist, got %s", stored.State)
	}

	if _, ok, _ := store.Mutate(99, func(p *Proposal) error { return nil }); ok {
		t.Error("Expected mutation of a missing id to report absence")
	}
}

func TestStore_ListOrderingAndPaging(t *testing.T) {
	store := NewStore()
	for i := 0; i < 5; i++ {
		store.Insert(newProposal(store.NextID()))
	}

	asc := store.List(0, 10, true)
	if len(asc) != 5 {
		t.Fatalf("Expected 5 proposals, got %d", len(asc))
	}
	for i, p := range asc {
		if p.ID != uint64(i+1) {
			t.Errorf("Expected ascending id %d at %d, got %d", i+1, i, p.ID)
		}
	}

	desc := store.List(1, 2, false)
	if len(desc) != 2 || desc[0].ID != 4 || desc[1].ID != 3 {
		t.Errorf("Expected ids [4 3], got %v", ids(desc))
	}

	if got := store.List(5, 10, true); got != nil {
		t.Errorf("Expected empty page past the end, got %v", ids(got))
	}
	if got := store.List(0, 0, true); got != nil {
		t.Errorf("Expected empty page for zero limit, got %v", ids(got))
	}
}

func ids(ps []Proposal) []uint64 {
	out := make([]uint64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestStore_SnapshotRestoreRoundTrip(t *testing.T) {
	store := NewStore()
	for i := 0; i < 3; i++ {
		store.Insert(newProposal(store.NextID()))
	}
	// Issue an id that was never inserted; the counter must still survive.
	_ = store.NextID()

	snap := store.Snapshot()

	restored := NewStore()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Expected restore to succeed, got: %v", err)
	}
	if restored.LastID() != 4 {
		t.Errorf("Expected last id 4 after restore, got %d", restored.LastID())
	}
	if restored.Len() != 3 {
		t.Errorf("Expected 3 proposals after restore, got %d", restored.Len())
	}
	if id := restored.NextID(); id != 5 {
		t.Errorf("Expected next id 5 after restore, got %d", id)
	}
}

func TestStore_RestoreRejectsCorruptSnapshots(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
	}{
		{"out of order", Snapshot{LastID: 2, Proposals: []Proposal{newProposal(2), newProposal(1)}}},
		{"id beyond counter", Snapshot{LastID: 1, Proposals: []Proposal{newProposal(2)}}},
		{"bad state", Snapshot{LastID: 1, Proposals: []Proposal{{ID: 1, State: "bogus"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := NewStore().Restore(tc.snap); err == nil {
				t.Error("Expected restore to fail, got nil")
			}
		})
	}
}

func TestPayload_Category(t *testing.T) {
	if _, err := (Payload{}).Category(); err == nil {
		t.Error("Expected empty payload to be rejected")
	}
	if _, err := (Payload{
		RemoteCall:    &RemoteCall{},
		RemoteUpgrade: &RemoteUpgrade{},
	}).Category(); err == nil {
		t.Error("Expected ambiguous payload to be rejected")
	}
	category, err := (Payload{RemoteCall: &RemoteCall{}}).Category()
	if err != nil {
		t.Fatalf("Expected category, got: %v", err)
	}
	if string(category) != "remote_call" {
		t.Errorf("Expected remote_call, got %s", category)
	}
}

func TestProposal_ClonePolicyUpdateIsDeep(t *testing.T) {
	policy := governance.Policy{
		Participants: []governance.Participant{{
			Name: "alice",
			Capabilities: map[governance.ActionCategory][]governance.Capability{
				governance.CategoryPolicyUpdate: {governance.CapabilityVote},
			},
		}},
		Thresholds: map[governance.ActionCategory]governance.VotingConfig{
			governance.CategoryPolicyUpdate: {StopVoteCount: 1, PositiveVoteCount: 1},
		},
	}
	p := Proposal{
		ID:      1,
		State:   StateVoting,
		Payload: Payload{PolicyUpdate: &policy},
	}

	clone := p.Clone()
	clone.Payload.PolicyUpdate.Participants[0].Name = "mallory"
	clone.Payload.PolicyUpdate.Participants[0].Capabilities[governance.CategoryPolicyUpdate] =
		append(clone.Payload.PolicyUpdate.Participants[0].Capabilities[governance.CategoryPolicyUpdate],
			governance.CapabilityPerform)
	clone.Payload.PolicyUpdate.Thresholds[governance.CategoryPolicyUpdate] =
		governance.VotingConfig{StopVoteCount: 9, PositiveVoteCount: 9}

	if policy.Participants[0].Name != "alice" {
		t.Error("Expected the participant table to be independent of the clone")
	}
	if len(policy.Participants[0].Capabilities[governance.CategoryPolicyUpdate]) != 1 {
		t.Error("Expected the capability map to be independent of the clone")
	}
	if policy.Thresholds[governance.CategoryPolicyUpdate].StopVoteCount != 1 {
		t.Error("Expected the threshold table to be independent of the clone")
	}
}
