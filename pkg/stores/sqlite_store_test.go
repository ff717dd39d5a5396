package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/conclavehq/conclave/pkg/candid"
	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/proposal"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "conclave.db")})
	if err != nil {
		t.Fatalf("Expected store to build, got: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Expected init to succeed, got: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Expected migrations to run, got: %v", err)
	}
	return store
}

func testState(t *testing.T) (proposal.Snapshot, governance.Policy) {
	t.Helper()
	alice, err := candid.PrincipalFromBytes([]byte{1})
	if err != nil {
		t.Fatalf("Expected principal, got: %v", err)
	}
	policy := governance.Policy{
		Participants: []governance.Participant{{
			ID:   alice,
			Name: "alice",
			Capabilities: map[governance.ActionCategory][]governance.Capability{
				governance.CategoryPolicyUpdate: {governance.CapabilityAdd, governance.CapabilityVote},
				governance.CategoryRemoteCall:   {governance.CapabilityAdd},
			},
		}},
		Thresholds: map[governance.ActionCategory]governance.VotingConfig{
			governance.CategoryPolicyUpdate: {StopVoteCount: 1, PositiveVoteCount: 1},
		},
	}
	ts := time.Unix(1000, 0).UTC()
	snapshot := proposal.Snapshot{
		LastID: 3,
		Proposals: []proposal.Proposal{
			{
				ID:       1,
				Proposer: alice,
				State:    proposal.StatePerformed,
				Payload:  proposal.Payload{RemoteCall: &proposal.RemoteCall{Method: "m", Argument: "()"}},
				Result: &proposal.ExecutionResult{
					Kind:     proposal.ResultCallResponse,
					Response: []byte{0x44, 0x49, 0x44, 0x4c, 0x00, 0x00},
					Decoded:  "()",
				},
				Votes:     []proposal.Vote{{Voter: alice, Affirm: true, At: ts}},
				CreatedAt: ts,
				UpdatedAt: ts.Add(time.Minute),
			},
			{
				ID:        2,
				Proposer:  alice,
				State:     proposal.StateVoting,
				Payload:   proposal.Payload{PolicyUpdate: &policy},
				CreatedAt: ts,
				UpdatedAt: ts,
			},
		},
	}
	return snapshot, policy
}

func TestSQLiteStore_FreshDatabaseHasNoState(t *testing.T) {
	store := newTestStore(t)

	_, _, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Expected load to succeed, got: %v", err)
	}
	if ok {
		t.Error("Expected a fresh database to report no state")
	}
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	snapshot, policy := testState(t)

	if err := store.Save(ctx, snapshot, policy); err != nil {
		t.Fatalf("Expected save to succeed, got: %v", err)
	}

	loadedSnap, loadedPolicy, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Expected load to succeed, got: %v", err)
	}
	if !ok {
		t.Fatal("Expected persisted state to be found")
	}
	if loadedSnap.LastID != 3 {
		t.Errorf("Expected last id 3, got %d", loadedSnap.LastID)
	}
	if len(loadedSnap.Proposals) != 2 {
		t.Fatalf("Expected 2 proposals, got %d", len(loadedSnap.Proposals))
	}

	first := loadedSnap.Proposals[0]
	if first.State != proposal.StatePerformed || first.Result == nil {
		t.Fatalf("Expected performed proposal with result, got %+v", first)
	}
	if first.Result.Decoded != "()" || len(first.Result.Response) != 6 {
		t.Errorf("Expected the execution result to round-trip, got %+v", first.Result)
	}
	if len(first.Votes) != 1 || !first.Votes[0].Affirm {
		t.Errorf("Expected the vote list to round-trip, got %+v", first.Votes)
	}
	if !first.Votes[0].Voter.Equal(policy.Participants[0].ID) {
		t.Error("Expected the voter principal to round-trip")
	}

	if len(loadedPolicy.Participants) != 1 || loadedPolicy.Participants[0].Name != "alice" {
		t.Errorf("Expected the policy to round-trip, got %+v", loadedPolicy)
	}
	cfg, found := loadedPolicy.Threshold(governance.CategoryPolicyUpdate)
	if !found || cfg.StopVoteCount != 1 {
		t.Errorf("Expected the thresholds to round-trip, got %+v", loadedPolicy.Thresholds)
	}
}

func TestSQLiteStore_SaveIsIdempotentPerState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	snapshot, policy := testState(t)

	if err := store.Save(ctx, snapshot, policy); err != nil {
		t.Fatalf("Expected first save to succeed, got: %v", err)
	}

	// A later checkpoint fully replaces the previous one.
	snapshot.LastID = 4
	snapshot.Proposals = snapshot.Proposals[:1]
	if err := store.Save(ctx, snapshot, policy); err != nil {
		t.Fatalf("Expected second save to succeed, got: %v", err)
	}

	loaded, _, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Expected load to succeed, got: %v", err)
	}
	if loaded.LastID != 4 || len(loaded.Proposals) != 1 {
		t.Errorf("Expected the checkpoint to replace prior state, got last id %d with %d proposals",
			loaded.LastID, len(loaded.Proposals))
	}
}

func TestSQLiteStore_RestartKeepsMonotonicIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conclave.db")
	ctx := context.Background()

	open := func() *SQLiteStore {
		t.Helper()
		store, err := NewSQLiteStore(Config{Path: path})
		if err != nil {
			t.Fatalf("Expected store to build, got: %v", err)
		}
		if err := store.Init(ctx); err != nil {
			t.Fatalf("Expected init to succeed, got: %v", err)
		}
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("Expected migrations to run, got: %v", err)
		}
		return store
	}

	snapshot, policy := testState(t)
	store := open()
	if err := store.Save(ctx, snapshot, policy); err != nil {
		t.Fatalf("Expected save to succeed, got: %v", err)
	}
	_ = store.Close()

	// Simulated restart.
	store = open()
	defer store.Close()
	loaded, _, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected state after restart, got ok=%v err=%v", ok, err)
	}

	mem := proposal.NewStore()
	if err := mem.Restore(loaded); err != nil {
		t.Fatalf("Expected restore to succeed, got: %v", err)
	}
	if id := mem.NextID(); id != 4 {
		t.Errorf("Expected the id sequence to continue at 4, got %d", id)
	}
}

func TestNewSQLiteStore_ConnectionSettings(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: "conclave.db"})
	if err != nil {
		t.Fatalf("Expected store to build, got: %v", err)
	}
	if store.cfg.MaxOpenConns != 25 || store.cfg.MaxIdleConns != 5 || store.cfg.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("Expected default connection settings, got %+v", store.cfg)
	}

	store, err = NewSQLiteStore(Config{
		Path:            "conclave.db",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("Expected store to build, got: %v", err)
	}
	if store.cfg.MaxOpenConns != 2 || store.cfg.MaxIdleConns != 1 || store.cfg.ConnMaxLifetime != time.Minute {
		t.Errorf("Expected explicit connection settings to be kept, got %+v", store.cfg)
	}
}
