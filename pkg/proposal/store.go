package proposal

import (
	"fmt"
	"sync"
)

// Store is the in-memory ordered proposal table. Identifiers are issued by a
// monotonically increasing counter that survives snapshot/restore; an id is
// never reused even after process restarts.
//
// Every accessor returns deep copies; Mutate is the only way to change a
// stored proposal and runs its callback under the store lock, so callbacks
// must not suspend.
type Store struct {
	mu        sync.RWMutex
	lastID    uint64
	proposals map[uint64]*Proposal
	order     []uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{proposals: map[uint64]*Proposal{}}
}

// NextID issues the next identifier. Identifiers are strictly increasing and
// never reused.
func (s *Store) NextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

// LastID returns the most recently issued identifier, which doubles as the
// total number of proposals ever created.
func (s *Store) LastID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID
}

// Insert stores a new proposal under its id. Inserting a duplicate id is a
// programming error and panics.
func (s *Store) Insert(p Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.proposals[p.ID]; exists {
		panic(fmt.Sprintf("proposal %d inserted twice", p.ID))
	}
	cloned := p.Clone()
	s.proposals[p.ID] = &cloned
	s.order = append(s.order, p.ID)
}

// Get returns a copy of the proposal under id.
func (s *Store) Get(id uint64) (Proposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return Proposal{}, false
	}
	return p.Clone(), true
}

// Mutate runs fn on the stored proposal under the store lock. The mutation
// is atomic with respect to other mutations of any id; fn must not block. A
// non-nil error from fn discards nothing: changes fn already made to the
// proposal are kept, matching the no-rollback discipline of the lifecycle.
// The returned proposal is a copy of the post-callback state.
func (s *Store) Mutate(id uint64, fn func(*Proposal) error) (Proposal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return Proposal{}, false, nil
	}
	err := fn(p)
	return p.Clone(), true, err
}

// List returns up to limit proposals ordered by id, skipping offset entries
// from the chosen end. A zero limit returns an empty page.
func (s *Store) List(offset, limit uint64, ascending bool) []Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := uint64(len(s.order))
	if offset >= n || limit == 0 {
		return nil
	}
	count := n - offset
	if count > limit {
		count = limit
	}
	out := make([]Proposal, 0, count)
	if ascending {
		for _, id := range s.order[offset : offset+count] {
			out = append(out, s.proposals[id].Clone())
		}
		return out
	}
	for i := uint64(0); i < count; i++ {
		id := s.order[n-1-offset-i]
		out = append(out, s.proposals[id].Clone())
	}
	return out
}

// Len returns the number of stored proposals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proposals)
}

// Snapshot is the serializable image of the store.
type Snapshot struct {
	// LastID is the id counter, preserved so restored stores keep issuing
	// strictly increasing ids.
	LastID uint64 `json:"last_id"`

	// Proposals lists every stored proposal in id order.
	Proposals []Proposal `json:"proposals"`
}

// Snapshot captures the full store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{LastID: s.lastID}
	snap.Proposals = make([]Proposal, 0, len(s.order))
	for _, id := range s.order {
		snap.Proposals = append(snap.Proposals, s.proposals[id].Clone())
	}
	return snap
}

// Restore replaces the store state with a snapshot.
func (s *Store) Restore(snap Snapshot) error {
	proposals := make(map[uint64]*Proposal, len(snap.Proposals))
	order := make([]uint64, 0, len(snap.Proposals))
	prev := uint64(0)
	for _, p := range snap.Proposals {
		if p.ID == 0 || p.ID <= prev {
			return fmt.Errorf("snapshot proposals out of order at id %d", p.ID)
		}
		if p.ID > snap.LastID {
			return fmt.Errorf("snapshot proposal %d exceeds last issued id %d", p.ID, snap.LastID)
		}
		if err := p.State.Validate(); err != nil {
			return fmt.Errorf("snapshot proposal %d: %w", p.ID, err)
		}
		prev = p.ID
		cloned := p.Clone()
		proposals[p.ID] = &cloned
		order = append(order, p.ID)
	}
	s.mu.Lock()
	s.lastID = snap.LastID
	s.proposals = proposals
	s.order = order
	s.mu.Unlock()
	return nil
}
