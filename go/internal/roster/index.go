package roster

import (
	"sync"

	"github.com/google/uuid"
)

// Kind says what a player is engaged in.
type Kind string

const (
	KindProposal Kind = "proposal"
	KindMatch    Kind = "match"
)

// Location points at the proposal or match holding a player.
type Location struct {
	Kind Kind      `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// InProposal returns a proposal location.
func InProposal(id uuid.UUID) Location { return Location{Kind: KindProposal, ID: id} }

// InMatch returns a match location.
func InMatch(id uuid.UUID) Location { return Location{Kind: KindMatch, ID: id} }

// Index tracks which live proposal or match each player belongs to.
// Queue membership is owned by the queue itself; a player found here may
// not join the queue.
type Index struct {
	mu       sync.RWMutex
	byPlayer map[string]Location
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byPlayer: make(map[string]Location)}
}

// Assign moves every player to loc.
func (ix *Index) Assign(loc Location, playerIDs ...string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range playerIDs {
		ix.byPlayer[id] = loc
	}
}

// Release forgets players that are still at loc. Players that have
// already moved elsewhere are left untouched.
func (ix *Index) Release(loc Location, playerIDs ...string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range playerIDs {
		if cur, ok := ix.byPlayer[id]; ok && cur == loc {
			delete(ix.byPlayer, id)
		}
	}
}

// Lookup returns where the player is engaged.
func (ix *Index) Lookup(playerID string) (Location, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	loc, ok := ix.byPlayer[playerID]
	return loc, ok
}

// Engaged reports whether the player is in a live proposal or match.
func (ix *Index) Engaged(playerID string) bool {
	_, ok := ix.Lookup(playerID)
	return ok
}

// Len returns the number of engaged players.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byPlayer)
}
