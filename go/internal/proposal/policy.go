package proposal

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/models"
)

// NonAcceptancePolicy decides what happens to cohort members who declined
// or let the acceptance window run out. It returns the players to put back
// at the end of the queue; anyone omitted is dropped from matchmaking.
type NonAcceptancePolicy interface {
	HandleNonAcceptors(p models.Proposal, players []models.Player) []models.Player
}

// PolicyFunc adapts a function to NonAcceptancePolicy.
type PolicyFunc func(p models.Proposal, players []models.Player) []models.Player

// HandleNonAcceptors implements NonAcceptancePolicy.
func (f PolicyFunc) HandleNonAcceptors(p models.Proposal, players []models.Player) []models.Player {
	return f(p, players)
}

// RequeuePolicy sends non-acceptors to the back of the queue.
type RequeuePolicy struct{}

// HandleNonAcceptors implements NonAcceptancePolicy.
func (RequeuePolicy) HandleNonAcceptors(_ models.Proposal, players []models.Player) []models.Player {
	return players
}

// DropPolicy removes non-acceptors from matchmaking; they must join again.
type DropPolicy struct{}

// HandleNonAcceptors implements NonAcceptancePolicy.
func (DropPolicy) HandleNonAcceptors(p models.Proposal, players []models.Player) []models.Player {
	for _, pl := range players {
		log.Info().
			Str("proposal_id", p.ID.String()).
			Str("player_id", pl.ID).
			Msg("non-acceptor dropped from matchmaking")
	}
	return nil
}

// PenaltyPolicy reports each non-acceptor to Penalize and then defers to
// Next for requeue placement.
type PenaltyPolicy struct {
	Penalize func(p models.Proposal, player models.Player, declined bool)
	Next     NonAcceptancePolicy
}

// HandleNonAcceptors implements NonAcceptancePolicy.
func (pp PenaltyPolicy) HandleNonAcceptors(p models.Proposal, players []models.Player) []models.Player {
	declined := make(map[string]bool)
	for _, a := range p.Cohort {
		if a.Declined {
			declined[a.Player.ID] = true
		}
	}
	if pp.Penalize != nil {
		for _, pl := range players {
			pp.Penalize(p, pl, declined[pl.ID])
		}
	}
	next := pp.Next
	if next == nil {
		next = RequeuePolicy{}
	}
	return next.HandleNonAcceptors(p, players)
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (NonAcceptancePolicy, bool) {
	switch name {
	case "", "requeue":
		return RequeuePolicy{}, true
	case "drop":
		return DropPolicy{}, true
	}
	return nil, false
}
