// Package gateway is the external boundary of the matchmaking engine. It
// attributes every command to one player, serves snapshots and pushes
// changes to websocket subscribers.
package gateway

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/clock"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/matchroom"
	"github.com/mcdev12/matchroom/go/internal/models"
	"github.com/mcdev12/matchroom/go/internal/proposal"
	"github.com/mcdev12/matchroom/go/internal/queue"
	"github.com/mcdev12/matchroom/go/internal/roster"
)

// Options assemble an Engine.
type Options struct {
	Queue    queue.Config
	Proposal proposal.Config
	Match    matchroom.Config
	Policy   proposal.NonAcceptancePolicy
	Clock    clock.Clock
	Events   events.Emitter
	// Rand drives captain draws. Nil uses a time-seeded source.
	Rand *rand.Rand
}

// Engine wires the queue, proposal coordinator and match registry together
// and exposes the command set.
type Engine struct {
	sched     *clock.Scheduler
	roster    *roster.Index
	queue     *queue.Manager
	proposals *proposal.Coordinator
	matches   *matchroom.Registry
}

// NewEngine builds an engine and connects cohort formation to the proposal
// coordinator.
func NewEngine(opts Options) *Engine {
	em := opts.Events
	if em == nil {
		em = events.Discard
	}
	sched := clock.NewScheduler(opts.Clock)
	ix := roster.NewIndex()

	q := queue.NewManager(opts.Queue, opts.Clock, ix, em)
	matches := matchroom.NewRegistry(opts.Match, sched, ix, em, opts.Rand)
	proposals := proposal.NewCoordinator(opts.Proposal, sched, q, matches, ix, opts.Policy, em)
	q.OnCohort(proposals.Open)

	return &Engine{
		sched:     sched,
		roster:    ix,
		queue:     q,
		proposals: proposals,
		matches:   matches,
	}
}

// Close stops every pending deadline. Commands issued afterwards still see
// consistent state but nothing auto-resolves.
func (e *Engine) Close() {
	e.proposals.Close()
	e.matches.Close()
	e.sched.Stop()
}

func requirePlayer(playerID string) error {
	if strings.TrimSpace(playerID) == "" {
		return apperrors.New(apperrors.KindUnauthorized, "command has no player identity")
	}
	return nil
}

// JoinQueue enqueues p.
func (e *Engine) JoinQueue(p models.Player) (models.QueueSnapshot, error) {
	if err := requirePlayer(p.ID); err != nil {
		return e.queue.Snapshot(), err
	}
	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}
	return e.queue.Join(p)
}

// LeaveQueue removes playerID from the queue. Leaving when not queued is a
// no-op.
func (e *Engine) LeaveQueue(playerID string) (models.QueueSnapshot, error) {
	if err := requirePlayer(playerID); err != nil {
		return e.queue.Snapshot(), err
	}
	return e.queue.Leave(playerID), nil
}

// QueueSnapshot returns the current queue.
func (e *Engine) QueueSnapshot() models.QueueSnapshot {
	return e.queue.Snapshot()
}

// AcceptProposal records playerID's acceptance.
func (e *Engine) AcceptProposal(id uuid.UUID, playerID string) (models.Proposal, error) {
	if err := requirePlayer(playerID); err != nil {
		return models.Proposal{}, err
	}
	return e.proposals.Accept(id, playerID)
}

// DeclineProposal records playerID's decline and dissolves the proposal.
func (e *Engine) DeclineProposal(id uuid.UUID, playerID string) (models.Proposal, error) {
	if err := requirePlayer(playerID); err != nil {
		return models.Proposal{}, err
	}
	return e.proposals.Decline(id, playerID)
}

// Proposal returns the snapshot of proposal id.
func (e *Engine) Proposal(id uuid.UUID) (models.Proposal, error) {
	return e.proposals.Get(id)
}

// SetCaptainMethod chooses how captains are picked.
func (e *Engine) SetCaptainMethod(matchID uuid.UUID, playerID string, method models.CaptainMethod) (models.Match, error) {
	if err := requirePlayer(playerID); err != nil {
		return models.Match{}, err
	}
	return e.matches.SetCaptainMethod(matchID, playerID, method)
}

// VoteForCaptain casts voterID's captain vote.
func (e *Engine) VoteForCaptain(matchID uuid.UUID, voterID, candidateID string) (models.Match, error) {
	if err := requirePlayer(voterID); err != nil {
		return models.Match{}, err
	}
	return e.matches.VoteForCaptain(matchID, voterID, candidateID)
}

// PickPlayer drafts playerID onto captainID's team.
func (e *Engine) PickPlayer(matchID uuid.UUID, captainID, playerID string) (models.Match, error) {
	if err := requirePlayer(captainID); err != nil {
		return models.Match{}, err
	}
	return e.matches.PickPlayer(matchID, captainID, playerID)
}

// BanMap removes mapID from the pool.
func (e *Engine) BanMap(matchID uuid.UUID, captainID, mapID string) (models.Match, error) {
	if err := requirePlayer(captainID); err != nil {
		return models.Match{}, err
	}
	return e.matches.BanMap(matchID, captainID, mapID)
}

// ReportResult records captainID's view of the outcome.
func (e *Engine) ReportResult(matchID uuid.UUID, captainID string, winner models.Winner) (models.Match, error) {
	if err := requirePlayer(captainID); err != nil {
		return models.Match{}, err
	}
	return e.matches.ReportResult(matchID, captainID, winner)
}

// Match returns the snapshot of match id, live or recently finished.
func (e *Engine) Match(id uuid.UUID) (models.Match, error) {
	return e.matches.Get(id)
}

// ActiveMatches lists matches that have not reached a terminal state.
func (e *Engine) ActiveMatches() []models.Match {
	return e.matches.ListActive()
}

// LocationStatus is where a player currently is in the lifecycle.
type LocationStatus string

const (
	LocationIdle     LocationStatus = "idle"
	LocationQueued   LocationStatus = "queued"
	LocationProposal LocationStatus = "proposal"
	LocationMatch    LocationStatus = "match"
)

// PlayerLocation answers "where is this player right now".
type PlayerLocation struct {
	PlayerID string         `json:"player_id"`
	Status   LocationStatus `json:"status"`
	// Position is the 1-based queue position when queued.
	Position int        `json:"position,omitempty"`
	ID       *uuid.UUID `json:"id,omitempty"`
}

// Locate reports the queue position, proposal or match of playerID.
func (e *Engine) Locate(playerID string) (PlayerLocation, error) {
	if err := requirePlayer(playerID); err != nil {
		return PlayerLocation{}, err
	}
	loc := PlayerLocation{PlayerID: playerID, Status: LocationIdle}
	if at, ok := e.roster.Lookup(playerID); ok {
		id := at.ID
		loc.ID = &id
		loc.Status = LocationProposal
		if at.Kind == roster.KindMatch {
			loc.Status = LocationMatch
		}
		return loc, nil
	}
	if pos, ok := e.queue.Position(playerID); ok {
		loc.Status = LocationQueued
		loc.Position = pos + 1
	}
	return loc, nil
}
