// Package proposal turns a formed cohort into a time-boxed match offer and
// collects every member's answer.
package proposal

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/clock"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
	"github.com/mcdev12/matchroom/go/internal/roster"
)

// Requeuer releases players from a location and puts them back in the
// queue as one step.
type Requeuer interface {
	Requeue(from roster.Location, released []string, front, back []models.Player) models.QueueSnapshot
}

// MatchCreator opens a match for a confirmed cohort.
type MatchCreator interface {
	Create(proposalID uuid.UUID, players []models.Player) (models.Match, error)
}

// RequeuePosition places acceptors of a dissolved proposal.
type RequeuePosition string

const (
	RequeueFront RequeuePosition = "front"
	RequeueBack  RequeuePosition = "back"
)

// Config controls the acceptance protocol.
type Config struct {
	AcceptWindow    time.Duration
	AcceptorRequeue RequeuePosition
	Retention       int
}

// DefaultConfig returns a 30 second window with front requeue.
func DefaultConfig() Config {
	return Config{
		AcceptWindow:    30 * time.Second,
		AcceptorRequeue: RequeueFront,
		Retention:       256,
	}
}

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("proposal coordinator closed")

type entry struct {
	mu       sync.RWMutex
	p        models.Proposal
	deadline *clock.Token
}

// Coordinator owns every proposal. Each proposal is locked on its own; the
// coordinator lock only guards membership.
type Coordinator struct {
	mu        sync.RWMutex
	proposals map[uuid.UUID]*entry
	resolved  []uuid.UUID
	closed    bool

	config  Config
	sched   *clock.Scheduler
	queue   Requeuer
	matches MatchCreator
	roster  *roster.Index
	policy  NonAcceptancePolicy
	events  events.Emitter
}

// NewCoordinator wires a coordinator. A nil policy requeues non-acceptors.
func NewCoordinator(cfg Config, sched *clock.Scheduler, q Requeuer, matches MatchCreator, ix *roster.Index, policy NonAcceptancePolicy, em events.Emitter) *Coordinator {
	if policy == nil {
		policy = RequeuePolicy{}
	}
	if em == nil {
		em = events.Discard
	}
	if cfg.AcceptorRequeue == "" {
		cfg.AcceptorRequeue = RequeueFront
	}
	return &Coordinator{
		proposals: make(map[uuid.UUID]*entry),
		config:    cfg,
		sched:     sched,
		queue:     q,
		matches:   matches,
		roster:    ix,
		policy:    policy,
		events:    em,
	}
}

// Open creates a pending proposal for cohort. It runs inside the queue's
// critical section, so the cohort leaves the queue and enters the proposal
// in one step.
func (c *Coordinator) Open(cohort []models.QueueEntry) (uuid.UUID, error) {
	now := c.sched.Now()
	p := models.Proposal{
		ID:        uuid.New(),
		Status:    models.ProposalStatusPending,
		CreatedAt: now,
		Version:   1,
	}
	players := make([]models.Player, len(cohort))
	ids := make([]string, len(cohort))
	for i, qe := range cohort {
		p.Cohort = append(p.Cohort, models.Acceptance{Player: qe.Player})
		players[i] = qe.Player
		ids[i] = qe.Player.ID
	}
	p.AverageRating = models.AverageRating(players)

	e := &entry{p: p}
	e.mu.Lock()
	defer e.mu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return uuid.Nil, ErrClosed
	}
	c.proposals[p.ID] = e
	c.mu.Unlock()

	c.roster.Assign(roster.InProposal(p.ID), ids...)

	id := p.ID
	e.deadline = c.sched.After("proposal "+id.String(), c.config.AcceptWindow, func(tok *clock.Token) {
		c.expire(id, tok)
	})
	e.p.ExpiresAt = e.deadline.Deadline()

	log.Info().
		Str("proposal_id", id.String()).
		Int("cohort_size", len(cohort)).
		Time("expires_at", e.p.ExpiresAt).
		Msg("proposal created")

	events.Emit(c.events, events.EventTypeProposalCreated, id.String(), now, events.ProposalCreatedPayload{
		ProposalID: id.String(),
		PlayerIDs:  ids,
		CreatedAt:  now,
		ExpiresAt:  e.p.ExpiresAt,
	})
	return id, nil
}

// Accept records a cohort member's acceptance. Accepting twice is a no-op.
// When the last member accepts the proposal becomes ready and its match is
// created before the lock is released.
func (c *Coordinator) Accept(id uuid.UUID, playerID string) (models.Proposal, error) {
	e, err := c.lookup(id)
	if err != nil {
		return models.Proposal{}, err
	}

	e.mu.Lock()
	i, err := c.checkVote(e, playerID)
	if err != nil {
		snap := c.snapshotLocked(e)
		e.mu.Unlock()
		return snap, err
	}
	if e.p.Cohort[i].Accepted {
		snap := c.snapshotLocked(e)
		e.mu.Unlock()
		return snap, nil
	}

	e.p.Cohort[i].Accepted = true
	e.p.Version++
	accepted := e.p.AcceptedCount()

	log.Info().
		Str("proposal_id", id.String()).
		Str("player_id", playerID).
		Int("accepted", accepted).
		Int("cohort_size", len(e.p.Cohort)).
		Msg("proposal accepted")

	events.Emit(c.events, events.EventTypeProposalUpdated, id.String(), c.sched.Now(), events.ProposalUpdatedPayload{
		ProposalID:    id.String(),
		PlayerID:      playerID,
		AcceptedCount: accepted,
		CohortSize:    len(e.p.Cohort),
	})

	var dissolved bool
	if accepted == len(e.p.Cohort) {
		dissolved = !c.confirmLocked(e)
	}
	snap := c.snapshotLocked(e)
	e.mu.Unlock()

	if snap.Status != models.ProposalStatusPending {
		c.markResolved(id)
	}
	if dissolved {
		c.dissolve(snap)
	}
	return snap, nil
}

// Decline dissolves the proposal on behalf of playerID.
func (c *Coordinator) Decline(id uuid.UUID, playerID string) (models.Proposal, error) {
	e, err := c.lookup(id)
	if err != nil {
		return models.Proposal{}, err
	}

	e.mu.Lock()
	i, err := c.checkVote(e, playerID)
	if err != nil {
		snap := c.snapshotLocked(e)
		e.mu.Unlock()
		return snap, err
	}
	e.p.Cohort[i].Declined = true
	e.p.Cohort[i].Accepted = false
	c.cancelLocked(e, models.CancelReasonDeclined)
	snap := c.snapshotLocked(e)
	e.mu.Unlock()

	log.Info().
		Str("proposal_id", id.String()).
		Str("player_id", playerID).
		Msg("proposal declined")

	c.markResolved(id)
	c.dissolve(snap)
	return snap, nil
}

// Get returns a consistent snapshot of a proposal.
func (c *Coordinator) Get(id uuid.UUID) (models.Proposal, error) {
	e, err := c.lookup(id)
	if err != nil {
		return models.Proposal{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return c.snapshotLocked(e), nil
}

// ForPlayer returns the pending proposal a player belongs to.
func (c *Coordinator) ForPlayer(playerID string) (models.Proposal, bool) {
	loc, ok := c.roster.Lookup(playerID)
	if !ok || loc.Kind != roster.KindProposal {
		return models.Proposal{}, false
	}
	p, err := c.Get(loc.ID)
	return p, err == nil
}

// Close stops accepting cohorts and cancels pending deadlines.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	entries := make([]*entry, 0, len(c.proposals))
	for _, e := range c.proposals {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		e.deadline.Cancel()
		e.mu.Unlock()
	}
}

func (c *Coordinator) lookup(id uuid.UUID) (*entry, error) {
	c.mu.RLock()
	e, ok := c.proposals[id]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "proposal %s not found", id)
	}
	return e, nil
}

// checkVote validates a vote and returns the voter's cohort index.
func (c *Coordinator) checkVote(e *entry, playerID string) (int, error) {
	i := slices.IndexFunc(e.p.Cohort, func(a models.Acceptance) bool { return a.Player.ID == playerID })
	if i < 0 {
		return -1, apperrors.New(apperrors.KindNotInProposal, "player %s is not in proposal %s", playerID, e.p.ID)
	}
	if e.p.Status != models.ProposalStatusPending {
		return -1, apperrors.New(apperrors.KindAlreadyResolved, "proposal %s is %s", e.p.ID, e.p.Status)
	}
	return i, nil
}

// confirmLocked resolves a fully accepted proposal into a match. It reports
// false if the match could not be created and the proposal was cancelled
// instead.
func (c *Coordinator) confirmLocked(e *entry) bool {
	e.deadline.Cancel()
	e.deadline = nil

	m, err := c.matches.Create(e.p.ID, e.p.Players())
	if err != nil {
		log.Error().Err(err).Str("proposal_id", e.p.ID.String()).Msg("failed to create match")
		c.cancelLocked(e, models.CancelReasonMatchFailed)
		return false
	}

	now := c.sched.Now()
	e.p.Status = models.ProposalStatusReady
	e.p.ResolvedAt = &now
	e.p.MatchID = &m.ID
	e.p.Version++

	log.Info().
		Str("proposal_id", e.p.ID.String()).
		Str("match_id", m.ID.String()).
		Msg("proposal ready")

	events.Emit(c.events, events.EventTypeProposalReady, e.p.ID.String(), now, events.ProposalReadyPayload{
		ProposalID: e.p.ID.String(),
		MatchID:    m.ID.String(),
	})
	return true
}

func (c *Coordinator) cancelLocked(e *entry, reason models.CancelReason) {
	e.deadline.Cancel()
	e.deadline = nil
	now := c.sched.Now()
	e.p.Status = models.ProposalStatusCancelled
	e.p.CancelReason = reason
	e.p.ResolvedAt = &now
	e.p.Version++
}

// expire cancels a proposal whose window ran out. A token that no longer
// matches the proposal's deadline is ignored.
func (c *Coordinator) expire(id uuid.UUID, tok *clock.Token) {
	e, err := c.lookup(id)
	if err != nil {
		return
	}

	e.mu.Lock()
	if e.deadline != tok || e.p.Status != models.ProposalStatusPending {
		e.mu.Unlock()
		return
	}
	c.cancelLocked(e, models.CancelReasonTimeout)
	snap := c.snapshotLocked(e)
	e.mu.Unlock()

	log.Info().
		Str("proposal_id", id.String()).
		Int("accepted", snap.AcceptedCount()).
		Msg("proposal expired")

	c.markResolved(id)
	c.dissolve(snap)
}

// dissolve frees a cancelled proposal's players and requeues them:
// acceptors ahead of everyone, non-acceptors as the policy decides. A
// decliner is never an acceptor, even after accepting first.
func (c *Coordinator) dissolve(p models.Proposal) {
	ids := make([]string, len(p.Cohort))
	var acceptors, others []models.Player
	var declinedBy string
	for i, a := range p.Cohort {
		ids[i] = a.Player.ID
		if a.Accepted && !a.Declined {
			acceptors = append(acceptors, a.Player)
		} else {
			others = append(others, a.Player)
		}
		if a.Declined && declinedBy == "" {
			declinedBy = a.Player.ID
		}
	}
	back := c.policy.HandleNonAcceptors(p, others)
	var front []models.Player
	if c.config.AcceptorRequeue == RequeueFront {
		front = acceptors
	} else {
		back = append(slices.Clone(acceptors), back...)
	}
	c.queue.Requeue(roster.InProposal(p.ID), ids, front, back)

	kept := make(map[string]bool, len(back))
	for _, pl := range back {
		kept[pl.ID] = true
	}
	var removed []string
	for _, pl := range others {
		if !kept[pl.ID] {
			removed = append(removed, pl.ID)
		}
	}

	log.Info().
		Str("proposal_id", p.ID.String()).
		Str("reason", string(p.CancelReason)).
		Int("requeued_front", len(front)).
		Int("requeued_back", len(back)).
		Int("removed", len(removed)).
		Msg("proposal dissolved")

	events.Emit(c.events, events.EventTypeProposalCancelled, p.ID.String(), c.sched.Now(), events.ProposalCancelledPayload{
		ProposalID:     p.ID.String(),
		Reason:         string(p.CancelReason),
		DeclinedBy:     declinedBy,
		RequeuedFront:  playerIDs(front),
		RequeuedBack:   playerIDs(back),
		RemovedPlayers: removed,
	})
}

// markResolved records a resolved proposal and evicts the oldest beyond the
// retention limit.
func (c *Coordinator) markResolved(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = append(c.resolved, id)
	for c.config.Retention > 0 && len(c.resolved) > c.config.Retention {
		delete(c.proposals, c.resolved[0])
		c.resolved = slices.Delete(c.resolved, 0, 1)
	}
}

func (c *Coordinator) snapshotLocked(e *entry) models.Proposal {
	snap := e.p
	snap.Cohort = slices.Clone(e.p.Cohort)
	if e.p.ResolvedAt != nil {
		t := *e.p.ResolvedAt
		snap.ResolvedAt = &t
	}
	if e.p.MatchID != nil {
		id := *e.p.MatchID
		snap.MatchID = &id
	}
	if snap.Status == models.ProposalStatusPending {
		if rem := snap.ExpiresAt.Sub(c.sched.Now()); rem > 0 {
			snap.RemainingMs = rem.Milliseconds()
		}
	}
	return snap
}

func playerIDs(players []models.Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}
