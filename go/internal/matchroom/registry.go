// Package matchroom runs a confirmed match from captain selection through
// the team draft and map bans to a reported result.
package matchroom

import (
	"errors"
	"math/rand"
	"slices"
	"sort"
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

// Config holds phase windows and match rules. A zero window disables the
// deadline for that phase.
type Config struct {
	MapPool           []string
	MethodWindow      time.Duration
	VoteWindow        time.Duration
	PickWindow        time.Duration
	BanWindow         time.Duration
	ReportWindow      time.Duration
	CaptainCandidates int
	FinishedRetention int
}

// DefaultConfig returns the standard windows and map pool.
func DefaultConfig() Config {
	return Config{
		MapPool:           slices.Clone(models.DefaultMapPool),
		MethodWindow:      60 * time.Second,
		VoteWindow:        45 * time.Second,
		PickWindow:        30 * time.Second,
		BanWindow:         30 * time.Second,
		ReportWindow:      10 * time.Minute,
		FinishedRetention: 256,
	}
}

// errStale marks a deadline callback that lost the race to a participant.
var errStale = errors.New("stale deadline")

// room is one live match. All fields are guarded by mu.
type room struct {
	mu       sync.RWMutex
	m        models.Match
	deadline *clock.Token
}

// Registry owns every live match. Each match is locked independently; the
// registry lock only guards membership.
type Registry struct {
	mu            sync.RWMutex
	active        map[uuid.UUID]*room
	finished      map[uuid.UUID]models.Match
	finishedOrder []uuid.UUID

	config Config
	sched  *clock.Scheduler
	roster *roster.Index
	events events.Emitter

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewRegistry creates a registry. rng may be nil for a time-seeded source.
func NewRegistry(cfg Config, sched *clock.Scheduler, ix *roster.Index, em events.Emitter, rng *rand.Rand) *Registry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if em == nil {
		em = events.Discard
	}
	if len(cfg.MapPool) == 0 {
		cfg.MapPool = slices.Clone(models.DefaultMapPool)
	}
	return &Registry{
		active:   make(map[uuid.UUID]*room),
		finished: make(map[uuid.UUID]models.Match),
		config:   cfg,
		sched:    sched,
		roster:   ix,
		events:   em,
		rng:      rng,
	}
}

// Create opens a match for a confirmed proposal. Player order is kept and
// is the tie-break order for every later decision.
func (r *Registry) Create(proposalID uuid.UUID, players []models.Player) (models.Match, error) {
	if len(players) < 2 {
		return models.Match{}, apperrors.New(apperrors.KindInvalidArgument, "a match needs at least 2 players, got %d", len(players))
	}

	now := r.sched.Now()
	m := models.Match{
		ID:                uuid.New(),
		ProposalID:        proposalID,
		Status:            models.MatchStatusCreated,
		Team1:             []string{},
		Team2:             []string{},
		CaptainVotes:      map[string]string{},
		CaptainCandidates: []string{},
		Undrafted:         []string{},
		MapPool:           slices.Clone(r.config.MapPool),
		BannedMaps:        []string{},
		Reports:           map[string]models.Winner{},
		CreatedAt:         now,
		Version:           1,
	}
	ids := make([]string, len(players))
	for i, p := range players {
		m.Players = append(m.Players, models.MatchPlayer{
			UserID:   p.ID,
			Username: p.DisplayName,
			Rating:   p.Rating,
			Accepted: true,
		})
		ids[i] = p.ID
	}

	rm := &room{m: m}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r.mu.Lock()
	r.active[m.ID] = rm
	r.mu.Unlock()
	r.roster.Assign(roster.InMatch(m.ID), ids...)

	r.armDeadline(rm, r.config.MethodWindow)

	log.Info().
		Str("match_id", m.ID.String()).
		Str("proposal_id", proposalID.String()).
		Int("players", len(players)).
		Msg("match created")

	events.Emit(r.events, events.EventTypeMatchCreated, m.ID.String(), now, events.MatchCreatedPayload{
		MatchID:    m.ID.String(),
		ProposalID: proposalID.String(),
		PlayerIDs:  ids,
		CreatedAt:  now,
	})

	return r.snapshotLocked(rm), nil
}

// Get returns a consistent snapshot of a live or recently finished match.
func (r *Registry) Get(id uuid.UUID) (models.Match, error) {
	r.mu.RLock()
	rm, ok := r.active[id]
	fin, done := r.finished[id]
	r.mu.RUnlock()

	switch {
	case ok:
		rm.mu.RLock()
		defer rm.mu.RUnlock()
		return r.snapshotLocked(rm), nil
	case done:
		return fin.Clone(), nil
	}
	return models.Match{}, apperrors.New(apperrors.KindNotFound, "match %s not found", id)
}

// ListActive returns snapshots of all live matches, oldest first.
func (r *Registry) ListActive() []models.Match {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.active))
	for _, rm := range r.active {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	out := make([]models.Match, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.RLock()
		out = append(out, r.snapshotLocked(rm))
		rm.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ForPlayer returns the live match a player belongs to.
func (r *Registry) ForPlayer(playerID string) (models.Match, bool) {
	loc, ok := r.roster.Lookup(playerID)
	if !ok || loc.Kind != roster.KindMatch {
		return models.Match{}, false
	}
	m, err := r.Get(loc.ID)
	if err != nil {
		return models.Match{}, false
	}
	return m, true
}

// Close cancels every pending phase deadline.
func (r *Registry) Close() {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.active))
	for _, rm := range r.active {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		rm.deadline.Cancel()
		rm.mu.Unlock()
	}
}

// mutate runs fn with the match locked and returns the resulting snapshot
// whether or not fn succeeded. A match that becomes terminal is archived.
func (r *Registry) mutate(id uuid.UUID, fn func(rm *room) error) (models.Match, error) {
	r.mu.RLock()
	rm, ok := r.active[id]
	fin, done := r.finished[id]
	r.mu.RUnlock()

	if !ok {
		if done {
			return fin.Clone(), apperrors.New(apperrors.KindInvalidStateForOperation, "match %s is %s", id, fin.Status)
		}
		return models.Match{}, apperrors.New(apperrors.KindNotFound, "match %s not found", id)
	}

	rm.mu.Lock()
	if rm.m.Status.Terminal() {
		snap := r.snapshotLocked(rm)
		rm.mu.Unlock()
		return snap, apperrors.New(apperrors.KindInvalidStateForOperation, "match %s is %s", id, snap.Status)
	}
	err := fn(rm)
	if errors.Is(err, errStale) {
		err = nil
	} else if err == nil {
		rm.m.Version++
	}
	snap := r.snapshotLocked(rm)
	terminal := rm.m.Status.Terminal()
	rm.mu.Unlock()

	if terminal {
		r.archive(snap)
	}
	return snap, err
}

// archive moves a terminal match out of the active set and frees its
// players.
func (r *Registry) archive(m models.Match) {
	r.mu.Lock()
	delete(r.active, m.ID)
	r.finished[m.ID] = m
	r.finishedOrder = append(r.finishedOrder, m.ID)
	for r.config.FinishedRetention > 0 && len(r.finishedOrder) > r.config.FinishedRetention {
		delete(r.finished, r.finishedOrder[0])
		r.finishedOrder = slices.Delete(r.finishedOrder, 0, 1)
	}
	r.mu.Unlock()

	ids := make([]string, len(m.Players))
	for i, p := range m.Players {
		ids[i] = p.UserID
	}
	r.roster.Release(roster.InMatch(m.ID), ids...)

	log.Info().
		Str("match_id", m.ID.String()).
		Str("status", string(m.Status)).
		Msg("match archived")
}

func (r *Registry) snapshotLocked(rm *room) models.Match {
	snap := rm.m.Clone()
	if snap.ExpireTime != nil {
		if rem := snap.ExpireTime.Sub(r.sched.Now()); rem > 0 {
			snap.RemainingMs = rem.Milliseconds()
		}
	}
	return snap
}

// enter moves the match to next, replacing the phase deadline with window.
func (r *Registry) enter(rm *room, next models.MatchStatus, window time.Duration) error {
	from := rm.m.Status
	if err := validateStatusTransition(from, next); err != nil {
		return err
	}
	rm.m.Status = next
	r.armDeadline(rm, window)

	log.Info().
		Str("match_id", rm.m.ID.String()).
		Str("from", string(from)).
		Str("to", string(next)).
		Msg("match phase changed")

	events.Emit(r.events, events.EventTypeMatchPhaseChanged, rm.m.ID.String(), r.sched.Now(), events.MatchPhaseChangedPayload{
		MatchID:  rm.m.ID.String(),
		From:     string(from),
		To:       string(next),
		Deadline: rm.m.ExpireTime,
	})
	return nil
}

func (r *Registry) emitAction(rm *room, eventType events.EventType, action, actorID, target string) {
	events.Emit(r.events, eventType, rm.m.ID.String(), r.sched.Now(), events.MatchActionPayload{
		MatchID: rm.m.ID.String(),
		Phase:   string(rm.m.Status),
		Action:  action,
		ActorID: actorID,
		Target:  target,
	})
}

func (r *Registry) pickTwo(n int) (int, int) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	perm := r.rng.Perm(n)
	return perm[0], perm[1]
}

func (r *Registry) playerIndex(m *models.Match, userID string) int {
	return slices.IndexFunc(m.Players, func(p models.MatchPlayer) bool { return p.UserID == userID })
}

func (r *Registry) requireParticipant(m *models.Match, userID string) error {
	if r.playerIndex(m, userID) < 0 {
		return apperrors.New(apperrors.KindUnauthorized, "player %s is not in match %s", userID, m.ID)
	}
	return nil
}

func (r *Registry) requireCaptain(m *models.Match, userID string) (models.TeamSide, error) {
	side := m.CaptainSide(userID)
	if side == models.TeamSideNone {
		return side, apperrors.New(apperrors.KindUnauthorized, "player %s is not a captain of match %s", userID, m.ID)
	}
	return side, nil
}
