// Package queue holds players waiting for a match and forms cohorts.
package queue

import (
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

// CohortFunc receives a formed cohort while the queue lock is held and
// returns the id of the proposal created for it. Returning an error leaves
// the entries queued.
type CohortFunc func(cohort []models.QueueEntry) (uuid.UUID, error)

// Config controls queue admission.
type Config struct {
	CohortSize  int
	Capacity    int
	WaitSamples int
}

// DefaultConfig returns a ten-player queue.
func DefaultConfig() Config {
	return Config{CohortSize: 10, Capacity: 100, WaitSamples: 20}
}

// Manager owns queue membership. Every mutation, including cohort handoff,
// happens under mu.
type Manager struct {
	mu      sync.RWMutex
	entries []models.QueueEntry
	version uint64

	config   Config
	clock    clock.Clock
	roster   *roster.Index
	events   events.Emitter
	onCohort CohortFunc

	joinTimes        []time.Time
	lastCohortRating *float64
}

// NewManager creates an empty queue.
func NewManager(cfg Config, clk clock.Clock, ix *roster.Index, em events.Emitter) *Manager {
	if cfg.WaitSamples <= 0 {
		cfg.WaitSamples = DefaultConfig().WaitSamples
	}
	if em == nil {
		em = events.Discard
	}
	return &Manager{
		config: cfg,
		clock:  clk,
		roster: ix,
		events: em,
	}
}

// OnCohort registers the cohort handler. It must be set before the first join.
func (m *Manager) OnCohort(fn CohortFunc) {
	m.mu.Lock()
	m.onCohort = fn
	m.mu.Unlock()
}

// Join appends a player to the back of the queue and forms a cohort if the
// queue reached cohort size. On rejection the current snapshot is returned
// alongside the error.
func (m *Manager) Join(p models.Player) (models.QueueSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(p.ID) >= 0 {
		return m.snapshotLocked(), apperrors.New(apperrors.KindAlreadyQueued, "player %s is already queued", p.ID)
	}
	if loc, ok := m.roster.Lookup(p.ID); ok {
		return m.snapshotLocked(), apperrors.New(apperrors.KindAlreadyQueued, "player %s is already in %s %s", p.ID, loc.Kind, loc.ID)
	}
	if len(m.entries) >= m.config.Capacity {
		return m.snapshotLocked(), apperrors.New(apperrors.KindQueueFull, "queue is at capacity %d", m.config.Capacity)
	}

	now := m.clock.Now()
	m.entries = append(m.entries, models.QueueEntry{Player: p, JoinedAt: now})
	m.recordJoin(now)
	m.version++

	log.Info().
		Str("player_id", p.ID).
		Int("queue_size", len(m.entries)).
		Msg("player joined queue")

	m.tryFormCohort()
	m.emitUpdated("join", p.ID)
	return m.snapshotLocked(), nil
}

// Leave removes a player. Leaving when absent is a successful no-op.
func (m *Manager) Leave(playerID string) models.QueueSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(playerID)
	if i < 0 {
		return m.snapshotLocked()
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	m.version++

	log.Info().
		Str("player_id", playerID).
		Int("queue_size", len(m.entries)).
		Msg("player left queue")

	m.tryFormCohort()
	m.emitUpdated("leave", playerID)
	return m.snapshotLocked()
}

// Requeue releases players from a dissolved proposal and puts them back in
// line under the queue lock, so nobody observes them idle in between. front
// is inserted ahead of everyone in order; back is appended. Capacity is not
// enforced for requeued players. Players already queued or engaged
// elsewhere are skipped.
func (m *Manager) Requeue(from roster.Location, released []string, front, back []models.Player) models.QueueSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(released) > 0 {
		m.roster.Release(from, released...)
	}

	now := m.clock.Now()
	seen := make(map[string]bool)
	admit := func(players []models.Player) []models.QueueEntry {
		var out []models.QueueEntry
		for _, p := range players {
			if seen[p.ID] || m.indexOf(p.ID) >= 0 || m.roster.Engaged(p.ID) {
				continue
			}
			seen[p.ID] = true
			out = append(out, models.QueueEntry{Player: p, JoinedAt: now})
		}
		return out
	}

	head := admit(front)
	tail := admit(back)
	if len(head)+len(tail) == 0 {
		return m.snapshotLocked()
	}

	m.entries = append(append(head, m.entries...), tail...)
	m.version++

	log.Info().
		Int("front", len(head)).
		Int("back", len(tail)).
		Int("queue_size", len(m.entries)).
		Msg("players requeued")

	m.tryFormCohort()
	m.emitUpdated("requeue", "")
	return m.snapshotLocked()
}

// Snapshot returns a consistent copy of the queue.
func (m *Manager) Snapshot() models.QueueSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Position returns the zero-based queue position of a player.
func (m *Manager) Position(playerID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(playerID)
	return i, i >= 0
}

// tryFormCohort hands the oldest CohortSize entries to the cohort handler
// for as long as enough players are waiting. Caller holds mu.
func (m *Manager) tryFormCohort() {
	n := m.config.CohortSize
	for m.onCohort != nil && n > 0 && len(m.entries) >= n {
		cohort := slices.Clone(m.entries[:n])
		proposalID, err := m.onCohort(cohort)
		if err != nil {
			log.Error().Err(err).Int("queue_size", len(m.entries)).Msg("cohort handoff failed")
			return
		}
		m.entries = slices.Clone(m.entries[n:])
		m.version++

		players := make([]models.Player, len(cohort))
		ids := make([]string, len(cohort))
		for i, e := range cohort {
			players[i] = e.Player
			ids[i] = e.Player.ID
		}
		avg := models.AverageRating(players)
		m.lastCohortRating = &avg

		log.Info().
			Str("proposal_id", proposalID.String()).
			Float64("average_rating", avg).
			Int("queue_size", len(m.entries)).
			Msg("cohort formed")

		events.Emit(m.events, events.EventTypeCohortFormed, events.QueueAggregateID, m.clock.Now(), events.CohortFormedPayload{
			ProposalID:    proposalID.String(),
			PlayerIDs:     ids,
			AverageRating: avg,
			FormedAt:      m.clock.Now(),
		})
	}
}

func (m *Manager) indexOf(playerID string) int {
	return slices.IndexFunc(m.entries, func(e models.QueueEntry) bool {
		return e.Player.ID == playerID
	})
}

func (m *Manager) recordJoin(at time.Time) {
	m.joinTimes = append(m.joinTimes, at)
	if over := len(m.joinTimes) - m.config.WaitSamples; over > 0 {
		m.joinTimes = slices.Clone(m.joinTimes[over:])
	}
}

// estimatedWait projects how long until the queue fills from the recent
// join rate. Zero means there is not enough history.
func (m *Manager) estimatedWait(needed int) time.Duration {
	if needed <= 0 || len(m.joinTimes) < 2 {
		return 0
	}
	span := m.joinTimes[len(m.joinTimes)-1].Sub(m.joinTimes[0])
	if span <= 0 {
		return 0
	}
	perJoin := span / time.Duration(len(m.joinTimes)-1)
	return perJoin * time.Duration(needed)
}

func (m *Manager) snapshotLocked() models.QueueSnapshot {
	needed := m.config.CohortSize - len(m.entries)
	if needed < 0 {
		needed = 0
	}
	var rating *float64
	if m.lastCohortRating != nil {
		r := *m.lastCohortRating
		rating = &r
	}
	return models.QueueSnapshot{
		Size:             len(m.entries),
		Capacity:         m.config.Capacity,
		CohortSize:       m.config.CohortSize,
		PlayersNeeded:    needed,
		IsFull:           len(m.entries) >= m.config.Capacity,
		Entries:          slices.Clone(m.entries),
		LastCohortRating: rating,
		EstimatedWaitMs:  m.estimatedWait(needed).Milliseconds(),
		Version:          m.version,
		TakenAt:          m.clock.Now(),
	}
}

func (m *Manager) emitUpdated(reason, playerID string) {
	needed := m.config.CohortSize - len(m.entries)
	if needed < 0 {
		needed = 0
	}
	events.Emit(m.events, events.EventTypeQueueUpdated, events.QueueAggregateID, m.clock.Now(), events.QueueUpdatedPayload{
		Size:          len(m.entries),
		PlayersNeeded: needed,
		Reason:        reason,
		PlayerID:      playerID,
	})
}
