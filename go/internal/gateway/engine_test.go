package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/matchroom"
	"github.com/mcdev12/matchroom/go/internal/models"
	"github.com/mcdev12/matchroom/go/internal/proposal"
	"github.com/mcdev12/matchroom/go/internal/queue"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var testMaps = []string{"ascent", "bind", "haven"}

type harness struct {
	clock  *clockwork.FakeClock
	engine *Engine
	events *events.Recorder
	cm     *ConnectionManager
	server *httptest.Server
}

// newHarness runs a four-player engine behind a test HTTP server with the
// event relay feeding both a recorder and the websocket pusher.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fc := clockwork.NewFakeClock()
	rec := &events.Recorder{}
	cm := NewConnectionManager(DefaultConnectionConfig())

	var pusher *Pusher
	relay := events.NewRelay(events.DefaultRelayConfig(),
		events.Sink{Name: "recorder", Publisher: rec},
		events.Sink{Name: "push", Publisher: events.PublisherFunc(func(ctx context.Context, ev events.Event) error {
			return pusher.Publish(ctx, ev)
		})},
	)

	qcfg := queue.DefaultConfig()
	qcfg.CohortSize, qcfg.Capacity = 4, 8
	mcfg := matchroom.DefaultConfig()
	mcfg.MapPool = testMaps

	engine := NewEngine(Options{
		Queue:    qcfg,
		Proposal: proposal.DefaultConfig(),
		Match:    mcfg,
		Policy:   proposal.RequeuePolicy{},
		Clock:    fc,
		Events:   relay,
		Rand:     rand.New(rand.NewSource(3)),
	})
	t.Cleanup(engine.Close)
	pusher = NewPusher(cm, engine)

	go relay.Run(ctx)
	go cm.Start(ctx)

	path, rpc := NewHandler(NewService(engine))
	srv := httptest.NewServer(NewRouter(engine, cm, pusher).Handler(path, rpc))
	t.Cleanup(srv.Close)

	return &harness{clock: fc, engine: engine, events: rec, cm: cm, server: srv}
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%02d", i)
	}
	return out
}

// proposalFor fills the queue with ids and returns the proposal they formed.
func (h *harness) proposalFor(t *testing.T, ids []string) uuid.UUID {
	t.Helper()
	for _, id := range ids {
		_, err := h.engine.JoinQueue(models.Player{ID: id, Rating: 1000})
		require.NoError(t, err)
	}
	loc, err := h.engine.Locate(ids[0])
	require.NoError(t, err)
	require.Equal(t, LocationProposal, loc.Status)
	return *loc.ID
}

// matchFor runs ids through acceptance and returns the created match.
func (h *harness) matchFor(t *testing.T, ids []string) models.Match {
	t.Helper()
	pid := h.proposalFor(t, ids)
	var p models.Proposal
	for _, id := range ids {
		var err error
		p, err = h.engine.AcceptProposal(pid, id)
		require.NoError(t, err)
	}
	require.Equal(t, models.ProposalStatusReady, p.Status)
	require.NotNil(t, p.MatchID)
	m, err := h.engine.Match(*p.MatchID)
	require.NoError(t, err)
	return m
}

func TestEngineRejectsAnonymousCommands(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	_, err := h.engine.JoinQueue(models.Player{ID: "  "})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.LeaveQueue("")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.AcceptProposal(id, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.DeclineProposal(id, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.SetCaptainMethod(id, "", models.CaptainMethodRandom)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.VoteForCaptain(id, "", "p00")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.PickPlayer(id, "", "p00")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.BanMap(id, "", "bind")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.ReportResult(id, "", models.WinnerDraw)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	_, err = h.engine.Locate("")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	assert.Zero(t, h.engine.QueueSnapshot().Size)
}

func TestEngineLocate(t *testing.T) {
	h := newHarness(t)
	ids := names(4)

	loc, err := h.engine.Locate("p00")
	require.NoError(t, err)
	assert.Equal(t, LocationIdle, loc.Status)
	assert.Nil(t, loc.ID)

	_, err = h.engine.JoinQueue(models.Player{ID: "p00"})
	require.NoError(t, err)
	_, err = h.engine.JoinQueue(models.Player{ID: "p01"})
	require.NoError(t, err)
	loc, err = h.engine.Locate("p01")
	require.NoError(t, err)
	assert.Equal(t, LocationQueued, loc.Status)
	assert.Equal(t, 2, loc.Position)

	_, err = h.engine.LeaveQueue("p00")
	require.NoError(t, err)
	_, err = h.engine.LeaveQueue("p01")
	require.NoError(t, err)

	m := h.matchFor(t, ids)
	for _, id := range ids {
		loc, err := h.engine.Locate(id)
		require.NoError(t, err)
		assert.Equal(t, LocationMatch, loc.Status)
		assert.Equal(t, m.ID, *loc.ID)
	}
}

func TestEngineDefaultsDisplayName(t *testing.T) {
	h := newHarness(t)
	snap, err := h.engine.JoinQueue(models.Player{ID: "p00"})
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "p00", snap.Entries[0].Player.DisplayName)
}

func TestEngineFullMatch(t *testing.T) {
	h := newHarness(t)
	ids := names(4)
	m := h.matchFor(t, ids)
	assert.Equal(t, models.MatchStatusCreated, m.Status)
	assert.Len(t, h.engine.ActiveMatches(), 1)

	m, err := h.engine.SetCaptainMethod(m.ID, "p02", models.CaptainMethodVoting)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusCaptainVoting, m.Status)

	for i, id := range ids {
		m, err = h.engine.VoteForCaptain(m.ID, id, ids[i%2])
		require.NoError(t, err)
	}
	require.Equal(t, models.MatchStatusTeamDraft, m.Status)
	assert.Equal(t, "p00", m.Captain1)
	assert.Equal(t, "p01", m.Captain2)

	_, err = h.engine.PickPlayer(m.ID, "p01", "p02")
	assert.ErrorIs(t, err, apperrors.ErrNotYourTurn)
	m, err = h.engine.PickPlayer(m.ID, "p00", "p02")
	require.NoError(t, err)
	m, err = h.engine.PickPlayer(m.ID, "p01", "p03")
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusMapBan, m.Status)
	assert.Equal(t, []string{"p00", "p02"}, m.Team1)
	assert.Equal(t, []string{"p01", "p03"}, m.Team2)

	m, err = h.engine.BanMap(m.ID, "p00", "ascent")
	require.NoError(t, err)
	_, err = h.engine.BanMap(m.ID, "p01", "ascent")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyBanned)
	m, err = h.engine.BanMap(m.ID, "p01", "haven")
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusOngoing, m.Status)
	assert.Equal(t, "bind", m.SelectedMap)

	m, err = h.engine.ReportResult(m.ID, "p00", models.WinnerTeam2)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusReporting, m.Status)
	m, err = h.engine.ReportResult(m.ID, "p01", models.WinnerTeam2)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, m.Status)
	require.NotNil(t, m.Result)
	require.NotNil(t, m.Result.Winner)
	assert.Equal(t, models.WinnerTeam2, *m.Result.Winner)

	assert.Empty(t, h.engine.ActiveMatches())
	got, err := h.engine.Match(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, got.Status)

	loc, err := h.engine.Locate("p00")
	require.NoError(t, err)
	assert.Equal(t, LocationIdle, loc.Status)

	require.Eventually(t, func() bool {
		return len(h.events.OfType(events.EventTypeMatchFinished)) == 1
	}, timeout, tick)
}
