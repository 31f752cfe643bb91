package matchroom

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/clock"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
	"github.com/mcdev12/matchroom/go/internal/roster"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	reg    *Registry
	clock  *clockwork.FakeClock
	roster *roster.Index
	events *events.Recorder
	sched  *clock.Scheduler
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	fc := clockwork.NewFakeClock()
	sched := clock.NewScheduler(fc)
	t.Cleanup(sched.Stop)
	ix := roster.NewIndex()
	rec := &events.Recorder{}
	return &fixture{
		reg:    NewRegistry(cfg, sched, ix, rec, rand.New(rand.NewSource(7))),
		clock:  fc,
		roster: ix,
		events: rec,
		sched:  sched,
	}
}

func cohort(n int) []models.Player {
	out := make([]models.Player, n)
	for i := range out {
		out[i] = models.Player{ID: fmt.Sprintf("p%02d", i), DisplayName: fmt.Sprintf("Player %d", i), Rating: 1500}
	}
	return out
}

func (f *fixture) create(t *testing.T, n int) models.Match {
	t.Helper()
	m, err := f.reg.Create(uuid.New(), cohort(n))
	require.NoError(t, err)
	return m
}

func (f *fixture) eventually(t *testing.T, id uuid.UUID, cond func(models.Match) bool) models.Match {
	t.Helper()
	var last models.Match
	require.Eventually(t, func() bool {
		m, err := f.reg.Get(id)
		if err != nil {
			return false
		}
		last = m
		return cond(m)
	}, timeout, tick)
	return last
}

func TestCreateMatch(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 10)

	assert.Equal(t, models.MatchStatusCreated, m.Status)
	require.Len(t, m.Players, 10)
	assert.Equal(t, "p00", m.Players[0].UserID)
	assert.True(t, m.Players[0].Accepted)
	assert.Empty(t, m.Captain1)
	assert.Empty(t, m.SelectedMap)
	require.NotNil(t, m.ExpireTime)
	assert.Equal(t, f.clock.Now().Add(DefaultConfig().MethodWindow), *m.ExpireTime)

	loc, ok := f.roster.Lookup("p04")
	require.True(t, ok)
	assert.Equal(t, roster.InMatch(m.ID), loc)

	got, ok := f.reg.ForPlayer("p04")
	require.True(t, ok)
	assert.Equal(t, m.ID, got.ID)
	assert.Len(t, f.reg.ListActive(), 1)
	assert.Len(t, f.events.OfType(events.EventTypeMatchCreated), 1)
}

func TestCreateRejectsTinyCohort(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.Create(uuid.New(), cohort(1))
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestGetUnknownMatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.Get(uuid.New())
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.reg.PickPlayer(uuid.New(), "p00", "p01")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRandomCaptainsStartDraft(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 10)

	m, err := f.reg.SetCaptainMethod(m.ID, "p03", models.CaptainMethodRandom)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusTeamDraft, m.Status)
	assert.Equal(t, models.CaptainMethodRandom, m.CaptainSelectionMethod)
	require.NotEmpty(t, m.Captain1)
	require.NotEmpty(t, m.Captain2)
	assert.NotEqual(t, m.Captain1, m.Captain2)
	assert.NotContains(t, m.Undrafted, m.Captain1)
	assert.NotContains(t, m.Undrafted, m.Captain2)
	assert.Len(t, m.Undrafted, 8)
	assert.Equal(t, []string{m.Captain1}, m.Team1)
	assert.Equal(t, []string{m.Captain2}, m.Team2)
	assert.Equal(t, models.TeamSide1, m.DraftTurn)

	c1, _ := m.Player(m.Captain1)
	assert.Equal(t, models.PlayerRoleCaptain, c1.Role)
	assert.Equal(t, models.TeamSide1, c1.Team)

	var phases []string
	for _, e := range f.events.OfType(events.EventTypeMatchPhaseChanged) {
		var p events.MatchPhaseChangedPayload
		require.NoError(t, e.Decode(&p))
		phases = append(phases, p.To)
	}
	assert.Equal(t, []string{"captain_selection", "team_draft"}, phases)
}

func TestSetCaptainMethodRejections(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 10)

	_, err := f.reg.SetCaptainMethod(m.ID, "stranger", models.CaptainMethodRandom)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	snap, err := f.reg.SetCaptainMethod(m.ID, "p00", models.CaptainMethod("coin"))
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.Equal(t, models.MatchStatusCreated, snap.Status)
	assert.Equal(t, m.Version, snap.Version, "rejections do not bump the version")

	_, err = f.reg.SetCaptainMethod(m.ID, "p00", models.CaptainMethodVoting)
	require.NoError(t, err)

	snap, err = f.reg.SetCaptainMethod(m.ID, "p01", models.CaptainMethodRandom)
	require.ErrorIs(t, err, apperrors.ErrInvalidStateForOperation)
	assert.Equal(t, models.MatchStatusCaptainVoting, snap.Status)
}

func TestMethodWindowDefaultsToRandom(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 10)

	f.clock.Advance(DefaultConfig().MethodWindow)
	got := f.eventually(t, m.ID, func(m models.Match) bool { return m.Status == models.MatchStatusTeamDraft })
	assert.Equal(t, models.CaptainMethodRandom, got.CaptainSelectionMethod)
	assert.Len(t, f.events.OfType(events.EventTypeMatchAutoResolved), 1)
}

func TestValidateStatusTransition(t *testing.T) {
	require.NoError(t, validateStatusTransition(models.MatchStatusCaptainSelection, models.MatchStatusTeamDraft))
	require.ErrorIs(t, validateStatusTransition(models.MatchStatusCreated, models.MatchStatusTeamDraft), apperrors.ErrInvalidStateForOperation)
	require.ErrorIs(t, validateStatusTransition(models.MatchStatusCompleted, models.MatchStatusDisputed), apperrors.ErrInvalidStateForOperation)
	require.ErrorIs(t, validateStatusTransition(models.MatchStatus("bogus"), models.MatchStatusCreated), apperrors.ErrInvalidStateForOperation)
}
