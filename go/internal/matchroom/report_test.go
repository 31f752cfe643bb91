package matchroom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
)

func (f *fixture) toOngoing(t *testing.T) models.Match {
	t.Helper()
	m := f.draftAll(t, f.toDraft(t, 10))
	var err error
	for m.Status == models.MatchStatusMapBan {
		captain := m.Captain1
		if m.BanTurn == models.TeamSide2 {
			captain = m.Captain2
		}
		m, err = f.reg.BanMap(m.ID, captain, m.RemainingMaps()[0])
		require.NoError(t, err)
	}
	require.Equal(t, models.MatchStatusOngoing, m.Status)
	return m
}

func TestAgreeingReportsComplete(t *testing.T) {
	f := newFixture(t)
	m := f.toOngoing(t)

	_, err := f.reg.ReportResult(m.ID, m.Team1[1], models.WinnerTeam1)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	m, err = f.reg.ReportResult(m.ID, m.Captain1, models.WinnerTeam1)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusReporting, m.Status)
	require.NotNil(t, m.ExpireTime)

	_, err = f.reg.ReportResult(m.ID, m.Captain1, models.WinnerTeam2)
	require.ErrorIs(t, err, apperrors.ErrAlreadyVoted)

	m, err = f.reg.ReportResult(m.ID, m.Captain2, models.WinnerTeam1)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, m.Status)
	require.NotNil(t, m.Result)
	require.NotNil(t, m.Result.Winner)
	assert.Equal(t, models.WinnerTeam1, *m.Result.Winner)
	assert.True(t, m.Result.Unanimous)

	// archived: no longer active, players free, snapshot still readable
	assert.Empty(t, f.reg.ListActive())
	assert.False(t, f.roster.Engaged(m.Captain1))
	got, err := f.reg.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, got.Status)

	_, err = f.reg.ReportResult(m.ID, m.Captain2, models.WinnerTeam1)
	require.ErrorIs(t, err, apperrors.ErrInvalidStateForOperation)

	finished := f.events.OfType(events.EventTypeMatchFinished)
	require.Len(t, finished, 1)
	var p events.MatchFinishedPayload
	require.NoError(t, finished[0].Decode(&p))
	assert.Equal(t, "completed", p.Status)
	require.NotNil(t, p.Winner)
	assert.Equal(t, "team1", *p.Winner)
	assert.Len(t, p.Players, 10)
	assert.Equal(t, m.SelectedMap, p.SelectedMap)
}

func TestConflictingReportsDispute(t *testing.T) {
	f := newFixture(t)
	m := f.toOngoing(t)

	_, err := f.reg.ReportResult(m.ID, m.Captain2, models.WinnerTeam2)
	require.NoError(t, err)
	m, err = f.reg.ReportResult(m.ID, m.Captain1, models.WinnerTeam1)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusDisputed, m.Status)
	require.NotNil(t, m.Result)
	assert.Nil(t, m.Result.Winner)
	assert.Equal(t, sorted(m.Captain1, m.Captain2), m.Result.ReportedBy)
	assert.False(t, m.Result.Unanimous)
}

func TestSingleReportStandsAfterWindow(t *testing.T) {
	f := newFixture(t)
	m := f.toOngoing(t)

	_, err := f.reg.ReportResult(m.ID, m.Captain2, models.WinnerDraw)
	require.NoError(t, err)

	f.clock.Advance(DefaultConfig().ReportWindow)
	require.Eventually(t, func() bool { return len(f.reg.ListActive()) == 0 }, timeout, tick)

	got, err := f.reg.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, got.Status)
	require.NotNil(t, got.Result.Winner)
	assert.Equal(t, models.WinnerDraw, *got.Result.Winner)
	assert.False(t, got.Result.Unanimous)
}

func TestInvalidResult(t *testing.T) {
	f := newFixture(t)
	m := f.toOngoing(t)

	_, err := f.reg.ReportResult(m.ID, m.Captain1, models.Winner("team3"))
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestFinishedRetentionIsBounded(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.FinishedRetention = 1 })
	first := f.toOngoing(t)
	for _, c := range []string{first.Captain1, first.Captain2} {
		_, err := f.reg.ReportResult(first.ID, c, models.WinnerTeam2)
		require.NoError(t, err)
	}
	second := f.toOngoing(t)
	for _, c := range []string{second.Captain1, second.Captain2} {
		_, err := f.reg.ReportResult(second.ID, c, models.WinnerTeam2)
		require.NoError(t, err)
	}

	_, err := f.reg.Get(first.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.reg.Get(second.ID)
	require.NoError(t, err)
}

func sorted(a, b string) []string {
	if a > b {
		return []string{b, a}
	}
	return []string{a, b}
}
