package matchroom

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/models"
)

func (f *fixture) toDraft(t *testing.T, n int) models.Match {
	t.Helper()
	m := f.create(t, n)
	m, err := f.reg.SetCaptainMethod(m.ID, m.Players[0].UserID, models.CaptainMethodRandom)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusTeamDraft, m.Status)
	return m
}

func (f *fixture) draftAll(t *testing.T, m models.Match) models.Match {
	t.Helper()
	var err error
	for m.Status == models.MatchStatusTeamDraft {
		captain := m.Captain1
		if m.DraftTurn == models.TeamSide2 {
			captain = m.Captain2
		}
		m, err = f.reg.PickPlayer(m.ID, captain, m.Undrafted[len(m.Undrafted)-1])
		require.NoError(t, err)
	}
	return m
}

func TestDraftAlternatesAndStaysBalanced(t *testing.T) {
	f := newFixture(t)
	m := f.toDraft(t, 10)

	expected := models.TeamSide1
	picks := 0
	for m.Status == models.MatchStatusTeamDraft {
		require.Equal(t, expected, m.DraftTurn)
		turnCaptain, otherCaptain := m.Captain1, m.Captain2
		if expected == models.TeamSide2 {
			turnCaptain, otherCaptain = otherCaptain, turnCaptain
		}
		target := m.Undrafted[0]

		snap, err := f.reg.PickPlayer(m.ID, otherCaptain, target)
		require.ErrorIs(t, err, apperrors.ErrNotYourTurn)
		assert.Equal(t, m.Version, snap.Version)

		m, err = f.reg.PickPlayer(m.ID, turnCaptain, target)
		require.NoError(t, err)
		picks++

		diff := len(m.Team1) - len(m.Team2)
		assert.LessOrEqual(t, diff, 1)
		assert.GreaterOrEqual(t, diff, -1)
		assert.Empty(t, intersect(m.Team1, m.Team2))
		expected = expected.Other()
	}

	assert.Equal(t, 8, picks)
	assert.Equal(t, models.MatchStatusMapBan, m.Status)
	assert.Len(t, m.Team1, 5)
	assert.Len(t, m.Team2, 5)
	assert.Empty(t, m.Undrafted)
	for _, p := range m.Players {
		assert.NotEqual(t, models.TeamSideNone, p.Team, "player %s has no team", p.UserID)
	}
}

func TestPickRejections(t *testing.T) {
	f := newFixture(t)
	m := f.toDraft(t, 10)

	outsider := m.Undrafted[0]
	_, err := f.reg.PickPlayer(m.ID, outsider, m.Undrafted[1])
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.reg.PickPlayer(m.ID, m.Captain1, m.Captain2)
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = f.reg.PickPlayer(m.ID, m.Captain1, "ghost")
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = f.reg.BanMap(m.ID, m.Captain1, "bind")
	require.ErrorIs(t, err, apperrors.ErrInvalidStateForOperation)
}

func TestPickDeadlineDefaultsToFirstUndrafted(t *testing.T) {
	f := newFixture(t)
	m := f.toDraft(t, 10)
	first, second := m.Undrafted[0], m.Undrafted[1]

	f.clock.Advance(DefaultConfig().PickWindow)
	m = f.eventually(t, m.ID, func(m models.Match) bool { return len(m.Team1) == 2 })
	assert.Equal(t, first, m.Team1[1])
	assert.Equal(t, models.TeamSide2, m.DraftTurn)

	f.clock.Advance(DefaultConfig().PickWindow)
	m = f.eventually(t, m.ID, func(m models.Match) bool { return len(m.Team2) == 2 })
	assert.Equal(t, second, m.Team2[1])
}

func TestEarlyPickCancelsStaleDeadline(t *testing.T) {
	f := newFixture(t)
	m := f.toDraft(t, 10)
	window := DefaultConfig().PickWindow

	f.clock.Advance(window - time.Second)
	m, err := f.reg.PickPlayer(m.ID, m.Captain1, m.Undrafted[3])
	require.NoError(t, err)
	require.Equal(t, f.clock.Now().Add(window), *m.ExpireTime)

	// past the original deadline but not the rearmed one
	f.clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	got, err := f.reg.Get(m.ID)
	require.NoError(t, err)
	assert.Len(t, got.Undrafted, 7)
	assert.Equal(t, models.TeamSide2, got.DraftTurn)
}

func TestTwoPlayerMatchSkipsDraft(t *testing.T) {
	f := newFixture(t)
	m := f.toDraft2(t)
	assert.Equal(t, models.MatchStatusMapBan, m.Status)
	assert.Len(t, m.Team1, 1)
	assert.Len(t, m.Team2, 1)
}

func (f *fixture) toDraft2(t *testing.T) models.Match {
	t.Helper()
	m := f.create(t, 2)
	m, err := f.reg.SetCaptainMethod(m.ID, m.Players[0].UserID, models.CaptainMethodRandom)
	require.NoError(t, err)
	return m
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	var out []string
	for _, y := range b {
		if set[y] {
			out = append(out, y)
		}
	}
	return out
}

func TestConcurrentCaptainsNeverDoubleDraft(t *testing.T) {
	f := newFixture(t)
	m := f.toDraft(t, 10)

	var wg sync.WaitGroup
	for _, captain := range []string{m.Captain1, m.Captain2} {
		wg.Add(1)
		go func(captain string) {
			defer wg.Done()
			for {
				snap, err := f.reg.Get(m.ID)
				if err != nil || snap.Status != models.MatchStatusTeamDraft {
					return
				}
				_, _ = f.reg.PickPlayer(m.ID, captain, snap.Undrafted[len(snap.Undrafted)-1])
			}
		}(captain)
	}
	wg.Wait()

	got, err := f.reg.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusMapBan, got.Status)
	assert.Len(t, got.Team1, 5)
	assert.Len(t, got.Team2, 5)
	assert.Empty(t, intersect(got.Team1, got.Team2))
}
