package matchroom

import (
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// SetCaptainMethod chooses how captains are picked. Any player in the match
// may choose while the match is still in created.
func (r *Registry) SetCaptainMethod(matchID uuid.UUID, playerID string, method models.CaptainMethod) (models.Match, error) {
	return r.mutate(matchID, func(rm *room) error {
		if err := requireStatus(&rm.m, "set captain method", models.MatchStatusCreated); err != nil {
			return err
		}
		if err := r.requireParticipant(&rm.m, playerID); err != nil {
			return err
		}
		if !method.Valid() {
			return apperrors.New(apperrors.KindInvalidArgument, "unknown captain selection method %q", method)
		}
		r.emitAction(rm, events.EventTypeMatchActionApplied, "set_captain_method", playerID, string(method))
		return r.applyMethod(rm, method)
	})
}

// VoteForCaptain records a player's single captain vote.
func (r *Registry) VoteForCaptain(matchID uuid.UUID, voterID, candidateID string) (models.Match, error) {
	return r.mutate(matchID, func(rm *room) error {
		m := &rm.m
		if err := requireStatus(m, "vote for captain", models.MatchStatusCaptainVoting); err != nil {
			return err
		}
		if err := r.requireParticipant(m, voterID); err != nil {
			return err
		}
		if _, voted := m.CaptainVotes[voterID]; voted {
			return apperrors.New(apperrors.KindAlreadyVoted, "player %s already voted", voterID)
		}
		if !slices.Contains(m.CaptainCandidates, candidateID) {
			return apperrors.New(apperrors.KindInvalidArgument, "player %s is not a captain candidate", candidateID)
		}

		m.CaptainVotes[voterID] = candidateID
		log.Info().
			Str("match_id", m.ID.String()).
			Str("voter_id", voterID).
			Str("candidate_id", candidateID).
			Int("votes", len(m.CaptainVotes)).
			Msg("captain vote cast")
		r.emitAction(rm, events.EventTypeMatchActionApplied, "vote_for_captain", voterID, candidateID)

		if len(m.CaptainVotes) == len(m.Players) {
			return r.finalizeVotes(rm)
		}
		return nil
	})
}

// applyMethod enters captain_selection and immediately resolves it.
func (r *Registry) applyMethod(rm *room, method models.CaptainMethod) error {
	m := &rm.m
	if err := r.enter(rm, models.MatchStatusCaptainSelection, 0); err != nil {
		return err
	}
	m.CaptainSelectionMethod = method

	switch method {
	case models.CaptainMethodRandom:
		i, j := r.pickTwo(len(m.Players))
		return r.startDraft(rm, m.Players[i].UserID, m.Players[j].UserID)
	default:
		m.CaptainCandidates = r.candidates(m)
		return r.enter(rm, models.MatchStatusCaptainVoting, r.config.VoteWindow)
	}
}

// candidates returns the first CaptainCandidates players in join order, or
// everyone when unset.
func (r *Registry) candidates(m *models.Match) []string {
	n := r.config.CaptainCandidates
	if n <= 0 || n > len(m.Players) {
		n = len(m.Players)
	}
	if n < 2 {
		n = 2
	}
	out := make([]string, n)
	for i := range out {
		out[i] = m.Players[i].UserID
	}
	return out
}

// finalizeVotes makes the two most-voted candidates captains. Equal counts
// go to the candidate who joined the queue earlier.
func (r *Registry) finalizeVotes(rm *room) error {
	c1, c2 := tally(rm.m.CaptainCandidates, rm.m.CaptainVotes)
	return r.startDraft(rm, c1, c2)
}

func tally(candidates []string, votes map[string]string) (string, string) {
	counts := make(map[string]int, len(candidates))
	for _, c := range votes {
		counts[c]++
	}
	ranked := slices.Clone(candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	return ranked[0], ranked[1]
}

// startDraft seats the captains and opens the draft. The undrafted pool is
// every other player in join order.
func (r *Registry) startDraft(rm *room, captain1, captain2 string) error {
	m := &rm.m
	m.Captain1, m.Captain2 = captain1, captain2
	m.Team1 = []string{captain1}
	m.Team2 = []string{captain2}
	m.Undrafted = m.Undrafted[:0]
	for i := range m.Players {
		p := &m.Players[i]
		switch p.UserID {
		case captain1:
			p.Team, p.Role = models.TeamSide1, models.PlayerRoleCaptain
		case captain2:
			p.Team, p.Role = models.TeamSide2, models.PlayerRoleCaptain
		default:
			p.Team, p.Role = models.TeamSideNone, models.PlayerRolePlayer
			m.Undrafted = append(m.Undrafted, p.UserID)
		}
	}
	m.DraftTurn = models.TeamSide1

	log.Info().
		Str("match_id", m.ID.String()).
		Str("captain1", captain1).
		Str("captain2", captain2).
		Str("method", string(m.CaptainSelectionMethod)).
		Msg("captains selected")

	if err := r.enter(rm, models.MatchStatusTeamDraft, r.config.PickWindow); err != nil {
		return err
	}
	if len(m.Undrafted) == 0 {
		return r.startBans(rm)
	}
	return nil
}
