package matchroom

import (
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// PickPlayer drafts an undrafted player onto the picking captain's team.
// Captains alternate, team1 first.
func (r *Registry) PickPlayer(matchID uuid.UUID, captainID, playerID string) (models.Match, error) {
	return r.mutate(matchID, func(rm *room) error {
		m := &rm.m
		if err := requireStatus(m, "pick a player", models.MatchStatusTeamDraft); err != nil {
			return err
		}
		side, err := r.requireCaptain(m, captainID)
		if err != nil {
			return err
		}
		if side != m.DraftTurn {
			return apperrors.New(apperrors.KindNotYourTurn, "it is %s's turn to pick", m.DraftTurn)
		}
		if !slices.Contains(m.Undrafted, playerID) {
			return apperrors.New(apperrors.KindInvalidArgument, "player %s is not available to draft", playerID)
		}
		r.emitAction(rm, events.EventTypeMatchActionApplied, "pick_player", captainID, playerID)
		return r.applyPick(rm, side, captainID, playerID)
	})
}

func (r *Registry) applyPick(rm *room, side models.TeamSide, captainID, playerID string) error {
	m := &rm.m
	i := slices.Index(m.Undrafted, playerID)
	m.Undrafted = slices.Delete(m.Undrafted, i, i+1)
	if side == models.TeamSide1 {
		m.Team1 = append(m.Team1, playerID)
	} else {
		m.Team2 = append(m.Team2, playerID)
	}
	if pi := r.playerIndex(m, playerID); pi >= 0 {
		m.Players[pi].Team = side
	}
	m.DraftTurn = side.Other()

	log.Info().
		Str("match_id", m.ID.String()).
		Str("captain_id", captainID).
		Str("player_id", playerID).
		Str("team", string(side)).
		Int("remaining", len(m.Undrafted)).
		Msg("player drafted")

	if len(m.Undrafted) == 0 {
		m.DraftTurn = models.TeamSideNone
		return r.startBans(rm)
	}
	r.armDeadline(rm, r.config.PickWindow)
	return nil
}
