package matchroom

import (
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// BanMap removes a map from the pool. Captains alternate, team1 first, until
// one map is left.
func (r *Registry) BanMap(matchID uuid.UUID, captainID, mapID string) (models.Match, error) {
	return r.mutate(matchID, func(rm *room) error {
		m := &rm.m
		if err := requireStatus(m, "ban a map", models.MatchStatusMapBan); err != nil {
			return err
		}
		side, err := r.requireCaptain(m, captainID)
		if err != nil {
			return err
		}
		if !slices.Contains(m.MapPool, mapID) {
			return apperrors.New(apperrors.KindInvalidArgument, "map %s is not in the pool", mapID)
		}
		if slices.Contains(m.BannedMaps, mapID) {
			return apperrors.New(apperrors.KindAlreadyBanned, "map %s is already banned", mapID)
		}
		if side != m.BanTurn {
			return apperrors.New(apperrors.KindNotYourTurn, "it is %s's turn to ban", m.BanTurn)
		}
		r.emitAction(rm, events.EventTypeMatchActionApplied, "ban_map", captainID, mapID)
		return r.applyBan(rm, side, captainID, mapID)
	})
}

func (r *Registry) startBans(rm *room) error {
	rm.m.BanTurn = models.TeamSide1
	if err := r.enter(rm, models.MatchStatusMapBan, r.config.BanWindow); err != nil {
		return err
	}
	if len(rm.m.RemainingMaps()) <= 1 {
		return r.selectMap(rm)
	}
	return nil
}

func (r *Registry) applyBan(rm *room, side models.TeamSide, captainID, mapID string) error {
	m := &rm.m
	m.BannedMaps = append(m.BannedMaps, mapID)
	m.BanTurn = side.Other()

	log.Info().
		Str("match_id", m.ID.String()).
		Str("captain_id", captainID).
		Str("map_id", mapID).
		Int("banned", len(m.BannedMaps)).
		Msg("map banned")

	if len(m.RemainingMaps()) == 1 {
		return r.selectMap(rm)
	}
	r.armDeadline(rm, r.config.BanWindow)
	return nil
}

func (r *Registry) selectMap(rm *room) error {
	m := &rm.m
	remaining := m.RemainingMaps()
	if len(remaining) > 0 {
		m.SelectedMap = remaining[0]
	}
	m.BanTurn = models.TeamSideNone
	now := r.sched.Now()
	m.StartTime = &now

	log.Info().
		Str("match_id", m.ID.String()).
		Str("map_id", m.SelectedMap).
		Msg("map selected")

	return r.enter(rm, models.MatchStatusOngoing, 0)
}
