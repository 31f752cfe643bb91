package matchroom

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/clock"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// armDeadline replaces the current phase deadline. Caller holds rm.mu.
func (r *Registry) armDeadline(rm *room, window time.Duration) {
	rm.deadline.Cancel()
	rm.deadline = nil
	rm.m.ExpireTime = nil
	if window <= 0 || rm.m.Status.Terminal() {
		return
	}

	id := rm.m.ID
	name := "match " + id.String() + " " + string(rm.m.Status)
	tok := r.sched.After(name, window, func(tok *clock.Token) {
		r.expire(id, tok)
	})
	at := tok.Deadline()
	rm.deadline = tok
	rm.m.ExpireTime = &at
}

// expire runs the auto-resolution policy for whatever phase tok was armed
// in. A token that was replaced or cancelled in the meantime is ignored.
func (r *Registry) expire(id uuid.UUID, tok *clock.Token) {
	_, err := r.mutate(id, func(rm *room) error {
		if rm.deadline != tok {
			return errStale
		}
		rm.deadline = nil
		return r.autoResolve(rm)
	})
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) || apperrors.IsKind(err, apperrors.KindInvalidStateForOperation) {
			log.Debug().Err(err).Str("match_id", id.String()).Msg("deadline fired for closed match")
			return
		}
		log.Error().Err(err).Str("match_id", id.String()).Msg("auto-resolution failed")
	}
}

// autoResolve applies the deterministic default for the current phase.
func (r *Registry) autoResolve(rm *room) error {
	m := &rm.m
	logger := log.Info().Str("match_id", m.ID.String()).Str("phase", string(m.Status))

	switch m.Status {
	case models.MatchStatusCreated:
		logger.Msg("captain method window elapsed, defaulting to random")
		r.emitAction(rm, events.EventTypeMatchAutoResolved, "set_captain_method", "", string(models.CaptainMethodRandom))
		return r.applyMethod(rm, models.CaptainMethodRandom)

	case models.MatchStatusCaptainVoting:
		logger.Int("votes", len(m.CaptainVotes)).Msg("captain vote window elapsed, tallying")
		r.emitAction(rm, events.EventTypeMatchAutoResolved, "tally_votes", "", "")
		return r.finalizeVotes(rm)

	case models.MatchStatusTeamDraft:
		if len(m.Undrafted) == 0 {
			return errStale
		}
		target := m.Undrafted[0]
		captain := r.captainFor(m, m.DraftTurn)
		logger.Str("captain_id", captain).Str("player_id", target).Msg("pick window elapsed, auto-picking")
		r.emitAction(rm, events.EventTypeMatchAutoResolved, "pick_player", captain, target)
		return r.applyPick(rm, m.DraftTurn, captain, target)

	case models.MatchStatusMapBan:
		remaining := m.RemainingMaps()
		if len(remaining) == 0 {
			return errStale
		}
		target := remaining[0]
		captain := r.captainFor(m, m.BanTurn)
		logger.Str("captain_id", captain).Str("map_id", target).Msg("ban window elapsed, auto-banning")
		r.emitAction(rm, events.EventTypeMatchAutoResolved, "ban_map", captain, target)
		return r.applyBan(rm, m.BanTurn, captain, target)

	case models.MatchStatusReporting:
		logger.Int("reports", len(m.Reports)).Msg("report window elapsed, closing match")
		r.emitAction(rm, events.EventTypeMatchAutoResolved, "close_reporting", "", "")
		return r.closeReporting(rm)
	}
	return errStale
}

func (r *Registry) captainFor(m *models.Match, side models.TeamSide) string {
	if side == models.TeamSide2 {
		return m.Captain2
	}
	return m.Captain1
}
