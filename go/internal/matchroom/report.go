package matchroom

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// ReportResult records a captain's view of the outcome. The first report
// opens the reporting window; matching reports complete the match and
// conflicting ones mark it disputed.
func (r *Registry) ReportResult(matchID uuid.UUID, captainID string, winner models.Winner) (models.Match, error) {
	return r.mutate(matchID, func(rm *room) error {
		m := &rm.m
		if err := requireStatus(m, "report a result", models.MatchStatusOngoing, models.MatchStatusReporting); err != nil {
			return err
		}
		if _, err := r.requireCaptain(m, captainID); err != nil {
			return err
		}
		if !winner.Valid() {
			return apperrors.New(apperrors.KindInvalidArgument, "unknown result %q", winner)
		}
		if _, reported := m.Reports[captainID]; reported {
			return apperrors.New(apperrors.KindAlreadyVoted, "captain %s already reported", captainID)
		}

		m.Reports[captainID] = winner
		log.Info().
			Str("match_id", m.ID.String()).
			Str("captain_id", captainID).
			Str("winner", string(winner)).
			Msg("result reported")
		r.emitAction(rm, events.EventTypeMatchActionApplied, "report_result", captainID, string(winner))

		if m.Status == models.MatchStatusOngoing {
			if err := r.enter(rm, models.MatchStatusReporting, r.config.ReportWindow); err != nil {
				return err
			}
		}
		if len(m.Reports) < 2 {
			return nil
		}

		a, b := m.Reports[m.Captain1], m.Reports[m.Captain2]
		if a == b {
			return r.finish(rm, models.MatchStatusCompleted, &a)
		}
		return r.finish(rm, models.MatchStatusDisputed, nil)
	})
}

// closeReporting ends the report window. A single uncontested report stands.
func (r *Registry) closeReporting(rm *room) error {
	m := &rm.m
	if len(m.Reports) == 1 {
		for _, w := range m.Reports {
			return r.finish(rm, models.MatchStatusCompleted, &w)
		}
	}
	return r.finish(rm, models.MatchStatusDisputed, nil)
}

func (r *Registry) finish(rm *room, status models.MatchStatus, winner *models.Winner) error {
	m := &rm.m
	if err := r.enter(rm, status, 0); err != nil {
		return err
	}
	now := r.sched.Now()
	m.FinishedAt = &now

	reportedBy := make([]string, 0, len(m.Reports))
	for id := range m.Reports {
		reportedBy = append(reportedBy, id)
	}
	sort.Strings(reportedBy)
	m.Result = &models.MatchResult{
		Winner:     winner,
		Reports:    m.Reports,
		DecidedAt:  now,
		Unanimous:  status == models.MatchStatusCompleted && len(m.Reports) == 2,
		ReportedBy: reportedBy,
	}

	log.Info().
		Str("match_id", m.ID.String()).
		Str("status", string(status)).
		Msg("match finished")

	events.Emit(r.events, events.EventTypeMatchFinished, m.ID.String(), now, finishedPayload(m))
	return nil
}

func finishedPayload(m *models.Match) events.MatchFinishedPayload {
	p := events.MatchFinishedPayload{
		MatchID:     m.ID.String(),
		ProposalID:  m.ProposalID.String(),
		Status:      string(m.Status),
		Reports:     make(map[string]string, len(m.Reports)),
		Captain1:    m.Captain1,
		Captain2:    m.Captain2,
		Team1:       m.Team1,
		Team2:       m.Team2,
		BannedMaps:  m.BannedMaps,
		SelectedMap: m.SelectedMap,
		StartedAt:   m.StartTime,
	}
	if m.FinishedAt != nil {
		p.FinishedAt = *m.FinishedAt
	}
	if m.Result != nil && m.Result.Winner != nil {
		w := string(*m.Result.Winner)
		p.Winner = &w
	}
	for id, w := range m.Reports {
		p.Reports[id] = string(w)
	}
	for _, pl := range m.Players {
		p.Players = append(p.Players, events.FinishedPlayer{
			UserID:   pl.UserID,
			Username: pl.Username,
			Rating:   pl.Rating,
			Team:     string(pl.Team),
			Role:     string(pl.Role),
		})
	}
	return p
}
