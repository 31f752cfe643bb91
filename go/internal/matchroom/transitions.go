package matchroom

import (
	"slices"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/models"
)

var allowedTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchStatusCreated:          {models.MatchStatusCaptainSelection},
	models.MatchStatusCaptainSelection: {models.MatchStatusCaptainVoting, models.MatchStatusTeamDraft},
	models.MatchStatusCaptainVoting:    {models.MatchStatusTeamDraft},
	models.MatchStatusTeamDraft:        {models.MatchStatusMapBan},
	models.MatchStatusMapBan:           {models.MatchStatusOngoing},
	models.MatchStatusOngoing:          {models.MatchStatusReporting},
	models.MatchStatusReporting:        {models.MatchStatusCompleted, models.MatchStatusDisputed},
	models.MatchStatusCompleted:        {},
	models.MatchStatusDisputed:         {},
}

// validateStatusTransition rejects any move not listed in allowedTransitions.
func validateStatusTransition(current, next models.MatchStatus) error {
	allowedNext, exists := allowedTransitions[current]
	if !exists {
		return apperrors.New(apperrors.KindInvalidStateForOperation, "unknown match status %s", current)
	}
	if !slices.Contains(allowedNext, next) {
		return apperrors.New(apperrors.KindInvalidStateForOperation, "transition from %s to %s is not allowed", current, next)
	}
	return nil
}

// requireStatus rejects commands issued in the wrong phase.
func requireStatus(m *models.Match, op string, want ...models.MatchStatus) error {
	if slices.Contains(want, m.Status) {
		return nil
	}
	return apperrors.New(apperrors.KindInvalidStateForOperation, "cannot %s while match is %s", op, m.Status)
}
