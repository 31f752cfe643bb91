package events

import "time"

// QueueUpdatedPayload is the payload for a QueueUpdated event
type QueueUpdatedPayload struct {
	Size          int    `json:"size"`
	PlayersNeeded int    `json:"players_needed"`
	Reason        string `json:"reason"`
	PlayerID      string `json:"player_id,omitempty"`
}

// CohortFormedPayload is the payload for a QueueCohortFormed event
type CohortFormedPayload struct {
	ProposalID    string    `json:"proposal_id"`
	PlayerIDs     []string  `json:"player_ids"`
	AverageRating float64   `json:"average_rating"`
	FormedAt      time.Time `json:"formed_at"`
}

// ProposalCreatedPayload is the payload for a ProposalCreated event
type ProposalCreatedPayload struct {
	ProposalID string    `json:"proposal_id"`
	PlayerIDs  []string  `json:"player_ids"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ProposalUpdatedPayload is the payload for a ProposalUpdated event
type ProposalUpdatedPayload struct {
	ProposalID    string `json:"proposal_id"`
	PlayerID      string `json:"player_id"`
	AcceptedCount int    `json:"accepted_count"`
	CohortSize    int    `json:"cohort_size"`
}

// ProposalReadyPayload is the payload for a ProposalReady event
type ProposalReadyPayload struct {
	ProposalID string `json:"proposal_id"`
	MatchID    string `json:"match_id"`
}

// ProposalCancelledPayload is the payload for a ProposalCancelled event
type ProposalCancelledPayload struct {
	ProposalID     string   `json:"proposal_id"`
	Reason         string   `json:"reason"`
	DeclinedBy     string   `json:"declined_by,omitempty"`
	RequeuedFront  []string `json:"requeued_front"`
	RequeuedBack   []string `json:"requeued_back"`
	RemovedPlayers []string `json:"removed_players"`
}

// MatchCreatedPayload is the payload for a MatchCreated event
type MatchCreatedPayload struct {
	MatchID    string    `json:"match_id"`
	ProposalID string    `json:"proposal_id"`
	PlayerIDs  []string  `json:"player_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// MatchPhaseChangedPayload is the payload for a MatchPhaseChanged event
type MatchPhaseChangedPayload struct {
	MatchID  string     `json:"match_id"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// MatchActionPayload is the payload for MatchActionApplied and
// MatchAutoResolved events
type MatchActionPayload struct {
	MatchID string `json:"match_id"`
	Phase   string `json:"phase"`
	Action  string `json:"action"`
	ActorID string `json:"actor_id,omitempty"`
	Target  string `json:"target,omitempty"`
}

// FinishedPlayer is one player in a MatchFinished payload
type FinishedPlayer struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Rating   float64 `json:"rating"`
	Team     string  `json:"team"`
	Role     string  `json:"role"`
}

// MatchFinishedPayload is the payload for a MatchFinished event
type MatchFinishedPayload struct {
	MatchID     string            `json:"match_id"`
	ProposalID  string            `json:"proposal_id"`
	Status      string            `json:"status"`
	Winner      *string           `json:"winner,omitempty"`
	Reports     map[string]string `json:"reports"`
	Captain1    string            `json:"captain1"`
	Captain2    string            `json:"captain2"`
	Team1       []string          `json:"team1"`
	Team2       []string          `json:"team2"`
	BannedMaps  []string          `json:"banned_maps"`
	SelectedMap string            `json:"selected_map"`
	Players     []FinishedPlayer  `json:"players"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  time.Time         `json:"finished_at"`
}
