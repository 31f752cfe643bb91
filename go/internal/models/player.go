package models

import "time"

// Player is the read-only identity handed to the engine by the identity
// collaborator. Rating is only used for averaging.
type Player struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Rating      float64 `json:"rating"`
}

// QueueEntry is a player waiting in the queue.
type QueueEntry struct {
	Player   Player    `json:"player"`
	JoinedAt time.Time `json:"joined_at"`
}

// QueueSnapshot is the observable state of the queue.
type QueueSnapshot struct {
	Size             int          `json:"size"`
	Capacity         int          `json:"capacity"`
	CohortSize       int          `json:"cohort_size"`
	PlayersNeeded    int          `json:"players_needed"`
	IsFull           bool         `json:"is_full"`
	Entries          []QueueEntry `json:"entries"`
	LastCohortRating *float64     `json:"last_cohort_rating,omitempty"`
	EstimatedWaitMs  int64        `json:"estimated_wait_ms"`
	Version          uint64       `json:"version"`
	TakenAt          time.Time    `json:"taken_at"`
}

// Contains reports whether playerID has an entry in the snapshot.
func (s QueueSnapshot) Contains(playerID string) bool {
	for _, e := range s.Entries {
		if e.Player.ID == playerID {
			return true
		}
	}
	return false
}

// AverageRating returns the mean rating of players, or 0 for an empty slice.
func AverageRating(players []Player) float64 {
	if len(players) == 0 {
		return 0
	}
	var sum float64
	for _, p := range players {
		sum += p.Rating
	}
	return sum / float64(len(players))
}
