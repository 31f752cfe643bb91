package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// MatchStatus is a phase of the match room lifecycle.
type MatchStatus string

const (
	MatchStatusCreated          MatchStatus = "created"
	MatchStatusCaptainSelection MatchStatus = "captain_selection"
	MatchStatusCaptainVoting    MatchStatus = "captain_voting"
	MatchStatusTeamDraft        MatchStatus = "team_draft"
	MatchStatusMapBan           MatchStatus = "map_ban"
	MatchStatusOngoing          MatchStatus = "ongoing"
	MatchStatusReporting        MatchStatus = "reporting"
	MatchStatusCompleted        MatchStatus = "completed"
	MatchStatusDisputed         MatchStatus = "disputed"
)

// Terminal reports whether no further transition is possible.
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusDisputed
}

// CaptainMethod selects how captains are chosen.
type CaptainMethod string

const (
	CaptainMethodRandom CaptainMethod = "random"
	CaptainMethodVoting CaptainMethod = "voting"
)

// Valid reports whether m is a known method.
func (m CaptainMethod) Valid() bool {
	return m == CaptainMethodRandom || m == CaptainMethodVoting
}

// TeamSide identifies one of the two drafted teams.
type TeamSide string

const (
	TeamSideNone TeamSide = ""
	TeamSide1    TeamSide = "team1"
	TeamSide2    TeamSide = "team2"
)

// Other returns the opposing side.
func (t TeamSide) Other() TeamSide {
	switch t {
	case TeamSide1:
		return TeamSide2
	case TeamSide2:
		return TeamSide1
	}
	return TeamSideNone
}

// PlayerRole marks captains within a match.
type PlayerRole string

const (
	PlayerRoleNone    PlayerRole = ""
	PlayerRoleCaptain PlayerRole = "captain"
	PlayerRolePlayer  PlayerRole = "player"
)

// Winner is a reported match outcome.
type Winner string

const (
	WinnerTeam1 Winner = "team1"
	WinnerTeam2 Winner = "team2"
	WinnerDraw  Winner = "draw"
)

// Valid reports whether w is a known outcome.
func (w Winner) Valid() bool {
	return w == WinnerTeam1 || w == WinnerTeam2 || w == WinnerDraw
}

// MatchPlayer is the per-match view of a player.
type MatchPlayer struct {
	UserID   string     `json:"user_id"`
	Username string     `json:"username"`
	Rating   float64    `json:"rating"`
	Accepted bool       `json:"accepted"`
	Team     TeamSide   `json:"team,omitempty"`
	Role     PlayerRole `json:"role,omitempty"`
}

// MatchResult is the outcome exposed once a match is terminal.
type MatchResult struct {
	Winner     *Winner           `json:"winner,omitempty"`
	Reports    map[string]Winner `json:"reports"`
	DecidedAt  time.Time         `json:"decided_at"`
	Unanimous  bool              `json:"unanimous"`
	ReportedBy []string          `json:"reported_by"`
}

// Match is a confirmed match room.
type Match struct {
	ID                     uuid.UUID         `json:"id"`
	ProposalID             uuid.UUID         `json:"proposal_id"`
	Status                 MatchStatus       `json:"status"`
	Players                []MatchPlayer     `json:"players"`
	Team1                  []string          `json:"team1"`
	Team2                  []string          `json:"team2"`
	Captain1               string            `json:"captain1,omitempty"`
	Captain2               string            `json:"captain2,omitempty"`
	CaptainSelectionMethod CaptainMethod     `json:"captain_selection_method,omitempty"`
	CaptainVotes           map[string]string `json:"captain_votes"`
	CaptainCandidates      []string          `json:"captain_candidates"`
	Undrafted              []string          `json:"undrafted"`
	DraftTurn              TeamSide          `json:"draft_turn,omitempty"`
	MapPool                []string          `json:"map_pool"`
	BannedMaps             []string          `json:"banned_maps"`
	BanTurn                TeamSide          `json:"ban_turn,omitempty"`
	SelectedMap            string            `json:"selected_map,omitempty"`
	Reports                map[string]Winner `json:"reports"`
	Result                 *MatchResult      `json:"result,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	StartTime              *time.Time        `json:"start_time,omitempty"`
	ExpireTime             *time.Time        `json:"expire_time,omitempty"`
	FinishedAt             *time.Time        `json:"finished_at,omitempty"`
	Version                uint64            `json:"version"`
	RemainingMs            int64             `json:"remaining_ms"`
}

// Player returns the match player with userID.
func (m Match) Player(userID string) (MatchPlayer, bool) {
	for _, p := range m.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return MatchPlayer{}, false
}

// CaptainSide returns which team userID captains, if any.
func (m Match) CaptainSide(userID string) TeamSide {
	switch {
	case userID == "":
		return TeamSideNone
	case userID == m.Captain1:
		return TeamSide1
	case userID == m.Captain2:
		return TeamSide2
	}
	return TeamSideNone
}

// RemainingMaps returns the pool minus bans, in pool order.
func (m Match) RemainingMaps() []string {
	out := make([]string, 0, len(m.MapPool))
	for _, id := range m.MapPool {
		if !slices.Contains(m.BannedMaps, id) {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy safe to hand to other goroutines.
func (m Match) Clone() Match {
	c := m
	c.Players = slices.Clone(m.Players)
	c.Team1 = slices.Clone(m.Team1)
	c.Team2 = slices.Clone(m.Team2)
	c.CaptainCandidates = slices.Clone(m.CaptainCandidates)
	c.Undrafted = slices.Clone(m.Undrafted)
	c.MapPool = slices.Clone(m.MapPool)
	c.BannedMaps = slices.Clone(m.BannedMaps)
	c.CaptainVotes = cloneMap(m.CaptainVotes)
	c.Reports = cloneMap(m.Reports)
	if m.Result != nil {
		r := *m.Result
		r.Reports = cloneMap(m.Result.Reports)
		r.ReportedBy = slices.Clone(m.Result.ReportedBy)
		if m.Result.Winner != nil {
			w := *m.Result.Winner
			r.Winner = &w
		}
		c.Result = &r
	}
	c.StartTime = cloneTime(m.StartTime)
	c.ExpireTime = cloneTime(m.ExpireTime)
	c.FinishedAt = cloneTime(m.FinishedAt)
	return c
}

// DefaultMapPool is the map rotation used when none is configured.
var DefaultMapPool = []string{
	"ascent", "bind", "haven", "split", "icebox",
	"breeze", "fracture", "pearl", "lotus", "sunset",
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
