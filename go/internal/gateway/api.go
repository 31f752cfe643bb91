package gateway

import (
	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// ServiceName is the fully qualified RPC service name.
const ServiceName = "matchroom.v1.MatchroomService"

// Procedure paths.
const (
	JoinQueueProcedure           = "/" + ServiceName + "/JoinQueue"
	LeaveQueueProcedure          = "/" + ServiceName + "/LeaveQueue"
	GetQueueSnapshotProcedure    = "/" + ServiceName + "/GetQueueSnapshot"
	AcceptProposalProcedure      = "/" + ServiceName + "/AcceptProposal"
	DeclineProposalProcedure     = "/" + ServiceName + "/DeclineProposal"
	GetProposalSnapshotProcedure = "/" + ServiceName + "/GetProposalSnapshot"
	SetCaptainMethodProcedure    = "/" + ServiceName + "/SetCaptainMethod"
	VoteForCaptainProcedure      = "/" + ServiceName + "/VoteForCaptain"
	PickPlayerProcedure          = "/" + ServiceName + "/PickPlayer"
	BanMapProcedure              = "/" + ServiceName + "/BanMap"
	GetMatchSnapshotProcedure    = "/" + ServiceName + "/GetMatchSnapshot"
	ReportResultProcedure        = "/" + ServiceName + "/ReportResult"
	GetPlayerLocationProcedure   = "/" + ServiceName + "/GetPlayerLocation"
)

// PlayerIDHeader carries the caller's identity, set by the identity
// collaborator in front of the engine.
const PlayerIDHeader = "X-Player-Id"

// ErrorKindKey is the error metadata key holding the rejection kind.
const ErrorKindKey = "Error-Kind"

// Rejection explains why a command was not applied.
type Rejection struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// Reply pairs the current snapshot with an optional rejection. A rejected
// command still returns the state the caller should resync to.
type Reply[T any] struct {
	Snapshot  T          `json:"snapshot"`
	Rejection *Rejection `json:"rejection,omitempty"`
}

type (
	QueueReply    = Reply[models.QueueSnapshot]
	ProposalReply = Reply[models.Proposal]
	MatchReply    = Reply[models.Match]
)

// Empty is the request of procedures that take no arguments.
type Empty struct{}

type JoinQueueRequest struct {
	DisplayName string  `json:"display_name"`
	Rating      float64 `json:"rating"`
}

type ProposalRequest struct {
	ProposalID string `json:"proposal_id"`
}

type MatchRequest struct {
	MatchID string `json:"match_id"`
}

type SetCaptainMethodRequest struct {
	MatchID string               `json:"match_id"`
	Method  models.CaptainMethod `json:"method"`
}

type VoteForCaptainRequest struct {
	MatchID     string `json:"match_id"`
	CandidateID string `json:"candidate_id"`
}

type PickPlayerRequest struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

type BanMapRequest struct {
	MatchID string `json:"match_id"`
	MapID   string `json:"map_id"`
}

type ReportResultRequest struct {
	MatchID string        `json:"match_id"`
	Winner  models.Winner `json:"winner"`
}
