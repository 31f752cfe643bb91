package gateway

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/models"
)

// EngineApp defines what the service layer needs from the engine.
type EngineApp interface {
	JoinQueue(p models.Player) (models.QueueSnapshot, error)
	LeaveQueue(playerID string) (models.QueueSnapshot, error)
	QueueSnapshot() models.QueueSnapshot
	AcceptProposal(id uuid.UUID, playerID string) (models.Proposal, error)
	DeclineProposal(id uuid.UUID, playerID string) (models.Proposal, error)
	Proposal(id uuid.UUID) (models.Proposal, error)
	SetCaptainMethod(matchID uuid.UUID, playerID string, method models.CaptainMethod) (models.Match, error)
	VoteForCaptain(matchID uuid.UUID, voterID, candidateID string) (models.Match, error)
	PickPlayer(matchID uuid.UUID, captainID, playerID string) (models.Match, error)
	BanMap(matchID uuid.UUID, captainID, mapID string) (models.Match, error)
	ReportResult(matchID uuid.UUID, captainID string, winner models.Winner) (models.Match, error)
	Match(id uuid.UUID) (models.Match, error)
	ActiveMatches() []models.Match
	Locate(playerID string) (PlayerLocation, error)
}

var _ EngineApp = (*Engine)(nil)

// Service implements the MatchroomService RPCs.
type Service struct {
	app EngineApp
}

// NewService creates the RPC service.
func NewService(app EngineApp) *Service {
	return &Service{app: app}
}

// NewHandler builds the HTTP handler serving every procedure, and returns
// the path prefix to mount it on.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec)}, opts...)

	mux := http.NewServeMux()
	mux.Handle(JoinQueueProcedure, connect.NewUnaryHandler(JoinQueueProcedure, svc.JoinQueue, opts...))
	mux.Handle(LeaveQueueProcedure, connect.NewUnaryHandler(LeaveQueueProcedure, svc.LeaveQueue, opts...))
	mux.Handle(GetQueueSnapshotProcedure, connect.NewUnaryHandler(GetQueueSnapshotProcedure, svc.GetQueueSnapshot, opts...))
	mux.Handle(AcceptProposalProcedure, connect.NewUnaryHandler(AcceptProposalProcedure, svc.AcceptProposal, opts...))
	mux.Handle(DeclineProposalProcedure, connect.NewUnaryHandler(DeclineProposalProcedure, svc.DeclineProposal, opts...))
	mux.Handle(GetProposalSnapshotProcedure, connect.NewUnaryHandler(GetProposalSnapshotProcedure, svc.GetProposalSnapshot, opts...))
	mux.Handle(SetCaptainMethodProcedure, connect.NewUnaryHandler(SetCaptainMethodProcedure, svc.SetCaptainMethod, opts...))
	mux.Handle(VoteForCaptainProcedure, connect.NewUnaryHandler(VoteForCaptainProcedure, svc.VoteForCaptain, opts...))
	mux.Handle(PickPlayerProcedure, connect.NewUnaryHandler(PickPlayerProcedure, svc.PickPlayer, opts...))
	mux.Handle(BanMapProcedure, connect.NewUnaryHandler(BanMapProcedure, svc.BanMap, opts...))
	mux.Handle(GetMatchSnapshotProcedure, connect.NewUnaryHandler(GetMatchSnapshotProcedure, svc.GetMatchSnapshot, opts...))
	mux.Handle(ReportResultProcedure, connect.NewUnaryHandler(ReportResultProcedure, svc.ReportResult, opts...))
	mux.Handle(GetPlayerLocationProcedure, connect.NewUnaryHandler(GetPlayerLocationProcedure, svc.GetPlayerLocation, opts...))
	return "/" + ServiceName + "/", mux
}

// JoinQueue enqueues the caller.
func (s *Service) JoinQueue(ctx context.Context, req *connect.Request[JoinQueueRequest]) (*connect.Response[QueueReply], error) {
	playerID, err := callerID(req.Header())
	if err != nil {
		return nil, err
	}
	snap, err := s.app.JoinQueue(models.Player{
		ID:          playerID,
		DisplayName: req.Msg.DisplayName,
		Rating:      req.Msg.Rating,
	})
	return reply(JoinQueueProcedure, snap, err)
}

// LeaveQueue removes the caller from the queue.
func (s *Service) LeaveQueue(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[QueueReply], error) {
	playerID, err := callerID(req.Header())
	if err != nil {
		return nil, err
	}
	snap, err := s.app.LeaveQueue(playerID)
	return reply(LeaveQueueProcedure, snap, err)
}

// GetQueueSnapshot returns the queue.
func (s *Service) GetQueueSnapshot(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[QueueReply], error) {
	return reply(GetQueueSnapshotProcedure, s.app.QueueSnapshot(), nil)
}

// AcceptProposal accepts a proposal on behalf of the caller.
func (s *Service) AcceptProposal(ctx context.Context, req *connect.Request[ProposalRequest]) (*connect.Response[ProposalReply], error) {
	playerID, err := callerID(req.Header())
	if err != nil {
		return nil, err
	}
	id, err := parseID("proposal_id", req.Msg.ProposalID)
	if err != nil {
		return nil, err
	}
	p, err := s.app.AcceptProposal(id, playerID)
	return reply(AcceptProposalProcedure, p, err)
}

// DeclineProposal declines a proposal on behalf of the caller.
func (s *Service) DeclineProposal(ctx context.Context, req *connect.Request[ProposalRequest]) (*connect.Response[ProposalReply], error) {
	playerID, err := callerID(req.Header())
	if err != nil {
		return nil, err
	}
	id, err := parseID("proposal_id", req.Msg.ProposalID)
	if err != nil {
		return nil, err
	}
	p, err := s.app.DeclineProposal(id, playerID)
	return reply(DeclineProposalProcedure, p, err)
}

// GetProposalSnapshot returns one proposal.
func (s *Service) GetProposalSnapshot(ctx context.Context, req *connect.Request[ProposalRequest]) (*connect.Response[ProposalReply], error) {
	id, err := parseID("proposal_id", req.Msg.ProposalID)
	if err != nil {
		return nil, err
	}
	p, err := s.app.Proposal(id)
	return reply(GetProposalSnapshotProcedure, p, err)
}

// SetCaptainMethod chooses the captain selection method.
func (s *Service) SetCaptainMethod(ctx context.Context, req *connect.Request[SetCaptainMethodRequest]) (*connect.Response[MatchReply], error) {
	return s.matchCommand(SetCaptainMethodProcedure, req.Header(), req.Msg.MatchID, func(id uuid.UUID, playerID string) (models.Match, error) {
		return s.app.SetCaptainMethod(id, playerID, req.Msg.Method)
	})
}

// VoteForCaptain casts the caller's captain vote.
func (s *Service) VoteForCaptain(ctx context.Context, req *connect.Request[VoteForCaptainRequest]) (*connect.Response[MatchReply], error) {
	return s.matchCommand(VoteForCaptainProcedure, req.Header(), req.Msg.MatchID, func(id uuid.UUID, playerID string) (models.Match, error) {
		return s.app.VoteForCaptain(id, playerID, req.Msg.CandidateID)
	})
}

// PickPlayer drafts a player for the calling captain.
func (s *Service) PickPlayer(ctx context.Context, req *connect.Request[PickPlayerRequest]) (*connect.Response[MatchReply], error) {
	return s.matchCommand(PickPlayerProcedure, req.Header(), req.Msg.MatchID, func(id uuid.UUID, playerID string) (models.Match, error) {
		return s.app.PickPlayer(id, playerID, req.Msg.PlayerID)
	})
}

// BanMap bans a map for the calling captain.
func (s *Service) BanMap(ctx context.Context, req *connect.Request[BanMapRequest]) (*connect.Response[MatchReply], error) {
	return s.matchCommand(BanMapProcedure, req.Header(), req.Msg.MatchID, func(id uuid.UUID, playerID string) (models.Match, error) {
		return s.app.BanMap(id, playerID, req.Msg.MapID)
	})
}

// ReportResult records the calling captain's result.
func (s *Service) ReportResult(ctx context.Context, req *connect.Request[ReportResultRequest]) (*connect.Response[MatchReply], error) {
	return s.matchCommand(ReportResultProcedure, req.Header(), req.Msg.MatchID, func(id uuid.UUID, playerID string) (models.Match, error) {
		return s.app.ReportResult(id, playerID, req.Msg.Winner)
	})
}

// GetMatchSnapshot returns one match.
func (s *Service) GetMatchSnapshot(ctx context.Context, req *connect.Request[MatchRequest]) (*connect.Response[MatchReply], error) {
	id, err := parseID("match_id", req.Msg.MatchID)
	if err != nil {
		return nil, err
	}
	m, err := s.app.Match(id)
	return reply(GetMatchSnapshotProcedure, m, err)
}

// GetPlayerLocation reports where the caller currently is.
func (s *Service) GetPlayerLocation(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[PlayerLocation], error) {
	playerID, err := callerID(req.Header())
	if err != nil {
		return nil, err
	}
	loc, err := s.app.Locate(playerID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&loc), nil
}

func (s *Service) matchCommand(procedure string, header http.Header, rawID string, fn func(uuid.UUID, string) (models.Match, error)) (*connect.Response[MatchReply], error) {
	playerID, err := callerID(header)
	if err != nil {
		return nil, err
	}
	id, err := parseID("match_id", rawID)
	if err != nil {
		return nil, err
	}
	m, err := fn(id, playerID)
	return reply(procedure, m, err)
}

// callerID extracts the single player identity of a request. Missing or
// repeated identities are rejected.
func callerID(h http.Header) (string, error) {
	values := h.Values(PlayerIDHeader)
	switch {
	case len(values) == 0 || values[0] == "":
		return "", toConnectError(apperrors.New(apperrors.KindUnauthorized, "missing %s header", PlayerIDHeader))
	case len(values) > 1:
		return "", toConnectError(apperrors.New(apperrors.KindUnauthorized, "ambiguous player identity"))
	}
	return values[0], nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, toConnectError(apperrors.New(apperrors.KindInvalidArgument, "invalid %s %q", field, raw))
	}
	return id, nil
}

// reply turns a command outcome into a response. Rejections ride inside the
// reply next to the snapshot; only unknown entities become RPC errors.
func reply[T any](procedure string, snap T, err error) (*connect.Response[Reply[T]], error) {
	if err == nil {
		return connect.NewResponse(&Reply[T]{Snapshot: snap}), nil
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		log.Error().Err(err).Str("procedure", procedure).Msg("command failed")
		return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
	if appErr.Kind == apperrors.KindNotFound {
		return nil, toConnectError(appErr)
	}
	log.Debug().
		Str("procedure", procedure).
		Str("kind", string(appErr.Kind)).
		Str("message", appErr.Message).
		Msg("command rejected")
	return connect.NewResponse(&Reply[T]{
		Snapshot:  snap,
		Rejection: &Rejection{Kind: appErr.Kind, Message: appErr.Message},
	}), nil
}

func toConnectError(err error) error {
	kind := apperrors.KindOf(err)
	cerr := connect.NewError(kind.ConnectCode(), err)
	cerr.Meta().Set(ErrorKindKey, string(kind))
	return cerr
}
