package gateway

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/models"
)

func call[Req, Res any](t *testing.T, h *harness, procedure, playerID string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](h.server.Client(), h.server.URL+procedure, connect.WithCodec(Codec))
	req := connect.NewRequest(msg)
	if playerID != "" {
		req.Header().Set(PlayerIDHeader, playerID)
	}
	res, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func requireCode(t *testing.T, err error, code connect.Code, kind apperrors.Kind) {
	t.Helper()
	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr), "expected a connect error, got %v", err)
	assert.Equal(t, code, cerr.Code())
	assert.Equal(t, string(kind), cerr.Meta().Get(ErrorKindKey))
}

func TestServiceRequiresIdentity(t *testing.T) {
	h := newHarness(t)

	_, err := call[JoinQueueRequest, QueueReply](t, h, JoinQueueProcedure, "", &JoinQueueRequest{})
	requireCode(t, err, connect.CodeUnauthenticated, apperrors.KindUnauthorized)

	client := connect.NewClient[Empty, QueueReply](h.server.Client(), h.server.URL+LeaveQueueProcedure, connect.WithCodec(Codec))
	req := connect.NewRequest(&Empty{})
	req.Header().Add(PlayerIDHeader, "p00")
	req.Header().Add(PlayerIDHeader, "p01")
	_, err = client.CallUnary(context.Background(), req)
	requireCode(t, err, connect.CodeUnauthenticated, apperrors.KindUnauthorized)

	// Reads are anonymous.
	res, err := call[Empty, QueueReply](t, h, GetQueueSnapshotProcedure, "", &Empty{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Snapshot.CohortSize)
}

func TestServiceRejectionCarriesSnapshot(t *testing.T) {
	h := newHarness(t)

	res, err := call[JoinQueueRequest, QueueReply](t, h, JoinQueueProcedure, "p00", &JoinQueueRequest{DisplayName: "Ana", Rating: 1400})
	require.NoError(t, err)
	assert.Nil(t, res.Rejection)
	require.Len(t, res.Snapshot.Entries, 1)
	assert.Equal(t, "Ana", res.Snapshot.Entries[0].Player.DisplayName)

	res, err = call[JoinQueueRequest, QueueReply](t, h, JoinQueueProcedure, "p00", &JoinQueueRequest{})
	require.NoError(t, err)
	require.NotNil(t, res.Rejection)
	assert.Equal(t, apperrors.KindAlreadyQueued, res.Rejection.Kind)
	assert.True(t, res.Snapshot.Contains("p00"))
	assert.Equal(t, 1, res.Snapshot.Size)
}

func TestServiceBadIDsAndUnknownEntities(t *testing.T) {
	h := newHarness(t)

	_, err := call[ProposalRequest, ProposalReply](t, h, AcceptProposalProcedure, "p00", &ProposalRequest{ProposalID: "nope"})
	requireCode(t, err, connect.CodeInvalidArgument, apperrors.KindInvalidArgument)

	_, err = call[ProposalRequest, ProposalReply](t, h, GetProposalSnapshotProcedure, "", &ProposalRequest{ProposalID: uuid.NewString()})
	requireCode(t, err, connect.CodeNotFound, apperrors.KindNotFound)

	_, err = call[MatchRequest, MatchReply](t, h, GetMatchSnapshotProcedure, "", &MatchRequest{MatchID: uuid.NewString()})
	requireCode(t, err, connect.CodeNotFound, apperrors.KindNotFound)

	_, err = call[BanMapRequest, MatchReply](t, h, BanMapProcedure, "p00", &BanMapRequest{MatchID: uuid.NewString(), MapID: "bind"})
	requireCode(t, err, connect.CodeNotFound, apperrors.KindNotFound)
}

func TestServiceMatchLifecycle(t *testing.T) {
	h := newHarness(t)
	ids := names(4)

	for _, id := range ids {
		_, err := call[JoinQueueRequest, QueueReply](t, h, JoinQueueProcedure, id, &JoinQueueRequest{Rating: 1500})
		require.NoError(t, err)
	}

	loc, err := call[Empty, PlayerLocation](t, h, GetPlayerLocationProcedure, "p03", &Empty{})
	require.NoError(t, err)
	require.Equal(t, LocationProposal, loc.Status)
	proposalID := loc.ID.String()

	pr, err := call[ProposalRequest, ProposalReply](t, h, AcceptProposalProcedure, "outsider", &ProposalRequest{ProposalID: proposalID})
	require.NoError(t, err)
	require.NotNil(t, pr.Rejection)
	assert.Equal(t, apperrors.KindNotInProposal, pr.Rejection.Kind)
	assert.Equal(t, models.ProposalStatusPending, pr.Snapshot.Status)

	for _, id := range ids {
		pr, err = call[ProposalRequest, ProposalReply](t, h, AcceptProposalProcedure, id, &ProposalRequest{ProposalID: proposalID})
		require.NoError(t, err)
		require.Nil(t, pr.Rejection)
	}
	require.Equal(t, models.ProposalStatusReady, pr.Snapshot.Status)
	require.NotNil(t, pr.Snapshot.MatchID)
	matchID := pr.Snapshot.MatchID.String()

	mr, err := call[SetCaptainMethodRequest, MatchReply](t, h, SetCaptainMethodProcedure, "p01", &SetCaptainMethodRequest{MatchID: matchID, Method: models.CaptainMethodVoting})
	require.NoError(t, err)
	require.Nil(t, mr.Rejection)
	require.Equal(t, models.MatchStatusCaptainVoting, mr.Snapshot.Status)

	for i, id := range ids {
		mr, err = call[VoteForCaptainRequest, MatchReply](t, h, VoteForCaptainProcedure, id, &VoteForCaptainRequest{MatchID: matchID, CandidateID: ids[i%2]})
		require.NoError(t, err)
		require.Nil(t, mr.Rejection)
	}
	require.Equal(t, models.MatchStatusTeamDraft, mr.Snapshot.Status)

	mr, err = call[PickPlayerRequest, MatchReply](t, h, PickPlayerProcedure, "p01", &PickPlayerRequest{MatchID: matchID, PlayerID: "p02"})
	require.NoError(t, err)
	require.NotNil(t, mr.Rejection)
	assert.Equal(t, apperrors.KindNotYourTurn, mr.Rejection.Kind)
	assert.Equal(t, models.MatchStatusTeamDraft, mr.Snapshot.Status)

	_, err = call[PickPlayerRequest, MatchReply](t, h, PickPlayerProcedure, "p00", &PickPlayerRequest{MatchID: matchID, PlayerID: "p02"})
	require.NoError(t, err)
	mr, err = call[PickPlayerRequest, MatchReply](t, h, PickPlayerProcedure, "p01", &PickPlayerRequest{MatchID: matchID, PlayerID: "p03"})
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusMapBan, mr.Snapshot.Status)

	_, err = call[BanMapRequest, MatchReply](t, h, BanMapProcedure, "p00", &BanMapRequest{MatchID: matchID, MapID: "haven"})
	require.NoError(t, err)
	mr, err = call[BanMapRequest, MatchReply](t, h, BanMapProcedure, "p01", &BanMapRequest{MatchID: matchID, MapID: "ascent"})
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusOngoing, mr.Snapshot.Status)
	assert.Equal(t, "bind", mr.Snapshot.SelectedMap)

	mr, err = call[ReportResultRequest, MatchReply](t, h, ReportResultProcedure, "p02", &ReportResultRequest{MatchID: matchID, Winner: models.WinnerTeam1})
	require.NoError(t, err)
	require.NotNil(t, mr.Rejection)
	assert.Equal(t, apperrors.KindUnauthorized, mr.Rejection.Kind)
	assert.Equal(t, models.MatchStatusOngoing, mr.Snapshot.Status)

	_, err = call[ReportResultRequest, MatchReply](t, h, ReportResultProcedure, "p00", &ReportResultRequest{MatchID: matchID, Winner: models.WinnerTeam1})
	require.NoError(t, err)
	mr, err = call[ReportResultRequest, MatchReply](t, h, ReportResultProcedure, "p01", &ReportResultRequest{MatchID: matchID, Winner: models.WinnerTeam2})
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusDisputed, mr.Snapshot.Status)

	got, err := call[MatchRequest, MatchReply](t, h, GetMatchSnapshotProcedure, "", &MatchRequest{MatchID: matchID})
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusDisputed, got.Snapshot.Status)
	assert.Equal(t, mr.Snapshot.Version, got.Snapshot.Version)
}
