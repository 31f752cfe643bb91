package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/archive"
)

// ArchiveReader serves finished matches from long-term storage.
type ArchiveReader interface {
	Get(ctx context.Context, id uuid.UUID) (archive.Record, error)
	History(ctx context.Context, playerID string, limit int) ([]archive.Record, error)
}

// Router serves snapshot reads, the websocket endpoint and the RPC service.
type Router struct {
	app    EngineApp
	cm     *ConnectionManager
	pusher *Pusher
	// archive is nil when archiving is disabled.
	archive ArchiveReader
}

// NewRouter creates the HTTP surface.
func NewRouter(app EngineApp, cm *ConnectionManager, pusher *Pusher) *Router {
	return &Router{app: app, cm: cm, pusher: pusher}
}

// WithArchive enables the archive read routes.
func (rt *Router) WithArchive(a ArchiveReader) *Router {
	rt.archive = a
	return rt
}

// Handler builds the chi router. rpcPath and rpc are mounted as returned by
// NewHandler.
func (rt *Router) Handler(rpcPath string, rpc http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", Health)
	r.Get("/ws", rt.HandleSubscribe)
	r.Get("/ws/stats", rt.HandleStats)

	r.Route("/api", func(r chi.Router) {
		r.Get("/queue", rt.GetQueue)
		r.Get("/proposals/{id}", rt.GetProposal)
		r.Get("/matches", rt.ListMatches)
		r.Get("/matches/{id}", rt.GetMatch)
		if rt.archive != nil {
			r.Get("/archive/matches/{id}", rt.GetArchivedMatch)
			r.Get("/players/{id}/history", rt.GetPlayerHistory)
		}
	})

	r.Mount(rpcPath, rpc)
	return r
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Warn().Err(err).Msg("failed to write health check response")
	}
}

func (rt *Router) GetQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.QueueSnapshot())
}

func (rt *Router) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := rt.app.Proposal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (rt *Router) GetMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := rt.app.Match(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (rt *Router) ListMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.ActiveMatches())
}

func (rt *Router) GetArchivedMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := rt.archive.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetPlayerHistory lists a player's archived matches, newest first.
// ?limit= is clamped by the archive.
func (rt *Router) GetPlayerHistory(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid limit %q", raw))
			return
		}
		limit = n
	}
	recs, err := rt.archive.History(r.Context(), playerID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleSubscribe upgrades to a websocket on ?topic=queue|proposal:{id}|match:{id}.
// The subscriber gets the current snapshot straight away.
func (rt *Router) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if _, _, err := ParseTopic(topic); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "%v", err))
		return
	}
	if _, err := rt.pusher.Render(topic, ""); err != nil {
		writeError(w, err)
		return
	}

	playerID := r.Header.Get(PlayerIDHeader)
	if playerID == "" {
		playerID = r.URL.Query().Get("player_id")
	}
	render := func() ([]byte, error) { return rt.pusher.Render(topic, "") }
	if err := rt.cm.Subscribe(w, r, playerID, topic, render); err != nil {
		// The upgrader has already replied to the client.
		log.Warn().Err(err).Str("topic", topic).Msg("websocket subscribe failed")
	}
}

func (rt *Router) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.cm.Stats())
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.KindUnknown:
	default:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, Rejection{Kind: kind, Message: err.Error()})
}
