// Package archive keeps finished matches in Postgres once they leave the
// live registry.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchroom/go/internal/apperrors"
	"github.com/mcdev12/matchroom/go/internal/dbconfig"
	"github.com/mcdev12/matchroom/go/internal/events"
	"github.com/mcdev12/matchroom/go/internal/sqlutil"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg dbconfig.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Str("db", cfg.Redacted()).Msg("connected to archive database")
	return db, nil
}

// Record is an archived match.
type Record struct {
	MatchID     uuid.UUID         `json:"match_id"`
	ProposalID  uuid.UUID         `json:"proposal_id"`
	Status      string            `json:"status"`
	Winner      *string           `json:"winner,omitempty"`
	Reports     map[string]string `json:"reports,omitempty"`
	Captain1    string            `json:"captain1"`
	Captain2    string            `json:"captain2"`
	Team1       []string          `json:"team1"`
	Team2       []string          `json:"team2"`
	BannedMaps  []string          `json:"banned_maps"`
	SelectedMap string            `json:"selected_map"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  time.Time         `json:"finished_at"`
}

// Store writes MatchFinished events to the archive. It is an
// events.Publisher fed by the relay.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Publish implements events.Publisher. Events other than MatchFinished are
// ignored.
func (s *Store) Publish(ctx context.Context, ev events.Event) error {
	if ev.Type != events.EventTypeMatchFinished {
		return nil
	}
	var p events.MatchFinishedPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	return s.Save(ctx, p)
}

// Save archives one finished match. Saving the same match twice is a no-op.
func (s *Store) Save(ctx context.Context, p events.MatchFinishedPayload) error {
	match, players, err := buildParams(p)
	if err != nil {
		return err
	}

	var inserted bool
	err = sqlutil.Run(ctx, s.db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		ok, err := q.InsertMatch(ctx, match)
		if err != nil {
			return fmt.Errorf("insert match %s: %w", match.ID, err)
		}
		if !ok {
			return nil
		}
		inserted = true
		for _, pl := range players {
			if err := q.InsertMatchPlayer(ctx, pl); err != nil {
				return fmt.Errorf("insert player %s of match %s: %w", pl.UserID, match.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("match_id", match.ID.String()).
		Str("status", match.Status).
		Bool("inserted", inserted).
		Msg("match archived to database")
	return nil
}

// Get loads an archived match.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row, err := New(s.db).GetMatch(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apperrors.New(apperrors.KindNotFound, "archived match %s not found", id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get archived match %s: %w", id, err)
	}
	return recordFromRow(row)
}

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryLimit clamps a requested page size. Zero or negative means the
// default.
func HistoryLimit(limit int) int32 {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return int32(limit)
}

// History returns the most recent archived matches of a player.
func (s *Store) History(ctx context.Context, playerID string, limit int) ([]Record, error) {
	q := New(s.db)
	ids, err := q.ListMatchIDsForPlayer(ctx, playerID, HistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list matches of %s: %w", playerID, err)
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func buildParams(p events.MatchFinishedPayload) (InsertMatchParams, []InsertMatchPlayerParams, error) {
	id, err := uuid.Parse(p.MatchID)
	if err != nil {
		return InsertMatchParams{}, nil, fmt.Errorf("match id %q: %w", p.MatchID, err)
	}
	proposalID, err := uuid.Parse(p.ProposalID)
	if err != nil {
		return InsertMatchParams{}, nil, fmt.Errorf("proposal id %q: %w", p.ProposalID, err)
	}
	reports, err := sqlutil.ToNullRawMessage(p.Reports)
	if err != nil {
		return InsertMatchParams{}, nil, fmt.Errorf("marshal reports: %w", err)
	}

	match := InsertMatchParams{
		ID:          id,
		ProposalID:  proposalID,
		Status:      p.Status,
		Winner:      sqlutil.ToSqlString(p.Winner),
		Reports:     reports,
		Captain1:    p.Captain1,
		Captain2:    p.Captain2,
		Team1:       nonNil(p.Team1),
		Team2:       nonNil(p.Team2),
		BannedMaps:  nonNil(p.BannedMaps),
		SelectedMap: p.SelectedMap,
		StartedAt:   sqlutil.ToSqlTime(p.StartedAt),
		FinishedAt:  p.FinishedAt,
	}

	players := make([]InsertMatchPlayerParams, len(p.Players))
	for i, pl := range p.Players {
		players[i] = InsertMatchPlayerParams{
			MatchID:  id,
			UserID:   pl.UserID,
			Username: pl.Username,
			Rating:   pl.Rating,
			Team:     pl.Team,
			Role:     pl.Role,
		}
	}
	return match, players, nil
}

func recordFromRow(row MatchRow) (Record, error) {
	rec := Record{
		MatchID:     row.ID,
		ProposalID:  row.ProposalID,
		Status:      row.Status,
		Winner:      sqlutil.FromSqlStringPtr(row.Winner),
		Captain1:    row.Captain1,
		Captain2:    row.Captain2,
		Team1:       row.Team1,
		Team2:       row.Team2,
		BannedMaps:  row.BannedMaps,
		SelectedMap: row.SelectedMap,
		StartedAt:   sqlutil.FromSqlTime(row.StartedAt),
		FinishedAt:  row.FinishedAt,
	}
	if row.Reports.Valid {
		if err := json.Unmarshal(row.Reports.RawMessage, &rec.Reports); err != nil {
			return Record{}, fmt.Errorf("decode reports of %s: %w", row.ID, err)
		}
	}
	return rec, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
