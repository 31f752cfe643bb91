package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs archive statements against one connection or transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type InsertMatchParams struct {
	ID          uuid.UUID
	ProposalID  uuid.UUID
	Status      string
	Winner      sql.NullString
	Reports     pqtype.NullRawMessage
	Captain1    string
	Captain2    string
	Team1       []string
	Team2       []string
	BannedMaps  []string
	SelectedMap string
	StartedAt   sql.NullTime
	FinishedAt  time.Time
}

const insertMatch = `
INSERT INTO finished_matches (
    id, proposal_id, status, winner, reports, captain1, captain2,
    team1, team2, banned_maps, selected_map, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO NOTHING
`

// InsertMatch stores a finished match. It reports false when the match was
// already archived.
func (q *Queries) InsertMatch(ctx context.Context, arg InsertMatchParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertMatch,
		arg.ID,
		arg.ProposalID,
		arg.Status,
		arg.Winner,
		arg.Reports,
		arg.Captain1,
		arg.Captain2,
		pq.Array(arg.Team1),
		pq.Array(arg.Team2),
		pq.Array(arg.BannedMaps),
		arg.SelectedMap,
		arg.StartedAt,
		arg.FinishedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type InsertMatchPlayerParams struct {
	MatchID  uuid.UUID
	UserID   string
	Username string
	Rating   float64
	Team     string
	Role     string
}

const insertMatchPlayer = `
INSERT INTO finished_match_players (match_id, user_id, username, rating, team, role)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (q *Queries) InsertMatchPlayer(ctx context.Context, arg InsertMatchPlayerParams) error {
	_, err := q.db.ExecContext(ctx, insertMatchPlayer,
		arg.MatchID,
		arg.UserID,
		arg.Username,
		arg.Rating,
		arg.Team,
		arg.Role,
	)
	return err
}

type MatchRow struct {
	ID          uuid.UUID
	ProposalID  uuid.UUID
	Status      string
	Winner      sql.NullString
	Reports     pqtype.NullRawMessage
	Captain1    string
	Captain2    string
	Team1       []string
	Team2       []string
	BannedMaps  []string
	SelectedMap string
	StartedAt   sql.NullTime
	FinishedAt  time.Time
}

const getMatch = `
SELECT id, proposal_id, status, winner, reports, captain1, captain2,
       team1, team2, banned_maps, selected_map, started_at, finished_at
FROM finished_matches
WHERE id = $1
`

func (q *Queries) GetMatch(ctx context.Context, id uuid.UUID) (MatchRow, error) {
	row := q.db.QueryRowContext(ctx, getMatch, id)
	var i MatchRow
	err := row.Scan(
		&i.ID,
		&i.ProposalID,
		&i.Status,
		&i.Winner,
		&i.Reports,
		&i.Captain1,
		&i.Captain2,
		pq.Array(&i.Team1),
		pq.Array(&i.Team2),
		pq.Array(&i.BannedMaps),
		&i.SelectedMap,
		&i.StartedAt,
		&i.FinishedAt,
	)
	return i, err
}

const listMatchIDsForPlayer = `
SELECT p.match_id
FROM finished_match_players p
JOIN finished_matches m ON m.id = p.match_id
WHERE p.user_id = $1
ORDER BY m.finished_at DESC
LIMIT $2
`

func (q *Queries) ListMatchIDsForPlayer(ctx context.Context, userID string, limit int32) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, listMatchIDsForPlayer, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
