package archive

// Schema creates the archive tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS finished_matches (
    id            UUID PRIMARY KEY,
    proposal_id   UUID NOT NULL,
    status        TEXT NOT NULL,
    winner        TEXT,
    reports       JSONB,
    captain1      TEXT NOT NULL,
    captain2      TEXT NOT NULL,
    team1         TEXT[] NOT NULL,
    team2         TEXT[] NOT NULL,
    banned_maps   TEXT[] NOT NULL,
    selected_map  TEXT NOT NULL,
    started_at    TIMESTAMPTZ,
    finished_at   TIMESTAMPTZ NOT NULL,
    archived_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS finished_match_players (
    match_id   UUID NOT NULL REFERENCES finished_matches(id) ON DELETE CASCADE,
    user_id    TEXT NOT NULL,
    username   TEXT NOT NULL,
    rating     DOUBLE PRECISION NOT NULL,
    team       TEXT NOT NULL,
    role       TEXT NOT NULL,
    PRIMARY KEY (match_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_finished_match_players_user ON finished_match_players(user_id);
`
