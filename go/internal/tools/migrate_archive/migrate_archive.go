package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/matchroom/go/internal/archive"
	"github.com/mcdev12/matchroom/go/internal/dbconfig"
)

func main() {
	_ = godotenv.Load()

	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Without arguments pgx uses the simple protocol, so the whole schema
	// runs as one batch.
	if _, err := pool.Exec(ctx, archive.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	var tables int
	err = pool.QueryRow(ctx, `
        SELECT count(*) FROM information_schema.tables
        WHERE table_name IN ('finished_matches', 'finished_match_players')
    `).Scan(&tables)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("archive schema ready on %s (%d tables)\n", cfg.Redacted(), tables)
}
