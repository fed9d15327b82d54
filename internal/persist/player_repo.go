package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PlayerRow struct {
	Name        string
	GamesPlayed int
	GamesWon    int
	CreatedAt   time.Time
	LastSeen    time.Time
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Touch creates the player on first login and refreshes last_seen after.
func (r *PlayerRepo) Touch(ctx context.Context, name string) error {
	now := time.Now().UTC()
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(
		`INSERT INTO players (name, created_at, last_seen) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET last_seen = excluded.last_seen`),
		name, now, now,
	)
	if err != nil {
		return fmt.Errorf("touch player %s: %w", name, err)
	}
	return nil
}

// Stats returns the player's record, or nil if the name was never seen.
func (r *PlayerRepo) Stats(ctx context.Context, name string) (*PlayerRow, error) {
	row := &PlayerRow{}
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(
		`SELECT name, games_played, games_won, created_at, last_seen
		 FROM players WHERE name = ?`), name,
	).Scan(&row.Name, &row.GamesPlayed, &row.GamesWon, &row.CreatedAt, &row.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", name, err)
	}
	return row, nil
}
