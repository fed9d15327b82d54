package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameResult is the outcome of one finished game.
type GameResult struct {
	Ruleset   string
	Turns     int
	Winner    int // seat index, -1 for none
	Reason    string
	Seats     []SeatResult
	StartedAt time.Time
	EndedAt   time.Time
}

type SeatResult struct {
	Name      string
	Automated bool
}

type GameRepo struct {
	db *DB
}

func NewGameRepo(db *DB) *GameRepo {
	return &GameRepo{db: db}
}

// Record stores a finished game and updates the counters of its human
// players in one transaction. It returns the new game id.
func (r *GameRepo) Record(ctx context.Context, res GameResult) (string, error) {
	id := uuid.NewString()
	winner := ""
	if res.Winner >= 0 && res.Winner < len(res.Seats) {
		winner = res.Seats[res.Winner].Name
	}

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record game begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`INSERT INTO games (id, ruleset, turns, winner, reason, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, res.Ruleset, res.Turns, winner, res.Reason, res.StartedAt.UTC(), res.EndedAt.UTC(),
	); err != nil {
		return "", fmt.Errorf("record game insert: %w", err)
	}

	now := time.Now().UTC()
	for i, s := range res.Seats {
		if _, err := tx.ExecContext(ctx, r.db.rebind(
			`INSERT INTO game_players (game_id, seat, name, automated) VALUES (?, ?, ?, ?)`),
			id, i, s.Name, s.Automated,
		); err != nil {
			return "", fmt.Errorf("record game seat %d: %w", i, err)
		}
		if s.Automated {
			continue
		}
		won := 0
		if i == res.Winner {
			won = 1
		}
		if _, err := tx.ExecContext(ctx, r.db.rebind(
			`INSERT INTO players (name, games_played, games_won, created_at, last_seen)
			 VALUES (?, 1, ?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET
			     games_played = players.games_played + 1,
			     games_won = players.games_won + excluded.games_won`),
			s.Name, won, now, now,
		); err != nil {
			return "", fmt.Errorf("record game player %s: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record game commit: %w", err)
	}
	return id, nil
}

// Count returns how many games have been recorded.
func (r *GameRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}
