// Package history archives finished games to Postgres. The leaderboard only
// keeps the top 10; the archive keeps everything.
package history

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/errors"
	"github.com/victornm/esketch/internal/event"
)

type Config struct {
	DB       *pgxpool.Pool
	EventBus *event.Bus
}

type Service struct {
	db *pgxpool.Pool
	eb *event.Bus
}

func NewService(c Config) *Service {
	s := &Service{
		db: c.DB,
		eb: c.EventBus,
	}

	s.eb.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return s.ArchiveGame(ctx, e.(domain.EventGameEnded))
	})

	return s
}

// ArchiveGame stores a finished game and its rounds in one transaction.
// Archiving the same session twice reports AlreadyExists.
func (s *Service) ArchiveGame(ctx context.Context, e domain.EventGameEnded) (err error) {
	ss := e.Session

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insGameStmt = `
INSERT INTO games (session_id, player_name, score, matched_rounds, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6);`
		insRoundStmt = `
INSERT INTO game_rounds (session_id, round_index, prompt, matched, seconds_used, points)
VALUES ($1, $2, $3, $4, $5, $6);`
	)

	_, err = tx.Exec(ctx, insGameStmt,
		ss.SessionID, ss.PlayerName, ss.TotalScore, ss.MatchedRounds(), ss.StartedAt, time.Now().UTC())

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("game already archived: session=%s", ss.SessionID),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	for i, r := range ss.Results { // TODO: batch insert
		_, err = tx.Exec(ctx, insRoundStmt,
			ss.SessionID, i+1, r.Prompt, r.Matched, r.SecondsUsed, r.PointsAwarded)
		if err != nil {
			return fmt.Errorf("insert round %d: %w", i+1, err)
		}
	}

	return tx.Commit(ctx)
}

// GameRecord is one archived game.
type GameRecord struct {
	SessionID     string
	PlayerName    string
	Score         int
	MatchedRounds int
	StartedAt     time.Time
	FinishedAt    time.Time
}

type ListRecentRequest struct {
	Limit int
}

// ListRecent returns the most recently finished games, newest first.
func (s *Service) ListRecent(ctx context.Context, req ListRecentRequest) ([]GameRecord, error) {
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const stmt = `
SELECT session_id, player_name, score, matched_rounds, started_at, finished_at
FROM games
ORDER BY finished_at DESC
LIMIT $1;`

	rows, err := s.db.Query(ctx, stmt, limit)
	if err != nil {
		return nil, err
	}

	records, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (GameRecord, error) {
		var g GameRecord
		if err := r.Scan(&g.SessionID, &g.PlayerName, &g.Score, &g.MatchedRounds, &g.StartedAt, &g.FinishedAt); err != nil {
			return GameRecord{}, err
		}
		return g, nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
