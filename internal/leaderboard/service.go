// Package leaderboard persists the bounded top-10 list of past game outcomes.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/event"
)

// maxEntries bounds the persisted list. Entries beyond the top 10 are
// truncated on every write.
const maxEntries = 10

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return s.RecordGame(ctx, e.(domain.EventGameEnded))
	})

	return s
}

// storedEntry is the wire shape of one persisted leaderboard row. The whole
// board lives as a single JSON array under one key, read in full and
// overwritten in full on each game completion.
type storedEntry struct {
	PlayerName string    `json:"playerName"`
	Score      int       `json:"score"`
	Accuracy   float64   `json:"accuracy"`
	Timestamp  time.Time `json:"timestamp"`
}

// Get returns the persisted leaderboard. A missing or malformed value is
// treated as an empty board rather than an error, so the game stays playable.
func (s *Service) Get(ctx context.Context) (*domain.Leaderboard, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	l := &domain.Leaderboard{Entries: make([]domain.LeaderboardEntry, 0, len(entries))}
	for _, e := range entries {
		l.Entries = append(l.Entries, domain.LeaderboardEntry{
			PlayerName: e.PlayerName,
			Score:      e.Score,
			Accuracy:   e.Accuracy,
			Timestamp:  e.Timestamp,
		})
	}
	return l, nil
}

// RecordGame appends a finished game's outcome and rewrites the board:
// load, append, sort by score descending (stable, so ties keep insertion
// order), truncate to the top 10, write back.
func (s *Service) RecordGame(ctx context.Context, e domain.EventGameEnded) error {
	ss := e.Session

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}

	entries = append(entries, storedEntry{
		PlayerName: ss.PlayerName,
		Score:      ss.TotalScore,
		Accuracy:   accuracy(ss),
		Timestamp:  ss.StartedAt.UTC(),
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}

	if err := s.save(ctx, entries); err != nil {
		return err
	}

	l, err := s.Get(ctx)
	if err != nil {
		return err
	}
	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		SessionID:   ss.SessionID,
		Leaderboard: *l,
	})
	return nil
}

// accuracy is the percentage of rounds matched, rounded to two decimals.
func accuracy(ss domain.Session) float64 {
	if len(ss.Results) == 0 {
		return 0
	}

	matched := decimal.NewFromInt(int64(ss.MatchedRounds()))
	total := decimal.NewFromInt(int64(len(ss.Results)))
	return matched.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func (s *Service) load(ctx context.Context) ([]storedEntry, error) {
	raw, err := s.redis.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard: load: %w", err)
	}

	var entries []storedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		slog.WarnContext(ctx, "leaderboard: stored data malformed, starting empty", "error", err)
		return nil, nil
	}
	return entries, nil
}

func (s *Service) save(ctx context.Context, entries []storedEntry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("leaderboard: marshal: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(), b, 0).Err(); err != nil {
		return fmt.Errorf("leaderboard: save: %w", err)
	}
	return nil
}

func (s *Service) key() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}
