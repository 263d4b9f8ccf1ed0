package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/esketch/internal/domain"
)

// Realtime notifications go out on two Redis channels: the session's own
// channel, and a broadcast channel for screens that watch the leaderboard
// across sessions.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishRoundEnded notifies the session's channel that a round finished.
func (a *API) PublishRoundEnded(ctx context.Context, e domain.EventRoundEnded) error {
	data := RoundResultView{
		Prompt:        e.Round.Prompt,
		Matched:       e.Round.Matched,
		SecondsUsed:   e.Round.SecondsUsed,
		PointsAwarded: e.Round.PointsAwarded,
		Predictions:   toPredictionViews(e.Round.Predictions),
	}

	return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), data)
}

// PublishLeaderboardUpdated pushes the fresh board to the finishing session
// and to the broadcast channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboardView(e.Leaderboard)

	var eg errgroup.Group
	eg.Go(func() error {
		return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), data)
	})
	eg.Go(func() error {
		return a.publishNotification(ctx, a.broadcastChannel(), e.Name(), data)
	})

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) sessionChannel(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", a.prefix, sessionID)
}

func (a *API) broadcastChannel() string {
	return fmt.Sprintf("%s:leaderboard", a.prefix)
}
