package api

import (
	"time"

	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/game"
)

type (
	SessionView struct {
		SessionID        string            `json:"sessionId"`
		PlayerName       string            `json:"playerName"`
		State            string            `json:"state"`
		Prompt           *PromptView       `json:"prompt,omitempty"`
		SecondsRemaining int               `json:"secondsRemaining"`
		TotalScore       int               `json:"totalScore"`
		RoundIndex       int               `json:"roundIndex"`
		TotalRounds      int               `json:"totalRounds"`
		Results          []RoundResultView `json:"results"`
		Predictions      []PredictionView  `json:"predictions"`
	}

	PromptView struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	}

	RoundResultView struct {
		Prompt        string           `json:"prompt"`
		Matched       bool             `json:"matched"`
		SecondsUsed   int              `json:"secondsUsed"`
		PointsAwarded int              `json:"pointsAwarded"`
		Predictions   []PredictionView `json:"predictions"`
	}

	PredictionView struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}

	LeaderboardView struct {
		Entries []LeaderboardEntryView `json:"entries"`
	}

	LeaderboardEntryView struct {
		PlayerName string    `json:"playerName"`
		Score      int       `json:"score"`
		Accuracy   float64   `json:"accuracy"`
		Timestamp  time.Time `json:"timestamp"`
	}
)

func toSessionView(v game.View) SessionView {
	out := SessionView{
		SessionID:        v.SessionID,
		PlayerName:       v.PlayerName,
		State:            string(v.State),
		SecondsRemaining: v.SecondsRemaining,
		TotalScore:       v.TotalScore,
		RoundIndex:       v.RoundIndex,
		TotalRounds:      domain.TotalRounds,
		Results:          make([]RoundResultView, 0, len(v.Results)),
		Predictions:      toPredictionViews(v.LatestPredictions),
	}

	if v.CurrentPrompt != nil {
		out.Prompt = &PromptView{
			Text:     v.CurrentPrompt.Text,
			Category: v.CurrentPrompt.Category,
		}
	}

	for _, r := range v.Results {
		out.Results = append(out.Results, RoundResultView{
			Prompt:        r.Prompt,
			Matched:       r.Matched,
			SecondsUsed:   r.SecondsUsed,
			PointsAwarded: r.PointsAwarded,
			Predictions:   toPredictionViews(r.Predictions),
		})
	}

	return out
}

func toPredictionViews(preds []domain.Prediction) []PredictionView {
	if len(preds) > surfacedPredictions {
		preds = preds[:surfacedPredictions]
	}

	out := make([]PredictionView, 0, len(preds))
	for _, p := range preds {
		out = append(out, PredictionView{Label: p.Label, Confidence: p.Confidence})
	}
	return out
}

func toLeaderboardView(l domain.Leaderboard) LeaderboardView {
	out := LeaderboardView{Entries: make([]LeaderboardEntryView, 0, len(l.Entries))}
	for _, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntryView{
			PlayerName: e.PlayerName,
			Score:      e.Score,
			Accuracy:   e.Accuracy,
			Timestamp:  e.Timestamp,
		})
	}
	return out
}
