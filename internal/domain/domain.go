package domain

import (
	"time"
)

// Game length and round timing. Every round starts with TimeLimit seconds on
// the clock; a game is exactly TotalRounds rounds.
const (
	TotalRounds = 5
	TimeLimit   = 20
)

// State is the lifecycle phase of a game session.
type State string

const (
	StateStart           State = "start"
	StatePlaying         State = "playing"
	StateRoundTransition State = "round_transition"
	StateResult          State = "result"
	StateLeaderboard     State = "leaderboard"
)

// Prompt is a word the player has to draw. Prompts come from a fixed catalog
// and are immutable.
type Prompt struct {
	ID       int
	Text     string // lowercase word
	Category string
}

// Point is a canvas-relative coordinate.
type Point struct {
	X float64
	Y float64
}

// Stroke is the polyline recorded for one continuous drag gesture.
type Stroke struct {
	Points []Point
}

// Prediction is one classifier guess. Predictions are ordered by descending
// confidence.
type Prediction struct {
	Label      string
	Confidence float64 // in [0,1]
}

// RoundResult is the immutable record of one completed round.
type RoundResult struct {
	Prompt        string
	Snapshot      []byte // PNG, may be nil for skipped rounds
	Predictions   []Prediction
	Matched       bool
	SecondsUsed   int
	PointsAwarded int
}

// Session is a point-in-time view of one game session. The game service owns
// the live state; everything handed out crosses the boundary by value.
type Session struct {
	SessionID        string
	PlayerName       string
	State            State
	CurrentPrompt    *Prompt
	SecondsRemaining int
	TotalScore       int
	RoundIndex       int
	Results          []RoundResult
	StartedAt        time.Time
}

// MatchedRounds counts the rounds won in this session.
func (s Session) MatchedRounds() int {
	n := 0
	for _, r := range s.Results {
		if r.Matched {
			n++
		}
	}
	return n
}

// LeaderboardEntry is one persisted game outcome.
type LeaderboardEntry struct {
	PlayerName string
	Score      int
	Accuracy   float64 // percent of rounds matched, 0-100
	Timestamp  time.Time
}

// Leaderboard is the bounded, score-sorted list of past game outcomes.
// Entries are sorted by score in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}
