package domain

const (
	EventNameRoundEnded         = "round.ended"
	EventNameGameEnded          = "game.ended"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventRoundEnded struct {
	SessionID string
	Round     RoundResult
	// RoundIndex is the 1-based index of the round that just ended.
	RoundIndex int
}

func (EventRoundEnded) Name() string { return EventNameRoundEnded }

type EventGameEnded struct {
	Session Session
}

func (EventGameEnded) Name() string { return EventNameGameEnded }

type EventLeaderboardUpdated struct {
	SessionID   string
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
