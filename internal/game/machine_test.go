package game_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/esketch/internal/catalog"
	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/game"
)

func makeMachine(t *testing.T) *game.Machine {
	t.Helper()

	c, err := catalog.Load()
	require.NoError(t, err)

	return game.NewMachine(c.NewPicker(7))
}

func TestMachine_StartGame(t *testing.T) {
	m := makeMachine(t)
	require.Equal(t, domain.StateStart, m.State())

	require.True(t, m.StartGame("alice", time.Now()))
	require.Equal(t, domain.StatePlaying, m.State())
	require.Equal(t, domain.TimeLimit, m.SecondsRemaining())
	require.NotEmpty(t, m.Prompt())

	v := m.View("s1")
	require.Equal(t, "alice", v.PlayerName)
	require.Zero(t, v.RoundIndex)
	require.Zero(t, v.TotalScore)
	require.Empty(t, v.Results)
}

func TestMachine_StartGameInvalidWhilePlaying(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))
	require.False(t, m.StartGame("bob", time.Now()), "start must be rejected mid-game")
	require.Equal(t, "alice", m.View("s1").PlayerName)
}

func TestMachine_EmptyNameGetsDefault(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("  ", time.Now()))
	require.NotEmpty(t, m.View("s1").PlayerName)
}

func TestMachine_ScoringFormula(t *testing.T) {
	tests := map[string]struct {
		ticksBeforeMatch int
		wantPoints       int
	}{
		"instant match scores the 300 ceiling":  {ticksBeforeMatch: 0, wantPoints: 300},
		"match at half time":                    {ticksBeforeMatch: 10, wantPoints: 200},
		"match on the last second":              {ticksBeforeMatch: 19, wantPoints: 110},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			m := makeMachine(t)
			require.True(t, m.StartGame("alice", time.Now()))

			for i := 0; i < tt.ticksBeforeMatch; i++ {
				require.Nil(t, m.Tick(), "round must not end early")
			}

			remaining := m.SecondsRemaining()
			out := m.EndRound(true, []domain.Prediction{{Label: m.Prompt(), Confidence: 0.9}}, nil)
			require.NotNil(t, out)
			require.True(t, out.Result.Matched)
			require.Equal(t, tt.wantPoints, out.Result.PointsAwarded)
			require.Equal(t, 100+remaining*10, out.Result.PointsAwarded)
			require.Equal(t, domain.TimeLimit-remaining, out.Result.SecondsUsed)
		})
	}
}

func TestMachine_TimeoutScoresZero(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))

	var out *game.RoundOutcome
	for i := 0; i < domain.TimeLimit; i++ {
		out = m.Tick()
		if out != nil {
			require.Equal(t, domain.TimeLimit, i+1, "timeout must fire exactly when the clock hits zero")
		}
	}

	require.NotNil(t, out, "running the clock out must end the round")
	require.False(t, out.Result.Matched)
	require.Zero(t, out.Result.PointsAwarded)
	require.Equal(t, domain.TimeLimit, out.Result.SecondsUsed)
	require.Equal(t, domain.StateRoundTransition, m.State())
}

func TestMachine_SkipEveryRound(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))

	for i := 0; i < domain.TotalRounds; i++ {
		out := m.Skip()
		require.NotNil(t, out)
		require.False(t, out.Result.Matched)
		require.Zero(t, out.Result.PointsAwarded)
		require.Equal(t, i+1, out.RoundIndex)

		if out.GameOver {
			require.Equal(t, domain.TotalRounds, i+1)
			break
		}
		// Sit out the transition pause.
		for m.State() == domain.StateRoundTransition {
			m.Tick()
		}
	}

	v := m.View("s1")
	require.Equal(t, domain.StateResult, v.State)
	require.Zero(t, v.TotalScore)
	require.Len(t, v.Results, domain.TotalRounds)
	for _, r := range v.Results {
		require.False(t, r.Matched)
	}
}

func TestMachine_EndRoundIdempotent(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))

	first := m.EndRound(true, nil, nil)
	require.NotNil(t, first)

	// The late loser of the timeout-vs-match race must be a no-op.
	require.Nil(t, m.EndRound(false, nil, nil))
	require.Nil(t, m.Skip())

	v := m.View("s1")
	require.Len(t, v.Results, 1)
	require.Equal(t, first.Result.PointsAwarded, v.TotalScore)
}

func TestMachine_TotalScoreIsSumOfRounds(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))

	sum := 0
	for {
		m.Tick()
		m.Tick()
		out := m.EndRound(true, nil, nil)
		if out == nil {
			continue
		}
		sum += out.Result.PointsAwarded

		v := m.View("s1")
		require.Equal(t, sum, v.TotalScore)
		require.Len(t, v.Results, v.RoundIndex, "one result per completed round")

		if out.GameOver {
			break
		}
		for m.State() == domain.StateRoundTransition {
			m.Tick()
		}
	}

	// Two ticks per round leaves 18 seconds: 100 + 18*10 points each.
	require.Equal(t, domain.TotalRounds*280, sum)
}

func TestMachine_PromptsUniqueWithinGame(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))

	seen := map[string]bool{}
	for {
		p := m.Prompt()
		require.False(t, seen[p], "prompt %q repeated within one game", p)
		seen[p] = true

		out := m.Skip()
		if out.GameOver {
			break
		}
		for m.State() == domain.StateRoundTransition {
			m.Tick()
		}
	}
	require.Len(t, seen, domain.TotalRounds)
}

func TestMachine_SecondsRemainingNonIncreasing(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))

	prev := m.SecondsRemaining()
	for i := 0; i < 10; i++ {
		m.Tick()
		cur := m.SecondsRemaining()
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestMachine_ResetAndReplay(t *testing.T) {
	m := makeMachine(t)
	require.True(t, m.StartGame("alice", time.Now()))
	m.Skip()

	m.Reset()
	require.Equal(t, domain.StateStart, m.State())
	v := m.View("s1")
	require.Zero(t, v.TotalScore)
	require.Zero(t, v.RoundIndex)
	require.Empty(t, v.Results)
	require.Nil(t, v.CurrentPrompt)

	require.True(t, m.StartGame("alice", time.Now()), "start must be valid again after reset")
	require.Equal(t, domain.TimeLimit, m.SecondsRemaining())
}

func TestMachine_ShowLeaderboardOnlyFromResult(t *testing.T) {
	m := makeMachine(t)
	require.False(t, m.ShowLeaderboard())

	require.True(t, m.StartGame("alice", time.Now()))
	require.False(t, m.ShowLeaderboard())

	for i := 0; i < domain.TotalRounds; i++ {
		m.Skip()
		for m.State() == domain.StateRoundTransition {
			m.Tick()
		}
	}

	require.Equal(t, domain.StateResult, m.State())
	require.True(t, m.ShowLeaderboard())
	require.Equal(t, domain.StateLeaderboard, m.State())

	// Replay from the leaderboard screen.
	require.True(t, m.StartGame("alice", time.Now()))
}
