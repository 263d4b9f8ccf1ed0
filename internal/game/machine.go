package game

import (
	"strings"
	"time"

	"github.com/victornm/esketch/internal/catalog"
	"github.com/victornm/esketch/internal/domain"
)

// Scoring: a match is worth 100 points plus 10 per second left on the clock,
// so the per-round range is {0} ∪ [100, 300] and faster matches always beat
// slower ones.
const (
	basePoints     = 100
	perSecondBonus = 10
)

// transitionSeconds is the pacing pause between rounds. It is a UI nicety,
// not a scoring-relevant quantity.
const transitionSeconds = 2

const defaultPlayerName = "anonymous"

// Machine is the round/game state machine for a single session. It holds no
// timers and publishes no events; the game service drives it from the engine
// loop and reacts to the outcomes it returns. Not safe for concurrent use —
// the caller serializes access.
type Machine struct {
	playerName string
	startedAt  time.Time

	state            domain.State
	picker           *catalog.Picker
	prompt           *domain.Prompt
	secondsRemaining int
	totalScore       int
	roundIndex       int
	results          []domain.RoundResult

	// roundEnded makes round termination single-assignment: whichever of the
	// timeout and a successful match applies first wins, the other is a no-op.
	roundEnded     bool
	transitionLeft int

	// gen increments whenever a round begins or the machine resets. Analysis
	// results carry the generation they were started under; a result from an
	// older generation belongs to a round that is already over and is dropped.
	gen int
}

// RoundOutcome reports a round that just ended, so the caller can publish
// events and persist results.
type RoundOutcome struct {
	Result     domain.RoundResult
	RoundIndex int // 1-based index of the ended round
	GameOver   bool
}

func NewMachine(picker *catalog.Picker) *Machine {
	return &Machine{
		state:  domain.StateStart,
		picker: picker,
	}
}

// StartGame begins a fresh game. Valid from Start, Result and Leaderboard;
// anywhere else it is ignored and reports false. An empty player name falls
// back to a default display name.
func (m *Machine) StartGame(playerName string, now time.Time) bool {
	switch m.state {
	case domain.StateStart, domain.StateResult, domain.StateLeaderboard:
	default:
		return false
	}

	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		playerName = defaultPlayerName
	}

	m.playerName = playerName
	m.startedAt = now
	m.totalScore = 0
	m.roundIndex = 0
	m.results = nil
	m.picker.Reset()
	m.beginRound()
	return true
}

// Tick advances the machine by one elapsed second. While Playing it counts
// the clock down and ends the round as a timeout at zero; a timeout is scored
// identically to any other non-match. During the transition pause it counts
// toward the next round instead.
func (m *Machine) Tick() *RoundOutcome {
	switch m.state {
	case domain.StateRoundTransition:
		m.transitionLeft--
		if m.transitionLeft <= 0 {
			m.beginRound()
		}
		return nil
	case domain.StatePlaying:
	default:
		return nil
	}

	m.secondsRemaining--
	if m.secondsRemaining <= 0 {
		m.secondsRemaining = 0
		return m.EndRound(false, nil, nil)
	}
	return nil
}

// EndRound closes the current round. Returns nil when the round has already
// ended or the machine is not Playing, which makes the operation idempotent:
// a late timer fire or a stale analysis result cannot double-score a round.
func (m *Machine) EndRound(matched bool, predictions []domain.Prediction, snapshot []byte) *RoundOutcome {
	if m.state != domain.StatePlaying || m.roundEnded {
		return nil
	}
	m.roundEnded = true

	points := 0
	if matched {
		points = basePoints + m.secondsRemaining*perSecondBonus
	}

	res := domain.RoundResult{
		Prompt:        m.prompt.Text,
		Snapshot:      snapshot,
		Predictions:   predictions,
		Matched:       matched,
		SecondsUsed:   domain.TimeLimit - m.secondsRemaining,
		PointsAwarded: points,
	}

	m.results = append(m.results, res)
	m.totalScore += points
	m.roundIndex++

	out := &RoundOutcome{
		Result:     res,
		RoundIndex: m.roundIndex,
	}

	if m.roundIndex == domain.TotalRounds {
		m.state = domain.StateResult
		out.GameOver = true
	} else {
		m.state = domain.StateRoundTransition
		m.transitionLeft = transitionSeconds
	}
	return out
}

// Skip gives up on the current round. Identical scoring consequences to a
// timeout or non-match.
func (m *Machine) Skip() *RoundOutcome {
	return m.EndRound(false, nil, nil)
}

// ShowLeaderboard moves from the result screen to the leaderboard.
func (m *Machine) ShowLeaderboard() bool {
	if m.state != domain.StateResult {
		return false
	}
	m.state = domain.StateLeaderboard
	return true
}

// Reset returns to Start from any state, clearing round, score and prompt
// state. The persisted leaderboard is never touched.
func (m *Machine) Reset() {
	m.state = domain.StateStart
	m.prompt = nil
	m.secondsRemaining = 0
	m.totalScore = 0
	m.roundIndex = 0
	m.results = nil
	m.roundEnded = false
	m.transitionLeft = 0
	m.gen++
}

func (m *Machine) beginRound() {
	p := m.picker.Next()
	m.prompt = &p
	m.state = domain.StatePlaying
	m.secondsRemaining = domain.TimeLimit
	m.roundEnded = false
	m.transitionLeft = 0
	m.gen++
}

// Generation identifies the current round instance. See the gen field.
func (m *Machine) Generation() int { return m.gen }

// State returns the current lifecycle phase.
func (m *Machine) State() domain.State { return m.state }

// Playing reports whether a round is currently running.
func (m *Machine) Playing() bool { return m.state == domain.StatePlaying }

// Prompt returns the active prompt text, or "" outside a round.
func (m *Machine) Prompt() string {
	if m.prompt == nil {
		return ""
	}
	return m.prompt.Text
}

// SecondsRemaining returns the time left in the current round.
func (m *Machine) SecondsRemaining() int { return m.secondsRemaining }

// View snapshots the session state for callers outside the service.
func (m *Machine) View(sessionID string) domain.Session {
	s := domain.Session{
		SessionID:        sessionID,
		PlayerName:       m.playerName,
		State:            m.state,
		SecondsRemaining: m.secondsRemaining,
		TotalScore:       m.totalScore,
		RoundIndex:       m.roundIndex,
		Results:          append([]domain.RoundResult(nil), m.results...),
		StartedAt:        m.startedAt,
	}
	if m.prompt != nil {
		p := *m.prompt
		s.CurrentPrompt = &p
	}
	return s
}
