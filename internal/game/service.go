// Package game runs drawing-game sessions: a five-round loop of prompt,
// countdown, periodic sketch recognition and scoring.
package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/esketch/internal/canvas"
	"github.com/victornm/esketch/internal/catalog"
	"github.com/victornm/esketch/internal/classify"
	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/errors"
	"github.com/victornm/esketch/internal/event"
	"github.com/victornm/esketch/internal/match"
	"github.com/victornm/esketch/internal/telemetry"
)

const (
	// analysisInterval throttles recognition: at most one classifier call per
	// second per session, guarded by a timestamp and an in-flight flag rather
	// than a queue. A drawing update arriving mid-analysis is picked up by
	// the next eligible cycle.
	analysisInterval = time.Second

	analysisTimeout = 10 * time.Second

	defaultSessionTTL = 30 * time.Minute
)

// Ticker abstracts the one-second engine clock so tests can drive a full game
// in simulated time.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// StrokeEvent is a normalized pointer event from the drawing surface.
type StrokeEvent struct {
	Type string  // "begin", "point" or "end"
	X    float64 // canvas-relative
	Y    float64
}

const (
	StrokeBegin = "begin"
	StrokePoint = "point"
	StrokeEnd   = "end"
)

// View is the session state handed to the API layer.
type View struct {
	domain.Session
	LatestPredictions []domain.Prediction
}

type Config struct {
	EventBus   *event.Bus
	Catalog    *catalog.Catalog
	Classifier classify.Classifier

	// NewTickerFunc and Now default to real time; tests inject both.
	NewTickerFunc func(d time.Duration) Ticker
	Now           func() time.Time

	SessionTTL time.Duration
}

type Service struct {
	eb         *event.Bus
	catalog    *catalog.Catalog
	classifier classify.Classifier
	newTicker  func(d time.Duration) Ticker
	now        func() time.Time
	ttl        time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

type session struct {
	mu sync.Mutex

	id     string
	m      *Machine
	canvas *canvas.Canvas

	latestPreds      []domain.Prediction
	analysisInFlight bool
	lastAnalysisAt   time.Time

	lastActive time.Time
	engineStop chan struct{}
}

func NewService(c Config) *Service {
	s := &Service{
		eb:         c.EventBus,
		catalog:    c.Catalog,
		classifier: c.Classifier,
		newTicker:  c.NewTickerFunc,
		now:        c.Now,
		ttl:        c.SessionTTL,
		sessions:   make(map[string]*session),

		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}

	if s.newTicker == nil {
		s.newTicker = func(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ttl <= 0 {
		s.ttl = defaultSessionTTL
	}

	go s.janitor()

	return s
}

// Stop shuts down all session engines and the expiry janitor.
func (s *Service) Stop() {
	close(s.stopJanitor)
	<-s.janitorDone

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.mu.Lock()
		s.stopEngineLocked(sess)
		sess.mu.Unlock()
	}
}

// StartGame creates a session for playerName and starts its first round.
func (s *Service) StartGame(ctx context.Context, playerName string) (View, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return View{}, errors.Internal(err)
	}

	now := s.now()
	sess := &session{
		id:         id.String(),
		m:          NewMachine(s.catalog.NewPicker(now.UnixNano())),
		canvas:     canvas.New(),
		lastActive: now,
	}
	sess.m.StartGame(playerName, now)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	s.startEngineLocked(sess)
	v := s.viewLocked(sess)
	sess.mu.Unlock()

	telemetry.GamesStarted.Inc()
	slog.InfoContext(ctx, "game: session started", "session", sess.id, "player", v.PlayerName)
	return v, nil
}

// Restart begins a new game on an existing session. Valid only from the
// start, result or leaderboard screens.
func (s *Service) Restart(ctx context.Context, sessionID, playerName string) (View, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.m.StartGame(playerName, s.now()) {
		return View{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot start a game while state is %q", sess.m.State()))
	}

	sess.canvas.Clear()
	sess.latestPreds = nil
	sess.lastActive = s.now()
	s.startEngineLocked(sess)

	telemetry.GamesStarted.Inc()
	slog.InfoContext(ctx, "game: session restarted", "session", sessionID)
	return s.viewLocked(sess), nil
}

// Get returns the current session view.
func (s *Service) Get(sessionID string) (View, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.viewLocked(sess), nil
}

// ApplyStrokes feeds pointer events into the session's canvas. Strokes
// arriving outside an active round are dropped without error.
func (s *Service) ApplyStrokes(sessionID string, events []StrokeEvent) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = s.now()

	if !sess.m.Playing() {
		return nil
	}

	for _, e := range events {
		switch e.Type {
		case StrokeBegin:
			sess.canvas.BeginStroke(domain.Point{X: e.X, Y: e.Y})
		case StrokePoint:
			sess.canvas.ExtendStroke(domain.Point{X: e.X, Y: e.Y})
		case StrokeEnd:
			sess.canvas.EndStroke()
		}
	}
	return nil
}

// Skip ends the current round with no points, same as a timeout.
func (s *Service) Skip(ctx context.Context, sessionID string) (View, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = s.now()

	if out := sess.m.Skip(); out != nil {
		s.handleOutcomeLocked(ctx, sess, out)
	}
	return s.viewLocked(sess), nil
}

// Reset returns the session to the start screen. The persisted leaderboard
// is untouched.
func (s *Service) Reset(ctx context.Context, sessionID string) (View, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = s.now()

	s.stopEngineLocked(sess)
	sess.m.Reset()
	sess.canvas.Clear()
	sess.latestPreds = nil

	slog.InfoContext(ctx, "game: session reset", "session", sessionID)
	return s.viewLocked(sess), nil
}

// ShowLeaderboard moves a finished game from the result screen to the
// leaderboard screen.
func (s *Service) ShowLeaderboard(sessionID string) (View, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = s.now()

	if !sess.m.ShowLeaderboard() {
		return View{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("leaderboard is only reachable from the result screen, state is %q", sess.m.State()))
	}
	return s.viewLocked(sess), nil
}

// Snapshot renders the session's current drawing as PNG.
func (s *Service) Snapshot(sessionID string) ([]byte, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.canvas.Snapshot()
}

func (s *Service) get(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session not found: %s", sessionID))
	}
	return sess, nil
}

func (s *Service) viewLocked(sess *session) View {
	return View{
		Session:           sess.m.View(sess.id),
		LatestPredictions: append([]domain.Prediction(nil), sess.latestPreds...),
	}
}

// startEngineLocked launches the per-session tick loop. Caller holds sess.mu.
func (s *Service) startEngineLocked(sess *session) {
	if sess.engineStop != nil {
		return
	}
	stop := make(chan struct{})
	sess.engineStop = stop
	go s.runEngine(sess, stop)
}

// stopEngineLocked cancels the pending timer. Caller holds sess.mu.
func (s *Service) stopEngineLocked(sess *session) {
	if sess.engineStop != nil {
		close(sess.engineStop)
		sess.engineStop = nil
	}
}

func (s *Service) runEngine(sess *session, stop chan struct{}) {
	t := s.newTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if done := s.tick(sess); done {
				return
			}
		}
	}
}

// tick advances the session by one second: countdown first, then the
// throttled recognition cycle.
func (s *Service) tick(sess *session) (done bool) {
	ctx := context.Background()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	genBefore := sess.m.Generation()

	if out := sess.m.Tick(); out != nil {
		s.handleOutcomeLocked(ctx, sess, out)
	}

	// A new round began this tick (transition pause elapsed): fresh canvas,
	// fresh predictions.
	if sess.m.Generation() != genBefore {
		sess.canvas.Clear()
		sess.latestPreds = nil
	}

	switch sess.m.State() {
	case domain.StatePlaying, domain.StateRoundTransition:
	default:
		return true
	}

	if !sess.m.Playing() {
		return false
	}

	now := s.now()
	if sess.canvas.HasDrawing() && !sess.analysisInFlight && now.Sub(sess.lastAnalysisAt) >= analysisInterval {
		sess.analysisInFlight = true
		sess.lastAnalysisAt = now
		go s.analyze(sess, sess.m.Generation(), sess.m.Prompt())
	}
	return false
}

// analyze runs one recognition cycle: snapshot, classify, evaluate. A result
// arriving after its round has ended is dropped silently.
func (s *Service) analyze(sess *session, gen int, target string) {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	snap, err := sess.canvas.Snapshot()
	if err != nil {
		slog.WarnContext(ctx, "game: snapshot failed", "session", sess.id, "error", err)
		sess.mu.Lock()
		sess.analysisInFlight = false
		sess.mu.Unlock()
		return
	}

	preds := s.classifier.Classify(ctx, snap)
	verdict := match.Evaluate(preds, target)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.analysisInFlight = false
	if sess.m.Generation() != gen || !sess.m.Playing() {
		return
	}

	sess.latestPreds = preds
	if verdict.Matched {
		if out := sess.m.EndRound(true, preds, snap); out != nil {
			telemetry.RoundsMatched.Inc()
			s.handleOutcomeLocked(ctx, sess, out)
		}
	}
}

// handleOutcomeLocked publishes round/game events for an ended round. Caller
// holds sess.mu.
func (s *Service) handleOutcomeLocked(ctx context.Context, sess *session, out *RoundOutcome) {
	s.eb.Publish(ctx, domain.EventRoundEnded{
		SessionID:  sess.id,
		Round:      out.Result,
		RoundIndex: out.RoundIndex,
	})

	if out.GameOver {
		s.stopEngineLocked(sess)
		telemetry.GamesCompleted.Inc()
		s.eb.Publish(ctx, domain.EventGameEnded{Session: sess.m.View(sess.id)})
		slog.InfoContext(ctx, "game: session finished",
			"session", sess.id,
			"score", sess.m.View(sess.id).TotalScore,
		)
	}
}

// janitor drops sessions idle beyond the TTL.
func (s *Service) janitor() {
	defer close(s.janitorDone)

	t := time.NewTicker(time.Minute)
	defer t.Stop()

	for {
		select {
		case <-s.stopJanitor:
			return
		case <-t.C:
			s.expire()
		}
	}
}

func (s *Service) expire() {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		if idle {
			s.stopEngineLocked(sess)
		}
		sess.mu.Unlock()

		if idle {
			delete(s.sessions, id)
			slog.Info("game: session expired", "session", id)
		}
	}
}
