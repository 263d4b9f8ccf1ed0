// Package api exposes the game over a JSON HTTP API and pushes realtime
// notifications through Redis pubsub.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/esketch/internal/classify"
	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/errors"
	"github.com/victornm/esketch/internal/event"
	"github.com/victornm/esketch/internal/game"
	"github.com/victornm/esketch/internal/history"
	"github.com/victornm/esketch/internal/leaderboard"
)

// surfacedPredictions caps how many guesses the UI sees. Matching considers
// the full set; display does not.
const surfacedPredictions = 3

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Game         *game.Service
	Leaderboard  *leaderboard.Service
	History      *history.Service // nil when Postgres is not configured
	Classifier   classify.Classifier
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	gs *game.Service
	ls *leaderboard.Service
	hs *history.Service
	cl classify.Classifier

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		gs:     c.Game,
		ls:     c.Leaderboard,
		hs:     c.History,
		cl:     c.Classifier,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	r := c.Router
	r.GET("/health", a.health)

	r.POST("/api/games", a.createGame)
	r.GET("/api/games/:id", a.getGame)
	r.POST("/api/games/:id/start", a.startGame)
	r.POST("/api/games/:id/strokes", a.applyStrokes)
	r.POST("/api/games/:id/skip", a.skipRound)
	r.POST("/api/games/:id/reset", a.resetGame)
	r.POST("/api/games/:id/leaderboard", a.showLeaderboard)
	r.GET("/api/games/:id/snapshot", a.snapshot)

	r.GET("/api/leaderboard", a.leaderboard)
	if a.hs != nil {
		r.GET("/api/history", a.listHistory)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameRoundEnded, func(ctx context.Context, e event.Event) error {
		return a.PublishRoundEnded(ctx, e.(domain.EventRoundEnded))
	})
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

// health reports liveness plus the classifier's load state. A load failure is
// terminal for the process: the UI renders a fatal error screen from this
// payload.
func (a *API) health(c *gin.Context) {
	resp := gin.H{
		"ok":              true,
		"classifierReady": a.cl.Ready(),
	}
	if err := a.cl.LoadErr(); err != nil {
		resp["ok"] = false
		resp["loadError"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type createGameRequest struct {
	PlayerName string `json:"playerName"`
}

func (a *API) createGame(c *gin.Context) {
	var req createGameRequest
	if err := c.BindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	v, err := a.gs.StartGame(c.Request.Context(), req.PlayerName)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionView(v))
}

func (a *API) getGame(c *gin.Context) {
	v, err := a.gs.Get(c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionView(v))
}

func (a *API) startGame(c *gin.Context) {
	var req createGameRequest
	if err := c.BindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	v, err := a.gs.Restart(c.Request.Context(), c.Param("id"), req.PlayerName)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionView(v))
}

type strokeEventView struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type applyStrokesRequest struct {
	Events []strokeEventView `json:"events"`
}

func (a *API) applyStrokes(c *gin.Context) {
	var req applyStrokesRequest
	if err := c.BindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	events := make([]game.StrokeEvent, 0, len(req.Events))
	for _, e := range req.Events {
		events = append(events, game.StrokeEvent{Type: e.Type, X: e.X, Y: e.Y})
	}

	if err := a.gs.ApplyStrokes(c.Param("id"), events); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) skipRound(c *gin.Context) {
	v, err := a.gs.Skip(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionView(v))
}

func (a *API) resetGame(c *gin.Context) {
	v, err := a.gs.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionView(v))
}

func (a *API) showLeaderboard(c *gin.Context) {
	v, err := a.gs.ShowLeaderboard(c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionView(v))
}

func (a *API) snapshot(c *gin.Context) {
	png, err := a.gs.Snapshot(c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (a *API) leaderboard(c *gin.Context) {
	l, err := a.ls.Get(c.Request.Context())
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLeaderboardView(*l))
}

func (a *API) listHistory(c *gin.Context) {
	records, err := a.hs.ListRecent(c.Request.Context(), history.ListRecentRequest{})
	if err != nil {
		abortError(c, err)
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		out = append(out, gin.H{
			"sessionId":     r.SessionID,
			"playerName":    r.PlayerName,
			"score":         r.Score,
			"matchedRounds": r.MatchedRounds,
			"startedAt":     r.StartedAt,
			"finishedAt":    r.FinishedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

func abortError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
