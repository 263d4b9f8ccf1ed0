package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/esketch/internal/api"
	"github.com/victornm/esketch/internal/catalog"
	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/event"
	"github.com/victornm/esketch/internal/game"
	"github.com/victornm/esketch/internal/leaderboard"
)

func TestAPI_CreateAndGetGame(t *testing.T) {
	r := makeRouter(t)

	w := doJSON(r, http.MethodPost, "/api/games", `{"playerName":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		SessionID   string `json:"sessionId"`
		PlayerName  string `json:"playerName"`
		State       string `json:"state"`
		TotalRounds int    `json:"totalRounds"`
		Prompt      *struct {
			Text string `json:"text"`
		} `json:"prompt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	require.Equal(t, "alice", created.PlayerName)
	require.Equal(t, string(domain.StatePlaying), created.State)
	require.Equal(t, domain.TotalRounds, created.TotalRounds)
	require.NotNil(t, created.Prompt, "a new game starts with a prompt on screen")

	w = doJSON(r, http.MethodGet, "/api/games/"+created.SessionID, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_UnknownSessionIs404(t *testing.T) {
	r := makeRouter(t)

	w := doJSON(r, http.MethodGet, "/api/games/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_BadStrokePayloadIs400(t *testing.T) {
	r := makeRouter(t)

	w := doJSON(r, http.MethodPost, "/api/games", `{"playerName":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, "/api/games/"+created.SessionID+"/strokes", `{"events": "not a list"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_SnapshotIsPNG(t *testing.T) {
	r := makeRouter(t)

	w := doJSON(r, http.MethodPost, "/api/games", `{"playerName":"alice"}`)
	var created struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, "/api/games/"+created.SessionID+"/strokes",
		`{"events":[{"type":"begin","x":10,"y":10},{"type":"point","x":50,"y":50},{"type":"end"}]}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodGet, "/api/games/"+created.SessionID+"/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Equal(t, "\x89PNG", w.Body.String()[:4])
}

func TestAPI_RestartMidGameIs409(t *testing.T) {
	r := makeRouter(t)

	w := doJSON(r, http.MethodPost, "/api/games", `{"playerName":"alice"}`)
	var created struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, "/api/games/"+created.SessionID+"/start", `{"playerName":"alice"}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_Health(t *testing.T) {
	r := makeRouter(t)

	w := doJSON(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		OK              bool `json:"ok"`
		ClassifierReady bool `json:"classifierReady"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.OK)
	require.True(t, resp.ClassifierReady)
}

func TestAPI_Leaderboard(t *testing.T) {
	r := makeRouter(t)

	w := doJSON(r, http.MethodGet, "/api/leaderboard", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []any `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Empty(t, resp.Entries)
}

type readyClassifier struct{}

func (readyClassifier) Ready() bool    { return true }
func (readyClassifier) LoadErr() error { return nil }
func (readyClassifier) Classify(context.Context, []byte) []domain.Prediction {
	return nil
}

func makeRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err())

	prompts, err := catalog.Load()
	require.NoError(t, err)

	eb := event.NewBus()

	gs := game.NewService(game.Config{
		EventBus:   eb,
		Catalog:    prompts,
		Classifier: readyClassifier{},
	})
	t.Cleanup(gs.Stop)

	ls := leaderboard.NewService(leaderboard.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "test",
	})

	r := gin.New()
	api.New(api.Config{
		Router:       r,
		EventBus:     eb,
		Game:         gs,
		Leaderboard:  ls,
		Classifier:   readyClassifier{},
		Redis:        rc,
		PubsubPrefix: "test",
	})

	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
