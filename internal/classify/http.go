package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/victornm/esketch/internal/domain"
	"github.com/victornm/esketch/internal/telemetry"
)

// HTTPClassifier talks to a model served over HTTP: GET /v1/status for the
// one-time warm-up, POST /v1/classify with a PNG body for predictions.
//
// Initialization happens once per process. There is no reload or retry: a
// failed load leaves the classifier permanently unready with LoadErr set, and
// the UI is expected to render a fatal error screen.
type HTTPClassifier struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	ready   bool
	loadErr error
}

func NewHTTP(baseURL string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Init warms up the model endpoint. Call once at application start; typically
// from a goroutine since model loading can take a while.
func (c *HTTPClassifier) Init(ctx context.Context) {
	err := c.ping(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.loadErr = fmt.Errorf("classify: load model: %w", err)
		slog.ErrorContext(ctx, "classify: initialization failed", "error", err)
		return
	}
	c.ready = true
	slog.InfoContext(ctx, "classify: model ready", "base_url", c.baseURL)
}

func (c *HTTPClassifier) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/status", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClassifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *HTTPClassifier) LoadErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// Classify sends the snapshot to the model and returns its ranked guesses.
// Any failure is recovered locally as an empty prediction list.
func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) []domain.Prediction {
	if !c.Ready() {
		return nil
	}

	start := time.Now()
	preds, err := c.classify(ctx, image)
	telemetry.ClassifyDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.Classifications.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "classify: request failed", "error", err)
		return nil
	}

	telemetry.Classifications.WithLabelValues("ok").Inc()
	return preds
}

func (c *HTTPClassifier) classify(ctx context.Context, image []byte) ([]domain.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("classifier status %d", resp.StatusCode)
	}

	var out struct {
		Predictions []struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	preds := make([]domain.Prediction, 0, len(out.Predictions))
	for _, p := range out.Predictions {
		preds = append(preds, domain.Prediction{Label: p.Label, Confidence: p.Confidence})
	}
	return preds, nil
}
