// Package canvas records pointer strokes and exports raster snapshots for
// classification.
package canvas

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/fogleman/gg"

	"github.com/victornm/esketch/internal/domain"
)

// Every snapshot uses the same canonical raster size. The classifier's
// accuracy is sensitive to input resolution and aspect ratio, so this must
// stay constant rather than auto-fit to the client's viewport.
const (
	Width  = 400
	Height = 400
)

const strokeWidth = 8

// Canvas accumulates strokes for one game session and renders them to PNG on
// demand. The drawing surface is always pre-filled with a uniform white
// background: the classifier expects photograph-like input, not transparent
// pixels.
type Canvas struct {
	mu      sync.Mutex
	strokes []domain.Stroke
	active  bool
}

func New() *Canvas {
	return &Canvas{}
}

// BeginStroke starts a new stroke at p. Each new drag/touch gesture begins a
// new stroke.
func (c *Canvas) BeginStroke(p domain.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.strokes = append(c.strokes, domain.Stroke{Points: []domain.Point{p}})
	c.active = true
}

// ExtendStroke appends p to the active stroke. No-op when no stroke is
// active.
func (c *Canvas) ExtendStroke(p domain.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || len(c.strokes) == 0 {
		return
	}
	last := len(c.strokes) - 1
	c.strokes[last].Points = append(c.strokes[last].Points, p)
}

// EndStroke closes the active stroke.
func (c *Canvas) EndStroke() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = false
}

// Clear drops all recorded strokes.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.strokes = nil
	c.active = false
}

// HasDrawing reports whether at least one stroke has been recorded.
func (c *Canvas) HasDrawing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.strokes) > 0
}

// Strokes returns a copy of the recorded strokes.
func (c *Canvas) Strokes() []domain.Stroke {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Stroke, len(c.strokes))
	for i, s := range c.strokes {
		out[i] = domain.Stroke{Points: append([]domain.Point(nil), s.Points...)}
	}
	return out
}

// Snapshot renders the current strokes to a PNG at the canonical size. It is
// idempotent and does not mutate recorder state; callable at any time,
// including with no strokes recorded.
func (c *Canvas) Snapshot() ([]byte, error) {
	strokes := c.Strokes()

	dc := gg.NewContext(Width, Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(strokeWidth)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		if len(s.Points) == 1 {
			// A tap with no drag still leaves a mark.
			dc.DrawPoint(s.Points[0].X, s.Points[0].Y, strokeWidth/2)
			dc.Fill()
			continue
		}
		dc.MoveTo(s.Points[0].X, s.Points[0].Y)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("canvas: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
