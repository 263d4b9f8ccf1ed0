package canvas_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/esketch/internal/canvas"
	"github.com/victornm/esketch/internal/domain"
)

func TestSnapshot_CanonicalSizeAndBackground(t *testing.T) {
	c := canvas.New()

	b, err := c.Snapshot()
	require.NoError(t, err)

	img := decodePNG(t, b)
	require.Equal(t, canvas.Width, img.Bounds().Dx())
	require.Equal(t, canvas.Height, img.Bounds().Dy())

	// Empty canvas is uniformly white, not transparent.
	r, g, bl, a := img.At(0, 0).RGBA()
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, color.RGBA{
		R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8),
	})
}

func TestSnapshot_RendersStrokes(t *testing.T) {
	c := canvas.New()
	c.BeginStroke(domain.Point{X: 50, Y: 200})
	c.ExtendStroke(domain.Point{X: 350, Y: 200})
	c.EndStroke()

	b, err := c.Snapshot()
	require.NoError(t, err)

	img := decodePNG(t, b)
	r, g, bl, _ := img.At(200, 200).RGBA()
	require.Zero(t, r>>8, "stroke pixel should be black")
	require.Zero(t, g>>8)
	require.Zero(t, bl>>8)
}

func TestSnapshot_Idempotent(t *testing.T) {
	c := canvas.New()
	c.BeginStroke(domain.Point{X: 10, Y: 10})
	c.ExtendStroke(domain.Point{X: 100, Y: 100})
	c.EndStroke()

	first, err := c.Snapshot()
	require.NoError(t, err)
	second, err := c.Snapshot()
	require.NoError(t, err)

	require.True(t, bytes.Equal(first, second), "snapshot must not mutate recorder state")
	require.Len(t, c.Strokes(), 1)
}

func TestExtendStroke_NoOpWithoutActiveStroke(t *testing.T) {
	c := canvas.New()
	c.ExtendStroke(domain.Point{X: 10, Y: 10})
	require.False(t, c.HasDrawing())

	c.BeginStroke(domain.Point{X: 1, Y: 1})
	c.EndStroke()
	c.ExtendStroke(domain.Point{X: 2, Y: 2})

	strokes := c.Strokes()
	require.Len(t, strokes, 1)
	require.Len(t, strokes[0].Points, 1, "extend after end must not append")
}

func TestClear(t *testing.T) {
	c := canvas.New()
	c.BeginStroke(domain.Point{X: 1, Y: 1})
	c.EndStroke()
	require.True(t, c.HasDrawing())

	c.Clear()
	require.False(t, c.HasDrawing())
}

func decodePNG(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}
