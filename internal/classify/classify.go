// Package classify wraps the external pre-trained image classifier. The game
// only depends on the Classifier contract, not on the specific model behind
// it.
package classify

import (
	"context"

	"github.com/victornm/esketch/internal/domain"
)

// Classifier recognizes a raster sketch and returns ranked guesses.
//
// Classify returns predictions in descending confidence order. It returns an
// empty slice when the classifier is not ready or on internal failure; it
// never surfaces an error to the game loop — the round simply continues until
// the next analysis cycle succeeds.
type Classifier interface {
	Ready() bool
	LoadErr() error
	Classify(ctx context.Context, image []byte) []domain.Prediction
}
