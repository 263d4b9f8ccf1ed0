// Package match decides whether classifier output corresponds to the word the
// player was asked to draw.
package match

import (
	"strings"

	"github.com/victornm/esketch/internal/domain"
)

// Verdict is the outcome of evaluating classifier output against a target
// word. Confidence and BestLabel always reflect the top-ranked prediction,
// even when a lower-ranked prediction is what satisfied the match; the
// reported confidence is the model's best guess, not necessarily the matching
// one.
type Verdict struct {
	Matched    bool
	Confidence float64
	BestLabel  string
}

// Evaluate runs the fuzzy multi-strategy comparison between every prediction
// and the target word. The heuristic is deliberately lenient: the classifier
// was trained on photographs, not line drawings, so false positives like
// "car" matching "cargo" are an accepted tradeoff.
func Evaluate(predictions []domain.Prediction, target string) Verdict {
	if len(predictions) == 0 {
		return Verdict{}
	}

	v := Verdict{
		Confidence: predictions[0].Confidence,
		BestLabel:  predictions[0].Label,
	}

	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return v
	}

	for _, p := range predictions {
		if labelMatches(strings.ToLower(p.Label), target) {
			v.Matched = true
			break
		}
	}

	return v
}

func labelMatches(label, target string) bool {
	if label == "" {
		return false
	}

	// Substring in either direction: "dogs" hits "dog", "car" hits "racecar".
	if strings.Contains(label, target) || strings.Contains(target, label) {
		return true
	}

	for _, variant := range variants(target) {
		if strings.Contains(label, variant) || strings.Contains(variant, label) {
			return true
		}
	}

	for _, token := range tokenize(label) {
		if token == target {
			return true
		}
		for _, variant := range variants(target) {
			if token == variant {
				return true
			}
		}
		// Mutual prefix covers truncated labels in both directions.
		if strings.HasPrefix(token, target) || strings.HasPrefix(target, token) {
			return true
		}
		// Compound words: any token containing the target.
		if strings.Contains(token, target) {
			return true
		}
	}

	return false
}

// variants returns naive morphological variations of the target: its plural,
// the word with the last character stripped, and the word without a trailing
// "s".
func variants(target string) []string {
	vs := []string{target + "s"}
	if len(target) > 1 {
		vs = append(vs, target[:len(target)-1])
	}
	if trimmed := strings.TrimSuffix(target, "s"); trimmed != target && trimmed != "" {
		vs = append(vs, trimmed)
	}
	return vs
}

func tokenize(label string) []string {
	return strings.FieldsFunc(label, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}
