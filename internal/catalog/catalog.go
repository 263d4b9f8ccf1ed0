// Package catalog holds the fixed list of drawable prompts and hands them out
// randomly without repeats within a game.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/victornm/esketch/internal/domain"
)

//go:embed prompts.json
var promptsJSON []byte

// Catalog is the full prompt list, loaded once from the embedded file.
type Catalog struct {
	prompts []domain.Prompt
}

// Load parses the embedded prompt list.
func Load() (*Catalog, error) {
	var raw []struct {
		ID       int    `json:"id"`
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(promptsJSON, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse prompts: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("catalog: prompt list is empty")
	}

	c := &Catalog{prompts: make([]domain.Prompt, 0, len(raw))}
	for _, p := range raw {
		c.prompts = append(c.prompts, domain.Prompt{
			ID:       p.ID,
			Text:     p.Text,
			Category: p.Category,
		})
	}
	return c, nil
}

// Len returns the number of prompts in the catalog.
func (c *Catalog) Len() int {
	return len(c.prompts)
}

// Picker selects prompts randomly without replacement. Once the catalog is
// exhausted any prompt, including repeats, may be selected again.
type Picker struct {
	mu      sync.Mutex
	catalog *Catalog
	rng     *rand.Rand
	used    map[int]bool
}

// NewPicker creates a picker over the catalog, seeded by seed.
func (c *Catalog) NewPicker(seed int64) *Picker {
	return &Picker{
		catalog: c,
		rng:     rand.New(rand.NewSource(seed)),
		used:    make(map[int]bool),
	}
}

// Reset forgets which prompts have been handed out. Called when a new game
// starts so exclusions only apply within a single game.
func (p *Picker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used = make(map[int]bool)
}

// Next returns a random prompt not yet handed out by this picker. When every
// prompt has been used the used set is cleared and selection starts over.
func (p *Picker) Next() domain.Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := make([]domain.Prompt, 0, p.catalog.Len())
	for _, pr := range p.catalog.prompts {
		if !p.used[pr.ID] {
			remaining = append(remaining, pr)
		}
	}

	if len(remaining) == 0 {
		p.used = make(map[int]bool)
		remaining = p.catalog.prompts
	}

	pick := remaining[p.rng.Intn(len(remaining))]
	p.used[pick.ID] = true
	return pick
}
