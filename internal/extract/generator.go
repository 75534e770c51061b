// Package extract runs the three language-model stages of a run: choosing
// comparison dimensions, naming candidate entities and scoring each entity
// against retrieved evidence.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/beryl/internal/index"
	"github.com/sells-group/beryl/internal/model"
)

// Generator produces a text completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever is the read side of the run's index.
type Retriever interface {
	Query(ctx context.Context, text string, k int, filter *index.Filter) ([]model.ContentUnit, error)
	QueryForEntity(ctx context.Context, name string, k int) ([]model.ContentUnit, error)
}

// CleanJSON extracts a JSON object or array from text that may be wrapped in
// markdown fences or surrounded by commentary.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Trim to whichever structure opens first.
	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")
	open, closer := obj, "}"
	if arr >= 0 && (obj < 0 || arr < obj) {
		open, closer = arr, "]"
	}
	if open >= 0 {
		if end := strings.LastIndex(text, closer); end > open {
			text = text[open : end+1]
		}
	}

	return strings.TrimSpace(text)
}

// generateJSON runs prompt through gen and decodes the cleaned reply into out.
func generateJSON(ctx context.Context, gen Generator, prompt string, out any) error {
	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return eris.Wrap(err, "extract: generate")
	}
	if err := json.Unmarshal([]byte(CleanJSON(text)), out); err != nil {
		return eris.Wrap(err, "extract: parse reply")
	}
	return nil
}
