package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// DefaultDiscoveryTopK is how many passages entity discovery reads.
const DefaultDiscoveryTopK = 20

// DiscoverEntities asks gen to name the products mentioned in the passages
// most relevant to query. Failures yield an empty list.
func DiscoverEntities(ctx context.Context, gen Generator, r Retriever, query string, topK int) []string {
	if topK <= 0 {
		topK = DefaultDiscoveryTopK
	}

	units, err := r.Query(ctx, query, topK, nil)
	if err != nil {
		zap.L().Warn("extract: discovery retrieval failed", zap.Error(err))
		return nil
	}
	if len(units) == 0 {
		zap.L().Info("extract: no passages for discovery", zap.String("query", query))
		return nil
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}

	var raw []any
	if err := generateJSON(ctx, gen, fmt.Sprintf(entityPrompt, query, FormatPassages(texts)), &raw); err != nil {
		zap.L().Warn("extract: entity discovery failed", zap.Error(err))
		return nil
	}

	names := NormalizeNames(raw)
	zap.L().Info("extract: entities discovered",
		zap.Int("passages", len(units)),
		zap.Strings("entities", names),
	)
	return names
}

// NormalizeNames keeps the string items of raw, trimmed and NFC-normalized,
// dropping blanks and case-insensitive repeats. The first spelling wins.
func NormalizeNames(raw []any) []string {
	seen := make(map[string]bool)
	var names []string
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		name := strings.Join(strings.Fields(norm.NFC.String(s)), " ")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}

// FormatPassages numbers texts as prompt context.
func FormatPassages(texts []string) string {
	parts := make([]string, len(texts))
	for i, t := range texts {
		parts[i] = fmt.Sprintf("--- Chunk %d ---\n%s", i+1, t)
	}
	return strings.Join(parts, "\n\n")
}
