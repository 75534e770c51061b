package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/beryl/internal/model"
)

// MaxDimensions caps the number of dimensions a run compares.
const MaxDimensions = 5

var fallbackKeys = []string{"quality", "performance", "battery_life", "value_for_money", "design"}

// FallbackSchema is used whenever dimension discovery fails.
func FallbackSchema() model.Schema {
	dims := make([]model.Dimension, len(fallbackKeys))
	for i, k := range fallbackKeys {
		dims[i] = model.Dimension{Key: k, Label: LabelFor(k)}
	}
	return model.NewSchema(dims)
}

type schemaReply struct {
	Features      []any          `json:"features"`
	FeatureLabels map[string]any `json:"feature_labels"`
}

// DiscoverSchema asks gen for the dimensions that matter for query within
// category. It never fails: any error yields FallbackSchema.
func DiscoverSchema(ctx context.Context, gen Generator, query, category string) model.Schema {
	var reply schemaReply
	if err := generateJSON(ctx, gen, fmt.Sprintf(schemaPrompt, query, category), &reply); err != nil {
		zap.L().Warn("extract: schema discovery failed, using fallback", zap.Error(err))
		return FallbackSchema()
	}

	labels := make(map[string]string, len(reply.FeatureLabels))
	for k, v := range reply.FeatureLabels {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			labels[NormalizeKey(k)] = strings.TrimSpace(s)
		}
	}

	seen := make(map[string]bool)
	var dims []model.Dimension
	for _, raw := range reply.Features {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		key := NormalizeKey(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		label := labels[key]
		if label == "" {
			label = LabelFor(key)
		}
		dims = append(dims, model.Dimension{Key: key, Label: label})
		if len(dims) == MaxDimensions {
			break
		}
	}

	if len(dims) == 0 {
		zap.L().Warn("extract: schema discovery returned no usable keys, using fallback")
		return FallbackSchema()
	}

	zap.L().Info("extract: schema discovered",
		zap.String("category", category),
		zap.Strings("keys", model.NewSchema(dims).Keys()),
	)
	return model.NewSchema(dims)
}

// NormalizeKey lowercases s and joins its alphanumeric runs with underscores.
func NormalizeKey(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "_")
}

// LabelFor derives a display label from a lower_snake key.
func LabelFor(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}
