package extract

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/model"
)

// DefaultEntityTopK is how many passages are retrieved per entity.
const DefaultEntityTopK = 5

// AnalyzerOptions tunes per-entity analysis.
type AnalyzerOptions struct {
	TopK int
	// EnforceEvidence drops quotes that do not appear verbatim in the
	// passages given to the model. Either way, citation fields come only from
	// the passage that contains the quote, never from the reply.
	EnforceEvidence bool
}

// Analyzer scores one entity at a time against its retrieved passages.
type Analyzer struct {
	gen  Generator
	ret  Retriever
	opts AnalyzerOptions
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(gen Generator, ret Retriever, opts AnalyzerOptions) *Analyzer {
	if opts.TopK <= 0 {
		opts.TopK = DefaultEntityTopK
	}
	return &Analyzer{gen: gen, ret: ret, opts: opts}
}

// Analyze produces the analysis of entity over schema, or nil when there is
// nothing to analyze or the model reply is unusable.
func (a *Analyzer) Analyze(ctx context.Context, entity string, schema model.Schema) *model.EntityAnalysis {
	log := zap.L().With(zap.String("entity", entity))

	units, err := a.ret.QueryForEntity(ctx, entity, a.opts.TopK)
	if err != nil {
		log.Warn("extract: entity retrieval failed", zap.Error(err))
		return nil
	}
	if len(units) == 0 {
		log.Info("extract: no passages for entity, skipping")
		return nil
	}

	relevant := FilterByMention(units, entity)
	if len(relevant) == 0 {
		log.Info("extract: no passage mentions entity, skipping", zap.Int("retrieved", len(units)))
		return nil
	}

	prompt := fmt.Sprintf(analysisPrompt,
		entity, formatDimensions(schema), entity, entity, FormatUnits(relevant))

	var reply map[string]any
	if err := generateJSON(ctx, a.gen, prompt, &reply); err != nil {
		log.Warn("extract: analysis failed", zap.Error(err))
		return nil
	}
	if reply == nil {
		log.Warn("extract: analysis reply was not an object")
		return nil
	}

	analysis := a.parse(reply, entity, schema, relevant)
	log.Info("extract: entity analyzed",
		zap.Int("passages", len(relevant)),
		zap.Int("dimensions", len(analysis.Dimensions)),
		zap.Float64("overall_score", analysis.Overall()),
	)
	return analysis
}

func (a *Analyzer) parse(data map[string]any, entity string, schema model.Schema, units []model.ContentUnit) *model.EntityAnalysis {
	out := &model.EntityAnalysis{
		Name:       entity,
		Dimensions: make(map[string]model.DimensionScore),
	}
	if name, ok := data["name"].(string); ok && strings.TrimSpace(name) != "" {
		out.Name = strings.TrimSpace(name)
	}
	out.Price = parsePrice(data["price"])
	if score, ok := toFloat(data["overall_score"]); ok {
		s := clampScore(score)
		out.OverallScore = &s
	}
	if verdict, ok := data["verdict"].(string); ok && strings.TrimSpace(verdict) != "" {
		v := strings.TrimSpace(verdict)
		out.Verdict = &v
	}

	features, _ := data["features"].(map[string]any)
	for rawKey, rawVal := range features {
		key := NormalizeKey(rawKey)
		if !schema.Has(key) {
			continue
		}
		fd, ok := rawVal.(map[string]any)
		if !ok {
			continue
		}
		score, _ := toFloat(fd["score"])
		summary, _ := fd["summary"].(string)

		items, _ := fd["evidence"].([]any)
		out.Dimensions[key] = model.DimensionScore{
			Score:    clampScore(score),
			Summary:  strings.TrimSpace(summary),
			Evidence: a.evidence(items, entity, key, units),
		}
	}
	return out
}

func (a *Analyzer) evidence(items []any, entity, key string, units []model.ContentUnit) []model.Evidence {
	out := make([]model.Evidence, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		quote, _ := m["quote"].(string)
		quote = strings.TrimSpace(quote)
		if quote == "" {
			continue
		}

		u, ok := FindQuote(units, quote)
		switch {
		case ok:
			out = append(out, EvidenceFromUnit(quote, u))
		case !a.opts.EnforceEvidence:
			// Unmatched quotes carry no source link.
			out = append(out, model.Evidence{Quote: quote})
		default:
			zap.L().Debug("extract: dropping unverifiable quote",
				zap.String("entity", entity),
				zap.String("dimension", key),
				zap.String("quote", quote),
			)
		}
	}
	return out
}

// FindQuote returns the first unit whose text contains quote verbatim,
// ignoring case only.
func FindQuote(units []model.ContentUnit, quote string) (model.ContentUnit, bool) {
	q := strings.ToLower(quote)
	if strings.TrimSpace(q) == "" {
		return model.ContentUnit{}, false
	}
	for _, u := range units {
		if strings.Contains(strings.ToLower(u.Text), q) {
			return u, true
		}
	}
	return model.ContentUnit{}, false
}

// EvidenceFromUnit cites quote with the provenance of u.
func EvidenceFromUnit(quote string, u model.ContentUnit) model.Evidence {
	ev := model.Evidence{
		Quote:      quote,
		SourceName: u.SourceName,
		SourceType: u.SourceType,
		URL:        u.URL,
	}
	if u.Timestamp != "" {
		ts := u.Timestamp
		ev.Timestamp = &ts
	}
	return ev
}

// MentionVariants returns the lowercase spellings used to decide whether a
// passage mentions name: the full name, the name without its first word and
// the last word. A generic last word such as "pro" also matches passages
// about other products.
func MentionVariants(name string) []string {
	parts := strings.Fields(strings.ToLower(name))
	if len(parts) == 0 {
		return nil
	}
	candidates := []string{strings.Join(parts, " ")}
	if len(parts) > 1 {
		candidates = append(candidates, strings.Join(parts[1:], " "), parts[len(parts)-1])
	}

	var out []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// FilterByMention keeps the units whose text contains a mention variant of name.
func FilterByMention(units []model.ContentUnit, name string) []model.ContentUnit {
	variants := MentionVariants(name)
	var out []model.ContentUnit
	for _, u := range units {
		text := strings.ToLower(u.Text)
		for _, v := range variants {
			if strings.Contains(text, v) {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// FormatUnits numbers units as prompt context with their citation headers.
func FormatUnits(units []model.ContentUnit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		var b strings.Builder
		fmt.Fprintf(&b, "--- Chunk %d ---\n", i+1)
		fmt.Fprintf(&b, "Source: %s\nType: %s\nURL: %s\n", u.SourceName, u.SourceType, u.URL)
		if u.Timestamp != "" {
			fmt.Fprintf(&b, "Timestamp: %s\n", u.Timestamp)
		}
		b.WriteString("\n")
		b.WriteString(u.Text)
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n\n")
}

func formatDimensions(schema model.Schema) string {
	lines := make([]string, 0, schema.Len())
	for _, d := range schema.Dimensions() {
		lines = append(lines, fmt.Sprintf("- %s: %s", d.Key, d.Label))
	}
	return strings.Join(lines, "\n")
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// parsePrice accepts numbers and numeric strings with currency symbols or
// thousands separators. Fractions are truncated.
func parsePrice(v any) *int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		digits := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, n)
		parsed, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	p := int(f)
	return &p
}
