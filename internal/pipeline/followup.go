package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/extract"
	"github.com/sells-group/beryl/internal/model"
)

// FollowupKind distinguishes the shapes of a follow-up response.
type FollowupKind string

const (
	FollowupRankedView FollowupKind = "ranked_view"
	FollowupFreeText   FollowupKind = "free_text"
	FollowupNoAnalysis FollowupKind = "no_analysis"
)

// Fixed follow-up answers.
const (
	MessageNoAnalysis     = "No analysis available yet. Please run a new search first."
	MessageFollowupFailed = "Sorry, I couldn't process that. Please try again."
)

// FollowupResponse answers one follow-up question. A ranked view carries
// Products re-ordered by Dimension and trimmed to the matched dimensions;
// the other kinds carry Answer.
type FollowupResponse struct {
	Kind       FollowupKind           `json:"kind"`
	Intro      string                 `json:"intro,omitempty"`
	Dimension  string                 `json:"dimension,omitempty"`
	Dimensions []string               `json:"dimensions,omitempty"`
	Products   []model.EntityAnalysis `json:"products,omitempty"`
	Answer     string                 `json:"answer,omitempty"`
}

// HandleFollowup answers text against the finished run. It never fails; a
// run without a result yields a no_analysis response.
func (c *Coordinator) HandleFollowup(ctx context.Context, text string) FollowupResponse {
	c.mu.RLock()
	result, schema := c.result, c.schema
	c.mu.RUnlock()

	if result == nil || len(result.Products) == 0 {
		return FollowupResponse{Kind: FollowupNoAnalysis, Answer: MessageNoAnalysis}
	}

	if matched := MatchDimensions(schema, text); len(matched) > 0 {
		zap.L().Info("pipeline: follow-up matched dimensions", zap.Strings("dimensions", matched))
		return rankedView(*result, schema, matched)
	}

	zap.L().Info("pipeline: follow-up has no dimension match, answering free-form")
	answer, err := extract.Answer(ctx, c.deps.Generator, text, *result)
	if err != nil {
		zap.L().Warn("pipeline: follow-up answer failed", zap.Error(err))
		return FollowupResponse{Kind: FollowupFreeText, Answer: MessageFollowupFailed}
	}
	return FollowupResponse{Kind: FollowupFreeText, Answer: answer}
}

// MatchDimensions returns, in schema order, the dimension keys mentioned in
// text. A dimension is mentioned when any word longer than two letters from
// its key or label occurs in text, ignoring case.
func MatchDimensions(schema model.Schema, text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, d := range schema.Dimensions() {
		words := append(strings.Fields(strings.ReplaceAll(d.Key, "_", " ")),
			strings.Fields(strings.ToLower(d.Label))...)
		for _, w := range words {
			if len(w) > 2 && strings.Contains(lower, w) {
				matched = append(matched, d.Key)
				break
			}
		}
	}
	return matched
}

// rankedView orders a copy of result's products by the first matched
// dimension, best first. An entity without that dimension ranks as zero.
func rankedView(result model.RunResult, schema model.Schema, matched []string) FollowupResponse {
	primary := matched[0]

	products := make([]model.EntityAnalysis, len(result.Products))
	for i, p := range result.Products {
		dims := make(map[string]model.DimensionScore, len(matched))
		for _, key := range matched {
			if ds, ok := p.Dimensions[key]; ok {
				dims[key] = ds
			}
		}
		p.Dimensions = dims
		products[i] = p
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].DimensionScoreOf(primary) > products[j].DimensionScoreOf(primary)
	})

	return FollowupResponse{
		Kind:       FollowupRankedView,
		Intro:      rankedIntro(products, schema, primary),
		Dimension:  primary,
		Dimensions: matched,
		Products:   products,
	}
}

func rankedIntro(products []model.EntityAnalysis, schema model.Schema, key string) string {
	label := schema.Label(key)
	if label == "" {
		label = extract.LabelFor(key)
	}
	top := products[0]
	score := strconv.FormatFloat(top.DimensionScoreOf(key), 'f', -1, 64)
	return fmt.Sprintf("Here are the products ranked by %s. %s leads with a score of %s/10.", label, top.Name, score)
}
