// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/resilience"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// Config configures an Embedder.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Dimensions truncates vectors when positive and the model supports it.
	Dimensions int
	Policy     resilience.Policy
}

// Embedder implements index.Embedder over the OpenAI API.
type Embedder struct {
	client sdk.Client
	cfg    Config
}

// NewEmbedder creates an Embedder. SDK-level retries are disabled in favour
// of cfg.Policy.
func NewEmbedder(cfg Config, opts ...option.RequestOption) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	return &Embedder{client: sdk.NewClient(append(base, opts...)...), cfg: cfg}
}

// Embed returns one vector per text in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := sdk.EmbeddingNewParams{
		Input:          sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          sdk.EmbeddingModel(e.cfg.Model),
		EncodingFormat: sdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.cfg.Dimensions > 0 {
		params.Dimensions = sdk.Int(int64(e.cfg.Dimensions))
	}

	resp, err := resilience.Call(ctx, e.cfg.Policy, func(ctx context.Context) (*sdk.CreateEmbeddingResponse, error) {
		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			var apiErr *sdk.Error
			if errors.As(err, &apiErr) {
				err = resilience.ClassifyStatus(err, apiErr.StatusCode)
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: create embeddings")
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, eris.Errorf("openai: embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, eris.Errorf("openai: missing embedding for input %d", i)
		}
	}

	zap.L().Debug("openai: embedded batch",
		zap.String("model", e.cfg.Model),
		zap.Int("texts", len(texts)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
	)
	return out, nil
}
