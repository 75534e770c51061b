package anthropic

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/beryl/internal/resilience"
)

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Model     string
	MaxTokens int64
	// RequestsPerSecond bounds message calls across every caller of the
	// Generator. Zero means unlimited.
	RequestsPerSecond float64
	Policy            resilience.Policy
}

// Generator sends one prompt per call as a single user turn at temperature 0.
type Generator struct {
	client  Client
	cfg     GeneratorConfig
	limiter *rate.Limiter
}

// NewGenerator wraps client.
func NewGenerator(client Client, cfg GeneratorConfig) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	g := &Generator{client: client, cfg: cfg}
	if rps := cfg.RequestsPerSecond; rps > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	return g
}

// wait blocks until the rate limiter allows one request, or ctx is cancelled.
func (g *Generator) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Generate returns the reply text for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	temp := 0.0
	req := MessageRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	resp, err := resilience.Call(ctx, g.cfg.Policy, func(ctx context.Context) (*MessageResponse, error) {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		return g.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: generate")
	}
	resp.Usage.LogCost(g.cfg.Model, "generate")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("anthropic: empty reply")
	}
	return text, nil
}
