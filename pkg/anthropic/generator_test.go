package anthropic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/beryl/internal/resilience"
)

func fastPolicy() resilience.Policy {
	return resilience.Policy{Retry: resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}}
}

func textReply(s string) *MessageResponse {
	return &MessageResponse{Content: []ContentBlock{{Type: "text", Text: s}}}
}

func TestGenerator_Generate(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 4096 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Content == "prompt" &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(textReply("  answer \n"), nil)

	g := NewGenerator(client, GeneratorConfig{Model: "claude-haiku-4-5-20251001", Policy: fastPolicy()})
	out, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	client.AssertExpectations(t)
}

func TestGenerator_RetriesTransient(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textReply("ok"), nil).Once()

	g := NewGenerator(client, GeneratorConfig{Model: "m", Policy: fastPolicy()})
	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestGenerator_PermanentError(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid key"))

	g := NewGenerator(client, GeneratorConfig{Model: "m", Policy: fastPolicy()})
	_, err := g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: generate")
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestGenerator_EmptyReply(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&MessageResponse{}, nil)

	g := NewGenerator(client, GeneratorConfig{Model: "m", Policy: fastPolicy()})
	_, err := g.Generate(context.Background(), "p")
	assert.Error(t, err)
}

func TestGenerator_RateLimited(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textReply("ok"), nil)

	g := NewGenerator(client, GeneratorConfig{Model: "m", RequestsPerSecond: 20, Policy: fastPolicy()})
	start := time.Now()
	for range 3 {
		_, err := g.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	// Burst of 20 covers all three calls.
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	g = NewGenerator(client, GeneratorConfig{Model: "m", RequestsPerSecond: 0.5, Policy: fastPolicy()})
	_, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, "p")
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "CreateMessage", 4)
}
