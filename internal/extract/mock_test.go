package extract

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/beryl/internal/index"
	"github.com/sells-group/beryl/internal/model"
)

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// --- Retriever Mock ---

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Query(ctx context.Context, text string, k int, filter *index.Filter) ([]model.ContentUnit, error) {
	args := m.Called(ctx, text, k, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContentUnit), args.Error(1)
}

func (m *mockRetriever) QueryForEntity(ctx context.Context, name string, k int) ([]model.ContentUnit, error) {
	args := m.Called(ctx, name, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContentUnit), args.Error(1)
}
