package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestDiscoverSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reply      string
		err        error
		wantKeys   []string
		wantLabels []string
	}{
		{
			name:       "labels supplied",
			reply:      "```json\n{\"features\":[\"sound_quality\",\"bass\"],\"feature_labels\":{\"sound_quality\":\"Sound Quality\",\"bass\":\"Deep Bass\"}}\n```",
			wantKeys:   []string{"sound_quality", "bass"},
			wantLabels: []string{"Sound Quality", "Deep Bass"},
		},
		{
			name:       "missing labels are derived",
			reply:      `{"features":["battery_life","noise_cancellation"]}`,
			wantKeys:   []string{"battery_life", "noise_cancellation"},
			wantLabels: []string{"Battery Life", "Noise Cancellation"},
		},
		{
			name:       "keys normalized and deduplicated",
			reply:      `{"features":["Battery Life","battery-life","Camera", 7]}`,
			wantKeys:   []string{"battery_life", "camera"},
			wantLabels: []string{"Battery Life", "Camera"},
		},
		{
			name:     "truncated to five",
			reply:    `{"features":["a","b","c","d","e","f","g"]}`,
			wantKeys: []string{"a", "b", "c", "d", "e"},
		},
		{
			name:     "generator error",
			err:      errors.New("boom"),
			wantKeys: fallbackKeys,
		},
		{
			name:     "unparseable",
			reply:    "I cannot help with that",
			wantKeys: fallbackKeys,
		},
		{
			name:     "array instead of object",
			reply:    `["a","b"]`,
			wantKeys: fallbackKeys,
		},
		{
			name:     "no usable keys",
			reply:    `{"features":[]}`,
			wantKeys: fallbackKeys,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gen := &mockGenerator{}
			gen.On("Generate", mock.Anything, mock.Anything).Return(tt.reply, tt.err)

			s := DiscoverSchema(context.Background(), gen, "best earbuds", "earbuds")
			assert.Equal(t, tt.wantKeys, s.Keys())
			if tt.wantLabels != nil {
				assert.Equal(t, tt.wantLabels, s.Labels())
			}
			gen.AssertNumberOfCalls(t, "Generate", 1)
		})
	}
}

func TestDiscoverSchema_PromptMentionsQueryAndCategory(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return contains(p, "best phone under 30000") && contains(p, "smartphone")
	})).Return(`{"features":["camera"]}`, nil)

	s := DiscoverSchema(context.Background(), gen, "best phone under 30000", "smartphone")
	assert.Equal(t, []string{"camera"}, s.Keys())
	gen.AssertExpectations(t)
}

func TestFallbackSchema(t *testing.T) {
	s := FallbackSchema()
	assert.Equal(t, []string{"quality", "performance", "battery_life", "value_for_money", "design"}, s.Keys())
	assert.Equal(t, "Value For Money", s.Label("value_for_money"))
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sound_quality", NormalizeKey("Sound Quality"))
	assert.Equal(t, "value_for_money", NormalizeKey("value-for-money"))
	assert.Equal(t, "anc", NormalizeKey("  ANC  "))
	assert.Equal(t, "", NormalizeKey("!!"))
}
