package segment

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/beryl/internal/model"
)

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(out, " ")
}

func newSegmenter(t *testing.T, w, o int) *Segmenter {
	t.Helper()
	s, err := New(Config{WindowWords: w, OverlapWords: o})
	require.NoError(t, err)
	return s
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultConfig()},
		{name: "zero overlap", cfg: Config{WindowWords: 10}},
		{name: "zero window", cfg: Config{WindowWords: 0}, wantErr: true},
		{name: "negative overlap", cfg: Config{WindowWords: 10, OverlapWords: -1}, wantErr: true},
		{name: "overlap equals window", cfg: Config{WindowWords: 10, OverlapWords: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSegment_PlainCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length, window, overlap, want int
	}{
		{length: 1000, window: 400, overlap: 50, want: 3},
		{length: 400, window: 400, overlap: 50, want: 1},
		{length: 401, window: 400, overlap: 50, want: 2},
		{length: 30, window: 400, overlap: 50, want: 1},
		{length: 10, window: 3, overlap: 0, want: 4},
		{length: 10, window: 4, overlap: 2, want: 4},
		{length: 1, window: 1, overlap: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("L%d_W%d_O%d", tt.length, tt.window, tt.overlap), func(t *testing.T) {
			t.Parallel()
			s := newSegmenter(t, tt.window, tt.overlap)
			units := s.Segment([]model.Document{{
				SourceName: "Site", SourceType: model.SourceArticle, URL: "https://example.com/a", Text: words(tt.length),
			}})
			assert.Len(t, units, tt.want)
		})
	}
}

func TestSegment_PlainCoversEveryWord(t *testing.T) {
	s := newSegmenter(t, 7, 3)
	text := words(50)
	units := s.Segment([]model.Document{{SourceName: "Site", URL: "https://example.com/a", Text: text}})
	require.NotEmpty(t, units)

	seen := make(map[string]bool)
	for i, u := range units {
		for _, w := range strings.Fields(u.Text) {
			seen[w] = true
		}
		assert.LessOrEqual(t, len(strings.Fields(u.Text)), 7)
		assert.Equal(t, model.SourceArticle, u.SourceType)
		assert.NoError(t, u.Validate())
		assert.False(t, u.HasOffset())
		assert.True(t, strings.HasSuffix(u.UnitID, fmt.Sprintf("_%d", i)))
	}
	for _, w := range strings.Fields(text) {
		assert.True(t, seen[w], "word %s not covered", w)
	}

	// Consecutive windows share exactly the overlap.
	first := strings.Fields(units[0].Text)
	second := strings.Fields(units[1].Text)
	assert.Equal(t, first[4:], second[:3])
}

func TestSegment_Deterministic(t *testing.T) {
	s := newSegmenter(t, 20, 5)
	docs := []model.Document{
		{SourceName: "A", URL: "https://example.com/a", Text: words(60)},
		{SourceName: "B", URL: "https://example.com/b", Text: words(45)},
	}
	first := s.Segment(docs)
	second := s.Segment(docs)
	assert.Equal(t, first, second)

	ids := make(map[string]bool)
	for _, u := range first {
		assert.False(t, ids[u.UnitID], "duplicate id %s", u.UnitID)
		ids[u.UnitID] = true
	}
}

func TestSegment_DuplicateSourcesGetDistinctIDs(t *testing.T) {
	s := newSegmenter(t, 10, 2)
	docs := []model.Document{
		{SourceName: "A", URL: "https://example.com/same", Text: words(5)},
		{SourceName: "A", URL: "https://example.com/same", Text: words(5)},
	}
	units := s.Segment(docs)
	require.Len(t, units, 2)
	assert.NotEqual(t, units[0].UnitID, units[1].UnitID)
}

func TestSegment_EmptyInput(t *testing.T) {
	s := newSegmenter(t, 10, 2)
	assert.Empty(t, s.Segment(nil))
	assert.Empty(t, s.Segment([]model.Document{{SourceName: "A", Text: "   \n\t"}}))
	assert.Empty(t, s.Segment([]model.Document{{
		SourceName: "V", SourceType: model.SourceVideo, VideoID: "vid",
		Segments: []model.TimedSegment{{Text: "  "}},
	}}))
}

func TestSegment_VideoWithoutSegmentsFallsBackToPlain(t *testing.T) {
	s := newSegmenter(t, 10, 2)
	units := s.Segment([]model.Document{{
		SourceName: "Channel", SourceType: model.SourceVideo, VideoID: "abc", URL: "https://www.youtube.com/watch?v=abc", Text: words(8),
	}})
	require.Len(t, units, 1)
	assert.Equal(t, model.SourceVideo, units[0].SourceType)
	assert.Empty(t, units[0].VideoID)
	assert.Empty(t, units[0].Timestamp)
	assert.Nil(t, units[0].StartSeconds)
	assert.NoError(t, units[0].Validate())
}

func TestSegment_TimedProvenanceFromFirstSegment(t *testing.T) {
	s := newSegmenter(t, 6, 2)
	doc := model.Document{
		SourceName: "Channel",
		SourceType: model.SourceVideo,
		VideoID:    "abc123",
		URL:        "https://www.youtube.com/watch?v=abc123",
		Segments: []model.TimedSegment{
			{Text: "one two three", StartSeconds: 10, Timestamp: "0:10"},
			{Text: "four five six", StartSeconds: 74, Timestamp: "1:14"},
			{Text: "seven eight", StartSeconds: 90},
			{Text: "nine ten", StartSeconds: 120, Timestamp: "2:00"},
		},
	}

	units := s.Segment([]model.Document{doc})
	require.Len(t, units, 2)

	u := units[0]
	assert.Equal(t, "one two three four five six", u.Text)
	assert.Equal(t, "abc123", u.VideoID)
	assert.Equal(t, "0:10", u.Timestamp)
	require.NotNil(t, u.StartSeconds)
	assert.Equal(t, 10, *u.StartSeconds)
	assert.Contains(t, u.URL, "t=10")
	assert.Contains(t, u.URL, "v=abc123")
	assert.NoError(t, u.Validate())

	// Second window backtracks one segment for the overlap.
	u = units[1]
	assert.Equal(t, "four five six seven eight nine ten", u.Text)
	assert.Equal(t, "1:14", u.Timestamp)
	assert.Equal(t, 74, *u.StartSeconds)
	assert.Contains(t, u.URL, "t=74")
}

func TestSegment_TimedTerminatesOnLargeSegments(t *testing.T) {
	// Every segment exceeds the overlap, so the start must still advance.
	s := newSegmenter(t, 3, 2)
	doc := model.Document{
		SourceName: "Channel",
		SourceType: model.SourceVideo,
		VideoID:    "v",
		Segments: []model.TimedSegment{
			{Text: "a b c d e", StartSeconds: 0},
			{Text: "f g h i j", StartSeconds: 5},
			{Text: "k l m n o", StartSeconds: 10},
		},
	}
	units := s.Segment([]model.Document{doc})
	require.Len(t, units, 3)
	assert.Equal(t, 0, *units[0].StartSeconds)
	assert.Equal(t, 5, *units[1].StartSeconds)
	assert.Equal(t, 10, *units[2].StartSeconds)
	assert.Equal(t, "0:05", units[1].Timestamp)
}

func timedDoc(segments, size int) model.Document {
	doc := model.Document{SourceName: "Channel", SourceType: model.SourceVideo, VideoID: "v"}
	for i := range segments {
		ws := make([]string, size)
		for j := range ws {
			ws[j] = fmt.Sprintf("s%d.%d", i, j)
		}
		doc.Segments = append(doc.Segments, model.TimedSegment{
			Text:         strings.Join(ws, " "),
			StartSeconds: i * 10,
		})
	}
	return doc
}

// segmentOf returns the segment index encoded in a timedDoc word.
func segmentOf(t *testing.T, word string) int {
	t.Helper()
	num, _, ok := strings.Cut(strings.TrimPrefix(word, "s"), ".")
	require.True(t, ok, "unexpected word %q", word)
	seg, err := strconv.Atoi(num)
	require.NoError(t, err)
	return seg
}

func TestSegment_TimedOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		window     int
		overlap    int
		segments   int
		size       int
		wantStarts []int
		// wantShared is the number of trailing segments each unit shares
		// with the next.
		wantShared int
	}{
		{name: "W5 O2 two-word segments", window: 5, overlap: 2, segments: 6, size: 2, wantStarts: []int{0, 20, 40}, wantShared: 1},
		{name: "W5 O3 two-word segments", window: 5, overlap: 3, segments: 6, size: 2, wantStarts: []int{0, 10, 20, 30}, wantShared: 2},
		{name: "W4 O1 two-word segments", window: 4, overlap: 1, segments: 5, size: 2, wantStarts: []int{0, 10, 20, 30}, wantShared: 1},
		{name: "overlap does not fit before window start", window: 6, overlap: 5, segments: 3, size: 6, wantStarts: []int{0, 10, 20}, wantShared: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newSegmenter(t, tt.window, tt.overlap)
			units := s.Segment([]model.Document{timedDoc(tt.segments, tt.size)})

			starts := make([]int, len(units))
			for i, u := range units {
				require.NotNil(t, u.StartSeconds)
				starts[i] = *u.StartSeconds
			}
			assert.Equal(t, tt.wantStarts, starts)

			lastSeg := -1
			for i, u := range units {
				ws := strings.Fields(u.Text)
				first, last := segmentOf(t, ws[0]), segmentOf(t, ws[len(ws)-1])
				assert.Equal(t, first*10, *u.StartSeconds)
				assert.Equal(t, (last-first+1)*tt.size, len(ws), "unit %d holds whole segments", i)
				if i > 0 {
					assert.Equal(t, tt.wantShared, lastSeg-first+1, "unit %d shares trailing segments of unit %d", i, i-1)
					if tt.wantShared > 0 {
						assert.GreaterOrEqual(t, (lastSeg-first+1)*tt.size, tt.overlap)
					}
				}
				lastSeg = last
			}
			assert.Equal(t, tt.segments-1, lastSeg, "last unit reaches the final segment")
		})
	}
}

func TestSegment_TimedFillsMissingTimestamp(t *testing.T) {
	s := newSegmenter(t, 100, 10)
	units := s.Segment([]model.Document{{
		SourceName: "Channel",
		SourceType: model.SourceVideo,
		VideoID:    "v",
		Segments:   []model.TimedSegment{{Text: "hello there", StartSeconds: 3725}},
	}})
	require.Len(t, units, 1)
	assert.Equal(t, "1:02:05", units[0].Timestamp)
	assert.Equal(t, "https://www.youtube.com/watch?v=v&t=3725", units[0].URL)
}

func TestWindows(t *testing.T) {
	t.Parallel()

	w := strings.Fields("a b c d e f g")
	got := Windows(w, 3, 1)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"c", "d", "e"}, {"e", "f", "g"}}, got)
	assert.Nil(t, Windows(nil, 3, 1))
	assert.Nil(t, Windows(w, 0, 0))
}

func TestDeepLink(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://www.youtube.com/watch?t=42&v=abc", DeepLink("https://www.youtube.com/watch?v=abc", "abc", 42))
	assert.Equal(t, "https://www.youtube.com/watch?t=5&v=abc", DeepLink("https://www.youtube.com/watch?v=abc&t=99", "abc", 5))
	assert.Equal(t, "https://www.youtube.com/watch?v=xyz&t=7", DeepLink("", "xyz", 7))
}

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0:00", FormatTimestamp(0))
	assert.Equal(t, "1:14", FormatTimestamp(74))
	assert.Equal(t, "59:59", FormatTimestamp(3599))
	assert.Equal(t, "1:00:00", FormatTimestamp(3600))
	assert.Equal(t, "0:00", FormatTimestamp(-3))
}
