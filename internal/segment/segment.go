// Package segment splits fetched articles and video transcripts into
// overlapping, provenance-tagged retrieval units.
package segment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/model"
)

// Config controls window sizing, measured in whitespace-separated words.
type Config struct {
	WindowWords  int `yaml:"window_words" mapstructure:"window_words"`
	OverlapWords int `yaml:"overlap_words" mapstructure:"overlap_words"`
}

// DefaultConfig returns 400-word windows with a 50-word overlap.
func DefaultConfig() Config {
	return Config{WindowWords: 400, OverlapWords: 50}
}

// Validate requires a window of at least one word and 0 <= overlap < window.
func (c Config) Validate() error {
	if c.WindowWords < 1 {
		return eris.Errorf("segment: window must be at least 1 word, got %d", c.WindowWords)
	}
	if c.OverlapWords < 0 || c.OverlapWords >= c.WindowWords {
		return eris.Errorf("segment: overlap %d must be in [0, %d)", c.OverlapWords, c.WindowWords)
	}
	return nil
}

// Segmenter cuts documents into ContentUnits. It makes no external calls and
// produces identical output for identical input.
type Segmenter struct {
	cfg Config
}

// New creates a Segmenter after validating cfg.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// Config returns the window configuration.
func (s *Segmenter) Config() Config { return s.cfg }

// Segment cuts every document and returns one flat list in document order.
// Empty documents contribute nothing.
func (s *Segmenter) Segment(docs []model.Document) []model.ContentUnit {
	var all []model.ContentUnit
	seen := make(map[string]int)

	for _, doc := range docs {
		identity := sourceIdentity(doc)
		// Two documents sharing an identity still get distinct unit ids.
		if n := seen[identity]; n > 0 {
			seen[identity] = n + 1
			identity = fmt.Sprintf("%s#%d", identity, n)
		} else {
			seen[identity] = 1
		}
		prefix := hashPrefix(identity)

		var units []model.ContentUnit
		if doc.Timed() {
			units = s.segmentTimed(doc, prefix)
		} else {
			units = s.segmentPlain(doc, prefix)
		}

		zap.L().Debug("segment: document cut",
			zap.String("source", doc.SourceName),
			zap.String("type", string(doc.SourceType)),
			zap.Int("units", len(units)),
		)
		all = append(all, units...)
	}

	zap.L().Info("segment: complete",
		zap.Int("documents", len(docs)),
		zap.Int("units", len(all)),
	)
	return all
}

func (s *Segmenter) segmentPlain(doc model.Document, prefix string) []model.ContentUnit {
	windows := Windows(strings.Fields(doc.Text), s.cfg.WindowWords, s.cfg.OverlapWords)
	units := make([]model.ContentUnit, 0, len(windows))
	for i, w := range windows {
		units = append(units, model.ContentUnit{
			Text:       strings.Join(w, " "),
			SourceName: doc.SourceName,
			SourceType: sourceType(doc),
			URL:        doc.URL,
			UnitID:     unitID(prefix, i),
		})
	}
	return units
}

// Windows splits words into windows of size words stepping by size-overlap.
// The last window may be shorter, and no window is emitted once the end of
// the input has been reached.
func Windows(words []string, size, overlap int) [][]string {
	if len(words) == 0 || size < 1 {
		return nil
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}

	var windows [][]string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, words[start:end])
		if end == len(words) {
			break
		}
	}
	return windows
}

type wordSegment struct {
	model.TimedSegment
	words []string
}

func (s *Segmenter) segmentTimed(doc model.Document, prefix string) []model.ContentUnit {
	segs := make([]wordSegment, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}
		segs = append(segs, wordSegment{TimedSegment: seg, words: words})
	}

	videoID := resolveVideoID(doc, prefix)
	var units []model.ContentUnit

	for i := 0; i < len(segs); {
		var acc []wordSegment
		count := 0
		j := i
		for j < len(segs) && count < s.cfg.WindowWords {
			acc = append(acc, segs[j])
			count += len(segs[j].words)
			j++
		}
		if len(acc) == 0 {
			break
		}

		words := make([]string, 0, count)
		for _, a := range acc {
			words = append(words, a.words...)
		}

		// Provenance comes from the first segment so the deep link lands on
		// the start of the quoted content.
		first := acc[0]
		start := first.StartSeconds
		ts := first.Timestamp
		if ts == "" {
			ts = FormatTimestamp(start)
		}

		units = append(units, model.ContentUnit{
			Text:         strings.Join(words, " "),
			SourceName:   doc.SourceName,
			SourceType:   model.SourceVideo,
			URL:          DeepLink(doc.URL, videoID, start),
			UnitID:       unitID(prefix, len(units)),
			VideoID:      videoID,
			Timestamp:    ts,
			StartSeconds: &start,
		})

		if j >= len(segs) {
			break
		}

		// Walk back whole segments until the overlap is covered, always
		// moving the window start forward by at least one segment.
		next := j
		back := 0
		for next > i+1 && back < s.cfg.OverlapWords {
			next--
			back += len(segs[next].words)
		}
		i = max(next, i+1)
	}
	return units
}

// DeepLink returns a link to the video positioned at start seconds.
func DeepLink(videoURL, videoID string, start int) string {
	if videoURL != "" {
		if u, err := url.Parse(videoURL); err == nil && u.Host != "" {
			q := u.Query()
			q.Set("t", strconv.Itoa(start))
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%d", url.QueryEscape(videoID), start)
}

// FormatTimestamp renders seconds as m:ss or h:mm:ss.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func sourceType(doc model.Document) model.SourceType {
	if doc.SourceType == "" {
		return model.SourceArticle
	}
	return doc.SourceType
}

func sourceIdentity(doc model.Document) string {
	switch {
	case doc.SourceType == model.SourceVideo && doc.VideoID != "":
		return "video:" + doc.VideoID
	case doc.URL != "":
		return "url:" + doc.URL
	default:
		return "name:" + doc.SourceName
	}
}

func resolveVideoID(doc model.Document, prefix string) string {
	if doc.VideoID != "" {
		return doc.VideoID
	}
	if u, err := url.Parse(doc.URL); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	}
	return prefix
}

func hashPrefix(identity string) string {
	sum := md5.Sum([]byte(identity))
	return hex.EncodeToString(sum[:])[:8]
}

func unitID(prefix string, i int) string {
	return prefix + "_" + strconv.Itoa(i)
}
