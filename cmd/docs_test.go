package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/beryl/internal/model"
)

func TestLoadDocuments_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"source_name": "Tech Site", "source_type": "article", "url": "https://example.com/1", "text": "Phone A lasts two days."},
  {"source_name": "Tube", "source_type": "video", "url": "https://youtu.be/x", "video_id": "x",
   "segments": [{"text": "battery is great", "start_seconds": 74, "timestamp": "1:14"}]}
]`), 0o644))

	docs, err := loadDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, model.SourceArticle, docs[0].SourceType)
	assert.Equal(t, "Phone A lasts two days.", docs[0].Text)
	assert.True(t, docs[1].Timed())
	assert.Equal(t, "1:14", docs[1].Segments[0].Timestamp)
	assert.Equal(t, 74, docs[1].Segments[0].StartSeconds)
}

func TestLoadDocuments_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- source_name: Gadget Blog
  url: https://example.com/2
  text: Phone B has a bright display.
- source_name: Tube
  source_type: video
  url: https://youtu.be/y
  video_id: "y"
  segments:
    - text: the screen is dim outdoors
      start_seconds: 5
      timestamp: "0:05"
`), 0o644))

	docs, err := loadDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// Missing source_type defaults to article.
	assert.Equal(t, model.SourceArticle, docs[0].SourceType)
	assert.Equal(t, "y", docs[1].VideoID)
	assert.Equal(t, "0:05", docs[1].Segments[0].Timestamp)
}

func TestLoadDocuments_Errors(t *testing.T) {
	_, err := loadDocuments(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = parseDocuments([]byte(`{not json`), ".json")
	assert.Error(t, err)

	_, err = parseDocuments([]byte(`[{"source_name": "x", "source_type": "podcast"}]`), ".json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source_type")
}
