//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/beryl/internal/model"
	"github.com/sells-group/beryl/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	score := 8.5
	runs := []model.Run{
		{
			ID:     "abc12345-6789-0000-0000-000000000000",
			Query:  "best compact SUV",
			Status: model.RunStatusComplete,
			Result: &model.RunResult{Products: []model.EntityAnalysis{
				{Name: "Mazda CX-5", OverallScore: &score},
				{Name: "Honda CR-V", OverallScore: &score},
			}},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Query:     "a very long query about noise cancelling headphones for travel",
			Status:    model.RunStatusAnalyzing,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "QUERY")
	assert.Contains(t, output, "PRODUCTS")
	assert.Contains(t, output, "best compact SUV")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "analyzing")
	assert.Contains(t, output, "a very long query about noi...")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "2m0s")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestFormatRunsList_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, nil)
	assert.Contains(t, buf.String(), "ID")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestFormatCitations(t *testing.T) {
	ts := "1:14"
	cites := []model.Citation{
		{Entity: "Mazda CX-5", Dimension: "comfort", Evidence: model.Evidence{
			Quote: "the seats are supportive", SourceName: "Car Review", SourceType: model.SourceArticle, URL: "https://example.com/cx5",
		}},
		{Entity: "Mazda CX-5", Dimension: "handling", Evidence: model.Evidence{
			Quote: "it corners flat", SourceName: "Drive Tube", SourceType: model.SourceVideo, URL: "https://youtu.be/abc&t=74s", Timestamp: &ts,
		}},
	}

	var buf bytes.Buffer
	formatCitations(&buf, cites)

	output := buf.String()
	assert.Contains(t, output, "ENTITY")
	assert.Contains(t, output, `"the seats are supportive"`)
	assert.Contains(t, output, "https://example.com/cx5")
	assert.Contains(t, output, "1:14")
	assert.NotContains(t, output, "youtu.be")
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, &monitoring.MetricsSnapshot{
		Total: 4, Complete: 2, Aborted: 1, Failed: 1,
		FailRate: 0.25, AvgProducts: 1.5, AvgTopScore: 8, AvgDurationSec: 30,
	})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "25.0%")
	assert.Contains(t, output, "Avg products:")
	assert.Contains(t, output, "30.0s")
}

func TestFormatRunStats_NoComplete(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, &monitoring.MetricsSnapshot{Total: 1, Failed: 1, FailRate: 1})
	assert.Contains(t, buf.String(), "100.0%")
	assert.NotContains(t, buf.String(), "Avg products")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "hello", truncateText("hello", 10))
	assert.Equal(t, "héllo w...", truncateText("héllo world!", 10))
}
