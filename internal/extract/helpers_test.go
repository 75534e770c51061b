package extract

import (
	"strings"

	"github.com/sells-group/beryl/internal/model"
)

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func article(id, text string) model.ContentUnit {
	return model.ContentUnit{
		UnitID:     id,
		Text:       text,
		SourceName: "Review Site",
		SourceType: model.SourceArticle,
		URL:        "https://example.com/" + id,
	}
}

func video(id, text, ts string, start int) model.ContentUnit {
	return model.ContentUnit{
		UnitID:       id,
		Text:         text,
		SourceName:   "Tech Channel",
		SourceType:   model.SourceVideo,
		URL:          "https://www.youtube.com/watch?t=" + ts + "&v=vid",
		VideoID:      "vid",
		Timestamp:    ts,
		StartSeconds: &start,
	}
}
