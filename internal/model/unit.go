package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// SourceType identifies the kind of document a unit was cut from.
type SourceType string

const (
	SourceArticle SourceType = "article"
	SourceVideo   SourceType = "video"
)

// TimedSegment is one caption line of a video transcript.
type TimedSegment struct {
	Text         string `json:"text" yaml:"text"`
	StartSeconds int    `json:"start_seconds" yaml:"start_seconds"`
	Timestamp    string `json:"timestamp" yaml:"timestamp"`
}

// Document is a fetched source handed to the segmenter. Articles carry Text;
// videos carry Segments, or Text when no timed transcript was available.
type Document struct {
	SourceName string         `json:"source_name" yaml:"source_name"`
	SourceType SourceType     `json:"source_type" yaml:"source_type"`
	URL        string         `json:"url" yaml:"url"`
	VideoID    string         `json:"video_id,omitempty" yaml:"video_id,omitempty"`
	Text       string         `json:"text,omitempty" yaml:"text,omitempty"`
	Segments   []TimedSegment `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// Timed reports whether the document should be cut on segment boundaries.
func (d Document) Timed() bool {
	return d.SourceType == SourceVideo && len(d.Segments) > 0
}

// ContentUnit is a bounded, provenance-tagged span of source text. Units are
// never modified after the segmenter creates them.
type ContentUnit struct {
	Text         string     `json:"text"`
	SourceName   string     `json:"source_name"`
	SourceType   SourceType `json:"source_type"`
	URL          string     `json:"url"`
	UnitID       string     `json:"unit_id"`
	VideoID      string     `json:"video_id,omitempty"`
	Timestamp    string     `json:"timestamp,omitempty"`
	StartSeconds *int       `json:"start_seconds,omitempty"`
}

// HasOffset reports whether the unit points at a position inside a video.
func (u ContentUnit) HasOffset() bool {
	return u.StartSeconds != nil
}

// Validate checks the unit's structural invariants: non-empty text and the
// video-only fields being either all set (video units only) or all unset.
func (u ContentUnit) Validate() error {
	if strings.TrimSpace(u.Text) == "" {
		return eris.Errorf("model: unit %s has empty text", u.UnitID)
	}
	set := 0
	if u.VideoID != "" {
		set++
	}
	if u.Timestamp != "" {
		set++
	}
	if u.StartSeconds != nil {
		set++
	}
	switch {
	case set != 0 && set != 3:
		return eris.Errorf("model: unit %s has partial video metadata", u.UnitID)
	case set == 3 && u.SourceType != SourceVideo:
		return eris.Errorf("model: unit %s has video metadata on %s source", u.UnitID, u.SourceType)
	}
	return nil
}
