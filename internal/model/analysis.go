package model

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Dimension is one axis of comparison chosen for a run.
type Dimension struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Schema is the ordered, run-scoped set of dimensions. The zero value is an
// empty schema; a Schema is not modified after construction.
type Schema struct {
	dims []Dimension
}

// NewSchema copies dims into a new Schema.
func NewSchema(dims []Dimension) Schema {
	out := make([]Dimension, len(dims))
	copy(out, dims)
	return Schema{dims: out}
}

// Dimensions returns a copy of the dimensions in order.
func (s Schema) Dimensions() []Dimension {
	out := make([]Dimension, len(s.dims))
	copy(out, s.dims)
	return out
}

// Keys returns the dimension keys in order.
func (s Schema) Keys() []string {
	keys := make([]string, len(s.dims))
	for i, d := range s.dims {
		keys[i] = d.Key
	}
	return keys
}

// Label returns the display label for key, or "" when the key is unknown.
func (s Schema) Label(key string) string {
	for _, d := range s.dims {
		if d.Key == key {
			return d.Label
		}
	}
	return ""
}

// Has reports whether key belongs to the schema.
func (s Schema) Has(key string) bool {
	for _, d := range s.dims {
		if d.Key == key {
			return true
		}
	}
	return false
}

// Len returns the number of dimensions.
func (s Schema) Len() int { return len(s.dims) }

// Labels returns the display labels in order.
func (s Schema) Labels() []string {
	labels := make([]string, len(s.dims))
	for i, d := range s.dims {
		labels[i] = d.Label
	}
	return labels
}

// MarshalJSON encodes the schema as its ordered dimension list.
func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.dims)
}

// Evidence is a verbatim quotation plus the citation it was taken from.
type Evidence struct {
	Quote      string     `json:"quote"`
	SourceName string     `json:"source_name"`
	SourceType SourceType `json:"source_type"`
	URL        string     `json:"url"`
	Timestamp  *string    `json:"timestamp"`
}

// DimensionScore is the score, one-line summary and supporting evidence for
// one dimension of one entity. Evidence keeps the order the model returned.
type DimensionScore struct {
	Score    float64    `json:"score"`
	Summary  string     `json:"summary"`
	Evidence []Evidence `json:"evidence"`
}

// EntityAnalysis is the full analysis of one discovered entity. Dimensions
// only holds keys the model actually scored.
type EntityAnalysis struct {
	Name         string                    `json:"name"`
	Price        *int                      `json:"price"`
	OverallScore *float64                  `json:"overall_score"`
	Verdict      *string                   `json:"verdict"`
	Dimensions   map[string]DimensionScore `json:"features"`
}

// Overall returns the overall score, treating a missing score as zero.
func (a EntityAnalysis) Overall() float64 {
	if a.OverallScore == nil {
		return 0
	}
	return *a.OverallScore
}

// DimensionScoreOf returns the score for key, treating a missing dimension as zero.
func (a EntityAnalysis) DimensionScoreOf(key string) float64 {
	if ds, ok := a.Dimensions[key]; ok {
		return ds.Score
	}
	return 0
}

// RunResult is the ranked output of a completed run.
type RunResult struct {
	Query    string           `json:"query"`
	Products []EntityAnalysis `json:"products"`
}

// ToMap converts the result into a nested map of primitive values for
// transports that do not speak Go types.
func (r RunResult) ToMap() (map[string]any, error) {
	if r.Products == nil {
		r.Products = []EntityAnalysis{}
	}
	return toPlainMap(r)
}

// Names returns the product names in ranked order.
func (r RunResult) Names() []string {
	names := make([]string, len(r.Products))
	for i, p := range r.Products {
		names[i] = p.Name
	}
	return names
}

// Find returns the product whose name matches name case-insensitively.
func (r RunResult) Find(name string) (EntityAnalysis, bool) {
	for _, p := range r.Products {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return EntityAnalysis{}, false
}

// Citation is one evidence item together with the entity and dimension it
// supports.
type Citation struct {
	Entity    string `json:"entity"`
	Dimension string `json:"dimension"`
	Evidence
}

// Citations flattens all evidence in ranked product order, dimensions sorted
// by key, evidence in model order.
func (r RunResult) Citations() []Citation {
	var out []Citation
	for _, p := range r.Products {
		keys := make([]string, 0, len(p.Dimensions))
		for k := range p.Dimensions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, ev := range p.Dimensions[k].Evidence {
				out = append(out, Citation{Entity: p.Name, Dimension: k, Evidence: ev})
			}
		}
	}
	return out
}

func toPlainMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal")
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "model: unmarshal to map")
	}
	return out, nil
}
