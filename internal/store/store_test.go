package store

import (
	"github.com/sells-group/beryl/internal/model"
)

func ptr[T any](v T) *T { return &v }

func sampleResult() *model.RunResult {
	return &model.RunResult{
		Query: "best compact SUV",
		Products: []model.EntityAnalysis{
			{
				Name:         "Mazda CX-5",
				Price:        ptr(28000),
				OverallScore: ptr(8.5),
				Verdict:      ptr("Sharp handling"),
				Dimensions: map[string]model.DimensionScore{
					"handling": {
						Score:   9,
						Summary: "Precise steering",
						Evidence: []model.Evidence{{
							Quote:      "the CX-5 corners flat",
							SourceName: "Car Review",
							SourceType: model.SourceArticle,
							URL:        "https://example.com/cx5",
						}},
					},
					"comfort": {
						Score:   7,
						Summary: "Firm ride",
						Evidence: []model.Evidence{{
							Quote:      "the ride is a little firm",
							SourceName: "Channel",
							SourceType: model.SourceVideo,
							URL:        "https://www.youtube.com/watch?v=abc&t=74",
							Timestamp:  ptr("1:14"),
						}},
					},
				},
			},
			{
				Name:         "Honda CR-V",
				OverallScore: ptr(7.0),
				Dimensions:   map[string]model.DimensionScore{},
			},
		},
	}
}
