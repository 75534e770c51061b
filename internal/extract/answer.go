package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/beryl/internal/model"
)

// Answer asks gen a free-form question about a finished result. The reply is
// returned trimmed but otherwise verbatim.
func Answer(ctx context.Context, gen Generator, question string, result model.RunResult) (string, error) {
	if result.Products == nil {
		result.Products = []model.EntityAnalysis{}
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "extract: marshal result")
	}

	text, err := gen.Generate(ctx, fmt.Sprintf(followupPrompt, question, string(data)))
	if err != nil {
		return "", eris.Wrap(err, "extract: answer followup")
	}
	return strings.TrimSpace(text), nil
}
