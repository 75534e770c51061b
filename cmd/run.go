package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/pipeline"
)

var (
	runQuery     string
	runCategory  string
	runDocs      string
	runFollowups []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compare products across a set of documents",
	Long:  "Runs one comparison over the documents in --docs and prints the ranked result as JSON, then answers each --followup in order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		docs, err := loadDocuments(runDocs)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		coord := env.newCoordinator(pipeline.ObserverFunc(func(ev pipeline.ProgressEvent) {
			zap.L().Info("progress",
				zap.String("stage", string(ev.Stage)),
				zap.String("message", ev.Message),
				zap.String("entity", ev.Entity),
			)
		}))
		defer coord.Close()

		outcome, err := coord.Run(ctx, runQuery, runCategory, docs)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		return writeRunOutput(ctx, os.Stdout, coord, outcome, runFollowups)
	},
}

// runOutput is what the run command prints.
type runOutput struct {
	Outcome   *pipeline.Outcome `json:"outcome"`
	Followups []followupOutput  `json:"followups,omitempty"`
}

type followupOutput struct {
	Question string                    `json:"question"`
	Response pipeline.FollowupResponse `json:"response"`
}

func writeRunOutput(ctx context.Context, out io.Writer, coord *pipeline.Coordinator, outcome *pipeline.Outcome, followups []string) error {
	res := runOutput{Outcome: outcome}
	for _, q := range followups {
		res.Followups = append(res.Followups, followupOutput{
			Question: q,
			Response: coord.HandleFollowup(ctx, q),
		})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	runCmd.Flags().StringVar(&runQuery, "query", "", "what to compare, e.g. \"best compact SUV\" (required)")
	runCmd.Flags().StringVar(&runCategory, "category", "", "product category, e.g. \"cars\"")
	runCmd.Flags().StringVar(&runDocs, "docs", "", "path to a JSON or YAML list of documents (required)")
	runCmd.Flags().StringArrayVar(&runFollowups, "followup", nil, "follow-up question to answer after the run (repeatable)")
	_ = runCmd.MarkFlagRequired("query")
	_ = runCmd.MarkFlagRequired("docs")
	rootCmd.AddCommand(runCmd)
}
