package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var (
	pipelineURL    string
	pipelineDepth  int
	pipelineMinICP float64
	pipelineLimit  int
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run both stages: scrape and validate, then analyze and draft",
	Long: `Runs the scrape_validate and analyze_draft stages in order.
Drafts land in review; nothing here sends email.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := newPipeline(s, pipelineDepth)
		if err != nil {
			return err
		}
		minICP := pipelineMinICP
		if minICP <= 0 {
			minICP = cfg.Governor.MinICPScore
		}
		opts := pipeline.Options{
			TargetURL: pipelineURL,
			MinICP:    minICP,
			Limit:     pipelineLimit,
		}
		results, err := pipeline.Run(cmd.Context(), p.Stages(opts))
		printStageResults(results)
		return err
	},
}

func init() {
	pipelineCmd.Flags().StringVar(&pipelineURL, "url", "", "target site to scrape")
	pipelineCmd.Flags().IntVar(&pipelineDepth, "depth", 0, "crawl depth (default from config)")
	pipelineCmd.Flags().Float64Var(&pipelineMinICP, "min-icp", 0, "minimum ICP score to draft (default from config)")
	pipelineCmd.Flags().IntVar(&pipelineLimit, "limit", 0, "max leads to analyze, 0 for all")
	_ = pipelineCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(pipelineCmd)
}
