package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var (
	generateMinICP float64
	generateLimit  int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Analyze new leads and draft outreach for those above the ICP gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := newPipeline(s, 0)
		if err != nil {
			return err
		}
		minICP := generateMinICP
		if minICP <= 0 {
			minICP = cfg.Governor.MinICPScore
		}
		stages := p.Stages(pipeline.Options{MinICP: minICP, Limit: generateLimit})
		results, err := pipeline.Run(cmd.Context(), stages[1:])
		printStageResults(results)
		return err
	},
}

func init() {
	generateCmd.Flags().Float64Var(&generateMinICP, "min-icp", 0, "minimum ICP score to draft (default from config)")
	generateCmd.Flags().IntVar(&generateLimit, "limit", 0, "max leads to analyze, 0 for all")
	rootCmd.AddCommand(generateCmd)
}
