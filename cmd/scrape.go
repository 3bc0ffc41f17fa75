package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var scrapeDepth int

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Crawl a site, validate emails, and create leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := newPipeline(s, scrapeDepth)
		if err != nil {
			return err
		}
		stages := p.Stages(pipeline.Options{TargetURL: args[0]})
		results, err := pipeline.Run(cmd.Context(), stages[:1])
		printStageResults(results)
		return err
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeDepth, "depth", 0, "crawl depth (default from config)")
	rootCmd.AddCommand(scrapeCmd)
}
