package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/intent"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

var classifyLimit int

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify pending replies by intent",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		classifier := intent.NewClassifier(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.ClassifyModel)
		summary, err := intent.NewBatch(s, classifier).ClassifyPending(cmd.Context(), classifyLimit)
		if summary != nil {
			fmt.Printf("pending %d, classified %d, unsubscribed %d\n",
				summary.Pending, summary.Classified, summary.Unsubscribed)
		}
		return err
	},
}

func init() {
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 0, "max replies to classify, 0 for all")
	rootCmd.AddCommand(classifyCmd)
}
