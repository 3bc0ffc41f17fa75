package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import leads from an xlsx or csv file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := importer.New(s).Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%d rows: %d created, %d duplicates, %d invalid\n",
			summary.Rows, summary.Created, summary.Duplicates, summary.Invalid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
