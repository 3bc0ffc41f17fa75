package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/monitor"
	"github.com/sells-group/outreach-cli/pkg/mailbox"
)

var monitorSince time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Scan the reply mailbox and record new replies",
	RunE: func(cmd *cobra.Command, args []string) error {
		if problems := cfg.ValidateMailbox(); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(os.Stderr, "config:", p)
			}
			return eris.New("invalid mailbox configuration")
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		mb := mailbox.NewClient(cfg.Mailbox.BaseURL, cfg.Mailbox.Token)
		summary, err := monitor.New(s, mb).Scan(cmd.Context(), time.Now().Add(-monitorSince))
		if err != nil {
			return err
		}
		fmt.Printf("fetched %d, new %d, duplicates %d, skipped %d\n",
			summary.Fetched, summary.New, summary.Duplicates, summary.Skipped)
		return nil
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorSince, "since", 72*time.Hour, "how far back to scan")
	rootCmd.AddCommand(monitorCmd)
}
