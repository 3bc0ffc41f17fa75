package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/governor"
	"github.com/sells-group/outreach-cli/internal/sender"
	"github.com/sells-group/outreach-cli/internal/usage"
	"github.com/sells-group/outreach-cli/pkg/smtp"
)

var (
	sendTest  bool
	sendTo    string
	sendLimit int
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send approved drafts under the safety governor",
	Long: `Sends drafts a human has approved, one at a time, re-checking the
daily cap and pacing limits before each delivery. With --test every
draft goes to the test address instead and statuses are untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if problems := cfg.ValidateSMTP(); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(os.Stderr, "config:", p)
			}
			return eris.New("invalid SMTP configuration")
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		testAddress := sendTo
		if testAddress == "" {
			testAddress = cfg.Sender.TestAddress
		}

		run := sender.New(
			s,
			smtp.NewSender(smtp.Config{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				User:     cfg.SMTP.User,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
			}),
			governor.New(governor.LimitsFromConfig(cfg.Governor)),
			usage.NewStoreTracker(s, nil),
		)
		summary, err := run.Send(cmd.Context(), sender.Options{
			Test:        sendTest,
			TestAddress: testAddress,
			Limit:       sendLimit,
		})
		if err != nil {
			return err
		}
		fmt.Printf("attempted %d, sent %d, refused %d, failed %d\n",
			summary.Attempted, summary.Sent, summary.Refused, summary.Failed)
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolVar(&sendTest, "test", false, "send to the test address instead of leads")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "test address (default from config)")
	sendCmd.Flags().IntVar(&sendLimit, "limit", 0, "max drafts to attempt, 0 for the governor batch cap")
	rootCmd.AddCommand(sendCmd)
}
