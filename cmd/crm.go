package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/crm"
	"github.com/sells-group/outreach-cli/pkg/salesforce"
)

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "Salesforce integration",
}

var crmPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push interested leads to Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		if problems := cfg.ValidateSalesforce(); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(os.Stderr, "config:", p)
			}
			return eris.New("invalid Salesforce configuration")
		}

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		sf, err := salesforce.Connect(cfg.Salesforce.Domain, cfg.Salesforce.ClientID, cfg.Salesforce.ClientSecret)
		if err != nil {
			return err
		}
		summary, err := crm.New(s, sf).Push(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("pushed %d, already present %d\n", summary.Pushed, summary.Existing)
		return nil
	},
}

func init() {
	crmCmd.AddCommand(crmPushCmd)
	rootCmd.AddCommand(crmCmd)
}
