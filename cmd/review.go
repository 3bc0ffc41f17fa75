package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/review"
	"github.com/sells-group/outreach-cli/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review drafts awaiting human approval",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		drafts, err := s.ListDrafts(cmd.Context(), store.DraftFilter{Status: model.DraftStatusDraft})
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			fmt.Println("no drafts awaiting review")
			return nil
		}
		for _, draft := range drafts {
			email := "?"
			if lead, err := s.GetLead(cmd.Context(), draft.LeadID); err == nil {
				email = lead.Email
			}
			fmt.Printf("%s  %-30s  %s\n", draft.ID, email, draft.Subject)
		}
		return nil
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <draft-id>",
	Short: "Print a draft's subject and body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		draft, err := s.GetDraft(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Subject: %s\nStatus:  %s\n\n%s\n", draft.Subject, draft.Status, draft.BodyText)
		return nil
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <draft-id>",
	Short: "Approve a draft for sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := review.New(s).Approve(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("approved", args[0])
		return nil
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <draft-id>",
	Short: "Reject a draft; the lead returns to analyzed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := review.New(s).Reject(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("rejected", args[0])
		return nil
	},
}

func init() {
	reviewCmd.AddCommand(reviewListCmd, reviewShowCmd, reviewApproveCmd, reviewRejectCmd)
	rootCmd.AddCommand(reviewCmd)
}
