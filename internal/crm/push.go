// Package crm pushes engaged leads to Salesforce.
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/salesforce"
)

// Summary reports one push run.
type Summary struct {
	Pushed   int
	Existing int
}

// Pusher mirrors interested leads into Salesforce Lead records.
type Pusher struct {
	store store.Store
	sf    salesforce.Client
}

func New(s store.Store, sf salesforce.Client) *Pusher {
	return &Pusher{store: s, sf: sf}
}

// Push inserts a Salesforce Lead for every stored lead with an
// interested reply, skipping leads already present by email. Records
// are pushed strictly one at a time.
func (p *Pusher) Push(ctx context.Context) (*Summary, error) {
	replies, err := p.store.ListReplies(ctx, store.ReplyFilter{Intent: model.IntentInterested})
	if err != nil {
		return nil, eris.Wrap(err, "crm: list interested replies")
	}

	summary := &Summary{}
	pushed := map[string]struct{}{}
	for _, reply := range replies {
		if _, done := pushed[reply.LeadID]; done {
			continue
		}
		pushed[reply.LeadID] = struct{}{}

		lead, err := p.store.GetLead(ctx, reply.LeadID)
		if err != nil {
			return nil, eris.Wrapf(err, "crm: load lead %s", reply.LeadID)
		}

		exists, err := p.exists(ctx, lead.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			summary.Existing++
			continue
		}

		company := lead.CompanyName
		if company == "" {
			company = lead.Email
		}
		id, err := p.sf.InsertOne(ctx, "Lead", map[string]any{
			"Company":     company,
			"Email":       lead.Email,
			"Website":     lead.WebsiteURL,
			"Industry":    string(lead.Industry),
			"LeadSource":  "Cold Outreach",
			"Description": reply.Summary,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "crm: push lead %s", lead.ID)
		}
		zap.L().Info("lead pushed to salesforce",
			zap.String("lead_id", lead.ID),
			zap.String("sf_id", id))
		summary.Pushed++
	}
	return summary, nil
}

func (p *Pusher) exists(ctx context.Context, email string) (bool, error) {
	var result []struct {
		ID string `json:"Id"`
	}
	soql := fmt.Sprintf("SELECT Id FROM Lead WHERE Email = '%s' LIMIT 1", escapeSOQL(email))
	if err := p.sf.Query(ctx, soql, &result); err != nil {
		return false, eris.Wrapf(err, "crm: check existing %s", email)
	}
	return len(result) > 0, nil
}

func escapeSOQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
