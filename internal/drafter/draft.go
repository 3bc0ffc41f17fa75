package drafter

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// complianceFooter is appended verbatim to every generated draft after
// generation. The model never produces or edits it, so compliance text
// cannot be omitted or altered by model output.
const complianceFooter = `--
Sells Group, 548 Market St, San Francisco, CA 94104
You received this email because your business contact information is
publicly listed. Reply "unsubscribe" and you will never hear from us again.`

const draftSystemPrompt = `You write short, personalized cold-outreach emails for a vendor
selling customer-retention and marketing-automation tooling to small
businesses.

Rules:
- Under 150 words of body text.
- Reference something specific about the recipient's business.
- One concrete value proposition, one clear call to action.
- Plain, direct tone. No hype, no exclamation marks, no placeholders.
- Do NOT include any signature, legal text, or unsubscribe language.

Respond with ONLY a JSON object:
{"subject": "...", "body_text": "...", "body_html": "..."}
body_html is the same content as body_text marked up with <p> tags.`

// Drafter generates outreach drafts from leads and industry templates.
type Drafter struct {
	client    anthropic.Client
	model     string
	templates *Registry
	usage     anthropic.TokenUsage
}

func NewDrafter(client anthropic.Client, modelName string, templates *Registry) *Drafter {
	return &Drafter{client: client, model: modelName, templates: templates}
}

// Draft selects the template for the lead's industry, asks the model
// to fill in personalized subject and body, and appends the fixed
// compliance footer. The returned draft carries the template name and
// status draft.
func (d *Drafter) Draft(ctx context.Context, lead model.Lead) (*model.DraftEmail, error) {
	tmpl := d.templates.Select(lead.Industry)

	prompt := fmt.Sprintf(`Recipient:
- Company: %s
- Website: %s
- Industry: %s

Template angle: %s
Proof point you may use: %s
Subject direction: %s

Write the email.`,
		lead.CompanyName, lead.WebsiteURL, lead.Industry,
		strings.TrimSpace(tmpl.Angle), tmpl.ProofPoint,
		strings.ReplaceAll(tmpl.SubjectHint, "{company}", lead.CompanyName))

	resp, err := d.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     d.model,
		MaxTokens: 2048,
		System:    anthropic.BuildCachedSystemBlocks(draftSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "drafter: draft for lead %s", lead.ID)
	}
	d.usage.Add(resp.Usage)

	text := anthropic.Text(resp)
	if !anthropic.HasJSONObject(text) {
		return nil, eris.Errorf("drafter: draft for lead %s: no JSON object in response", lead.ID)
	}

	var raw struct {
		Subject  string `json:"subject"`
		BodyText string `json:"body_text"`
		BodyHTML string `json:"body_html"`
	}
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(text)), &raw); err != nil {
		return nil, eris.Wrapf(err, "drafter: draft for lead %s: parse response", lead.ID)
	}
	if raw.Subject == "" || raw.BodyText == "" {
		return nil, eris.Errorf("drafter: draft for lead %s: empty subject or body", lead.ID)
	}
	if raw.BodyHTML == "" {
		raw.BodyHTML = "<p>" + html.EscapeString(raw.BodyText) + "</p>"
	}

	draft := &model.DraftEmail{
		LeadID:   lead.ID,
		Subject:  raw.Subject,
		BodyText: appendFooterText(raw.BodyText),
		BodyHTML: appendFooterHTML(raw.BodyHTML),
		Template: tmpl.Name,
		Status:   model.DraftStatusDraft,
	}
	zap.L().Info("draft generated",
		zap.String("lead_id", lead.ID),
		zap.String("template", tmpl.Name),
		zap.String("subject", raw.Subject))
	return draft, nil
}

// Usage returns accumulated token usage for the draft stage.
func (d *Drafter) Usage() anthropic.TokenUsage {
	return d.usage
}

func appendFooterText(body string) string {
	return strings.TrimRight(body, "\n") + "\n\n" + complianceFooter
}

func appendFooterHTML(body string) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n<hr>\n")
	for _, line := range strings.Split(complianceFooter, "\n")[1:] {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>\n")
	}
	return b.String()
}
