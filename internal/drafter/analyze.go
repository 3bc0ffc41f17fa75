package drafter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

const analyzeSystemPrompt = `You analyze small-business websites for B2B sales fit.

Given website text, determine:
1. The business's industry, one of: ec_retail, restaurant, gym, saas, other.
2. An ICP fit score from 1 to 10 for a vendor selling customer-retention
   and marketing-automation tooling to small businesses. Higher means
   better fit: clear commercial activity, reachable decision maker,
   evident customer base.
3. The company name as written on the site.

Respond with ONLY a JSON object:
{"industry": "...", "icp_score": 7, "company_name": "...", "reasoning": "one sentence"}`

// Analysis is the model's read of a scraped site.
type Analysis struct {
	Industry    model.Industry
	ICPScore    float64
	CompanyName string
	Reasoning   string
}

// Analyzer classifies a lead's industry and scores ICP fit from raw
// site text.
type Analyzer struct {
	client anthropic.Client
	model  string
	usage  anthropic.TokenUsage
}

func NewAnalyzer(client anthropic.Client, modelName string) *Analyzer {
	return &Analyzer{client: client, model: modelName}
}

// Analyze sends site text to the model and parses the structured
// verdict. An unrecognized industry string falls back to other rather
// than failing the analysis.
func (a *Analyzer) Analyze(ctx context.Context, websiteURL, siteText string) (*Analysis, error) {
	if len(siteText) > 20000 {
		siteText = siteText[:20000]
	}
	prompt := fmt.Sprintf("Website: %s\n\nSite text:\n%s", websiteURL, siteText)

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 1024,
		System:    anthropic.BuildCachedSystemBlocks(analyzeSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "drafter: analyze %s", websiteURL)
	}
	a.usage.Add(resp.Usage)

	text := anthropic.Text(resp)
	if !anthropic.HasJSONObject(text) {
		return nil, eris.Errorf("drafter: analyze %s: no JSON object in response", websiteURL)
	}

	var raw struct {
		Industry    string  `json:"industry"`
		ICPScore    float64 `json:"icp_score"`
		CompanyName string  `json:"company_name"`
		Reasoning   string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(text)), &raw); err != nil {
		return nil, eris.Wrapf(err, "drafter: analyze %s: parse response", websiteURL)
	}
	if raw.ICPScore < 1 || raw.ICPScore > 10 {
		return nil, eris.Errorf("drafter: analyze %s: icp_score %v out of range", websiteURL, raw.ICPScore)
	}

	analysis := &Analysis{
		Industry:    model.ParseIndustry(raw.Industry),
		ICPScore:    raw.ICPScore,
		CompanyName: raw.CompanyName,
		Reasoning:   raw.Reasoning,
	}
	zap.L().Info("lead analyzed",
		zap.String("website", websiteURL),
		zap.String("industry", string(analysis.Industry)),
		zap.Float64("icp_score", analysis.ICPScore))
	return analysis, nil
}

// Usage returns accumulated token usage for the analyze stage.
func (a *Analyzer) Usage() anthropic.TokenUsage {
	return a.usage
}
