// Package intent classifies reply emails into a forced-choice intent
// plus response guidance.
package intent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

const classifySystemPrompt = `You classify replies to cold outreach emails.

Classify the reply into EXACTLY one intent:
- interested: wants to learn more, asks for a call or pricing
- not_interested: declines, however politely
- question: asks something that needs answering before intent is clear
- out_of_office: automated absence response
- unsubscribe: asks to stop receiving email, in any wording

Respond with ONLY a JSON object:
{
  "intent": "...",
  "confidence": 0.0,
  "summary": "one sentence",
  "follow_up_questions": ["..."],
  "suggested_action": "...",
  "needs_research": false,
  "research_topics": ["..."]
}`

// Result is the outcome of classifying one reply. Exactly one of
// Parsed and Malformed is set: either the model output parsed into a
// complete classification, or it did not and the raw text is kept for
// the error. There is no partial result.
type Result struct {
	Parsed    *model.Classification
	Malformed *MalformedOutput
}

// MalformedOutput carries unparseable model output.
type MalformedOutput struct {
	Raw    string
	Reason string
}

func (m *MalformedOutput) Error() string {
	return fmt.Sprintf("intent: malformed model output: %s", m.Reason)
}

// Classifier turns reply bodies into intents.
type Classifier struct {
	client anthropic.Client
	model  string
	usage  anthropic.TokenUsage
}

func NewClassifier(client anthropic.Client, modelName string) *Classifier {
	return &Classifier{client: client, model: modelName}
}

// Classify classifies one reply against the subject of the draft it
// answers. A transport error or malformed model output fails the call
// outright; the returned Result is only ever fully parsed.
func (c *Classifier) Classify(ctx context.Context, originalSubject, replyBody string) (*Result, error) {
	prompt := fmt.Sprintf("Original outreach subject: %s\n\nReply:\n%s", originalSubject, replyBody)

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "intent: classify")
	}
	c.usage.Add(resp.Usage)

	text := anthropic.Text(resp)
	if !anthropic.HasJSONObject(text) {
		m := &MalformedOutput{Raw: text, Reason: "no JSON object in response"}
		return &Result{Malformed: m}, eris.Wrap(m, "intent: classify")
	}

	var raw struct {
		Intent            string   `json:"intent"`
		Confidence        float64  `json:"confidence"`
		Summary           string   `json:"summary"`
		FollowUpQuestions []string `json:"follow_up_questions"`
		SuggestedAction   string   `json:"suggested_action"`
		NeedsResearch     bool     `json:"needs_research"`
		ResearchTopics    []string `json:"research_topics"`
	}
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(text)), &raw); err != nil {
		m := &MalformedOutput{Raw: text, Reason: "invalid JSON: " + err.Error()}
		return &Result{Malformed: m}, eris.Wrap(m, "intent: classify")
	}
	if !model.ValidIntent(raw.Intent) {
		m := &MalformedOutput{Raw: text, Reason: fmt.Sprintf("unknown intent %q", raw.Intent)}
		return &Result{Malformed: m}, eris.Wrap(m, "intent: classify")
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		m := &MalformedOutput{Raw: text, Reason: fmt.Sprintf("confidence %v out of range", raw.Confidence)}
		return &Result{Malformed: m}, eris.Wrap(m, "intent: classify")
	}

	parsed := &model.Classification{
		Intent:            model.Intent(raw.Intent),
		Confidence:        raw.Confidence,
		Summary:           raw.Summary,
		FollowUpQuestions: raw.FollowUpQuestions,
		SuggestedAction:   raw.SuggestedAction,
		NeedsResearch:     raw.NeedsResearch,
		ResearchTopics:    raw.ResearchTopics,
	}
	zap.L().Info("reply classified",
		zap.String("intent", raw.Intent),
		zap.Float64("confidence", raw.Confidence))
	return &Result{Parsed: parsed}, nil
}

// Usage returns accumulated token usage for the classify stage.
func (c *Classifier) Usage() anthropic.TokenUsage {
	return c.usage
}
