package model

import "time"

// Intent is the forced-choice classification of a reply.
type Intent string

const (
	IntentInterested    Intent = "interested"
	IntentNotInterested Intent = "not_interested"
	IntentQuestion      Intent = "question"
	IntentOutOfOffice   Intent = "out_of_office"
	IntentUnsubscribe   Intent = "unsubscribe"
)

// AllIntents lists every valid intent value.
func AllIntents() []Intent {
	return []Intent{IntentInterested, IntentNotInterested, IntentQuestion, IntentOutOfOffice, IntentUnsubscribe}
}

// ValidIntent reports whether s is a member of the closed intent set.
func ValidIntent(s string) bool {
	for _, i := range AllIntents() {
		if string(i) == s {
			return true
		}
	}
	return false
}

// Reply is an inbound message on a thread started by a sent draft.
// ProviderMessageID is unique and is the dedup key for the monitor.
// Once classified, a reply is immutable except for the approval flag.
type Reply struct {
	ID                string     `json:"id"`
	LeadID            string     `json:"lead_id"`
	DraftID           string     `json:"draft_id"`
	ProviderMessageID string     `json:"provider_message_id"`
	Body              string     `json:"body"`
	Intent            *Intent    `json:"intent,omitempty"`
	Confidence        *float64   `json:"confidence,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	SuggestedAction   string     `json:"suggested_action,omitempty"`
	DraftedResponse   string     `json:"drafted_response,omitempty"`
	ResearchNotes     string     `json:"research_notes,omitempty"`
	HumanApproved     bool       `json:"human_approved"`
	ReceivedAt        time.Time  `json:"received_at"`
	ClassifiedAt      *time.Time `json:"classified_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Classification holds the full structured output of the intent
// classifier for one reply.
type Classification struct {
	Intent            Intent   `json:"intent"`
	Confidence        float64  `json:"confidence"`
	Summary           string   `json:"summary"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	SuggestedAction   string   `json:"suggested_action"`
	NeedsResearch     bool     `json:"needs_research"`
	ResearchTopics    []string `json:"research_topics,omitempty"`
}
