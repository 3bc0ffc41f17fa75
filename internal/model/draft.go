package model

import "time"

// DraftStatus represents the review state of a generated outreach email.
type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusRejected DraftStatus = "rejected"
	DraftStatusSent     DraftStatus = "sent"
)

// DraftEmail is a generated, not-yet-sent outreach email tied to one
// lead. A lead has at most one active (non-rejected) draft at a time.
type DraftEmail struct {
	ID         string      `json:"id"`
	LeadID     string      `json:"lead_id"`
	Subject    string      `json:"subject"`
	BodyText   string      `json:"body_text"`
	BodyHTML   string      `json:"body_html"`
	Template   string      `json:"template"`
	Status     DraftStatus `json:"status"`
	TestSentAt *time.Time  `json:"test_sent_at,omitempty"`
	SentAt     *time.Time  `json:"sent_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Active reports whether the draft still occupies its lead's single
// active-draft slot.
func (d DraftEmail) Active() bool {
	return d.Status != DraftStatusRejected
}
