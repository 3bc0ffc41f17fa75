// Package store persists leads, drafts, replies, and send accounting.
// Consistency rules that matter for safety (unique lead emails, unique
// provider message ids, one active draft per lead) live in the schema
// as unique constraints, not in application locks.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrDuplicate is returned when an insert hits a unique constraint
// (lead email, reply provider message id, active draft per lead).
var ErrDuplicate = eris.New("store: duplicate")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status   model.LeadStatus `json:"status,omitempty"`
	Industry model.Industry   `json:"industry,omitempty"`
	MinICP   float64          `json:"min_icp,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// DraftFilter specifies criteria for listing drafts.
type DraftFilter struct {
	Status model.DraftStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
}

// ReplyFilter specifies criteria for listing replies.
type ReplyFilter struct {
	Unclassified bool         `json:"unclassified,omitempty"`
	Intent       model.Intent `json:"intent,omitempty"`
	Limit        int          `json:"limit,omitempty"`
}

// Send kinds and results recorded in the send log.
const (
	SendKindLive = "send"
	SendKindTest = "test"

	SendResultOK        = "ok"
	SendResultBounce    = "bounce"
	SendResultComplaint = "complaint"
)

// SendEvent is one entry in the send log.
type SendEvent struct {
	LeadID  string    `json:"lead_id"`
	DraftID string    `json:"draft_id"`
	Kind    string    `json:"kind"`
	Result  string    `json:"result"`
	At      time.Time `json:"at"`
}

// SendTotals aggregates the live-send history for the safety governor.
// Test sends are excluded.
type SendTotals struct {
	Total        int        `json:"total"`
	Bounces      int        `json:"bounces"`
	Complaints   int        `json:"complaints"`
	LastSentAt   *time.Time `json:"last_sent_at,omitempty"`
	LastBounceAt *time.Time `json:"last_bounce_at,omitempty"`
}

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error
	UpdateLeadAnalysis(ctx context.Context, id string, industry model.Industry, icpScore float64) error
	KnownEmails(ctx context.Context) ([]string, error)

	// Drafts
	CreateDraft(ctx context.Context, draft model.DraftEmail) (*model.DraftEmail, error)
	GetDraft(ctx context.Context, id string) (*model.DraftEmail, error)
	ActiveDraft(ctx context.Context, leadID string) (*model.DraftEmail, error)
	ListDrafts(ctx context.Context, filter DraftFilter) ([]model.DraftEmail, error)
	UpdateDraftStatus(ctx context.Context, id string, status model.DraftStatus) error
	MarkDraftTestSent(ctx context.Context, id string, at time.Time) error
	MarkDraftSent(ctx context.Context, id string, at time.Time) error

	// Replies
	InsertReply(ctx context.Context, reply model.Reply) (*model.Reply, error)
	KnownMessageIDs(ctx context.Context) (map[string]struct{}, error)
	ListReplies(ctx context.Context, filter ReplyFilter) ([]model.Reply, error)
	UpdateReplyClassification(ctx context.Context, id string, c model.Classification, at time.Time) error
	SetReplyApproval(ctx context.Context, id string, approved bool) error

	// Send accounting
	RecordSend(ctx context.Context, ev SendEvent) error
	SendTotals(ctx context.Context) (*SendTotals, error)

	// Period-bucketed usage counters
	GetCounter(ctx context.Context, key, bucket string) (int, error)
	IncrementCounter(ctx context.Context, key, bucket string, delta int) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
