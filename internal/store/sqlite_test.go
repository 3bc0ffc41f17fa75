package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLeadLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead, err := s.CreateLead(ctx, model.Lead{
		CompanyName: "Joe's Gym",
		Email:       "owner@joesgym.com",
		WebsiteURL:  "https://joesgym.com",
		MXValid:     true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, model.IndustryOther, lead.Industry)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner@joesgym.com", got.Email)
	assert.True(t, got.MXValid)

	// Email lookup is case insensitive.
	got, err = s.GetLeadByEmail(ctx, "OWNER@JOESGYM.COM")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)

	require.NoError(t, s.UpdateLeadAnalysis(ctx, lead.ID, model.IndustryGym, 7.5))
	got, err = s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IndustryGym, got.Industry)
	assert.InDelta(t, 7.5, got.ICPScore, 0.001)
	assert.Equal(t, model.LeadStatusAnalyzed, got.Status)

	require.NoError(t, s.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusDraftReady))
	got, err = s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusDraftReady, got.Status)
}

func TestCreateLeadDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, model.Lead{Email: "owner@example.com"})
	require.NoError(t, err)

	_, err = s.CreateLead(ctx, model.Lead{Email: "owner@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetLeadNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLead(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateLeadStatus(context.Background(), "missing", model.LeadStatusSent)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListLeadsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, l := range []model.Lead{
		{Email: "a@x.com", Industry: model.IndustryGym, ICPScore: 8, Status: model.LeadStatusAnalyzed},
		{Email: "b@x.com", Industry: model.IndustryGym, ICPScore: 3, Status: model.LeadStatusAnalyzed},
		{Email: "c@x.com", Industry: model.IndustrySaaS, ICPScore: 9, Status: model.LeadStatusNew},
	} {
		_, err := s.CreateLead(ctx, l)
		require.NoError(t, err)
	}

	leads, err := s.ListLeads(ctx, LeadFilter{Industry: model.IndustryGym, MinICP: 6})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "a@x.com", leads[0].Email)

	leads, err = s.ListLeads(ctx, LeadFilter{Status: model.LeadStatusAnalyzed})
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	emails, err := s.KnownEmails(ctx)
	require.NoError(t, err)
	assert.Len(t, emails, 3)
}

func TestOneActiveDraftPerLead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead, err := s.CreateLead(ctx, model.Lead{Email: "owner@example.com"})
	require.NoError(t, err)

	first, err := s.CreateDraft(ctx, model.DraftEmail{
		LeadID:   lead.ID,
		Subject:  "Quick question",
		BodyText: "hello",
		Template: "gym",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusDraft, first.Status)

	// A second draft while one is still active hits the partial unique index.
	_, err = s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "again", BodyText: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	active, err := s.ActiveDraft(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	// Rejecting frees the slot for a regenerated draft.
	require.NoError(t, s.UpdateDraftStatus(ctx, first.ID, model.DraftStatusRejected))
	second, err := s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "take two", BodyText: "y"})
	require.NoError(t, err)

	active, err = s.ActiveDraft(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestActiveDraftNone(t *testing.T) {
	s := newTestStore(t)

	active, err := s.ActiveDraft(context.Background(), "no-such-lead")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestMarkDraftSent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead, err := s.CreateLead(ctx, model.Lead{Email: "owner@example.com"})
	require.NoError(t, err)
	draft, err := s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "s", BodyText: "b"})
	require.NoError(t, err)

	testAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkDraftTestSent(ctx, draft.ID, testAt))

	sentAt := testAt.Add(time.Hour)
	require.NoError(t, s.MarkDraftSent(ctx, draft.ID, sentAt))

	got, err := s.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusSent, got.Status)
	require.NotNil(t, got.TestSentAt)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.After(*got.TestSentAt))
}

func TestReplyDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead, err := s.CreateLead(ctx, model.Lead{Email: "owner@example.com"})
	require.NoError(t, err)
	draft, err := s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "s", BodyText: "b"})
	require.NoError(t, err)

	reply := model.Reply{
		LeadID:            lead.ID,
		DraftID:           draft.ID,
		ProviderMessageID: "<msg-1@mail.example.com>",
		Body:              "tell me more",
		ReceivedAt:        time.Now(),
	}
	_, err = s.InsertReply(ctx, reply)
	require.NoError(t, err)

	_, err = s.InsertReply(ctx, reply)
	assert.ErrorIs(t, err, ErrDuplicate)

	known, err := s.KnownMessageIDs(ctx)
	require.NoError(t, err)
	_, ok := known["<msg-1@mail.example.com>"]
	assert.True(t, ok)
	assert.Len(t, known, 1)
}

func TestReplyClassificationImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead, err := s.CreateLead(ctx, model.Lead{Email: "owner@example.com"})
	require.NoError(t, err)
	draft, err := s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "s", BodyText: "b"})
	require.NoError(t, err)
	reply, err := s.InsertReply(ctx, model.Reply{
		LeadID: lead.ID, DraftID: draft.ID,
		ProviderMessageID: "<msg-2@mail.example.com>",
		Body:              "sounds interesting",
		ReceivedAt:        time.Now(),
	})
	require.NoError(t, err)

	unclassified, err := s.ListReplies(ctx, ReplyFilter{Unclassified: true})
	require.NoError(t, err)
	require.Len(t, unclassified, 1)

	now := time.Now()
	err = s.UpdateReplyClassification(ctx, reply.ID, model.Classification{
		Intent:     model.IntentInterested,
		Confidence: 0.92,
		Summary:    "wants a demo",
	}, now)
	require.NoError(t, err)

	// Re-classifying an already classified reply is refused.
	err = s.UpdateReplyClassification(ctx, reply.ID, model.Classification{
		Intent: model.IntentNotInterested,
	}, now)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.ListReplies(ctx, ReplyFilter{Intent: model.IntentInterested})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Intent)
	assert.Equal(t, model.IntentInterested, *got[0].Intent)
	require.NotNil(t, got[0].Confidence)
	assert.InDelta(t, 0.92, *got[0].Confidence, 0.001)
	require.NotNil(t, got[0].ClassifiedAt)

	require.NoError(t, s.SetReplyApproval(ctx, reply.ID, true))
	got, err = s.ListReplies(ctx, ReplyFilter{})
	require.NoError(t, err)
	assert.True(t, got[0].HumanApproved)
}

func TestSendTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	events := []SendEvent{
		{LeadID: "l1", DraftID: "d1", Kind: SendKindLive, Result: SendResultOK, At: base},
		{LeadID: "l2", DraftID: "d2", Kind: SendKindLive, Result: SendResultBounce, At: base.Add(time.Minute)},
		{LeadID: "l3", DraftID: "d3", Kind: SendKindLive, Result: SendResultOK, At: base.Add(2 * time.Minute)},
		// Test sends never count toward live totals.
		{LeadID: "l4", DraftID: "d4", Kind: SendKindTest, Result: SendResultOK, At: base.Add(3 * time.Minute)},
	}
	for _, ev := range events {
		require.NoError(t, s.RecordSend(ctx, ev))
	}

	totals, err := s.SendTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.Total)
	assert.Equal(t, 1, totals.Bounces)
	assert.Equal(t, 0, totals.Complaints)
	require.NotNil(t, totals.LastSentAt)
	require.NotNil(t, totals.LastBounceAt)
	assert.Equal(t, base.Add(2*time.Minute), totals.LastSentAt.UTC())
	assert.Equal(t, base.Add(time.Minute), totals.LastBounceAt.UTC())
}

func TestSendTotalsEmpty(t *testing.T) {
	s := newTestStore(t)

	totals, err := s.SendTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Total)
	assert.Nil(t, totals.LastSentAt)
	assert.Nil(t, totals.LastBounceAt)
}

func TestCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.GetCounter(ctx, "sends", "2026-08-01")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.IncrementCounter(ctx, "sends", "2026-08-01", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementCounter(ctx, "sends", "2026-08-01", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Buckets are independent.
	n, err = s.GetCounter(ctx, "sends", "2026-08-02")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.GetCounter(ctx, "sends", "2026-08-01")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
