package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	srv := httptest.NewServer(New(s).Router())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return srv, s
}

func seedDraft(t *testing.T, s store.Store) (*model.Lead, *model.DraftEmail) {
	t.Helper()
	ctx := context.Background()
	lead, err := s.CreateLead(ctx, model.Lead{Email: "owner@x.com", Status: model.LeadStatusDraftReady})
	require.NoError(t, err)
	draft, err := s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "s", BodyText: "b"})
	require.NoError(t, err)
	return lead, draft
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	status := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestListDraftsFilterByStatus(t *testing.T) {
	srv, s := newTestServer(t)
	seedDraft(t, s)

	var body struct {
		Drafts []model.DraftEmail `json:"drafts"`
	}
	status := getJSON(t, srv.URL+"/api/drafts?status=draft", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Drafts, 1)

	status = getJSON(t, srv.URL+"/api/drafts?status=approved", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Drafts)
}

func TestApproveDraft(t *testing.T) {
	srv, s := newTestServer(t)
	lead, draft := seedDraft(t, s)

	status := postStatus(t, srv.URL+"/api/drafts/"+draft.ID+"/approve")
	assert.Equal(t, http.StatusOK, status)

	got, err := s.GetDraft(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusApproved, got.Status)

	gotLead, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusApproved, gotLead.Status)

	// Second approval conflicts.
	assert.Equal(t, http.StatusConflict, postStatus(t, srv.URL+"/api/drafts/"+draft.ID+"/approve"))
}

func TestRejectDraft(t *testing.T) {
	srv, s := newTestServer(t)
	lead, draft := seedDraft(t, s)

	status := postStatus(t, srv.URL+"/api/drafts/"+draft.ID+"/reject")
	assert.Equal(t, http.StatusOK, status)

	gotLead, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusAnalyzed, gotLead.Status)
}

func TestApproveMissingDraft(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/drafts/missing/approve", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["error"])
}

func TestListRepliesBadIntent(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	status := getJSON(t, srv.URL+"/api/replies?intent=nonsense", &body)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListRepliesByIntent(t *testing.T) {
	srv, s := newTestServer(t)
	lead, draft := seedDraft(t, s)

	ctx := context.Background()
	reply, err := s.InsertReply(ctx, model.Reply{
		LeadID: lead.ID, DraftID: draft.ID,
		ProviderMessageID: "<m1@mail>", Body: "interested!", ReceivedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateReplyClassification(ctx, reply.ID, model.Classification{
		Intent: model.IntentInterested, Confidence: 0.9, Summary: "s",
	}, time.Now()))

	var body struct {
		Replies []model.Reply `json:"replies"`
	}
	status := getJSON(t, srv.URL+"/api/replies?intent=interested", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Replies, 1)

	status = getJSON(t, srv.URL+"/api/replies?unclassified=true", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Replies)
}

func TestApproveReply(t *testing.T) {
	srv, s := newTestServer(t)
	lead, draft := seedDraft(t, s)

	ctx := context.Background()
	reply, err := s.InsertReply(ctx, model.Reply{
		LeadID: lead.ID, DraftID: draft.ID,
		ProviderMessageID: "<m2@mail>", Body: "ok", ReceivedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, postStatus(t, srv.URL+"/api/replies/"+reply.ID+"/approve"))

	replies, err := s.ListReplies(ctx, store.ReplyFilter{})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].HumanApproved)

	assert.Equal(t, http.StatusNotFound, postStatus(t, srv.URL+"/api/replies/missing/approve"))
}

func TestStats(t *testing.T) {
	srv, s := newTestServer(t)
	seedDraft(t, s)

	var body struct {
		LeadsTotal    int            `json:"leads_total"`
		LeadsByStatus map[string]int `json:"leads_by_status"`
	}
	status := getJSON(t, srv.URL+"/api/stats", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, body.LeadsTotal)
	assert.Equal(t, 1, body.LeadsByStatus["draft_ready"])
}
