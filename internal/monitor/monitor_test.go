package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/mailbox"
)

type mockMailbox struct {
	mock.Mock
}

func (m *mockMailbox) ListMessages(ctx context.Context, since time.Time) ([]mailbox.Message, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]mailbox.Message), args.Error(1)
}

func newStoreWithSentLead(t *testing.T) (store.Store, *model.Lead, *model.DraftEmail) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	lead, err := s.CreateLead(ctx, model.Lead{Email: "owner@joesgym.com", Status: model.LeadStatusSent})
	require.NoError(t, err)
	draft, err := s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "s", BodyText: "b", Status: model.DraftStatusApproved})
	require.NoError(t, err)
	require.NoError(t, s.MarkDraftSent(ctx, draft.ID, time.Now()))
	return s, lead, draft
}

func msg(id, from, body string) mailbox.Message {
	return mailbox.Message{
		MessageID:  id,
		From:       from,
		BodyText:   body,
		ReceivedAt: time.Now(),
	}
}

func TestScanPersistsNewReplies(t *testing.T) {
	s, lead, draft := newStoreWithSentLead(t)

	mb := &mockMailbox{}
	mb.On("ListMessages", mock.Anything, mock.Anything).
		Return([]mailbox.Message{msg("<m1@mail>", "owner@joesgym.com", "tell me more")}, nil)

	summary, err := New(s, mb).Scan(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, &Summary{Fetched: 1, New: 1}, summary)

	replies, err := s.ListReplies(context.Background(), store.ReplyFilter{})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, lead.ID, replies[0].LeadID)
	assert.Equal(t, draft.ID, replies[0].DraftID)

	got, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusReplied, got.Status)
}

func TestScanIsIdempotent(t *testing.T) {
	s, _, _ := newStoreWithSentLead(t)

	mb := &mockMailbox{}
	mb.On("ListMessages", mock.Anything, mock.Anything).
		Return([]mailbox.Message{
			msg("<m1@mail>", "owner@joesgym.com", "first"),
			msg("<m2@mail>", "owner@joesgym.com", "second"),
		}, nil)

	m := New(s, mb)
	summary, err := m.Scan(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.New)

	// The rerun re-derives the known set and appends nothing.
	summary, err = m.Scan(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.New)
	assert.Equal(t, 2, summary.Duplicates)

	replies, err := s.ListReplies(context.Background(), store.ReplyFilter{})
	require.NoError(t, err)
	assert.Len(t, replies, 2)
}

func TestScanSkipsUnresolvableSender(t *testing.T) {
	s, _, _ := newStoreWithSentLead(t)

	mb := &mockMailbox{}
	mb.On("ListMessages", mock.Anything, mock.Anything).
		Return([]mailbox.Message{
			msg("<m1@mail>", "stranger@nowhere.com", "who is this"),
			msg("<m2@mail>", "owner@joesgym.com", "interested"),
		}, nil)

	summary, err := New(s, mb).Scan(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.New)

	replies, err := s.ListReplies(context.Background(), store.ReplyFilter{})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "<m2@mail>", replies[0].ProviderMessageID)
}

func TestScanSkipsLeadWithoutSentDraft(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateLead(context.Background(), model.Lead{Email: "owner@x.com"})
	require.NoError(t, err)

	mb := &mockMailbox{}
	mb.On("ListMessages", mock.Anything, mock.Anything).
		Return([]mailbox.Message{msg("<m1@mail>", "owner@x.com", "hi")}, nil)

	summary, err := New(s, mb).Scan(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.New)
}

func TestScanMailboxError(t *testing.T) {
	s, _, _ := newStoreWithSentLead(t)

	mb := &mockMailbox{}
	mb.On("ListMessages", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	_, err := New(s, mb).Scan(context.Background(), time.Time{})
	assert.Error(t, err)
}
