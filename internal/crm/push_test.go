package crm

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

type mockSalesforce struct {
	mock.Mock
}

func (m *mockSalesforce) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

func (m *mockSalesforce) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *mockSalesforce) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	args := m.Called(ctx, sObjectName, id, fields)
	return args.Error(0)
}

func seedInterestedLead(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	lead, err := s.CreateLead(ctx, model.Lead{
		CompanyName: "Joe's Gym",
		Email:       "owner@joesgym.com",
		WebsiteURL:  "https://joesgym.com",
		Industry:    model.IndustryGym,
		Status:      model.LeadStatusReplied,
	})
	require.NoError(t, err)
	draft, err := s.CreateDraft(ctx, model.DraftEmail{LeadID: lead.ID, Subject: "s", BodyText: "b"})
	require.NoError(t, err)
	reply, err := s.InsertReply(ctx, model.Reply{
		LeadID: lead.ID, DraftID: draft.ID,
		ProviderMessageID: "<m1@mail>", Body: "let's talk", ReceivedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateReplyClassification(ctx, reply.ID, model.Classification{
		Intent: model.IntentInterested, Confidence: 0.9, Summary: "Wants a demo.",
	}, time.Now()))
	return s
}

func TestPushInsertsNewLead(t *testing.T) {
	s := seedInterestedLead(t)

	sf := &mockSalesforce{}
	sf.On("Query", mock.Anything, mock.MatchedBy(func(soql string) bool {
		return strings.Contains(soql, "owner@joesgym.com")
	}), mock.Anything).Return(nil)
	sf.On("InsertOne", mock.Anything, "Lead", mock.MatchedBy(func(rec map[string]any) bool {
		return rec["Email"] == "owner@joesgym.com" && rec["Company"] == "Joe's Gym"
	})).Return("00Q000000000001", nil)

	summary, err := New(s, sf).Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pushed)
	assert.Equal(t, 0, summary.Existing)
	sf.AssertExpectations(t)
}

func TestPushSkipsExisting(t *testing.T) {
	s := seedInterestedLead(t)

	sf := &mockSalesforce{}
	sf.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			out := args.Get(2).(*[]struct {
				ID string `json:"Id"`
			})
			*out = append(*out, struct {
				ID string `json:"Id"`
			}{ID: "00Q000000000002"})
		}).Return(nil)

	summary, err := New(s, sf).Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pushed)
	assert.Equal(t, 1, summary.Existing)
	sf.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestPushNothingInterested(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	summary, err := New(s, &mockSalesforce{}).Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pushed)
}
