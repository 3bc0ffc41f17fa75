package drafter

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestAnalyze(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"industry": "gym", "icp_score": 8, "company_name": "Joe's Gym", "reasoning": "clear membership business"}`), nil)

	a := NewAnalyzer(client, "test-model")
	analysis, err := a.Analyze(context.Background(), "https://joesgym.com", "Welcome to Joe's Gym")
	require.NoError(t, err)

	assert.Equal(t, model.IndustryGym, analysis.Industry)
	assert.InDelta(t, 8.0, analysis.ICPScore, 0.001)
	assert.Equal(t, "Joe's Gym", analysis.CompanyName)
	assert.Equal(t, int64(100), a.Usage().InputTokens)
	client.AssertExpectations(t)
}

func TestAnalyzeFencedResponse(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("```json\n{\"industry\": \"saas\", \"icp_score\": 6, \"company_name\": \"Acme\"}\n```"), nil)

	a := NewAnalyzer(client, "test-model")
	analysis, err := a.Analyze(context.Background(), "https://acme.io", "text")
	require.NoError(t, err)
	assert.Equal(t, model.IndustrySaaS, analysis.Industry)
}

func TestAnalyzeUnknownIndustryFallsBack(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"industry": "veterinary", "icp_score": 5, "company_name": "Paws"}`), nil)

	a := NewAnalyzer(client, "test-model")
	analysis, err := a.Analyze(context.Background(), "https://paws.com", "text")
	require.NoError(t, err)
	assert.Equal(t, model.IndustryOther, analysis.Industry)
}

func TestAnalyzeNoJSONFails(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I could not determine the industry."), nil)

	a := NewAnalyzer(client, "test-model")
	_, err := a.Analyze(context.Background(), "https://x.com", "text")
	assert.Error(t, err)
}

func TestAnalyzeScoreOutOfRange(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"industry": "gym", "icp_score": 14, "company_name": "X"}`), nil)

	a := NewAnalyzer(client, "test-model")
	_, err := a.Analyze(context.Background(), "https://x.com", "text")
	assert.Error(t, err)
}

func TestAnalyzeAPIError(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("rate limited"))

	a := NewAnalyzer(client, "test-model")
	_, err := a.Analyze(context.Background(), "https://x.com", "text")
	assert.Error(t, err)
}
