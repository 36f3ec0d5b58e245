package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type mockModels struct {
	mock.Mock
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.GenerateContentResponse), args.Error(1)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     30,
			CandidatesTokenCount: 12,
		},
	}
}

func TestGenerate(t *testing.T) {
	m := new(mockModels)
	temp := float32(0.1)
	m.On("GenerateContent", mock.Anything, defaultModel, mock.Anything,
		mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
			return cfg.SystemInstruction != nil &&
				cfg.SystemInstruction.Parts[0].Text == "sistema" &&
				*cfg.Temperature == temp &&
				cfg.MaxOutputTokens == 512
		}),
	).Return(textResponse("Explicação"), nil)

	c := &sdkClient{models: m}
	resp, err := c.Generate(context.Background(), GenerateRequest{
		System:      "sistema",
		Prompt:      "pergunta",
		Temperature: &temp,
		MaxTokens:   512,
	})
	require.NoError(t, err)
	assert.Equal(t, "Explicação", resp.Text)
	assert.Equal(t, defaultModel, resp.Model)
	assert.Equal(t, int32(30), resp.InputTokens)
	assert.Equal(t, int32(12), resp.OutputTokens)

	contents := m.Calls[0].Arguments.Get(2).([]*genai.Content)
	require.Len(t, contents, 1)
	assert.Equal(t, "pergunta", contents[0].Parts[0].Text)
	m.AssertExpectations(t)
}

func TestGenerate_Error(t *testing.T) {
	m := new(mockModels)
	m.On("GenerateContent", mock.Anything, "gemini-x", mock.Anything, mock.Anything).
		Return(nil, errors.New("quota"))

	c := &sdkClient{models: m}
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-x", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini: generate content")
}

func TestGenerate_NoCandidates(t *testing.T) {
	m := new(mockModels)
	m.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&genai.GenerateContentResponse{}, nil)

	c := &sdkClient{models: m}
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	require.Error(t, err)
}
