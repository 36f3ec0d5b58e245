package narration

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pedidos-cli/pkg/anthropic"
	"github.com/sells-group/pedidos-cli/pkg/gemini"
)

func TestNew_MissingKey(t *testing.T) {
	for _, p := range []string{"", ProviderOpenRouter, ProviderAnthropic, ProviderGemini} {
		t.Run(p, func(t *testing.T) {
			_, err := New(context.Background(), Settings{Provider: p})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingKey))
			assert.Contains(t, err.Error(), "API key não encontrada")
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Settings{Provider: "cohere", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNew_Providers(t *testing.T) {
	c, err := New(context.Background(), Settings{Provider: "OpenRouter", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterCompleter{}, c)

	c, err = New(context.Background(), Settings{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicCompleter{}, c)
}

func TestOpenRouterCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mistralai/mistral-7b-instruct", body.Model)
		assert.InDelta(t, 0.1, body.Temperature, 1e-9)
		assert.Equal(t, 300, body.MaxTokens)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, SystemPrompt, body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"explicação"}}]}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Settings{Provider: ProviderOpenRouter, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), Request{
		Model:       "mistralai/mistral-7b-instruct",
		System:      SystemPrompt,
		User:        "Pergunta do usuário: x",
		Temperature: 0.1,
		MaxTokens:   300,
	})
	require.NoError(t, err)
	assert.Equal(t, "explicação", text)
}

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestAnthropicCompleter(t *testing.T) {
	m := new(mockAnthropic)
	m.On("CreateMessage", mock.Anything, mock.MatchedBy(func(r anthropic.MessageRequest) bool {
		return r.Model == "" && r.MaxTokens == 1024 && r.System == "sys" &&
			len(r.Messages) == 1 && r.Messages[0].Content == "user" &&
			*r.Temperature == 0.1
	})).Return(&anthropic.MessageResponse{
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: "ok"}},
	}, nil)

	c := &AnthropicCompleter{Client: m}
	text, err := c.Complete(context.Background(), Request{
		Model:       "mistralai/mistral-7b-instruct",
		System:      "sys",
		User:        "user",
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	m.AssertExpectations(t)
}

func TestAnthropicCompleter_Error(t *testing.T) {
	m := new(mockAnthropic)
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	_, err := (&AnthropicCompleter{Client: m}).Complete(context.Background(), Request{})
	require.Error(t, err)
}

type mockGemini struct {
	mock.Mock
}

func (m *mockGemini) Generate(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.GenerateResponse), args.Error(1)
}

func TestGeminiCompleter(t *testing.T) {
	m := new(mockGemini)
	m.On("Generate", mock.Anything, mock.MatchedBy(func(r gemini.GenerateRequest) bool {
		return r.Model == "gemini-2.5-pro" && r.Prompt == "user" && r.System == "sys" && r.MaxTokens == 256
	})).Return(&gemini.GenerateResponse{Text: "resposta", Model: "gemini-2.5-pro"}, nil)

	c := &GeminiCompleter{Client: m}
	text, err := c.Complete(context.Background(), Request{
		Model:     "gemini-2.5-pro",
		System:    "sys",
		User:      "user",
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)
}

func TestGeminiCompleter_ClampsMaxTokens(t *testing.T) {
	m := new(mockGemini)
	m.On("Generate", mock.Anything, mock.MatchedBy(func(r gemini.GenerateRequest) bool {
		return r.MaxTokens == math.MaxInt32
	})).Return(&gemini.GenerateResponse{Text: "ok"}, nil)

	c := &GeminiCompleter{Client: m}
	_, err := c.Complete(context.Background(), Request{User: "u", MaxTokens: math.MaxInt32 + 1})
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestClampInt32(t *testing.T) {
	assert.Equal(t, int32(0), clampInt32(-5))
	assert.Equal(t, int32(256), clampInt32(256))
	assert.Equal(t, int32(math.MaxInt32), clampInt32(math.MaxInt32+1))
}
