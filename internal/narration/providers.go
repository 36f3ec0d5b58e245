package narration

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pedidos-cli/pkg/anthropic"
	"github.com/sells-group/pedidos-cli/pkg/gemini"
	"github.com/sells-group/pedidos-cli/pkg/openrouter"
)

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
)

// ErrMissingKey is returned by New when the selected provider has no key.
var ErrMissingKey = eris.New("API key não encontrada")

// Settings selects and configures a completion provider.
type Settings struct {
	Provider      string
	APIKey        string
	BaseURL       string
	RatePerMinute int
}

// New builds the Completer for s.Provider. A missing key yields ErrMissingKey
// naming the variable to set.
func New(ctx context.Context, s Settings) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		provider = ProviderOpenRouter
	}

	switch provider {
	case ProviderOpenRouter:
		if s.APIKey == "" {
			return nil, eris.Wrap(ErrMissingKey, "configure OPENROUTER_API_KEY")
		}
		return &OpenRouterCompleter{Client: openrouter.NewClient(s.APIKey,
			openrouter.WithBaseURL(s.BaseURL),
			openrouter.WithRateLimit(s.RatePerMinute),
		)}, nil
	case ProviderAnthropic:
		if s.APIKey == "" {
			return nil, eris.Wrap(ErrMissingKey, "configure PEDIDOS_ANTHROPIC_KEY")
		}
		var opts []anthropic.Option
		if s.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(s.BaseURL))
		}
		return &AnthropicCompleter{Client: anthropic.NewClient(s.APIKey, opts...)}, nil
	case ProviderGemini:
		if s.APIKey == "" {
			return nil, eris.Wrap(ErrMissingKey, "configure PEDIDOS_GEMINI_KEY")
		}
		c, err := gemini.NewClient(ctx, s.APIKey)
		if err != nil {
			return nil, err
		}
		return &GeminiCompleter{Client: c}, nil
	default:
		return nil, eris.Errorf("narration: unknown provider %q", s.Provider)
	}
}

// OpenRouterCompleter adapts an OpenRouter chat client.
type OpenRouterCompleter struct {
	Client openrouter.Client
}

// Complete implements Completer.
func (c *OpenRouterCompleter) Complete(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	cr := openrouter.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openrouter.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		cr.MaxTokens = &mt
	}
	resp, err := c.Client.ChatCompletion(ctx, cr)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// AnthropicCompleter adapts an Anthropic messages client.
type AnthropicCompleter struct {
	Client anthropic.Client
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	resp, err := c.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       nativeModel(req.Model),
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(resp.Model, "narration")
	return resp.Text(), nil
}

// GeminiCompleter adapts a Gemini client.
type GeminiCompleter struct {
	Client gemini.Client
}

// Complete implements Completer.
func (c *GeminiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	temp := float32(req.Temperature)
	resp, err := c.Client.Generate(ctx, gemini.GenerateRequest{
		Model:       nativeModel(req.Model),
		System:      req.System,
		Prompt:      req.User,
		Temperature: &temp,
		MaxTokens:   clampInt32(req.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	resp.LogUsage("narration")
	return resp.Text, nil
}

// clampInt32 keeps n inside [0, math.MaxInt32].
func clampInt32(n int) int32 {
	switch {
	case n < 0:
		return 0
	case n > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(n)
}

// nativeModel drops OpenRouter-style ids ("vendor/model") so the
// provider's own default applies.
func nativeModel(m string) string {
	if strings.Contains(m, "/") {
		return ""
	}
	return m
}
