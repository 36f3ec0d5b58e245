package gemini

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Client generates text with the Gemini API.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is one single-turn generation.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float32
	MaxTokens   int32
}

// GenerateResponse carries the generated text and token counts.
type GenerateResponse struct {
	Text         string
	Model        string
	InputTokens  int32
	OutputTokens int32
}

// LogUsage logs token consumption with structured zap fields.
func (r *GenerateResponse) LogUsage(phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", r.Model),
		zap.String("phase", phase),
		zap.Int32("input_tokens", r.InputTokens),
		zap.Int32("output_tokens", r.OutputTokens),
	)
}

// modelsAPI is the subset of *genai.Models the client calls.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type sdkClient struct {
	models modelsAPI
}

// NewClient creates a Gemini client backed by the genai SDK.
func NewClient(ctx context.Context, apiKey string) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{models: client.Models}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		req.Model = defaultModel
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	if len(resp.Candidates) == 0 {
		return nil, eris.New("gemini: response has no candidates")
	}

	out := &GenerateResponse{Text: resp.Text(), Model: req.Model}
	if resp.UsageMetadata != nil {
		out.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}
