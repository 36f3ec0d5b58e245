// Package narration asks an external language model to explain numbers that
// have already been computed. It never computes anything itself and never
// retries a failed call.
package narration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/dataset"
)

var (
	// ErrUnavailable means no completion client is configured.
	ErrUnavailable = eris.New("cliente IA não disponível")
	// ErrEmptySnapshot means the dataset produced no numbers to narrate.
	ErrEmptySnapshot = eris.New("snapshot vazio: não há números para enviar")
)

// SystemPrompt instructs the model to explain only the numbers it is given.
const SystemPrompt = "Você é um analista de dados sênior. Explique o raciocínio com clareza, " +
	"cite as fórmulas usadas e a interpretação do resultado. Use apenas os números que eu te passar. " +
	"Se algo não fizer sentido, diga explicitamente."

// Request is one system+user completion.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer sends a prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options tunes the requests an Explainer sends.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Explainer composes narration prompts and sends them through a Completer.
// A nil *Explainer is valid and reports ErrUnavailable.
type Explainer struct {
	completer Completer
	opts      Options
}

// NewExplainer returns an Explainer backed by c.
func NewExplainer(c Completer, opts Options) *Explainer {
	return &Explainer{completer: c, opts: opts}
}

// Explain narrates payload, a handler result or a snapshot, in the context of
// question. At most maxNumbers numbers are listed in the prompt.
func (e *Explainer) Explain(ctx context.Context, question string, payload any, maxNumbers int) (string, error) {
	if e == nil || e.completer == nil {
		return "", ErrUnavailable
	}

	user, err := UserMessage(question, payload, maxNumbers)
	if err != nil {
		return "", err
	}

	text, err := e.completer.Complete(ctx, Request{
		Model:       e.opts.Model,
		System:      SystemPrompt,
		User:        user,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		zap.L().Warn("narration failed", zap.Error(err))
		return "", eris.Wrap(err, "erro ao chamar o modelo")
	}
	return text, nil
}

// ExplainFallback narrates a snapshot of ds for a question no handler
// answers.
func (e *Explainer) ExplainFallback(ctx context.Context, question string, ds *dataset.Dataset, maxNumbers int) (string, error) {
	if e == nil || e.completer == nil {
		return "", ErrUnavailable
	}
	snap := analytics.BuildSnapshot(ds)
	if len(snap) == 0 {
		return "", ErrEmptySnapshot
	}
	return e.Explain(ctx, question, snap, maxNumbers)
}

// UserMessage builds the user turn: the question, the flattened numbers and
// the structured payload as JSON for reference.
func UserMessage(question string, payload any, maxNumbers int) (string, error) {
	raw, err := json.Marshal(analytics.JSONSafe(payload))
	if err != nil {
		return "", eris.Wrap(err, "narration: marshal payload")
	}
	return fmt.Sprintf(
		"Pergunta do usuário: %s\n"+
			"Números já calculados pelo backend (use apenas estes): %s\n"+
			"Resultado estruturado (não envie de volta, apenas use para explicar): %s",
		question, FlattenNumbers(payload, maxNumbers), raw,
	), nil
}
