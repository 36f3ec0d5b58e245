// Package session runs the question/answer loop for one user: route the
// question, compute the answer, optionally narrate it, and keep the history.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/dataset"
	"github.com/sells-group/pedidos-cli/internal/narration"
	"github.com/sells-group/pedidos-cli/internal/router"
	"github.com/sells-group/pedidos-cli/internal/store"
)

// GuidanceUnmapped is shown when no handler matches and nothing is narrated.
const GuidanceUnmapped = "Pergunta não está mapeada para cálculo determinístico. " +
	"Ative a IA ou diga qual métrica específica quer que eu implemente."

// WarnFallback precedes a snapshot narration.
const WarnFallback = "Pergunta não está mapeada para cálculo. Pesquisando com IA…"

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = eris.New("pergunta vazia")

// Explainer narrates computed numbers. *narration.Explainer implements it.
type Explainer interface {
	Explain(ctx context.Context, question string, payload any, maxNumbers int) (string, error)
	ExplainFallback(ctx context.Context, question string, ds *dataset.Dataset, maxNumbers int) (string, error)
}

// Options configures a Session.
type Options struct {
	NarrationEnabled bool
	MaxNumbers       int
	TopN             int
	// NarrationSetupErr is a narration client construction failure. It is
	// reported once, on the first answer, and narration is skipped.
	NarrationSetupErr error
}

// Answer is everything produced for one question.
type Answer struct {
	Question  string           `json:"pergunta"`
	Intent    router.Intent    `json:"intent"`
	Result    analytics.Result `json:"resultado,omitempty"`
	Narration string           `json:"explicacao,omitempty"`
	Guidance  string           `json:"orientacao,omitempty"`
	Warnings  []string         `json:"avisos,omitempty"`
}

// Unmapped reports whether no handler produced a result.
func (a *Answer) Unmapped() bool {
	return analytics.IsEmpty(a.Result)
}

// Session holds one user's dataset, narration client and conversation
// history. Ask calls are serialized.
type Session struct {
	ID string

	data      *dataset.Loader
	explainer Explainer
	store     store.Store
	opts      Options

	mu            sync.Mutex
	history       []store.Turn
	setupReported bool
}

// New creates a session with a fresh ID. explainer and st may be nil.
func New(data *dataset.Loader, explainer Explainer, st store.Store, opts Options) *Session {
	return &Session{
		ID:        uuid.New().String(),
		data:      data,
		explainer: explainer,
		store:     st,
		opts:      opts,
	}
}

// Ask answers one question. Only a blank question or a dataset load failure
// is returned as an error; aggregation and narration failures become
// warnings on the Answer.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	s.record(ctx, store.Turn{Role: store.RoleUser, Content: question})

	ans := &Answer{Question: question}
	intent, res, err := router.Route(question, ds, router.Options{TopN: s.opts.TopN})
	ans.Intent = intent
	log := zap.L().With(zap.String("session_id", s.ID), zap.String("intent", string(intent)))

	switch {
	case err != nil:
		log.Warn("aggregation failed", zap.Error(err))
		ans.Warnings = append(ans.Warnings, fmt.Sprintf("não foi possível calcular %s: %v", intent, err))
	case !analytics.IsEmpty(res):
		ans.Result = res
		if s.narrationReady(ans) {
			text, nerr := s.explainer.Explain(ctx, question, res, s.opts.MaxNumbers)
			s.applyNarration(ans, text, nerr, log)
		}
	default:
		if s.narrationReady(ans) {
			ans.Warnings = append(ans.Warnings, WarnFallback)
			text, nerr := s.explainer.ExplainFallback(ctx, question, ds, s.opts.MaxNumbers)
			s.applyNarration(ans, text, nerr, log)
		} else {
			ans.Guidance = GuidanceUnmapped
		}
	}

	log.Debug("question answered", zap.Bool("unmapped", ans.Unmapped()), zap.Int("warnings", len(ans.Warnings)))
	s.record(ctx, store.Turn{Role: store.RoleAssistant, Content: Summarize(ans), Intent: string(intent)})
	return ans, nil
}

// narrationReady reports whether narration should be attempted. A client
// setup error is attached to the first answer only.
func (s *Session) narrationReady(ans *Answer) bool {
	if !s.opts.NarrationEnabled {
		return false
	}
	if s.opts.NarrationSetupErr != nil {
		if !s.setupReported {
			ans.Warnings = append(ans.Warnings, s.opts.NarrationSetupErr.Error())
			s.setupReported = true
		}
		return false
	}
	if s.explainer == nil {
		ans.Warnings = append(ans.Warnings, narration.ErrUnavailable.Error())
		return false
	}
	return true
}

func (s *Session) applyNarration(ans *Answer, text string, err error, log *zap.Logger) {
	if err != nil {
		log.Warn("narration failed", zap.Error(err))
		ans.Warnings = append(ans.Warnings, err.Error())
		return
	}
	ans.Narration = text
}

// record appends to the in-memory history and, when configured, the store.
// Store failures are logged and never fail the answer.
func (s *Session) record(ctx context.Context, t store.Turn) {
	t.SessionID = s.ID
	t.CreatedAt = time.Now().UTC()
	if s.store != nil {
		saved, err := s.store.SaveTurn(ctx, t)
		if err != nil {
			zap.L().Warn("history persist failed", zap.String("session_id", s.ID), zap.Error(err))
		} else {
			t = *saved
		}
	}
	s.history = append(s.history, t)
}

// Dataset returns the session's dataset, loading it on first use. Later
// calls, including Ask, reuse the same load.
func (s *Session) Dataset(ctx context.Context) (*dataset.Dataset, error) {
	ds, err := s.data.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "session: load dataset")
	}
	return ds, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []store.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Summarize renders a one-line assistant turn for the history.
func Summarize(a *Answer) string {
	switch r := a.Result.(type) {
	case *analytics.Scalar:
		if r.Value != nil {
			return fmt.Sprintf("%s: %.2f", r.Title, *r.Value)
		}
		if len(r.Detail) > 0 {
			return fmt.Sprintf("%s: %v", r.Detail[0].Key, r.Detail[0].Value)
		}
	case *analytics.Table:
		return fmt.Sprintf("%s: %d linhas", strings.Join(r.Columns, " / "), len(r.Rows))
	}
	switch {
	case a.Narration != "":
		return a.Narration
	case a.Guidance != "":
		return a.Guidance
	case len(a.Warnings) > 0:
		return a.Warnings[len(a.Warnings)-1]
	}
	return ""
}
