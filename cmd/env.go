package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos-cli/internal/config"
	"github.com/sells-group/pedidos-cli/internal/dataset"
	"github.com/sells-group/pedidos-cli/internal/narration"
	"github.com/sells-group/pedidos-cli/internal/session"
	"github.com/sells-group/pedidos-cli/internal/store"
)

// sessionEnv holds what the ask/chat/serve commands share: the narration
// explainer (or its setup error) and the optional history store.
type sessionEnv struct {
	cfg       *config.Config
	Explainer session.Explainer
	SetupErr  error
	Store     store.Store
}

// Close releases resources held by the environment.
func (e *sessionEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// NewSession builds a session with its own dataset loader.
func (e *sessionEnv) NewSession() *session.Session {
	return session.New(newLoader(e.cfg), e.Explainer, e.Store, session.Options{
		NarrationEnabled:  e.cfg.Narration.Enabled,
		MaxNumbers:        e.cfg.Narration.MaxNumbers,
		TopN:              e.cfg.Narration.TopN,
		NarrationSetupErr: e.SetupErr,
	})
}

// initSessionEnv validates the config for mode and sets up the store and,
// when enabled, the narration client. A narration setup failure does not
// fail the command; sessions report it on their first answer. Callers
// should defer env.Close().
func initSessionEnv(ctx context.Context, c *config.Config, mode string) (*sessionEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}

	env := &sessionEnv{cfg: c, Store: st}
	if c.Narration.Enabled {
		env.Explainer, env.SetupErr = newExplainer(ctx, c)
		if env.SetupErr != nil {
			zap.L().Warn("narration unavailable", zap.Error(env.SetupErr))
		}
	}
	return env, nil
}

// newExplainer builds the narration explainer for the configured provider.
func newExplainer(ctx context.Context, c *config.Config) (session.Explainer, error) {
	settings := narration.Settings{
		Provider:      c.Narration.Provider,
		APIKey:        c.ProviderKey(),
		RatePerMinute: c.Narration.RatePerMinute,
	}
	if settings.Provider == "" || settings.Provider == narration.ProviderOpenRouter {
		settings.BaseURL = c.OpenRouter.BaseURL
	}

	completer, err := narration.New(ctx, settings)
	if err != nil {
		return nil, err
	}
	return narration.NewExplainer(completer, narration.Options{
		Model:       c.Narration.Model,
		Temperature: c.Narration.Temperature,
		MaxTokens:   c.Narration.MaxTokens,
	}), nil
}

// initStore opens the configured history store. It returns nil when history
// persistence is disabled.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

func newLoader(c *config.Config) *dataset.Loader {
	return dataset.NewLoader(c.Data)
}

// loadDataset reads the configured CSV files once.
func loadDataset(ctx context.Context, c *config.Config) (*dataset.Dataset, error) {
	ds, err := newLoader(c).Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load dataset")
	}
	return ds, nil
}
