// Package store persists conversation history so sessions can be listed and
// replayed after the process exits.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a session's conversation.
type Turn struct {
	ID        string    `json:"id" yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Intent    string    `json:"intent,omitempty" yaml:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// SessionSummary describes a stored session.
type SessionSummary struct {
	ID        string    `json:"id" yaml:"id"`
	Turns     int       `json:"turns" yaml:"turns"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	LastAt    time.Time `json:"last_at" yaml:"last_at"`
}

// Store defines the persistence interface for conversation history.
type Store interface {
	SaveTurn(ctx context.Context, turn Turn) (*Turn, error)
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open connects to the store named by driver and migrates it. DriverNone
// returns a nil Store and no error.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "pedidos.db"
		}
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, eris.New("store: postgres requires store.database_url")
		}
		st, err = NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func validateTurn(t Turn) error {
	if t.SessionID == "" {
		return eris.New("store: turn has no session id")
	}
	if t.Role != RoleUser && t.Role != RoleAssistant {
		return eris.Errorf("store: invalid role %q", t.Role)
	}
	return nil
}
