package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS turns`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTurn(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO turns`).
		WithArgs(pgxmock.AnyArg(), "sess-1", RoleUser, "Qual o ticket médio?", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	turn, err := s.SaveTurn(context.Background(), Turn{
		SessionID: "sess-1",
		Role:      RoleUser,
		Content:   "Qual o ticket médio?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, turn.ID)
	assert.False(t, turn.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTurn_InvalidRole(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.SaveTurn(context.Background(), Turn{SessionID: "s", Role: "system"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTurn_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO turns`).
		WillReturnError(errors.New("connection refused"))

	_, err := s.SaveTurn(context.Background(), Turn{SessionID: "s", Role: RoleAssistant})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert turn")
}

func TestPostgresStore_ListTurns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, session_id, role, content, intent, created_at FROM turns WHERE session_id = \$1`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "role", "content", "intent", "created_at"}).
			AddRow("t1", "sess-1", RoleUser, "ticket médio", "", now).
			AddRow("t2", "sess-1", RoleAssistant, "Ticket médio: 200", "ticket_medio", now.Add(time.Second)))

	turns, err := s.ListTurns(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "ticket_medio", turns[1].Intent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	first := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT session_id, COUNT\(\*\)`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"session_id", "count", "min", "max"}).
			AddRow("sess-1", 4, first, first.Add(time.Minute)))

	sessions, err := s.ListSessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 4, sessions[0].Turns)
	assert.Equal(t, first.Add(time.Minute), sessions[0].LastAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
