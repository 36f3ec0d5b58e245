package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/dataset"
	"github.com/sells-group/pedidos-cli/internal/narration"
	"github.com/sells-group/pedidos-cli/internal/router"
	"github.com/sells-group/pedidos-cli/internal/store"
)

type mockExplainer struct {
	mock.Mock
}

func (m *mockExplainer) Explain(ctx context.Context, question string, payload any, maxNumbers int) (string, error) {
	args := m.Called(ctx, question, payload, maxNumbers)
	return args.String(0), args.Error(1)
}

func (m *mockExplainer) ExplainFallback(ctx context.Context, question string, ds *dataset.Dataset, maxNumbers int) (string, error) {
	args := m.Called(ctx, question, ds, maxNumbers)
	return args.String(0), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveTurn(ctx context.Context, t store.Turn) (*store.Turn, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Turn), args.Error(1)
}

func (m *mockStore) ListTurns(ctx context.Context, id string) ([]store.Turn, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]store.Turn), args.Error(1)
}

func (m *mockStore) ListSessions(ctx context.Context, limit int) ([]store.SessionSummary, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]store.SessionSummary), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

func writeFixture(t *testing.T) *dataset.Loader {
	t.Helper()
	return dataset.NewLoader(dataset.DefaultFiles(fixtureDir(t)))
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"clients.csv": "CodigoCliente,TipoCliente\n1,Física\n2,Jurídica\n",
		"orders.csv": "SituacaoPedido,TotalPedido,ValorDesconto,FormaPagamento,FreteGratis,CodigoClientePedido\n" +
			"Faturado,100,10,Pix,Sim,1\n" +
			"Faturado,300,30,Pix,nao,2\n" +
			"Pendente,50,0,Boleto,nao,2\n",
		"items.csv":    "CodigoProdutoVendido,QuantidadeVendidaItem\n10,3\n11,1\n",
		"products.csv": "CodigoProduto,Produto\n10,Caneca\n11,Camiseta\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestAsk_Deterministic(t *testing.T) {
	s := New(writeFixture(t), nil, nil, Options{})

	ans, err := s.Ask(context.Background(), "Qual é o ticket médio?")
	require.NoError(t, err)
	assert.Equal(t, router.IntentTicketAverage, ans.Intent)
	sc, ok := ans.Result.(*analytics.Scalar)
	require.True(t, ok)
	assert.InDelta(t, 200.0, *sc.Value, 1e-9)
	assert.Empty(t, ans.Narration)
	assert.Empty(t, ans.Warnings)
	assert.Empty(t, ans.Guidance)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	s := New(writeFixture(t), nil, nil, Options{})

	_, err := s.Ask(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrEmptyQuestion))
	assert.Empty(t, s.History())
}

func TestAsk_UnmappedWithoutNarrationShowsGuidance(t *testing.T) {
	m := new(mockExplainer)
	s := New(writeFixture(t), m, nil, Options{})

	ans, err := s.Ask(context.Background(), "Qual é a cor favorita do gerente?")
	require.NoError(t, err)
	assert.Equal(t, router.IntentUnmapped, ans.Intent)
	assert.True(t, ans.Unmapped())
	assert.Equal(t, GuidanceUnmapped, ans.Guidance)
	m.AssertNotCalled(t, "ExplainFallback", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_UnmappedWithNarrationUsesFallback(t *testing.T) {
	m := new(mockExplainer)
	m.On("ExplainFallback", mock.Anything, "Qual é a cor favorita do gerente?", mock.Anything, 60).
		Return("Não há dados sobre cores.", nil)

	s := New(writeFixture(t), m, nil, Options{NarrationEnabled: true, MaxNumbers: 60})
	ans, err := s.Ask(context.Background(), "Qual é a cor favorita do gerente?")
	require.NoError(t, err)
	assert.Equal(t, "Não há dados sobre cores.", ans.Narration)
	assert.Contains(t, ans.Warnings, WarnFallback)
	assert.Empty(t, ans.Guidance)
	m.AssertExpectations(t)
}

func TestAsk_NarratesMappedResult(t *testing.T) {
	m := new(mockExplainer)
	m.On("Explain", mock.Anything, "top produtos", mock.AnythingOfType("*analytics.Table"), 20).
		Return("Caneca lidera.", nil)

	s := New(writeFixture(t), m, nil, Options{NarrationEnabled: true, MaxNumbers: 20})
	ans, err := s.Ask(context.Background(), "top produtos")
	require.NoError(t, err)
	assert.Equal(t, router.IntentTopProducts, ans.Intent)
	assert.Equal(t, "Caneca lidera.", ans.Narration)
	m.AssertExpectations(t)
}

func TestAsk_NarrationFailureKeepsResult(t *testing.T) {
	m := new(mockExplainer)
	m.On("Explain", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("erro ao chamar o modelo: timeout")).Once()

	s := New(writeFixture(t), m, nil, Options{NarrationEnabled: true})
	ans, err := s.Ask(context.Background(), "status dos pedidos")
	require.NoError(t, err)
	assert.False(t, ans.Unmapped())
	assert.Empty(t, ans.Narration)
	require.Len(t, ans.Warnings, 1)
	assert.Contains(t, ans.Warnings[0], "timeout")
	m.AssertNumberOfCalls(t, "Explain", 1)
}

func TestAsk_SetupErrorReportedOnce(t *testing.T) {
	setupErr := errors.New("API key não encontrada: configure OPENROUTER_API_KEY")
	s := New(writeFixture(t), nil, nil, Options{NarrationEnabled: true, NarrationSetupErr: setupErr})

	first, err := s.Ask(context.Background(), "ticket médio")
	require.NoError(t, err)
	assert.Equal(t, []string{setupErr.Error()}, first.Warnings)

	second, err := s.Ask(context.Background(), "ticket médio")
	require.NoError(t, err)
	assert.Empty(t, second.Warnings)

	unmapped, err := s.Ask(context.Background(), "qualquer coisa")
	require.NoError(t, err)
	assert.Equal(t, GuidanceUnmapped, unmapped.Guidance)
}

func TestAsk_NoExplainerConfigured(t *testing.T) {
	s := New(writeFixture(t), nil, nil, Options{NarrationEnabled: true})

	ans, err := s.Ask(context.Background(), "ticket médio")
	require.NoError(t, err)
	assert.Contains(t, ans.Warnings, narration.ErrUnavailable.Error())
}

func TestAsk_AggregationFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"clients.csv":  "CodigoCliente,TipoCliente\n",
		"orders.csv":   "Outra\nx\n",
		"items.csv":    "CodigoProdutoVendido,QuantidadeVendidaItem\n",
		"products.csv": "CodigoProduto,Produto\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	m := new(mockExplainer)
	s := New(dataset.NewLoader(dataset.DefaultFiles(dir)), m, nil, Options{NarrationEnabled: true})

	ans, err := s.Ask(context.Background(), "ticket médio")
	require.NoError(t, err)
	assert.Equal(t, router.IntentTicketAverage, ans.Intent)
	assert.Nil(t, ans.Result)
	require.Len(t, ans.Warnings, 1)
	assert.Contains(t, ans.Warnings[0], "ticket_medio")
	assert.Empty(t, ans.Guidance)
	m.AssertNotCalled(t, "ExplainFallback", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_DatasetLoadFailure(t *testing.T) {
	s := New(dataset.NewLoader(dataset.DefaultFiles(t.TempDir())), nil, nil, Options{})

	_, err := s.Ask(context.Background(), "ticket médio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dataset")
}

func TestHistory_RecordsBothRoles(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	s := New(writeFixture(t), nil, st, Options{})
	_, err = s.Ask(context.Background(), "ticket médio")
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "frete grátis")
	require.NoError(t, err)

	hist := s.History()
	require.Len(t, hist, 4)
	assert.Equal(t, store.RoleUser, hist[0].Role)
	assert.Equal(t, "Ticket médio (pedidos faturados): 200.00", hist[1].Content)
	assert.Equal(t, string(router.IntentTicketAverage), hist[1].Intent)
	assert.Equal(t, "total_frete_gratis: 1", hist[3].Content)

	stored, err := st.ListTurns(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, hist[0].ID, stored[0].ID)
}

func TestHistory_StoreFailureDoesNotFailAnswer(t *testing.T) {
	ms := new(mockStore)
	ms.On("SaveTurn", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	s := New(writeFixture(t), nil, ms, Options{})
	ans, err := s.Ask(context.Background(), "formas de pagamento")
	require.NoError(t, err)
	assert.False(t, ans.Unmapped())
	assert.Len(t, s.History(), 2)
	ms.AssertNumberOfCalls(t, "SaveTurn", 2)
}

func TestSessions_AreIsolated(t *testing.T) {
	a := New(writeFixture(t), nil, nil, Options{})
	b := New(writeFixture(t), nil, nil, Options{})
	assert.NotEqual(t, a.ID, b.ID)

	_, err := a.Ask(context.Background(), "status")
	require.NoError(t, err)
	assert.Len(t, a.History(), 2)
	assert.Empty(t, b.History())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "Situação / Total: 2 linhas", Summarize(&Answer{Result: &analytics.Table{
		Columns: []string{analytics.ColStatus, analytics.ColTotal},
		Rows:    [][]any{{"Faturado", 2}, {"Pendente", 1}},
	}}))
	assert.Equal(t, "texto", Summarize(&Answer{Narration: "texto"}))
	assert.Equal(t, GuidanceUnmapped, Summarize(&Answer{Guidance: GuidanceUnmapped}))
	assert.Equal(t, "w2", Summarize(&Answer{Warnings: []string{"w1", "w2"}}))
}

func TestDataset_LoadedOncePerSession(t *testing.T) {
	dir := fixtureDir(t)
	s := New(dataset.NewLoader(dataset.DefaultFiles(dir)), nil, nil, Options{})

	first, err := s.Dataset(context.Background())
	require.NoError(t, err)

	// The files are gone; Ask must reuse the first load.
	require.NoError(t, os.RemoveAll(dir))
	ans, err := s.Ask(context.Background(), "ticket médio")
	require.NoError(t, err)
	assert.False(t, ans.Unmapped())

	again, err := s.Dataset(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
}
