package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source column names.
const (
	ColClientKey  = "CodigoCliente"
	ColClientType = "TipoCliente"

	ColOrderStatus       = "SituacaoPedido"
	ColOrderTotal        = "TotalPedido"
	ColOrderDiscount     = "ValorDesconto"
	ColOrderPayment      = "FormaPagamento"
	ColOrderFreeShipping = "FreteGratis"
	ColOrderClientKey    = "CodigoClientePedido"

	ColItemProductKey = "CodigoProdutoVendido"
	ColItemQuantity   = "QuantidadeVendidaItem"

	ColProductKey  = "CodigoProduto"
	ColProductName = "Produto"
)

// Table names, as used by the export and preview commands.
const (
	TableClients  = "Clientes"
	TableOrders   = "Pedidos"
	TableItems    = "Itens"
	TableProducts = "Produtos"
)

// Dataset is the immutable set of tables a session answers questions over.
type Dataset struct {
	Clients  *Table
	Orders   *Table
	Items    *Table
	Products *Table
}

// Tables returns the tables in display order.
func (d *Dataset) Tables() []*Table {
	return []*Table{d.Clients, d.Orders, d.Items, d.Products}
}

// Table looks a table up by name, case-insensitively.
func (d *Dataset) Table(name string) (*Table, bool) {
	for _, t := range d.Tables() {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// Files names the four CSV sources.
type Files struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Clients  string `yaml:"clients" mapstructure:"clients"`
	Orders   string `yaml:"orders" mapstructure:"orders"`
	Items    string `yaml:"items" mapstructure:"items"`
	Products string `yaml:"products" mapstructure:"products"`
}

// DefaultFiles returns the conventional file names under dir.
func DefaultFiles(dir string) Files {
	return Files{
		Dir:      dir,
		Clients:  "clients.csv",
		Orders:   "orders.csv",
		Items:    "items.csv",
		Products: "products.csv",
	}
}

// Source is one table's name and resolved CSV path.
type Source struct {
	Table string
	Path  string
}

// Sources lists the four tables with their resolved paths, in display order.
func (f Files) Sources() []Source {
	return []Source{
		{TableClients, f.path(f.Clients)},
		{TableOrders, f.path(f.Orders)},
		{TableItems, f.path(f.Items)},
		{TableProducts, f.path(f.Products)},
	}
}

func (f Files) path(name string) string {
	if filepath.IsAbs(name) || f.Dir == "" {
		return name
	}
	return filepath.Join(f.Dir, name)
}

// Load reads the four CSV files. Any failure is fatal: a partial dataset is
// never returned.
func Load(ctx context.Context, files Files) (*Dataset, error) {
	ds := &Dataset{}
	sources := []struct {
		name string
		file string
		dst  **Table
	}{
		{TableClients, files.Clients, &ds.Clients},
		{TableOrders, files.Orders, &ds.Orders},
		{TableItems, files.Items, &ds.Items},
		{TableProducts, files.Products, &ds.Products},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "dataset: load cancelled")
			}
			t, err := ReadCSVFile(src.name, files.path(src.file))
			if err != nil {
				return err
			}
			*src.dst = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("dataset loaded",
		zap.String("dir", files.Dir),
		zap.Int("clients", ds.Clients.Len()),
		zap.Int("orders", ds.Orders.Len()),
		zap.Int("items", ds.Items.Len()),
		zap.Int("products", ds.Products.Len()),
	)
	return ds, nil
}

// ReadCSVFile opens path and parses it as a UTF-8 CSV with a header row.
func ReadCSVFile(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	t, err := ReadCSV(name, f)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return t, nil
}

// ReadCSV parses a CSV stream into a table. The first record is the header;
// a leading UTF-8 byte order mark is dropped.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read")
	}
	if len(records) == 0 {
		return nil, eris.Errorf("csv: %s has no header row", name)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return NewTable(name, header, records[1:]), nil
}

// Loader memoises a Load for the lifetime of one session. Each session owns
// its own Loader, so sessions never share a dataset instance.
type Loader struct {
	files Files

	mu sync.Mutex
	ds *Dataset
}

// NewLoader creates a loader for files.
func NewLoader(files Files) *Loader {
	return &Loader{files: files}
}

// Load returns the cached dataset, reading the files on first use. A failed
// load is not cached.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ds != nil {
		return l.ds, nil
	}
	ds, err := Load(ctx, l.files)
	if err != nil {
		return nil, err
	}
	l.ds = ds
	return ds, nil
}
