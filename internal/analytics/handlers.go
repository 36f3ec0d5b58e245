package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pedidos-cli/internal/dataset"
)

// DefaultTopN is how many products TopProducts returns when n <= 0.
const DefaultTopN = 5

// Output column names of the tabular handlers.
const (
	ColProduct       = "Produto"
	ColQuantity      = "QuantidadeVendidaItem"
	ColPaymentMethod = "Forma de Pagamento"
	ColStatus        = "Situação"
	ColCustomerType  = "Tipo de Cliente"
	ColTotal         = "Total"
	ColTotalOrders   = "Total de Pedidos"
)

// Detail keys of the scalar handlers.
const (
	KeySumTotal          = "soma_total"
	KeySumDiscounts      = "soma_descontos"
	KeySettledOrders     = "num_pedidos_faturados"
	KeyFreeShippingTotal = "total_frete_gratis"
)

// TicketAverage is the mean order total over settled orders.
func TicketAverage(ds *dataset.Dataset) (*Scalar, error) {
	sum, n, err := settledSum(ds.Orders, dataset.ColOrderTotal)
	if err != nil {
		return nil, eris.Wrap(err, "ticket médio")
	}
	return &Scalar{
		Title: "Ticket médio (pedidos faturados)",
		Value: floatPtr(mean(sum, n)),
		Detail: []Field{
			{Key: KeySumTotal, Value: sum},
			{Key: KeySettledOrders, Value: n},
		},
	}, nil
}

// DiscountAverage is the mean discount over settled orders.
func DiscountAverage(ds *dataset.Dataset) (*Scalar, error) {
	sum, n, err := settledSum(ds.Orders, dataset.ColOrderDiscount)
	if err != nil {
		return nil, eris.Wrap(err, "desconto médio")
	}
	return &Scalar{
		Title: "Desconto médio (pedidos faturados)",
		Value: floatPtr(mean(sum, n)),
		Detail: []Field{
			{Key: KeySumDiscounts, Value: sum},
			{Key: KeySettledOrders, Value: n},
		},
	}, nil
}

// FreeShipping counts orders flagged for free shipping.
func FreeShipping(ds *dataset.Dataset) (*Scalar, error) {
	flags, err := ds.Orders.Column(dataset.ColOrderFreeShipping)
	if err != nil {
		return nil, eris.Wrap(err, "frete grátis")
	}
	total := 0
	for _, f := range flags {
		if IsFreeShipping(f) {
			total++
		}
	}
	return &Scalar{
		Title:  "Pedidos com frete grátis",
		Detail: []Field{{Key: KeyFreeShippingTotal, Value: total}},
	}, nil
}

// TopProducts sums sold quantity per product and returns the n best sellers
// with their names. Ties keep product-key order.
func TopProducts(ds *dataset.Dataset, n int) (*Table, error) {
	if n <= 0 {
		n = DefaultTopN
	}

	totals, err := quantityByProduct(ds.Items)
	if err != nil {
		return nil, eris.Wrap(err, "top produtos")
	}
	names, err := productNames(ds.Products)
	if err != nil {
		return nil, eris.Wrap(err, "top produtos")
	}

	if len(totals) > n {
		totals = totals[:n]
	}
	rows := make([][]any, len(totals))
	for i, g := range totals {
		var name any
		if v, ok := names[g.key]; ok {
			name = v
		}
		rows[i] = []any{name, g.qty}
	}
	return &Table{
		Title:   "Produtos mais vendidos (quantidade)",
		Columns: []string{ColProduct, ColQuantity},
		Rows:    rows,
	}, nil
}

// PaymentMethods counts orders per payment method.
func PaymentMethods(ds *dataset.Dataset) (*Table, error) {
	col, err := ds.Orders.Column(dataset.ColOrderPayment)
	if err != nil {
		return nil, eris.Wrap(err, "formas de pagamento")
	}
	return &Table{
		Title:   "Formas de pagamento mais utilizadas",
		Columns: []string{ColPaymentMethod, ColTotal},
		Rows:    valueCounts(col),
	}, nil
}

// OrderStatus counts orders per status.
func OrderStatus(ds *dataset.Dataset) (*Table, error) {
	col, err := ds.Orders.Column(dataset.ColOrderStatus)
	if err != nil {
		return nil, eris.Wrap(err, "status dos pedidos")
	}
	return &Table{
		Title:   "Distribuição de pedidos por situação",
		Columns: []string{ColStatus, ColTotal},
		Rows:    valueCounts(col),
	}, nil
}

// CustomerTypes counts orders per customer type. Orders whose client is not
// in the client table are counted under a nil category.
func CustomerTypes(ds *dataset.Dataset) (*Table, error) {
	refs, err := ds.Orders.Column(dataset.ColOrderClientKey)
	if err != nil {
		return nil, eris.Wrap(err, "tipo de cliente")
	}
	keys, types, err := ds.Clients.ColumnPair(dataset.ColClientKey, dataset.ColClientType)
	if err != nil {
		return nil, eris.Wrap(err, "tipo de cliente")
	}

	typeOf := make(map[string]string, len(keys))
	for i, k := range keys {
		k = dataset.NormalizeKey(k)
		if k == "" {
			continue
		}
		if _, seen := typeOf[k]; !seen {
			typeOf[k] = types[i]
		}
	}

	joined := make([]string, len(refs))
	for i, ref := range refs {
		joined[i] = typeOf[dataset.NormalizeKey(ref)]
	}
	return &Table{
		Title:   "Pedidos por tipo de cliente",
		Columns: []string{ColCustomerType, ColTotalOrders},
		Rows:    valueCounts(joined),
	}, nil
}

func settledSum(orders *dataset.Table, column string) (float64, int, error) {
	status, values, err := orders.ColumnPair(dataset.ColOrderStatus, column)
	if err != nil {
		return 0, 0, err
	}
	var sum float64
	n := 0
	for i, s := range status {
		if !IsSettled(s) {
			continue
		}
		sum += CoerceFloat(values[i])
		n++
	}
	return sum, n, nil
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

type productTotal struct {
	key string
	qty float64
}

// quantityByProduct groups items by normalised product key and sums the
// quantity, sorted by descending quantity. Items without a product key are
// skipped; blank quantities count as zero.
func quantityByProduct(items *dataset.Table) ([]productTotal, error) {
	keys, qtys, err := items.ColumnPair(dataset.ColItemProductKey, dataset.ColItemQuantity)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	for i, raw := range keys {
		key := dataset.NormalizeKey(raw)
		if key == "" {
			continue
		}
		var q float64
		if strings.TrimSpace(qtys[i]) != "" {
			v, ok := ParseNumber(qtys[i])
			if !ok {
				return nil, eris.Wrapf(dataset.ErrColumnType, "%s.%s row %d: %q is not a number",
					items.Name, dataset.ColItemQuantity, i+1, qtys[i])
			}
			q = v
		}
		sums[key] += q
	}

	out := make([]productTotal, 0, len(sums))
	for k, q := range sums {
		out = append(out, productTotal{key: k, qty: q})
	}
	sort.Slice(out, func(i, j int) bool {
		return dataset.CompareKeys(out[i].key, out[j].key) < 0
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].qty > out[j].qty
	})
	return out, nil
}

// productNames maps product key to name, keeping the first row of any
// duplicated key.
func productNames(products *dataset.Table) (map[string]string, error) {
	keys, names, err := products.ColumnPair(dataset.ColProductKey, dataset.ColProductName)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		k = dataset.NormalizeKey(k)
		if _, dup := out[k]; dup || k == "" {
			continue
		}
		out[k] = names[i]
	}
	return out, nil
}

// valueCounts counts occurrences of each value, most frequent first; ties
// keep first-appearance order. Blank values are counted under nil.
func valueCounts(values []string) [][]any {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			v = ""
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	rows := make([][]any, len(order))
	for i, v := range order {
		var label any
		if v != "" {
			label = v
		}
		rows[i] = []any{label, counts[v]}
	}
	return rows
}
