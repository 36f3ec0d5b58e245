package analytics

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/pedidos-cli/internal/dataset"
)

// Snapshot keys.
const (
	SnapTotalOrders   = "total_pedidos"
	SnapSettledOrders = "total_pedidos_faturados"
	SnapTicketAverage = "ticket_medio"
	SnapDiscountAvg   = "desconto_medio"
	SnapTopQuantities = "top_qtd_itens"
)

const snapshotTopN = 5

// Snapshot is a small numeric digest of the whole dataset, used as context
// when a question has no deterministic handler. Metrics keep the order they
// are computed in: order counts, means, then top quantities.
type Snapshot = Fields

// BuildSnapshot computes every snapshot metric independently. A metric that
// cannot be computed is left out and logged; it never suppresses the others.
func BuildSnapshot(ds *dataset.Dataset) Snapshot {
	var out Snapshot
	log := zap.L().With(zap.String("component", "snapshot"))

	put := func(key string, fn func() (any, error)) {
		v, err := fn()
		if err != nil {
			log.Debug("snapshot metric skipped", zap.String("metric", key), zap.Error(err))
			return
		}
		out = append(out, Field{Key: key, Value: v})
	}

	if ds.Orders.Len() > 0 {
		put(SnapTotalOrders, func() (any, error) {
			return ds.Orders.Len(), nil
		})
		put(SnapSettledOrders, func() (any, error) {
			status, err := ds.Orders.Column(dataset.ColOrderStatus)
			if err != nil {
				return nil, err
			}
			n := 0
			for _, s := range status {
				if IsSettled(s) {
					n++
				}
			}
			return n, nil
		})
		put(SnapTicketAverage, func() (any, error) {
			return settledNumericMean(ds.Orders, dataset.ColOrderTotal)
		})
		put(SnapDiscountAvg, func() (any, error) {
			return settledNumericMean(ds.Orders, dataset.ColOrderDiscount)
		})
	}

	if ds.Items.Len() > 0 {
		put(SnapTopQuantities, func() (any, error) {
			totals, err := quantityByProduct(ds.Items)
			if err != nil {
				return nil, err
			}
			if len(totals) > snapshotTopN {
				totals = totals[:snapshotTopN]
			}
			qtys := make([]float64, len(totals))
			for i, t := range totals {
				qtys[i] = t.qty
			}
			return qtys, nil
		})
	}

	return out
}

// settledNumericMean averages the parseable values of column over settled
// orders. Unlike the handlers, unparseable cells are excluded rather than
// counted as zero; with no parseable values the mean is NaN.
func settledNumericMean(orders *dataset.Table, column string) (float64, error) {
	status, values, err := orders.ColumnPair(dataset.ColOrderStatus, column)
	if err != nil {
		return 0, err
	}
	var sum float64
	n := 0
	for i, s := range status {
		if !IsSettled(s) {
			continue
		}
		if v, ok := ParseNumber(values[i]); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), nil
	}
	return sum / float64(n), nil
}
