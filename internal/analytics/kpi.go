package analytics

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/pedidos-cli/internal/dataset"
)

// KPIs are the headline indicators shown when a session starts.
type KPIs struct {
	TotalOrders     int     `json:"total_pedidos" yaml:"total_pedidos"`
	TicketAverage   float64 `json:"ticket_medio" yaml:"ticket_medio"`
	FreeShippingPct float64 `json:"frete_gratis_pct" yaml:"frete_gratis_pct"`
	DiscountAverage float64 `json:"desconto_medio" yaml:"desconto_medio"`
}

// ComputeKPIs derives the headline indicators. The free-shipping share is 0
// when there are no orders; the averages follow TicketAverage and
// DiscountAverage, so they are NaN without settled orders.
func ComputeKPIs(ds *dataset.Dataset) (KPIs, error) {
	ticket, err := TicketAverage(ds)
	if err != nil {
		return KPIs{}, eris.Wrap(err, "kpis")
	}
	discount, err := DiscountAverage(ds)
	if err != nil {
		return KPIs{}, eris.Wrap(err, "kpis")
	}
	free, err := FreeShipping(ds)
	if err != nil {
		return KPIs{}, eris.Wrap(err, "kpis")
	}

	k := KPIs{
		TotalOrders:     ds.Orders.Len(),
		TicketAverage:   *ticket.Value,
		DiscountAverage: *discount.Value,
	}
	if k.TotalOrders > 0 {
		n, _ := free.Get(KeyFreeShippingTotal)
		k.FreeShippingPct = float64(n.(int)) / float64(k.TotalOrders) * 100
	}
	return k, nil
}
