package analytics

import (
	"github.com/sells-group/pedidos-cli/internal/dataset"
)

var orderColumns = []string{
	dataset.ColOrderStatus,
	dataset.ColOrderTotal,
	dataset.ColOrderDiscount,
	dataset.ColOrderPayment,
	dataset.ColOrderFreeShipping,
	dataset.ColOrderClientKey,
}

// order builds one orders row in orderColumns order.
func order(status, total, discount, payment, free, client string) []string {
	return []string{status, total, discount, payment, free, client}
}

func newDataset(orders, clients, items, products [][]string) *dataset.Dataset {
	return &dataset.Dataset{
		Orders:   dataset.NewTable(dataset.TableOrders, orderColumns, orders),
		Clients:  dataset.NewTable(dataset.TableClients, []string{dataset.ColClientKey, dataset.ColClientType}, clients),
		Items:    dataset.NewTable(dataset.TableItems, []string{dataset.ColItemProductKey, dataset.ColItemQuantity}, items),
		Products: dataset.NewTable(dataset.TableProducts, []string{dataset.ColProductKey, dataset.ColProductName}, products),
	}
}

func ordersOnly(orders ...[]string) *dataset.Dataset {
	return newDataset(orders, nil, nil, nil)
}
