// Package router maps a free-text question to one of the fixed analytics
// handlers using ordered keyword predicates. Pure Go, no API calls.
package router

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/dataset"
)

// Intent names the handler a question was routed to.
type Intent string

// Intents, in evaluation order.
const (
	IntentTicketAverage   Intent = "ticket_medio"
	IntentDiscountAverage Intent = "desconto_medio"
	IntentTopProducts     Intent = "top_produtos"
	IntentPaymentMethods  Intent = "formas_pgto"
	IntentFreeShipping    Intent = "frete_gratis"
	IntentOrderStatus     Intent = "status_pedidos"
	IntentCustomerType    Intent = "tipo_cliente"
	IntentUnmapped        Intent = "nao_mapeado"
)

type rule struct {
	intent Intent
	match  func(q string) bool
}

// rules are evaluated top to bottom and the first match wins. A question can
// satisfy several predicates ("status por tipo de cliente"); the order here
// decides, so it must not change.
var rules = []rule{
	{IntentTicketAverage, func(q string) bool {
		return strings.Contains(q, "ticket") && containsAny(q, "médio", "medio")
	}},
	{IntentDiscountAverage, func(q string) bool {
		return strings.Contains(q, "desconto") && strings.Contains(q, "médio")
	}},
	{IntentTopProducts, func(q string) bool {
		return containsAny(q, "produtos mais vendidos", "top produtos")
	}},
	{IntentPaymentMethods, func(q string) bool {
		return containsAny(q, "forma de pagamento", "formas de pagamento")
	}},
	{IntentFreeShipping, func(q string) bool {
		return containsAny(q, "frete grátis", "frete gratis")
	}},
	{IntentOrderStatus, func(q string) bool {
		return strings.Contains(q, "status")
	}},
	{IntentCustomerType, func(q string) bool {
		return containsAny(q, "tipo de cliente", "cliente físico", "cliente juridico", "jurídico")
	}},
}

// Order returns the mapped intents in the order they are tried.
func Order() []Intent {
	out := make([]Intent, len(rules))
	for i, r := range rules {
		out[i] = r.intent
	}
	return out
}

// Classify returns the intent for question without computing anything.
func Classify(question string) Intent {
	q := strings.ToLower(question)
	for _, r := range rules {
		if r.match(q) {
			return r.intent
		}
	}
	return IntentUnmapped
}

// Options tunes the handlers the router dispatches to.
type Options struct {
	TopN int
}

// Route classifies question and runs the matching handler. An unmapped
// question returns an empty result and no error. A handler failure is
// returned with the intent so callers can report which metric failed.
func Route(question string, ds *dataset.Dataset, opts Options) (Intent, analytics.Result, error) {
	intent := Classify(question)

	var (
		res analytics.Result
		err error
	)
	switch intent {
	case IntentTicketAverage:
		res, err = analytics.TicketAverage(ds)
	case IntentDiscountAverage:
		res, err = analytics.DiscountAverage(ds)
	case IntentTopProducts:
		res, err = analytics.TopProducts(ds, opts.TopN)
	case IntentPaymentMethods:
		res, err = analytics.PaymentMethods(ds)
	case IntentFreeShipping:
		res, err = analytics.FreeShipping(ds)
	case IntentOrderStatus:
		res, err = analytics.OrderStatus(ds)
	case IntentCustomerType:
		res, err = analytics.CustomerTypes(ds)
	default:
		return IntentUnmapped, &analytics.Scalar{}, nil
	}
	if err != nil {
		// res holds a typed nil pointer here; never hand it out.
		return intent, nil, eris.Wrapf(err, "router: %s", intent)
	}
	return intent, res, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
