package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/dataset"
	"github.com/sells-group/pedidos-cli/internal/session"
	"github.com/sells-group/pedidos-cli/internal/store"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// AnswerView is the serializable form of a session.Answer.
type AnswerView struct {
	Question  string   `json:"pergunta" yaml:"pergunta"`
	Intent    string   `json:"intent" yaml:"intent"`
	Result    any      `json:"resultado,omitempty" yaml:"resultado,omitempty"`
	Narration string   `json:"explicacao,omitempty" yaml:"explicacao,omitempty"`
	Guidance  string   `json:"orientacao,omitempty" yaml:"orientacao,omitempty"`
	Warnings  []string `json:"avisos,omitempty" yaml:"avisos,omitempty"`
}

// View converts ans to its serializable form. Non-finite numbers become nil.
func View(ans *session.Answer) AnswerView {
	return AnswerView{
		Question:  ans.Question,
		Intent:    string(ans.Intent),
		Result:    ResultView(ans.Result),
		Narration: ans.Narration,
		Guidance:  ans.Guidance,
		Warnings:  ans.Warnings,
	}
}

// ResultView converts a result to ordered fields for JSON and YAML.
func ResultView(r analytics.Result) any {
	switch x := r.(type) {
	case *analytics.Scalar:
		if x.Empty() {
			return nil
		}
		return x.View()
	case *analytics.Table:
		if x == nil {
			return nil
		}
		rows := make([][]any, len(x.Rows))
		for i, row := range x.Rows {
			rows[i] = analytics.JSONSafe(row).([]any)
		}
		out := analytics.Fields{}
		if x.Title != "" {
			out = append(out, analytics.Field{Key: "titulo", Value: x.Title})
		}
		return append(out,
			analytics.Field{Key: "colunas", Value: x.Columns},
			analytics.Field{Key: "linhas", Value: rows},
		)
	}
	return nil
}

// Answer writes ans in the given format.
func Answer(w io.Writer, ans *session.Answer, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return Text(w, ans)
	case FormatJSON:
		return JSON(w, View(ans))
	case FormatYAML:
		return YAML(w, View(ans))
	}
	return eris.Errorf("render: unknown format %q", format)
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "render: encode json")
}

// YAML writes v as YAML.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "render: encode yaml")
	}
	return eris.Wrap(enc.Close(), "render: close yaml")
}

// Text writes ans for a terminal: the result, then the narration, guidance
// and warnings.
func Text(w io.Writer, ans *session.Answer) error {
	switch r := ans.Result.(type) {
	case *analytics.Scalar:
		writeScalar(w, r)
	case *analytics.Table:
		if r.Title != "" {
			_, _ = fmt.Fprintln(w, r.Title)
		}
		if err := writeTable(w, r.Columns, r.Rows); err != nil {
			return err
		}
	}
	if ans.Narration != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", ans.Narration)
	}
	if ans.Guidance != "" {
		_, _ = fmt.Fprintln(w, ans.Guidance)
	}
	for _, warn := range ans.Warnings {
		_, _ = fmt.Fprintf(w, "aviso: %s\n", warn)
	}
	return nil
}

func writeScalar(w io.Writer, s *analytics.Scalar) {
	if s.Title != "" {
		_, _ = fmt.Fprintln(w, s.Title)
	}
	if s.Value != nil {
		_, _ = fmt.Fprintf(w, "  valor: %s\n", Decimal(*s.Value))
	}
	for _, f := range s.Detail {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", f.Key, Cell(f.Value))
	}
}

func writeTable(out io.Writer, columns []string, rows [][]any) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = Cell(c)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return eris.Wrap(w.Flush(), "render: flush table")
}

// KPIs writes the headline indicators.
func KPIs(out io.Writer, k analytics.KPIs) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total de Pedidos\t%s\n", Integer(k.TotalOrders))
	_, _ = fmt.Fprintf(w, "Ticket Médio\t%s\n", Money(k.TicketAverage))
	_, _ = fmt.Fprintf(w, "Frete Grátis (%%)\t%s\n", Percent(k.FreeShippingPct))
	_, _ = fmt.Fprintf(w, "Desconto Médio\t%s\n", Money(k.DiscountAverage))
	return eris.Wrap(w.Flush(), "render: flush kpis")
}

// Preview writes a table's name followed by its rows as text.
func Preview(w io.Writer, t *dataset.Table) error {
	_, _ = fmt.Fprintf(w, "%s (%d linhas)\n", t.Name, t.Len())
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		cells := make([]any, len(t.Columns))
		for j := range t.Columns {
			if j < len(r) {
				cells[j] = r[j]
			} else {
				cells[j] = ""
			}
		}
		rows[i] = cells
	}
	return writeTable(w, t.Columns, rows)
}

// History writes a conversation as "role: content" lines.
func History(w io.Writer, turns []store.Turn) {
	for _, t := range turns {
		role := "você"
		if t.Role == store.RoleAssistant {
			role = "assistente"
		}
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", t.CreatedAt.Local().Format("15:04:05"), role, t.Content)
	}
}

// Sessions writes a tabular list of stored sessions.
func Sessions(out io.Writer, sessions []store.SessionSummary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTURNS\tSTARTED\tLAST")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			s.ID, s.Turns,
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.LastAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return eris.Wrap(w.Flush(), "render: flush sessions")
}
