// Package analytics computes the deterministic metrics and breakdowns that
// questions are answered with. Every computation is a pure function of a
// dataset.Dataset.
package analytics

import (
	"bytes"
	"encoding/json"
	"math"

	"gopkg.in/yaml.v3"
)

// Result is the output of a handler: either a *Scalar or a *Table.
type Result interface {
	// Empty reports whether the result carries nothing to show. Empty results
	// are treated like an unmapped question.
	Empty() bool

	isResult()
}

// Field is one named value in a Scalar's detail.
type Field struct {
	Key   string
	Value any
}

// Fields is an ordered list of named values. It marshals to a JSON or YAML
// object whose keys keep the list order.
type Fields []Field

// Get returns the value stored under key.
func (fs Fields) Get(key string) (any, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the fields as an object in list order; NaN and
// infinities become null.
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(JSONSafe(f.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the fields as a mapping in list order.
func (fs Fields) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fs {
		val := &yaml.Node{}
		if err := val.Encode(JSONSafe(f.Value)); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}, val)
	}
	return node, nil
}

// Scalar is a single headline value with supporting detail values.
type Scalar struct {
	Title  string
	Value  *float64
	Detail Fields
}

func (*Scalar) isResult() {}

// Empty implements Result.
func (s *Scalar) Empty() bool {
	return s == nil || (s.Title == "" && s.Value == nil && len(s.Detail) == 0)
}

// Get returns the detail value stored under key.
func (s *Scalar) Get(key string) (any, bool) {
	return s.Detail.Get(key)
}

// View orders the scalar as titulo, valor, detalhe, leaving out what is unset.
func (s *Scalar) View() Fields {
	out := make(Fields, 0, 3)
	if s.Title != "" {
		out = append(out, Field{Key: "titulo", Value: s.Title})
	}
	if s.Value != nil {
		out = append(out, Field{Key: "valor", Value: *s.Value})
	}
	if len(s.Detail) > 0 {
		out = append(out, Field{Key: "detalhe", Value: s.Detail})
	}
	return out
}

// MarshalJSON renders the scalar as {"titulo","valor","detalhe"} with the
// detail in handler order; NaN and infinities become null.
func (s *Scalar) MarshalJSON() ([]byte, error) {
	return s.View().MarshalJSON()
}

// Table is an ordered set of rows with named columns. Cells hold a string,
// a number, or nil for a null category.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]any
}

func (*Table) isResult() {}

// Empty implements Result.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// MarshalJSON renders the table as {"titulo","colunas","linhas"}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, len(r))
		for j, c := range r {
			row[j] = JSONSafe(c)
		}
		rows[i] = row
	}
	return json.Marshal(struct {
		Title   string   `json:"titulo,omitempty"`
		Columns []string `json:"colunas"`
		Rows    [][]any  `json:"linhas"`
	}{t.Title, t.Columns, rows})
}

// IsEmpty reports whether r is nil or empty.
func IsEmpty(r Result) bool {
	return r == nil || r.Empty()
}

// JSONSafe replaces NaN and infinite floats with nil, recursing into the
// container types snapshots and details are built from.
func JSONSafe(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = JSONSafe(f)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = JSONSafe(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = JSONSafe(e)
		}
		return out
	case Fields:
		out := make(Fields, len(x))
		for i, f := range x {
			out[i] = Field{Key: f.Key, Value: JSONSafe(f.Value)}
		}
		return out
	}
	return v
}

func floatPtr(f float64) *float64 {
	return &f
}
