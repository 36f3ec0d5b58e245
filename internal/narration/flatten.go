package narration

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/pedidos-cli/internal/analytics"
)

// FlattenNumbers walks v depth-first and returns up to limit of the numeric
// leaves it finds, formatted with four decimals and joined by ", ".
//
// Ordered fields (snapshots, scalar details) keep their order; plain maps
// are visited in sorted key order. Only values are inspected.
// Strings count when they parse as a number and booleans count as 0 or 1.
// Anything else is skipped.
func FlattenNumbers(v any, limit int) string {
	if limit <= 0 {
		return ""
	}
	f := &flattener{limit: limit}
	f.walk(v)
	return strings.Join(f.out, ", ")
}

type flattener struct {
	limit int
	out   []string
}

func (f *flattener) full() bool {
	return len(f.out) >= f.limit
}

func (f *flattener) emit(x float64) {
	if f.full() {
		return
	}
	f.out = append(f.out, formatNumber(x))
}

func (f *flattener) walk(v any) {
	if f.full() || v == nil {
		return
	}
	switch x := v.(type) {
	case *analytics.Scalar:
		if x == nil {
			return
		}
		if x.Value != nil {
			f.emit(*x.Value)
		}
		for _, d := range x.Detail {
			f.walk(d.Value)
		}
	case *analytics.Table:
		if x == nil {
			return
		}
		for _, row := range x.Rows {
			for _, cell := range row {
				f.walk(cell)
			}
		}
	case analytics.Fields:
		for _, fld := range x {
			f.walk(fld.Value)
		}
	case float64:
		f.emit(x)
	case float32:
		f.emit(float64(x))
	case int:
		f.emit(float64(x))
	case int64:
		f.emit(float64(x))
	case bool:
		if x {
			f.emit(1)
		} else {
			f.emit(0)
		}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			f.emit(n)
		}
	default:
		f.walkReflect(reflect.ValueOf(v))
	}
}

// walkReflect covers the container and numeric kinds the type switch does
// not name: other slices, arrays, maps (sets included) and integer widths.
func (f *flattener) walkReflect(rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			f.walk(rv.Elem().Interface())
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len() && !f.full(); i++ {
			f.walk(rv.Index(i).Interface())
		}
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			if f.full() {
				return
			}
			// A map[T]struct{} is a set: its members are the keys.
			if rv.Type().Elem().Kind() == reflect.Struct && rv.Type().Elem().NumField() == 0 {
				f.walk(k.Interface())
			} else {
				f.walk(rv.MapIndex(k).Interface())
			}
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		f.emit(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f.emit(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		f.emit(rv.Float())
	}
}

func formatNumber(x float64) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	return strconv.FormatFloat(x, 'f', 4, 64)
}
