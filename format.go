package restproxy

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// FormatValue renders a scalar argument in its wire form.
// It reports ok=false for absent values: nil, nil pointers, an invalid
// decimal.NullDecimal. Numbers keep their own precision, so a decimal parsed
// from "10.00" renders as "10.00" and the float64 3.14 as "3.14".
func FormatValue(v any) (s string, ok bool, err error) {
	if v == nil {
		return "", false, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false, nil
		}
	}

	switch x := v.(type) {
	case string:
		return x, true, nil
	case decimal.Decimal:
		return formatDecimal(x), true, nil
	case *decimal.Decimal:
		return formatDecimal(*x), true, nil
	case decimal.NullDecimal:
		if !x.Valid {
			return "", false, nil
		}
		return formatDecimal(x.Decimal), true, nil
	case json.Number:
		return x.String(), true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	case time.Time:
		return x.Format(time.RFC3339), true, nil
	case *time.Time:
		return x.Format(time.RFC3339), true, nil
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	case fmt.Stringer:
		return x.String(), true, nil
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return FormatValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), true, nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true, nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true, nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true, nil
	}
	return "", false, fmt.Errorf("unsupported parameter type %T", v)
}

func formatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
