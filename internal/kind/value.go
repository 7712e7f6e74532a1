package kind

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinDateTime is the earliest DateTime the engine's date types hold. The
// zero civil.DateTime, which an unset field carries, is written as
// MinDateTime and MinDateTime is read back as the zero value.
var MinDateTime = civil.DateTime{Date: civil.Date{Year: 1, Month: time.January, Day: 1}}

func fromMin(dt civil.DateTime) civil.DateTime {
	if dt == MinDateTime {
		return civil.DateTime{}
	}
	return dt
}

// Getter reads a value of a fixed kind out of a reflected source value.
// It returns false when the value is NULL (a nil pointer).
type Getter func(v reflect.Value) (any, bool)

// GetterFor builds the Getter for values of Go type t, which must normalize
// to k. The returned values always have the canonical type k.GoType().
//
// The kind dispatch happens here, once per field, never per value.
func GetterFor(k Kind, t reflect.Type) Getter {
	get := baseGetter(k)
	if t.Kind() != reflect.Pointer {
		return func(v reflect.Value) (any, bool) {
			return get(v), true
		}
	}
	return func(v reflect.Value) (any, bool) {
		if v.IsNil() {
			return nil, false
		}
		return get(v.Elem()), true
	}
}

func baseGetter(k Kind) func(v reflect.Value) any {
	switch k {
	case Bool:
		return func(v reflect.Value) any { return v.Bool() }
	case Byte:
		return func(v reflect.Value) any { return uint8(v.Uint()) }
	case Int16:
		return func(v reflect.Value) any { return int16(v.Int()) }
	case Int32:
		return func(v reflect.Value) any {
			if v.CanInt() {
				return int32(v.Int())
			}
			return int32(v.Uint())
		}
	case Int64:
		return func(v reflect.Value) any {
			if v.CanInt() {
				return v.Int()
			}
			return int64(v.Uint())
		}
	case Single:
		return func(v reflect.Value) any { return float32(v.Float()) }
	case Double:
		return func(v reflect.Value) any { return v.Float() }
	case Char:
		return func(v reflect.Value) any { return Rune(v.Int()) }
	case String:
		return func(v reflect.Value) any { return v.String() }
	default:
		goType := k.GoType()
		return func(v reflect.Value) any {
			if v.Type() == goType {
				return v.Interface()
			}
			return v.Convert(goType).Interface()
		}
	}
}

// Parse converts the textual rendering of a value back to the canonical Go
// type of k. It accepts the renderings produced by both payload codecs.
func Parse(k Kind, s string) (any, error) {
	switch k {
	case Bool:
		return strconv.ParseBool(s)
	case Byte:
		n, err := strconv.ParseUint(s, 10, 8)
		return uint8(n), err
	case Int16:
		n, err := strconv.ParseInt(s, 10, 16)
		return int16(n), err
	case Int32:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case Int64:
		return strconv.ParseInt(s, 10, 64)
	case Decimal:
		return decimal.NewFromString(s)
	case Single:
		f, err := parseFloat(s, 32)
		return float32(f), err
	case Double:
		return parseFloat(s, 64)
	case DateTime:
		t, err := time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return nil, err
		}
		return fromMin(civil.DateTimeOf(t)), nil
	case DateTimeOffset:
		return time.Parse(time.RFC3339Nano, s)
	case Char:
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 || size != len(s) {
			return nil, fmt.Errorf("parse char: %q is not a single character", s)
		}
		return Rune(r), nil
	case String:
		return s, nil
	case Guid:
		return uuid.Parse(s)
	}
	return nil, fmt.Errorf("parse: unknown kind %s", k)
}

func parseFloat(s string, bits int) (float64, error) {
	switch strings.ToUpper(s) {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NAN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, bits)
}

// Coerce converts a value returned by a database/sql driver into the
// canonical Go type of k. Drivers that lack native types for a kind hand
// back text or 64-bit numbers; both are accepted.
func Coerce(k Kind, src any) (any, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return Parse(k, string(v))
	case string:
		return Parse(k, v)
	case bool:
		if k == Bool {
			return v, nil
		}
	case int64:
		return coerceInt(k, v)
	case float64:
		switch k {
		case Single:
			return float32(v), nil
		case Double:
			return v, nil
		case Decimal:
			return decimal.NewFromFloat(v), nil
		}
	case time.Time:
		switch k {
		case DateTimeOffset:
			return v, nil
		case DateTime:
			return fromMin(civil.DateTimeOf(v)), nil
		}
	}
	return nil, fmt.Errorf("coerce %T to %s: unsupported source value", src, k)
}

func coerceInt(k Kind, v int64) (any, error) {
	switch k {
	case Bool:
		return v != 0, nil
	case Byte:
		if v < 0 || v > math.MaxUint8 {
			return nil, fmt.Errorf("coerce %d to %s: out of range", v, k)
		}
		return uint8(v), nil
	case Int16:
		if v < math.MinInt16 || v > math.MaxInt16 {
			return nil, fmt.Errorf("coerce %d to %s: out of range", v, k)
		}
		return int16(v), nil
	case Int32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("coerce %d to %s: out of range", v, k)
		}
		return int32(v), nil
	case Int64:
		return v, nil
	case Decimal:
		return decimal.NewFromInt(v), nil
	case Single:
		return float32(v), nil
	case Double:
		return float64(v), nil
	}
	return nil, fmt.Errorf("coerce int64 to %s: unsupported source value", k)
}
