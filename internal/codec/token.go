package codec

import (
	"fmt"
	"iter"
	"math"
	"reflect"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/schema"
)

// Token-stream payload grammar:
//
//	[]                                  empty sequence
//	[{"X":0,"V":1},{"X":1,"V":2}]       simple path
//	[{"X":0,"I0":1,"N0":"a"}]           record path
//
// Members whose value is NULL are omitted.
func encodeTokens(w Writer, p *plan, seq iter.Seq[reflect.Value]) (int, error) {
	if err := w.WriteByte('['); err != nil {
		return 0, err
	}

	var (
		buf   []byte
		count int
	)
	for v := range seq {
		buf = buf[:0]
		if count > 0 {
			buf = append(buf, ',')
		}

		var (
			ok  bool
			err error
		)
		if p.layout.Simple {
			buf, ok, err = appendTokenSimple(buf, p.fields[0], v, count)
		} else {
			buf, ok, err = appendTokenRecord(buf, p, v, count)
		}
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}
		if _, err := w.Write(buf); err != nil {
			return count, err
		}
		count++
	}

	if err := w.WriteByte(']'); err != nil {
		return count, err
	}
	return count, nil
}

func appendTokenOpen(dst []byte, index int) []byte {
	dst = append(dst, `{"`+schema.IndexColumn+`":`...)
	return strconv.AppendInt(dst, int64(index), 10)
}

func appendTokenMember(dst []byte, f field, val any) ([]byte, error) {
	dst = append(dst, ',', '"')
	dst = append(dst, f.name...)
	dst = append(dst, '"', ':')
	return f.format(dst, val, f.scale)
}

func appendTokenSimple(dst []byte, f field, v reflect.Value, index int) ([]byte, bool, error) {
	val, ok := f.get(v)
	if !ok {
		return dst, false, nil
	}
	dst = appendTokenOpen(dst, index)
	dst, err := appendTokenMember(dst, f, val)
	if err != nil {
		return dst, false, err
	}
	return append(dst, '}'), true, nil
}

func appendTokenRecord(dst []byte, p *plan, v reflect.Value, index int) ([]byte, bool, error) {
	rec, ok := p.layout.Record(v)
	if !ok {
		return dst, false, nil
	}
	dst = appendTokenOpen(dst, index)
	for _, f := range p.fields {
		val, ok := f.get(rec.FieldByIndex(f.index))
		if !ok {
			continue
		}
		var err error
		if dst, err = appendTokenMember(dst, f, val); err != nil {
			return dst, false, err
		}
	}
	return append(dst, '}'), true, nil
}

// tokenFormatter renders a value with the token format's own primitives.
func tokenFormatter(k kind.Kind) valueFormatter {
	switch k {
	case kind.Bool:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return strconv.AppendBool(dst, v.(bool)), nil
		}
	case kind.Byte, kind.Int16, kind.Int32, kind.Int64:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendInt(dst, v), nil
		}
	case kind.Decimal:
		return func(dst []byte, v any, scale int) ([]byte, error) {
			return appendDecimal(dst, v.(decimal.Decimal), scale), nil
		}
	case kind.Single, kind.Double:
		bits := floatBits(k)
		return func(dst []byte, v any, _ int) ([]byte, error) {
			f := asFloat(v)
			if math.IsInf(f, 0) || math.IsNaN(f) {
				return dst, fmt.Errorf("%w: %v", ErrNonFiniteFloat, f)
			}
			return strconv.AppendFloat(dst, f, 'g', -1, bits), nil
		}
	case kind.DateTime:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			t, err := civilTime(v.(civil.DateTime))
			if err != nil {
				return dst, err
			}
			dst = append(dst, '"')
			dst = t.AppendFormat(dst, tokenDateTime)
			return append(dst, '"'), nil
		}
	case kind.DateTimeOffset:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			t, err := checkYear(v.(time.Time))
			if err != nil {
				return dst, err
			}
			dst = append(dst, '"')
			dst = t.AppendFormat(dst, tokenDateTimeOffset)
			return append(dst, '"'), nil
		}
	case kind.Guid:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			dst = append(dst, '"')
			dst = appendGuid(dst, v.(uuid.UUID))
			return append(dst, '"'), nil
		}
	case kind.Char:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendJSONString(dst, charText(v.(kind.Rune))), nil
		}
	case kind.String:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendJSONString(dst, v.(string)), nil
		}
	}
	return func(dst []byte, v any, _ int) ([]byte, error) {
		return dst, fmt.Errorf("token stream: no formatter for kind %s", k)
	}
}
