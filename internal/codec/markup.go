package codec

import (
	"fmt"
	"iter"
	"reflect"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/schema"
)

// Markup payload grammar:
//
//	<R></R>                                    empty sequence
//	<R><V X="0">1</V><V X="1">2</V></R>        simple path
//	<R><V X="0" I0="1" N0="a"/></R>            record path
//
// The X attribute is the zero-based position among retained elements.
const (
	markupRoot    = "R"
	markupElement = "V"
)

func encodeMarkup(w Writer, p *plan, seq iter.Seq[reflect.Value]) (int, error) {
	if _, err := w.WriteString("<" + markupRoot + ">"); err != nil {
		return 0, err
	}

	var (
		buf   []byte
		count int
		err   error
	)
	for v := range seq {
		buf = buf[:0]
		var ok bool
		if p.layout.Simple {
			buf, ok, err = appendMarkupSimple(buf, p.fields[0], v, count)
		} else {
			buf, ok, err = appendMarkupRecord(buf, p, v, count)
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

	if _, err := w.WriteString("</" + markupRoot + ">"); err != nil {
		return count, err
	}
	return count, nil
}

func appendMarkupSimple(dst []byte, f field, v reflect.Value, index int) ([]byte, bool, error) {
	val, ok := f.get(v)
	if !ok {
		return dst, false, nil
	}
	dst = appendMarkupOpen(dst, index)
	dst = append(dst, '>')
	dst, err := f.format(dst, val, f.scale)
	if err != nil {
		return dst, false, err
	}
	dst = append(dst, "</"+markupElement+">"...)
	return dst, true, nil
}

func appendMarkupRecord(dst []byte, p *plan, v reflect.Value, index int) ([]byte, bool, error) {
	rec, ok := p.layout.Record(v)
	if !ok {
		return dst, false, nil
	}
	dst = appendMarkupOpen(dst, index)
	for _, f := range p.fields {
		val, ok := f.get(rec.FieldByIndex(f.index))
		if !ok {
			continue
		}
		dst = append(dst, ' ')
		dst = append(dst, f.name...)
		dst = append(dst, '=', '"')
		var err error
		if dst, err = f.format(dst, val, f.scale); err != nil {
			return dst, false, err
		}
		dst = append(dst, '"')
	}
	dst = append(dst, '/', '>')
	return dst, true, nil
}

func appendMarkupOpen(dst []byte, index int) []byte {
	dst = append(dst, "<"+markupElement+` `+schema.IndexColumn+`="`...)
	dst = strconv.AppendInt(dst, int64(index), 10)
	return append(dst, '"')
}

// markupFormatter renders attribute values for every kind.
func markupFormatter(k kind.Kind) valueFormatter {
	switch k {
	case kind.Bool:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			if v.(bool) {
				return append(dst, '1'), nil
			}
			return append(dst, '0'), nil
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
			return appendFloat(dst, asFloat(v), bits), nil
		}
	case kind.DateTime:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			t, err := civilTime(v.(civil.DateTime))
			if err != nil {
				return dst, err
			}
			return t.AppendFormat(dst, markupDateTime), nil
		}
	case kind.DateTimeOffset:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			t, err := checkYear(v.(time.Time))
			if err != nil {
				return dst, err
			}
			return t.AppendFormat(dst, markupDateTimeOffset), nil
		}
	case kind.Guid:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendGuid(dst, v.(uuid.UUID)), nil
		}
	case kind.Char:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendMarkupText(dst, charText(v.(kind.Rune)), true), nil
		}
	case kind.String:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendMarkupText(dst, v.(string), true), nil
		}
	}
	return func(dst []byte, v any, _ int) ([]byte, error) {
		return dst, fmt.Errorf("markup: no formatter for kind %s", k)
	}
}

// markupContentFormatter renders element content. Only text differs from
// attribute rendering: quote characters need no escaping in content.
func markupContentFormatter(k kind.Kind) valueFormatter {
	switch k {
	case kind.Char:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendMarkupText(dst, charText(v.(kind.Rune)), false), nil
		}
	case kind.String:
		return func(dst []byte, v any, _ int) ([]byte, error) {
			return appendMarkupText(dst, v.(string), false), nil
		}
	}
	return markupFormatter(k)
}

func formatterFor(f Format, k kind.Kind) valueFormatter {
	if f == TokenStream {
		return tokenFormatter(k)
	}
	return markupFormatter(k)
}

func contentFormatterFor(f Format, k kind.Kind) valueFormatter {
	if f == TokenStream {
		return tokenFormatter(k)
	}
	return markupContentFormatter(k)
}
