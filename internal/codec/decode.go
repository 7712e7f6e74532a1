package codec

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/schema"
)

// Decode parses payload into rows the way the engine executes the
// generated parse description: each column is read by name, cast to its
// declared type, and rows are ordered by the index column. It is the
// inverse of Encode and backs the in-process sink.
func Decode(f Format, payload string, cols []schema.Column) ([]schema.Row, error) {
	var (
		rows []schema.Row
		err  error
	)
	switch f {
	case Markup:
		rows, err = decodeMarkup(payload, cols)
	case TokenStream:
		rows, err = decodeTokens(payload, cols)
	default:
		return nil, fmt.Errorf("decode: unknown format %s", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}

	slices.SortStableFunc(rows, func(a, b schema.Row) int {
		return a.Index - b.Index
	})
	return rows, nil
}

func decodeMarkup(payload string, cols []schema.Column) ([]schema.Row, error) {
	dec := xml.NewDecoder(strings.NewReader(payload))

	var (
		rows    []schema.Row
		attrs   map[string]string
		content strings.Builder
		depth   int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if t.Name.Local != markupRoot {
					return nil, fmt.Errorf("unexpected root element <%s>", t.Name.Local)
				}
			case 2:
				if t.Name.Local != markupElement {
					continue
				}
				attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					attrs[a.Name.Local] = a.Value
				}
				content.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				content.Write(t)
			}
		case xml.EndElement:
			if depth == 2 && attrs != nil {
				row, err := markupRow(attrs, content.String(), cols)
				if err != nil {
					return nil, err
				}
				rows = append(rows, row)
				attrs = nil
			}
			depth--
		}
	}
	if depth != 0 {
		return nil, errors.New("unterminated document")
	}
	return rows, nil
}

func markupRow(attrs map[string]string, content string, cols []schema.Column) (schema.Row, error) {
	var row schema.Row
	for _, col := range cols {
		if col.Index {
			x, ok := attrs[col.Name]
			if !ok {
				return row, fmt.Errorf("element without %s attribute", col.Name)
			}
			n, err := strconv.Atoi(x)
			if err != nil {
				return row, fmt.Errorf("index %q: %w", x, err)
			}
			row.Index = n
			continue
		}

		raw, ok := attrs[col.Name]
		if col.Name == schema.ValueColumn {
			raw, ok = content, true
		}
		if !ok {
			continue
		}
		if err := setColumn(&row, col, raw); err != nil {
			return row, err
		}
	}
	return row, nil
}

func decodeTokens(payload string, cols []schema.Column) ([]schema.Row, error) {
	if !gjson.Valid(payload) {
		return nil, errors.New("invalid token stream")
	}
	doc := gjson.Parse(payload)
	if !doc.IsArray() {
		return nil, errors.New("token stream is not an array")
	}

	elems := doc.Array()
	rows := make([]schema.Row, 0, len(elems))
	for i, elem := range elems {
		if !elem.IsObject() {
			return nil, fmt.Errorf("element %d is not an object", i)
		}

		var row schema.Row
		for _, col := range cols {
			member := elem.Get(col.Name)
			if col.Index {
				if member.Type != gjson.Number {
					return nil, fmt.Errorf("element %d: missing %s member", i, col.Name)
				}
				row.Index = int(member.Int())
				continue
			}

			var raw string
			switch member.Type {
			case gjson.Null:
				continue
			case gjson.String:
				raw = member.Str
			case gjson.Number:
				raw = member.Raw
			case gjson.True, gjson.False:
				raw = strconv.FormatBool(member.Bool())
			default:
				return nil, fmt.Errorf("element %d: member %s is not a primitive", i, col.Name)
			}
			if err := setColumn(&row, col, raw); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// setColumn casts raw to the column's declared type.
func setColumn(row *schema.Row, col schema.Column, raw string) error {
	if (col.Kind == kind.String || col.Kind == kind.Char) && !col.Unicode {
		raw = narrowText(raw)
	}
	v, err := kind.Parse(col.Kind, raw)
	if err != nil {
		return fmt.Errorf("column %s: %w", col.Name, err)
	}
	row.Set(col.Slot, v)
	return nil
}

// narrowText emulates storing text in a non-unicode (code page 1252)
// column: characters the code page cannot hold become '?'.
func narrowText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if _, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
