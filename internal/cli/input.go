package cli

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/roach88/queryvals/internal/kind"
)

// Input is a value list loaded from a YAML file. Its element type is built
// at run time, so values are carried as reflect.Values of Type.
type Input struct {
	Type   reflect.Type
	Values []reflect.Value
}

type inputFile struct {
	Kind     string      `yaml:"kind"`
	Nullable bool        `yaml:"nullable"`
	Values   []yaml.Node `yaml:"values"`

	Fields []fieldSpec            `yaml:"fields"`
	Rows   []map[string]yaml.Node `yaml:"rows"`
}

type fieldSpec struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Nullable bool   `yaml:"nullable"`
}

// LoadInput reads a scalar or record value list from path.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseInput(data)
}

// ParseInput parses a scalar list ("kind" and "values") or a record list
// ("fields" and "rows"). A YAML null becomes a nil pointer and is only
// allowed where nullable is set.
func ParseInput(data []byte) (*Input, error) {
	if err := checkShape(data); err != nil {
		return nil, err
	}

	var f inputFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	switch {
	case f.Kind != "" && len(f.Fields) > 0:
		return nil, errors.New("input has both kind and fields")
	case f.Kind != "":
		return f.scalars()
	case len(f.Fields) > 0:
		return f.records()
	}
	return nil, errors.New("input needs either kind or fields")
}

func (f *inputFile) scalars() (*Input, error) {
	k, t, err := fieldType(f.Kind, f.Nullable)
	if err != nil {
		return nil, err
	}

	in := &Input{Type: t, Values: make([]reflect.Value, 0, len(f.Values))}
	for i := range f.Values {
		v, err := nodeValue(&f.Values[i], k, t)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		in.Values = append(in.Values, v)
	}
	return in, nil
}

func (f *inputFile) records() (*Input, error) {
	kinds := make([]kind.Kind, len(f.Fields))
	fields := make([]reflect.StructField, len(f.Fields))
	seen := make(map[string]bool, len(f.Fields))

	for i, fs := range f.Fields {
		if !token.IsIdentifier(fs.Name) || !token.IsExported(fs.Name) {
			return nil, fmt.Errorf("field %d: %q is not an exported identifier", i, fs.Name)
		}
		if seen[fs.Name] {
			return nil, fmt.Errorf("field %d: duplicate name %s", i, fs.Name)
		}
		seen[fs.Name] = true

		k, t, err := fieldType(fs.Kind, fs.Nullable)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fs.Name, err)
		}
		kinds[i] = k
		fields[i] = reflect.StructField{Name: fs.Name, Type: t}
	}

	t := reflect.StructOf(fields)
	in := &Input{Type: t, Values: make([]reflect.Value, 0, len(f.Rows))}
	for r, row := range f.Rows {
		for name := range row {
			if !seen[name] {
				return nil, fmt.Errorf("row %d: unknown field %s", r, name)
			}
		}

		rec := reflect.New(t).Elem()
		for i, fs := range fields {
			node, ok := row[fs.Name]
			if !ok {
				continue
			}
			v, err := nodeValue(&node, kinds[i], fs.Type)
			if err != nil {
				return nil, fmt.Errorf("row %d field %s: %w", r, fs.Name, err)
			}
			rec.Field(i).Set(v)
		}
		in.Values = append(in.Values, rec)
	}
	return in, nil
}

func fieldType(name string, nullable bool) (kind.Kind, reflect.Type, error) {
	k, ok := kind.ByName(name)
	if !ok {
		return 0, nil, fmt.Errorf("unknown kind %q", name)
	}
	t := k.GoType()
	if nullable {
		t = reflect.PointerTo(t)
	}
	return k, t, nil
}

func nodeValue(n *yaml.Node, k kind.Kind, t reflect.Type) (reflect.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return reflect.Value{}, fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	if n.ShortTag() == "!!null" {
		if t.Kind() != reflect.Pointer {
			return reflect.Value{}, fmt.Errorf("line %d: null for a non-nullable %s", n.Line, k)
		}
		return reflect.Zero(t), nil
	}

	parsed, err := kind.Parse(k, n.Value)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("line %d: %w", n.Line, err)
	}
	v := reflect.ValueOf(parsed)
	if t.Kind() != reflect.Pointer {
		return v, nil
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(v)
	return p, nil
}
