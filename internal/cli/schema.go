package cli

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// inputSchema describes the shape of an input file. Kind names, field
// names and value text are checked later against the kind table.
const inputSchema = `
#Scalar: null | bool | number | string

#Field: {
	name:      string & !=""
	kind:      string & !=""
	nullable?: bool
}

#Input: {
	kind?:     string & !=""
	nullable?: bool
	values?: [...#Scalar]
	fields?: [...#Field]
	rows?: [...{[string]: #Scalar}]
}
`

// checkShape validates the raw YAML document against inputSchema, so
// misspelled keys and wrongly nested values fail with the offending path.
func checkShape(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(inputSchema, cue.Filename("input.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile input schema: %w", err)
	}

	v := ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	v = schema.LookupPath(cue.ParsePath("#Input")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("input: %s", firstError(err))
	}
	return nil
}

// firstError reports the first CUE error with its path.
func firstError(err error) string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errors.Details(errs[0], nil)
}
