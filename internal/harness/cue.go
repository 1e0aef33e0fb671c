package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// suiteSchema is the closed shape of a CUE suite file.
const suiteSchema = `
#Layer: {
	origin: "default" | "override"
	labels: {[string]: string}
}

#Scenario: {
	name:         string & !=""
	description?: string
	prompt?:      string
	backends?: [...("vertex" | "genai" | "echo")]
	layers: [#Layer, ...#Layer]
	expect?: {
		labels?: {[string]: string}
		forwarded?: bool
	}
}

#Suite: {
	prompt?: string
	scenarios: [...#Scenario]
}
`

// parseCUE unifies a CUE suite with the schema, then decodes its concrete
// JSON form with the strict YAML decoder.
func parseCUE(filename string, data []byte) (*Suite, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(suiteSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("invalid suite schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Suite")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("suite does not match schema: %w", err)
	}

	js, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}
	return ParseSuite(js)
}
