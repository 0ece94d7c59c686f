package schema

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var compiled sync.Map // format name -> *jsonschema.Schema

// Compile returns the compiled validator for f, cached by name.
func (f Format) Compile() (*jsonschema.Schema, error) {
	if v, ok := compiled.Load(f.Name); ok {
		return v.(*jsonschema.Schema), nil
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(f.Schema))
	if err != nil {
		return nil, fmt.Errorf("parse %s schema: %w", f.Name, err)
	}
	url := f.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", f.Name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", f.Name, err)
	}
	actual, _ := compiled.LoadOrStore(f.Name, sch)
	return actual.(*jsonschema.Schema), nil
}

// Validate checks payload against f. The model service enforces the schema at
// generation time; this is for offline inspection of captured payloads.
func (f Format) Validate(payload []byte) error {
	sch, err := f.Compile()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("payload does not match %s: %w", f.Name, err)
	}
	return nil
}
