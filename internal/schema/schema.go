// Package schema defines the structured records exchanged with the model and
// the strict JSON Schemas that constrain them.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Plan is the first structured answer of a run.
type Plan struct {
	Intents []string `json:"intents"`
	Queries []string `json:"queries"`
	Targets []string `json:"targets"`
	Risks   []string `json:"risks"`
}

// Critique is produced after every tool round. Sufficient is the only early
// termination signal.
type Critique struct {
	Sufficient  bool     `json:"sufficient"`
	Gaps        []string `json:"gaps"`
	NextQueries []string `json:"next_queries"`
}

// Report is the terminal artifact of a run.
type Report struct {
	TLDR      string    `json:"tldr"`
	Sections  []Section `json:"sections"`
	NextTodos []string  `json:"next_todos"`
}

type Section struct {
	Title     string     `json:"title"`
	Bullets   []string   `json:"bullets"`
	Citations []Citation `json:"citations"`
}

type Citation struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
	Snippet     string `json:"snippet"`
}

// Format is a named JSON Schema handed to the model as a structured output
// constraint.
type Format struct {
	Name   string
	Schema json.RawMessage
}

var (
	PlanFormat     = mustStrictFormat[Plan]("Plan")
	CritiqueFormat = mustStrictFormat[Critique]("Critique")
	ReportFormat   = mustStrictFormat[Report]("ResearchReport")
)

// Formats lists every structured output format in loop order.
func Formats() []Format {
	return []Format{PlanFormat, CritiqueFormat, ReportFormat}
}

// Lookup finds a format by its schema name.
func Lookup(name string) (Format, bool) {
	for _, f := range Formats() {
		if f.Name == name {
			return f, true
		}
	}
	return Format{}, false
}

// Reflect derives an inline JSON Schema for T. Fields without omitempty are
// required and objects reject additional properties.
func Reflect[T any]() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	s := r.Reflect(new(T))
	s.Version = ""
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("schema: marshal %T: %v", *new(T), err))
	}
	return b
}

func mustStrictFormat[T any](name string) Format {
	f := Format{Name: name, Schema: Reflect[T]()}
	if err := CheckStrict(f.Schema); err != nil {
		panic(fmt.Sprintf("schema: %s is not strict: %v", name, err))
	}
	return f
}

// ErrNotObject is returned by Decode when the payload is valid JSON but not
// an object, such as null or a bare array.
var ErrNotObject = errors.New("schema: payload is not a JSON object")

// Decode parses a structured payload into T. Every record is an object at the
// top level, so anything else is rejected.
func Decode[T any](text string) (T, error) {
	var v T
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) > 0 && trimmed[0] != '{' && json.Valid(trimmed) {
		return v, ErrNotObject
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return v, err
	}
	return v, nil
}
