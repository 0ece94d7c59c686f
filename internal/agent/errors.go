package agent

import "fmt"

// Loop phases.
const (
	PhasePlan      = "plan"
	PhaseToolRound = "tool_round"
	PhaseCritique  = "critique"
	PhaseReport    = "report"
)

// PhaseError aborts a run: the model service failed during Phase.
type PhaseError struct {
	Phase string
	Round int
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Round > 0 {
		return fmt.Sprintf("research %s (round %d): %v", e.Phase, e.Round, e.Err)
	}
	return fmt.Sprintf("research %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// ParseError reports a structured payload that did not decode. It is logged,
// never returned from Run.
type ParseError struct {
	Phase string
	Text  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s output: %v", e.Phase, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
