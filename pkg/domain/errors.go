package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input to the factor set or the design
// builder: empty names, empty or duplicate levels, non-positive final
// volumes, builds without factors. It is surfaced to the caller immediately
// and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// CapacityError reports a design whose combination count exceeds the
// four-plate ceiling. Count carries the actual total so the caller can decide
// how much scope to shed.
type CapacityError struct {
	Count int
	Limit int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("design requires %d combinations, exceeding the %d-well capacity", e.Count, e.Limit)
}

// InfeasibleWell identifies one combination whose diluent top-up came out
// negative: the stocks cannot be diluted into the requested final volume.
type InfeasibleWell struct {
	Index   int     `json:"index"`
	Plate   int     `json:"plate"`
	Well96  string  `json:"well_96"`
	Well384 string  `json:"well_384"`
	Water   float64 `json:"water"`
}

// DesignInfeasibleError is returned when at least one combination requires a
// negative water volume. The build is all-or-nothing: no partial tables
// accompany this error. Wells lists every offending combination so callers
// can present actionable remediation.
type DesignInfeasibleError struct {
	Wells []InfeasibleWell
}

func (e DesignInfeasibleError) Error() string {
	if len(e.Wells) == 0 {
		return "design infeasible"
	}
	positions := make([]string, 0, len(e.Wells))
	for _, w := range e.Wells {
		positions = append(positions, fmt.Sprintf("plate %d %s (%.2f)", w.Plate, w.Well96, w.Water))
	}
	return fmt.Sprintf("design infeasible: %d combination(s) need negative water: %s", len(e.Wells), strings.Join(positions, ", "))
}

// ParseError reports a level or stock value that could not be parsed as a
// number where arithmetic required one. It is only returned by strict-mode
// builds; lenient builds record a zero volume for the cell instead.
type ParseError struct {
	Factor string
	Value  string
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("factor %q: cannot compute volume from %q: %s", e.Factor, e.Value, e.Reason)
}
