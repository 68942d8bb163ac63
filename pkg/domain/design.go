package domain

// Selection pairs a factor with the level chosen for one combination.
type Selection struct {
	Factor string `json:"factor"`
	Level  string `json:"level"`
}

// Combination is one cell of the full factorial: exactly one level per
// factor, in factor insertion order, identified by its 1-based enumeration
// index. Index is the sole input to well placement, so enumeration order is
// load-bearing.
type Combination struct {
	Index      int         `json:"index"`
	Selections []Selection `json:"selections"`
}

// Level returns the level selected for the named factor.
func (c Combination) Level(factor string) (string, bool) {
	for _, sel := range c.Selections {
		if sel.Factor == factor {
			return sel.Level, true
		}
	}
	return "", false
}

// Enumerator walks the Cartesian product of the factor level lists lazily, in
// lexicographic order with the last-listed factor varying fastest (standard
// nested-loop order over factors in insertion order). Obtaining a fresh
// enumerator restarts the sequence; two enumerations of the same set yield
// identical combinations in identical order.
type Enumerator struct {
	factors []Factor
	indices []int
	next    int
	done    bool
}

// Enumerate returns a fresh enumerator over a snapshot of the current
// factors. Mutating the set afterwards does not disturb a running
// enumeration.
func (s *FactorSet) Enumerate() *Enumerator {
	e := &Enumerator{
		factors: s.Factors(),
		next:    1,
	}
	e.indices = make([]int, len(e.factors))
	if len(e.factors) == 0 {
		e.done = true
	}
	return e
}

// Next yields the following combination, or false once the product is
// exhausted. An empty factor set yields nothing.
func (e *Enumerator) Next() (Combination, bool) {
	if e.done {
		return Combination{}, false
	}
	selections := make([]Selection, len(e.factors))
	for i, f := range e.factors {
		selections[i] = Selection{Factor: f.Name, Level: f.Levels[e.indices[i]]}
	}
	combo := Combination{Index: e.next, Selections: selections}
	e.next++
	for i := len(e.indices) - 1; i >= 0; i-- {
		e.indices[i]++
		if e.indices[i] < len(e.factors[i].Levels) {
			return combo, true
		}
		e.indices[i] = 0
	}
	e.done = true
	return combo, true
}
