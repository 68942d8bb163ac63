package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// numericPrefix matches a leading decimal number, optionally signed and with
// an exponent, so unit-suffixed levels such as "50 mM" or "12.5%" normalize
// to their numeric part.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// CanonicalLevel normalizes a raw level string: whitespace is trimmed and a
// numeric level (possibly unit-suffixed) is rewritten in canonical decimal
// form so that later arithmetic and duplicate detection are consistent.
// Categorical levels are returned trimmed but otherwise verbatim.
func CanonicalLevel(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if v, err := ParseNumeric(trimmed); err == nil {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return trimmed
}

// ParseNumeric extracts the numeric value of a level or stock string,
// stripping any trailing unit. The remainder after the numeric prefix is
// ignored; a string with no numeric prefix fails with a ParseError.
func ParseNumeric(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	match := numericPrefix.FindString(trimmed)
	if match == "" {
		return 0, ParseError{Value: raw, Reason: "no numeric prefix"}
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, ParseError{Value: raw, Reason: err.Error()}
	}
	return v, nil
}

// FactorSet is the engine-side factor store: an ordered collection of named
// factors. Insertion order is load-bearing: it defines both enumeration
// order and output column order. A FactorSet is not safe for concurrent
// mutation; builds operate on value snapshots.
type FactorSet struct {
	factors []Factor
	index   map[string]int
}

// NewFactorSet returns an empty factor store.
func NewFactorSet() *FactorSet {
	return &FactorSet{index: map[string]int{}}
}

// NewFactorSetFrom builds a store from factors in slice order, applying the
// same validation as Add. It is how persisted project factors re-enter the
// engine.
func NewFactorSetFrom(factors []Factor) (*FactorSet, error) {
	set := NewFactorSet()
	for _, f := range factors {
		if err := set.Add(f.Name, f.Levels, f.Stock); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func normalizeLevels(name string, levels []string) ([]string, error) {
	if len(levels) == 0 {
		return nil, ValidationError{Field: name, Message: "factor requires at least one level"}
	}
	canonical := make([]string, 0, len(levels))
	seen := make(map[string]struct{}, len(levels))
	for _, raw := range levels {
		level := CanonicalLevel(raw)
		if level == "" {
			return nil, ValidationError{Field: name, Message: "empty level"}
		}
		if _, dup := seen[level]; dup {
			return nil, ValidationError{Field: name, Message: "duplicate level " + strconv.Quote(level)}
		}
		seen[level] = struct{}{}
		canonical = append(canonical, level)
	}
	return canonical, nil
}

// Add stores a new factor at the end of the insertion order. The name must be
// non-empty after trimming and must not already exist; levels must be
// non-empty and unique after canonicalization. The stock concentration is
// required context for volume arithmetic on every factor except the buffer pH
// factor, which is dimensionless and stores no stock regardless of input.
func (s *FactorSet) Add(name string, levels []string, stock *float64) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ValidationError{Message: "factor name is empty"}
	}
	if _, exists := s.index[trimmed]; exists {
		return ValidationError{Field: trimmed, Message: "factor already exists"}
	}
	canonical, err := normalizeLevels(trimmed, levels)
	if err != nil {
		return err
	}
	if trimmed == BufferPHFactor {
		stock = nil
	}
	s.index[trimmed] = len(s.factors)
	s.factors = append(s.factors, Factor{Name: trimmed, Levels: canonical, Stock: cloneStock(stock)})
	return nil
}

// Update replaces an existing factor's levels and stock wholesale, keeping
// its position in the insertion order. Updating an absent factor fails with a
// ValidationError.
func (s *FactorSet) Update(name string, levels []string, stock *float64) error {
	trimmed := strings.TrimSpace(name)
	pos, exists := s.index[trimmed]
	if !exists {
		return ValidationError{Field: trimmed, Message: "factor not present"}
	}
	canonical, err := normalizeLevels(trimmed, levels)
	if err != nil {
		return err
	}
	if trimmed == BufferPHFactor {
		stock = nil
	}
	s.factors[pos] = Factor{Name: trimmed, Levels: canonical, Stock: cloneStock(stock)}
	return nil
}

// Remove deletes a factor; removing an absent name is a no-op. Remaining
// factors keep their relative order.
func (s *FactorSet) Remove(name string) {
	trimmed := strings.TrimSpace(name)
	pos, exists := s.index[trimmed]
	if !exists {
		return
	}
	s.factors = append(s.factors[:pos], s.factors[pos+1:]...)
	delete(s.index, trimmed)
	for i := pos; i < len(s.factors); i++ {
		s.index[s.factors[i].Name] = i
	}
}

// Get returns a copy of the named factor.
func (s *FactorSet) Get(name string) (Factor, bool) {
	pos, exists := s.index[strings.TrimSpace(name)]
	if !exists {
		return Factor{}, false
	}
	return cloneFactor(s.factors[pos]), true
}

// Len returns the number of factors.
func (s *FactorSet) Len() int {
	return len(s.factors)
}

// Names returns factor names in insertion order.
func (s *FactorSet) Names() []string {
	names := make([]string, len(s.factors))
	for i, f := range s.factors {
		names[i] = f.Name
	}
	return names
}

// Factors returns a deep copy of the stored factors in insertion order.
func (s *FactorSet) Factors() []Factor {
	out := make([]Factor, len(s.factors))
	for i, f := range s.factors {
		out[i] = cloneFactor(f)
	}
	return out
}

// combinationSaturation bounds the capacity product far above the plate
// ceiling so pathological level counts cannot overflow the arithmetic.
const combinationSaturation = int64(1) << 40

// TotalCombinations returns the full factorial size: the product of level
// counts over all factors, 0 for an empty store. The product saturates well
// above MaxCombinations; the ceiling itself is enforced by the design
// builder.
func (s *FactorSet) TotalCombinations() int {
	if len(s.factors) == 0 {
		return 0
	}
	total := int64(1)
	for _, f := range s.factors {
		total *= int64(len(f.Levels))
		if total >= combinationSaturation {
			return int(combinationSaturation)
		}
	}
	return int(total)
}

// Clone returns an independent copy of the set.
func (s *FactorSet) Clone() *FactorSet {
	out := NewFactorSet()
	for _, f := range s.factors {
		out.index[f.Name] = len(out.factors)
		out.factors = append(out.factors, cloneFactor(f))
	}
	return out
}

func cloneFactor(f Factor) Factor {
	return Factor{Name: f.Name, Levels: append([]string(nil), f.Levels...), Stock: cloneStock(f.Stock)}
}

func cloneStock(stock *float64) *float64 {
	if stock == nil {
		return nil
	}
	v := *stock
	return &v
}
