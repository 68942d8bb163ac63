// Package domain defines the factorial design engine, the persistent
// entities, value types, and rule evaluation primitives used by scoutcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProject identifies a design project record.
	EntityProject EntityType = "project"
	// EntityDesign identifies a built design record.
	EntityDesign EntityType = "design"
	// EntityFactor identifies a factor embedded in a project; factors are not
	// stored standalone but appear as entities in change records.
	EntityFactor EntityType = "factor"
)

// FactorKind classifies how a factor's levels are interpreted by collaborators
// supplying normalized stock concentrations.
type FactorKind string

// Canonical factor kinds. The engine treats all levels as strings; kinds feed
// catalog display and collaborator-side normalization only.
const (
	// KindConcentration marks levels expressed in a concentration base unit (mM).
	KindConcentration FactorKind = "concentration"
	// KindPercentage marks levels expressed as percentages (0-100).
	KindPercentage FactorKind = "percentage"
	// KindPH marks dimensionless pH levels (0-14).
	KindPH FactorKind = "ph"
	// KindCategorical marks non-numeric levels that never enter volume arithmetic.
	KindCategorical FactorKind = "categorical"
)

// Names of the coupled buffer factors. The buffer pH factor stores no stock
// concentration; the buffer concentration factor supplies the desired
// concentration rendered under the pH-keyed volume column. The coupling is a
// deliberate named special case, not a general mechanism.
const (
	// BufferPHFactor is the designated dimensionless pH factor.
	BufferPHFactor = "buffer pH"
	// BufferConcentrationFactor supplies desired buffer concentrations.
	BufferConcentrationFactor = "buffer_concentration"
)

// Plate geometry constants for the supported 96- and 384-well formats.
const (
	// PlateRows96 is the number of rows (A-H) on a 96-well plate.
	PlateRows96 = 8
	// PlateColumns96 is the number of columns (1-12) on a 96-well plate.
	PlateColumns96 = 12
	// PlateWells96 is the well count of one 96-well plate.
	PlateWells96 = PlateRows96 * PlateColumns96
	// MaxCombinations is the hard design ceiling: four 96-well plates
	// interleaved into one 384-well plate.
	MaxCombinations = 4 * PlateWells96
)

// WaterColumn is the trailing diluent column of every volume table.
const WaterColumn = "water"

// DefaultFinalVolume is the per-well fill in microliters applied when a
// project does not specify one.
const DefaultFinalVolume = 100

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Factor is one experimental variable: an ordered list of unique levels and,
// for every factor except the designated buffer pH factor, a stock
// concentration in a normalized base unit. Levels are stored in canonical
// decimal form (units stripped) so later arithmetic is consistent; purely
// categorical levels are stored trimmed but otherwise verbatim.
type Factor struct {
	Name   string   `json:"name"`
	Levels []string `json:"levels"`
	Stock  *float64 `json:"stock_concentration,omitempty"`
}

// Project is a working design session: an ordered factor set plus the shared
// final volume every combination is topped up to.
type Project struct {
	Base
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Factors     []Factor `json:"factors"`
	FinalVolume float64  `json:"final_volume"`
}

// DesignRecord is the persisted result of a successful build: both aligned
// output tables plus the parameters they were derived from. Records are
// immutable once written; a rebuild produces a new record.
type DesignRecord struct {
	Base
	ProjectID    string       `json:"project_id"`
	FinalVolume  float64      `json:"final_volume"`
	Combinations int          `json:"combinations"`
	Plates       int          `json:"plates"`
	Tables       DesignTables `json:"tables"`
	Strict       bool         `json:"strict"`
}

// DesignTables holds the two column-aligned output tables of one build.
// TrackingRows[i] and VolumeRows[i] describe the same combination, whose
// 1-based index is i+1.
type DesignTables struct {
	TrackingHeaders []string    `json:"tracking_headers"`
	TrackingRows    [][]string  `json:"tracking_rows"`
	VolumeHeaders   []string    `json:"volume_headers"`
	VolumeRows      [][]float64 `json:"volume_rows"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity,omitempty"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
