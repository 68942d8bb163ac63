package core

import (
	"fmt"

	"scoutcore/pkg/domain"
)

type (
	EntityType         = domain.EntityType
	FactorKind         = domain.FactorKind
	Severity           = domain.Severity
	Base               = domain.Base
	Factor             = domain.Factor
	FactorSet          = domain.FactorSet
	Project            = domain.Project
	DesignRecord       = domain.DesignRecord
	DesignTables       = domain.DesignTables
	BuildOptions       = domain.BuildOptions
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
)

const (
	EntityProject = domain.EntityProject
	EntityDesign  = domain.EntityDesign
	EntityFactor  = domain.EntityFactor
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// ErrNotFound indicates a missing entity lookup.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
