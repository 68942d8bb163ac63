package core

import (
	"context"
	"fmt"

	"scoutcore/pkg/domain"
)

// NewFactorStockRule warns when a written project carries factors without a
// stock concentration. Such factors render zero volumes under the default
// build mode and fail a strict build, so surfacing the gap at edit time saves
// a wasted run.
func NewFactorStockRule() Rule {
	return factorStockRule{}
}

type factorStockRule struct{}

func (factorStockRule) Name() string { return "factor_stock" }

func (factorStockRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityProject || change.After == nil {
			continue
		}
		project, ok := change.After.(Project)
		if !ok {
			continue
		}
		for _, factor := range project.Factors {
			if factor.Name == domain.BufferPHFactor {
				continue
			}
			if factor.Stock != nil {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     "factor_stock",
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("project %s factor %q has no stock concentration; its volumes will render as zero", project.ID, factor.Name),
				Entity:   EntityFactor,
				EntityID: project.ID,
			})
		}
	}
	return res, nil
}
