package core

import (
	"context"
	"fmt"

	"scoutcore/pkg/domain"
)

// NewPlateCapacityRule returns the default in-transaction rule watching the
// 384-well plate ceiling. Over-capacity projects are allowed to persist, so
// collaborators can trim levels incrementally, but the violation warns that a
// build will be rejected. Design records over the ceiling are blocked
// outright since the builder never emits them.
func NewPlateCapacityRule() Rule {
	return plateCapacityRule{}
}

type plateCapacityRule struct{}

func (plateCapacityRule) Name() string { return "plate_capacity" }

func (plateCapacityRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, project := range view.ListProjects() {
		set, err := domain.NewFactorSetFrom(project.Factors)
		if err != nil {
			continue
		}
		total := set.TotalCombinations()
		if total <= domain.MaxCombinations {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     "plate_capacity",
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("project %s (%s) enumerates %d combinations, over the %d-well ceiling; a build will be rejected", project.Name, project.ID, total, domain.MaxCombinations),
			Entity:   EntityProject,
			EntityID: project.ID,
		})
	}

	for _, change := range changes {
		if change.Entity != EntityDesign || change.Action != ActionCreate {
			continue
		}
		design, ok := change.After.(DesignRecord)
		if !ok {
			continue
		}
		if design.Combinations <= domain.MaxCombinations {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     "plate_capacity",
			Severity: SeverityBlock,
			Message:  fmt.Sprintf("design %s holds %d combinations, over the %d-well ceiling", design.ID, design.Combinations, domain.MaxCombinations),
			Entity:   EntityDesign,
			EntityID: design.ID,
		})
	}
	return res, nil
}
