package core

import (
	"context"
	"fmt"
)

// minTransferVolume is the smallest reliably pipettable transfer in
// microliters on the supported liquid handlers.
const minTransferVolume = 1.0

// NewDesignVolumeRule warns when a built design asks for non-zero transfer
// volumes below the pipettable floor. The design still commits; the operator
// decides whether to raise the final volume or accept the imprecision.
func NewDesignVolumeRule() Rule {
	return designVolumeRule{}
}

type designVolumeRule struct{}

func (designVolumeRule) Name() string { return "design_transfer_volume" }

func (designVolumeRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityDesign || change.Action != ActionCreate {
			continue
		}
		design, ok := change.After.(DesignRecord)
		if !ok {
			continue
		}
		below := 0
		smallest := minTransferVolume
		for _, row := range design.Tables.VolumeRows {
			for _, volume := range row {
				if volume <= 0 || volume >= minTransferVolume {
					continue
				}
				below++
				if volume < smallest {
					smallest = volume
				}
			}
		}
		if below == 0 {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     "design_transfer_volume",
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("design %s has %d transfer volumes below %.1f uL (smallest %.2f uL)", design.ID, below, minTransferVolume, smallest),
			Entity:   EntityDesign,
			EntityID: design.ID,
		})
	}
	return res, nil
}
