package domain

import (
	"math"
	"strconv"
)

// Tracking table column names preceding the per-factor columns. The response
// column trails the factors and is left empty for the laboratory to fill in.
const (
	TrackingColumnID       = "id"
	TrackingColumnPlate    = "plate"
	TrackingColumnWell96   = "well_96"
	TrackingColumnWell384  = "well_384"
	TrackingColumnResponse = "response"
)

// BuildOptions tune a single design build. The zero value is the default
// lenient mode, in which uncomputable volume cells degrade to zero.
type BuildOptions struct {
	// Strict escalates parse failures and zero-stock divisions inside the
	// volume arithmetic to a ParseError instead of recording a zero cell.
	Strict bool
}

// BuildDesign runs the full pipeline on a snapshot of the factor set:
// capacity check, combination enumeration, well assignment, volume
// computation, and global feasibility validation. It returns both aligned
// output tables or exactly one of ValidationError, CapacityError, ParseError
// (strict mode), or DesignInfeasibleError. Identical inputs produce
// identical tables.
func BuildDesign(set *FactorSet, finalVolume float64, opts BuildOptions) (DesignTables, error) {
	if set == nil || set.Len() == 0 {
		return DesignTables{}, ValidationError{Message: "design requires at least one factor"}
	}
	if math.IsNaN(finalVolume) || math.IsInf(finalVolume, 0) || finalVolume <= 0 {
		return DesignTables{}, ValidationError{Field: "final_volume", Message: "must be a positive number"}
	}
	total := set.TotalCombinations()
	if total > MaxCombinations {
		return DesignTables{}, CapacityError{Count: total, Limit: MaxCombinations}
	}

	snapshot := set.Clone()
	calc := newVolumeCalculator(snapshot, finalVolume, opts.Strict)
	tables := DesignTables{
		TrackingHeaders: trackingHeaders(snapshot),
		TrackingRows:    make([][]string, 0, total),
		VolumeHeaders:   calc.columns,
		VolumeRows:      make([][]float64, 0, total),
	}

	var infeasible []InfeasibleWell
	enum := snapshot.Enumerate()
	for combo, ok := enum.Next(); ok; combo, ok = enum.Next() {
		addr := WellAddressFor(combo.Index - 1)
		tables.TrackingRows = append(tables.TrackingRows, trackingRow(combo, addr))
		volumes, err := calc.row(combo)
		if err != nil {
			return DesignTables{}, err
		}
		if water := volumes[len(volumes)-1]; water < 0 {
			infeasible = append(infeasible, InfeasibleWell{
				Index:   combo.Index,
				Plate:   addr.Plate96,
				Well96:  addr.Well96,
				Well384: addr.Well384,
				Water:   water,
			})
		}
		tables.VolumeRows = append(tables.VolumeRows, volumes)
	}
	if len(infeasible) > 0 {
		return DesignTables{}, DesignInfeasibleError{Wells: infeasible}
	}
	return tables, nil
}

func trackingHeaders(set *FactorSet) []string {
	headers := []string{TrackingColumnID, TrackingColumnPlate, TrackingColumnWell96, TrackingColumnWell384}
	headers = append(headers, set.Names()...)
	return append(headers, TrackingColumnResponse)
}

func trackingRow(combo Combination, addr WellAddress) []string {
	row := make([]string, 0, len(combo.Selections)+5)
	row = append(row,
		strconv.Itoa(combo.Index),
		strconv.Itoa(addr.Plate96),
		addr.Well96,
		addr.Well384,
	)
	for _, sel := range combo.Selections {
		row = append(row, sel.Level)
	}
	return append(row, "")
}

// PlatesFor returns how many 96-well plates a combination count occupies.
func PlatesFor(total int) int {
	if total <= 0 {
		return 0
	}
	return (total-1)/PlateWells96 + 1
}
