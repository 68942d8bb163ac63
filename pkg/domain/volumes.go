package domain

import "math"

// round2 rounds to two decimal places, half away from zero. Two decimals is
// the resolution of the downstream pipetting instructions.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// dilutionVolume applies the conservation law stock×V = desired×final:
// the stock volume that realizes the desired concentration in the final
// volume.
func dilutionVolume(desired, stock, finalVolume float64) float64 {
	return round2(desired * finalVolume / stock)
}

// VolumeColumns derives the volume table header for the whole design: one
// column per distinct buffer pH level observed across the design (labelled
// "buffer {pH}", in level order), one column per remaining factor except the
// buffer concentration factor (whose desired concentration renders under the
// pH-keyed column), and the trailing water column.
func (s *FactorSet) VolumeColumns() []string {
	var columns []string
	if ph, ok := s.Get(BufferPHFactor); ok {
		for _, level := range ph.Levels {
			columns = append(columns, "buffer "+level)
		}
	}
	for _, f := range s.factors {
		if f.Name == BufferPHFactor || f.Name == BufferConcentrationFactor {
			continue
		}
		columns = append(columns, f.Name)
	}
	return append(columns, WaterColumn)
}

// volumeCalculator computes one volume row per combination against a fixed
// column layout. Parse failures and division by zero degrade to a zero cell
// unless strict mode is set, in which case they surface as ParseError.
type volumeCalculator struct {
	set         *FactorSet
	columns     []string
	colIndex    map[string]int
	finalVolume float64
	strict      bool
}

func newVolumeCalculator(set *FactorSet, finalVolume float64, strict bool) *volumeCalculator {
	columns := set.VolumeColumns()
	colIndex := make(map[string]int, len(columns))
	for i, name := range columns {
		colIndex[name] = i
	}
	return &volumeCalculator{
		set:         set,
		columns:     columns,
		colIndex:    colIndex,
		finalVolume: finalVolume,
		strict:      strict,
	}
}

// row computes the volume cells for one combination. The returned slice is
// aligned with the calculator's columns; the final cell is the water top-up,
// which may be negative for infeasible designs.
func (c *volumeCalculator) row(combo Combination) ([]float64, error) {
	row := make([]float64, len(c.columns))
	sum := 0.0
	if phLevel, ok := combo.Level(BufferPHFactor); ok {
		v, err := c.bufferVolume(combo, phLevel)
		if err != nil {
			return nil, err
		}
		row[c.colIndex["buffer "+phLevel]] = v
		sum += v
	}
	for _, sel := range combo.Selections {
		if sel.Factor == BufferPHFactor || sel.Factor == BufferConcentrationFactor {
			continue
		}
		factor, _ := c.set.Get(sel.Factor)
		v, err := c.factorVolume(factor, sel.Level)
		if err != nil {
			return nil, err
		}
		row[c.colIndex[sel.Factor]] = v
		sum += v
	}
	row[len(row)-1] = round2(c.finalVolume - sum)
	return row, nil
}

// bufferVolume resolves the coupled buffer special case: the desired
// concentration comes from this combination's buffer_concentration level, the
// stock from that factor's stock concentration, and the result lands in the
// column keyed by this combination's pH.
func (c *volumeCalculator) bufferVolume(combo Combination, phLevel string) (float64, error) {
	bufferConc, ok := c.set.Get(BufferConcentrationFactor)
	if !ok || bufferConc.Stock == nil {
		return c.soft(BufferConcentrationFactor, "", "no stock concentration")
	}
	desiredLevel, ok := combo.Level(BufferConcentrationFactor)
	if !ok {
		return c.soft(BufferConcentrationFactor, "", "no level selected")
	}
	desired, err := ParseNumeric(desiredLevel)
	if err != nil {
		return c.soft(BufferConcentrationFactor, desiredLevel, "level is not numeric")
	}
	if *bufferConc.Stock == 0 {
		return c.soft(BufferConcentrationFactor, desiredLevel, "stock concentration is zero")
	}
	return dilutionVolume(desired, *bufferConc.Stock, c.finalVolume), nil
}

// factorVolume applies the conservation law to a plain factor. Factors
// without a stock concentration cannot contribute volume and degrade to zero.
func (c *volumeCalculator) factorVolume(factor Factor, level string) (float64, error) {
	if factor.Stock == nil {
		return c.soft(factor.Name, level, "no stock concentration")
	}
	desired, err := ParseNumeric(level)
	if err != nil {
		return c.soft(factor.Name, level, "level is not numeric")
	}
	if *factor.Stock == 0 {
		return c.soft(factor.Name, level, "stock concentration is zero")
	}
	return dilutionVolume(desired, *factor.Stock, c.finalVolume), nil
}

// soft records an uncomputable cell: zero in lenient mode, ParseError in
// strict mode. The zero keeps the cell distinguishable from the hard
// infeasibility failure, which always aborts the whole build.
func (c *volumeCalculator) soft(factor, value, reason string) (float64, error) {
	if c.strict {
		return 0, ParseError{Factor: factor, Value: value, Reason: reason}
	}
	return 0, nil
}
