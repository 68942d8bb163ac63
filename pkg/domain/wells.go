package domain

import (
	"fmt"
	"strconv"
)

// WellAddress locates one combination on the physical plates: the 96-well
// plate number and position it is pipetted into, and the 384-well position
// the four source plates interleave into.
type WellAddress struct {
	Plate96 int    `json:"plate_96"`
	Well96  string `json:"well_96"`
	Well384 string `json:"well_384"`
}

// WellFor96 maps a zero-based combination index to its 96-well plate number
// and position. Plates fill column-major: A1,B1,...,H1,A2,...,H12, then the
// next plate. The mapping is pure and total for idx0 >= 0.
func WellFor96(idx0 int) (plate int, well string) {
	plate = idx0/PlateWells96 + 1
	pos := idx0 % PlateWells96
	row := pos % PlateRows96
	col := pos/PlateRows96 + 1
	return plate, string(rune('A'+row)) + strconv.Itoa(col)
}

// To384 converts a 96-well coordinate plus its plate number into the 384-well
// coordinate it interleaves into. Four consecutive 96-well plates fold into
// one 384-well plate: six source columns map to one column pair-block, odd
// source columns land on even 384 rows and even columns on odd rows.
func To384(plate int, well96 string) (string, error) {
	rowIdx, col, err := parseWell96(well96)
	if err != nil {
		return "", err
	}
	if plate < 1 {
		return "", ValidationError{Field: "plate", Message: fmt.Sprintf("plate %d out of range", plate)}
	}
	col384 := (plate-1)*6 + (col+1)/2
	row384 := rowIdx * 2
	if col%2 == 0 {
		row384++
	}
	return string(rune('A'+row384)) + strconv.Itoa(col384), nil
}

// parseWell96 splits a 96-well position like "B7" into its zero-based row
// index and 1-based column number.
func parseWell96(well string) (rowIdx, col int, err error) {
	if len(well) < 2 {
		return 0, 0, ValidationError{Field: "well", Message: strconv.Quote(well) + " is not a 96-well position"}
	}
	letter := well[0]
	if letter < 'A' || letter >= 'A'+PlateRows96 {
		return 0, 0, ValidationError{Field: "well", Message: strconv.Quote(well) + " has no row A-H"}
	}
	col, convErr := strconv.Atoi(well[1:])
	if convErr != nil || col < 1 || col > PlateColumns96 {
		return 0, 0, ValidationError{Field: "well", Message: strconv.Quote(well) + " has no column 1-12"}
	}
	return int(letter - 'A'), col, nil
}

// WellAddressFor composes both mappings for a zero-based combination index.
func WellAddressFor(idx0 int) WellAddress {
	plate, well96 := WellFor96(idx0)
	well384, err := To384(plate, well96)
	if err != nil {
		// Unreachable: WellFor96 only emits valid positions.
		panic(err)
	}
	return WellAddress{Plate96: plate, Well96: well96, Well384: well384}
}
