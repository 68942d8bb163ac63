// Package designapi defines the stable payload types a built factorial
// design is rendered into for export and external consumption. The shapes
// here are wire contracts: the HTTP adapter and the export worker both
// depend on them, and stored artifacts are unmarshaled against them.
package designapi

import (
	"strings"
	"time"

	"scoutcore/pkg/domain"
)

// Format identifies a rendering of a design result.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat normalizes a user-supplied format token.
func ParseFormat(raw string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJSON:
		return FormatJSON, true
	case FormatCSV:
		return FormatCSV, true
	}
	return "", false
}

// Formats lists every supported export format in preference order.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV}
}

// Column describes one column of an exported table.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// Table pairs a column schema with positionally aligned rows. Rows are kept
// positional rather than keyed by name because factor names are free-form
// user input and may shadow the fixed tracking columns.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// DesignResult is the export payload derived from one design record: both
// output tables plus the parameters the build ran with.
type DesignResult struct {
	DesignID     string    `json:"design_id"`
	ProjectID    string    `json:"project_id"`
	FinalVolume  float64   `json:"final_volume"`
	Combinations int       `json:"combinations"`
	Plates       int       `json:"plates"`
	Strict       bool      `json:"strict,omitempty"`
	Tracking     Table     `json:"tracking"`
	Volumes      Table     `json:"volumes"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// ResultFromRecord renders a stored design record into the export payload.
// Tracking cells stay strings exactly as built; volume cells stay numeric.
func ResultFromRecord(record domain.DesignRecord, generatedAt time.Time) DesignResult {
	tables := record.Tables
	tracking := Table{
		Columns: trackingColumns(tables.TrackingHeaders),
		Rows:    make([][]any, 0, len(tables.TrackingRows)),
	}
	for _, row := range tables.TrackingRows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		tracking.Rows = append(tracking.Rows, cells)
	}

	volumes := Table{
		Columns: volumeColumns(tables.VolumeHeaders),
		Rows:    make([][]any, 0, len(tables.VolumeRows)),
	}
	for _, row := range tables.VolumeRows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		volumes.Rows = append(volumes.Rows, cells)
	}

	return DesignResult{
		DesignID:     record.ID,
		ProjectID:    record.ProjectID,
		FinalVolume:  record.FinalVolume,
		Combinations: record.Combinations,
		Plates:       record.Plates,
		Strict:       record.Strict,
		Tracking:     tracking,
		Volumes:      volumes,
		GeneratedAt:  generatedAt.UTC(),
	}
}

func trackingColumns(headers []string) []Column {
	columns := make([]Column, 0, len(headers))
	for _, name := range headers {
		column := Column{Name: name, Type: "string"}
		switch name {
		case domain.TrackingColumnID:
			column.Type = "integer"
			column.Description = "1-based combination index"
		case domain.TrackingColumnPlate:
			column.Type = "integer"
			column.Description = "96-well source plate number"
		case domain.TrackingColumnWell96:
			column.Description = "well on the 96-well source plate"
		case domain.TrackingColumnWell384:
			column.Description = "well on the interleaved 384-well plate"
		case domain.TrackingColumnResponse:
			column.Description = "measured response, filled in by the laboratory"
		}
		columns = append(columns, column)
	}
	return columns
}

func volumeColumns(headers []string) []Column {
	columns := make([]Column, 0, len(headers))
	for _, name := range headers {
		column := Column{Name: name, Type: "number", Unit: "uL"}
		if name == domain.WaterColumn {
			column.Description = "diluent top-up to the final volume"
		}
		columns = append(columns, column)
	}
	return columns
}
