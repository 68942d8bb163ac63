// Command design-check builds a full factorial design from a JSON plan
// without a running server. It prints the design summary, rule violations,
// and both output tables, and exits non-zero when the plan cannot build.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"scoutcore/internal/core"
	"scoutcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// plan mirrors the HTTP project payload plus the build mode, so a plan file
// doubles as a request body draft.
type plan struct {
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	FinalVolume float64      `json:"final_volume"`
	Strict      bool         `json:"strict"`
	Factors     []planFactor `json:"factors"`
}

type planFactor struct {
	Name   string   `json:"name"`
	Levels []string `json:"levels"`
	Stock  *float64 `json:"stock_concentration"`
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("design-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var planPath string
	var strict, csvMode bool
	fs.StringVar(&planPath, "plan", "design.json", "path to the design plan json")
	fs.BoolVar(&strict, "strict", false, "build in strict mode regardless of the plan")
	fs.BoolVar(&csvMode, "csv", false, "emit the tables as csv instead of aligned text")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := run(planPath, strict, csvMode, stdout); err != nil {
		fmt.Fprintf(stderr, "Design check failed: %v\n", err)
		return 1
	}
	return 0
}

func run(planPath string, strict, csvMode bool, stdout io.Writer) error {
	raw, err := os.ReadFile(planPath) // #nosec G304 -- plan path comes from the operator's flag
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	var p plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	service := core.NewInMemoryService(nil)
	project := core.Project{Name: p.Name, Description: p.Description, FinalVolume: p.FinalVolume}
	for _, f := range p.Factors {
		project.Factors = append(project.Factors, core.Factor{Name: f.Name, Levels: f.Levels, Stock: f.Stock})
	}

	ctx := context.Background()
	created, res, err := service.CreateProject(ctx, project)
	if err != nil {
		return describeFailure(err)
	}
	record, buildRes, err := service.BuildDesign(ctx, created.ID, core.BuildOptions{Strict: strict || p.Strict})
	if err != nil {
		return describeFailure(err)
	}
	res.Merge(buildRes)

	fmt.Fprintf(stdout, "design: %d combinations on %d plate(s), final volume %s µL\n",
		record.Combinations, record.Plates, strconv.FormatFloat(record.FinalVolume, 'f', -1, 64))
	printViolations(stdout, res.Violations)
	fmt.Fprintln(stdout)

	write := writeTextTable
	if csvMode {
		write = writeCSVTable
	}
	write(stdout, record.Tables.TrackingHeaders, record.Tables.TrackingRows)
	fmt.Fprintln(stdout)
	write(stdout, record.Tables.VolumeHeaders, volumeCells(record.Tables.VolumeRows))
	return nil
}

// describeFailure rewrites the typed build errors into actionable terminal
// messages; anything else passes through unchanged.
func describeFailure(err error) error {
	var (
		capacity   domain.CapacityError
		infeasible domain.DesignInfeasibleError
		blocked    domain.RuleViolationError
	)
	switch {
	case errors.As(err, &capacity):
		return fmt.Errorf("%d combinations exceed the %d-well ceiling; drop a factor or trim levels", capacity.Count, capacity.Limit)
	case errors.As(err, &infeasible):
		var b strings.Builder
		fmt.Fprintf(&b, "design infeasible: %d well(s) would need negative water", len(infeasible.Wells))
		for _, well := range infeasible.Wells {
			fmt.Fprintf(&b, "\n  combination %d plate %d well %s (384 %s): water %.2f µL",
				well.Index, well.Plate, well.Well96, well.Well384, well.Water)
		}
		return errors.New(b.String())
	case errors.As(err, &blocked):
		var b strings.Builder
		b.WriteString("blocked by rules")
		for _, v := range blocked.Result.Violations {
			fmt.Fprintf(&b, "\n  [%s] %s: %s", v.Severity, v.Rule, v.Message)
		}
		return errors.New(b.String())
	default:
		return err
	}
}

func printViolations(w io.Writer, violations []domain.Violation) {
	if len(violations) == 0 {
		return
	}
	fmt.Fprintln(w, "violations:")
	for _, v := range violations {
		fmt.Fprintf(w, "  [%s] %s: %s\n", v.Severity, v.Rule, v.Message)
	}
}

func writeTextTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func writeCSVTable(w io.Writer, headers []string, rows [][]string) {
	cw := csv.NewWriter(w)
	_ = cw.Write(headers)
	for _, row := range rows {
		_ = cw.Write(row)
	}
	cw.Flush()
}

func volumeCells(rows [][]float64) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		out[i] = cells
	}
	return out
}
