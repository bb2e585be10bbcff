// Package cli holds the operational subcommands of the sitestock binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/project"
	"github.com/sitestock/sitestock/report"
)

// Exit codes shared by the subcommands.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitViolations = 10
)

// VerifyOptions defines available flags for the verify command.
type VerifyOptions struct {
	File       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// VerifySummary describes the JSON response for verify.
type VerifySummary struct {
	OK         bool                  `json:"ok"`
	Movements  int                   `json:"movements"`
	Materials  int                   `json:"materials"`
	Violations []inventory.Violation `json:"violations"`
	Stock      []inventory.Snapshot  `json:"stock"`
}

// VerifyCommand replays a saved state file and prints the outcome. It
// returns ExitViolations when the ledger breaks an invariant.
func VerifyCommand(opts VerifyOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.File == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "verify: --file is required")
		return ExitFailure
	}
	state, err := readState(opts.File)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return ExitFailure
	}

	violations := inventory.Verify(state.Movements)
	if violations == nil {
		violations = []inventory.Violation{}
	}
	summary := VerifySummary{
		OK:         len(violations) == 0,
		Movements:  len(state.Movements),
		Materials:  len(state.Catalog),
		Violations: violations,
		Stock:      project.LoadEngine(state).CurrentStock(),
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "verify: encode json: %v\n", err)
			return ExitFailure
		}
	} else {
		renderVerifyHuman(opts.Stdout, opts.File, summary)
	}
	if !summary.OK {
		return ExitViolations
	}
	return ExitOK
}

func readState(path string) (project.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return project.State{}, err
	}
	defer f.Close()
	var state project.State
	if err := json.NewDecoder(f).Decode(&state); err != nil {
		return project.State{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return state, nil
}

func renderVerifyHuman(out io.Writer, path string, summary VerifySummary) {
	_, _ = fmt.Fprintf(out, "Ledger %s: %d movement(s), %d material(s)\n", path, summary.Movements, summary.Materials)
	if summary.OK {
		_, _ = fmt.Fprintln(out, "No violations found.")
	} else {
		_, _ = fmt.Fprintf(out, "%d violation(s):\n", len(summary.Violations))
		for _, v := range summary.Violations {
			_, _ = fmt.Fprintf(out, " - #%d %s [%s] %s\n", v.Index, v.MovementID, v.Kind, v.Detail)
		}
	}
	if len(summary.Stock) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "Stock:")
	for _, s := range summary.Stock {
		units := make([]string, 0, len(s.Units))
		for unit := range s.Units {
			units = append(units, unit)
		}
		sort.Strings(units)
		_, _ = fmt.Fprintf(out, " - %s: %g (avg %s, value %s)\n", s.Name, s.Total, report.FormatUSD(s.AvgCostUSD), report.FormatUSD(s.TotalValueUSD))
		for _, unit := range units {
			_, _ = fmt.Fprintf(out, "     %s: %g\n", unit, s.Units[unit])
		}
	}
}
