package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the result deterministically: one line per run and
// entity, then every table in key order as tab-separated rows.
//
//	## run-1 all_done
//	accounts	done	candidates=2 skipped=0 written=2
//
//	# accounts
//	addr123	test
func Snapshot(result *Result) []byte {
	var buf strings.Builder

	for _, run := range result.Runs {
		r := run.Report
		fmt.Fprintf(&buf, "## %s %s", r.RunID, r.State)
		if run.Code != "" {
			fmt.Fprintf(&buf, " %s", run.Code)
		}
		buf.WriteString("\n")
		for _, o := range r.Entities {
			fmt.Fprintf(&buf, "%s\t%s\tcandidates=%d skipped=%d written=%d\n",
				o.Entity, o.State, o.Candidates, o.Skipped, o.Written)
		}
		buf.WriteString("\n")
	}

	tables := make([]string, 0, len(result.Tables))
	for name := range result.Tables {
		tables = append(tables, name)
	}
	slices.Sort(tables)

	for _, name := range tables {
		fmt.Fprintf(&buf, "# %s\n", name)
		for _, row := range result.Tables[name].Rows {
			buf.WriteString(renderRow(row))
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario, fails the test on any run or
// assertion error, and compares the snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the snapshot of an existing result against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
