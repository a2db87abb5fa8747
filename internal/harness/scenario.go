package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/genesis/internal/engine"
)

// Scenario defines one load scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists directories of CUE entity declarations added to the
	// built-in entities. Paths are relative to the scenario file location.
	Specs []string `yaml:"specs,omitempty"`

	// Entities restricts the runs to these entities and their dependencies.
	Entities []string `yaml:"entities,omitempty"`

	// Seed holds rows stored before the first run, by table name.
	Seed map[string][]map[string]any `yaml:"seed,omitempty"`

	// Genesis is the inline genesis JSON used by every run that does not
	// bring its own document.
	Genesis string `yaml:"genesis,omitempty"`

	// GenesisFile is read instead of Genesis, relative to the scenario file.
	GenesisFile string `yaml:"genesis_file,omitempty"`

	// Runs are executed in order against the same database.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the final tables.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RunStep is one load run.
type RunStep struct {
	// Genesis and GenesisFile override the scenario document for this run.
	Genesis     string `yaml:"genesis,omitempty"`
	GenesisFile string `yaml:"genesis_file,omitempty"`

	// Expect validates the run report. Nil means the run must reach all_done.
	Expect *RunExpect `yaml:"expect,omitempty"`
}

// RunExpect specifies the expected outcome of one run.
type RunExpect struct {
	// State is the expected job state (all_done, failed, aborted).
	State engine.State `yaml:"state"`

	// Code is the expected load error code when the run does not succeed.
	Code engine.LoadErrorCode `yaml:"code,omitempty"`

	// Written and Skipped are per-entity counts; listed entities only.
	Written map[string]int64 `yaml:"written,omitempty"`
	Skipped map[string]int   `yaml:"skipped,omitempty"`

	// Entities maps entity names to their expected state.
	Entities map[string]engine.State `yaml:"entities,omitempty"`
}

// Assertion validates the final state of one table.
type Assertion struct {
	// Type is row_count, row or no_row.
	Type string `yaml:"type"`

	// Table is the table name (without schema).
	Table string `yaml:"table"`

	// Key selects a row (row, no_row).
	Key string `yaml:"key,omitempty"`

	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected column values (row). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount = "row_count"
	AssertRow      = "row"
	AssertNoRow    = "no_row"
)

// LoadScenario reads and parses a scenario YAML file. Relative spec and
// genesis paths are resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Specs {
		scenario.Specs[i] = resolve(base, p)
	}
	scenario.GenesisFile = resolve(base, scenario.GenesisFile)
	for i := range scenario.Runs {
		scenario.Runs[i].GenesisFile = resolve(base, scenario.Runs[i].GenesisFile)
	}

	if err := checkFiles(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}
	if s.Genesis != "" && s.GenesisFile != "" {
		return fmt.Errorf("genesis and genesis_file are mutually exclusive")
	}

	for i, run := range s.Runs {
		if run.Genesis != "" && run.GenesisFile != "" {
			return fmt.Errorf("runs[%d]: genesis and genesis_file are mutually exclusive", i)
		}
		if run.Genesis == "" && run.GenesisFile == "" && s.Genesis == "" && s.GenesisFile == "" {
			return fmt.Errorf("runs[%d]: no genesis document", i)
		}
		if run.Expect != nil {
			switch run.Expect.State {
			case engine.StateAllDone, engine.StateFailed, engine.StateAborted:
			default:
				return fmt.Errorf("runs[%d].expect: state must be all_done, failed or aborted, got %q", i, run.Expect.State)
			}
		}
	}

	for table, rows := range s.Seed {
		for i, row := range rows {
			if len(row) == 0 {
				return fmt.Errorf("seed.%s[%d]: row is empty", table, i)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Table == "" {
		return fmt.Errorf("assertions[%d]: table is required", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertRow:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for row", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for row", index)
		}
	case AssertNoRow:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for no_row", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func checkFiles(s *Scenario) error {
	for _, p := range s.Specs {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("specs directory not found: %s", p)
		}
	}
	files := []string{s.GenesisFile}
	for _, run := range s.Runs {
		files = append(files, run.GenesisFile)
	}
	for _, p := range files {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("genesis file not found: %s", p)
		}
	}
	return nil
}
