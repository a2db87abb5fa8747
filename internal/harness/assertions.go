package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/genesis/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Table    string   // Table the assertion ran against
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Rows     []string // Table content for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s on %s\n", e.Type, e.Table)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nTable content:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, row)
		}
	}
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the dumped tables.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		dump, ok := result.Tables[a.Table]
		if !ok {
			if a.Type == AssertNoRow || (a.Type == AssertRowCount && a.Count == 0) {
				continue
			}
			errors = append(errors, fmt.Sprintf("assertion[%d]: table %q does not exist", i, a.Table))
			continue
		}

		var err error
		switch a.Type {
		case AssertRowCount:
			err = assertRowCount(dump, a)
		case AssertRow:
			err = assertRow(dump, a)
		case AssertNoRow:
			err = assertNoRow(dump, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func assertRowCount(dump TableDump, a Assertion) error {
	if len(dump.Rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Table:    a.Table,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", len(dump.Rows)),
		Rows:     renderRows(dump),
	}
}

func assertRow(dump TableDump, a Assertion) error {
	row, ok := findRow(dump, a.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertRow,
			Table:    a.Table,
			Expected: fmt.Sprintf("row with key %q", a.Key),
			Actual:   "not found",
			Rows:     renderRows(dump),
		}
	}

	for _, col := range sortedKeys(a.Expect) {
		idx := slices.Index(dump.Columns, col)
		if idx < 0 {
			return fmt.Errorf("assertion on %s: unknown column %q", a.Table, col)
		}
		if !valueMatches(row[idx], a.Expect[col]) {
			return &AssertionError{
				Type:     AssertRow,
				Table:    a.Table,
				Expected: fmt.Sprintf("%s = %v for key %q", col, describeExpected(a.Expect[col]), a.Key),
				Actual:   fmt.Sprintf("%s = %s", col, row[idx]),
				Rows:     []string{renderRow(row)},
			}
		}
	}
	return nil
}

func assertNoRow(dump TableDump, a Assertion) error {
	if row, ok := findRow(dump, a.Key); ok {
		return &AssertionError{
			Type:     AssertNoRow,
			Table:    a.Table,
			Expected: fmt.Sprintf("no row with key %q", a.Key),
			Actual:   "found " + renderRow(row),
		}
	}
	return nil
}

// findRow looks up a row by its key column, always the first column.
func findRow(dump TableDump, key string) (ir.Row, bool) {
	key = ir.NormalizeKey(key)
	for _, row := range dump.Rows {
		if len(row) > 0 && row[0].Valid && row[0].Str == key {
			return row, true
		}
	}
	return nil, false
}

// valueMatches compares a stored value with a YAML scalar; nil matches NULL.
func valueMatches(actual ir.Value, expected any) bool {
	if expected == nil {
		return !actual.Valid
	}
	s, err := ir.Stringify(expected)
	if err != nil {
		return false
	}
	return actual.Valid && actual.Str == s
}

func describeExpected(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func renderRows(dump TableDump) []string {
	out := make([]string, len(dump.Rows))
	for i, row := range dump.Rows {
		out[i] = renderRow(row)
	}
	return out
}

func renderRow(row ir.Row) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\t")
}
