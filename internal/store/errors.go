package store

import (
	"errors"
	"fmt"
	"regexp"
)

// DuplicateKeyError reports a primary key that already existed when a bulk
// batch was written. After reconciliation this only happens when another
// writer raced the load or the document repeats a key within one batch.
type DuplicateKeyError struct {
	// Table is the target table name.
	Table string

	// Key is the offending primary key, empty when the database did not say.
	Key string

	// Err is the driver error.
	Err error
}

func (e *DuplicateKeyError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("duplicate primary key in %s", e.Table)
	}
	return fmt.Sprintf("duplicate primary key %q in %s", e.Key, e.Table)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// IsDuplicateKey returns true if err is or wraps a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var de *DuplicateKeyError
	return errors.As(err, &de)
}

// detailPattern matches Postgres unique-violation details:
//
//	Key (id)=(addr123) already exists.
var detailPattern = regexp.MustCompile(`^Key \((.+?)\)=\((.*)\) already exists\.?$`)

// keyFromDetail extracts the key value from a unique-violation detail.
// Used for reporting only; returns "" for any other shape.
func keyFromDetail(detail string) string {
	m := detailPattern.FindStringSubmatch(detail)
	if m == nil {
		return ""
	}
	return m[2]
}

// classify turns a driver error into a DuplicateKeyError when it is one.
func classify(d Dialect, table string, err error) error {
	if err == nil || IsDuplicateKey(err) {
		return err
	}
	if key, ok := d.duplicateKey(err); ok {
		return &DuplicateKeyError{Table: table, Key: key, Err: err}
	}
	return err
}
