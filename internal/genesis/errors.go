package genesis

import (
	"errors"
	"fmt"
)

// MalformedError reports a genesis document that does not have the shape the
// loader needs. It is fatal for the whole job: no entity can proceed.
type MalformedError struct {
	// Path is the dotted JSON path that failed, empty for document-level errors.
	Path string

	// Reason describes what was wrong.
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed genesis: %s", e.Reason)
	}
	return fmt.Sprintf("malformed genesis: %s: %s", e.Path, e.Reason)
}

// IsMalformed returns true if err is or wraps a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
