package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch reports a transport failure: unreachable source, non-2xx status or unreadable file.
	ErrFetch = errors.New("fetch failed")
	// ErrParse reports a body that is not a JSON array of records.
	ErrParse = errors.New("parse failed")
)

// RecordError describes one malformed input record that was skipped.
type RecordError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}
