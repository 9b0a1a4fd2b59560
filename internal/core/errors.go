package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSwimmerNotFound is returned when a name matches no swimmer.
	ErrSwimmerNotFound = errors.New("swimmer not found")

	// ErrAmbiguousSwimmer is returned when a name matches more than one swimmer.
	ErrAmbiguousSwimmer = errors.New("ambiguous swimmer name")

	// ErrMeetNotFound is returned by Store.FindMeet for unknown meet ids.
	ErrMeetNotFound = errors.New("meet not found")

	// ErrNoDocuments is returned when an import call receives nothing to read.
	ErrNoDocuments = errors.New("no file provided")

	// ErrResultsURLNotConfigured is returned by FetchResults without RESULTS_URL.
	ErrResultsURLNotConfigured = errors.New("results url not configured")

	// ErrUnknownDataset is returned by ParseDataset.
	ErrUnknownDataset = errors.New("unknown dataset")
)

// RecordParseError reports a malformed date, number, time or style in one record.
// Scope is a single record: the dependent write is skipped and the batch continues.
type RecordParseError struct {
	Line  int    // 1-based line or row number, 0 when unknown
	Field string // logical column name
	Value string // offending raw value
	Err   error
}

func (e *RecordParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid %s %q: %v", e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }

// atLine returns a copy of e carrying the given line number.
func (e *RecordParseError) atLine(line int) *RecordParseError {
	c := *e
	c.Line = line
	return &c
}

// IdentityResolutionError reports an unknown or ambiguous swimmer name.
// Scope is a single swimmer block.
type IdentityResolutionError struct {
	Label   string // name label as it appeared in the source
	Matches int
	Err     error // ErrSwimmerNotFound or ErrAmbiguousSwimmer
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("resolve swimmer %q: %v (%d matches)", e.Label, e.Err, e.Matches)
}

func (e *IdentityResolutionError) Unwrap() error { return e.Err }

// DocumentError reports a file that cannot be read or parsed as a whole.
type DocumentError struct {
	File string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.File, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the storage collaborator. It is fatal to the import call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
