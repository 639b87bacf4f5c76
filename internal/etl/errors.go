package etl

import (
	"errors"
	"fmt"
)

// Every error is fatal to the run. These classify the cause.
var (
	// ErrSourceConnection means the relational source could not be reached
	// or refused the credentials.
	ErrSourceConnection = errors.New("source connection failed")

	// ErrQuery means the extraction query failed.
	ErrQuery = errors.New("source query failed")

	// ErrArtifactIO means an intermediate file was missing, unreadable,
	// malformed or unwritable.
	ErrArtifactIO = errors.New("artifact i/o failed")

	// ErrImputation means a column's fill value is undefined and the
	// configured policy forbids a fallback.
	ErrImputation = errors.New("imputation failed")

	// ErrIndexConnection means the search index could not be reached.
	ErrIndexConnection = errors.New("index connection failed")

	// ErrBulkWrite means the index rejected at least one document.
	ErrBulkWrite = errors.New("bulk write rejected")
)

// StageError records which stage aborted the run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// BulkError is returned when the index rejected part or all of a batch.
type BulkError struct {
	Submitted int
	Rejected  int
	Reason    string
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%s: %d of %d documents rejected: %s", ErrBulkWrite, e.Rejected, e.Submitted, e.Reason)
}

func (e *BulkError) Unwrap() error {
	return ErrBulkWrite
}
