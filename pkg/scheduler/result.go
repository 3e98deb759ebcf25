package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/sync"
)

// Outcome is how a pass ended.
type Outcome string

const (
	// Succeeded means the replica matched the source when the pass ended.
	Succeeded Outcome = "succeeded"

	// Failed means the pass was aborted by an error. The next pass retries.
	Failed Outcome = "failed"

	// Canceled means the pass was interrupted because the scheduler was
	// stopped.
	Canceled Outcome = "canceled"
)

// ErrorKind classifies the error that ended a failed pass.
type ErrorKind string

const (
	NoError     ErrorKind = ""
	NotExist    ErrorKind = "not-exist"
	Permission  ErrorKind = "permission"
	IO          ErrorKind = "io"
	Interrupted ErrorKind = "canceled"
	Panic       ErrorKind = "panic"
)

// PassResult describes a single reconciliation pass.
type PassResult struct {
	// ID identifies the pass in logs.
	ID string

	Started  time.Time
	Finished time.Time

	// Changes are the changes applied during the pass. For a failed pass,
	// these are the changes applied before the failure.
	Changes []sync.ChangeRecord

	Outcome   Outcome
	ErrorKind ErrorKind
	Err       error
}

// Count returns the number of changes of the given kind.
func (res PassResult) Count(kind sync.ChangeKind) int {
	var n int
	for _, c := range res.Changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Summary returns a short human readable description of the applied
// changes.
func (res PassResult) Summary() string {
	return fmt.Sprintf("Copied %d files, deleted %d files, created %d directories, deleted %d directories.",
		res.Count(sync.FileCopied), res.Count(sync.FileDeleted),
		res.Count(sync.DirectoryCreated), res.Count(sync.DirectoryDeleted))
}

// PanicError is the error recorded for a pass that panicked.
type PanicError struct {
	Value interface{}
}

func (err PanicError) Error() string {
	return fmt.Sprintf("panic: %v", err.Value)
}

func classify(err error) (Outcome, ErrorKind) {
	if err == nil {
		return Succeeded, NoError
	}

	var panicErr PanicError
	var notFound errors.FileNotFound
	cause := errors.RootCause(err)
	switch {
	case errors.As(err, &panicErr):
		return Failed, Panic
	case cause == context.Canceled || cause == context.DeadlineExceeded:
		return Canceled, Interrupted
	case errors.As(err, &notFound) || os.IsNotExist(cause):
		return Failed, NotExist
	case os.IsPermission(cause):
		return Failed, Permission
	default:
		return Failed, IO
	}
}
