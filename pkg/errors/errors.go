// Package errors provides helpers for annotating errors with the operation
// that failed, and for recovering the underlying cause.
package errors

import (
	goerrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return goerrors.New(msg)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goerrors.As(err, target)
}

type contextError struct {
	context string
	err     error
}

// WithContext annotates `err` with a short description of what was being
// attempted when it occurred. It returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, err: err}
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// RootCause strips all context added by WithContext and returns the
// original error.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// FriendlyError is an error whose message is meant to be shown directly to
// the user, without any further context.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError. The arguments are interpreted
// as by fmt.Sprintf.
func NewFriendlyError(template string, args ...interface{}) error {
	return FriendlyError{msg: fmt.Sprintf(template, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message that should be shown to the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// GetPrintableMessage returns the message that should be shown to the user
// for `err`. If any error in the chain is friendly, its message is used
// as-is. Otherwise the full error chain is returned.
func GetPrintableMessage(err error) string {
	var friendly interface{ FriendlyMessage() string }
	if goerrors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
