package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked out for unit testing.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandleFatalError handles errors that are severe enough to terminate the
// program. The user sees the friendly message, if there is one, and the full
// error is logged at debug level.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintf(stderr, "Error: %s\n", errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic reports a panic in the main goroutine and exits, rather than
// dumping the stack on the user. It must be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Debug("Panic")
		HandleFatalError(fmt.Errorf("unexpected panic: %v", r))
	}
}
