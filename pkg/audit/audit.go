// Package audit keeps a persistent, human readable record of every change
// applied to the replica.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/scheduler"
	"github.com/sidkik/foldersync/pkg/sync"
)

// FileName is the name of the audit log within the log directory.
const FileName = "syncLog.txt"

const headerPrefix = "Log file created on: "

// Options configures what is written to the audit log in addition to the
// applied changes.
type Options struct {
	// RecordPasses enables lines for when a pass starts and how it ends.
	RecordPasses bool
}

// Log appends audit lines to a file. It implements both sync.Notifier and
// scheduler.Reporter.
//
// Failing to write to the log never fails the pass. The failure is logged as
// a warning instead, and the next line is attempted as usual.
type Log struct {
	fs    afero.Fs
	path  string
	clock clockwork.Clock
	log   *logrus.Logger
	opts  Options
}

// New creates a Log that writes to `FileName` within `dir`. The file is
// created lazily, on the first line.
func New(log *logrus.Logger, fs afero.Fs, dir string, clock clockwork.Clock, opts Options) *Log {
	return &Log{
		fs:    fs,
		path:  filepath.Join(dir, FileName),
		clock: clock,
		log:   log,
		opts:  opts,
	}
}

// Path returns the path of the audit file.
func (l *Log) Path() string {
	return l.path
}

// Notify records an applied change.
func (l *Log) Notify(c sync.ChangeRecord) {
	l.write(c.Time, c.String())
}

// PassStarted records the start of a pass if pass recording is enabled.
func (l *Log) PassStarted(id string, at time.Time) {
	if !l.opts.RecordPasses {
		return
	}
	l.write(at, fmt.Sprintf("Started synchronization (pass %s).", id))
}

// PassFinished records how a pass ended if pass recording is enabled.
func (l *Log) PassFinished(res scheduler.PassResult) {
	if !l.opts.RecordPasses {
		return
	}

	var msg string
	switch res.Outcome {
	case scheduler.Succeeded:
		msg = "Successful synchronization. " + res.Summary()
	case scheduler.Canceled:
		msg = "Synchronization was canceled."
	default:
		msg = fmt.Sprintf("Error (%s): %s. Synchronization was not completed.",
			res.ErrorKind, res.Err)
	}
	l.write(res.Finished, msg)
}

func (l *Log) write(at time.Time, msg string) {
	if err := l.append(at, msg); err != nil {
		l.log.WithError(err).WithField("path", l.path).
			Warn("Failed to write to the audit log")
	}
}

func (l *Log) append(at time.Time, msg string) (err error) {
	exists, err := afero.Exists(l.fs, l.path)
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	f, err := l.fs.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.WithContext(closeErr, "close")
		}
	}()

	var out string
	if !exists {
		out = headerPrefix + l.clock.Now().Format(sync.TimestampLayout) + "\n"
	}
	out += fmt.Sprintf("%s - %s\n", at.Format(sync.TimestampLayout), msg)

	if _, err := f.WriteString(out); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}
