// Package console prints pass events and applied changes for the user
// running foldersync in a terminal.
package console

import (
	"fmt"
	"io"
	"time"

	"github.com/buger/goterm"

	"github.com/sidkik/foldersync/pkg/scheduler"
	"github.com/sidkik/foldersync/pkg/sync"
)

// Settings is what the startup banner describes.
type Settings struct {
	Source   string
	Replica  string
	LogDir   string
	Interval time.Duration
}

// Reporter writes one timestamped line per change and per pass event.
type Reporter struct {
	out   io.Writer
	color bool
}

// New creates a Reporter that writes to `out`. When `color` is false, the
// output contains no terminal escape sequences.
func New(out io.Writer, color bool) *Reporter {
	return &Reporter{out: out, color: color}
}

// Started prints the banner shown before the first pass.
func (r *Reporter) Started(at time.Time, settings Settings) {
	r.printf(at, goterm.BLUE,
		"Synchronization started. Source: %s, Replica: %s, Logs: %s, Interval: %d seconds",
		settings.Source, settings.Replica, settings.LogDir, int(settings.Interval/time.Second))
}

// Notify prints an applied change.
func (r *Reporter) Notify(c sync.ChangeRecord) {
	color := goterm.GREEN
	if c.Kind == sync.FileDeleted || c.Kind == sync.DirectoryDeleted {
		color = goterm.YELLOW
	}
	r.printf(c.Time, color, "%s", c)
}

func (r *Reporter) PassStarted(_ string, at time.Time) {
	r.printf(at, -1, "Started synchronization.")
}

func (r *Reporter) PassFinished(res scheduler.PassResult) {
	switch res.Outcome {
	case scheduler.Succeeded:
		r.printf(res.Finished, goterm.GREEN, "Successful synchronization. %s", res.Summary())
	case scheduler.Canceled:
		r.printf(res.Finished, goterm.YELLOW, "Synchronization was canceled.")
	default:
		r.printf(res.Finished, goterm.RED, "Error: %s. Synchronization was not completed.", res.Err)
	}
}

// printf prints a single line. A negative color means no color.
func (r *Reporter) printf(at time.Time, color int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if r.color && color >= 0 {
		msg = goterm.Color(msg, color)
	}
	fmt.Fprintf(r.out, "%s - %s\n", at.Format(sync.TimestampLayout), msg)
}
