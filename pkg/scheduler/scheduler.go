package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/sync"
)

// PassFunc runs a single reconciliation pass.
type PassFunc func(ctx context.Context) ([]sync.ChangeRecord, error)

// Reporter is told when each pass starts and finishes.
type Reporter interface {
	PassStarted(id string, at time.Time)
	PassFinished(res PassResult)
}

// Reporters fans pass events out to several reporters, in order.
type Reporters []Reporter

func (reporters Reporters) PassStarted(id string, at time.Time) {
	for _, r := range reporters {
		r.PassStarted(id, at)
	}
}

func (reporters Reporters) PassFinished(res PassResult) {
	for _, r := range reporters {
		r.PassFinished(res)
	}
}

// Config configures a Scheduler.
type Config struct {
	// Interval is the delay between the end of one pass and the start of
	// the next.
	Interval time.Duration

	Pass PassFunc

	// Reporter is optional.
	Reporter Reporter

	// Trigger, if set, starts the next pass early whenever it receives.
	Trigger <-chan struct{}

	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Scheduler runs reconciliation passes one after another, forever. A failed
// pass is reported, and the next pass runs as usual. Passes never overlap.
type Scheduler struct {
	Config
	log   *logrus.Logger
	newID func() string
}

// New creates a new Scheduler.
func New(log *logrus.Logger, cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		Config: cfg,
		log:    log,
		newID:  func() string { return uuid.New().String() },
	}
}

// Run runs a pass immediately, and then again every Interval after the
// previous pass finished, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for ctx.Err() == nil {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
		case <-s.Clock.After(s.Interval):
		case <-s.Trigger:
			s.log.Debug("Source changed. Starting the next pass early.")
		}
	}
}

// RunOnce runs and reports a single pass.
func (s *Scheduler) RunOnce(ctx context.Context) PassResult {
	res := PassResult{ID: s.newID(), Started: s.Clock.Now()}
	passLog := s.log.WithField("pass", res.ID)
	passLog.Debug("Starting synchronization pass")
	if s.Reporter != nil {
		s.Reporter.PassStarted(res.ID, res.Started)
	}

	res.Changes, res.Err = runPass(ctx, s.Pass)
	res.Finished = s.Clock.Now()
	res.Outcome, res.ErrorKind = classify(res.Err)

	passLog = passLog.WithFields(logrus.Fields{
		"changes":  len(res.Changes),
		"duration": res.Finished.Sub(res.Started).String(),
	})
	switch res.Outcome {
	case Succeeded:
		passLog.Debug(res.Summary())
	case Canceled:
		passLog.Debug("Synchronization pass canceled")
	default:
		passLog.WithError(res.Err).WithField("kind", res.ErrorKind).
			Debug("Synchronization pass failed")
	}

	if s.Reporter != nil {
		s.Reporter.PassFinished(res)
	}
	return res
}

// runPass converts a panic in `pass` into an error, so that one bad pass
// can't take down the scheduler.
func runPass(ctx context.Context, pass PassFunc) (changes []sync.ChangeRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = PanicError{Value: p}
		}
	}()
	return pass(ctx)
}
