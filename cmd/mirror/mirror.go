package mirror

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/pkg/audit"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/console"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/fswatch"
	"github.com/sidkik/foldersync/pkg/scheduler"
	"github.com/sidkik/foldersync/pkg/sync"
)

type options struct {
	configPath  string
	once        bool
	watch       bool
	noColor     bool
	auditPasses bool
}

// New creates the command that mirrors the source directory onto the
// replica.
func New() *cobra.Command {
	var opts options
	cobraCmd := &cobra.Command{
		Use:   "foldersync <source> <replica> <logs> <interval-seconds>",
		Short: "Keep a replica directory identical to a source directory",
		Long: `Periodically make the replica directory an exact copy of the source directory.

Files that are missing from the replica, or whose contents differ, are copied
from the source. Files and directories that only exist in the replica are
deleted. Every change is printed and appended to syncLog.txt in the logs
directory.

When --config is given, the positional arguments are optional and override
the values in the file.`,
		Args: cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			settings, err := loadSettings(opts, args)
			if err != nil {
				if _, ok := err.(config.ArgumentError); ok {
					cmd.Usage()
				}
				util.HandleFatalError(err)
				return
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, settings, opts, os.Stdout); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cobraCmd.Flags().StringVarP(&opts.configPath, "config", "c", "",
		"YAML file with the source, replica, logs and interval")
	cobraCmd.Flags().BoolVar(&opts.once, "once", false,
		"Run a single pass and exit. The exit code is non-zero if the pass failed")
	cobraCmd.Flags().BoolVar(&opts.watch, "watch", false,
		"Also start a pass as soon as the source directory changes")
	cobraCmd.Flags().BoolVar(&opts.noColor, "no-color", false,
		"Don't color the console output")
	cobraCmd.Flags().BoolVar(&opts.auditPasses, "audit-passes", true,
		"Record the start and outcome of every pass in the audit log")
	return cobraCmd
}

func loadSettings(opts options, args []string) (config.Settings, error) {
	var settings config.Settings
	if opts.configPath != "" {
		var err error
		settings, err = config.ParseFile(opts.configPath)
		if err != nil {
			return config.Settings{}, errors.WithContext(err, "parse config")
		}
	}

	settings, err := settings.WithArgs(args, opts.configPath != "")
	if err != nil {
		return config.Settings{}, err
	}

	if err := settings.Normalize(); err != nil {
		return config.Settings{}, errors.WithContext(err, "normalize paths")
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, errors.WithContext(err, "validate")
	}
	return settings, nil
}

func run(ctx context.Context, settings config.Settings, opts options, out io.Writer) error {
	if err := settings.PrepareDirs(); err != nil {
		return errors.WithContext(err, "prepare directories")
	}

	logger := log.StandardLogger()
	clock := clockwork.NewRealClock()
	osFs := afero.NewOsFs()

	reporter := console.New(out, !opts.noColor)
	auditLog := audit.New(logger, osFs, settings.LogDir, clock,
		audit.Options{RecordPasses: opts.auditPasses})

	// The source is only ever read.
	reconciler := sync.NewReconciler(logger, afero.NewReadOnlyFs(osFs), osFs,
		sync.Notifiers{reporter, auditLog}, clock)

	schedCfg := scheduler.Config{
		Interval: settings.IntervalDuration(),
		Pass: func(ctx context.Context) ([]sync.ChangeRecord, error) {
			return reconciler.Reconcile(ctx, settings.Source, settings.Replica)
		},
		Reporter: scheduler.Reporters{reporter, auditLog},
		Clock:    clock,
	}

	if opts.watch && !opts.once {
		// The audit log may live inside the source. Writing it must not
		// start another pass.
		trigger, err := fswatch.Watch(ctx, settings.Source, settings.LogDir)
		if err != nil {
			log.WithError(err).Warn("Failed to watch the source directory. " +
				"Changes will only be picked up on the interval.")
		} else {
			schedCfg.Trigger = trigger
		}
	}

	reporter.Started(clock.Now(), console.Settings{
		Source:   settings.Source,
		Replica:  settings.Replica,
		LogDir:   settings.LogDir,
		Interval: settings.IntervalDuration(),
	})
	log.WithField("auditLog", auditLog.Path()).Debug("Starting synchronization")

	s := scheduler.New(logger, schedCfg)
	if opts.once {
		res := s.RunOnce(ctx)
		if res.Outcome != scheduler.Succeeded {
			return errors.WithContext(res.Err, "synchronize")
		}
		return nil
	}

	s.Run(ctx)
	return nil
}
