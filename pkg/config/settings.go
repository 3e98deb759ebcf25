package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/sidkik/foldersync/pkg/errors"
)

const (
	// InitialVersion is the first version of the foldersync config file.
	// Config files that do not specify a version default to this version.
	InitialVersion = "v1alpha1"

	// SupportedVersion is the config file version understood by this
	// binary.
	SupportedVersion = "v1alpha1"

	// dirPerm is the mode of the replica and log directories when they're
	// created at startup.
	dirPerm os.FileMode = 0755
)

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// Settings are the parameters of a foldersync run. They come from the
// positional arguments, optionally layered on top of a config file.
type Settings struct {
	Version string `json:"version,omitempty"`
	Source  string `json:"source,omitempty"`
	Replica string `json:"replica,omitempty"`
	LogDir  string `json:"logs,omitempty"`

	// Interval is the number of seconds between passes.
	Interval int `json:"interval,omitempty"`
}

// ArgumentError is returned for malformed command line arguments. The
// command's usage should be shown along with it.
type ArgumentError struct {
	msg string
}

func (err ArgumentError) Error() string {
	return err.msg
}

// WithArgs returns a copy of `s` with the positional arguments applied, in
// the order source, replica, logs, interval. Without a config file all four
// are required.
func (s Settings) WithArgs(args []string, haveFile bool) (Settings, error) {
	if len(args) > 4 || (!haveFile && len(args) != 4) {
		return Settings{}, ArgumentError{fmt.Sprintf(
			"expected 4 arguments (source, replica, logs, interval), got %d", len(args))}
	}

	fields := []*string{&s.Source, &s.Replica, &s.LogDir}
	for i, arg := range args {
		if i < len(fields) {
			*fields[i] = arg
			continue
		}

		interval, err := strconv.Atoi(arg)
		if err != nil || interval <= 0 {
			return Settings{}, ArgumentError{fmt.Sprintf(
				"interval must be a positive number of seconds, got %q", arg)}
		}
		s.Interval = interval
	}
	return s, nil
}

// Normalize expands `~` and converts every path to a clean absolute path.
func (s *Settings) Normalize() error {
	for _, p := range []*string{&s.Source, &s.Replica, &s.LogDir} {
		if *p == "" {
			continue
		}

		expanded, err := homedirExpand(*p)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("expand %q", *p))
		}

		abs, err := filepath.Abs(expanded)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("resolve %q", *p))
		}
		*p = abs
	}
	return nil
}

// Validate checks that the settings describe a run that can start. It
// expects normalized paths.
func (s Settings) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"source", s.Source},
		{"replica", s.Replica},
		{"logs", s.LogDir},
	}
	for _, field := range required {
		if field.value == "" {
			return errors.MissingFieldError{Field: field.name}
		}
	}

	if s.Interval <= 0 {
		return errors.NewFriendlyError(
			"The interval must be a positive number of seconds, got %d.", s.Interval)
	}

	fi, err := fs.Stat(s.Source)
	switch {
	case os.IsNotExist(err):
		return errors.FileNotFound{Path: s.Source}
	case err != nil:
		return errors.WithContext(err, "stat source")
	case !fi.IsDir():
		return errors.NotADirectory{Path: s.Source}
	}

	if fi, err := fs.Stat(s.Replica); err == nil && !fi.IsDir() {
		return errors.NotADirectory{Path: s.Replica}
	}

	if s.Source == s.Replica {
		return errors.ErrSameDirectory
	}

	if isWithin(s.Source, s.Replica) || isWithin(s.Replica, s.Source) {
		return errors.NewFriendlyError(
			"The source (%q) and the replica (%q) can't contain each other.",
			s.Source, s.Replica)
	}

	// Anything inside the replica that isn't in the source is deleted on
	// every pass.
	if s.LogDir == s.Replica || isWithin(s.Replica, s.LogDir) {
		return errors.NewFriendlyError(
			"The log directory (%q) can't be inside the replica (%q).",
			s.LogDir, s.Replica)
	}
	return nil
}

// PrepareDirs creates the replica and log directories if they don't exist
// yet.
func (s Settings) PrepareDirs() error {
	for _, dir := range []string{s.Replica, s.LogDir} {
		if err := fs.MkdirAll(dir, dirPerm); err != nil {
			return errors.WithContext(err, fmt.Sprintf("create %q", dir))
		}
	}
	return nil
}

// IntervalDuration returns the time between passes.
func (s Settings) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// isWithin returns whether `path` is strictly below `dir`.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
