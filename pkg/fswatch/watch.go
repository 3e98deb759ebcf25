package fswatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Watch watches the directory tree rooted at `root`. It sends an event on the
// returned channel whenever something within the tree changes. Bursts of
// changes are combined into a single event.
//
// Changes at or below any of the `excluded` paths are ignored. Files that
// foldersync writes itself, such as the audit log, must be excluded, or every
// pass would trigger the next one.
//
// The channel is never closed. Watching stops when ctx is done.
func Watch(ctx context.Context, root string, excluded ...string) (<-chan struct{}, error) {
	ignore := newExclusions(excluded)
	dirs, err := getDirsToWatch(root, ignore)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", dir))
		}
	}

	events := make(chan fsnotify.Event, 16)
	go forwardEvents(ctx, watcher, ignore, events)
	return combineUpdates(events), nil
}

// forwardEvents passes the watcher's events to `events`. Because fsnotify
// doesn't watch directories recursively, directories created after the
// watch started are added as they show up.
func forwardEvents(ctx context.Context, watcher *fsnotify.Watcher, ignore exclusions,
	events chan<- fsnotify.Event) {
	defer close(events)
	defer func() {
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("File watcher error")
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if ignore.contains(event.Name) {
				continue
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				addNewDirs(watcher, ignore, event.Name)
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func addNewDirs(watcher *fsnotify.Watcher, ignore exclusions, path string) {
	fi, err := fs.Stat(path)
	if err != nil || !fi.IsDir() {
		return
	}

	dirs, err := getDirsToWatch(path, ignore)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("Failed to list new directory")
		return
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.WithError(err).WithField("path", dir).Warn("Failed to watch new directory")
		}
	}
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getDirsToWatch returns `root` and every directory below it, except for the
// excluded ones and their subdirectories.
func getDirsToWatch(root string, ignore exclusions) (dirs []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, errors.NotADirectory{Path: root}
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if !fi.IsDir() {
			return nil
		}

		if ignore.contains(path) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// exclusions is a set of cleaned paths whose subtrees are ignored.
type exclusions []string

func newExclusions(paths []string) exclusions {
	var ignore exclusions
	for _, path := range paths {
		if path != "" {
			ignore = append(ignore, filepath.Clean(path))
		}
	}
	return ignore
}

// contains returns whether `path` is one of the excluded paths, or below one.
func (ignore exclusions) contains(path string) bool {
	path = filepath.Clean(path)
	for _, excluded := range ignore {
		if path == excluded ||
			strings.HasPrefix(path, excluded+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
