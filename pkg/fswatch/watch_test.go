package fswatch

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/pkg/errors"
)

func TestGetDirsToWatch(t *testing.T) {
	tests := []struct {
		name     string
		dirs     []string
		files    []string
		root     string
		excluded []string
		expDirs  []string
		expErr   error
	}{
		{
			name: "Nested directories",
			dirs: []string{"/source/docs", "/source/src", "/source/src/app",
				"/source/src/app/controllers"},
			files: []string{"/source/README.md", "/source/src/app/controllers/index.js"},
			root:  "/source",
			expDirs: []string{"/source", "/source/docs", "/source/src", "/source/src/app",
				"/source/src/app/controllers"},
		},
		{
			name: "Excluded subtree",
			dirs: []string{"/source/docs", "/source/logs", "/source/logs/old",
				"/source/logsarchive"},
			files:    []string{"/source/logs/syncLog.txt"},
			root:     "/source",
			excluded: []string{"/source/logs/"},
			expDirs:  []string{"/source", "/source/docs", "/source/logsarchive"},
		},
		{
			name:    "Empty root",
			dirs:    []string{"/source"},
			root:    "/source",
			expDirs: []string{"/source"},
		},
		{
			name:   "Missing root",
			root:   "/source",
			expErr: errors.FileNotFound{Path: "/source"},
		},
		{
			name:   "Root is a file",
			files:  []string{"/source"},
			root:   "/source",
			expErr: errors.NotADirectory{Path: "/source"},
		},
	}

	for _, test := range tests {
		fs = afero.NewMemMapFs()
		for _, dir := range test.dirs {
			assert.NoError(t, fs.MkdirAll(dir, 0755))
		}
		for _, file := range test.files {
			assert.NoError(t, afero.WriteFile(fs, file, []byte("testfile"), 0644))
		}

		dirs, err := getDirsToWatch(test.root, newExclusions(test.excluded))
		assert.Equal(t, test.expErr, err, test.name)

		// Sort for consistency.
		sort.Strings(test.expDirs)
		sort.Strings(dirs)
		assert.Equal(t, test.expDirs, dirs, test.name)
	}
}

func TestExclusionsContains(t *testing.T) {
	ignore := newExclusions([]string{"/source/logs", "", "/tmp/cache/"})

	tests := []struct {
		path string
		exp  bool
	}{
		{"/source/logs", true},
		{"/source/logs/syncLog.txt", true},
		{"/source/logs/old/syncLog.txt", true},
		{"/source/logs/", true},
		{"/tmp/cache/x", true},
		{"/source/logsarchive", false},
		{"/source", false},
		{"/source/a.txt", false},
		{"/", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.exp, ignore.contains(test.path), test.path)
	}

	assert.False(t, newExclusions(nil).contains("/source"))
}

func TestCombineUpdates(t *testing.T) {
	t.Parallel()

	updates := make(chan fsnotify.Event, 1024)
	addEvents := func(num int) {
		for i := 0; i < num; i++ {
			updates <- fsnotify.Event{}
		}
	}

	// Seed with events.
	numUpdates := 100
	addEvents(numUpdates)
	combined := combineUpdates(updates)

	// Assert that the events are being combined.
	numCombined := countEvents(combined)
	assert.True(t, numCombined < numUpdates,
		"expected less combined events (%d) than %d", numCombined, numUpdates)

	// Add more events.
	addEvents(100)
	<-combined
}

func TestWatchNewSubdirectory(t *testing.T) {
	fs = afero.NewOsFs()
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Watch(ctx, root)
	require.NoError(t, err)

	subdir := filepath.Join(root, "sub")
	require.NoError(t, fs.Mkdir(subdir, 0755))
	waitForEvent(t, events)

	// Give the watcher a moment to add the new directory, then drain any
	// events left over from the mkdir.
	time.Sleep(100 * time.Millisecond)
	drain(events)

	require.NoError(t, ioutil.WriteFile(filepath.Join(subdir, "a.txt"), []byte("a"), 0644))
	waitForEvent(t, events)
}

func TestWatchIgnoresExcludedPaths(t *testing.T) {
	fs = afero.NewOsFs()
	root := t.TempDir()
	logDir := filepath.Join(root, "logs")
	require.NoError(t, fs.Mkdir(logDir, 0755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Watch(ctx, root, logDir)
	require.NoError(t, err)

	// Appending to the audit log over and over must not wake anyone up.
	logPath := filepath.Join(logDir, "syncLog.txt")
	for i := 0; i < 10; i++ {
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		require.NoError(t, err)
		_, err = f.WriteString("2019-11-10 12:00:00 - Started synchronization.\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	select {
	case <-events:
		t.Fatal("writing to an excluded directory triggered an event")
	case <-time.After(500 * time.Millisecond):
	}

	// Changes elsewhere in the tree are still reported.
	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644))
	waitForEvent(t, events)
}

func TestForwardEventsClosesOnCancel(t *testing.T) {
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan fsnotify.Event)
	go forwardEvents(ctx, watcher, nil, events)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok, "no events were expected")
	case <-time.After(5 * time.Second):
		t.Fatal("the events channel wasn't closed after cancellation")
	}
}

func waitForEvent(t *testing.T, c <-chan struct{}) {
	select {
	case <-c:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a file event")
	}
}

func drain(c <-chan struct{}) {
	for {
		select {
		case <-c:
		default:
			return
		}
	}
}

func countEvents(c chan struct{}) (n int) {
	// Block until the first event.
	<-c
	n++

	// Count the number of events until there hasn't been any new events in 500
	// milliseconds.
	for {
		select {
		case <-c:
			n++
		case <-time.After(500 * time.Millisecond):
			return n
		}
	}
}
