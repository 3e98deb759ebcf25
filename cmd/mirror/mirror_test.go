package mirror

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/pkg/audit"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
)

func TestLoadSettings(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "source")
	require.NoError(t, os.Mkdir(source, 0755))

	settings, err := loadSettings(options{}, []string{
		source, filepath.Join(root, "replica"), filepath.Join(root, "logs"), "15"})
	require.NoError(t, err)
	assert.Equal(t, config.Settings{
		Source:   source,
		Replica:  filepath.Join(root, "replica"),
		LogDir:   filepath.Join(root, "logs"),
		Interval: 15,
	}, settings)

	_, err = loadSettings(options{}, []string{source, source})
	_, isArgErr := err.(config.ArgumentError)
	assert.True(t, isArgErr, "wrong argument counts should be argument errors")

	_, err = loadSettings(options{}, []string{source, source, filepath.Join(root, "logs"), "15"})
	assert.Equal(t, errors.ErrSameDirectory, errors.RootCause(err))

	configPath := filepath.Join(root, "foldersync.yaml")
	require.NoError(t, ioutil.WriteFile(configPath, []byte(
		"version: v1alpha1\nsource: source\nreplica: replica\nlogs: logs\ninterval: 60\n"), 0644))

	settings, err = loadSettings(options{configPath: configPath}, []string{source, filepath.Join(root, "other")})
	require.NoError(t, err)
	assert.Equal(t, config.Settings{
		Version:  "v1alpha1",
		Source:   source,
		Replica:  filepath.Join(root, "other"),
		LogDir:   filepath.Join(root, "logs"),
		Interval: 60,
	}, settings)
}

func TestRunOnce(t *testing.T) {
	root := t.TempDir()
	settings := config.Settings{
		Source:   filepath.Join(root, "source"),
		Replica:  filepath.Join(root, "replica"),
		LogDir:   filepath.Join(root, "logs"),
		Interval: 10,
	}
	require.NoError(t, os.MkdirAll(filepath.Join(settings.Source, "sub"), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(settings.Source, "a.txt"), []byte("a"), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(settings.Source, "sub", "b.txt"), []byte("b"), 0644))

	var out bytes.Buffer
	opts := options{once: true, noColor: true, auditPasses: true}
	require.NoError(t, run(context.Background(), settings, opts, &out))

	for _, path := range []string{"a.txt", filepath.Join("sub", "b.txt")} {
		exp, err := ioutil.ReadFile(filepath.Join(settings.Source, path))
		require.NoError(t, err)
		actual, err := ioutil.ReadFile(filepath.Join(settings.Replica, path))
		require.NoError(t, err)
		assert.Equal(t, exp, actual, path)
	}

	assert.Contains(t, out.String(), "Synchronization started.")
	assert.Contains(t, out.String(), "Copied file a.txt to "+settings.Replica)
	assert.Contains(t, out.String(), "Successful synchronization. Copied 2 files, "+
		"deleted 0 files, created 1 directories, deleted 0 directories.")

	auditBytes, err := ioutil.ReadFile(filepath.Join(settings.LogDir, audit.FileName))
	require.NoError(t, err)
	auditLog := string(auditBytes)
	assert.Contains(t, auditLog, "Log file created on: ")
	assert.Contains(t, auditLog, "Copied file a.txt to "+settings.Replica)
	assert.Contains(t, auditLog, "Copied folder sub to "+settings.Replica)
	assert.Contains(t, auditLog, "Successful synchronization.")
}

func TestRunOnceCanceled(t *testing.T) {
	root := t.TempDir()
	settings := config.Settings{
		Source:   filepath.Join(root, "source"),
		Replica:  filepath.Join(root, "replica"),
		LogDir:   filepath.Join(root, "logs"),
		Interval: 10,
	}
	require.NoError(t, os.Mkdir(settings.Source, 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(settings.Source, "a.txt"), []byte("a"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := run(ctx, settings, options{once: true, noColor: true}, &out)
	assert.Equal(t, context.Canceled, errors.RootCause(err))
	assert.Contains(t, out.String(), "Synchronization was canceled.")

	_, err = os.Stat(filepath.Join(settings.Replica, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunStopsWhenCanceled(t *testing.T) {
	root := t.TempDir()
	settings := config.Settings{
		Source:   filepath.Join(root, "source"),
		Replica:  filepath.Join(root, "replica"),
		LogDir:   filepath.Join(root, "logs"),
		Interval: 10,
	}
	require.NoError(t, os.Mkdir(settings.Source, 0755))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	assert.NoError(t, run(ctx, settings, options{watch: true, noColor: true}, &out))
}

func TestWatchIgnoresAuditLogInSource(t *testing.T) {
	root := t.TempDir()
	settings := config.Settings{
		Source:   filepath.Join(root, "source"),
		Replica:  filepath.Join(root, "replica"),
		LogDir:   filepath.Join(root, "source", "logs"),
		Interval: 60,
	}
	require.NoError(t, os.Mkdir(settings.Source, 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(settings.Source, "a.txt"), []byte("a"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	opts := options{watch: true, noColor: true, auditPasses: true}
	require.NoError(t, run(ctx, settings, opts, &out))

	// Only the initial pass runs: the audit log writes don't count as source
	// changes, and the interval is far longer than the test.
	assert.Equal(t, 1, strings.Count(out.String(), "Started synchronization."))
}
