package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// replicaDirPerm is the mode of directories created in the replica.
const replicaDirPerm os.FileMode = 0755

// Reconciler makes a replica directory tree match a source directory tree.
// It reads the source only through `source`, and writes only through
// `replica`.
type Reconciler struct {
	source   afero.Fs
	replica  afero.Fs
	notifier Notifier
	clock    clockwork.Clock
	log      *logrus.Logger
}

// NewReconciler creates a Reconciler. `notifier` may be nil, in which case
// changes are only returned from Reconcile.
func NewReconciler(log *logrus.Logger, source, replica afero.Fs,
	notifier Notifier, clock clockwork.Clock) *Reconciler {
	return &Reconciler{
		source:   source,
		replica:  replica,
		notifier: notifier,
		clock:    clock,
		log:      log,
	}
}

// Reconcile runs a single pass that makes `replicaDir` mirror `sourceDir`.
//
// Each change is handed to the notifier as soon as it's applied. The
// returned slice contains the same changes, in order. If the pass fails, the
// changes applied before the failure are still returned, and are not rolled
// back.
//
// `sourceDir` must be an existing directory. `replicaDir` must already
// exist; Reconcile only creates directories below it.
func (r *Reconciler) Reconcile(ctx context.Context, sourceDir, replicaDir string) ([]ChangeRecord, error) {
	if err := r.checkRoots(sourceDir, replicaDir); err != nil {
		return nil, err
	}

	p := &pass{Reconciler: r, ctx: ctx}
	err := p.reconcileDir(sourceDir, replicaDir)
	return p.changes, err
}

func (r *Reconciler) checkRoots(sourceDir, replicaDir string) error {
	roots := []struct {
		fs   afero.Fs
		path string
		desc string
	}{
		{r.source, sourceDir, "source"},
		{r.replica, replicaDir, "replica"},
	}
	for _, root := range roots {
		fi, err := root.fs.Stat(root.path)
		if err != nil {
			if os.IsNotExist(err) {
				err = errors.FileNotFound{Path: root.path}
			}
			return errors.WithContext(err, fmt.Sprintf("stat %s root", root.desc))
		}

		if !fi.IsDir() {
			return errors.WithContext(errors.NotADirectory{Path: root.path},
				fmt.Sprintf("check %s root", root.desc))
		}
	}
	return nil
}

// pass holds the state of a single call to Reconcile.
type pass struct {
	*Reconciler
	ctx     context.Context
	changes []ChangeRecord
}

// level is the working state for reconciling one directory. Every recursive
// call owns its own level.
type level struct {
	sourceDir  string
	replicaDir string

	// pendingFiles and pendingDirs start as the replica's entries at this
	// level. Entries are removed once they're matched with a source entry,
	// and whatever remains at the end of the level is deleted.
	pendingFiles map[string]os.FileInfo
	pendingDirs  map[string]os.FileInfo
}

func (p *pass) record(kind ChangeKind, name, replicaDir string) {
	change := ChangeRecord{
		Kind:       kind,
		Name:       name,
		ReplicaDir: replicaDir,
		Time:       p.clock.Now(),
	}
	p.changes = append(p.changes, change)
	if p.notifier != nil {
		p.notifier.Notify(change)
	}
}

func (p *pass) reconcileDir(sourceDir, replicaDir string) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	sourceEntries, err := afero.ReadDir(p.source, sourceDir)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("list source %q", sourceDir))
	}

	replicaEntries, err := afero.ReadDir(p.replica, replicaDir)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("list replica %q", replicaDir))
	}

	lvl := level{
		sourceDir:    sourceDir,
		replicaDir:   replicaDir,
		pendingFiles: map[string]os.FileInfo{},
		pendingDirs:  map[string]os.FileInfo{},
	}
	for _, fi := range replicaEntries {
		if fi.IsDir() {
			lvl.pendingDirs[fi.Name()] = fi
		} else {
			lvl.pendingFiles[fi.Name()] = fi
		}
	}

	var sourceFiles, sourceDirs []os.FileInfo
	for _, fi := range sourceEntries {
		switch {
		case fi.IsDir():
			sourceDirs = append(sourceDirs, fi)
		case fi.Mode().IsRegular():
			sourceFiles = append(sourceFiles, fi)
		default:
			p.log.WithFields(logrus.Fields{
				"path": filepath.Join(sourceDir, fi.Name()),
				"mode": fi.Mode().String(),
			}).Warn("Skipping source entry that is neither a regular file nor a directory")
		}
	}

	for _, fi := range sourceFiles {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		if err := p.syncFile(&lvl, fi); err != nil {
			return err
		}
		delete(lvl.pendingFiles, fi.Name())
	}

	for _, name := range sortedNames(lvl.pendingFiles) {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(replicaDir, name)
		if err := p.replica.Remove(path); err != nil {
			return errors.WithContext(err, fmt.Sprintf("delete file %q", path))
		}
		p.record(FileDeleted, name, replicaDir)
	}

	for _, fi := range sourceDirs {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		name := fi.Name()
		sourceSubdir := filepath.Join(sourceDir, name)
		replicaSubdir := filepath.Join(replicaDir, name)
		if _, ok := lvl.pendingDirs[name]; !ok {
			if err := p.replica.Mkdir(replicaSubdir, replicaDirPerm); err != nil {
				return errors.WithContext(err, fmt.Sprintf("create directory %q", replicaSubdir))
			}
			p.record(DirectoryCreated, name, replicaDir)
		}

		if err := p.reconcileDir(sourceSubdir, replicaSubdir); err != nil {
			return err
		}
		delete(lvl.pendingDirs, name)
	}

	for _, name := range sortedNames(lvl.pendingDirs) {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		if err := p.deleteDir(replicaDir, name); err != nil {
			return err
		}
	}
	return nil
}

// syncFile copies a single source file into the replica, unless the replica
// already holds an identical copy.
func (p *pass) syncFile(lvl *level, sourceInfo os.FileInfo) error {
	name := sourceInfo.Name()
	src := Location{Fs: p.source, Path: filepath.Join(lvl.sourceDir, name)}
	dst := Location{Fs: p.replica, Path: filepath.Join(lvl.replicaDir, name)}

	// The entry used to be a directory. It has to go before the file can be
	// written in its place.
	if _, ok := lvl.pendingDirs[name]; ok {
		if err := p.deleteDir(lvl.replicaDir, name); err != nil {
			return err
		}
		delete(lvl.pendingDirs, name)
	}

	needsCopy := true
	if replicaInfo, ok := lvl.pendingFiles[name]; ok {
		if replicaInfo.Mode().IsRegular() {
			equal, err := AreEqual(src, dst)
			if err != nil {
				return errors.WithContext(err, fmt.Sprintf("compare %q", src.Path))
			}
			needsCopy = !equal
		} else {
			// Writing through a symlink would modify its target, which may
			// live outside the replica.
			if err := p.replica.Remove(dst.Path); err != nil {
				return errors.WithContext(err, fmt.Sprintf("delete %q", dst.Path))
			}
		}
	}

	if !needsCopy {
		return nil
	}

	if err := copyFile(p.ctx, src, dst, sourceInfo.Mode().Perm()); err != nil {
		return errors.WithContext(err, fmt.Sprintf("copy %q", src.Path))
	}
	p.record(FileCopied, name, lvl.replicaDir)
	return nil
}

func (p *pass) deleteDir(replicaDir, name string) error {
	path := filepath.Join(replicaDir, name)
	if err := p.replica.RemoveAll(path); err != nil {
		return errors.WithContext(err, fmt.Sprintf("delete directory %q", path))
	}
	p.record(DirectoryDeleted, name, replicaDir)
	return nil
}

func sortedNames(entries map[string]os.FileInfo) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
