package sync

import (
	"fmt"
	"time"
)

// TimestampLayout is the layout used when changes are shown to users.
const TimestampLayout = "2006-01-02 15:04:05"

// ChangeKind identifies the type of mutation applied to the replica.
type ChangeKind string

const (
	// FileCopied means a source file was copied over a missing or
	// outdated replica file.
	FileCopied ChangeKind = "file-copied"

	// FileDeleted means a replica file without a source counterpart was
	// removed.
	FileDeleted ChangeKind = "file-deleted"

	// DirectoryCreated means a replica subdirectory was created to mirror a
	// source subdirectory.
	DirectoryCreated ChangeKind = "directory-created"

	// DirectoryDeleted means a replica subdirectory, and everything in it,
	// was removed.
	DirectoryDeleted ChangeKind = "directory-deleted"
)

// ChangeRecord describes a single mutation applied to the replica tree.
type ChangeRecord struct {
	Kind ChangeKind

	// Name is the base name of the affected entry.
	Name string

	// ReplicaDir is the replica directory that contains the entry.
	ReplicaDir string

	// Time is when the mutation completed.
	Time time.Time
}

// String returns a human readable description of the change, without the
// timestamp.
func (c ChangeRecord) String() string {
	switch c.Kind {
	case FileCopied:
		return fmt.Sprintf("Copied file %s to %s", c.Name, c.ReplicaDir)
	case FileDeleted:
		return fmt.Sprintf("Deleted file %s in %s", c.Name, c.ReplicaDir)
	case DirectoryCreated:
		return fmt.Sprintf("Copied folder %s to %s", c.Name, c.ReplicaDir)
	case DirectoryDeleted:
		return fmt.Sprintf("Deleted folder %s in %s", c.Name, c.ReplicaDir)
	default:
		return fmt.Sprintf("Unknown change %q to %s in %s", c.Kind, c.Name, c.ReplicaDir)
	}
}

// A Notifier receives every change applied during a pass. Notify is called
// synchronously, right after the change completes, so implementations
// should not block for long.
type Notifier interface {
	Notify(ChangeRecord)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ChangeRecord)

// Notify calls f(c).
func (f NotifierFunc) Notify(c ChangeRecord) {
	f(c)
}

// Notifiers fans a change out to several notifiers, in order.
type Notifiers []Notifier

// Notify forwards `c` to every notifier.
func (notifiers Notifiers) Notify(c ChangeRecord) {
	for _, n := range notifiers {
		if n != nil {
			n.Notify(c)
		}
	}
}
