/*
The sync package implements the one-way mirroring algorithm. It makes a
replica directory tree structurally and byte-for-byte identical to a source
directory tree.

Each pass walks both trees level by level. At every level the replica's
current file and subdirectory names are snapshotted into pending sets. Each
source entry that is matched against the replica is removed from the
pending sets, and whatever is left at the end of the level exists only in
the replica and is deleted.

Files are compared by a content digest (see AreEqual), never by size or
modification time alone, so a pass never skips a file whose contents
changed.

No state is kept between passes. Every decision is re-derived from live
directory listings, so the replica heals from any external interference on
the next pass.

Every mutation applied to the replica is described by a ChangeRecord and
handed to a Notifier as soon as the mutation completes.
*/
package sync
