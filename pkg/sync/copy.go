package sync

import (
	"context"
	"io"
	"os"

	"github.com/sidkik/foldersync/pkg/errors"
)

// ownerWritable is added to the permissions of every replica file so that
// later passes can overwrite it.
const ownerWritable os.FileMode = 0200

// contextReader fails the read as soon as ctx is done, so that copying a
// large file can be interrupted.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// copyFile overwrites `dst` with the contents of `src`.
func copyFile(ctx context.Context, src, dst Location, perm os.FileMode) error {
	in, err := src.Fs.Open(src.Path)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer in.Close()

	out, err := dst.Fs.OpenFile(dst.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|ownerWritable)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}

	if _, err := io.Copy(out, contextReader{ctx, in}); err != nil {
		out.Close()
		return errors.WithContext(err, "write")
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return errors.WithContext(err, "flush")
	}
	return out.Close()
}
