package sync

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"

	"github.com/sidkik/foldersync/pkg/errors"
)

// A Location is a path on a particular filesystem. The source and the
// replica are accessed through different filesystems so that the source can
// be mounted read-only.
type Location struct {
	Fs   afero.Fs
	Path string
}

func (loc Location) String() string {
	return loc.Path
}

// HashFile returns the BLAKE2b-256 digest of the file's contents, base64
// encoded. The file is streamed, so memory use doesn't depend on its size.
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", errors.WithContext(err, "create hasher")
	}

	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}
	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// AreEqual returns whether the two files have identical contents.
// Files of different sizes are unequal without being read. Otherwise both
// files are hashed and their digests compared.
func AreEqual(a, b Location) (bool, error) {
	aInfo, err := a.Fs.Stat(a.Path)
	if err != nil {
		return false, errors.WithContext(err, fmt.Sprintf("stat %q", a.Path))
	}

	bInfo, err := b.Fs.Stat(b.Path)
	if err != nil {
		return false, errors.WithContext(err, fmt.Sprintf("stat %q", b.Path))
	}

	if aInfo.Size() != bInfo.Size() {
		return false, nil
	}

	aHash, err := HashFile(a.Fs, a.Path)
	if err != nil {
		return false, errors.WithContext(err, fmt.Sprintf("hash %q", a.Path))
	}

	bHash, err := HashFile(b.Fs, b.Path)
	if err != nil {
		return false, errors.WithContext(err, fmt.Sprintf("hash %q", b.Path))
	}
	return aHash == bHash, nil
}
