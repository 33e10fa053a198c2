package source

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// FileFetcher reads release files from a local directory, typically an
// unpacked copy of the FTP tree.
type FileFetcher struct {
	root string
}

func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{root: root}
}

func (f *FileFetcher) Origin() string { return "file" }

func (f *FileFetcher) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "fetch cancelled").WithDetail(path)
	}
	full := filepath.Join(f.root, filepath.FromSlash(path))
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeSourceNotFound, "source file not found").WithDetail(full)
		}
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "open source file").WithDetail(full)
	}
	return file, nil
}
