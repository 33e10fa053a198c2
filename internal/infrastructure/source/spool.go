package source

import (
	"io"
	"os"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// SpoolFile is a downloaded source held in a temp file. Close removes it.
type SpoolFile struct {
	*os.File
	size int64
}

// Spool copies r to a temp file and returns it positioned at the start.
// A failed copy is reported as ErrCodeSourceUnavailable.
func Spool(r io.Reader) (*SpoolFile, error) {
	tmp, err := os.CreateTemp("", "rxn-source-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "create spool file")
	}
	sf := &SpoolFile{File: tmp}

	n, err := io.Copy(tmp, r)
	if err != nil {
		sf.Close()
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "download source")
	}
	sf.size = n
	if err := sf.Rewind(); err != nil {
		sf.Close()
		return nil, err
	}
	return sf, nil
}

// Size is the number of bytes spooled.
func (s *SpoolFile) Size() int64 { return s.size }

// Rewind seeks back to the first byte.
func (s *SpoolFile) Rewind() error {
	if _, err := s.File.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "rewind spool file")
	}
	return nil
}

func (s *SpoolFile) Close() error {
	err := s.File.Close()
	os.Remove(s.File.Name())
	return err
}
