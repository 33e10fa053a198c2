// Package rhea reads the Rhea reaction archive and turns each reaction
// definition into a RheaReactionRecord.
package rhea

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/turtacn/rxn-reconciler/internal/domain/reference"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// EntryExt is the extension of reaction definition files inside the archive.
const EntryExt = ".rd"

var chebiToken = regexp.MustCompile(`(?i)CHEBI:\d+`)

// Entry is one reaction definition read from the archive.
type Entry struct {
	RheaID   string
	ChEBIIDs []string
}

// EntryFunc is called once per reaction definition. Returning an error stops
// the walk and the error is passed back to the caller unchanged.
type EntryFunc func(ctx context.Context, e Entry) error

// ReadArchive streams a gzip-compressed tar of rd/<id>.rd files. Entries that
// are not regular .rd files or whose base name is not a Rhea id are ignored.
func ReadArchive(ctx context.Context, r io.Reader, fn EntryFunc) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeArchiveCorrupt, "open rhea archive")
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeArchiveCorrupt, "read rhea archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		id, ok := EntryID(hdr.Name)
		if !ok {
			continue
		}
		ids, err := ScanChEBIIDs(tr)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeArchiveCorrupt, "read rhea entry").WithDetail(hdr.Name)
		}
		if err := fn(ctx, Entry{RheaID: id, ChEBIIDs: ids}); err != nil {
			return err
		}
	}
}

// EntryID derives the Rhea id from an archive path: "rd/10000.rd" → "10000".
func EntryID(name string) (string, bool) {
	base := path.Base(name)
	if !strings.EqualFold(path.Ext(base), EntryExt) {
		return "", false
	}
	id := reference.NormalizeRheaID(strings.TrimSuffix(base, path.Ext(base)))
	return id, id != ""
}

// ScanChEBIIDs returns every distinct ChEBI identifier in r in order of first
// appearance, in canonical "CHEBI:<n>" form.
func ScanChEBIIDs(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	seen := make(map[string]bool)
	var ids []string
	for sc.Scan() {
		for _, tok := range chebiToken.FindAllString(sc.Text(), -1) {
			id := reference.NormalizeChEBIID(tok)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, sc.Err()
}
