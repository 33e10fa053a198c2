package reconcile

import (
	"context"
	"io"

	"github.com/turtacn/rxn-reconciler/internal/domain/reference"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/source"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// References are the read-only tables a Rhea pass joins against. They are
// built once per run and shared by reference.
type References struct {
	ChEBI  *reference.ChEBITable
	ECRhea *reference.ECRheaTable
}

// LoadReferences fetches and parses both tables. Any failure is fatal to the
// run: without them no record can be built.
func LoadReferences(ctx context.Context, f source.Fetcher, paths Paths, logger logging.Logger) (*References, error) {
	var refs References

	err := withSource(ctx, f, paths.ECRhea, func(r io.Reader) error {
		t, err := reference.LoadECRheaTable(r)
		if err != nil {
			return err
		}
		refs.ECRhea = t
		st := t.Stats()
		logger.Info("ec-rhea table loaded", logging.Source(paths.ECRhea),
			logging.Int("entries", st.Entries), logging.Int("skipped", st.Skipped))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = withSource(ctx, f, paths.ChEBINames, func(r io.Reader) error {
		t, err := reference.LoadChEBITable(r)
		if err != nil {
			return err
		}
		refs.ChEBI = t
		st := t.Stats()
		logger.Info("chebi name table loaded", logging.Source(paths.ChEBINames),
			logging.Int("entries", st.Entries), logging.Int("skipped", st.Skipped))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &refs, nil
}

// withSource opens path, hands the stream to fn and always closes it. Errors
// that are not already coded are reported as a parse failure of path.
func withSource(ctx context.Context, f source.Fetcher, path string, fn func(io.Reader) error) error {
	rc, err := f.Fetch(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := fn(rc); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.GetCode(err) == errors.CodeUnknown {
			return errors.Wrap(err, errors.ErrCodeSourceParseError, "failed to read source").WithDetail(path)
		}
		return err
	}
	return nil
}
