package reconcile

import (
	"context"
	"io"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/enzyme"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/source"
	chemresolver "github.com/turtacn/rxn-reconciler/internal/intelligence/chem_resolver"
)

// ExpasyService turns enzyme.dat into one document per EC number, resolving
// every equation constituent to a ChEBI id.
type ExpasyService struct {
	fetcher    source.Fetcher
	path       string
	resolver   chemresolver.Resolver
	pub        *Publisher
	metrics    Metrics
	logger     logging.Logger
	now        func() time.Time
	maxRecords int
}

func NewExpasyService(fetcher source.Fetcher, enzymePath string, resolver chemresolver.Resolver, pub *Publisher, opts Options, logger logging.Logger) *ExpasyService {
	opts = opts.withDefaults()
	return &ExpasyService{
		fetcher:    fetcher,
		path:       enzymePath,
		resolver:   resolver,
		pub:        pub,
		metrics:    opts.Metrics,
		logger:     logger.Named("expasy"),
		now:        opts.Now,
		maxRecords: opts.MaxRecords,
	}
}

func (s *ExpasyService) Run(ctx context.Context, report *RunReport) error {
	return withSource(ctx, s.fetcher, s.path, func(r io.Reader) error {
		err := enzyme.Walk(ctx, r, func(ctx context.Context, e *enzyme.Entry) error {
			if err := s.process(ctx, e, report); err != nil {
				return err
			}
			if s.maxRecords > 0 && report.Seen >= s.maxRecords {
				return errLimitReached
			}
			return nil
		})
		if err == errLimitReached {
			s.logger.Info("record limit reached", logging.Int("max_records", s.maxRecords))
			return nil
		}
		return err
	})
}

func (s *ExpasyService) process(ctx context.Context, e *enzyme.Entry, report *RunReport) error {
	report.Seen++
	if err := reaction.ValidateECNumber(e.ECNumber); err != nil {
		report.Skipped++
		s.metrics.RecordOutcome(config.PassExpasy, OutcomeSkipped)
		s.logger.Warn("skipping enzyme entry", logging.ECNumber(e.ECNumber), logging.Err(err))
		return nil
	}

	rec, err := s.BuildRecord(ctx, e, report)
	if err != nil {
		// Only cancellation ends up here; the half-built record is dropped.
		return err
	}
	if err := s.pub.PublishEnzyme(ctx, rec, report); err != nil {
		report.Failed++
		s.metrics.RecordOutcome(config.PassExpasy, OutcomeFailed)
		s.logger.Error("failed to persist enzyme record", logging.ECNumber(rec.ECNumber), logging.Err(err))
		return nil
	}
	report.Persisted++
	s.metrics.RecordOutcome(config.PassExpasy, OutcomePersisted)
	return nil
}

// BuildRecord assembles the document for one entry. Equations are resolved
// one constituent at a time in source order. A malformed equation is left
// out and its rxn_<n> key stays unused. report may be nil.
func (s *ExpasyService) BuildRecord(ctx context.Context, e *enzyme.Entry, report *RunReport) (*reaction.ExpasyEnzymeRecord, error) {
	rec := &reaction.ExpasyEnzymeRecord{
		ECNumber:    e.ECNumber,
		Description: e.Description,
		Reactions:   []reaction.ResolvedReaction{},
	}
	resolved, unresolved := 0, 0
	for _, rx := range enzyme.Reactions(e.Catalytic) {
		eq, err := reaction.SplitEquation(rx.Text)
		if err != nil {
			s.metrics.MalformedEquation()
			if report != nil {
				report.Malformed++
			}
			s.logger.Warn("skipping malformed equation", logging.ECNumber(e.ECNumber),
				logging.Int("ordinal", rx.Ordinal), logging.String("equation", rx.Text))
			continue
		}
		left, err := s.resolveSide(ctx, eq.Left)
		if err != nil {
			return nil, err
		}
		right, err := s.resolveSide(ctx, eq.Right)
		if err != nil {
			return nil, err
		}
		rr := reaction.ResolvedReaction{Ordinal: rx.Ordinal, Text: eq.Text, Left: left, Right: right}
		u := rr.Unresolved()
		unresolved += u
		resolved += len(left) + len(right) - u
		rec.Reactions = append(rec.Reactions, rr)
	}
	s.metrics.Constituents(resolved, unresolved)
	if report != nil {
		report.Resolved += resolved
		report.Unresolved += unresolved
	}
	rec.Timestamp = s.now().UTC().Truncate(time.Second)
	return rec, nil
}

func (s *ExpasyService) resolveSide(ctx context.Context, names []string) ([]reaction.Constituent, error) {
	out := make([]reaction.Constituent, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, reaction.Constituent{Name: name, ChEBI: s.resolver.Resolve(ctx, name)})
	}
	return out, nil
}
