package reconcile

import (
	"context"
	"io"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/rhea"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/source"
)

// RheaService turns the reaction archive into one document per Rhea id.
type RheaService struct {
	fetcher    source.Fetcher
	path       string
	pub        *Publisher
	metrics    Metrics
	logger     logging.Logger
	now        func() time.Time
	maxRecords int
}

func NewRheaService(fetcher source.Fetcher, archivePath string, pub *Publisher, opts Options, logger logging.Logger) *RheaService {
	opts = opts.withDefaults()
	return &RheaService{
		fetcher:    fetcher,
		path:       archivePath,
		pub:        pub,
		metrics:    opts.Metrics,
		logger:     logger.Named("rhea"),
		now:        opts.Now,
		maxRecords: opts.MaxRecords,
	}
}

// Run streams the archive and publishes every reaction. A fetch or archive
// error ends the pass with that error; a failed upsert only counts against
// the report.
func (s *RheaService) Run(ctx context.Context, refs *References, report *RunReport) error {
	return withSource(ctx, s.fetcher, s.path, func(r io.Reader) error {
		err := rhea.ReadArchive(ctx, r, func(ctx context.Context, e rhea.Entry) error {
			s.process(ctx, e, refs, report)
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

func (s *RheaService) process(ctx context.Context, e rhea.Entry, refs *References, report *RunReport) {
	report.Seen++
	rec := rhea.BuildRecord(e, refs.ChEBI, refs.ECRhea, s.now())
	if err := rec.Validate(); err != nil {
		report.Skipped++
		s.metrics.RecordOutcome(config.PassRhea, OutcomeSkipped)
		s.logger.Warn("skipping invalid rhea record", logging.RheaID(e.RheaID), logging.Err(err))
		return
	}
	if err := s.pub.PublishRhea(ctx, rec, report); err != nil {
		report.Failed++
		s.metrics.RecordOutcome(config.PassRhea, OutcomeFailed)
		s.logger.Error("failed to persist rhea record", logging.RheaID(rec.RheaID), logging.Err(err))
		return
	}
	report.Persisted++
	s.metrics.RecordOutcome(config.PassRhea, OutcomePersisted)
	s.logger.Debug("rhea record persisted", logging.RheaID(rec.RheaID),
		logging.Int("chebi_ids", len(rec.ChEBI)), logging.Bool("ec_mapped", rec.ECNumber.IsFound()))
}
