// Package reconcile runs the Rhea and ExPASy passes: fetch the raw sources,
// build one document per key and hand each finished document to the store
// and the secondary sinks.
package reconcile

import (
	"context"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/memory"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/source"
	chemresolver "github.com/turtacn/rxn-reconciler/internal/intelligence/chem_resolver"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
	"github.com/turtacn/rxn-reconciler/pkg/types/common"
)

// errLimitReached ends a walk early once MaxRecords entries were seen.
var errLimitReached = errors.New(errors.ErrCodeInternal, "record limit reached")

// Paths locate the four sources relative to their fetchers.
type Paths struct {
	ECRhea      string
	ChEBINames  string
	RheaArchive string
	Enzyme      string
}

func PathsFromConfig(cfg config.SourcesConfig) Paths {
	return Paths{
		ECRhea:      cfg.ECRheaPath,
		ChEBINames:  cfg.ChEBINamesPath,
		RheaArchive: cfg.RheaArchivePath,
		Enzyme:      cfg.EnzymePath,
	}
}

// Options are shared by both pass services.
type Options struct {
	MaxRecords int
	Metrics    Metrics
	// Now stamps documents; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Deps are the collaborators of a Pipeline. Store is required. Resolver is
// required for the ExPASy pass only. RheaFetcher and ExpasyFetcher may be the
// same value.
type Deps struct {
	RheaFetcher   source.Fetcher
	ExpasyFetcher source.Fetcher
	Store         reaction.DocumentStore
	Sinks         []reaction.Sink
	Resolver      chemresolver.Resolver
	RunLog        reaction.RunLog
	Metrics       Metrics
	Logger        logging.Logger
	Now           func() time.Time
}

// Pipeline owns one instance of each pass service.
type Pipeline struct {
	deps   Deps
	paths  Paths
	dryRun bool

	pub    *Publisher
	rhea   *RheaService
	expasy *ExpasyService

	metrics Metrics
	logger  logging.Logger
	now     func() time.Time
}

// NewPipeline wires the services. In dry-run mode documents go to a private
// in-memory store, secondary sinks and the run log are not touched.
func NewPipeline(deps Deps, paths Paths, cfg config.PipelineConfig) (*Pipeline, error) {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Store == nil && !cfg.DryRun {
		return nil, errors.New(errors.ErrCodeConfig, "pipeline: document store is required")
	}
	opts := Options{MaxRecords: cfg.MaxRecords, Metrics: deps.Metrics, Now: deps.Now}.withDefaults()

	store, sinks := deps.Store, deps.Sinks
	if cfg.DryRun {
		store, sinks = memory.NewStore(), nil
	}
	pub := NewPublisher(store, sinks, opts.Metrics, deps.Logger)

	p := &Pipeline{
		deps:    deps,
		paths:   paths,
		dryRun:  cfg.DryRun,
		pub:     pub,
		metrics: opts.Metrics,
		logger:  deps.Logger.Named("pipeline"),
		now:     opts.Now,
	}
	if deps.RheaFetcher != nil {
		p.rhea = NewRheaService(deps.RheaFetcher, paths.RheaArchive, pub, opts, deps.Logger)
	}
	if deps.ExpasyFetcher != nil && deps.Resolver != nil {
		p.expasy = NewExpasyService(deps.ExpasyFetcher, paths.Enzyme, deps.Resolver, pub, opts, deps.Logger)
	}
	return p, nil
}

// Expasy exposes the ExPASy service for single-entry use by the CLI; nil
// when no resolver was configured.
func (p *Pipeline) Expasy() *ExpasyService { return p.expasy }

// Run executes one pass. The returned error is fatal (a source could not be
// read or the pass is not configured); per-record failures are only in the
// report, see RunReport.Err.
func (p *Pipeline) Run(ctx context.Context, pass string) (*RunReport, error) {
	runID := common.NewRunID()
	ctx = reaction.ContextWithRunID(ctx, runID)
	report := newRunReport(runID, pass, p.now().UTC())
	report.DryRun = p.dryRun
	log := p.logger.With(logging.RunID(runID), logging.String("pass", pass))
	log.Info("pass started", logging.Bool("dry_run", p.dryRun), logging.Any("sinks", p.pub.Sinks()))

	var err error
	switch pass {
	case config.PassRhea:
		err = p.runRhea(ctx, report)
	case config.PassExpasy:
		err = p.runExpasy(ctx, report)
	default:
		err = errors.Newf(errors.ErrCodeBadRequest, "unknown pass %q", pass)
	}

	report.FinishedAt = p.now().UTC()
	if err != nil {
		report.Error = err.Error()
	}
	p.metrics.PassFinished(pass, report.Duration(), report.Failed, report.FinishedAt)
	p.recordRun(ctx, report, log)

	fields := []logging.Field{
		logging.Int("seen", report.Seen), logging.Int("persisted", report.Persisted),
		logging.Int("failed", report.Failed), logging.Int("skipped", report.Skipped),
		logging.Int("malformed", report.Malformed), logging.Int("resolved", report.Resolved),
		logging.Int("unresolved", report.Unresolved), logging.Duration("duration", report.Duration()),
	}
	if err != nil {
		log.Error("pass aborted", append(fields, logging.Err(err))...)
		return report, err
	}
	log.Info("pass finished", fields...)
	return report, nil
}

// RunAll runs passes in order and stops at the first fatal error.
func (p *Pipeline) RunAll(ctx context.Context, passes []string) ([]*RunReport, error) {
	reports := make([]*RunReport, 0, len(passes))
	for _, pass := range passes {
		r, err := p.Run(ctx, pass)
		reports = append(reports, r)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (p *Pipeline) runRhea(ctx context.Context, report *RunReport) error {
	if p.rhea == nil {
		return errors.New(errors.ErrCodeConfig, "rhea pass is not configured: no source fetcher")
	}
	refs, err := LoadReferences(ctx, p.deps.RheaFetcher, p.paths, p.logger)
	if err != nil {
		return err
	}
	return p.rhea.Run(ctx, refs, report)
}

// runScoped is implemented by resolvers that remember failures within a pass.
type runScoped interface {
	Forget()
}

func (p *Pipeline) runExpasy(ctx context.Context, report *RunReport) error {
	if p.expasy == nil {
		return errors.New(errors.ErrCodeConfig, "expasy pass is not configured: needs a source fetcher and an annotator api key")
	}
	if r, ok := p.deps.Resolver.(runScoped); ok {
		r.Forget()
	}
	return p.expasy.Run(ctx, report)
}

func (p *Pipeline) recordRun(ctx context.Context, report *RunReport, log logging.Logger) {
	if p.dryRun || p.deps.RunLog == nil {
		return
	}
	// The pass context may already be cancelled; the summary is still worth keeping.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.deps.RunLog.RecordRun(rctx, report.Record()); err != nil {
		log.Warn("failed to record run", logging.Err(err))
	}
}
