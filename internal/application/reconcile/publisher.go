package reconcile

import (
	"context"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
)

// Publisher writes a finished record to the store and then to every
// secondary sink. Only the store decides whether the record counts as
// persisted; a sink failure is logged, counted and otherwise ignored.
type Publisher struct {
	store   reaction.DocumentStore
	sinks   []reaction.Sink
	metrics Metrics
	logger  logging.Logger
}

func NewPublisher(store reaction.DocumentStore, sinks []reaction.Sink, metrics Metrics, logger logging.Logger) *Publisher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Publisher{store: store, sinks: sinks, metrics: metrics, logger: logger}
}

// Sinks returns the names of the secondary sinks in call order.
func (p *Publisher) Sinks() []string {
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name())
	}
	return names
}

func (p *Publisher) PublishRhea(ctx context.Context, rec *reaction.RheaReactionRecord, report *RunReport) error {
	if err := p.store.UpsertRhea(ctx, rec); err != nil {
		return err
	}
	for _, s := range p.sinks {
		p.track(s.Name(), report, s.RheaUpserted(ctx, rec), logging.RheaID(rec.RheaID))
	}
	return nil
}

func (p *Publisher) PublishEnzyme(ctx context.Context, rec *reaction.ExpasyEnzymeRecord, report *RunReport) error {
	if err := p.store.UpsertEnzyme(ctx, rec); err != nil {
		return err
	}
	for _, s := range p.sinks {
		p.track(s.Name(), report, s.EnzymeUpserted(ctx, rec), logging.ECNumber(rec.ECNumber))
	}
	return nil
}

func (p *Publisher) track(sink string, report *RunReport, err error, key logging.Field) {
	if err == nil {
		return
	}
	p.metrics.SinkError(sink)
	if report != nil {
		report.SinkErrors[sink]++
	}
	p.logger.Warn("sink failed, document is stored", logging.String("sink", sink), key, logging.Err(err))
}

// Metrics is the subset of the pipeline metrics the services report to.
type Metrics interface {
	RecordOutcome(pass, outcome string)
	MalformedEquation()
	Constituents(resolved, unresolved int)
	SinkError(sink string)
	PassFinished(pass string, d time.Duration, failed int, at time.Time)
}

// Record outcomes.
const (
	OutcomePersisted = "persisted"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeDryRun    = "dry_run"
)

type noopMetrics struct{}

func (noopMetrics) RecordOutcome(string, string)                       {}
func (noopMetrics) MalformedEquation()                                 {}
func (noopMetrics) Constituents(int, int)                              {}
func (noopMetrics) SinkError(string)                                   {}
func (noopMetrics) PassFinished(string, time.Duration, int, time.Time) {}
