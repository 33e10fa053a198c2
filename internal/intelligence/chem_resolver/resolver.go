package chem_resolver

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/client"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// Resolver maps a compound name to a ChEBI id. It never fails: every miss,
// including an unreachable annotator, is reaction.NotFound().
type Resolver interface {
	Resolve(ctx context.Context, name string) reaction.Resolution
}

// Annotator abstracts the BioPortal annotator client.
type Annotator interface {
	Annotate(ctx context.Context, text string, params client.AnnotateParams) ([]client.Annotation, error)
}

var _ Annotator = (*client.Client)(nil)

// Metrics is the subset of pipeline metrics the resolvers report to.
type Metrics interface {
	ObserveResolution(outcome string, d time.Duration)
	CacheAccess(hit bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveResolution(string, time.Duration) {}
func (noopMetrics) CacheAccess(bool)                        {}

const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// AnnotatorResolver resolves names with a strict label match: an annotation
// is accepted only when the class's preferred label equals the matched text,
// ignoring case. The first accepted annotation wins.
type AnnotatorResolver struct {
	annotator  Annotator
	normalizer *Normalizer
	params     client.AnnotateParams
	metrics    Metrics
	logger     logging.Logger
}

// ResolverOption customises an AnnotatorResolver.
type ResolverOption func(*AnnotatorResolver)

func WithNormalizer(n *Normalizer) ResolverOption {
	return func(r *AnnotatorResolver) {
		if n != nil {
			r.normalizer = n
		}
	}
}

func WithAnnotateParams(p client.AnnotateParams) ResolverOption {
	return func(r *AnnotatorResolver) { r.params = p }
}

func WithMetrics(m Metrics) ResolverOption {
	return func(r *AnnotatorResolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

func NewAnnotatorResolver(annotator Annotator, logger logging.Logger, opts ...ResolverOption) *AnnotatorResolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &AnnotatorResolver{
		annotator:  annotator,
		normalizer: NewNormalizer(nil),
		params:     client.DefaultAnnotateParams(),
		metrics:    noopMetrics{},
		logger:     logger.Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *AnnotatorResolver) Resolve(ctx context.Context, name string) reaction.Resolution {
	res, err := r.Lookup(ctx, name)
	if err != nil {
		r.logger.Warn("annotator lookup failed, leaving compound unresolved",
			logging.Compound(name),
			logging.String("code", string(errors.GetCode(err))),
			logging.Err(err))
		return reaction.NotFound()
	}
	return res
}

// Lookup is Resolve with the annotator failure surfaced, so a cache can tell
// "the service said no" apart from "the service was not reachable".
func (r *AnnotatorResolver) Lookup(ctx context.Context, name string) (reaction.Resolution, error) {
	query := strings.TrimSpace(r.normalizer.Normalize(strings.TrimSpace(name)))
	if query == "" {
		return reaction.NotFound(), nil
	}

	start := time.Now()
	anns, err := r.annotator.Annotate(ctx, query, r.params)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.ObserveResolution(outcomeError, elapsed)
		if !errors.IsCode(err, errors.ErrCodeAnnotatorUnavailable) &&
			!errors.IsCode(err, errors.ErrCodeAnnotatorBadResponse) &&
			!errors.IsCode(err, errors.ErrCodeAnnotatorAuthFailed) {
			err = errors.Wrap(err, errors.ErrCodeAnnotatorUnavailable, "annotate compound")
		}
		return reaction.NotFound(), err
	}

	if id, ok := MatchAnnotations(anns); ok {
		r.metrics.ObserveResolution(outcomeFound, elapsed)
		r.logger.Debug("compound resolved", logging.Compound(name), logging.String("chebi_id", id))
		return reaction.Found(id), nil
	}
	r.metrics.ObserveResolution(outcomeNotFound, elapsed)
	r.logger.Debug("no exact annotation match", logging.Compound(name), logging.Int("candidates", len(anns)))
	return reaction.NotFound(), nil
}

// MatchAnnotations returns the id of the first annotation whose preferred
// label equals its first matched text, case-insensitively.
func MatchAnnotations(anns []client.Annotation) (string, bool) {
	for _, a := range anns {
		label, ok := a.Label()
		if !ok {
			continue
		}
		text, ok := a.MatchedText()
		if !ok {
			continue
		}
		if !strings.EqualFold(label, text) {
			continue
		}
		if id := a.LocalID(); id != "" {
			return id, true
		}
	}
	return "", false
}
