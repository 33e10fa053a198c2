package reconcile

import (
	"time"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// RunReport summarizes one pass. Counters only grow while the pass runs.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Pass       string    `json:"pass"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Seen      int `json:"seen"`
	Persisted int `json:"persisted"`
	Failed    int `json:"failed"`
	// Skipped counts records that were read but not handed to the store,
	// e.g. entries with an invalid key.
	Skipped    int `json:"skipped"`
	Malformed  int `json:"malformed_equations"`
	Resolved   int `json:"resolved_constituents"`
	Unresolved int `json:"unresolved_constituents"`

	// SinkErrors counts secondary sink failures by sink name.
	SinkErrors map[string]int `json:"sink_errors,omitempty"`
	DryRun     bool           `json:"dry_run,omitempty"`
	// Error is the fatal error that aborted the pass, if any.
	Error string `json:"error,omitempty"`
}

func newRunReport(runID, pass string, started time.Time) *RunReport {
	return &RunReport{RunID: runID, Pass: pass, StartedAt: started, SinkErrors: map[string]int{}}
}

func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err is non-nil when any record failed to persist.
func (r *RunReport) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return errors.Newf(errors.ErrCodeDatabaseError, "%s pass: %d of %d records failed to persist", r.Pass, r.Failed, r.Seen)
}

// Record converts the report into its run-log row.
func (r *RunReport) Record() reaction.RunRecord {
	var sinkErrors map[string]int
	if len(r.SinkErrors) > 0 {
		sinkErrors = make(map[string]int, len(r.SinkErrors))
		for name, n := range r.SinkErrors {
			sinkErrors[name] = n
		}
	}
	return reaction.RunRecord{
		ID:         r.RunID,
		Pass:       r.Pass,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Seen:       r.Seen,
		Persisted:  r.Persisted,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Malformed:  r.Malformed,
		Resolved:   r.Resolved,
		Unresolved: r.Unresolved,
		SinkErrors: sinkErrors,
		Error:      r.Error,
	}
}
