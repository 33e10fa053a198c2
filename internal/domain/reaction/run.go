package reaction

import (
	"context"
	"time"
)

// RunRecord summarizes one finished pass. Error is set when the pass
// aborted; its counters then cover only the records read before that.
type RunRecord struct {
	ID         string         `json:"id"`
	Pass       string         `json:"pass"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Seen       int            `json:"seen"`
	Persisted  int            `json:"persisted"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Malformed  int            `json:"malformed"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	SinkErrors map[string]int `json:"sink_errors,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// RunLog keeps the history of passes.
type RunLog interface {
	RecordRun(ctx context.Context, run RunRecord) error
	// RecentRuns returns up to limit runs, newest first. An empty pass
	// matches every pass.
	RecentRuns(ctx context.Context, pass string, limit int) ([]RunRecord, error)
}

type runIDKey struct{}

// ContextWithRunID tags ctx with the id of the pass that produced the
// documents handed to sinks.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the pass id or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
