package repositories

import (
	"context"
	"encoding/json"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const (
	insertRunSQL = `
		INSERT INTO reconcile_runs
			(id, pass, started_at, finished_at, seen, persisted, failed, skipped,
			 malformed, resolved, unresolved, sink_errors, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	selectRunsSQL = `
		SELECT id, pass, started_at, finished_at, seen, persisted, failed, skipped,
		       malformed, resolved, unresolved, sink_errors, error
		FROM reconcile_runs
		WHERE ($1 = '' OR pass = $1)
		ORDER BY started_at DESC
		LIMIT $2`
)

// RunRepository is the PostgreSQL implementation of reaction.RunLog.
type RunRepository struct {
	db queryExecutor
}

func NewRunRepository(db queryExecutor) *RunRepository {
	return &RunRepository{db: db}
}

var _ reaction.RunLog = (*RunRepository)(nil)

func (r *RunRepository) RecordRun(ctx context.Context, run reaction.RunRecord) error {
	sinkErrors := run.SinkErrors
	if sinkErrors == nil {
		sinkErrors = map[string]int{}
	}
	sinkJSON, err := json.Marshal(sinkErrors)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode sink errors").WithDetail(run.ID)
	}
	_, err = r.db.ExecContext(ctx, insertRunSQL,
		run.ID, run.Pass, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Seen, run.Persisted, run.Failed, run.Skipped,
		run.Malformed, run.Resolved, run.Unresolved, sinkJSON, run.Error,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "record run").WithDetail(run.ID)
	}
	return nil
}

func (r *RunRepository) RecentRuns(ctx context.Context, pass string, limit int) ([]reaction.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, selectRunsSQL, pass, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "list runs")
	}
	defer rows.Close()

	var out []reaction.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan run")
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate runs")
	}
	return out, nil
}

func scanRun(s scanner) (reaction.RunRecord, error) {
	var (
		run      reaction.RunRecord
		sinkJSON []byte
	)
	err := s.Scan(&run.ID, &run.Pass, &run.StartedAt, &run.FinishedAt,
		&run.Seen, &run.Persisted, &run.Failed, &run.Skipped,
		&run.Malformed, &run.Resolved, &run.Unresolved, &sinkJSON, &run.Error)
	if err != nil {
		return run, err
	}
	if len(sinkJSON) > 0 {
		if err := json.Unmarshal(sinkJSON, &run.SinkErrors); err != nil {
			return run, err
		}
		if len(run.SinkErrors) == 0 {
			run.SinkErrors = nil
		}
	}
	return run, nil
}
