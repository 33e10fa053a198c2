package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

func TestRunReport(t *testing.T) {
	r := newRunReport("run-1", "rhea", fixedTime)
	assert.Zero(t, r.Duration())
	assert.NoError(t, r.Err())

	r.Seen, r.Persisted, r.Failed = 10, 8, 2
	r.FinishedAt = fixedTime.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())

	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	assert.Contains(t, err.Error(), "2 of 10")

	rec := r.Record()
	assert.Equal(t, "run-1", rec.ID)
	assert.Equal(t, "rhea", rec.Pass)
	assert.Equal(t, 8, rec.Persisted)
	assert.Equal(t, 2, rec.Failed)
}

func TestRunReport_RecordCarriesSkippedSinkErrorsAndError(t *testing.T) {
	r := newRunReport("run-2", "expasy", fixedTime)
	r.Seen, r.Persisted, r.Skipped = 5, 4, 1
	r.SinkErrors["neo4j"] = 3
	r.Error = "[SRC_001] fetch source"

	rec := r.Record()
	assert.Equal(t, 1, rec.Skipped)
	assert.Equal(t, map[string]int{"neo4j": 3}, rec.SinkErrors)
	assert.Equal(t, "[SRC_001] fetch source", rec.Error)

	r.SinkErrors["neo4j"]++
	assert.Equal(t, 3, rec.SinkErrors["neo4j"])
}

func TestRunReport_RecordOmitsEmptySinkErrors(t *testing.T) {
	rec := newRunReport("run-3", "rhea", fixedTime).Record()
	assert.Nil(t, rec.SinkErrors)
	assert.Empty(t, rec.Error)
}
