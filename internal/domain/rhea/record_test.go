package rhea

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/domain/reference"
)

func TestBuildRecord(t *testing.T) {
	names := reference.NewChEBITable(map[string]string{"CHEBI:15377": "water"})
	ecs := reference.NewECRheaTable(map[string]string{"10000": "3.5.1.50"})
	now := time.Date(2026, 10, 16, 10, 0, 0, 500, time.UTC)

	rec := BuildRecord(Entry{RheaID: "10000", ChEBIIDs: []string{"CHEBI:15377", "CHEBI:99999"}}, names, ecs, now)

	require.NoError(t, rec.Validate())
	assert.Equal(t, "10000", rec.Key())
	assert.Equal(t, map[string]string{"CHEBI:15377": "water", "CHEBI:99999": reaction.NoName}, rec.ChEBI)
	assert.Equal(t, reaction.Found("3.5.1.50"), rec.ECNumber)
	assert.Equal(t, time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), rec.Timestamp)
}

func TestBuildRecord_MissingECIsNotAnError(t *testing.T) {
	names := reference.NewChEBITable(nil)
	ecs := reference.NewECRheaTable(nil)

	rec := BuildRecord(Entry{RheaID: "10004"}, names, ecs, time.Now())
	require.NoError(t, rec.Validate())
	assert.False(t, rec.ECNumber.IsFound())

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ecnumber")
	assert.Contains(t, string(raw), `"chebi_id":{}`)
}
