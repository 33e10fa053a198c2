package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/domain/enzyme"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/memory"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
)

func newTestExpasyService(resolver *mapResolver) *ExpasyService {
	pub := NewPublisher(memory.NewStore(), nil, nil, logging.NewNopLogger())
	return NewExpasyService(nil, "", resolver, pub, Options{Now: fixedNow}, logging.NewNopLogger())
}

func TestExpasyService_BuildRecord(t *testing.T) {
	svc := newTestExpasyService(newMapResolver(map[string]string{"H2O": "CHEBI:15377"}))

	rec, err := svc.BuildRecord(context.Background(), &enzyme.Entry{
		ECNumber:    "3.1.1.1",
		Description: "Carboxylesterase",
		Catalytic:   "A carboxylic ester + H2O + H2O = an alcohol + a carboxylate.",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, rec.Validate())

	require.Len(t, rec.Reactions, 1)
	rx := rec.Reactions[0]
	assert.Equal(t, "rxn_1", rx.Key())
	// Duplicates stay in the ordered list.
	require.Len(t, rx.Left, 3)
	assert.Equal(t, "H2O", rx.Left[1].Name)
	assert.Equal(t, "H2O", rx.Left[2].Name)
	assert.Equal(t, reaction.Found("CHEBI:15377"), rx.Left[2].ChEBI)
	assert.Equal(t, 3, rx.Unresolved())
	assert.Equal(t, fixedTime, rec.Timestamp)
}

func TestExpasyService_BuildRecord_AllMalformed(t *testing.T) {
	svc := newTestExpasyService(newMapResolver(nil))
	report := newRunReport("run", "expasy", fixedTime)

	rec, err := svc.BuildRecord(context.Background(), &enzyme.Entry{
		ECNumber:  "1.2.3.4",
		Catalytic: "No equation here. A = B = C.",
	}, report)
	require.NoError(t, err)
	assert.Empty(t, rec.Reactions)
	assert.Equal(t, 2, report.Malformed)
	assert.Empty(t, svc.resolver.(*mapResolver).calls)
}

func TestExpasyService_BuildRecord_Cancelled(t *testing.T) {
	svc := newTestExpasyService(newMapResolver(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.BuildRecord(ctx, &enzyme.Entry{ECNumber: "1.2.3.4", Catalytic: "A = B."}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
