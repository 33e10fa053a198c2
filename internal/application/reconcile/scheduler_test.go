package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/testutil"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) RunAll(ctx context.Context, passes []string) ([]*RunReport, error) {
	args := m.Called(ctx, passes)
	reports, _ := args.Get(0).([]*RunReport)
	return reports, args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) Unlock(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLocker) Hold(ctx context.Context) {
	<-ctx.Done()
}

func TestNewScheduler_DefaultPasses(t *testing.T) {
	s := NewScheduler(new(MockRunner), config.WorkerConfig{Interval: time.Hour}, nil, nil)
	assert.Equal(t, []string{config.PassRhea, config.PassExpasy}, s.Passes())

	s = NewScheduler(new(MockRunner), config.WorkerConfig{Passes: []string{config.PassExpasy}}, nil, nil)
	assert.Equal(t, []string{config.PassExpasy}, s.Passes())
}

func TestScheduler_Tick_NoLock(t *testing.T) {
	runner := new(MockRunner)
	want := []*RunReport{{Pass: config.PassRhea, Seen: 1, Persisted: 1}}
	runner.On("RunAll", mock.Anything, []string{config.PassRhea}).Return(want, nil)

	s := NewScheduler(runner, config.WorkerConfig{Passes: []string{config.PassRhea}}, nil, nil)
	got, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	runner.AssertExpectations(t)
}

func TestScheduler_Tick_FailedRecordsAreAnError(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunAll", mock.Anything, mock.Anything).
		Return([]*RunReport{{Pass: config.PassRhea, Seen: 2, Persisted: 1, Failed: 1}}, nil)

	_, err := NewScheduler(runner, config.WorkerConfig{}, nil, nil).Tick(context.Background())
	assert.Error(t, err)
}

func TestScheduler_Tick_WithLock(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunAll", mock.Anything, mock.Anything).Return([]*RunReport{}, nil)
	lock := new(MockLocker)
	lock.On("TryLock", mock.Anything).Return(true, nil)
	lock.On("Unlock", mock.Anything).Return(nil)

	_, err := NewScheduler(runner, config.WorkerConfig{}, lock, nil).Tick(context.Background())
	require.NoError(t, err)
	lock.AssertExpectations(t)
	runner.AssertExpectations(t)
}

func TestScheduler_Tick_LockHeldElsewhere(t *testing.T) {
	runner := new(MockRunner)
	lock := new(MockLocker)
	lock.On("TryLock", mock.Anything).Return(false, nil)
	log := testutil.NewMockLogger()

	reports, err := NewScheduler(runner, config.WorkerConfig{}, lock, log).Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, reports)
	runner.AssertNotCalled(t, "RunAll", mock.Anything, mock.Anything)
	lock.AssertNotCalled(t, "Unlock", mock.Anything)
	assert.True(t, log.HasMessage("info", "run skipped: lock held elsewhere"))
}

func TestScheduler_Tick_LockError(t *testing.T) {
	runner := new(MockRunner)
	lock := new(MockLocker)
	lock.On("TryLock", mock.Anything).Return(false, fmt.Errorf("redis down"))

	_, err := NewScheduler(runner, config.WorkerConfig{}, lock, nil).Tick(context.Background())
	assert.EqualError(t, err, "redis down")
	runner.AssertNotCalled(t, "RunAll", mock.Anything, mock.Anything)
}

func TestScheduler_Run_RunOnStartThenStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := new(MockRunner)
	runner.On("RunAll", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("source unavailable")).
		Run(func(mock.Arguments) { cancel() }).
		Once()
	log := testutil.NewMockLogger()

	s := NewScheduler(runner, config.WorkerConfig{Interval: time.Hour, RunOnStart: true}, nil, log)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	runner.AssertExpectations(t)
	assert.True(t, log.HasMessage("info", "scheduler stopped"))
	assert.False(t, log.HasMessage("error", "scheduled run failed"), "errors after shutdown are not reported")
}

func TestScheduler_Run_RejectsZeroInterval(t *testing.T) {
	err := NewScheduler(new(MockRunner), config.WorkerConfig{}, nil, nil).Run(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
}

func TestScheduler_Run_Ticks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	runner := new(MockRunner)
	runner.On("RunAll", mock.Anything, mock.Anything).
		Return([]*RunReport{}, nil).
		Run(func(mock.Arguments) {
			if calls.Add(1) == 2 {
				cancel()
			}
		})

	s := NewScheduler(runner, config.WorkerConfig{Interval: 10 * time.Millisecond}, nil, nil)
	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestScheduler_Reconfigure(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunAll", mock.Anything, []string{config.PassExpasy}).Return([]*RunReport{}, nil)

	s := NewScheduler(runner, config.WorkerConfig{Interval: time.Hour}, nil, testutil.NewMockLogger())
	s.Reconfigure(config.WorkerConfig{Interval: 2 * time.Hour, Passes: []string{config.PassExpasy}})

	assert.Equal(t, []string{config.PassExpasy}, s.Passes())
	assert.Equal(t, 2*time.Hour, s.Interval())
	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestScheduler_Reconfigure_KeepsIntervalWhenUnset(t *testing.T) {
	s := NewScheduler(new(MockRunner), config.WorkerConfig{Interval: time.Hour}, nil, nil)
	s.Reconfigure(config.WorkerConfig{})
	assert.Equal(t, time.Hour, s.Interval())
	assert.Equal(t, []string{config.PassRhea, config.PassExpasy}, s.Passes())
}

func TestScheduler_Run_ReconfiguredIntervalTakesEffect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticked := make(chan struct{}, 1)
	runner := new(MockRunner)
	runner.On("RunAll", mock.Anything, mock.Anything).
		Return([]*RunReport{}, nil).
		Run(func(mock.Arguments) {
			select {
			case ticked <- struct{}{}:
			default:
			}
		})

	s := NewScheduler(runner, config.WorkerConfig{Interval: time.Hour}, nil, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Reconfigure(config.WorkerConfig{Interval: 10 * time.Millisecond})
	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick after interval change")
	}
	cancel()
	require.NoError(t, <-done)
}
