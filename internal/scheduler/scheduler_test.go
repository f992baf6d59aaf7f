package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrab/cachegrab/internal/autosearch"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestRegisterTask_RejectsDuplicatesAndBadCron(t *testing.T) {
	s := newTestScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Name: "A", Cron: "0 * * * *", Func: noop}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "a", Name: "A", Cron: "0 * * * *", Func: noop}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "b", Name: "B", Cron: "not a cron", Func: noop}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "c", Name: "C", Cron: "0 * * * *"}))
}

func TestRunNow_RecordsResult(t *testing.T) {
	s := newTestScheduler(t)
	done := make(chan struct{})

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "failing",
		Name: "Failing",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error {
			defer close(done)
			return errors.New("boom")
		},
	}))
	require.NoError(t, s.Start())
	require.NoError(t, s.RunNow("failing"))

	<-done
	require.Eventually(t, func() bool {
		info, err := s.GetTask("failing")
		return err == nil && !info.Running && info.LastRun != nil
	}, time.Second, 10*time.Millisecond)

	info, err := s.GetTask("failing")
	require.NoError(t, err)
	assert.Equal(t, "boom", info.LastError)
	assert.NotNil(t, info.NextRun)

	assert.Error(t, s.RunNow("unknown"))
}

func TestRunNow_RejectsWhileRunning(t *testing.T) {
	s := newTestScheduler(t)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "slow",
		Name: "Slow",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))

	require.NoError(t, s.RunNow("slow"))
	<-started
	assert.ErrorIs(t, s.RunNow("slow"), ErrTaskRunning)

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Running)
	close(release)
}

func TestStart_RunsOnStartTasks(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID: "eager", Name: "Eager", Cron: "0 0 1 1 *", RunOnStart: true,
		Func: func(context.Context) error { calls.Add(1); return nil },
	}))
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID: "lazy", Name: "Lazy", Cron: "0 0 1 1 *",
		Func: func(context.Context) error { calls.Add(10); return nil },
	}))
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	started := make(chan struct{})
	var cancelled atomic.Bool

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID: "blocking", Name: "Blocking", Cron: "0 0 1 1 *",
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		},
	}))
	require.NoError(t, s.Start())
	require.NoError(t, s.RunNow("blocking"))
	<-started

	require.NoError(t, s.Stop())
	assert.True(t, cancelled.Load())
}

type fakeRunner struct {
	err     error
	trigger autosearch.Trigger
}

func (f *fakeRunner) Run(_ context.Context, trigger autosearch.Trigger) (*autosearch.RunSummary, error) {
	f.trigger = trigger
	return &autosearch.RunSummary{}, f.err
}

func TestPipelineTask_TreatsRunInProgressAsSuccess(t *testing.T) {
	s := newTestScheduler(t)
	runner := &fakeRunner{err: autosearch.ErrRunInProgress}
	require.NoError(t, RegisterPipelineTask(s, runner, "0 */6 * * *", false))

	entry := s.tasks[PipelineTaskID]
	require.NotNil(t, entry)
	assert.NoError(t, entry.config.Func(context.Background()))
	assert.Equal(t, autosearch.TriggerScheduled, runner.trigger)

	runner.err = errors.New("catalog down")
	assert.Error(t, entry.config.Func(context.Background()))
}

type fakePruner struct{ keep int }

func (f *fakePruner) Prune(_ context.Context, keep int) (int64, error) {
	f.keep = keep
	return 0, nil
}

func TestHistoryCleanupTask(t *testing.T) {
	s := newTestScheduler(t)
	pruner := &fakePruner{}
	require.NoError(t, RegisterHistoryCleanupTask(s, pruner, 50))

	require.NoError(t, s.tasks[HistoryCleanupTaskID].config.Func(context.Background()))
	assert.Equal(t, 50, pruner.keep)
}
