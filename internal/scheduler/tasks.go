package scheduler

import (
	"context"
	"errors"

	"github.com/cachegrab/cachegrab/internal/autosearch"
)

const (
	PipelineTaskID       = "pipeline"
	HistoryCleanupTaskID = "history-cleanup"
)

// PipelineRunner is the run entry point used by the pipeline task.
type PipelineRunner interface {
	Run(ctx context.Context, trigger autosearch.Trigger) (*autosearch.RunSummary, error)
}

// HistoryPruner trims stored runs.
type HistoryPruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// RegisterPipelineTask registers the acquisition run on the given cron
// expression. A run started by another trigger makes the tick a no-op.
func RegisterPipelineTask(sched *Scheduler, runner PipelineRunner, cron string, runOnStart bool) error {
	return sched.RegisterTask(TaskConfig{
		ID:          PipelineTaskID,
		Name:        "Acquisition Run",
		Description: "Collects catalog titles and commits the best cached releases",
		Cron:        cron,
		RunOnStart:  runOnStart,
		Func: func(ctx context.Context) error {
			_, err := runner.Run(ctx, autosearch.TriggerScheduled)
			if errors.Is(err, autosearch.ErrRunInProgress) {
				sched.logger.Info().Msg("Run already in progress, scheduled run skipped")
				return nil
			}
			return err
		},
	})
}

// RegisterHistoryCleanupTask registers a daily prune keeping the keep most
// recent runs.
func RegisterHistoryCleanupTask(sched *Scheduler, pruner HistoryPruner, keep int) error {
	return sched.RegisterTask(TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes stored runs beyond the retention count",
		Cron:        "0 2 * * *",
		Func: func(ctx context.Context) error {
			_, err := pruner.Prune(ctx, keep)
			return err
		},
	})
}
