// Package scheduler runs registered tasks on cron schedules for daemon mode.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskConfig contains configuration for a scheduled task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // Cron expression: "0 0 * * *" for midnight daily
	Func        TaskFunc
	RunOnStart  bool // Execute immediately on startup
}

// TaskInfo contains information about a scheduled task for API responses.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	Running     bool       `json:"running"`
}

// taskEntry holds internal task state.
type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	lastErr string
	running bool
}

// Scheduler manages background scheduled tasks.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger
	tasks  map[string]*taskEntry
	mu     sync.RWMutex
	wg     sync.WaitGroup

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

// New creates a new scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskEntry),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// RegisterTask registers a new scheduled task. A tick that fires while the
// previous one is still running is skipped.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task with ID %q already registered", config.ID)
	}
	if config.Func == nil {
		return fmt.Errorf("task %q has no function", config.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() { s.executeTask(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{
		config: config,
		job:    job,
	}

	s.logger.Info().
		Str("id", config.ID).
		Str("name", config.Name).
		Str("cron", config.Cron).
		Bool("runOnStart", config.RunOnStart).
		Msg("Registered task")

	return nil
}

// claim marks a task running. It returns nil when the task is unknown or
// already running.
func (s *Scheduler) claim(taskID string) *taskEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.tasks[taskID]
	if !exists || entry.running {
		return nil
	}
	entry.running = true
	return entry
}

// executeTask runs a task and updates its state.
func (s *Scheduler) executeTask(taskID string) {
	entry := s.claim(taskID)
	if entry == nil {
		s.logger.Debug().Str("id", taskID).Msg("Task already running, tick skipped")
		return
	}
	s.run(entry)
}

func (s *Scheduler) run(entry *taskEntry) {
	startTime := time.Now()
	s.logger.Info().
		Str("id", entry.config.ID).
		Str("name", entry.config.Name).
		Msg("Starting task")

	err := entry.config.Func(s.ctx)

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &startTime
	entry.lastErr = ""
	if err != nil {
		entry.lastErr = err.Error()
	}
	s.mu.Unlock()

	duration := time.Since(startTime)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("id", entry.config.ID).
			Str("name", entry.config.Name).
			Dur("duration", duration).
			Msg("Task failed")
	} else {
		s.logger.Info().
			Str("id", entry.config.ID).
			Str("name", entry.config.Name).
			Dur("duration", duration).
			Msg("Task completed")
	}
}

// Start starts the scheduler and runs any tasks configured with RunOnStart.
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Starting scheduler")

	s.gocron.Start()

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.mu.RLock()
	tasksToRun := make([]string, 0)
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			tasksToRun = append(tasksToRun, id)
		}
	}
	s.mu.RUnlock()

	for _, taskID := range tasksToRun {
		s.goExecute(taskID)
	}

	return nil
}

func (s *Scheduler) goExecute(taskID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeTask(taskID)
	}()
}

// Stop cancels running tasks, waits for them and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	s.cancel()

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	var err error
	if started {
		err = s.gocron.Shutdown()
	}
	s.wg.Wait()
	return err
}

// RunNow manually triggers a task to run immediately.
func (s *Scheduler) RunNow(taskID string) error {
	entry := s.claim(taskID)
	if entry == nil {
		s.mu.RLock()
		_, exists := s.tasks[taskID]
		s.mu.RUnlock()
		if !exists {
			return fmt.Errorf("task %q: %w", taskID, ErrTaskNotFound)
		}
		return fmt.Errorf("task %q: %w", taskID, ErrTaskRunning)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(entry)
	}()
	return nil
}

// ListTasks returns information about all registered tasks, sorted by id.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		tasks = append(tasks, s.info(entry))
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// GetTask returns information about a specific task.
func (s *Scheduler) GetTask(taskID string) (*TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %q: %w", taskID, ErrTaskNotFound)
	}

	info := s.info(entry)
	return &info, nil
}

func (s *Scheduler) info(entry *taskEntry) TaskInfo {
	info := TaskInfo{
		ID:          entry.config.ID,
		Name:        entry.config.Name,
		Description: entry.config.Description,
		Cron:        entry.config.Cron,
		LastRun:     entry.lastRun,
		LastError:   entry.lastErr,
		Running:     entry.running,
	}
	if nextRun, err := entry.job.NextRun(); err == nil && !nextRun.IsZero() {
		info.NextRun = &nextRun
	}
	return info
}
