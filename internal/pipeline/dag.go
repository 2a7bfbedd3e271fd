// Package pipeline provides a small in-process task DAG: named tasks with
// explicit dependencies, deterministic topological execution, and an
// optional schedule that re-runs the DAG at a fixed interval.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

// TaskFunc is the body of a task. The returned string is a short result
// message for logging and callbacks.
type TaskFunc func(ctx context.Context) (string, error)

// Task is one node of the DAG.
type Task struct {
	// Name uniquely identifies the task within its DAG.
	Name string
	// DependsOn lists task names that must complete before this task runs.
	DependsOn []string
	// Run is the task body.
	Run TaskFunc
}

// OnRunStartCallback is called when a DAG run begins.
type OnRunStartCallback func(dagName string, totalTasks int) error

// OnRunEndCallback is called when a DAG run ends (always called via defer).
type OnRunEndCallback func(dagName string, err error)

// OnTaskStartCallback is called before each task runs. taskIndex is the
// position in execution order.
type OnTaskStartCallback func(taskIndex int, taskName string, totalTasks int) error

// OnTaskEndCallback is called after each task finishes.
type OnTaskEndCallback func(taskIndex int, taskName string, message string, err error)

// LifecycleCallbacks holds all lifecycle callback functions for a DAG run.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart  *OnRunStartCallback
	OnRunEnd    *OnRunEndCallback
	OnTaskStart *OnTaskStartCallback
	OnTaskEnd   *OnTaskEndCallback
}

// DAG is a named set of tasks with dependencies. Tasks execute
// sequentially in topological order; ties are broken by the order tasks
// were added, so execution order is deterministic.
type DAG struct {
	name     string
	schedule time.Duration
	logger   *logger.Logger

	tasks map[string]Task
	added []string

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewDAG creates an empty DAG. A zero schedule means the DAG only runs on
// demand and cannot be resumed.
func NewDAG(name string, schedule time.Duration, log *logger.Logger) (*DAG, error) {
	if name == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "dag name is required")
	}

	return &DAG{
		name:     name,
		schedule: schedule,
		logger:   log,
		tasks:    make(map[string]Task),
		added:    []string{},
	}, nil
}

// Name returns the DAG name.
func (d *DAG) Name() string {
	return d.name
}

// AddTask adds a task to the DAG. Task names are unique; dependencies are
// validated at execution time so tasks can be added in any order.
func (d *DAG) AddTask(task Task) error {
	if task.Name == "" {
		return errors.New(errors.ErrCodeMissingParameter, "task name is required")
	}

	if task.Run == nil {
		return errors.Newf(errors.ErrCodeMissingParameter, "task %s has no run function", task.Name)
	}

	if _, exists := d.tasks[task.Name]; exists {
		return errors.Newf(errors.ErrCodeDuplicateTask, "task %s is already defined", task.Name)
	}

	d.tasks[task.Name] = task
	d.added = append(d.added, task.Name)

	return nil
}

// Order returns the execution order, or an error when a dependency is
// unknown or the dependency graph has a cycle.
func (d *DAG) Order() ([]string, error) {
	indegree := make(map[string]int, len(d.tasks))
	dependents := make(map[string][]string, len(d.tasks))

	for _, name := range d.added {
		task := d.tasks[name]
		indegree[name] = len(task.DependsOn)

		for _, dep := range task.DependsOn {
			if _, known := d.tasks[dep]; !known {
				return nil, errors.Newf(errors.ErrCodeTaskNotFound,
					"task %s depends on unknown task %s", name, dep)
			}

			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Kahn's algorithm. The ready queue keeps insertion order so equal
	// candidates always execute in the order they were added.
	var ready []string

	for _, name := range d.added {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(d.tasks))

	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		next := dependents[name]
		sort.SliceStable(next, func(i, j int) bool {
			return indexOf(d.added, next[i]) < indexOf(d.added, next[j])
		})

		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(d.tasks) {
		return nil, errors.Newf(errors.ErrCodeDependencyCycle,
			"dag %s has a dependency cycle", d.name)
	}

	return order, nil
}

// Execute runs every task once in topological order. The first task error
// aborts the run; remaining tasks do not execute.
func (d *DAG) Execute(ctx context.Context, callbacks LifecycleCallbacks) (err error) {
	order, err := d.Order()
	if err != nil {
		return err
	}

	if callbacks.OnRunEnd != nil {
		defer func() {
			(*callbacks.OnRunEnd)(d.name, err)
		}()
	}

	if callbacks.OnRunStart != nil {
		if err = (*callbacks.OnRunStart)(d.name, len(order)); err != nil {
			return fmt.Errorf("run start callback failed: %w", err)
		}
	}

	d.logger.Info("dag run started", zap.String("dag", d.name), zap.Int("tasks", len(order)))

	for i, name := range order {
		if ctx.Err() != nil {
			err = ctx.Err()

			return err
		}

		if callbacks.OnTaskStart != nil {
			if err = (*callbacks.OnTaskStart)(i, name, len(order)); err != nil {
				return fmt.Errorf("task start callback failed: %w", err)
			}
		}

		message, taskErr := d.tasks[name].Run(ctx)

		if callbacks.OnTaskEnd != nil {
			(*callbacks.OnTaskEnd)(i, name, message, taskErr)
		}

		if taskErr != nil {
			err = errors.Wrapf(errors.ErrCodeTaskFailed, taskErr, "task %s failed", name)
			d.logger.Error("dag task failed", zap.String("dag", d.name), zap.String("task", name), zap.Error(taskErr))

			return err
		}

		d.logger.Info("dag task finished",
			zap.String("dag", d.name),
			zap.String("task", name),
			zap.String("result", message),
		)
	}

	return nil
}

// Resume starts scheduled execution: the DAG runs immediately, then again
// every schedule interval, until Suspend is called or the context is
// cancelled. Run errors are logged and do not stop the schedule.
func (d *DAG) Resume(ctx context.Context, callbacks LifecycleCallbacks) error {
	if d.schedule <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "dag %s has no schedule", d.name)
	}

	// Validate the graph up front so a broken DAG fails on Resume rather
	// than on its first tick.
	if _, err := d.Order(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()

		return errors.Newf(errors.ErrCodePipelineRunning, "dag %s is already resumed", d.name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	d.cancel = cancel
	d.stopped = stopped
	d.mu.Unlock()

	d.logger.Info("dag resumed", zap.String("dag", d.name), zap.Duration("schedule", d.schedule))

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(d.schedule)
		defer ticker.Stop()

		for {
			if err := d.Execute(runCtx, callbacks); err != nil {
				d.logger.Error("scheduled dag run failed", zap.String("dag", d.name), zap.Error(err))
			}

			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

// Suspend stops scheduled execution and waits for an in-flight run to
// finish. Suspending a DAG that is not resumed is a no-op.
func (d *DAG) Suspend() {
	d.mu.Lock()
	cancel := d.cancel
	stopped := d.stopped
	d.cancel = nil
	d.stopped = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-stopped

	d.logger.Info("dag suspended", zap.String("dag", d.name))
}

func indexOf(list []string, value string) int {
	for i, item := range list {
		if item == value {
			return i
		}
	}

	return len(list)
}
