package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/raulk/clock"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"sagekit/lib/timer"
)

var (
	ErrDuplicateTask = errors.New("duplicate task")
	ErrUnknownTask   = errors.New("unknown upstream task")
	ErrCycle         = errors.New("task dependencies form a cycle")
)

var taskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sagekit_workflow_task_total",
	Help: "Task attempts by outcome",
}, []string{"pipeline", "task", "outcome"})

// RunContext is what a task sees of the run it belongs to.
type RunContext struct {
	RunID  string
	Store  Store
	Logger *zap.Logger
	// Attempt starts at 1.
	Attempt int
}

type TaskFunc func(ctx context.Context, rc RunContext) error

type Task struct {
	ID       string
	Upstream []string
	// Retries is the number of attempts after the first one fails.
	Retries    int
	RetryDelay time.Duration
	Run        TaskFunc
}

// TaskError is returned by Run for the task that exhausted its retries.
type TaskError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed after %d attempts: %v", e.TaskID, e.Attempts, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type Result struct {
	RunID     string
	Succeeded []string
	// Resumed are the tasks a previous attempt of the same run completed.
	Resumed []string
	// Skipped are the tasks never started because an earlier task failed.
	Skipped []string
}

// Pipeline runs tasks one at a time in dependency order. Tasks added first
// run first among those whose upstream tasks are done.
type Pipeline struct {
	name   string
	tasks  []Task
	index  map[string]int
	store  Store
	clk    clock.Clock
	logger *zap.Logger
}

func NewPipeline(name string, store Store, clk clock.Clock, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		name:   name,
		index:  map[string]int{},
		store:  store,
		clk:    clk,
		logger: logger.With(zap.String("pipeline", name)),
	}
}

func (p *Pipeline) Add(t Task) error {
	if t.ID == "" || t.Run == nil {
		return fmt.Errorf("task must have an id and a run function")
	}
	if _, ok := p.index[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	if t.Retries < 0 {
		t.Retries = 0
	}
	p.index[t.ID] = len(p.tasks)
	p.tasks = append(p.tasks, t)
	return nil
}

// Order returns the tasks in the order Run executes them.
func (p *Pipeline) Order() ([]string, error) {
	order, err := p.order()
	if err != nil {
		return nil, err
	}
	return lo.Map(order, func(t Task, _ int) string { return t.ID }), nil
}

func (p *Pipeline) order() ([]Task, error) {
	pending := make(map[string]int, len(p.tasks))
	downstream := make(map[string][]string, len(p.tasks))
	for _, t := range p.tasks {
		for _, up := range lo.Uniq(t.Upstream) {
			if _, ok := p.index[up]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownTask, t.ID, up)
			}
			downstream[up] = append(downstream[up], t.ID)
		}
		pending[t.ID] = len(lo.Uniq(t.Upstream))
	}
	order := make([]Task, 0, len(p.tasks))
	done := make(map[string]bool, len(p.tasks))
	for len(order) < len(p.tasks) {
		progressed := false
		for _, t := range p.tasks {
			if done[t.ID] || pending[t.ID] > 0 {
				continue
			}
			done[t.ID] = true
			order = append(order, t)
			for _, d := range downstream[t.ID] {
				pending[d]--
			}
			progressed = true
			break
		}
		if !progressed {
			stuck := lo.Filter(p.tasks, func(t Task, _ int) bool { return !done[t.ID] })
			return nil, fmt.Errorf("%w: %v", ErrCycle, lo.Map(stuck, func(t Task, _ int) string { return t.ID }))
		}
	}
	return order, nil
}

// Run executes every task once for runID. It stops at the first task that
// fails all of its attempts and returns a *TaskError for it. Tasks that
// completed in an earlier Run with the same runID and store are not rerun.
func (p *Pipeline) Run(ctx context.Context, runID string) (Result, error) {
	res := Result{RunID: runID}
	order, err := p.order()
	if err != nil {
		return res, err
	}
	logger := p.logger.With(zap.String("run", runID))
	logger.Info("starting run", zap.Int("tasks", len(order)))
	for i, t := range order {
		if p.completed(ctx, runID, t.ID) {
			logger.Info("task already completed", zap.String("task", t.ID))
			res.Resumed = append(res.Resumed, t.ID)
			continue
		}
		if err := p.runTask(ctx, runID, t, logger); err != nil {
			res.Skipped = lo.Map(order[i+1:], func(t Task, _ int) string { return t.ID })
			logger.Error("run failed", zap.String("task", t.ID), zap.Strings("skipped", res.Skipped), zap.Error(err))
			return res, err
		}
		res.Succeeded = append(res.Succeeded, t.ID)
		if err := p.store.Put(ctx, runID, completedKey(t.ID), []byte(p.clk.Now().UTC().Format(time.RFC3339))); err != nil {
			logger.Warn("failed to mark task completed", zap.String("task", t.ID), zap.Error(err))
		}
	}
	logger.Info("run finished")
	return res, nil
}

func completedKey(taskID string) string {
	return "_completed:" + taskID
}

func (p *Pipeline) completed(ctx context.Context, runID, taskID string) bool {
	_, err := p.store.Get(ctx, runID, completedKey(taskID))
	return err == nil
}

func (p *Pipeline) runTask(ctx context.Context, runID string, t Task, logger *zap.Logger) error {
	defer timer.Start("workflow." + t.ID).Stop()
	logger = logger.With(zap.String("task", t.ID))
	var err error
	attempts := t.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && t.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return &TaskError{TaskID: t.ID, Attempts: attempt - 1, Err: ctx.Err()}
			case <-p.clk.After(t.RetryDelay):
			}
		}
		timer.Record(ctx, fmt.Sprintf("%s:%d:start", t.ID, attempt))
		err = t.Run(ctx, RunContext{RunID: runID, Store: p.store, Logger: logger, Attempt: attempt})
		if err == nil {
			timer.Record(ctx, fmt.Sprintf("%s:%d:done", t.ID, attempt))
			taskOutcomes.WithLabelValues(p.name, t.ID, "success").Inc()
			return nil
		}
		timer.Record(ctx, fmt.Sprintf("%s:%d:failed", t.ID, attempt))
		taskOutcomes.WithLabelValues(p.name, t.ID, "failure").Inc()
		logger.Warn("task attempt failed", zap.Int("attempt", attempt), zap.Int("attempts", attempts), zap.Error(err))
		if ctx.Err() != nil {
			return &TaskError{TaskID: t.ID, Attempts: attempt, Err: err}
		}
	}
	return &TaskError{TaskID: t.ID, Attempts: attempts, Err: err}
}
