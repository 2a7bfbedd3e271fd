package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/openquant/momentum-pipeline/internal/logger"
	"github.com/openquant/momentum-pipeline/pkg/errors"
)

type DAGTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func TestDAGSuite(t *testing.T) {
	suite.Run(t, new(DAGTestSuite))
}

func (suite *DAGTestSuite) SetupTest() {
	log, err := logger.NewDevelopmentLogger()
	suite.Require().NoError(err)
	suite.logger = log
}

func noop(ctx context.Context) (string, error) {
	return "ok", nil
}

func (suite *DAGTestSuite) newDAG(schedule time.Duration) *DAG {
	dag, err := NewDAG("signal_pipeline", schedule, suite.logger)
	suite.Require().NoError(err)

	return dag
}

func (suite *DAGTestSuite) TestAddTaskValidation() {
	dag := suite.newDAG(0)

	suite.Error(dag.AddTask(Task{Name: "", Run: noop}))
	suite.Error(dag.AddTask(Task{Name: "features"}))

	suite.NoError(dag.AddTask(Task{Name: "features", Run: noop}))

	err := dag.AddTask(Task{Name: "features", Run: noop})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDuplicateTask))
}

func (suite *DAGTestSuite) TestUnknownDependency() {
	dag := suite.newDAG(0)
	suite.NoError(dag.AddTask(Task{Name: "signals", DependsOn: []string{"missing"}, Run: noop}))

	err := dag.Execute(context.Background(), LifecycleCallbacks{})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeTaskNotFound))
}

func (suite *DAGTestSuite) TestCycleDetection() {
	dag := suite.newDAG(0)
	suite.NoError(dag.AddTask(Task{Name: "a", DependsOn: []string{"b"}, Run: noop}))
	suite.NoError(dag.AddTask(Task{Name: "b", DependsOn: []string{"a"}, Run: noop}))

	_, err := dag.Order()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDependencyCycle))
}

func (suite *DAGTestSuite) TestDeterministicOrder() {
	dag := suite.newDAG(0)
	suite.NoError(dag.AddTask(Task{Name: "signals", DependsOn: []string{"features", "register"}, Run: noop}))
	suite.NoError(dag.AddTask(Task{Name: "register", Run: noop}))
	suite.NoError(dag.AddTask(Task{Name: "features", Run: noop}))

	// Roots run in the order they were added; dependents only after all
	// of their dependencies.
	for i := 0; i < 5; i++ {
		order, err := dag.Order()
		suite.NoError(err)
		suite.Equal([]string{"register", "features", "signals"}, order)
	}
}

func (suite *DAGTestSuite) TestExecuteRunsTasksInOrder() {
	dag := suite.newDAG(0)

	var ran []string
	record := func(name string) TaskFunc {
		return func(ctx context.Context) (string, error) {
			ran = append(ran, name)

			return name + " done", nil
		}
	}

	suite.NoError(dag.AddTask(Task{Name: "features", Run: record("features")}))
	suite.NoError(dag.AddTask(Task{Name: "register", DependsOn: []string{"features"}, Run: record("register")}))
	suite.NoError(dag.AddTask(Task{Name: "signals", DependsOn: []string{"register"}, Run: record("signals")}))

	var started, ended []string

	onTaskStart := OnTaskStartCallback(func(taskIndex int, taskName string, totalTasks int) error {
		suite.Equal(3, totalTasks)
		started = append(started, taskName)

		return nil
	})
	onTaskEnd := OnTaskEndCallback(func(taskIndex int, taskName string, message string, err error) {
		suite.NoError(err)
		ended = append(ended, message)
	})

	var runEnded bool

	onRunEnd := OnRunEndCallback(func(dagName string, err error) {
		suite.Equal("signal_pipeline", dagName)
		suite.NoError(err)
		runEnded = true
	})

	err := dag.Execute(context.Background(), LifecycleCallbacks{
		OnTaskStart: &onTaskStart,
		OnTaskEnd:   &onTaskEnd,
		OnRunEnd:    &onRunEnd,
	})
	suite.NoError(err)
	suite.Equal([]string{"features", "register", "signals"}, ran)
	suite.Equal([]string{"features", "register", "signals"}, started)
	suite.Equal([]string{"features done", "register done", "signals done"}, ended)
	suite.True(runEnded)
}

func (suite *DAGTestSuite) TestFailureAbortsRun() {
	dag := suite.newDAG(0)

	var ran []string

	suite.NoError(dag.AddTask(Task{Name: "features", Run: func(ctx context.Context) (string, error) {
		ran = append(ran, "features")

		return "", errors.New(errors.ErrCodeDataLoadFailed, "no parquet file")
	}}))
	suite.NoError(dag.AddTask(Task{Name: "signals", DependsOn: []string{"features"}, Run: func(ctx context.Context) (string, error) {
		ran = append(ran, "signals")

		return "", nil
	}}))

	var endErr error

	onRunEnd := OnRunEndCallback(func(dagName string, err error) {
		endErr = err
	})

	err := dag.Execute(context.Background(), LifecycleCallbacks{OnRunEnd: &onRunEnd})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeTaskFailed))
	suite.Equal([]string{"features"}, ran)
	suite.Error(endErr)
}

func (suite *DAGTestSuite) TestExecuteHonorsContext() {
	dag := suite.newDAG(0)
	suite.NoError(dag.AddTask(Task{Name: "features", Run: noop}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dag.Execute(ctx, LifecycleCallbacks{})
	suite.ErrorIs(err, context.Canceled)
}

func (suite *DAGTestSuite) TestResumeAndSuspend() {
	dag := suite.newDAG(5 * time.Millisecond)

	var runs atomic.Int64

	suite.NoError(dag.AddTask(Task{Name: "features", Run: func(ctx context.Context) (string, error) {
		runs.Add(1)

		return "ok", nil
	}}))

	suite.NoError(dag.Resume(context.Background(), LifecycleCallbacks{}))

	suite.Eventually(func() bool {
		return runs.Load() >= 2
	}, 2*time.Second, time.Millisecond)

	dag.Suspend()
	after := runs.Load()

	time.Sleep(20 * time.Millisecond)
	suite.Equal(after, runs.Load())

	// Suspending twice is a no-op.
	dag.Suspend()
}

func (suite *DAGTestSuite) TestResumeTwiceFails() {
	dag := suite.newDAG(time.Hour)
	suite.NoError(dag.AddTask(Task{Name: "features", Run: noop}))

	suite.NoError(dag.Resume(context.Background(), LifecycleCallbacks{}))
	defer dag.Suspend()

	err := dag.Resume(context.Background(), LifecycleCallbacks{})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePipelineRunning))
}

func (suite *DAGTestSuite) TestResumeWithoutSchedule() {
	dag := suite.newDAG(0)
	suite.NoError(dag.AddTask(Task{Name: "features", Run: noop}))

	err := dag.Resume(context.Background(), LifecycleCallbacks{})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
