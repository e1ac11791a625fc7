package tcc

import (
	"golang.org/x/sync/errgroup"
)

// TaskRunner runs independent tasks concurrently with join-all semantics.
// Unlike errgroup.WithContext, a failing task does not cancel its siblings;
// the Confirm/Cancel fan-out relies on every task running to completion so the
// transaction is only submitted once all participants have resolved.
type TaskRunner struct {
	maxThreadCount int
	eg             errgroup.Group
}

// NewTaskRunner returns a runner limited to maxThreadCount concurrent tasks.
// A non-positive count means unbounded.
func NewTaskRunner(maxThreadCount int) *TaskRunner {
	tr := &TaskRunner{
		maxThreadCount: maxThreadCount,
	}
	if maxThreadCount > 0 {
		tr.eg.SetLimit(maxThreadCount)
	}
	return tr
}

// Go schedules a task. Blocks when the thread limit is reached.
func (tr *TaskRunner) Go(task func() error) {
	tr.eg.Go(task)
}

// Wait blocks until every scheduled task finished, then returns the first
// error encountered, if any.
func (tr *TaskRunner) Wait() error {
	return tr.eg.Wait()
}
