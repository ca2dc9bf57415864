package sim

import "context"

// A TaskFunc is the body of a cooperative task. It must suspend only through
// the blocking operations offered by this package (phase waits, lock
// acquisition, waiter awaits) and must return promptly once ctx is canceled.
type TaskFunc func(ctx context.Context) error

// A Task identifies one cooperative unit of execution inside a Scheduler.
type Task struct {
	name    string
	tracked bool
}

// Name returns the name the task was registered under.
func (t *Task) Name() string {
	return t.name
}

// Tracked tells whether the completion of this task contributes to the
// end-of-run condition.
func (t *Task) Tracked() bool {
	return t.tracked
}

type taskCtxKey struct{}

// TaskFromContext returns the task executing the given context, or nil if the
// context does not belong to a scheduler task.
func TaskFromContext(ctx context.Context) *Task {
	t, _ := ctx.Value(taskCtxKey{}).(*Task)
	return t
}
