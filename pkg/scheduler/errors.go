package scheduler

import "errors"

var (
	// ErrEmptyID rejects a task submitted without an ID.
	ErrEmptyID = errors.New("scheduler: task id is empty")

	// ErrNilOp rejects a task submitted without an operation.
	ErrNilOp = errors.New("scheduler: task has no operation")

	// ErrSelfDependency rejects a task that lists itself in Depends.
	ErrSelfDependency = errors.New("scheduler: task depends on itself")

	// ErrDuplicateTask rejects a task whose ID is already submitted.
	ErrDuplicateTask = errors.New("scheduler: duplicate task id")

	// ErrRunStarted rejects submissions after Run has been called.
	ErrRunStarted = errors.New("scheduler: run already started")

	// ErrUnknownDependency fails a task that depends on an ID that was
	// never submitted. Detected before any task starts.
	ErrUnknownDependency = errors.New("scheduler: dependency not submitted")

	// ErrDependencyCycle fails every task inside a dependency cycle.
	// Detected before any task starts.
	ErrDependencyCycle = errors.New("scheduler: dependency cycle")

	// ErrDependencyFailed fails a task whose dependency finished with
	// an error. The task's own Op is never invoked.
	ErrDependencyFailed = errors.New("scheduler: dependency failed")

	// ErrUnsatisfiable fails tasks that can no longer become ready.
	// Pre-validation should make this unreachable.
	ErrUnsatisfiable = errors.New("scheduler: unsatisfiable dependencies")
)
