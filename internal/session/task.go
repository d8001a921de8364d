package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/errors"
)

// TaskStatus is the lifecycle of a generation task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskFulfilled TaskStatus = "fulfilled"
	TaskRejected  TaskStatus = "rejected"
)

// Task is the handle for one generation request.
type Task struct {
	ID        string
	MeetingID int64
	StartedAt time.Time

	done chan struct{}

	mu      sync.Mutex
	status  TaskStatus
	result  *ai.Result
	err     error
	applied bool
}

func newTask(meetingID int64) *Task {
	return &Task{
		ID:        ulid.Make().String(),
		MeetingID: meetingID,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
		status:    TaskPending,
	}
}

// Done is closed when the task settles.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Status returns the current status.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Applied reports whether the result was written to the meeting. A fulfilled
// task whose session moved on (reopened, closed) is not applied.
func (t *Task) Applied() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applied
}

// Err returns the rejection error, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task settles or ctx is done.
func (t *Task) Wait(ctx context.Context) (*ai.Result, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, errors.NewCancelled("wait for generation")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

func (t *Task) fulfill(res *ai.Result, applied bool) {
	t.mu.Lock()
	t.status = TaskFulfilled
	t.result = res
	t.applied = applied
	t.mu.Unlock()
	close(t.done)
}

func (t *Task) reject(err error) {
	t.mu.Lock()
	t.status = TaskRejected
	t.err = err
	t.mu.Unlock()
	close(t.done)
}
