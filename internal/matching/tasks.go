package matching

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of background work. Failures are logged and dropped; the
// queue never retries and never reports back to the submitter.
type Task struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// TaskQueue decouples best-effort work (behavioral ingestion, implicit
// preference refresh) from the request path. Submit never blocks the
// caller: when the queue is full the task is dropped and counted.
type TaskQueue struct {
	tasks   chan Task
	wg      sync.WaitGroup
	timeout time.Duration

	closeOnce sync.Once
}

// NewTaskQueue starts workers draining a buffered queue. Each task runs
// under its own timeout so a stuck storage call can't wedge a worker.
func NewTaskQueue(workers, buffer int, timeout time.Duration) *TaskQueue {
	if workers < 1 {
		workers = 1
	}

	q := &TaskQueue{
		tasks:   make(chan Task, buffer),
		timeout: timeout,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()

	for task := range q.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := task.Run(ctx); err != nil {
			log.Printf("background task %s (%s) failed: %v", task.Name, task.ID, err)
			RecordTaskFailure(task.Name)
		}
		cancel()
	}
}

// Submit enqueues a task, returning its id, or false if the queue is full.
func (q *TaskQueue) Submit(name string, run func(ctx context.Context) error) (string, bool) {
	task := Task{
		ID:   uuid.NewString(),
		Name: name,
		Run:  run,
	}

	select {
	case q.tasks <- task:
		return task.ID, true
	default:
		log.Printf("background queue full, dropping task %s", name)
		RecordTaskDropped(name)
		return "", false
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (q *TaskQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.tasks)
	})
	q.wg.Wait()
}
