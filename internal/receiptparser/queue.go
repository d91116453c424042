package receiptparser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrQueueClosed is returned by Submit after Shutdown.
var ErrQueueClosed = errors.New("parse queue is shut down")

type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

type Job struct {
	ReceiptID uuid.UUID
	FilePath  string
}

// TaskStatus is the in-memory outcome of one submitted job. The receipt row
// stays the source of truth; this only answers "what happened to task X"
// for as long as the process remembers it.
type TaskStatus struct {
	ID         string     `json:"id"`
	ReceiptID  uuid.UUID  `json:"receiptId"`
	State      TaskState  `json:"state"`
	Error      string     `json:"error,omitempty"`
	QueuedAt   time.Time  `json:"queuedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Parser is what the queue runs for each job.
type Parser interface {
	Parse(ctx context.Context, receiptID uuid.UUID, filePath string) error
}

type task struct {
	id  string
	job Job
}

// Queue runs parse jobs on a fixed pool of workers. Submit never blocks the
// caller: when the buffer is full the job gets its own goroutine.
type Queue struct {
	parser    Parser
	log       zerolog.Logger
	workers   int
	retention time.Duration

	ch       chan task
	wg       sync.WaitGroup
	overflow sync.WaitGroup
	once     sync.Once

	mu     sync.Mutex
	closed bool
	tasks  map[string]*TaskStatus
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan task, n)
		}
	}
}

// WithRetention sets how long finished task outcomes are remembered.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retention = d
		}
	}
}

func NewQueue(parser Parser, log zerolog.Logger, opts ...Option) *Queue {
	q := &Queue{
		parser:    parser,
		log:       log.With().Str("component", "parse_queue").Logger(),
		workers:   4,
		retention: time.Hour,
		ch:        make(chan task, 64),
		tasks:     make(map[string]*TaskStatus),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				for t := range q.ch {
					q.run(workerID, t)
				}
			}(i + 1)
		}
	})
}

// Submit schedules job and returns its task id.
func (q *Queue) Submit(job Job) (string, error) {
	t := task{id: uuid.NewString(), job: job}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}
	q.pruneLocked(time.Now())
	q.tasks[t.id] = &TaskStatus{
		ID:        t.id,
		ReceiptID: job.ReceiptID,
		State:     TaskQueued,
		QueuedAt:  time.Now(),
	}

	select {
	case q.ch <- t:
	default:
		q.log.Warn().Str("receipt_id", job.ReceiptID.String()).Msg("parse queue full, running job outside the pool")
		q.overflow.Add(1)
		go func() {
			defer q.overflow.Done()
			q.run(0, t)
		}()
	}
	return t.id, nil
}

// Status returns the outcome of a task submitted within the retention window.
func (q *Queue) Status(id string) (TaskStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.tasks[id]
	if !ok {
		return TaskStatus{}, false
	}
	return *st, true
}

func (q *Queue) run(workerID int, t task) {
	q.setState(t.id, TaskRunning, nil)

	err := q.parser.Parse(context.Background(), t.job.ReceiptID, t.job.FilePath)
	if err != nil {
		q.log.Error().Err(err).Int("worker_id", workerID).Str("task_id", t.id).
			Str("receipt_id", t.job.ReceiptID.String()).Msg("parse task failed")
		q.setState(t.id, TaskFailed, err)
		return
	}
	q.setState(t.id, TaskSucceeded, nil)
}

func (q *Queue) setState(id string, state TaskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.tasks[id]
	if !ok {
		return
	}
	st.State = state
	if err != nil {
		st.Error = err.Error()
	}
	if state == TaskSucceeded || state == TaskFailed {
		now := time.Now()
		st.FinishedAt = &now
	}
}

func (q *Queue) pruneLocked(now time.Time) {
	for id, st := range q.tasks {
		if st.FinishedAt != nil && now.Sub(*st.FinishedAt) > q.retention {
			delete(q.tasks, id)
		}
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to end, whichever comes first.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
		q.overflow.Wait()
	}()

	select {
	case <-ctx.Done():
		q.log.Warn().Msg("parse queue shutdown interrupted")
		return ctx.Err()
	case <-done:
		q.log.Info().Msg("parse queue drained")
		return nil
	}
}
