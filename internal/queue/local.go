package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/retry"
)

// JobStatus represents the current status of a local job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a Task plus its local execution bookkeeping.
type Job struct {
	Task
	Status      JobStatus     `json:"status"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Attempts    int           `json:"attempts"`
	Error       string        `json:"error,omitempty"`
}

// ErrQueueFull is the cause of Enqueue failures on a saturated LocalQueue.
var ErrQueueFull = errors.New("local queue is full")

// LocalQueue runs tasks on an in-process worker pool backed by a bounded channel.
type LocalQueue struct {
	jobs        chan *Job
	workers     int
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*Job
	history     []*Job
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	pending     sync.WaitGroup
	handler     Handler
	retryPolicy retry.Policy
	logger      *slog.Logger
}

// NewLocalQueue creates a queue with the given capacity and worker count.
func NewLocalQueue(maxSize, workers int, handler Handler) *LocalQueue {
	if maxSize <= 0 {
		maxSize = 100
	}
	if workers <= 0 {
		workers = 2
	}
	if handler == nil {
		panic("NewLocalQueue: handler is required")
	}
	return &LocalQueue{
		jobs:        make(chan *Job, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*Job),
		history:     make([]*Job, 0),
		historySize: 50,
		stopChan:    make(chan struct{}),
		handler:     handler,
		retryPolicy: retry.DefaultPolicy(),
		logger:      slog.Default(),
	}
}

// SetRetryPolicy replaces the retry policy.
func (q *LocalQueue) SetRetryPolicy(p retry.Policy) { q.retryPolicy = p }

// Start begins processing jobs with the configured number of workers.
func (q *LocalQueue) Start(ctx context.Context) {
	q.logger.Info("Starting local queue", "workers", q.workers, "max_size", q.maxSize)
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop signals the workers to exit and waits for running jobs to finish.
// Jobs still buffered are marked failed.
func (q *LocalQueue) Stop(_ context.Context) {
	q.stopOnce.Do(func() { close(q.stopChan) })
	q.wg.Wait()
	q.discardBuffered("local queue stopped")
}

// Drain blocks until every enqueued task has finished or ctx is done. Tasks
// only finish while workers run, so a queue that was never started waits for ctx.
// Enqueue must not run concurrently with Drain.
func (q *LocalQueue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Length returns the number of queued jobs.
func (q *LocalQueue) Length() int { return len(q.jobs) }

// Enqueue adds a task; it fails immediately when the queue is full.
func (q *LocalQueue) Enqueue(_ context.Context, task string, args TaskArgs, queueName string) error {
	if task == "" {
		return ferrors.ValidationError("task name is required").Build()
	}
	job := &Job{
		Task: Task{
			ID:         uuid.NewString(),
			Name:       task,
			Queue:      queueName,
			Args:       args,
			EnqueuedAt: time.Now(),
		},
		Status: JobQueued,
	}
	select {
	case <-q.stopChan:
		return ferrors.WrapError(errors.New("local queue stopped"), ferrors.CategoryQueue, "enqueue rejected").Build()
	default:
	}
	q.pending.Add(1)
	select {
	case q.jobs <- job:
		return nil
	default:
		q.pending.Done()
		return ferrors.WrapError(ErrQueueFull, ferrors.CategoryQueue, "enqueue rejected").
			Retryable().
			WithContext("max_size", q.maxSize).
			Build()
	}
}

// ActiveJobs returns copies of the currently running jobs.
func (q *LocalQueue) ActiveJobs() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.active))
	for _, j := range q.active {
		out = append(out, *j)
	}
	return out
}

// History returns copies of recently finished jobs, oldest first.
func (q *LocalQueue) History() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.history))
	for _, j := range q.history {
		out = append(out, *j)
	}
	return out
}

// JobSnapshot returns a copy of a job (active first, then history).
func (q *LocalQueue) JobSnapshot(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if j, ok := q.active[id]; ok {
		cp := *j
		return &cp, true
	}
	for _, j := range q.history {
		if j.ID == id {
			cp := *j
			return &cp, true
		}
	}
	return nil, false
}

func (q *LocalQueue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.discardBuffered(ctx.Err().Error())
			return
		case <-q.stopChan:
			q.discardBuffered("local queue stopped")
			return
		case job := <-q.jobs:
			if job != nil {
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

// discardBuffered fails every job left in the channel so Drain can return.
func (q *LocalQueue) discardBuffered(reason string) {
	for {
		select {
		case job := <-q.jobs:
			if job == nil {
				continue
			}
			now := time.Now()
			q.mu.Lock()
			job.Status = JobFailed
			job.Error = reason
			job.CompletedAt = &now
			q.addToHistory(job)
			q.mu.Unlock()
			q.logger.Warn("Discarding queued job", logfields.JobID(job.ID), logfields.Queue(job.Queue), "reason", reason)
			q.pending.Done()
		default:
			return
		}
	}
}

func (q *LocalQueue) processJob(ctx context.Context, job *Job, workerID string) {
	defer q.pending.Done()
	start := time.Now()
	q.mu.Lock()
	job.StartedAt = &start
	job.Status = JobRunning
	q.active[job.ID] = job
	q.mu.Unlock()

	q.logger.Debug("Job started", logfields.JobID(job.ID), logfields.Queue(job.Queue), "worker", workerID)
	err := q.execute(ctx, job)

	end := time.Now()
	q.mu.Lock()
	job.CompletedAt = &end
	job.Duration = end.Sub(start)
	delete(q.active, job.ID)
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobCompleted
	}
	q.addToHistory(job)
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("Job failed", logfields.JobID(job.ID), logfields.Error(err))
	}
}

func (q *LocalQueue) execute(ctx context.Context, job *Job) error {
	policy := q.retryPolicy
	retries := 0
	for {
		q.mu.Lock()
		job.Attempts++
		q.mu.Unlock()

		err := q.handler(ctx, &job.Task)
		if err == nil {
			return nil
		}
		if !ferrors.IsRetryable(err) || !policy.Allows(retries) {
			return err
		}
		retries++
		delay := policy.Delay(retries)
		q.logger.Warn("Transient task error, retrying",
			logfields.JobID(job.ID),
			"retry", retries,
			"max_retries", policy.MaxRetries,
			"delay", delay,
			logfields.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		case <-q.stopChan:
			return err
		}
	}
}

func (q *LocalQueue) addToHistory(job *Job) {
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}
