package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docsbuild/internal/config"
	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/docsbuild/internal/logfields"
	"git.home.luguber.info/inful/docsbuild/internal/retry"
)

// NATSQueue publishes tasks to a JetStream work-queue stream and consumes them
// with one durable consumer per queue name.
type NATSQueue struct {
	conn         *nats.Conn
	js           jetstream.JetStream
	stream       string
	prefix       string
	defaultQueue string
	policy       retry.Policy
	logger       *slog.Logger
}

// NewNATSQueue connects to cfg.NATSURL and creates or updates the task stream.
func NewNATSQueue(ctx context.Context, cfg config.QueueConfig, policy retry.Policy) (*NATSQueue, error) {
	conn, err := nats.Connect(cfg.NATSURL, nats.Name("docsbuild"))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryQueue, "failed to connect to NATS").
			Retryable().WithContext("url", cfg.NATSURL).Build()
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q := &NATSQueue{
		conn:         conn,
		js:           js,
		stream:       valueOr(cfg.Stream, config.DefaultStream),
		prefix:       valueOr(cfg.SubjectPrefix, config.DefaultSubjectPrefix),
		defaultQueue: valueOr(cfg.DefaultQueue, config.DefaultQueueName),
		policy:       policy,
		logger:       slog.Default(),
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:        q.stream,
		Description: "docsbuild build tasks",
		Subjects:    []string{q.prefix + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryQueue, "failed to create task stream").
			WithContext("stream", q.stream).Build()
	}

	q.logger.Info("NATS task queue initialized",
		logfields.URL(cfg.NATSURL), "stream", q.stream, "subject_prefix", q.prefix)
	return q, nil
}

// Subject returns the subject tasks for queueName are published on.
func (q *NATSQueue) Subject(queueName string) string {
	return subjectFor(q.prefix, q.queueOrDefault(queueName))
}

func (q *NATSQueue) queueOrDefault(queueName string) string {
	if queueName == "" {
		return q.defaultQueue
	}
	return queueName
}

// Enqueue publishes a task with a unique message ID for JetStream deduplication.
func (q *NATSQueue) Enqueue(ctx context.Context, task string, args TaskArgs, queueName string) error {
	queueName = q.queueOrDefault(queueName)
	t := Task{ID: uuid.NewString(), Name: task, Queue: queueName, Args: args, EnqueuedAt: time.Now()}
	data, err := json.Marshal(&t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := q.js.Publish(pctx, q.Subject(queueName), data, jetstream.WithMsgID(t.ID)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryQueue, "failed to publish task").
			Retryable().
			WithContext("queue", queueName).
			WithContext("task", task).
			Build()
	}
	q.logger.Debug("Published task", logfields.JobID(t.ID), logfields.Queue(queueName), "task", task)
	return nil
}

// Consume processes tasks from queueName until ctx is cancelled.
func (q *NATSQueue) Consume(ctx context.Context, queueName string, handler Handler) error {
	queueName = q.queueOrDefault(queueName)
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		Durable:       durableName(queueName),
		FilterSubject: q.Subject(queueName),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    q.policy.MaxRetries + 1,
		AckWait:       30 * time.Minute,
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryQueue, "failed to create consumer").
			WithContext("queue", queueName).Build()
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) { q.handle(ctx, msg, handler) })
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryQueue, "failed to start consumer").
			WithContext("queue", queueName).Build()
	}
	q.logger.Info("Consuming tasks", logfields.Queue(queueName))
	<-ctx.Done()
	cc.Stop()
	return nil
}

func (q *NATSQueue) handle(ctx context.Context, msg jetstream.Msg, handler Handler) {
	var task Task
	if err := json.Unmarshal(msg.Data(), &task); err != nil {
		q.logger.Error("Discarding malformed task", logfields.Error(err))
		_ = msg.Term()
		return
	}
	deliveries := 1
	if meta, err := msg.Metadata(); err == nil {
		deliveries = int(meta.NumDelivered)
	}

	err := handler(ctx, &task)
	action, delay := decide(err, deliveries, q.policy)
	switch action {
	case ackMessage:
		err = msg.Ack()
	case nakMessage:
		q.logger.Warn("Task failed, redelivering",
			logfields.JobID(task.ID), "delivery", deliveries, "delay", delay, logfields.Error(err))
		err = msg.NakWithDelay(delay)
	default:
		q.logger.Error("Task failed permanently",
			logfields.JobID(task.ID), "delivery", deliveries, logfields.Error(err))
		err = msg.Term()
	}
	if err != nil {
		q.logger.Warn("Unable to settle task message", logfields.JobID(task.ID), logfields.Error(err))
	}
}

// Close drains and closes the NATS connection.
func (q *NATSQueue) Close() error {
	if q.conn != nil {
		return q.conn.Drain()
	}
	return nil
}

type settleAction int

const (
	ackMessage settleAction = iota
	nakMessage
	termMessage
)

// decide maps a handler result on the given delivery (1-based) to a settle action.
func decide(err error, deliveries int, policy retry.Policy) (settleAction, time.Duration) {
	if err == nil {
		return ackMessage, 0
	}
	retriesSoFar := deliveries - 1
	if ferrors.IsRetryable(err) && policy.Allows(retriesSoFar) {
		return nakMessage, policy.Delay(retriesSoFar + 1)
	}
	return termMessage, 0
}

func subjectFor(prefix, queueName string) string {
	return prefix + "." + queueName
}

// durableName maps a queue name onto the characters allowed in consumer names.
func durableName(queueName string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return "docsbuild_" + r.Replace(queueName)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
