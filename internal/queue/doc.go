// Package queue carries build tasks from the trigger to the workers.
//
// Two implementations share the Enqueuer contract: NATSQueue publishes to a
// NATS JetStream work-queue stream and consumes it with durable consumers;
// LocalQueue runs tasks on an in-process worker pool.
package queue
