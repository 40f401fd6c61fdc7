// internal/taskqueue/queue.go
package taskqueue

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Broker is the transport under the queue: Kafka in production, channels in
// tests and local mode.
type Broker interface {
	Publish(ctx context.Context, queue string, env *Envelope) error

	// Run consumes one queue until ctx is cancelled, invoking fn for every
	// delivered envelope. fn returning nil acknowledges the message.
	Run(ctx context.Context, queue string, fn func(ctx context.Context, env *Envelope) error) error
}

// Queue is the producer-side contract: enqueue a single task, or a dependent
// chain with a compensation task to run if the chain is abandoned.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	EnqueueChain(ctx context.Context, tasks []Task, onAbandon *Task) error
}

type queue struct {
	broker Broker
}

func NewQueue(broker Broker) Queue {
	return &queue{broker: broker}
}

func (q *queue) Enqueue(ctx context.Context, t Task) error {
	if t.Name == "" || t.Queue == "" {
		return errors.New("taskqueue: task needs a name and a queue")
	}
	return q.broker.Publish(ctx, t.Queue, newEnvelope(t))
}

// EnqueueChain publishes only the head task; the worker publishes each
// successor after the predecessor succeeds, so steps of one chain execute in
// strict sequence.
func (q *queue) EnqueueChain(ctx context.Context, tasks []Task, onAbandon *Task) error {
	if len(tasks) == 0 {
		return errors.New("taskqueue: empty chain")
	}
	env := newEnvelope(tasks[0])
	env.ChainID = uuid.NewString()
	env.Pending = tasks[1:]
	env.OnAbandon = onAbandon
	return q.broker.Publish(ctx, tasks[0].Queue, env)
}
