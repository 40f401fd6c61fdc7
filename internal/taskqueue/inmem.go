// internal/taskqueue/inmem.go
package taskqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InmemBroker is a channel-backed Broker for tests and single-process local
// runs. It preserves the envelope protocol exactly; only durability differs
// from the Kafka transport.
type InmemBroker struct {
	mu      sync.Mutex
	queues  map[string]chan *Envelope
	pending atomic.Int64
}

func NewInmemBroker() *InmemBroker {
	return &InmemBroker{queues: make(map[string]chan *Envelope)}
}

func (b *InmemBroker) channel(queue string) chan *Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[queue]
	if !ok {
		ch = make(chan *Envelope, 1024)
		b.queues[queue] = ch
	}
	return ch
}

func (b *InmemBroker) Publish(ctx context.Context, queue string, env *Envelope) error {
	b.pending.Add(1)
	select {
	case b.channel(queue) <- env:
		return nil
	case <-ctx.Done():
		b.pending.Add(-1)
		return ctx.Err()
	}
}

func (b *InmemBroker) Run(ctx context.Context, queue string, fn func(ctx context.Context, env *Envelope) error) error {
	ch := b.channel(queue)
	for {
		select {
		case env := <-ch:
			// Failures here mean fn could not republish; with an in-memory
			// transport there is nothing durable to fall back to, so the
			// envelope is dropped after accounting.
			_ = fn(ctx, env)
			b.pending.Add(-1)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitIdle blocks until every published envelope (including retries and
// chain successors) has been consumed, or the timeout elapses. Test helper.
func (b *InmemBroker) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.pending.Load() == 0 {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return b.pending.Load() == 0
}
