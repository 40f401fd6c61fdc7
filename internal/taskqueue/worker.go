// internal/taskqueue/worker.go
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"fulfillment/internal/pkg/logger"
)

// HandlerFunc executes one task attempt. Returning nil acknowledges the task
// and advances its chain; returning an error consumes one attempt from the
// retry budget. Wrap with NoRetry for errors that must end the task
// immediately (missing aggregate, malformed payload).
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Deduper guards actions that must happen once across redeliveries.
type Deduper interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const abandonDedupTTL = 24 * time.Hour

// Worker pulls envelopes off the broker and drives handlers through the
// retry / chain / compensation protocol.
type Worker struct {
	broker      Broker
	dedup       Deduper
	handlers    map[string]HandlerFunc
	retryDelay  time.Duration
	concurrency int
}

func NewWorker(broker Broker, dedup Deduper, retryDelay time.Duration, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		broker:      broker,
		dedup:       dedup,
		handlers:    make(map[string]HandlerFunc),
		retryDelay:  retryDelay,
		concurrency: concurrency,
	}
}

// Handle registers the handler for a task name. Not safe to call after Run.
func (w *Worker) Handle(name string, fn HandlerFunc) {
	w.handlers[name] = fn
}

// Run consumes the given queues until ctx is cancelled. Each queue gets
// `concurrency` consumer goroutines; with the Kafka broker these join one
// consumer group and split the partitions between them.
func (w *Worker) Run(ctx context.Context, queues ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		for i := 0; i < w.concurrency; i++ {
			g.Go(func() error {
				return w.broker.Run(ctx, q, w.process)
			})
		}
	}
	return g.Wait()
}

func (w *Worker) process(ctx context.Context, env *Envelope) error {
	if err := w.waitNotBefore(ctx, env); err != nil {
		return err
	}

	handler, ok := w.handlers[env.Task.Name]
	if !ok {
		logger.Ctx(ctx).Error().Str("task", env.Task.Name).Msg("no handler registered, dropping task")
		return nil
	}

	tracer := otel.Tracer("taskqueue")
	ctx, span := tracer.Start(ctx, "task."+env.Task.Name)
	span.SetAttributes(
		attribute.String("task.id", env.ID),
		attribute.Int("task.attempt", env.Attempt),
		attribute.String("task.queue", env.Task.Queue),
	)
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, env.Task.Timeout)
	err := handler(attemptCtx, env.Task.Payload)
	cancel()

	if err == nil {
		return w.advanceChain(ctx, env)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "task attempt failed")

	if IsNoRetry(err) {
		logger.Ctx(ctx).Error().Err(err).Str("task", env.Task.Name).Msg("task ended, not retryable")
		return nil
	}

	if env.Attempt < env.Task.MaxAttempts {
		logger.Ctx(ctx).Warn().Err(err).
			Str("task", env.Task.Name).
			Int("attempt", env.Attempt).
			Int("max_attempts", env.Task.MaxAttempts).
			Msg("task attempt failed, retrying")
		retry := *env
		retry.Attempt = env.Attempt + 1
		retry.NotBefore = time.Now().Add(w.retryDelay)
		return w.broker.Publish(ctx, env.Task.Queue, &retry)
	}

	return w.abandon(ctx, env, err)
}

// advanceChain publishes the next pending task of the chain, carrying the
// chain tail and compensation forward.
func (w *Worker) advanceChain(ctx context.Context, env *Envelope) error {
	if len(env.Pending) == 0 {
		return nil
	}
	next := newEnvelope(env.Pending[0])
	next.ChainID = env.ChainID
	next.Pending = env.Pending[1:]
	next.OnAbandon = env.OnAbandon
	return w.broker.Publish(ctx, next.Task.Queue, next)
}

// abandon runs after a task exhausts its attempt budget. The compensation
// task is dispatched exactly once per chain, guarded by the deduper, so
// redelivery of the final failed attempt cannot double-compensate.
func (w *Worker) abandon(ctx context.Context, env *Envelope, cause error) error {
	logger.Ctx(ctx).Error().Err(cause).
		Str("task", env.Task.Name).
		Str("chain_id", env.ChainID).
		Msg("task abandoned after exhausting retries")

	if env.OnAbandon == nil {
		return nil
	}

	key := "taskq:abandon:" + env.ChainID
	first, err := w.dedup.Once(ctx, key, abandonDedupTTL)
	if err != nil {
		// Claim failed; let the broker redeliver so compensation is not lost.
		return err
	}
	if !first {
		logger.Ctx(ctx).Info().Str("chain_id", env.ChainID).Msg("compensation already dispatched for chain")
		return nil
	}

	comp := newEnvelope(*env.OnAbandon)
	comp.ChainID = env.ChainID
	return w.broker.Publish(ctx, comp.Task.Queue, comp)
}

func (w *Worker) waitNotBefore(ctx context.Context, env *Envelope) error {
	d := time.Until(env.NotBefore)
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// noRetryError marks an error as terminal for the task.
type noRetryError struct {
	err error
}

func (e *noRetryError) Error() string { return e.err.Error() }
func (e *noRetryError) Unwrap() error { return e.err }

// NoRetry wraps err so the worker ends the task without consuming further
// attempts and without dispatching compensation.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return &noRetryError{err: err}
}

func IsNoRetry(err error) bool {
	var nr *noRetryError
	return errors.As(err, &nr)
}
