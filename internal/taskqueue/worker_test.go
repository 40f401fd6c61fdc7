// internal/taskqueue/worker_test.go
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(name string) int {
	n := 0
	for _, c := range r.snapshot() {
		if c == name {
			n++
		}
	}
	return n
}

func startWorker(t *testing.T, w *Worker, queues ...string) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx, queues...) }()
	return cancel
}

func task(name, queue string) Task {
	return Task{Name: name, Queue: queue, Payload: json.RawMessage(`{}`), MaxAttempts: 3, Timeout: time.Second}
}

func TestChainRunsStepsInOrder(t *testing.T) {
	broker := NewInmemBroker()
	w := NewWorker(broker, NewInmemDeduper(), time.Millisecond, 1)
	rec := &recorder{}

	for _, name := range []string{"a", "b", "c"} {
		w.Handle(name, func(ctx context.Context, _ json.RawMessage) error {
			rec.add(name)
			return nil
		})
	}
	w.Handle("comp", func(ctx context.Context, _ json.RawMessage) error {
		rec.add("comp")
		return nil
	})
	defer startWorker(t, w, "q")()

	q := NewQueue(broker)
	comp := task("comp", "q")
	if err := q.EnqueueChain(context.Background(), []Task{task("a", "q"), task("b", "q"), task("c", "q")}, &comp); err != nil {
		t.Fatalf("EnqueueChain: %v", err)
	}
	if !broker.WaitIdle(5 * time.Second) {
		t.Fatal("broker did not drain")
	}

	got := rec.snapshot()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestRetryBudgetThenCompensation(t *testing.T) {
	broker := NewInmemBroker()
	w := NewWorker(broker, NewInmemDeduper(), time.Millisecond, 1)
	rec := &recorder{}

	w.Handle("boom", func(ctx context.Context, _ json.RawMessage) error {
		rec.add("boom")
		return errors.New("transient failure")
	})
	w.Handle("next", func(ctx context.Context, _ json.RawMessage) error {
		rec.add("next")
		return nil
	})
	w.Handle("comp", func(ctx context.Context, _ json.RawMessage) error {
		rec.add("comp")
		return nil
	})
	defer startWorker(t, w, "q")()

	q := NewQueue(broker)
	comp := task("comp", "q")
	if err := q.EnqueueChain(context.Background(), []Task{task("boom", "q"), task("next", "q")}, &comp); err != nil {
		t.Fatalf("EnqueueChain: %v", err)
	}
	if !broker.WaitIdle(5 * time.Second) {
		t.Fatal("broker did not drain")
	}

	if got := rec.count("boom"); got != 3 {
		t.Errorf("failing task ran %d times, want 3", got)
	}
	if got := rec.count("next"); got != 0 {
		t.Errorf("successor ran %d times, want 0", got)
	}
	if got := rec.count("comp"); got != 1 {
		t.Errorf("compensation ran %d times, want 1", got)
	}
}

func TestNoRetryEndsTaskWithoutCompensation(t *testing.T) {
	broker := NewInmemBroker()
	w := NewWorker(broker, NewInmemDeduper(), time.Millisecond, 1)
	rec := &recorder{}

	w.Handle("fatal", func(ctx context.Context, _ json.RawMessage) error {
		rec.add("fatal")
		return NoRetry(errors.New("aggregate gone"))
	})
	w.Handle("comp", func(ctx context.Context, _ json.RawMessage) error {
		rec.add("comp")
		return nil
	})
	defer startWorker(t, w, "q")()

	q := NewQueue(broker)
	comp := task("comp", "q")
	if err := q.EnqueueChain(context.Background(), []Task{task("fatal", "q")}, &comp); err != nil {
		t.Fatalf("EnqueueChain: %v", err)
	}
	if !broker.WaitIdle(5 * time.Second) {
		t.Fatal("broker did not drain")
	}

	if got := rec.count("fatal"); got != 1 {
		t.Errorf("task ran %d times, want 1", got)
	}
	if got := rec.count("comp"); got != 0 {
		t.Errorf("compensation ran %d times, want 0", got)
	}
}

// publishRecorder captures publishes without consuming them, for driving
// process directly.
type publishRecorder struct {
	mu        sync.Mutex
	published []*Envelope
}

func (b *publishRecorder) Publish(_ context.Context, _ string, env *Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, env)
	return nil
}

func (b *publishRecorder) Run(ctx context.Context, _ string, _ func(context.Context, *Envelope) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCompensationDispatchedOncePerChain(t *testing.T) {
	broker := &publishRecorder{}
	w := NewWorker(broker, NewInmemDeduper(), time.Millisecond, 1)
	w.Handle("boom", func(ctx context.Context, _ json.RawMessage) error {
		return errors.New("still failing")
	})

	comp := task("comp", "q")
	env := &Envelope{
		ID:        "env-1",
		Task:      task("boom", "q"),
		Attempt:   3, // final attempt
		ChainID:   "chain-1",
		OnAbandon: &comp,
	}

	// The final failed attempt delivered twice: only the first dispatches the
	// compensation task.
	for i := 0; i < 2; i++ {
		if err := w.process(context.Background(), env); err != nil {
			t.Fatalf("process #%d: %v", i+1, err)
		}
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.published) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(broker.published))
	}
	if broker.published[0].Task.Name != "comp" {
		t.Errorf("published task = %q, want comp", broker.published[0].Task.Name)
	}
	if broker.published[0].ChainID != "chain-1" {
		t.Errorf("compensation chain id = %q, want chain-1", broker.published[0].ChainID)
	}
}

func TestDelayedTaskWaitsForNotBefore(t *testing.T) {
	broker := NewInmemBroker()
	w := NewWorker(broker, NewInmemDeduper(), time.Millisecond, 1)

	done := make(chan time.Time, 1)
	w.Handle("later", func(ctx context.Context, _ json.RawMessage) error {
		done <- time.Now()
		return nil
	})
	defer startWorker(t, w, "q")()

	delay := 50 * time.Millisecond
	start := time.Now()
	q := NewQueue(broker)
	err := q.Enqueue(context.Background(), Task{
		Name: "later", Queue: "q", Payload: json.RawMessage(`{}`),
		MaxAttempts: 1, Timeout: time.Second, Delay: delay,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case ran := <-done:
		if elapsed := ran.Sub(start); elapsed < delay {
			t.Errorf("task ran after %v, want at least %v", elapsed, delay)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delayed task never ran")
	}
}

func TestEnqueueRejectsUnnamedTask(t *testing.T) {
	q := NewQueue(NewInmemBroker())
	if err := q.Enqueue(context.Background(), Task{Queue: "q"}); err == nil {
		t.Error("expected error for task without a name")
	}
	if err := q.EnqueueChain(context.Background(), nil, nil); err == nil {
		t.Error("expected error for empty chain")
	}
}
