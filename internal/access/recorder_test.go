package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSink struct {
	mu      sync.Mutex
	writeFn func(ctx context.Context, ev Event) error
	got     []Event
}

func (f *fakeSink) Write(ctx context.Context, ev Event) error {
	f.mu.Lock()
	f.got = append(f.got, ev)
	f.mu.Unlock()

	if f.writeFn != nil {
		return f.writeFn(ctx, ev)
	}
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveAccess(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[result]++
}

func (o *countingObserver) get(result string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[result]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestRecorder_DeliversEvents(t *testing.T) {
	sink := &fakeSink{}
	obs := &countingObserver{}
	r := NewRecorder(Config{Buffer: 8}, sink, discardLogger(), obs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Record(42, "alice")

	waitFor(t, func() bool { return obs.get(ResultRecorded) == 1 })

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.got[0].ProductID != 42 || sink.got[0].Actor != "alice" {
		t.Fatalf("unexpected event %+v", sink.got[0])
	}
}

func TestRecorder_SinkErrorIsSwallowed(t *testing.T) {
	sink := &fakeSink{writeFn: func(ctx context.Context, ev Event) error {
		return errors.New("redis down")
	}}
	obs := &countingObserver{}
	r := NewRecorder(Config{Buffer: 8}, sink, discardLogger(), obs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Record(1, "alice")
	r.Record(2, "alice")

	waitFor(t, func() bool { return obs.get(ResultFailed) == 2 })
}

func TestRecorder_SinkPanicDoesNotStopWorker(t *testing.T) {
	calls := 0
	sink := &fakeSink{writeFn: func(ctx context.Context, ev Event) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil
	}}
	obs := &countingObserver{}
	r := NewRecorder(Config{Buffer: 8}, sink, discardLogger(), obs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Record(1, "alice")
	r.Record(2, "alice")

	waitFor(t, func() bool { return obs.get(ResultRecorded) == 1 && obs.get(ResultFailed) == 1 })
}

func TestRecorder_FullBufferDropsWithoutBlocking(t *testing.T) {
	sink := &fakeSink{}
	obs := &countingObserver{}
	// worker never started: buffer fills up after one event
	r := NewRecorder(Config{Buffer: 1}, sink, discardLogger(), obs)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Record(int64(i), "alice")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Record blocked on a full buffer")
	}

	if got := obs.get(ResultDropped); got != 9 {
		t.Fatalf("got %d dropped, want 9", got)
	}
	if sink.count() != 0 {
		t.Fatalf("sink should not have been called")
	}
}

func TestRecorder_FlushesBufferedEventsOnShutdown(t *testing.T) {
	sink := &fakeSink{writeFn: func(ctx context.Context, ev Event) error {
		return ctx.Err()
	}}
	obs := &countingObserver{}
	r := NewRecorder(Config{Buffer: 8}, sink, discardLogger(), obs)

	for i := int64(1); i <= 3; i++ {
		r.Record(i, "alice")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	if got := obs.get(ResultRecorded); got != 3 {
		t.Fatalf("got %d recorded, want 3 (failed=%d)", got, obs.get(ResultFailed))
	}
	if sink.count() != 3 {
		t.Fatalf("sink saw %d events, want 3", sink.count())
	}
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	ok := &fakeSink{}
	bad := &fakeSink{writeFn: func(ctx context.Context, ev Event) error { return errors.New("nope") }}

	err := MultiSink{ok, bad}.Write(context.Background(), Event{ProductID: 1})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if ok.count() != 1 || bad.count() != 1 {
		t.Fatalf("every sink should be called once")
	}
}
