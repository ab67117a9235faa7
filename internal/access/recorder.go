// Package access records product reads off the request path. Recording never
// blocks and never reports an error to the caller: when the buffer is full the
// event is dropped, and sink failures are only logged.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	ResultRecorded = "recorded"
	ResultDropped  = "dropped"
	ResultFailed   = "failed"

	defaultBuffer  = 1024
	defaultTimeout = 2 * time.Second
)

type Event struct {
	ProductID int64     `json:"productId"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}

type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// Observer is satisfied by observability.Prom.
type Observer interface {
	ObserveAccess(result string)
}

type Config struct {
	Buffer  int
	Timeout time.Duration // per sink write
}

type Recorder struct {
	events  chan Event
	sink    Sink
	log     *slog.Logger
	obs     Observer
	timeout time.Duration
}

func NewRecorder(cfg Config, sink Sink, log *slog.Logger, obs Observer) *Recorder {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Recorder{
		events:  make(chan Event, cfg.Buffer),
		sink:    sink,
		log:     log,
		obs:     obs,
		timeout: cfg.Timeout,
	}
}

// Record enqueues an access event and returns immediately.
func (r *Recorder) Record(productID int64, actor string) {
	ev := Event{ProductID: productID, Actor: actor, At: time.Now().UTC()}

	select {
	case r.events <- ev:
	default:
		r.observe(ResultDropped)
		r.log.Debug("access event dropped", "product_id", productID)
	}
}

// Run drains events until ctx is cancelled. Events already buffered at that
// point are still written, each within the per-write timeout; anything
// recorded after Run returns stays in the buffer.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush(ctx)
			return
		case ev := <-r.events:
			r.write(ctx, ev)
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	n := 0
	for {
		select {
		case ev := <-r.events:
			r.write(ctx, ev)
			n++
		default:
			if n > 0 {
				r.log.Info("access events flushed on shutdown", "count", n)
			}
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.observe(ResultFailed)
			r.log.Error("access sink panicked", "product_id", ev.ProductID, "panic", fmt.Sprint(rec))
		}
	}()

	// bounded by the per-write timeout, not by Run's lifetime
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.sink.Write(wctx, ev); err != nil {
		r.observe(ResultFailed)
		r.log.Warn("access sink write failed", "product_id", ev.ProductID, "err", err)
		return
	}

	r.observe(ResultRecorded)
}

func (r *Recorder) observe(result string) {
	if r.obs != nil {
		r.obs.ObserveAccess(result)
	}
}
