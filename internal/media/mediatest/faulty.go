// Package mediatest wraps a media.Engine with switchable failures and
// provides codec fixtures for tests that drive rooms end to end.
package mediatest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Conference/internal/media"
)

// Faults selects which engine calls fail. Fields are read on every call, so
// a test may flip them between steps.
type Faults struct {
	mu        sync.Mutex
	worker    bool
	router    bool
	transport int // fail the next n transport creations
	produce   map[media.Kind]bool

	afterProduce func(media.Producer)
	afterConsume func(media.Consumer)
}

func (f *Faults) FailWorker(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.worker = v
}

func (f *Faults) FailRouter(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.router = v
}

// FailTransports makes the next n CreateWebRtcTransport calls fail.
func (f *Faults) FailTransports(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transport = n
}

func (f *Faults) FailProduce(kind media.Kind, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.produce == nil {
		f.produce = make(map[media.Kind]bool)
	}
	f.produce[kind] = v
}

// AfterProduce runs fn with every producer the engine creates, before the
// caller sees it.
func (f *Faults) AfterProduce(fn func(media.Producer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterProduce = fn
}

// AfterConsume runs fn with every consumer the engine creates, before the
// caller sees it.
func (f *Faults) AfterConsume(fn func(media.Consumer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterConsume = fn
}

func (f *Faults) hooks() (func(media.Producer), func(media.Consumer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.afterProduce, f.afterConsume
}

func (f *Faults) takeTransport() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transport > 0 {
		f.transport--
		return true
	}
	return false
}

func (f *Faults) workerFails() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.worker
}

func (f *Faults) routerFails() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.router
}

func (f *Faults) produceFails(kind media.Kind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.produce[kind]
}

// Engine injects Faults into an inner engine and counts created routers.
type Engine struct {
	Inner  media.Engine
	Faults Faults

	routers atomic.Int32
	workers atomic.Int32
}

func NewEngine(inner media.Engine) *Engine {
	return &Engine{Inner: inner}
}

// Routers is the number of routers created so far.
func (e *Engine) Routers() int { return int(e.routers.Load()) }

func (e *Engine) Workers() int { return int(e.workers.Load()) }

func (e *Engine) CreateWorker(ctx context.Context) (media.Worker, error) {
	if e.Faults.workerFails() {
		return nil, fmt.Errorf("%w: injected worker failure", media.ErrEngine)
	}
	w, err := e.Inner.CreateWorker(ctx)
	if err != nil {
		return nil, err
	}
	e.workers.Add(1)
	return &faultyWorker{Worker: w, e: e}, nil
}

type faultyWorker struct {
	media.Worker
	e *Engine
}

func (w *faultyWorker) CreateRouter(ctx context.Context, codecs []media.RtpCodecCapability) (media.Router, error) {
	if w.e.Faults.routerFails() {
		return nil, fmt.Errorf("%w: injected router failure", media.ErrEngine)
	}
	r, err := w.Worker.CreateRouter(ctx, codecs)
	if err != nil {
		return nil, err
	}
	w.e.routers.Add(1)
	return &faultyRouter{Router: r, e: w.e}, nil
}

type faultyRouter struct {
	media.Router
	e *Engine
}

func (r *faultyRouter) CreateWebRtcTransport(ctx context.Context, opts media.TransportOptions) (media.Transport, error) {
	if r.e.Faults.takeTransport() {
		return nil, fmt.Errorf("%w: injected transport failure", media.ErrEngine)
	}
	t, err := r.Router.CreateWebRtcTransport(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &faultyTransport{Transport: t, e: r.e}, nil
}

type faultyTransport struct {
	media.Transport
	e *Engine
}

func (t *faultyTransport) Produce(ctx context.Context, opts media.ProduceOptions) (media.Producer, error) {
	if t.e.Faults.produceFails(opts.Kind) {
		return nil, fmt.Errorf("%w: injected produce failure", media.ErrEngine)
	}
	prod, err := t.Transport.Produce(ctx, opts)
	if err != nil {
		return nil, err
	}
	if fn, _ := t.e.Faults.hooks(); fn != nil {
		fn(prod)
	}
	return prod, nil
}

func (t *faultyTransport) Consume(ctx context.Context, opts media.ConsumeOptions) (media.Consumer, error) {
	c, err := t.Transport.Consume(ctx, opts)
	if err != nil {
		return nil, err
	}
	if _, fn := t.e.Faults.hooks(); fn != nil {
		fn(c)
	}
	return c, nil
}
