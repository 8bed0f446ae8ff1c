package mediatest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Conference/internal/media"
)

type memProducer struct {
	id        string
	kind      media.Kind
	params    media.RtpParameters
	transport *memTransport
	closed    atomic.Bool
}

func (p *memProducer) ID() string                         { return p.id }
func (p *memProducer) Kind() media.Kind                   { return p.kind }
func (p *memProducer) RtpParameters() media.RtpParameters { return p.params }
func (p *memProducer) Closed() bool                       { return p.closed.Load() }

// Close also closes every consumer reading from the producer.
func (p *memProducer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, c := range p.transport.router.removeProducer(p.id) {
		_ = c.Close()
	}
	p.transport.forgetProducer(p.id)
	return nil
}

type memConsumer struct {
	id         string
	producerID string
	kind       media.Kind
	params     media.RtpParameters
	transport  *memTransport

	mu     sync.Mutex
	paused bool
	closed atomic.Bool
}

func (c *memConsumer) ID() string                         { return c.id }
func (c *memConsumer) ProducerID() string                 { return c.producerID }
func (c *memConsumer) Kind() media.Kind                   { return c.kind }
func (c *memConsumer) RtpParameters() media.RtpParameters { return c.params }
func (c *memConsumer) Closed() bool                       { return c.closed.Load() }

func (c *memConsumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *memConsumer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed.Load() {
		return fmt.Errorf("%w: consumer %s", media.ErrClosed, c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	return nil
}

func (c *memConsumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.transport.router.removeConsumer(c)
	c.transport.forgetConsumer(c.id)
	return nil
}
