package mediasoup

import (
	"context"
	"fmt"

	"github.com/dkeye/Conference/internal/media"
	ms "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"
)

type transport struct {
	t          *ms.Transport
	ice        media.IceParameters
	candidates []media.IceCandidate
	dtls       media.DtlsParameters
}

func (t *transport) ID() string                           { return t.t.Id() }
func (t *transport) IceParameters() media.IceParameters   { return t.ice }
func (t *transport) IceCandidates() []media.IceCandidate  { return t.candidates }
func (t *transport) DtlsParameters() media.DtlsParameters { return t.dtls }
func (t *transport) Closed() bool                         { return t.t.Closed() }

func (t *transport) Connect(ctx context.Context, dtls media.DtlsParameters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := convert[ms.DtlsParameters](dtls)
	if err != nil {
		return fmt.Errorf("%w: dtls parameters: %w", media.ErrEngine, err)
	}
	if err := t.t.Connect(&ms.TransportConnectOptions{DtlsParameters: &d}); err != nil {
		return fmt.Errorf("%w: connect: %w", media.ErrEngine, err)
	}
	log.Debug().Str("module", "mediasoup").Str("transport", t.t.Id()).Str("role", dtls.Role).Msg("transport connected")
	return nil
}

func (t *transport) Produce(ctx context.Context, opts media.ProduceOptions) (media.Producer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params, err := convert[ms.RtpParameters](opts.RtpParameters)
	if err != nil {
		return nil, fmt.Errorf("%w: rtp parameters: %w", media.ErrEngine, err)
	}
	p, err := t.t.Produce(&ms.ProducerOptions{
		Kind:          ms.MediaKind(opts.Kind),
		RtpParameters: &params,
		AppData:       opts.AppData,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: produce %s: %w", media.ErrEngine, opts.Kind, err)
	}
	return &producer{p: p, kind: opts.Kind, params: opts.RtpParameters}, nil
}

// Consume creates the consumer the way the client expects to receive it:
// its RTP parameters come from the worker, already negotiated against caps.
func (t *transport) Consume(ctx context.Context, opts media.ConsumeOptions) (media.Consumer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caps, err := convert[ms.RtpCapabilities](opts.RtpCapabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: rtp capabilities: %w", media.ErrEngine, err)
	}
	c, err := t.t.Consume(&ms.ConsumerOptions{
		ProducerId:      opts.ProducerID,
		RtpCapabilities: &caps,
		Paused:          opts.Paused,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: consume %s: %w", media.ErrEngine, opts.ProducerID, err)
	}
	params, err := convert[media.RtpParameters](c.RtpParameters())
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: consumer rtp parameters: %w", media.ErrEngine, err)
	}
	return &consumer{c: c, kind: media.Kind(c.Kind()), params: params}, nil
}

// Close also closes every producer and consumer on the transport; the worker
// cascades it.
func (t *transport) Close() error {
	if err := t.t.Close(); err != nil {
		return fmt.Errorf("%w: close transport: %w", media.ErrEngine, err)
	}
	return nil
}

type producer struct {
	p      *ms.Producer
	kind   media.Kind
	params media.RtpParameters
}

func (p *producer) ID() string                         { return p.p.Id() }
func (p *producer) Kind() media.Kind                   { return p.kind }
func (p *producer) RtpParameters() media.RtpParameters { return p.params }
func (p *producer) Closed() bool                       { return p.p.Closed() }

func (p *producer) Close() error {
	if err := p.p.Close(); err != nil {
		return fmt.Errorf("%w: close producer: %w", media.ErrEngine, err)
	}
	return nil
}

type consumer struct {
	c      *ms.Consumer
	kind   media.Kind
	params media.RtpParameters
}

func (c *consumer) ID() string                         { return c.c.Id() }
func (c *consumer) ProducerID() string                 { return c.c.ProducerId() }
func (c *consumer) Kind() media.Kind                   { return c.kind }
func (c *consumer) RtpParameters() media.RtpParameters { return c.params }
func (c *consumer) Paused() bool                       { return c.c.Paused() }
func (c *consumer) Closed() bool                       { return c.c.Closed() }

func (c *consumer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.c.Resume(); err != nil {
		return fmt.Errorf("%w: resume consumer: %w", media.ErrEngine, err)
	}
	return nil
}

func (c *consumer) Close() error {
	if err := c.c.Close(); err != nil {
		return fmt.Errorf("%w: close consumer: %w", media.ErrEngine, err)
	}
	return nil
}
