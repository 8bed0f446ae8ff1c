package mediatest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/dkeye/Conference/internal/media"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type memTransport struct {
	id         string
	router     *memRouter
	ice        media.IceParameters
	dtls       media.DtlsParameters
	candidates []media.IceCandidate

	mu        sync.Mutex
	connected bool
	remote    media.DtlsParameters
	nextMid   int
	producers map[string]*memProducer
	consumers map[string]*memConsumer
	closed    bool
}

func (t *memTransport) ID() string                           { return t.id }
func (t *memTransport) IceParameters() media.IceParameters   { return t.ice }
func (t *memTransport) IceCandidates() []media.IceCandidate  { return t.candidates }
func (t *memTransport) DtlsParameters() media.DtlsParameters { return t.dtls }

func (t *memTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Connect records the remote DTLS parameters. It may only be called once.
func (t *memTransport) Connect(ctx context.Context, dtls media.DtlsParameters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(dtls.Fingerprints) == 0 {
		return fmt.Errorf("%w: missing dtls fingerprints", media.ErrEngine)
	}
	switch dtls.Role {
	case "", "auto", "client", "server":
	default:
		return fmt.Errorf("%w: invalid dtls role %q", media.ErrEngine, dtls.Role)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("%w: transport %s", media.ErrClosed, t.id)
	}
	if t.connected {
		return fmt.Errorf("%w: connect() already called", media.ErrEngine)
	}
	t.connected = true
	t.remote = dtls
	log.Debug().Str("module", "mediatest").Str("transport", t.id).Str("role", dtls.Role).Msg("transport connected")
	return nil
}

func (t *memTransport) Produce(ctx context.Context, opts media.ProduceOptions) (media.Producer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(opts.RtpParameters.Codecs) == 0 {
		return nil, fmt.Errorf("%w: rtpParameters without codecs", media.ErrEngine)
	}
	for _, c := range opts.RtpParameters.Codecs {
		kind, ok := mimeKind(c.MimeType)
		if !ok || kind != opts.Kind {
			return nil, fmt.Errorf("%w: codec %s cannot carry %s", media.ErrEngine, c.MimeType, opts.Kind)
		}
		if _, ok := findCapability(c, t.router.caps); !ok {
			return nil, fmt.Errorf("%w: codec %s not enabled on router", media.ErrEngine, c.MimeType)
		}
	}

	p := &memProducer{
		id:        uuid.NewString(),
		kind:      opts.Kind,
		params:    opts.RtpParameters,
		transport: t,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: transport %s", media.ErrClosed, t.id)
	}
	t.producers[p.id] = p
	t.mu.Unlock()

	if err := t.router.addProducer(p); err != nil {
		t.forgetProducer(p.id)
		return nil, err
	}
	log.Debug().Str("module", "mediatest").Str("transport", t.id).Str("producer", p.id).Str("kind", string(p.kind)).Msg("producer created")
	return p, nil
}

func (t *memTransport) Consume(ctx context.Context, opts media.ConsumeOptions) (media.Consumer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := t.router.producer(opts.ProducerID)
	if !ok || p.Closed() {
		return nil, fmt.Errorf("%w: producer %s not found", media.ErrEngine, opts.ProducerID)
	}
	src := p.RtpParameters()
	capability, ok := findCapability(src.Codecs[0], opts.RtpCapabilities)
	if !ok {
		return nil, fmt.Errorf("%w: cannot consume producer %s", media.ErrEngine, p.id)
	}

	codec := src.Codecs[0]
	if capability.PreferredPayloadType != 0 {
		codec.PayloadType = capability.PreferredPayloadType
	}
	codec.RtcpFeedback = capability.RtcpFeedback

	cname := uuid.NewString()[:8]
	if src.Rtcp != nil && src.Rtcp.Cname != "" {
		cname = src.Rtcp.Cname
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: transport %s", media.ErrClosed, t.id)
	}
	mid := strconv.Itoa(t.nextMid)
	t.nextMid++
	c := &memConsumer{
		id:         uuid.NewString(),
		producerID: p.id,
		kind:       p.kind,
		transport:  t,
		paused:     opts.Paused,
		params: media.RtpParameters{
			Mid:       mid,
			Codecs:    []media.RtpCodecParameters{codec},
			Encodings: []media.RtpEncodingParameters{{Ssrc: rand.Uint32()}},
			Rtcp:      &media.RtcpParameters{Cname: cname, ReducedSize: true},
		},
	}
	t.consumers[c.id] = c
	t.mu.Unlock()

	if err := t.router.addConsumer(c); err != nil {
		t.forgetConsumer(c.id)
		return nil, err
	}
	log.Debug().Str("module", "mediatest").Str("transport", t.id).Str("consumer", c.id).Str("producer", p.id).Bool("paused", c.paused).Msg("consumer created")
	return c, nil
}

// Close closes every producer and consumer created on the transport.
func (t *memTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	producers := make([]*memProducer, 0, len(t.producers))
	for _, p := range t.producers {
		producers = append(producers, p)
	}
	consumers := make([]*memConsumer, 0, len(t.consumers))
	for _, c := range t.consumers {
		consumers = append(consumers, c)
	}
	t.mu.Unlock()

	for _, p := range producers {
		_ = p.Close()
	}
	for _, c := range consumers {
		_ = c.Close()
	}
	t.router.removeTransport(t.id)
	log.Debug().Str("module", "mediatest").Str("transport", t.id).Msg("transport closed")
	return nil
}

func (t *memTransport) forgetProducer(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.producers, id)
}

func (t *memTransport) forgetConsumer(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.consumers, id)
}
