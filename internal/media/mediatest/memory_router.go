package mediatest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Conference/internal/media"
	"github.com/google/uuid"
	"github.com/pion/randutil"
	"github.com/rs/zerolog/log"
)

const (
	iceUfragLen = 16
	icePwdLen   = 32
	iceRunes    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type memRouter struct {
	id     string
	worker *memWorker
	caps   media.RtpCapabilities

	mu         sync.RWMutex
	transports map[string]*memTransport
	producers  map[string]*memProducer
	// consumers indexes live consumers by the producer they read from.
	consumers map[string]map[string]*memConsumer
	closed    bool
}

func (r *memRouter) ID() string { return r.id }

func (r *memRouter) RtpCapabilities() media.RtpCapabilities { return r.caps }

func (r *memRouter) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *memRouter) CreateWebRtcTransport(ctx context.Context, opts media.TransportOptions) (media.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ufrag, err := randutil.GenerateCryptoRandomString(iceUfragLen, iceRunes)
	if err != nil {
		return nil, fmt.Errorf("%w: ice ufrag: %w", media.ErrEngine, err)
	}
	pwd, err := randutil.GenerateCryptoRandomString(icePwdLen, iceRunes)
	if err != nil {
		return nil, fmt.Errorf("%w: ice pwd: %w", media.ErrEngine, err)
	}

	t := &memTransport{
		id:        uuid.NewString(),
		router:    r,
		ice:       media.IceParameters{UsernameFragment: ufrag, Password: pwd, IceLite: true},
		dtls:      media.DtlsParameters{Role: "auto", Fingerprints: r.worker.fingerprints},
		producers: make(map[string]*memProducer),
		consumers: make(map[string]*memConsumer),
	}
	t.candidates = candidatesFor(opts, r.worker.allocatePort(opts.PortMin, opts.PortMax))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: router %s", media.ErrClosed, r.id)
	}
	r.transports[t.id] = t
	log.Debug().Str("module", "mediatest").Str("router", r.id).Str("transport", t.id).Msg("transport created")
	return t, nil
}

func candidatesFor(opts media.TransportOptions, port uint16) []media.IceCandidate {
	ip := opts.AnnouncedIP
	if ip == "" {
		ip = opts.ListenIP
	}
	udp := media.IceCandidate{Foundation: "udpcandidate", Priority: 1076302079, IP: ip, Protocol: "udp", Port: port, Type: "host"}
	tcp := media.IceCandidate{Foundation: "tcpcandidate", Priority: 1076276479, IP: ip, Protocol: "tcp", Port: port, Type: "host"}

	var out []media.IceCandidate
	switch {
	case opts.EnableUDP && opts.EnableTCP && !opts.PreferUDP:
		out = append(out, tcp, udp)
	case opts.EnableUDP && opts.EnableTCP:
		out = append(out, udp, tcp)
	case opts.EnableTCP:
		out = append(out, tcp)
	default:
		out = append(out, udp)
	}
	return out
}

func (r *memRouter) CanConsume(producerID string, caps media.RtpCapabilities) bool {
	r.mu.RLock()
	p, ok := r.producers[producerID]
	r.mu.RUnlock()
	if !ok || p.Closed() {
		return false
	}
	codecs := p.RtpParameters().Codecs
	if len(codecs) == 0 {
		return false
	}
	_, ok = findCapability(codecs[0], caps)
	return ok
}

func (r *memRouter) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	transports := make([]*memTransport, 0, len(r.transports))
	for _, t := range r.transports {
		transports = append(transports, t)
	}
	r.mu.Unlock()

	for _, t := range transports {
		_ = t.Close()
	}
	r.worker.forgetRouter(r.id)
	log.Info().Str("module", "mediatest").Str("router", r.id).Msg("router closed")
	return nil
}

func (r *memRouter) producer(id string) (*memProducer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *memRouter) addProducer(p *memProducer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("%w: router %s", media.ErrClosed, r.id)
	}
	r.producers[p.id] = p
	return nil
}

// removeProducer returns the consumers that were reading from the producer.
func (r *memRouter) removeProducer(id string) []*memConsumer {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, id)
	byID := r.consumers[id]
	delete(r.consumers, id)
	out := make([]*memConsumer, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	return out
}

func (r *memRouter) addConsumer(c *memConsumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("%w: router %s", media.ErrClosed, r.id)
	}
	if _, ok := r.producers[c.producerID]; !ok {
		return fmt.Errorf("%w: producer %s", media.ErrClosed, c.producerID)
	}
	set, ok := r.consumers[c.producerID]
	if !ok {
		set = make(map[string]*memConsumer)
		r.consumers[c.producerID] = set
	}
	set[c.id] = c
	return nil
}

func (r *memRouter) removeConsumer(c *memConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.consumers[c.producerID]; ok {
		delete(set, c.id)
		if len(set) == 0 {
			delete(r.consumers, c.producerID)
		}
	}
}

func (r *memRouter) removeTransport(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transports, id)
}
