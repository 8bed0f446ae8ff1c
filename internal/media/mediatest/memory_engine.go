package mediatest

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Conference/internal/media"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// MemoryEngine is an in-process media.Engine for tests. It keeps the router,
// transport, producer and consumer graph, negotiates codecs against client
// capabilities and hands out ICE/DTLS parameters backed by a pion
// certificate. It never opens a socket, so no media flows through it.
type MemoryEngine struct{}

func NewMemoryEngine() *MemoryEngine { return &MemoryEngine{} }

func (e *MemoryEngine) CreateWorker(ctx context.Context) (media.Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %w", media.ErrEngine, err)
	}
	cert, err := webrtc.GenerateCertificate(key)
	if err != nil {
		return nil, fmt.Errorf("%w: generate certificate: %w", media.ErrEngine, err)
	}
	fps, err := cert.GetFingerprints()
	if err != nil {
		return nil, fmt.Errorf("%w: certificate fingerprints: %w", media.ErrEngine, err)
	}
	w := &memWorker{
		id:      uuid.NewString(),
		routers: make(map[string]*memRouter),
	}
	for _, fp := range fps {
		w.fingerprints = append(w.fingerprints, media.DtlsFingerprint{Algorithm: fp.Algorithm, Value: fp.Value})
	}
	log.Info().Str("module", "mediatest").Str("worker", w.id).Msg("worker created")
	return w, nil
}

type memWorker struct {
	id           string
	fingerprints []media.DtlsFingerprint
	nextPort     atomic.Uint32

	mu      sync.Mutex
	routers map[string]*memRouter
	closed  bool
}

func (w *memWorker) ID() string { return w.id }

func (w *memWorker) CreateRouter(ctx context.Context, codecs []media.RtpCodecCapability) (media.Router, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caps, err := routerCapabilities(codecs)
	if err != nil {
		return nil, err
	}
	r := &memRouter{
		id:         uuid.NewString(),
		worker:     w,
		caps:       caps,
		transports: make(map[string]*memTransport),
		producers:  make(map[string]*memProducer),
		consumers:  make(map[string]map[string]*memConsumer),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("%w: worker %s", media.ErrClosed, w.id)
	}
	w.routers[r.id] = r
	log.Info().Str("module", "mediatest").Str("router", r.id).Int("codecs", len(caps.Codecs)).Msg("router created")
	return r, nil
}

func (w *memWorker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	routers := make([]*memRouter, 0, len(w.routers))
	for _, r := range w.routers {
		routers = append(routers, r)
	}
	w.mu.Unlock()

	for _, r := range routers {
		_ = r.Close()
	}
	log.Info().Str("module", "mediatest").Str("worker", w.id).Msg("worker closed")
	return nil
}

func (w *memWorker) forgetRouter(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.routers, id)
}

// allocatePort walks the configured range round-robin.
func (w *memWorker) allocatePort(lo, hi uint16) uint16 {
	if lo == 0 || hi < lo {
		return 0
	}
	span := uint32(hi-lo) + 1
	n := w.nextPort.Add(1) - 1
	return lo + uint16(n%span)
}
