// Package mediasoup implements media.Engine on top of mediasoup-go. Every
// router, transport, producer and consumer lives in a mediasoup worker
// process; this package only translates between the core's wire types and
// the library's.
package mediasoup

import (
	"context"
	"fmt"

	"github.com/dkeye/Conference/internal/media"
	"github.com/google/uuid"
	ms "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// WorkerBin is the path of the mediasoup-worker binary. A bare name is
	// looked up in PATH.
	WorkerBin string
}

type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

func (e *Engine) CreateWorker(ctx context.Context) (media.Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := ms.NewWorker(e.opts.WorkerBin)
	if err != nil {
		return nil, fmt.Errorf("%w: start worker %s: %w", media.ErrEngine, e.opts.WorkerBin, err)
	}
	wk := &worker{id: uuid.NewString(), w: w}
	log.Info().Str("module", "mediasoup").Str("worker", wk.id).Str("bin", e.opts.WorkerBin).Msg("worker started")
	return wk, nil
}

type worker struct {
	id string
	w  *ms.Worker
}

func (w *worker) ID() string { return w.id }

func (w *worker) CreateRouter(ctx context.Context, codecs []media.RtpCodecCapability) (media.Router, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mediaCodecs, err := convert[[]*ms.RtpCodecCapability](codecs)
	if err != nil {
		return nil, fmt.Errorf("%w: router codecs: %w", media.ErrEngine, err)
	}
	r, err := w.w.CreateRouter(&ms.RouterOptions{MediaCodecs: mediaCodecs})
	if err != nil {
		return nil, fmt.Errorf("%w: create router: %w", media.ErrEngine, err)
	}
	caps, err := convert[media.RtpCapabilities](r.RtpCapabilities())
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("%w: router capabilities: %w", media.ErrEngine, err)
	}
	log.Info().Str("module", "mediasoup").Str("router", r.Id()).Int("codecs", len(caps.Codecs)).Msg("router created")
	return &router{r: r, caps: caps}, nil
}

func (w *worker) Close() error {
	w.w.Close()
	log.Info().Str("module", "mediasoup").Str("worker", w.id).Msg("worker closed")
	return nil
}

type router struct {
	r    *ms.Router
	caps media.RtpCapabilities
}

func (r *router) ID() string                             { return r.r.Id() }
func (r *router) RtpCapabilities() media.RtpCapabilities { return r.caps }
func (r *router) Closed() bool                           { return r.r.Closed() }

func (r *router) Close() error {
	if err := r.r.Close(); err != nil {
		return fmt.Errorf("%w: close router: %w", media.ErrEngine, err)
	}
	return nil
}

func (r *router) CanConsume(producerID string, caps media.RtpCapabilities) bool {
	c, err := convert[ms.RtpCapabilities](caps)
	if err != nil {
		log.Debug().Err(err).Str("module", "mediasoup").Str("producer", producerID).Msg("bad rtp capabilities")
		return false
	}
	return r.r.CanConsume(producerID, &c)
}

func (r *router) CreateWebRtcTransport(ctx context.Context, opts media.TransportOptions) (media.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, err := convert[ms.WebRtcTransportOptions](webRtcTransportOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("%w: transport options: %w", media.ErrEngine, err)
	}
	t, err := r.r.CreateWebRtcTransport(&o)
	if err != nil {
		return nil, fmt.Errorf("%w: create transport: %w", media.ErrEngine, err)
	}

	out := &transport{t: t}
	data := t.Data().WebRtcTransportData
	if out.ice, err = convert[media.IceParameters](data.IceParameters); err == nil {
		if out.candidates, err = convert[[]media.IceCandidate](data.IceCandidates); err == nil {
			out.dtls, err = convert[media.DtlsParameters](data.DtlsParameters)
		}
	}
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("%w: transport parameters: %w", media.ErrEngine, err)
	}
	log.Debug().Str("module", "mediasoup").Str("router", r.r.Id()).Str("transport", t.Id()).Msg("transport created")
	return out, nil
}
