package app

import (
	"context"
	"errors"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const maxFanOutWorkers = 8

// Delivery is a set of consumers created for another participant that has
// to be pushed to that participant's connection.
type Delivery struct {
	To        domain.ParticipantID
	Consumers core.ParticipantConsumers
}

// Ready marks id ready and links it with every other participant:
// id consumes their current producers, and they consume id's producers.
// The first result is the set created for id, the second what has to be
// pushed to the others.
func (r *Room) Ready(ctx context.Context, id domain.ParticipantID) ([]core.ParticipantConsumers, []Delivery, error) {
	p, ok := r.Participant(id)
	if !ok {
		return nil, nil, domain.ErrParticipantNotFound
	}
	if err := p.MarkReady(); err != nil {
		return nil, nil, err
	}
	others := r.Others(id)

	own := make([]core.ParticipantConsumers, 0, len(others))
	for _, q := range others {
		if pc := r.consumeFrom(ctx, p, q, q.Producers()); !pc.Empty() {
			own = append(own, pc)
		}
	}

	deliveries := r.fanOut(ctx, p, p.Producers(), others)
	log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("participant", string(id)).Int("received", len(own)).Int("delivered", len(deliveries)).Msg("participant ready")
	return own, deliveries, nil
}

// Produce creates a producer for id. When id is already ready the new
// producer is fanned out to the rest of the room right away.
func (r *Room) Produce(ctx context.Context, id domain.ParticipantID, kind media.Kind, params media.RtpParameters) (string, []Delivery, error) {
	p, ok := r.Participant(id)
	if !ok {
		return "", nil, domain.ErrParticipantNotFound
	}
	prod, err := p.Produce(ctx, kind, params)
	if err != nil {
		if !isProtocolError(err) {
			r.metrics.EngineFailure(ctx, "produce")
		}
		return "", nil, err
	}
	if !p.IsReady() {
		return prod.ID(), nil, nil
	}
	set := ProducerSet{}
	if kind == media.KindAudio {
		set.Audio = prod
	} else {
		set.Video = prod
	}
	return prod.ID(), r.fanOut(ctx, p, set, r.Others(id)), nil
}

func (r *Room) ResumeConsumer(ctx context.Context, id, owner domain.ParticipantID, kind media.Kind) error {
	p, ok := r.Participant(id)
	if !ok {
		return domain.ErrParticipantNotFound
	}
	return p.ResumeConsumer(ctx, owner, kind)
}

// fanOut lets every participant in targets consume the producers in set.
func (r *Room) fanOut(ctx context.Context, owner *Participant, set ProducerSet, targets []*Participant) []Delivery {
	if len(targets) == 0 || (set.Audio == nil && set.Video == nil) {
		return nil
	}
	workers := min(len(targets), maxFanOutWorkers)
	rp := pool.NewWithResults[Delivery]().WithMaxGoroutines(workers)
	for _, q := range targets {
		rp.Go(func() Delivery {
			return Delivery{To: q.ID(), Consumers: r.consumeFrom(ctx, q, owner, set)}
		})
	}
	out := make([]Delivery, 0, len(targets))
	for _, d := range rp.Wait() {
		if !d.Consumers.Empty() {
			out = append(out, d)
		}
	}
	return out
}

// consumeFrom creates paused consumers on consumer's receive transport for
// each producer in set owned by owner. Missing producers, incompatible
// capabilities and slots already filled are skipped.
func (r *Room) consumeFrom(ctx context.Context, consumer, owner *Participant, set ProducerSet) core.ParticipantConsumers {
	out := core.ParticipantConsumers{ParticipantID: owner.ID()}
	caps, ok := consumer.Capabilities()
	if !ok {
		return out
	}
	logger := log.With().
		Str("module", "app.fanout").
		Str("room", string(r.id)).
		Str("consumer_participant", string(consumer.ID())).
		Str("producer_participant", string(owner.ID())).
		Logger()

	for _, kind := range kinds {
		prod := set.get(kind)
		if prod == nil || prod.Closed() {
			continue
		}
		if !r.router.CanConsume(prod.ID(), caps) {
			logger.Debug().Str("kind", string(kind)).Str("producer", prod.ID()).Msg("cannot consume, skipping")
			continue
		}
		if !consumer.reserveConsumer(owner.ID(), kind) {
			continue
		}
		c, err := consumer.recv.Consume(ctx, media.ConsumeOptions{
			ProducerID:      prod.ID(),
			RtpCapabilities: caps,
			Paused:          true,
		})
		if err != nil {
			consumer.releaseConsumer(owner.ID(), kind)
			r.metrics.EngineFailure(ctx, "consume")
			logger.Warn().Err(err).Str("kind", string(kind)).Str("producer", prod.ID()).Msg("consume failed")
			continue
		}
		if !consumer.fillConsumer(owner.ID(), kind, c) {
			closeQuietly(c, "consumer", consumer.ID())
			continue
		}
		r.metrics.ConsumerCreated(ctx, kind)
		d := &core.ConsumerDescriptor{
			ID:            c.ID(),
			ProducerID:    prod.ID(),
			Kind:          kind,
			RtpParameters: c.RtpParameters(),
			Paused:        c.Paused(),
		}
		if kind == media.KindAudio {
			out.AudioConsumer = d
		} else {
			out.VideoConsumer = d
		}
	}

	// The owner may have left while the consumers were being created; its
	// removal sweep could have run before they were stored.
	if owner.Closed() {
		consumer.RemoveConsumers(owner.ID())
		return core.ParticipantConsumers{ParticipantID: owner.ID()}
	}
	return out
}

func isProtocolError(err error) bool {
	return errors.Is(err, domain.ErrProtocolViolation) || errors.Is(err, domain.ErrParticipantClosed)
}
