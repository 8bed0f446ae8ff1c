package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
)

var kinds = [...]media.Kind{media.KindAudio, media.KindVideo}

// ConsumerPair is what a participant receives from one other participant.
type ConsumerPair struct {
	Audio media.Consumer
	Video media.Consumer
}

func (cp *ConsumerPair) get(kind media.Kind) media.Consumer {
	if kind == media.KindAudio {
		return cp.Audio
	}
	return cp.Video
}

func (cp *ConsumerPair) set(kind media.Kind, c media.Consumer) {
	if kind == media.KindAudio {
		cp.Audio = c
		return
	}
	cp.Video = c
}

// ProducerSet is a consistent snapshot of a participant's producers.
type ProducerSet struct {
	Audio media.Producer
	Video media.Producer
}

func (ps ProducerSet) get(kind media.Kind) media.Producer {
	if kind == media.KindAudio {
		return ps.Audio
	}
	return ps.Video
}

type slotKey struct {
	owner domain.ParticipantID
	kind  media.Kind
}

// Participant is one connection's state inside a room. The transports are
// set at construction and never change; everything else is guarded by mu.
type Participant struct {
	id         domain.ParticipantID
	room       domain.RoomID
	timeJoined time.Time
	send       media.Transport
	recv       media.Transport

	mu        sync.RWMutex
	ready     bool
	caps      *media.RtpCapabilities
	producers map[media.Kind]media.Producer
	producing map[media.Kind]bool
	consumers map[domain.ParticipantID]*ConsumerPair
	reserved  map[slotKey]bool
	closed    bool
}

func newParticipant(id domain.ParticipantID, room domain.RoomID, send, recv media.Transport) *Participant {
	return &Participant{
		id:         id,
		room:       room,
		timeJoined: time.Now(),
		send:       send,
		recv:       recv,
		producers:  make(map[media.Kind]media.Producer, 2),
		producing:  make(map[media.Kind]bool, 2),
		consumers:  make(map[domain.ParticipantID]*ConsumerPair),
		reserved:   make(map[slotKey]bool),
	}
}

func (p *Participant) ID() domain.ParticipantID       { return p.id }
func (p *Participant) RoomID() domain.RoomID          { return p.room }
func (p *Participant) TimeJoined() time.Time          { return p.timeJoined }
func (p *Participant) SendTransport() media.Transport { return p.send }
func (p *Participant) RecvTransport() media.Transport { return p.recv }

func (p *Participant) State() domain.ParticipantState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case p.closed:
		return domain.StateDisconnected
	case p.ready:
		return domain.StateReady
	case len(p.producers) > 0:
		return domain.StateProducing
	case p.caps != nil:
		return domain.StateCapabilitiesAnnounced
	default:
		return domain.StateJoined
	}
}

func (p *Participant) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Participant) IsReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

func (p *Participant) SetCapabilities(caps media.RtpCapabilities) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrParticipantClosed
	}
	p.caps = &caps
	return nil
}

func (p *Participant) Capabilities() (media.RtpCapabilities, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.caps == nil {
		return media.RtpCapabilities{}, false
	}
	return *p.caps, true
}

// MarkReady flips the participant into the ready state.
func (p *Participant) MarkReady() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrParticipantClosed
	}
	if p.caps == nil {
		return domain.ErrCapabilitiesMissing
	}
	p.ready = true
	return nil
}

// Produce creates the producer of the given kind on the send transport. A
// failure leaves the producer of the other kind untouched and may be retried.
func (p *Participant) Produce(ctx context.Context, kind media.Kind, params media.RtpParameters) (media.Producer, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, domain.ErrParticipantClosed
	}
	if _, ok := p.producers[kind]; ok || p.producing[kind] {
		p.mu.Unlock()
		return nil, domain.ErrProducerExists
	}
	p.producing[kind] = true
	p.mu.Unlock()

	prod, err := p.send.Produce(ctx, media.ProduceOptions{Kind: kind, RtpParameters: params})

	p.mu.Lock()
	delete(p.producing, kind)
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("produce %s: %w", kind, err)
	}
	if p.closed {
		p.mu.Unlock()
		_ = prod.Close()
		return nil, domain.ErrParticipantClosed
	}
	p.producers[kind] = prod
	p.mu.Unlock()

	log.Info().Str("module", "app.participant").Str("participant", string(p.id)).Str("kind", string(kind)).Str("producer", prod.ID()).Msg("producer created")
	return prod, nil
}

func (p *Participant) Producers() ProducerSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProducerSet{Audio: p.producers[media.KindAudio], Video: p.producers[media.KindVideo]}
}

func (p *Participant) Summary() core.ParticipantSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := core.ParticipantSummary{
		ID:         p.id,
		TimeJoined: p.timeJoined.UnixMilli(),
		IsReady:    p.ready,
	}
	if prod, ok := p.producers[media.KindAudio]; ok {
		id := prod.ID()
		s.Producers.Audio = &id
	}
	if prod, ok := p.producers[media.KindVideo]; ok {
		id := prod.ID()
		s.Producers.Video = &id
	}
	return s
}

// reserveConsumer claims the (owner, kind) slot so that at most one task
// creates that consumer. It fails when the slot is taken or p is closed.
func (p *Participant) reserveConsumer(owner domain.ParticipantID, kind media.Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	key := slotKey{owner: owner, kind: kind}
	if p.reserved[key] {
		return false
	}
	if pair, ok := p.consumers[owner]; ok && pair.get(kind) != nil {
		return false
	}
	p.reserved[key] = true
	return true
}

func (p *Participant) releaseConsumer(owner domain.ParticipantID, kind media.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, slotKey{owner: owner, kind: kind})
}

// fillConsumer stores c in a previously reserved slot. It returns false when
// p was closed in the meantime; the caller then owns c and must close it.
func (p *Participant) fillConsumer(owner domain.ParticipantID, kind media.Kind, c media.Consumer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, slotKey{owner: owner, kind: kind})
	if p.closed {
		return false
	}
	pair, ok := p.consumers[owner]
	if !ok {
		pair = &ConsumerPair{}
		p.consumers[owner] = pair
	}
	pair.set(kind, c)
	return true
}

// RemoveConsumers closes and forgets everything p receives from owner.
func (p *Participant) RemoveConsumers(owner domain.ParticipantID) int {
	p.mu.Lock()
	pair, ok := p.consumers[owner]
	delete(p.consumers, owner)
	p.mu.Unlock()
	if !ok {
		return 0
	}
	n := 0
	for _, kind := range kinds {
		if c := pair.get(kind); c != nil {
			closeQuietly(c, "consumer", p.id)
			n++
		}
	}
	return n
}

func (p *Participant) ConsumerPair(owner domain.ParticipantID) (ConsumerPair, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pair, ok := p.consumers[owner]
	if !ok {
		return ConsumerPair{}, false
	}
	return *pair, true
}

// ConsumerOwners lists the participants p currently receives from.
func (p *Participant) ConsumerOwners() []domain.ParticipantID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.ParticipantID, 0, len(p.consumers))
	for id := range p.consumers {
		out = append(out, id)
	}
	return out
}

func (p *Participant) ResumeConsumer(ctx context.Context, owner domain.ParticipantID, kind media.Kind) error {
	p.mu.RLock()
	var c media.Consumer
	if pair, ok := p.consumers[owner]; ok {
		c = pair.get(kind)
	}
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return domain.ErrParticipantClosed
	}
	if c == nil {
		return fmt.Errorf("%s consumer for %s: %w", kind, owner, domain.ErrConsumerNotFound)
	}
	if err := c.Resume(ctx); err != nil {
		return fmt.Errorf("resume %s consumer: %w", kind, err)
	}
	return nil
}

// Close releases every engine object the participant owns. It is idempotent
// and never fails; close errors are logged and dropped.
func (p *Participant) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	producers := p.producers
	consumers := p.consumers
	p.producers = make(map[media.Kind]media.Producer)
	p.consumers = make(map[domain.ParticipantID]*ConsumerPair)
	p.mu.Unlock()

	for _, pair := range consumers {
		for _, kind := range kinds {
			if c := pair.get(kind); c != nil {
				closeQuietly(c, "consumer", p.id)
			}
		}
	}
	for _, prod := range producers {
		closeQuietly(prod, "producer", p.id)
	}
	closeQuietly(p.send, "send transport", p.id)
	closeQuietly(p.recv, "recv transport", p.id)
	log.Info().Str("module", "app.participant").Str("participant", string(p.id)).Str("room", string(p.room)).Msg("participant closed")
}

type closer interface {
	Close() error
}

func closeQuietly(c closer, what string, pid domain.ParticipantID) {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Str("module", "app.participant").Str("participant", string(pid)).Str("object", what).Msg("close failed")
	}
}
