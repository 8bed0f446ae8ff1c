package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
)

// Room owns one router and the participants sharing it.
type Room struct {
	id        domain.RoomID
	router    media.Router
	transport media.TransportOptions
	metrics   Recorder

	mu           sync.RWMutex
	participants map[domain.ParticipantID]*Participant

	closeOnce sync.Once
}

func newRoom(id domain.RoomID, router media.Router, transport media.TransportOptions, metrics Recorder) *Room {
	return &Room{
		id:           id,
		router:       router,
		transport:    transport,
		metrics:      metrics,
		participants: make(map[domain.ParticipantID]*Participant),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) RtpCapabilities() media.RtpCapabilities { return r.router.RtpCapabilities() }

// AddParticipant creates the send and receive transports and inserts the
// participant. Either both transports exist or nothing is inserted.
func (r *Room) AddParticipant(ctx context.Context, id domain.ParticipantID) (*Participant, error) {
	if _, ok := r.Participant(id); ok {
		return nil, domain.ErrParticipantExists
	}

	send, err := r.router.CreateWebRtcTransport(ctx, r.transport)
	if err != nil {
		r.metrics.EngineFailure(ctx, "create_transport")
		return nil, fmt.Errorf("create send transport: %w", err)
	}
	recv, err := r.router.CreateWebRtcTransport(ctx, r.transport)
	if err != nil {
		r.metrics.EngineFailure(ctx, "create_transport")
		closeQuietly(send, "send transport", id)
		return nil, fmt.Errorf("create recv transport: %w", err)
	}

	p := newParticipant(id, r.id, send, recv)

	r.mu.Lock()
	if _, ok := r.participants[id]; ok {
		r.mu.Unlock()
		p.Close()
		return nil, domain.ErrParticipantExists
	}
	r.participants[id] = p
	n := len(r.participants)
	r.mu.Unlock()

	r.metrics.ParticipantJoined(ctx)
	log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("participant", string(id)).Int("participants", n).Msg("participant added")
	return p, nil
}

// RemoveParticipant closes the participant and sweeps its id out of every
// remaining participant's consumers. Removing an absent id is a no-op.
func (r *Room) RemoveParticipant(id domain.ParticipantID) bool {
	r.mu.Lock()
	p, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.participants, id)
	remaining := make([]*Participant, 0, len(r.participants))
	for _, q := range r.participants {
		remaining = append(remaining, q)
	}
	r.mu.Unlock()

	p.Close()
	swept := 0
	for _, q := range remaining {
		swept += q.RemoveConsumers(id)
	}

	r.metrics.ParticipantLeft(context.Background())
	log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("participant", string(id)).Int("consumers_swept", swept).Int("participants", len(remaining)).Msg("participant removed")
	return true
}

func (r *Room) Participant(id domain.ParticipantID) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

func (r *Room) Participants() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// Others returns every participant except id.
func (r *Room) Others(id domain.ParticipantID) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Participant, 0, len(r.participants))
	for pid, p := range r.participants {
		if pid != id {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// CloseIfEmpty closes the router once the last participant is gone.
func (r *Room) CloseIfEmpty() bool {
	if r.Count() > 0 {
		return false
	}
	r.closeRouter()
	return true
}

// Close tears down every participant and the router. Used on shutdown.
func (r *Room) Close() {
	for _, p := range r.Participants() {
		r.RemoveParticipant(p.ID())
	}
	r.closeRouter()
}

func (r *Room) closeRouter() {
	r.closeOnce.Do(func() {
		if err := r.router.Close(); err != nil {
			log.Debug().Err(err).Str("module", "app.room").Str("room", string(r.id)).Msg("router close failed")
		}
		log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("router", r.router.ID()).Msg("router closed")
	})
}
