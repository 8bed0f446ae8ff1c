package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
)

type RegistryConfig struct {
	Codecs    []media.RtpCodecCapability
	Transport media.TransportOptions
	Metrics   Recorder
}

// RoomRegistry is the process-wide directory of rooms. Create, join and
// remove are serialized per room id; different rooms never wait on each
// other across media engine calls.
type RoomRegistry struct {
	engine media.Engine
	cfg    RegistryConfig

	workerMu sync.Mutex
	worker   media.Worker

	roomLocks *KeyedMutex[domain.RoomID]

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRoomRegistry(engine media.Engine, cfg RegistryConfig) *RoomRegistry {
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	return &RoomRegistry{
		engine:    engine,
		cfg:       cfg,
		roomLocks: NewKeyedMutex[domain.RoomID](),
		rooms:     make(map[domain.RoomID]*Room),
	}
}

// CreateOrJoin adds participantID to roomID, creating the room and its router
// when it does not exist yet. On failure nothing new stays registered.
func (g *RoomRegistry) CreateOrJoin(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID) (*Room, *Participant, error) {
	unlock := g.roomLocks.Lock(roomID)
	defer unlock()

	room, ok := g.Lookup(roomID)
	created := false
	if !ok {
		router, err := g.createRouter(ctx)
		if err != nil {
			return nil, nil, err
		}
		room = newRoom(roomID, router, g.cfg.Transport, g.cfg.Metrics)
		created = true
	}

	p, err := room.AddParticipant(ctx, participantID)
	if err != nil {
		if created {
			room.closeRouter()
		}
		return nil, nil, err
	}

	if created {
		g.mu.Lock()
		g.rooms[roomID] = room
		g.mu.Unlock()
		g.cfg.Metrics.RoomOpened(ctx)
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Str("router", room.router.ID()).Msg("room created")
	}
	return room, p, nil
}

// Remove takes participantID out of roomID and deletes the room with its
// router when it becomes empty. Unknown rooms and participants are ignored.
// The second result reports whether the room was closed.
func (g *RoomRegistry) Remove(roomID domain.RoomID, participantID domain.ParticipantID) (removed, roomClosed bool) {
	unlock := g.roomLocks.Lock(roomID)
	defer unlock()

	room, ok := g.Lookup(roomID)
	if !ok {
		return false, false
	}
	removed = room.RemoveParticipant(participantID)
	if !room.CloseIfEmpty() {
		return removed, false
	}

	g.mu.Lock()
	delete(g.rooms, roomID)
	g.mu.Unlock()
	g.cfg.Metrics.RoomClosed(context.Background())
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room deleted")
	return removed, true
}

func (g *RoomRegistry) Lookup(roomID domain.RoomID) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[roomID]
	return room, ok
}

func (g *RoomRegistry) List() []core.RoomInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(g.rooms))
	for id, r := range g.rooms {
		out = append(out, core.RoomInfo{ID: id, Participants: r.Count()})
	}
	return out
}

// Close tears down every room and the worker.
func (g *RoomRegistry) Close() {
	g.mu.RLock()
	ids := make([]domain.RoomID, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		unlock := g.roomLocks.Lock(id)
		if room, ok := g.Lookup(id); ok {
			room.Close()
			g.mu.Lock()
			delete(g.rooms, id)
			g.mu.Unlock()
			g.cfg.Metrics.RoomClosed(context.Background())
		}
		unlock()
	}

	g.workerMu.Lock()
	defer g.workerMu.Unlock()
	if g.worker != nil {
		if err := g.worker.Close(); err != nil {
			log.Debug().Err(err).Str("module", "app.registry").Msg("worker close failed")
		}
		g.worker = nil
	}
	log.Info().Str("module", "app.registry").Int("rooms", len(ids)).Msg("registry closed")
}

func (g *RoomRegistry) createRouter(ctx context.Context) (media.Router, error) {
	w, err := g.ensureWorker(ctx)
	if err != nil {
		return nil, err
	}
	router, err := w.CreateRouter(ctx, g.cfg.Codecs)
	if err != nil {
		g.cfg.Metrics.EngineFailure(ctx, "create_router")
		return nil, fmt.Errorf("create router: %w", err)
	}
	return router, nil
}

// ensureWorker creates the worker on first use. A failed attempt is retried
// by the next join.
func (g *RoomRegistry) ensureWorker(ctx context.Context) (media.Worker, error) {
	g.workerMu.Lock()
	defer g.workerMu.Unlock()
	if g.worker != nil {
		return g.worker, nil
	}
	w, err := g.engine.CreateWorker(ctx)
	if err != nil {
		g.cfg.Metrics.EngineFailure(ctx, "create_worker")
		return nil, fmt.Errorf("create worker: %w", err)
	}
	g.worker = w
	return w, nil
}
